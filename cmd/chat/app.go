package main

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/bwmarrin/snowflake"
	"github.com/urfave/cli/v2"

	"github.com/deskhive/realtime/config"
	"github.com/deskhive/realtime/internal/chat"
	"github.com/deskhive/realtime/internal/client"
	"github.com/deskhive/realtime/internal/entity"
	"github.com/deskhive/realtime/internal/model"
	"github.com/deskhive/realtime/internal/realtime"
	"github.com/deskhive/realtime/pkg/logger"
	"github.com/deskhive/realtime/pkg/xcontext"
)

type app struct {
	cli *cli.App

	ctx      context.Context
	configs  config.Configs
	registry *realtime.Registry
	store    *chat.MessageStore
}

func (a *app) loadApp() {
	a.cli = cli.NewApp()
	a.cli.Name = "deskhive-chat"
	a.cli.Usage = "Terminal client for the deskhive realtime layer"
	a.cli.Flags = []cli.Flag{
		&cli.StringFlag{Name: "config", Value: "chat.toml", Usage: "Path to the TOML config file"},
		&cli.StringFlag{Name: "user", Usage: "Acting user id"},
		&cli.StringFlag{Name: "token", Usage: "Auth token, overrides the config file"},
	}
	a.cli.Commands = []*cli.Command{
		{
			Action:      a.watch,
			Name:        "watch",
			Usage:       "Attach to a room and relay messages",
			ArgsUsage:   "<roomID>",
			Description: `Connects the room's channel, loads the newest history page and relays stdin lines as messages.`,
		},
	}
}

func (a *app) loadContext(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if token := c.String("token"); token != "" {
		cfg.Auth.Token = token
	}
	a.configs = cfg

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	ctx = xcontext.WithConfigs(ctx, cfg)
	ctx = xcontext.WithLogger(ctx, logger.NewLogger(logger.INFO))
	ctx = xcontext.WithSnowFlake(ctx, node)
	ctx = xcontext.WithRequestUserID(ctx, c.String("user"))
	a.ctx = ctx

	return nil
}

func (a *app) loadEngine() {
	a.registry = realtime.NewRegistry()
	a.store = chat.NewMessageStore(client.NewMessageAPICaller(nil))
}

func (a *app) watch(c *cli.Context) error {
	roomID := c.Args().First()
	if roomID == "" {
		return cli.Exit("room id is required", 1)
	}

	if err := a.loadContext(c); err != nil {
		return err
	}
	a.loadEngine()
	defer a.registry.Dispose()

	channelKey := roomID
	handle := a.registry.Connect(a.ctx, channelKey,
		func(ev *model.Event) {},
		func(err error) {
			xcontext.Logger(a.ctx).Warnf("Transport error: %v", err)
		},
		func(code int) {
			xcontext.Logger(a.ctx).Infof("Channel closed with code %d", code)
		},
	)
	if handle == nil {
		return cli.Exit("no auth token configured", 1)
	}
	defer handle.Disconnect()

	unbind := a.store.Bind(a.registry, roomID, channelKey)
	defer unbind()

	a.store.OnUpdate(func(id string, kind chat.UpdateKind) {
		if id != roomID || kind != chat.UpdateAppend {
			return
		}
		messages := a.store.Messages(roomID)
		if len(messages) == 0 {
			return
		}
		printMessage(messages[len(messages)-1])
	})

	if err := a.store.LoadInitial(a.ctx, roomID); err != nil {
		return err
	}
	for _, msg := range a.store.Messages(roomID) {
		printMessage(msg)
	}

	if err := a.store.MarkRead(a.ctx, roomID); err != nil {
		xcontext.Logger(a.ctx).Warnf("Cannot mark room as read: %v", err)
	}

	typing := chat.NewTypingSignal(a.ctx, a.registry, channelKey)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		typing.Stop()
		if err := a.store.Send(a.ctx, roomID, chat.Draft{Content: line}); err != nil {
			xcontext.Logger(a.ctx).Errorf("Send failed: %v", err)
		}
	}

	return scanner.Err()
}

func printMessage(msg entity.ChatMessage) {
	marker := ""
	if msg.Pending {
		marker = " (sending)"
	}
	fmt.Printf("[%s] %s: %s%s\n",
		msg.CreatedAt.Format("15:04:05"), msg.AuthorID, msg.Content, marker)
}
