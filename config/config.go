package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

type Configs struct {
	Env string

	WsServer  WsServerConfigs
	ApiServer ApiServerConfigs
	Auth      AuthConfigs
	Chat      ChatConfigs
	Reconnect ReconnectConfigs
}

type WsServerConfigs struct {
	Host     string
	Port     string
	BasePath string
	Secure   bool

	PingInterval time.Duration
}

func (c *WsServerConfigs) Address() string {
	scheme := "ws"
	if c.Secure {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s:%s%s", scheme, c.Host, c.Port, c.BasePath)
}

type ApiServerConfigs struct {
	Endpoint string
	Timeout  time.Duration
}

type AuthConfigs struct {
	TokenName string
	Token     string
}

type ChatConfigs struct {
	PageSize      int
	TypingIdle    time.Duration
	TypingExpiry  time.Duration
	ScrollEdgePx  int
	BottomStickPx int
}

type ReconnectConfigs struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
}

func Default() Configs {
	return Configs{
		Env: "local",
		WsServer: WsServerConfigs{
			Host:         "localhost",
			Port:         "8080",
			BasePath:     "/ws/chat",
			PingInterval: 25 * time.Second,
		},
		ApiServer: ApiServerConfigs{
			Endpoint: "http://localhost:8080/api",
			Timeout:  10 * time.Second,
		},
		Auth: AuthConfigs{TokenName: "token"},
		Chat: ChatConfigs{
			PageSize:      25,
			TypingIdle:    3 * time.Second,
			TypingExpiry:  10 * time.Second,
			ScrollEdgePx:  80,
			BottomStickPx: 40,
		},
		Reconnect: ReconnectConfigs{
			BaseDelay:   time.Second,
			MaxDelay:    30 * time.Second,
			MaxAttempts: 5,
		},
	}
}

// Load reads a TOML file over the defaults. Fields missing from the file keep
// their default values.
func Load(path string) (Configs, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Configs{}, err
	}
	return cfg, nil
}
