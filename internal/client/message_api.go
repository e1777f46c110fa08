package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/pkg/errors"

	"github.com/deskhive/realtime/internal/entity"
	"github.com/deskhive/realtime/internal/model"
	"github.com/deskhive/realtime/pkg/errorx"
	"github.com/deskhive/realtime/pkg/xcontext"
)

// MessageAPICaller is the REST collaborator the synchronization engine
// consumes. Implementations are external to this layer.
type MessageAPICaller interface {
	GetMessages(ctx context.Context, req *model.GetMessagesRequest) (*model.GetMessagesResponse, error)
	SendMessage(ctx context.Context, req *model.SendMessageRequest) (*entity.ChatMessage, error)
	MarkRoomAsRead(ctx context.Context, req *model.MarkRoomAsReadRequest) error
}

type messageAPICaller struct {
	client *http.Client
}

func NewMessageAPICaller(client *http.Client) *messageAPICaller {
	if client == nil {
		client = http.DefaultClient
	}
	return &messageAPICaller{client: client}
}

func (c *messageAPICaller) GetMessages(
	ctx context.Context, req *model.GetMessagesRequest,
) (*model.GetMessagesResponse, error) {
	query := url.Values{}
	query.Set("limit", fmt.Sprintf("%d", req.Limit))
	if req.Before != 0 {
		query.Set("before", fmt.Sprintf("%d", req.Before))
	}

	target := fmt.Sprintf("%s/rooms/%s/messages?%s",
		xcontext.Configs(ctx).ApiServer.Endpoint, url.PathEscape(req.RoomID), query.Encode())

	var resp model.GetMessagesResponse
	if err := c.call(ctx, http.MethodGet, target, nil, &resp); err != nil {
		return nil, errors.Wrap(err, "cannot get messages")
	}

	return &resp, nil
}

func (c *messageAPICaller) SendMessage(
	ctx context.Context, req *model.SendMessageRequest,
) (*entity.ChatMessage, error) {
	target := fmt.Sprintf("%s/rooms/%s/messages",
		xcontext.Configs(ctx).ApiServer.Endpoint, url.PathEscape(req.RoomID))

	var resp model.SendMessageResponse
	if err := c.call(ctx, http.MethodPost, target, req, &resp); err != nil {
		return nil, errors.Wrap(err, "cannot send message")
	}

	return &resp.Message, nil
}

func (c *messageAPICaller) MarkRoomAsRead(ctx context.Context, req *model.MarkRoomAsReadRequest) error {
	target := fmt.Sprintf("%s/rooms/%s/read",
		xcontext.Configs(ctx).ApiServer.Endpoint, url.PathEscape(req.RoomID))

	if err := c.call(ctx, http.MethodPost, target, nil, nil); err != nil {
		return errors.Wrap(err, "cannot mark room as read")
	}

	return nil
}

func (c *messageAPICaller) call(
	ctx context.Context, method, target string, body, out any,
) error {
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	if token := xcontext.Configs(ctx).Auth.Token; token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp.StatusCode)
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errorx.New(errorx.BadResponse, "Cannot decode response: %v", err)
	}

	return nil
}

func statusError(status int) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errorx.New(errorx.Unauthenticated, "Not allowed (status %d)", status)
	case status == http.StatusNotFound:
		return errorx.New(errorx.NotFound, "Not found (status %d)", status)
	case status == http.StatusBadRequest:
		return errorx.New(errorx.BadRequest, "Rejected request (status %d)", status)
	case status >= 500:
		return errorx.New(errorx.Unavailable, "Server unavailable (status %d)", status)
	default:
		return errorx.Unknown
	}
}
