package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/deskhive/realtime/config"
	"github.com/deskhive/realtime/internal/entity"
	"github.com/deskhive/realtime/internal/model"
	"github.com/deskhive/realtime/pkg/errorx"
	"github.com/deskhive/realtime/pkg/xcontext"
)

func apiTestContext(endpoint string) context.Context {
	cfg := config.Default()
	cfg.ApiServer.Endpoint = endpoint
	cfg.Auth.Token = "secret"
	return xcontext.WithConfigs(context.Background(), cfg)
}

func Test_MessageAPICaller_GetMessages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/rooms/room-1/messages", r.URL.Path)
		require.Equal(t, "20", r.URL.Query().Get("limit"))
		require.Equal(t, "100", r.URL.Query().Get("before"))
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		resp := model.GetMessagesResponse{
			Messages: []entity.ChatMessage{{ID: 99, Content: "hi", CreatedAt: time.Now()}},
			HasMore:  true,
			Cursor:   99,
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	caller := NewMessageAPICaller(nil)
	resp, err := caller.GetMessages(apiTestContext(server.URL), &model.GetMessagesRequest{
		RoomID: "room-1",
		Limit:  20,
		Before: 100,
	})
	require.NoError(t, err)
	require.Len(t, resp.Messages, 1)
	require.True(t, resp.HasMore)
	require.Equal(t, int64(99), resp.Cursor)
}

func Test_MessageAPICaller_SendMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/rooms/room-1/messages", r.URL.Path)

		var req model.SendMessageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "hello", req.Content)
		require.NotEmpty(t, req.ClientID)

		resp := model.SendMessageResponse{Message: entity.ChatMessage{
			ID:       500,
			ClientID: req.ClientID,
			Content:  req.Content,
		}}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	caller := NewMessageAPICaller(nil)
	msg, err := caller.SendMessage(apiTestContext(server.URL), &model.SendMessageRequest{
		RoomID:   "room-1",
		Content:  "hello",
		ClientID: "client-1",
	})
	require.NoError(t, err)
	require.Equal(t, int64(500), msg.ID)
	require.Equal(t, "client-1", msg.ClientID)
}

func Test_MessageAPICaller_MarkRoomAsRead(t *testing.T) {
	var marked bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/rooms/room-1/read", r.URL.Path)
		marked = true
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	caller := NewMessageAPICaller(nil)
	err := caller.MarkRoomAsRead(apiTestContext(server.URL), &model.MarkRoomAsReadRequest{RoomID: "room-1"})
	require.NoError(t, err)
	require.True(t, marked)
}

func Test_MessageAPICaller_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	caller := NewMessageAPICaller(nil)
	_, err := caller.GetMessages(apiTestContext(server.URL), &model.GetMessagesRequest{
		RoomID: "room-1",
		Limit:  20,
	})
	require.Error(t, err)

	var apiErr errorx.Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, errorx.Unauthenticated, apiErr.Code)
}
