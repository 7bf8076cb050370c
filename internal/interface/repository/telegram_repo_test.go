package repository

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tkgm-sync-service/pkg/logger"
)

func TestTelegramIsConfigured(t *testing.T) {
	log := logger.NewLogger()
	assert.True(t, NewTelegramRepository("token", "chat", "", log).IsConfigured())
	assert.False(t, NewTelegramRepository("", "chat", "", log).IsConfigured())
	assert.False(t, NewTelegramRepository("token", "", "", log).IsConfigured())
}

func TestTelegramSendMessage(t *testing.T) {
	t.Run("posts to the bot endpoint", func(t *testing.T) {
		var gotPath string
		var gotBody map[string]interface{}
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			w.Write([]byte(`{"ok":true}`))
		}))
		defer server.Close()

		r := &TelegramRepository{
			logger:   logger.NewLogger(),
			apiBase:  server.URL,
			botToken: "123:abc",
			chatID:   "-100200",
			client:   &http.Client{Timeout: 5 * time.Second},
		}
		require.NoError(t, r.SendMessage(context.Background(), "daily_sync DONE"))
		assert.Equal(t, "/bot123:abc/sendMessage", gotPath)
		assert.Equal(t, "-100200", gotBody["chat_id"])
		assert.Equal(t, "daily_sync DONE", gotBody["text"])
		assert.NotContains(t, gotBody, "parse_mode")
	})

	t.Run("configured parse mode is sent with the message", func(t *testing.T) {
		var gotBody map[string]interface{}
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			w.Write([]byte(`{"ok":true}`))
		}))
		defer server.Close()

		r := &TelegramRepository{
			logger:    logger.NewLogger(),
			apiBase:   server.URL,
			botToken:  "123:abc",
			chatID:    "-100200",
			parseMode: "HTML",
			client:    &http.Client{Timeout: 5 * time.Second},
		}
		require.NoError(t, r.SendMessage(context.Background(), "<b>daily_sync</b> DONE"))
		assert.Equal(t, "HTML", gotBody["parse_mode"])
	})

	t.Run("API level failure is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
		}))
		defer server.Close()

		r := &TelegramRepository{
			logger:   logger.NewLogger(),
			apiBase:  server.URL,
			botToken: "123:abc",
			chatID:   "-100200",
			client:   &http.Client{Timeout: 5 * time.Second},
		}
		err := r.SendMessage(context.Background(), "x")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "chat not found")
	})

	t.Run("unconfigured send is a no-op", func(t *testing.T) {
		r := NewTelegramRepository("", "", "", logger.NewLogger())
		assert.NoError(t, r.SendMessage(context.Background(), "x"))
	})
}
