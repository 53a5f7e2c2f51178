package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealwatch/internal/monitor"
)

func sampleItems() []monitor.Item {
	return []monitor.Item{
		{
			ID:          "1",
			Title:       "蓝牙耳机热卖",
			PriceText:   "¥199.50 起",
			WorthyText:  "30",
			CommentText: "12",
			URL:         "https://example.com/p/1",
		},
		{
			ID:          "2",
			Title:       "固态硬盘好价",
			PriceText:   "¥399",
			WorthyText:  "88",
			CommentText: "41",
			URL:         "https://example.com/p/2",
		},
	}
}

func TestTelegramNotifySendsBatch(t *testing.T) {
	t.Parallel()

	var (
		gotPath string
		gotBody sendMessageRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(srv.Close)

	n := NewTelegram(TelegramConfig{
		BotToken: "123:abc",
		ChatID:   "-100200300",
		APIBase:  srv.URL,
	}, nil)

	require.NoError(t, n.Notify(context.Background(), sampleItems()))
	assert.Equal(t, "/bot123:abc/sendMessage", gotPath)
	assert.Equal(t, "-100200300", gotBody.ChatID)
	assert.Contains(t, gotBody.Text, "蓝牙耳机热卖")
	assert.Contains(t, gotBody.Text, "https://example.com/p/2")
	assert.True(t, gotBody.DisableWebPagePreview)
}

func TestTelegramNotifyRejectedResponse(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"ok":false,"description":"bot was blocked"}`))
	}))
	t.Cleanup(srv.Close)

	n := NewTelegram(TelegramConfig{BotToken: "t", ChatID: "c", APIBase: srv.URL}, nil)

	err := n.Notify(context.Background(), sampleItems())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bot was blocked")
}

func TestTelegramNotifyEmptyBatchIsNoop(t *testing.T) {
	t.Parallel()

	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(srv.Close)

	n := NewTelegram(TelegramConfig{BotToken: "t", ChatID: "c", APIBase: srv.URL}, nil)
	require.NoError(t, n.Notify(context.Background(), nil))
	assert.Zero(t, calls)
}

func TestTelegramNotifySplitsLongBatches(t *testing.T) {
	t.Parallel()

	items := make([]monitor.Item, 0, 200)
	for i := 0; i < 200; i++ {
		items = append(items, monitor.Item{
			ID:    "x",
			Title: strings.Repeat("折", 20),
			URL:   "https://example.com/p/very-long-listing-path",
		})
	}

	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		var body sendMessageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.LessOrEqual(t, len(body.Text), maxMessageLen)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(srv.Close)

	n := NewTelegram(TelegramConfig{BotToken: "t", ChatID: "c", APIBase: srv.URL}, nil)
	require.NoError(t, n.Notify(context.Background(), items))
	assert.Greater(t, calls, 1)
}

func TestFormatBatch(t *testing.T) {
	t.Parallel()

	text := FormatBatch(sampleItems())
	assert.Contains(t, text, "蓝牙耳机热卖")
	assert.Contains(t, text, "¥199.50 起")
	assert.Contains(t, text, "值 30")
	assert.Contains(t, text, "评论 12")
	assert.Contains(t, text, "https://example.com/p/1")
}

func TestSplitMessagePrefersLineBoundaries(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("line one\n", 10)
	chunks := splitMessage(text, 30)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 30)
		trimmed := strings.TrimRight(c, "\n")
		assert.True(t, strings.HasSuffix(trimmed, "line one"), "chunk %q must end on a whole line", c)
	}
}
