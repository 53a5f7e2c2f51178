// Package notify delivers cycle batches to a chat channel.
package notify

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"dealwatch/internal/monitor"
)

// FormatBatch renders one cycle's hits as a plain-text chat message.
func FormatBatch(items []monitor.Item) string {
	var b strings.Builder
	for i, item := range items {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(item.Title)
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("%s | 值 %s | 评论 %s\n",
			item.PriceText, item.WorthyText, item.CommentText))
		b.WriteString(item.URL)
		b.WriteString("\n")
	}
	return b.String()
}

// LogNotifier writes batches to the log instead of a chat channel.
// Used when no bot token is configured, mirroring a dry run.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier builds a LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Notify logs each item in the batch.
func (n *LogNotifier) Notify(_ context.Context, items []monitor.Item) error {
	for _, item := range items {
		n.logger.Info("would notify",
			zap.String("id", item.ID),
			zap.String("title", item.Title),
			zap.String("price", item.PriceText),
			zap.String("url", item.URL))
	}
	return nil
}
