package bot

import (
	"context"
	"log/slog"
	"time"
)

// scheduleAutoDelete arranges for a delivered message to be removed from the
// chat after the configured delay. Failures (message already gone, chat left)
// are logged and swallowed; there is nothing useful to do with them.
func (d *Dispatcher) scheduleAutoDelete(chatID int64, messageID int) {
	if d.cfg.AutoDeleteDelay <= 0 {
		return
	}

	time.AfterFunc(d.cfg.AutoDeleteDelay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := d.tr.DeleteMessage(ctx, chatID, messageID); err != nil {
			slog.Warn("auto-delete failed", "chat", chatID, "message", messageID, "error", err)
		}
	})
}
