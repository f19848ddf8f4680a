package bot

import (
	"context"
	"fmt"
	"log/slog"

	"courier/internal/server/telegram"
)

// handleAdminDelete revokes a token. File tokens and secure-link tokens share
// the command; the registry is tried first.
func (d *Dispatcher) handleAdminDelete(ctx context.Context, msg *telegram.Message, args string) {
	if args == "" {
		d.reply(ctx, msg.Chat.ID, "Usage: /delete <token>")
		return
	}

	n, err := d.registry.Delete(ctx, args)
	if err != nil {
		slog.Error("admin delete failed", "token", args, "error", err)
		d.reply(ctx, msg.Chat.ID, "Delete failed: "+err.Error())
		return
	}
	if n == 0 {
		n, err = d.gate.Delete(ctx, args)
		if err != nil {
			slog.Error("admin delete failed", "token", args, "error", err)
			d.reply(ctx, msg.Chat.ID, "Delete failed: "+err.Error())
			return
		}
	}

	if n == 0 {
		d.reply(ctx, msg.Chat.ID, "No record found for that token.")
		return
	}
	slog.Info("token revoked by admin", "token", args)
	d.reply(ctx, msg.Chat.ID, "Deleted.")
}

// handleAdminBroadcast sends a message to every known principal. Delivery is
// best effort; principals who blocked the bot just count as failures.
func (d *Dispatcher) handleAdminBroadcast(ctx context.Context, msg *telegram.Message, args string) {
	if args == "" {
		d.reply(ctx, msg.Chat.ID, "Usage: /broadcast <message>")
		return
	}

	ids, err := d.principals.ListPrincipals(ctx)
	if err != nil {
		slog.Error("failed to list principals", "error", err)
		d.reply(ctx, msg.Chat.ID, genericErrorText)
		return
	}

	var sent, failed int
	for _, id := range ids {
		if _, err := d.tr.SendMessage(ctx, id, args, nil); err != nil {
			slog.Warn("broadcast delivery failed", "principal", id, "error", err)
			failed++
			continue
		}
		sent++
	}

	d.reply(ctx, msg.Chat.ID, fmt.Sprintf("Broadcast done: %d sent, %d failed.", sent, failed))
}

func (d *Dispatcher) handleAdminStats(ctx context.Context, msg *telegram.Message) {
	stats, err := d.registry.Stats(ctx)
	if err != nil {
		slog.Error("failed to collect stats", "error", err)
		d.reply(ctx, msg.Chat.ID, genericErrorText)
		return
	}

	d.reply(ctx, msg.Chat.ID, fmt.Sprintf(
		"📊 Stats\n\nFiles: %d\nBatches: %d\nSecure links: %d\nPrincipals: %d",
		stats.Files, stats.Batches, stats.SecureLinks, stats.Principals))
}
