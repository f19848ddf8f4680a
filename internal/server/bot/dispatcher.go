package bot

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"courier/internal/server/config"
	"courier/internal/server/service"
	"courier/internal/server/session"
	"courier/internal/server/telegram"
)

// Transport is the messaging-platform surface the dispatcher needs. The
// concrete telegram client satisfies it; tests substitute a fake.
type Transport interface {
	SendMessage(ctx context.Context, chatID int64, text string, markup *telegram.InlineKeyboardMarkup) (*telegram.Message, error)
	SendFile(ctx context.Context, chatID int64, att telegram.Attachment, caption string) (*telegram.Message, error)
	ForwardMessage(ctx context.Context, toChatID, fromChatID int64, messageID int) (*telegram.Message, error)
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	AnswerCallbackQuery(ctx context.Context, callbackID, text string) error
	EditMessageText(ctx context.Context, chatID int64, messageID int, text string, markup *telegram.InlineKeyboardMarkup) error
}

// PrincipalStore records principals the bot has talked to, for broadcast
// and stats.
type PrincipalStore interface {
	UpsertPrincipal(ctx context.Context, id int64) error
	ListPrincipals(ctx context.Context) ([]int64, error)
}

// Dispatcher routes inbound updates to the upload, resolution, secure-flow
// and admin handlers. One update is processed at a time per principal; the
// session lock provides that ordering.
type Dispatcher struct {
	cfg        *config.Config
	tr         Transport
	registry   *service.Registry
	batches    *service.Aggregator
	gate       *service.Gate
	sessions   *session.Manager
	principals PrincipalStore
}

// NewDispatcher wires the dispatcher to its collaborators.
func NewDispatcher(
	cfg *config.Config,
	tr Transport,
	registry *service.Registry,
	batches *service.Aggregator,
	gate *service.Gate,
	sessions *session.Manager,
	principals PrincipalStore,
) *Dispatcher {
	return &Dispatcher{
		cfg:        cfg,
		tr:         tr,
		registry:   registry,
		batches:    batches,
		gate:       gate,
		sessions:   sessions,
		principals: principals,
	}
}

// HandleUpdate processes one inbound update. Nothing may escape: a panic in
// a handler is recovered and logged so one bad update cannot take down the
// worker or disturb other principals' sessions.
func (d *Dispatcher) HandleUpdate(ctx context.Context, upd *telegram.Update) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic while handling update", "update_id", upd.UpdateID, "panic", r)
		}
	}()

	switch {
	case upd.CallbackQuery != nil:
		d.handleCallback(ctx, upd.CallbackQuery)
	case upd.Message != nil && upd.Message.From != nil:
		d.handleMessage(ctx, upd.Message)
	}
}

func (d *Dispatcher) handleMessage(ctx context.Context, msg *telegram.Message) {
	principal := msg.From.ID

	if err := d.principals.UpsertPrincipal(ctx, principal); err != nil {
		slog.Error("failed to record principal", "principal", principal, "error", err)
	}

	sess := d.sessions.Get(principal)
	sess.Lock()
	defer sess.Unlock()

	switch {
	case strings.HasPrefix(msg.Text, "/"):
		d.handleCommand(ctx, msg, sess)
	default:
		if att, ok := telegram.ExtractAttachment(msg); ok {
			d.handleFile(ctx, msg, att, sess)
			return
		}
		d.handleText(ctx, msg, sess)
	}
}

func (d *Dispatcher) handleCommand(ctx context.Context, msg *telegram.Message, sess *session.Session) {
	cmd, args := splitCommand(msg.Text)

	switch cmd {
	case "/start":
		d.handleStart(ctx, msg, args, sess)
	case "/help":
		d.reply(ctx, msg.Chat.ID, helpText)
	case "/batch":
		d.handleBatchBegin(ctx, msg, sess)
	case "/done":
		d.handleBatchDone(ctx, msg, sess)
	case "/cancel":
		d.handleCancel(ctx, msg, sess)
	case "/secure":
		d.handleSecureBegin(ctx, msg, sess)
	case "/delete":
		if d.isAdmin(msg.From.ID) {
			d.handleAdminDelete(ctx, msg, args)
			return
		}
		d.reply(ctx, msg.Chat.ID, unknownCommandText)
	case "/broadcast":
		if d.isAdmin(msg.From.ID) {
			d.handleAdminBroadcast(ctx, msg, args)
			return
		}
		d.reply(ctx, msg.Chat.ID, unknownCommandText)
	case "/stats":
		if d.isAdmin(msg.From.ID) {
			d.handleAdminStats(ctx, msg)
			return
		}
		d.reply(ctx, msg.Chat.ID, unknownCommandText)
	default:
		d.reply(ctx, msg.Chat.ID, unknownCommandText)
	}
}

func (d *Dispatcher) handleCallback(ctx context.Context, cb *telegram.CallbackQuery) {
	if cb.From == nil {
		return
	}

	sess := d.sessions.Get(cb.From.ID)
	sess.Lock()
	defer sess.Unlock()

	var chatID int64
	var msgID int
	if cb.Message != nil {
		chatID = cb.Message.Chat.ID
		msgID = cb.Message.MessageID
	}

	switch cb.Data {
	case "batch_done":
		if sess.Mode != session.ModeBatch {
			d.answer(ctx, cb.ID, "No batch in progress.")
			return
		}
		batchID, err := d.batches.Commit(ctx, cb.From.ID, sess.Tokens())
		switch {
		case err == nil:
			sess.Reset()
			d.answer(ctx, cb.ID, "Batch saved.")
			d.edit(ctx, chatID, msgID, "Batch saved! Share this link:\n\n👉 "+d.shareLink(batchID))
		case errors.Is(err, service.ErrNothingToCommit):
			d.answer(ctx, cb.ID, "The batch is empty — send some files first.")
		default:
			slog.Error("batch commit failed", "owner", cb.From.ID, "error", err)
			d.answer(ctx, cb.ID, "Something went wrong, please try again.")
		}
	case "batch_cancel":
		d.discardPending(ctx, sess)
		sess.Reset()
		d.answer(ctx, cb.ID, "Cancelled.")
		d.edit(ctx, chatID, msgID, "Batch cancelled.")
	default:
		d.answer(ctx, cb.ID, "")
	}
}

func (d *Dispatcher) isAdmin(id int64) bool {
	return id == d.cfg.AdminID
}

// reply sends a plain text message, logging delivery failures instead of
// propagating them: there is nobody upstream to handle a failed reply.
func (d *Dispatcher) reply(ctx context.Context, chatID int64, text string) {
	if _, err := d.tr.SendMessage(ctx, chatID, text, nil); err != nil {
		slog.Error("failed to send reply", "chat", chatID, "error", err)
	}
}

func (d *Dispatcher) answer(ctx context.Context, callbackID, text string) {
	if err := d.tr.AnswerCallbackQuery(ctx, callbackID, text); err != nil {
		slog.Error("failed to answer callback", "callback", callbackID, "error", err)
	}
}

func (d *Dispatcher) edit(ctx context.Context, chatID int64, messageID int, text string) {
	if chatID == 0 {
		return
	}
	if err := d.tr.EditMessageText(ctx, chatID, messageID, text, nil); err != nil {
		slog.Error("failed to edit message", "chat", chatID, "message", messageID, "error", err)
	}
}

// splitCommand separates "/cmd@botname rest of args" into "/cmd" and the
// trimmed argument string.
func splitCommand(text string) (string, string) {
	cmd, args, _ := strings.Cut(text, " ")
	if at := strings.Index(cmd, "@"); at > 0 {
		cmd = cmd[:at]
	}
	return cmd, strings.TrimSpace(args)
}
