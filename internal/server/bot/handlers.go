package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"courier/internal/server/database"
	"courier/internal/server/service"
	"courier/internal/server/session"
	"courier/internal/server/telegram"
)

const (
	welcomeText = "Hello! Send me a document, video, photo or audio file and " +
		"I'll give you a shareable link.\n\n" +
		"/batch — collect several files under one link\n" +
		"/secure — protect a file with a PIN\n" +
		"/help — show this message"

	helpText = "Send me a file to get a shareable link.\n\n" +
		"/batch — start collecting files, /done to finish\n" +
		"/secure — create a PIN-protected link\n" +
		"/cancel — abort the current flow"

	unknownCommandText = "I don't know that command. Try /help."

	// One message for not-found, expired and wrong-owner alike, so holding
	// an invalid reference reveals nothing about whether it ever existed.
	invalidLinkText = "This link is invalid or has expired. Please ask for a new one."

	genericErrorText = "Sorry, something went wrong. Please try again."
)

// --- /start and resolution ---

func (d *Dispatcher) handleStart(ctx context.Context, msg *telegram.Message, param string, sess *session.Session) {
	kind, ref := service.ClassifyReference(param)

	switch kind {
	case service.RefWelcome:
		d.reply(ctx, msg.Chat.ID, welcomeText)
	case service.RefFile:
		d.deliverFile(ctx, msg, ref)
	case service.RefBatch:
		d.deliverBatch(ctx, msg, ref)
	case service.RefSecure:
		d.discardPending(ctx, sess)
		sess.Reset()
		sess.Mode = session.ModeAwaitPINVerify
		sess.SecureToken = ref
		d.reply(ctx, msg.Chat.ID, "This file is protected. Send me the PIN to receive it.")
	case service.RefRelay:
		d.sendRedirect(ctx, msg.Chat.ID, ref)
	}
}

func (d *Dispatcher) deliverFile(ctx context.Context, msg *telegram.Message, token string) {
	rec, err := d.registry.Resolve(ctx, token, msg.From.ID)
	if err != nil {
		d.replyResolveError(ctx, msg.Chat.ID, token, err)
		return
	}
	d.deliver(ctx, msg.Chat.ID, rec)
}

func (d *Dispatcher) deliverBatch(ctx context.Context, msg *telegram.Message, batchID string) {
	items, err := d.batches.Resolve(ctx, batchID, msg.From.ID)
	if err != nil {
		d.replyResolveError(ctx, msg.Chat.ID, batchID, err)
		return
	}

	for _, item := range items {
		if item.Err != nil {
			slog.Warn("batch member unavailable", "batch", batchID, "token", item.Token, "error", item.Err)
			d.reply(ctx, msg.Chat.ID, "One file in this batch is no longer available, skipping it.")
			continue
		}
		d.deliver(ctx, msg.Chat.ID, item.Record)
	}
}

// deliver sends a stored artifact back into a chat and schedules the sent
// message for auto-deletion.
func (d *Dispatcher) deliver(ctx context.Context, chatID int64, rec *database.FileRecord) {
	att := telegram.Attachment{
		Kind:   telegram.FileKind(rec.Kind),
		FileID: rec.FileID,
		Name:   rec.OriginalName,
	}

	sent, err := d.tr.SendFile(ctx, chatID, att, "Here is your file: "+rec.OriginalName)
	if err != nil {
		slog.Error("delivery failed", "token", rec.Token, "chat", chatID, "error", err)
		d.reply(ctx, chatID, "Sorry, could not send the file: "+err.Error())
		return
	}

	d.scheduleAutoDelete(chatID, sent.MessageID)
}

func (d *Dispatcher) replyResolveError(ctx context.Context, chatID int64, ref string, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound),
		errors.Is(err, service.ErrExpired),
		errors.Is(err, service.ErrForbidden):
		slog.Info("resolution rejected", "ref", ref, "reason", err)
		d.reply(ctx, chatID, invalidLinkText)
	default:
		slog.Error("resolution failed", "ref", ref, "error", err)
		d.reply(ctx, chatID, genericErrorText)
	}
}

// sendRedirect bootstraps the two-step redirect flow: the bare reference is
// embedded into the verification collaborator's URL, and the collaborator is
// expected to bounce the principal back with a prefixed start parameter.
func (d *Dispatcher) sendRedirect(ctx context.Context, chatID int64, ref string) {
	link := fmt.Sprintf("%s?%s=%s", d.cfg.VerifyBaseURL, d.redirectKey(ctx, ref), url.QueryEscape(ref))

	rows := [][]telegram.InlineKeyboardButton{
		{{Text: "Download File", URL: link}},
	}
	if d.cfg.HelpURL != "" {
		rows = append(rows, []telegram.InlineKeyboardButton{{Text: "How to Download", URL: d.cfg.HelpURL}})
	}

	markup := &telegram.InlineKeyboardMarkup{InlineKeyboard: rows}
	if _, err := d.tr.SendMessage(ctx, chatID, "To get your file, please complete a short task:", markup); err != nil {
		slog.Error("failed to send redirect", "chat", chatID, "error", err)
	}
}

// redirectKey picks the collaborator query parameter matching what the bare
// reference names. Unknown references still go out as token= and fail
// cleanly on the return trip.
func (d *Dispatcher) redirectKey(ctx context.Context, ref string) string {
	if ok, err := d.registry.Has(ctx, ref); err == nil && ok {
		return "token"
	}
	if ok, err := d.batches.Has(ctx, ref); err == nil && ok {
		return "batch_token"
	}
	if ok, err := d.gate.Has(ctx, ref); err == nil && ok {
		return "secure_token"
	}
	return "token"
}

// --- uploads ---

func (d *Dispatcher) handleFile(ctx context.Context, msg *telegram.Message, att telegram.Attachment, sess *session.Session) {
	switch sess.Mode {
	case session.ModeSecureAwaitFile:
		rehosted, channelMsgID, err := d.rehost(ctx, msg)
		if err != nil {
			slog.Error("re-host failed", "principal", msg.From.ID, "error", err)
			d.reply(ctx, msg.Chat.ID, "Error storing your file: "+err.Error())
			return
		}
		sess.Pending = &session.PendingFile{Attachment: rehosted, ChannelMessageID: channelMsgID}
		sess.Mode = session.ModeSecureAwaitPIN
		d.reply(ctx, msg.Chat.ID, "Got it. Now send me a numeric PIN to protect this file.")

	case session.ModeBatch:
		rec, ok := d.rehostAndMint(ctx, msg)
		if !ok {
			return
		}
		sess.AppendToken(rec.Token)
		d.reply(ctx, msg.Chat.ID, fmt.Sprintf(
			"Added %s (%d so far). Send more files, or /done to finish.",
			rec.OriginalName, len(sess.BatchTokens)))

	default:
		rec, ok := d.rehostAndMint(ctx, msg)
		if !ok {
			return
		}
		d.reply(ctx, msg.Chat.ID,
			"Your file has been saved! Here's your link:\n\n👉 "+d.shareLink(rec.Token))
	}
}

// rehost forwards the upload into the storage channel and extracts the
// channel's durable file handle from the forwarded copy.
func (d *Dispatcher) rehost(ctx context.Context, msg *telegram.Message) (telegram.Attachment, int, error) {
	fwd, err := d.tr.ForwardMessage(ctx, d.cfg.PublicChannelID, msg.Chat.ID, msg.MessageID)
	if err != nil {
		return telegram.Attachment{}, 0, fmt.Errorf("failed to re-host file: %w", err)
	}

	att, ok := telegram.ExtractAttachment(fwd)
	if !ok {
		return telegram.Attachment{}, 0, errors.New("re-hosted message carries no file")
	}
	return att, fwd.MessageID, nil
}

// rehostAndMint runs the full upload path. A re-host failure aborts before
// anything is persisted; a persistence failure after a successful re-host is
// compensated by deleting the re-hosted channel copy so no orphan remains.
func (d *Dispatcher) rehostAndMint(ctx context.Context, msg *telegram.Message) (*database.FileRecord, bool) {
	att, channelMsgID, err := d.rehost(ctx, msg)
	if err != nil {
		slog.Error("re-host failed", "principal", msg.From.ID, "error", err)
		d.reply(ctx, msg.Chat.ID, "Error storing your file: "+err.Error())
		return nil, false
	}

	rec, err := d.registry.Mint(ctx, service.FileMeta{
		FileID:       att.FileID,
		OriginalName: att.Name,
		Kind:         string(att.Kind),
		OwnerID:      msg.From.ID,
	})
	if err != nil {
		slog.Error("mint failed", "principal", msg.From.ID, "error", err)
		if derr := d.tr.DeleteMessage(ctx, d.cfg.PublicChannelID, channelMsgID); derr != nil {
			slog.Error("failed to compensate re-hosted file", "channel_message", channelMsgID, "error", derr)
		}
		d.reply(ctx, msg.Chat.ID, "Sorry, could not save your file. Please try again.")
		return nil, false
	}

	return rec, true
}

// --- text under an interactive mode ---

func (d *Dispatcher) handleText(ctx context.Context, msg *telegram.Message, sess *session.Session) {
	switch sess.Mode {
	case session.ModeSecureAwaitPIN:
		d.handleSecurePIN(ctx, msg, sess)
	case session.ModeAwaitPINVerify:
		d.handlePINVerify(ctx, msg, sess)
	case session.ModeSecureAwaitFile:
		d.reply(ctx, msg.Chat.ID, "Please send the file you want to protect, or /cancel.")
	case session.ModeBatch:
		d.reply(ctx, msg.Chat.ID, "Send me files to add to the batch, then /done to finish.")
	default:
		d.reply(ctx, msg.Chat.ID, "Send me a file to get a shareable link. Use /help for more.")
	}
}

func (d *Dispatcher) handleSecurePIN(ctx context.Context, msg *telegram.Message, sess *session.Session) {
	pin := strings.TrimSpace(msg.Text)
	if err := service.ValidatePIN(pin); err != nil {
		d.reply(ctx, msg.Chat.ID, "The PIN must contain digits only. Try again:")
		return
	}

	pending := sess.Pending
	rec, err := d.gate.Create(ctx, service.FileMeta{
		FileID:       pending.Attachment.FileID,
		OriginalName: pending.Attachment.Name,
		Kind:         string(pending.Attachment.Kind),
		OwnerID:      msg.From.ID,
	}, pin)
	if err != nil {
		slog.Error("secure link creation failed", "principal", msg.From.ID, "error", err)
		if derr := d.tr.DeleteMessage(ctx, d.cfg.PublicChannelID, pending.ChannelMessageID); derr != nil {
			slog.Error("failed to compensate re-hosted file", "channel_message", pending.ChannelMessageID, "error", derr)
		}
		sess.Reset()
		d.reply(ctx, msg.Chat.ID, "Sorry, could not create the secure link. Start over with /secure.")
		return
	}

	sess.Reset()
	d.reply(ctx, msg.Chat.ID,
		"Secure link created! Anyone opening it will need the PIN.\n\n👉 "+d.shareLink(rec.Token))
}

func (d *Dispatcher) handlePINVerify(ctx context.Context, msg *telegram.Message, sess *session.Session) {
	pin := strings.TrimSpace(msg.Text)

	rec, err := d.gate.Verify(ctx, sess.SecureToken, pin)
	switch {
	case err == nil:
		sess.Reset()
		d.deliver(ctx, msg.Chat.ID, &database.FileRecord{
			Token:        rec.Token,
			FileID:       rec.FileID,
			OriginalName: rec.OriginalName,
			Kind:         rec.Kind,
			OwnerID:      rec.OwnerID,
			CreatedAt:    rec.CreatedAt,
		})
	case errors.Is(err, service.ErrWrongPIN):
		sess.PINAttempts++
		if sess.PINAttempts >= d.cfg.PINMaxAttempts {
			sess.Reset()
			d.reply(ctx, msg.Chat.ID, "Too many wrong attempts. Open the link again to retry.")
			return
		}
		d.reply(ctx, msg.Chat.ID, "Wrong PIN. Try again:")
	case errors.Is(err, service.ErrNotFound):
		sess.Reset()
		d.reply(ctx, msg.Chat.ID, invalidLinkText)
	default:
		slog.Error("pin verification failed", "principal", msg.From.ID, "error", err)
		sess.Reset()
		d.reply(ctx, msg.Chat.ID, genericErrorText)
	}
}

// --- interactive flows ---

func (d *Dispatcher) handleBatchBegin(ctx context.Context, msg *telegram.Message, sess *session.Session) {
	d.discardPending(ctx, sess)
	sess.BeginBatch()

	markup := &telegram.InlineKeyboardMarkup{InlineKeyboard: [][]telegram.InlineKeyboardButton{
		{
			{Text: "Done", CallbackData: "batch_done"},
			{Text: "Cancel", CallbackData: "batch_cancel"},
		},
	}}
	if _, err := d.tr.SendMessage(ctx, msg.Chat.ID,
		"Batch mode: send me the files one by one, then press Done (or use /done).", markup); err != nil {
		slog.Error("failed to send batch prompt", "chat", msg.Chat.ID, "error", err)
	}
}

func (d *Dispatcher) handleBatchDone(ctx context.Context, msg *telegram.Message, sess *session.Session) {
	if sess.Mode != session.ModeBatch {
		d.reply(ctx, msg.Chat.ID, "No batch in progress. Use /batch to start one.")
		return
	}

	batchID, err := d.batches.Commit(ctx, msg.From.ID, sess.Tokens())
	switch {
	case err == nil:
		sess.Reset()
		d.reply(ctx, msg.Chat.ID, "Batch saved! Share this link:\n\n👉 "+d.shareLink(batchID))
	case errors.Is(err, service.ErrNothingToCommit):
		d.reply(ctx, msg.Chat.ID, "The batch is empty — send some files first, or /cancel.")
	default:
		slog.Error("batch commit failed", "owner", msg.From.ID, "error", err)
		d.reply(ctx, msg.Chat.ID, genericErrorText)
	}
}

func (d *Dispatcher) handleCancel(ctx context.Context, msg *telegram.Message, sess *session.Session) {
	if sess.Mode == session.ModeNone {
		d.reply(ctx, msg.Chat.ID, "Nothing to cancel.")
		return
	}
	d.discardPending(ctx, sess)
	sess.Reset()
	d.reply(ctx, msg.Chat.ID, "Cancelled.")
}

func (d *Dispatcher) handleSecureBegin(ctx context.Context, msg *telegram.Message, sess *session.Session) {
	d.discardPending(ctx, sess)
	sess.Reset()
	sess.Mode = session.ModeSecureAwaitFile
	d.reply(ctx, msg.Chat.ID, "Send me the file you want to protect with a PIN. /cancel to abort.")
}

// discardPending deletes the re-hosted channel copy held by an unfinished
// secure flow. Must run before any reset that would drop the reference;
// without it the copy lingers in the storage channel with no record
// pointing at it.
func (d *Dispatcher) discardPending(ctx context.Context, sess *session.Session) {
	if sess.Pending == nil {
		return
	}
	if err := d.tr.DeleteMessage(ctx, d.cfg.PublicChannelID, sess.Pending.ChannelMessageID); err != nil {
		slog.Warn("failed to discard re-hosted copy",
			"channel_message", sess.Pending.ChannelMessageID, "error", err)
	}
}

// shareLink builds the public deep link for a reference.
func (d *Dispatcher) shareLink(ref string) string {
	return fmt.Sprintf("https://t.me/%s?start=%s", d.cfg.PublicChannelName, ref)
}
