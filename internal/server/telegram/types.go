package telegram

import "strings"

// Update is one inbound event from the Bot API.
type Update struct {
	UpdateID      int            `json:"update_id"`
	Message       *Message       `json:"message,omitempty"`
	CallbackQuery *CallbackQuery `json:"callback_query,omitempty"`
}

// Message is an inbound or outbound chat message.
type Message struct {
	MessageID int         `json:"message_id"`
	From      *User       `json:"from,omitempty"`
	Chat      Chat        `json:"chat"`
	Text      string      `json:"text,omitempty"`
	Document  *Document   `json:"document,omitempty"`
	Video     *Video      `json:"video,omitempty"`
	Photo     []PhotoSize `json:"photo,omitempty"`
	Audio     *Audio      `json:"audio,omitempty"`
	Voice     *Voice      `json:"voice,omitempty"`
}

type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

type Chat struct {
	ID int64 `json:"id"`
}

type Document struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
}

type Video struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name,omitempty"`
}

// PhotoSize is one resolution of an inbound photo; the platform sends
// them smallest first.
type PhotoSize struct {
	FileID string `json:"file_id"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type Audio struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name,omitempty"`
}

type Voice struct {
	FileID string `json:"file_id"`
}

type CallbackQuery struct {
	ID      string   `json:"id"`
	From    *User    `json:"from"`
	Message *Message `json:"message,omitempty"`
	Data    string   `json:"data,omitempty"`
}

type InlineKeyboardMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton `json:"inline_keyboard"`
}

type InlineKeyboardButton struct {
	Text         string `json:"text"`
	URL          string `json:"url,omitempty"`
	CallbackData string `json:"callback_data,omitempty"`
}

// FileKind classifies an artifact by the platform attachment type that
// carries it. The registry and dispatcher treat kinds opaquely; only
// attachment extraction and delivery care.
type FileKind string

const (
	KindDocument FileKind = "document"
	KindVideo    FileKind = "video"
	KindPhoto    FileKind = "photo"
	KindAudio    FileKind = "audio"
	KindVoice    FileKind = "voice"
	KindAPK      FileKind = "apk"
)

// Attachment is the kind-agnostic view of one artifact: what it is, the
// platform handle for it, and a display name.
type Attachment struct {
	Kind   FileKind
	FileID string
	Name   string
}

// ExtractAttachment pulls the artifact out of a message, whatever kind it
// arrived as. Returns false when the message carries no supported attachment.
func ExtractAttachment(m *Message) (Attachment, bool) {
	switch {
	case m.Document != nil:
		kind := KindDocument
		if strings.HasSuffix(strings.ToLower(m.Document.FileName), ".apk") {
			kind = KindAPK
		}
		return Attachment{Kind: kind, FileID: m.Document.FileID, Name: displayName(m.Document.FileName, kind)}, true
	case m.Video != nil:
		return Attachment{Kind: KindVideo, FileID: m.Video.FileID, Name: displayName(m.Video.FileName, KindVideo)}, true
	case len(m.Photo) > 0:
		// Largest resolution is last.
		p := m.Photo[len(m.Photo)-1]
		return Attachment{Kind: KindPhoto, FileID: p.FileID, Name: displayName("", KindPhoto)}, true
	case m.Audio != nil:
		return Attachment{Kind: KindAudio, FileID: m.Audio.FileID, Name: displayName(m.Audio.FileName, KindAudio)}, true
	case m.Voice != nil:
		return Attachment{Kind: KindVoice, FileID: m.Voice.FileID, Name: displayName("", KindVoice)}, true
	}
	return Attachment{}, false
}

func displayName(name string, kind FileKind) string {
	if name == "" {
		return "unnamed_" + string(kind)
	}
	return name
}
