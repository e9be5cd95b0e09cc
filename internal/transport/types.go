package transport

import (
	"context"
	"errors"
)

type UpdateKind string

const (
	UpdateMessage  UpdateKind = "message"
	UpdateCallback UpdateKind = "callback"
)

type Update struct {
	Kind     UpdateKind
	Message  *Message
	Callback *Callback
}

type Message struct {
	ID           int
	ChatID       int64
	FromID       int64
	FromUsername string
	Text         string
	ReplyTo      *RepliedMessage
}

// RepliedMessage is the message an inbound message replies to. The bot uses
// it for force-reply confirm flows and for photo re-broadcast.
type RepliedMessage struct {
	MessageID int
	Text      string
	Caption   string
	PhotoID   string // platform file id of the largest photo, "" if none
}

type Callback struct {
	ID        string
	FromID    int64
	Username  string
	ChatID    int64
	MessageID int
	Data      string
}

type ChatTarget struct {
	ChatID int64
}

type MessageRef struct {
	ChatID    int64
	MessageID int
}

// Photo is an outbound photo payload: either a public URL or a
// platform-specific file id obtained from an inbound message.
type Photo struct {
	URL    string
	FileID string
}

type Button struct {
	Text string
	URL  string // external link button
	Data string // callback button
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
	Buttons        [][]Button
	ForceReply     bool
}

// Benign edit outcomes. Adapters classify platform errors into these so
// callers can treat "nothing changed" and "target is gone" as non-failures.
var (
	ErrNotModified    = errors.New("message content not modified")
	ErrEditTargetGone = errors.New("message to edit not found")
)

type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
	SendPhoto(ctx context.Context, to ChatTarget, photo Photo, caption string, opt *SendOptions) (MessageRef, error)
	EditText(ctx context.Context, ref MessageRef, text string, opt *SendOptions) error
	EditCaption(ctx context.Context, ref MessageRef, caption string, opt *SendOptions) error
	EditMedia(ctx context.Context, ref MessageRef, photo Photo, caption string, opt *SendOptions) error
	AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error

	// IsChannelMember reports whether the user currently belongs to the
	// given public channel (@username form).
	IsChannelMember(ctx context.Context, channel string, userID int64) (bool, error)
}
