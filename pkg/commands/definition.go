package commands

import "context"

type Handler func(ctx context.Context, req Request) error

// Check gates a command. A false result means the command is silently
// skipped.
type Check func(req Request) bool

type Definition struct {
	Name string
	// Usage is shown without the prefix, e.g. "py (code)".
	Usage   string
	Short   string
	Long    string
	Check   Check
	Handler Handler
}

type MessageKind int

const (
	KindDefault MessageKind = iota
	KindPinsAdd
)

// Request is one inbound chat message as seen by the dispatcher.
type Request struct {
	ChannelID  string
	MessageID  string
	GuildID    string
	SenderID   string
	SenderName string
	Text       string
	Kind       MessageKind

	// Permissions is the sender's permission bitset in ChannelID. It is
	// only meaningful when PermissionsKnown is set.
	Permissions      int64
	PermissionsKnown bool

	// Args is everything after the command name, set by the dispatcher.
	Args string

	Reply func(text string) error
}

func reply(req Request, text string) error {
	if req.Reply == nil {
		return nil
	}
	return req.Reply(text)
}

// Bridge is the outbound half of the chat connection.
type Bridge interface {
	SendText(ctx context.Context, channelID, text string) error
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	SetPresence(status string) error
}
