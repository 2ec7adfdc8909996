package platform

import "context"

// Client is the chat-platform surface consumed by the observer and the
// pagination engine. Implementations deliver best-effort rendering; callers
// decide which failures to swallow.
type Client interface {
	// SendMessage posts text to a chat and returns the message id.
	SendMessage(ctx context.Context, chatID int64, text string) (int, error)
	// EditMessage replaces the text of an existing message.
	EditMessage(ctx context.Context, chatID int64, messageID int, text string) error
	// DeleteMessage removes a message.
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	// AttachNav adds previous/next navigation affordances to a message.
	AttachNav(ctx context.Context, chatID int64, messageID int) error
	// ClearNav removes navigation affordances from a message.
	ClearNav(ctx context.Context, chatID int64, messageID int) error
	// ResolveUser returns a display name for a user in a chat, falling back
	// to "User {id}" when the platform cannot resolve it.
	ResolveUser(ctx context.Context, chatID, userID int64) string
}
