package bus

import "time"

// Direction of a pagination navigation input.
type Direction string

const (
	DirPrev Direction = "prev"
	DirNext Direction = "next"
)

// MessageEvent is a text message sent in a chat.
type MessageEvent struct {
	UserID    int64
	ChatID    int64
	MessageID int
	Text      string
	FromBot   bool
	At        time.Time
}

// VoiceStateEvent is a voice-channel state transition for a user.
// Before/After are channel ids; empty means "not in a channel".
type VoiceStateEvent struct {
	UserID int64
	Before string
	After  string
	At     time.Time
}

// VoiceEndedEvent signals that a voice channel was closed for everyone
// still in it.
type VoiceEndedEvent struct {
	Channel string
	At      time.Time
}

// NavEvent is a navigation input targeting a paginated message.
type NavEvent struct {
	UserID    int64
	ChatID    int64
	MessageID int
	Direction Direction
}

// Event is a tagged union of platform events. Exactly one field is set.
type Event struct {
	Message    *MessageEvent
	Voice      *VoiceStateEvent
	VoiceEnded *VoiceEndedEvent
	Nav        *NavEvent
}
