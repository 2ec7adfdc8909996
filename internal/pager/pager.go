package pager

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/solsticelabs/chatpulse/internal/bus"
	"github.com/solsticelabs/chatpulse/internal/platform"
)

// DefaultTimeout is the inactivity window after which a pagination session
// tears itself down.
const DefaultTimeout = 60 * time.Second

// Page is one pre-rendered page of a paginated display.
type Page struct {
	Text string
}

// sessionKey identifies a displayed message; message ids are only unique
// within a chat.
type sessionKey struct {
	chatID int64
	msgID  int
}

type session struct {
	id      string
	owner   int64
	chatID  int64
	msgID   int
	pages   []Page
	current int
	input   chan bus.NavEvent
}

// Engine renders page sequences and runs one bounded-lifetime navigation
// session per multi-page display. Inputs are routed by message id; anything
// not addressed to a live session is ignored.
type Engine struct {
	client  platform.Client
	timeout time.Duration

	mu       sync.Mutex
	sessions map[sessionKey]*session
}

func New(client platform.Client) *Engine {
	return &Engine{
		client:   client,
		timeout:  DefaultTimeout,
		sessions: make(map[sessionKey]*session),
	}
}

// SetTimeout overrides the inactivity timeout (for testing).
func (e *Engine) SetTimeout(d time.Duration) {
	e.timeout = d
}

// Display renders the page sequence in a chat. Empty input is a no-op. A
// single page is rendered once with no session. Otherwise page 0 is sent,
// navigation affordances attached, and a session goroutine owns the rest of
// the interaction until the inactivity timeout fires.
func (e *Engine) Display(ctx context.Context, pages []Page, owner, chatID int64) error {
	if len(pages) == 0 {
		return nil
	}

	msgID, err := e.client.SendMessage(ctx, chatID, pages[0].Text)
	if err != nil {
		return err
	}

	if len(pages) == 1 {
		return nil
	}

	if err := e.client.AttachNav(ctx, chatID, msgID); err != nil {
		log.Warn().Str("component", "pager").Err(err).Msg("attach nav failed")
		return nil
	}

	s := &session{
		id:     uuid.NewString(),
		owner:  owner,
		chatID: chatID,
		msgID:  msgID,
		pages:  pages,
		input:  make(chan bus.NavEvent, 4),
	}

	e.mu.Lock()
	e.sessions[sessionKey{chatID: chatID, msgID: msgID}] = s
	e.mu.Unlock()

	go e.run(ctx, s)
	return nil
}

// Dispatch routes a navigation input to the session displaying that message,
// if any. Unaddressed input is left for other consumers.
func (e *Engine) Dispatch(ev bus.NavEvent) {
	e.mu.Lock()
	s, ok := e.sessions[sessionKey{chatID: ev.ChatID, msgID: ev.MessageID}]
	e.mu.Unlock()
	if !ok {
		return
	}
	select {
	case s.input <- ev:
	default:
		// Session is busy re-rendering; dropping beats blocking the loop.
	}
}

// ActiveSessions reports the number of live pagination sessions.
func (e *Engine) ActiveSessions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sessions)
}

func (e *Engine) run(ctx context.Context, s *session) {
	defer e.teardown(ctx, s)

	timer := time.NewTimer(e.timeout)
	defer timer.Stop()

	for {
		select {
		case ev := <-s.input:
			// Only a recognized direction from the session owner counts as
			// input; everything else leaves the timer running. A press past
			// either end still counts, it just does not re-render.
			if ev.UserID != s.owner {
				continue
			}
			if ev.Direction != bus.DirPrev && ev.Direction != bus.DirNext {
				continue
			}
			e.turn(ctx, s, ev.Direction)
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(e.timeout)
		case <-timer.C:
			return
		case <-ctx.Done():
			return
		}
	}
}

// turn applies one navigation input. Steps past either end are clamped:
// nothing is re-rendered but the input still happened.
func (e *Engine) turn(ctx context.Context, s *session, dir bus.Direction) {
	next := s.current
	switch dir {
	case bus.DirNext:
		if s.current >= len(s.pages)-1 {
			return
		}
		next = s.current + 1
	case bus.DirPrev:
		if s.current <= 0 {
			return
		}
		next = s.current - 1
	}

	if err := e.client.EditMessage(ctx, s.chatID, s.msgID, s.pages[next].Text); err != nil {
		log.Warn().Str("component", "pager").Str("session", s.id).Err(err).Msg("re-render failed")
		return
	}
	s.current = next
}

func (e *Engine) teardown(ctx context.Context, s *session) {
	e.mu.Lock()
	delete(e.sessions, sessionKey{chatID: s.chatID, msgID: s.msgID})
	e.mu.Unlock()

	if err := e.client.ClearNav(ctx, s.chatID, s.msgID); err != nil {
		log.Debug().Str("component", "pager").Str("session", s.id).Err(err).Msg("clear nav failed")
	}
}
