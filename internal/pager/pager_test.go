package pager

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solsticelabs/chatpulse/internal/bus"
)

// fakeClient records rendering calls and serves as the platform surface for
// engine tests.
type fakeClient struct {
	mu       sync.Mutex
	nextID   int
	sent     []string
	edits    []string
	deleted  []int
	navAdds  []int
	navClear []int
}

func (f *fakeClient) SendMessage(_ context.Context, _ int64, text string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.sent = append(f.sent, text)
	return f.nextID, nil
}

func (f *fakeClient) EditMessage(_ context.Context, _ int64, _ int, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, text)
	return nil
}

func (f *fakeClient) DeleteMessage(_ context.Context, _ int64, messageID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeClient) AttachNav(_ context.Context, _ int64, messageID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.navAdds = append(f.navAdds, messageID)
	return nil
}

func (f *fakeClient) ClearNav(_ context.Context, _ int64, messageID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.navClear = append(f.navClear, messageID)
	return nil
}

func (f *fakeClient) ResolveUser(_ context.Context, _, userID int64) string {
	return fmt.Sprintf("User %d", userID)
}

func (f *fakeClient) editCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.edits)
}

func (f *fakeClient) lastEdit() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.edits) == 0 {
		return ""
	}
	return f.edits[len(f.edits)-1]
}

func (f *fakeClient) navClearCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.navClear)
}

func pages(n int) []Page {
	out := make([]Page, n)
	for i := range out {
		out[i] = Page{Text: fmt.Sprintf("page %d", i)}
	}
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestEngine_EmptyPagesIsNoop(t *testing.T) {
	fc := &fakeClient{}
	e := New(fc)

	require.NoError(t, e.Display(context.Background(), nil, 1, 100))
	assert.Empty(t, fc.sent)
	assert.Equal(t, 0, e.ActiveSessions())
}

func TestEngine_SinglePageNoSession(t *testing.T) {
	fc := &fakeClient{}
	e := New(fc)

	require.NoError(t, e.Display(context.Background(), pages(1), 1, 100))
	assert.Equal(t, []string{"page 0"}, fc.sent)
	assert.Empty(t, fc.navAdds)
	assert.Equal(t, 0, e.ActiveSessions())
}

func TestEngine_MultiPageNavigation(t *testing.T) {
	fc := &fakeClient{}
	e := New(fc)
	e.SetTimeout(time.Second)

	require.NoError(t, e.Display(context.Background(), pages(3), 1, 100))
	require.Equal(t, 1, e.ActiveSessions())
	require.Equal(t, []int{1}, fc.navAdds)

	e.Dispatch(bus.NavEvent{UserID: 1, ChatID: 100, MessageID: 1, Direction: bus.DirNext})
	waitFor(t, func() bool { return fc.editCount() == 1 })
	assert.Equal(t, "page 1", fc.lastEdit())

	e.Dispatch(bus.NavEvent{UserID: 1, ChatID: 100, MessageID: 1, Direction: bus.DirNext})
	waitFor(t, func() bool { return fc.editCount() == 2 })
	assert.Equal(t, "page 2", fc.lastEdit())

	e.Dispatch(bus.NavEvent{UserID: 1, ChatID: 100, MessageID: 1, Direction: bus.DirPrev})
	waitFor(t, func() bool { return fc.editCount() == 3 })
	assert.Equal(t, "page 1", fc.lastEdit())
}

func TestEngine_ClampsAtEnds(t *testing.T) {
	fc := &fakeClient{}
	e := New(fc)
	e.SetTimeout(250 * time.Millisecond)

	require.NoError(t, e.Display(context.Background(), pages(2), 1, 100))

	// Prev on the first page is a silent no-op.
	e.Dispatch(bus.NavEvent{UserID: 1, ChatID: 100, MessageID: 1, Direction: bus.DirPrev})

	e.Dispatch(bus.NavEvent{UserID: 1, ChatID: 100, MessageID: 1, Direction: bus.DirNext})
	waitFor(t, func() bool { return fc.editCount() == 1 })

	// Next on the last page is a silent no-op.
	e.Dispatch(bus.NavEvent{UserID: 1, ChatID: 100, MessageID: 1, Direction: bus.DirNext})
	waitFor(t, func() bool { return e.ActiveSessions() == 0 })
	assert.Equal(t, 1, fc.editCount())
}

func TestEngine_BoundaryPressResetsTimeout(t *testing.T) {
	fc := &fakeClient{}
	e := New(fc)
	e.SetTimeout(400 * time.Millisecond)

	require.NoError(t, e.Display(context.Background(), pages(2), 1, 100))

	e.Dispatch(bus.NavEvent{UserID: 1, ChatID: 100, MessageID: 1, Direction: bus.DirNext})
	waitFor(t, func() bool { return fc.editCount() == 1 })

	// Pressing next on the last page re-renders nothing, but it is still the
	// owner interacting, so the deadline keeps refreshing.
	for i := 0; i < 4; i++ {
		time.Sleep(200 * time.Millisecond)
		e.Dispatch(bus.NavEvent{UserID: 1, ChatID: 100, MessageID: 1, Direction: bus.DirNext})
		require.Equal(t, 1, e.ActiveSessions())
	}
	assert.Equal(t, 1, fc.editCount())

	waitFor(t, func() bool { return e.ActiveSessions() == 0 })
}

func TestEngine_IgnoresNonOwner(t *testing.T) {
	fc := &fakeClient{}
	e := New(fc)
	e.SetTimeout(200 * time.Millisecond)

	require.NoError(t, e.Display(context.Background(), pages(3), 1, 100))

	e.Dispatch(bus.NavEvent{UserID: 99, ChatID: 100, MessageID: 1, Direction: bus.DirNext})
	waitFor(t, func() bool { return e.ActiveSessions() == 0 })
	assert.Equal(t, 0, fc.editCount())
}

func TestEngine_IgnoresOtherMessages(t *testing.T) {
	fc := &fakeClient{}
	e := New(fc)
	e.SetTimeout(200 * time.Millisecond)

	require.NoError(t, e.Display(context.Background(), pages(3), 1, 100))

	e.Dispatch(bus.NavEvent{UserID: 1, ChatID: 100, MessageID: 42, Direction: bus.DirNext})
	waitFor(t, func() bool { return e.ActiveSessions() == 0 })
	assert.Equal(t, 0, fc.editCount())
}

func TestEngine_TimeoutClearsNav(t *testing.T) {
	fc := &fakeClient{}
	e := New(fc)
	e.SetTimeout(100 * time.Millisecond)

	require.NoError(t, e.Display(context.Background(), pages(2), 1, 100))
	require.Equal(t, 1, e.ActiveSessions())

	waitFor(t, func() bool { return e.ActiveSessions() == 0 })
	assert.Equal(t, 1, fc.navClearCount())

	// No further renders after teardown.
	e.Dispatch(bus.NavEvent{UserID: 1, ChatID: 100, MessageID: 1, Direction: bus.DirNext})
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, fc.editCount())
}

func TestEngine_AcceptedInputResetsTimeout(t *testing.T) {
	fc := &fakeClient{}
	e := New(fc)
	e.SetTimeout(300 * time.Millisecond)

	require.NoError(t, e.Display(context.Background(), pages(5), 1, 100))

	// Keep navigating past the original deadline; the session must survive
	// because the deadline refreshes on each accepted input.
	for i := 0; i < 3; i++ {
		time.Sleep(150 * time.Millisecond)
		e.Dispatch(bus.NavEvent{UserID: 1, ChatID: 100, MessageID: 1, Direction: bus.DirNext})
		waitFor(t, func() bool { return fc.editCount() == i+1 })
		require.Equal(t, 1, e.ActiveSessions())
	}

	waitFor(t, func() bool { return e.ActiveSessions() == 0 })
}

func TestEngine_ConcurrentSessionsIndependent(t *testing.T) {
	fc := &fakeClient{}
	e := New(fc)
	e.SetTimeout(time.Second)

	require.NoError(t, e.Display(context.Background(), pages(2), 1, 100))
	require.NoError(t, e.Display(context.Background(), pages(2), 2, 200))
	require.Equal(t, 2, e.ActiveSessions())

	e.Dispatch(bus.NavEvent{UserID: 2, ChatID: 200, MessageID: 2, Direction: bus.DirNext})
	waitFor(t, func() bool { return fc.editCount() == 1 })
	assert.Equal(t, 2, e.ActiveSessions())
}
