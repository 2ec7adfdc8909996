package observer

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/solsticelabs/chatpulse/internal/bus"
	"github.com/solsticelabs/chatpulse/internal/pager"
	"github.com/solsticelabs/chatpulse/internal/platform"
	"github.com/solsticelabs/chatpulse/internal/store"
	"github.com/solsticelabs/chatpulse/internal/tracker"
)

const (
	// topLimit is how many ranked entries a leaderboard query fetches.
	topLimit = 50
	// pageSize is how many entries go on one leaderboard page.
	pageSize = 5
	// warnTTL is how long a flood warning stays up before self-deleting.
	warnTTL = 5 * time.Second
)

// Observer ingests platform activity, drives the trackers and the counter
// store, and serves the stats and leaderboard commands.
type Observer struct {
	store  store.CounterStore
	client platform.Client
	pages  *pager.Engine
	rate   *tracker.RateWindow
	voice  *tracker.VoiceSessions

	warnTTL time.Duration
}

func New(cs store.CounterStore, client platform.Client, pages *pager.Engine) *Observer {
	return &Observer{
		store:   cs,
		client:  client,
		pages:   pages,
		rate:    tracker.NewRateWindow(),
		voice:   tracker.NewVoiceSessions(),
		warnTTL: warnTTL,
	}
}

// SetWarnTTL overrides the warning lifetime (for testing).
func (o *Observer) SetWarnTTL(d time.Duration) {
	o.warnTTL = d
}

// SweepRateWindows drops stale per-user rate windows; scheduled periodically
// by the gateway.
func (o *Observer) SweepRateWindows() {
	if n := o.rate.Sweep(time.Now()); n > 0 {
		log.Debug().Str("component", "observer").Int("removed", n).Msg("swept rate windows")
	}
}

// HandleEvent dispatches one bus event.
func (o *Observer) HandleEvent(ctx context.Context, ev bus.Event) {
	switch {
	case ev.Message != nil:
		o.handleMessage(ctx, *ev.Message)
	case ev.Voice != nil:
		o.handleVoice(ctx, *ev.Voice)
	case ev.VoiceEnded != nil:
		o.handleVoiceEnded(ctx, *ev.VoiceEnded)
	case ev.Nav != nil:
		o.pages.Dispatch(*ev.Nav)
	}
}

func (o *Observer) handleMessage(ctx context.Context, ev bus.MessageEvent) {
	if ev.FromBot {
		return
	}

	// Commands count as activity too; they go through the same counter and
	// flood check before being answered.
	if err := o.store.IncrMessages(ctx, ev.UserID); err != nil {
		log.Error().Str("component", "observer").Err(err).
			Int64("user", ev.UserID).Msg("increment messages failed")
	}

	if o.rate.RecordAndCheck(ev.UserID, ev.At) {
		o.sendFloodWarning(ctx, ev)
	}

	if cmd, arg := parseCommand(ev.Text); cmd != "" {
		o.handleCommand(ctx, cmd, arg, ev)
	}
}

func (o *Observer) sendFloodWarning(ctx context.Context, ev bus.MessageEvent) {
	name := o.client.ResolveUser(ctx, ev.ChatID, ev.UserID)
	text := fmt.Sprintf("⚠️ %s, you are sending messages too fast!", name)

	msgID, err := o.client.SendMessage(ctx, ev.ChatID, text)
	if err != nil {
		log.Warn().Str("component", "observer").Err(err).Msg("send flood warning failed")
		return
	}

	// Self-expiring: best effort, a failed delete is not escalated.
	time.AfterFunc(o.warnTTL, func() {
		if err := o.client.DeleteMessage(context.Background(), ev.ChatID, msgID); err != nil {
			log.Debug().Str("component", "observer").Err(err).Msg("delete flood warning failed")
		}
	})
}

func (o *Observer) handleVoice(ctx context.Context, ev bus.VoiceStateEvent) {
	switch {
	case ev.Before == "" && ev.After != "":
		o.voice.Join(ev.UserID, ev.After, ev.At)
	case ev.Before != "" && ev.After == "":
		elapsed, ok := o.voice.Leave(ev.UserID, ev.At)
		if !ok {
			return
		}
		o.accrueVoice(ctx, ev.UserID, elapsed)
	default:
		// Channel-to-channel moves and mute toggles do not affect sessions.
	}
}

// handleVoiceEnded closes every session still open in the ended channel.
func (o *Observer) handleVoiceEnded(ctx context.Context, ev bus.VoiceEndedEvent) {
	for userID, elapsed := range o.voice.DrainChannel(ev.Channel, ev.At) {
		o.accrueVoice(ctx, userID, elapsed)
	}
}

func (o *Observer) accrueVoice(ctx context.Context, userID int64, elapsed time.Duration) {
	secs := int64(elapsed / time.Second)
	if err := o.store.AddVoiceSeconds(ctx, userID, secs); err != nil {
		log.Error().Str("component", "observer").Err(err).
			Int64("user", userID).Msg("accrue voice seconds failed")
	}
}

func (o *Observer) handleCommand(ctx context.Context, cmd, arg string, ev bus.MessageEvent) {
	switch cmd {
	case "stats":
		o.cmdStats(ctx, arg, ev)
	case "topchat":
		o.cmdTop(ctx, store.MetricMessages, ev)
	case "topvc":
		o.cmdTop(ctx, store.MetricVoice, ev)
	}
}

func (o *Observer) cmdStats(ctx context.Context, arg string, ev bus.MessageEvent) {
	target := ev.UserID
	if arg != "" {
		if id, err := strconv.ParseInt(arg, 10, 64); err == nil {
			target = id
		}
	}

	stats, err := o.store.UserStats(ctx, target)
	if err != nil {
		log.Error().Str("component", "observer").Err(err).
			Int64("user", target).Msg("read user stats failed")
		return
	}

	name := o.client.ResolveUser(ctx, ev.ChatID, target)
	text := fmt.Sprintf("Stats for %s\nTotal messages sent: %s\nTotal voice time: %s",
		name, formatCount(stats.Messages), formatVoiceTime(stats.VoiceSeconds))

	if _, err := o.client.SendMessage(ctx, ev.ChatID, text); err != nil {
		log.Warn().Str("component", "observer").Err(err).Msg("send stats failed")
	}
}

func (o *Observer) cmdTop(ctx context.Context, metric store.Metric, ev bus.MessageEvent) {
	top, err := o.store.Top(ctx, metric, topLimit)
	if err != nil {
		log.Error().Str("component", "observer").Err(err).
			Str("metric", string(metric)).Msg("fetch leaderboard failed")
		return
	}

	pages := o.buildPages(ctx, metric, ev.ChatID, top)
	if err := o.pages.Display(ctx, pages, ev.UserID, ev.ChatID); err != nil {
		log.Warn().Str("component", "observer").Err(err).Msg("display leaderboard failed")
	}
}

func (o *Observer) buildPages(ctx context.Context, metric store.Metric, chatID int64, top []store.Entry) []pager.Page {
	title := "Top Chat Users"
	value := func(v int64) string { return formatCount(v) + " messages" }
	if metric == store.MetricVoice {
		title = "Top Voice Users"
		value = formatVoiceTime
	}

	if len(top) == 0 {
		return []pager.Page{{Text: title + "\nNo data available yet."}}
	}

	var pages []pager.Page
	for start := 0; start < len(top); start += pageSize {
		end := start + pageSize
		if end > len(top) {
			end = len(top)
		}

		var sb strings.Builder
		sb.WriteString(title)
		for i, entry := range top[start:end] {
			name := o.client.ResolveUser(ctx, chatID, entry.UserID)
			fmt.Fprintf(&sb, "\n#%d %s — %s", start+i+1, name, value(entry.Value))
		}
		pages = append(pages, pager.Page{Text: sb.String()})
	}
	return pages
}

// Broadcast renders the chat leaderboard once, non-interactively, into the
// given chat. Used by the periodic broadcast job.
func (o *Observer) Broadcast(ctx context.Context, chatID int64) error {
	top, err := o.store.Top(ctx, store.MetricMessages, topLimit)
	if err != nil {
		return fmt.Errorf("fetch broadcast leaderboard: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("Top Chat Users")
	if len(top) == 0 {
		sb.WriteString("\nNo data available yet.")
	}
	for i, entry := range top {
		name := o.client.ResolveUser(ctx, chatID, entry.UserID)
		fmt.Fprintf(&sb, "\n#%d %s — %s messages", i+1, name, formatCount(entry.Value))
	}

	if _, err := o.client.SendMessage(ctx, chatID, sb.String()); err != nil {
		return fmt.Errorf("send broadcast: %w", err)
	}
	return nil
}

// parseCommand extracts a recognized command and its first argument from a
// message. Commands are "/name" or "/name@botname" followed by arguments.
func parseCommand(text string) (cmd, arg string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", ""
	}

	fields := strings.Fields(text[1:])
	if len(fields) == 0 {
		return "", ""
	}

	name := fields[0]
	if at := strings.Index(name, "@"); at >= 0 {
		name = name[:at]
	}

	switch name {
	case "stats", "topchat", "topvc":
		if len(fields) > 1 {
			arg = fields[1]
		}
		return name, arg
	}
	return "", ""
}

func formatVoiceTime(seconds int64) string {
	return fmt.Sprintf("%dh %dm %ds", seconds/3600, seconds%3600/60, seconds%60)
}

// formatCount renders an integer with thousands separators.
func formatCount(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}

	var sb strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			sb.WriteRune(',')
		}
		sb.WriteRune(r)
	}
	if neg {
		return "-" + sb.String()
	}
	return sb.String()
}
