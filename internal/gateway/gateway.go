package gateway

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/solsticelabs/chatpulse/internal/bus"
	"github.com/solsticelabs/chatpulse/internal/config"
	"github.com/solsticelabs/chatpulse/internal/observer"
	"github.com/solsticelabs/chatpulse/internal/pager"
	"github.com/solsticelabs/chatpulse/internal/platform"
	"github.com/solsticelabs/chatpulse/internal/schedule"
	"github.com/solsticelabs/chatpulse/internal/store"
)

// Adapter is the platform adapter lifecycle the gateway manages. The
// concrete telegram adapter satisfies it; tests inject fakes.
type Adapter interface {
	platform.Client
	Start(ctx context.Context) error
	Stop() error
}

// AdapterFactory creates the platform adapter (allows mocking in tests).
type AdapterFactory func(cfg config.TelegramConfig, b *bus.EventBus) (Adapter, error)

func defaultAdapterFactory(cfg config.TelegramConfig, b *bus.EventBus) (Adapter, error) {
	return platform.NewTelegram(cfg, b)
}

// Options for creating a Gateway.
type Options struct {
	AdapterFactory AdapterFactory
	Store          store.CounterStore // overrides config-driven store selection
	SignalChan     chan os.Signal     // for testing signal handling
}

// Gateway wires the store, the platform adapter, the trackers and the
// schedule together and runs the event dispatch loop.
type Gateway struct {
	cfg      *config.Config
	bus      *bus.EventBus
	store    store.CounterStore
	adapter  Adapter
	pages    *pager.Engine
	observer *observer.Observer
	sched    *schedule.Service
	sigCh    chan os.Signal
}

// New creates a Gateway with default options.
func New(cfg *config.Config) (*Gateway, error) {
	return NewWithOptions(cfg, Options{})
}

// NewWithOptions creates a Gateway with custom options for testing.
func NewWithOptions(cfg *config.Config, opts Options) (*Gateway, error) {
	g := &Gateway{cfg: cfg}

	g.bus = bus.NewEventBus(config.DefaultBufSize)

	cs := opts.Store
	if cs == nil {
		if cfg.Store.RedisURL != "" {
			redisStore, err := store.NewRedisStore(cfg.Store.RedisURL)
			if err != nil {
				return nil, fmt.Errorf("create redis store: %w", err)
			}
			cs = redisStore
		} else {
			log.Warn().Str("component", "gateway").
				Msg("no redis url configured, counters are in-memory only")
			cs = store.NewMemoryStore()
		}
	}
	g.store = cs

	factory := opts.AdapterFactory
	if factory == nil {
		factory = defaultAdapterFactory
	}
	adapter, err := factory(cfg.Telegram, g.bus)
	if err != nil {
		_ = cs.Close()
		return nil, fmt.Errorf("create platform adapter: %w", err)
	}
	g.adapter = adapter

	g.pages = pager.New(adapter)
	g.observer = observer.New(cs, adapter, g.pages)

	g.sched = schedule.NewService()
	if cfg.Broadcast.Enabled && cfg.Broadcast.ChatID != 0 {
		chatID := cfg.Broadcast.ChatID
		err := g.sched.AddJob("leaderboard-broadcast", config.DefaultBroadcastSpec, func() {
			if err := g.observer.Broadcast(context.Background(), chatID); err != nil {
				log.Warn().Str("component", "gateway").Err(err).Msg("broadcast failed")
			}
		})
		if err != nil {
			_ = cs.Close()
			return nil, err
		}
	}
	if err := g.sched.AddJob("rate-window-sweep", config.DefaultSweepSpec, g.observer.SweepRateWindows); err != nil {
		_ = cs.Close()
		return nil, err
	}

	g.sigCh = opts.SignalChan

	return g, nil
}

// Run starts the adapter, the schedule and the dispatch loop, then blocks
// until SIGINT/SIGTERM.
func (g *Gateway) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := g.adapter.Start(ctx); err != nil {
		return fmt.Errorf("start platform adapter: %w", err)
	}

	g.sched.Start()

	go g.dispatchLoop(ctx)

	log.Info().Str("component", "gateway").Msg("running")

	sigCh := g.sigCh
	if sigCh == nil {
		sigCh = make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	}
	<-sigCh

	log.Info().Str("component", "gateway").Msg("shutting down")
	return g.Shutdown()
}

func (g *Gateway) dispatchLoop(ctx context.Context) {
	for {
		select {
		case ev := <-g.bus.Events:
			g.observer.HandleEvent(ctx, ev)
		case <-ctx.Done():
			return
		}
	}
}

func (g *Gateway) Shutdown() error {
	g.sched.Stop()
	if err := g.adapter.Stop(); err != nil {
		log.Warn().Str("component", "gateway").Err(err).Msg("adapter stop warning")
	}
	if err := g.store.Close(); err != nil {
		log.Warn().Str("component", "gateway").Err(err).Msg("store close warning")
	}
	log.Info().Str("component", "gateway").Msg("shutdown complete")
	return nil
}
