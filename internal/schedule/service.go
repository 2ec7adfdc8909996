package schedule

import (
	"fmt"
	"sync"
	"time"

	rcron "github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Service runs named periodic jobs on cron schedules. Job panics and errors
// stay inside the job; one misbehaving job does not take down the others.
type Service struct {
	mu     sync.Mutex
	cron   *rcron.Cron
	names  map[rcron.EntryID]string
	active bool
}

func NewService() *Service {
	return &Service{
		cron:  rcron.New(),
		names: make(map[rcron.EntryID]string),
	}
}

// AddJob registers a named job with a cron spec ("@every 5m", "0 * * * *").
func (s *Service) AddJob(name, spec string, fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.cron.AddFunc(spec, func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Str("component", "schedule").
					Str("job", name).Interface("panic", r).Msg("job panicked")
			}
		}()
		log.Debug().Str("component", "schedule").Str("job", name).Msg("running job")
		fn()
	})
	if err != nil {
		return fmt.Errorf("register job %s (%s): %w", name, spec, err)
	}
	s.names[id] = name
	return nil
}

// Jobs returns the names of registered jobs.
func (s *Service) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.names))
	for _, entry := range s.cron.Entries() {
		if name, ok := s.names[entry.ID]; ok {
			names = append(names, name)
		}
	}
	return names
}

func (s *Service) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return
	}
	s.cron.Start()
	s.active = true
	log.Info().Str("component", "schedule").Int("jobs", len(s.names)).Msg("started")
}

// Stop halts scheduling and waits briefly for running jobs to drain.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	s.mu.Unlock()

	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(5 * time.Second):
		log.Warn().Str("component", "schedule").Msg("stop timeout waiting for running jobs")
	}
	log.Info().Str("component", "schedule").Msg("stopped")
}
