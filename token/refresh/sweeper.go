package refresh

import (
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Sweeper periodically deletes expired token records. Revoked but
// unexpired records are kept: their ids are what makes reuse detection
// possible.
type Sweeper struct {
	repo   Repo
	cron   *cron.Cron
	logger zerolog.Logger
}

// NewSweeper schedules DeleteExpired runs with the given cron spec
// (e.g. "@hourly").
func NewSweeper(repo Repo, schedule string, logger zerolog.Logger) (*Sweeper, error) {
	s := &Sweeper{
		repo:   repo,
		cron:   cron.New(),
		logger: logger,
	}
	if _, err := s.cron.AddFunc(schedule, s.sweep); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop halts scheduling; a sweep already in flight runs to completion.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Sweeper) sweep() {
	deleted, err := s.repo.DeleteExpired(NowTimeFunc())
	if err != nil {
		s.logger.Error().Err(err).Msg("expired token sweep failed")
		return
	}
	if deleted > 0 {
		s.logger.Info().Int("deleted", deleted).Msg("swept expired refresh tokens")
	}
}
