// File: internal/infra/sched/cron.go
package sched

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"sentinelzap/internal/config"
	"sentinelzap/internal/usecase"
)

// Scheduler drives the periodic jobs: warm-up batches every few hours, the
// midnight counter reset, and the hourly risk decay.
type Scheduler struct {
	cron   *cron.Cron
	cfg    config.SchedulerConfig
	rot    usecase.RotationUseCase
	warmup usecase.WarmupUseCase
	log    *zerolog.Logger
}

func NewScheduler(cfg config.SchedulerConfig, rot usecase.RotationUseCase, warmup usecase.WarmupUseCase, logger *zerolog.Logger) *Scheduler {
	schedLog := logger.With().Str("component", "scheduler").Logger()
	return &Scheduler{
		cron:   cron.New(),
		cfg:    cfg,
		rot:    rot,
		warmup: warmup,
		log:    &schedLog,
	}
}

// Start registers the jobs and starts the cron loop. Each tick runs under a
// bounded timeout so a stuck job cannot block the next occurrence forever.
func (s *Scheduler) Start(ctx context.Context) error {
	jobs := []struct {
		name    string
		spec    string
		timeout time.Duration
		run     func(ctx context.Context)
	}{
		{"warmup_tick", s.cfg.WarmupCron, 30 * time.Minute, s.warmupTick},
		{"daily_reset", s.cfg.DailyResetCron, 5 * time.Minute, s.dailyReset},
		{"risk_decay", s.cfg.RiskDecayCron, 5 * time.Minute, s.riskDecay},
	}

	for _, j := range jobs {
		j := j
		_, err := s.cron.AddFunc(j.spec, func() {
			tickCtx, cancel := context.WithTimeout(ctx, j.timeout)
			defer cancel()
			start := time.Now()
			j.run(tickCtx)
			s.log.Debug().Str("job", j.name).Dur("took", time.Since(start)).Msg("tick done")
		})
		if err != nil {
			return err
		}
		s.log.Info().Str("job", j.name).Str("spec", j.spec).Msg("job registered")
	}

	s.cron.Start()
	return nil
}

// Stop halts scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) warmupTick(ctx context.Context) {
	s.warmup.OnWarmupTick(ctx)
}

// dailyReset zeroes the per-day counters and advances every warming chip to
// its next day, in that order: day advancement reads fresh counters.
func (s *Scheduler) dailyReset(ctx context.Context) {
	if _, err := s.rot.ResetAllDailyCounters(ctx); err != nil {
		s.log.Error().Err(err).Msg("daily counter reset")
	}
	if err := s.warmup.ResetWarmupDailyCounters(ctx); err != nil {
		s.log.Error().Err(err).Msg("warmup day advance")
	}
}

func (s *Scheduler) riskDecay(ctx context.Context) {
	if err := s.rot.DecayRiskScores(ctx); err != nil {
		s.log.Error().Err(err).Msg("risk decay")
	}
}
