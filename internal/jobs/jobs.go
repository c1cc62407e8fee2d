// Package jobs runs the background maintenance schedule: expired-token
// sweeps and the FX inverse-pair reconciliation check.
package jobs

import (
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"assetvision/internal/auth"
	"assetvision/internal/metrics"
	"assetvision/internal/models"
	"assetvision/internal/repository"
)

// inverseTolerance is the relative drift allowed between a rate and the
// reciprocal of its inverse before the pair is reported as inconsistent.
var inverseTolerance = decimal.RequireFromString("0.000001")

// Scheduler owns the cron schedule for background maintenance.
type Scheduler struct {
	cron         *cron.Cron
	tokenManager *auth.TokenManager
	rateRepo     *repository.RateRepository
	log          zerolog.Logger
}

// NewScheduler creates a new Scheduler.
func NewScheduler(tm *auth.TokenManager, rateRepo *repository.RateRepository, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:         cron.New(),
		tokenManager: tm,
		rateRepo:     rateRepo,
		log:          log.With().Str("component", "jobs").Logger(),
	}
}

// Start registers and starts the background jobs.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("@hourly", s.sweepExpiredTokens); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("@every 6h", s.reconcileRates); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop stops the scheduler, waiting for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// sweepExpiredTokens deletes expired sessions.
func (s *Scheduler) sweepExpiredTokens() {
	count, err := s.tokenManager.CleanExpired()
	if err != nil {
		s.log.Error().Err(err).Msg("expired token sweep failed")
		return
	}
	if count > 0 {
		s.log.Info().Int64("count", count).Msg("removed expired tokens")
	}
}

// reconcileRates verifies that every rate has an inverse row whose value is
// the reciprocal of its own, within tolerance. Rate create/update keeps the
// pair in step transactionally, but single-row deletes and hand edits can
// still leave orphans; this sweep reports them.
func (s *Scheduler) reconcileRates() {
	rates, err := s.rateRepo.GetAll()
	if err != nil {
		s.log.Error().Err(err).Msg("rate reconciliation failed")
		return
	}

	bySymbol := make(map[string]*models.ExchangeRate, len(rates))
	for _, r := range rates {
		bySymbol[r.Symbol] = r
	}

	inconsistent := 0
	for _, r := range rates {
		inverse, ok := bySymbol[r.InverseSymbol()]
		if !ok {
			inconsistent++
			s.log.Warn().
				Str("symbol", r.Symbol).
				Str("missing", r.InverseSymbol()).
				Msg("rate has no inverse pair")
			continue
		}
		if r.LastRate.IsZero() || inverse.LastRate.IsZero() {
			inconsistent++
			s.log.Warn().Str("symbol", r.Symbol).Msg("rate pair contains a zero rate")
			continue
		}

		// |rate * inverse - 1| <= tolerance
		drift := r.LastRate.Mul(inverse.LastRate).Sub(decimal.NewFromInt(1)).Abs()
		if drift.GreaterThan(inverseTolerance) {
			inconsistent++
			s.log.Warn().
				Str("symbol", r.Symbol).
				Str("rate", r.LastRate.String()).
				Str("inverse", inverse.LastRate.String()).
				Str("drift", drift.String()).
				Msg("rate pair drifted")
		}
	}

	metrics.RateInconsistencies.Set(float64(inconsistent))
	if inconsistent == 0 {
		s.log.Debug().Int("rates", len(rates)).Msg("rate reconciliation clean")
	}
}
