package scheduler

import (
	"context"
	"real-estate-catalog/internal/catalog"
	"real-estate-catalog/internal/cleanup"
	"real-estate-catalog/internal/config"
	"real-estate-catalog/internal/logging"
	"real-estate-catalog/internal/recommend"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const (
	jobTimeout     = 5 * time.Minute
	sweepSpec      = "@every 10m"
	warmupFeatured = 8
)

// ViewPurger deletes expired view events
type ViewPurger interface {
	PurgeViews(ctx context.Context, cfg cleanup.PurgeConfig) (*cleanup.PurgeResult, error)
}

// FeaturedLister is warmed by the warm-up job
type FeaturedLister interface {
	Featured(ctx context.Context, limit int) (catalog.Page, error)
}

// TrendingLister is warmed by the warm-up job
type TrendingLister interface {
	Trending(ctx context.Context, limit int) (recommend.Result, error)
}

// Sweeper drops idle rate-limit state
type Sweeper interface {
	Sweep() int
}

// Deps are the services the scheduled jobs act on. Nil members disable
// their job.
type Deps struct {
	Purger   ViewPurger
	Featured FeaturedLister
	Trending TrendingLister
	Limiter  Sweeper
}

// Scheduler runs the periodic maintenance jobs
type Scheduler struct {
	cron      *cron.Cron
	deps      Deps
	config    *config.Config
	log       *logrus.Logger
	mu        sync.Mutex
	isRunning bool
}

// NewScheduler creates a new scheduler in the configured timezone
func NewScheduler(cfg *config.Config, deps Deps, log *logrus.Logger) *Scheduler {
	log = logging.OrDefault(log)
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.WithError(err).WithField("timezone", cfg.Timezone).Warn("Unknown timezone, scheduling in UTC")
		loc = time.UTC
	}
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(loc)),
		deps:   deps,
		config: cfg,
		log:    log,
	}
}

// Start registers the jobs and starts the cron loop
func (s *Scheduler) Start() error {
	if !s.config.Scheduler.Enabled {
		s.log.Info("Scheduler disabled in configuration")
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}

	if s.deps.Purger != nil {
		if _, err := s.cron.AddFunc(s.config.Scheduler.RetentionSpec, s.job("view_retention", s.runRetention)); err != nil {
			return err
		}
	}
	if s.deps.Featured != nil || s.deps.Trending != nil {
		if _, err := s.cron.AddFunc(s.config.Scheduler.WarmupSpec, s.job("cache_warmup", s.RunWarmup)); err != nil {
			return err
		}
	}
	if s.deps.Limiter != nil {
		if _, err := s.cron.AddFunc(sweepSpec, func() {
			if n := s.deps.Limiter.Sweep(); n > 0 {
				s.log.WithField("keys", n).Debug("Rate limiter swept")
			}
		}); err != nil {
			return err
		}
	}

	s.cron.Start()
	s.isRunning = true
	s.log.WithFields(logrus.Fields{
		"retention": s.config.Scheduler.RetentionSpec,
		"warmup":    s.config.Scheduler.WarmupSpec,
		"jobs":      len(s.cron.Entries()),
	}).Info("Scheduler started")
	return nil
}

// Stop stops the cron loop and waits for running jobs
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		<-s.cron.Stop().Done()
		s.isRunning = false
		s.log.Info("Scheduler stopped")
	}
}

func (s *Scheduler) job(name string, fn func(ctx context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		start := time.Now()
		logger := s.log.WithField("job", name)
		if err := fn(ctx); err != nil {
			logger.WithError(err).Error("Scheduled job failed")
			return
		}
		logger.WithField("duration", time.Since(start).String()).Info("Scheduled job completed")
	}
}

func (s *Scheduler) runRetention(ctx context.Context) error {
	_, err := s.RunRetention(ctx)
	return err
}

// RunRetention purges view events older than the configured retention
func (s *Scheduler) RunRetention(ctx context.Context) (*cleanup.PurgeResult, error) {
	return s.deps.Purger.PurgeViews(ctx, cleanup.PurgeConfig{
		Retention:    s.config.Analytics.GetViewRetention(),
		MaxDeletions: s.config.Cleanup.MaxDeletions,
		DryRun:       s.config.Cleanup.DryRun,
	})
}

// RunWarmup recomputes the cached featured and trending lists
func (s *Scheduler) RunWarmup(ctx context.Context) error {
	if s.deps.Featured != nil {
		if _, err := s.deps.Featured.Featured(ctx, warmupFeatured); err != nil {
			return err
		}
	}
	if s.deps.Trending != nil {
		if _, err := s.deps.Trending.Trending(ctx, s.config.Analytics.TrendingLimit); err != nil {
			return err
		}
	}
	return nil
}
