package cron

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Marga-Ghale/meetup-bot-backend/internal/service"
	"github.com/Marga-Ghale/meetup-bot-backend/internal/types"
)

// jobTimeout bounds a single scheduled run.
const jobTimeout = 30 * time.Minute

// Locker takes a cluster-wide lock so only one instance runs a job.
// *db.RedisDB implements it.
type Locker interface {
	AcquireLock(ctx context.Context, name string, ttl time.Duration) (release func(), ok bool, err error)
}

// Scheduler handles scheduled tasks
type Scheduler struct {
	cron           *cron.Cron
	pairUp         service.PairUpService
	locker         Locker
	pairUpSchedule string
	moodSchedule   string

	ctx    context.Context
	cancel context.CancelFunc
}

type Config struct {
	PairUpSchedule   string
	MoodPollSchedule string
}

// NewScheduler creates a new scheduler. locker may be nil on a single instance.
func NewScheduler(cfg Config, pairUp service.PairUpService, locker Locker) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:           cron.New(),
		pairUp:         pairUp,
		locker:         locker,
		pairUpSchedule: cfg.PairUpSchedule,
		moodSchedule:   cfg.MoodPollSchedule,
		ctx:            ctx,
		cancel:         cancel,
	}
}

// Start registers the jobs and starts the scheduler
func (s *Scheduler) Start() error {
	if s.pairUpSchedule != "" {
		if _, err := s.cron.AddFunc(s.pairUpSchedule, func() {
			log.Println("[Cron] Running scheduled pair-up...")
			s.RunJob(types.RunPairUp)
		}); err != nil {
			return fmt.Errorf("schedule pair-up %q: %w", s.pairUpSchedule, err)
		}
	}

	if s.moodSchedule != "" {
		if _, err := s.cron.AddFunc(s.moodSchedule, func() {
			log.Println("[Cron] Running scheduled mood poll...")
			s.RunJob(types.RunMoodPoll)
		}); err != nil {
			return fmt.Errorf("schedule mood poll %q: %w", s.moodSchedule, err)
		}
	}

	s.cron.Start()
	log.Printf("[Cron] Scheduler started (pair-up %q, mood poll %q)", s.pairUpSchedule, s.moodSchedule)
	return nil
}

// Stop stops the scheduler and waits for a running job to finish
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	log.Println("[Cron] Scheduler stopped")
}

// RunJob runs one job of the given kind under the cluster lock. It returns
// nil when another instance holds the lock.
func (s *Scheduler) RunJob(kind string) *service.RunSummary {
	ctx, cancel := context.WithTimeout(s.ctx, jobTimeout)
	defer cancel()

	if s.locker != nil {
		release, ok, err := s.locker.AcquireLock(ctx, "cron:"+kind, jobTimeout)
		if err != nil {
			log.Printf("[Cron] ⚠️ Lock for %s unavailable, running anyway: %v", kind, err)
		} else if !ok {
			log.Printf("[Cron] Skipping %s: another instance holds the lock", kind)
			return nil
		} else {
			defer release()
		}
	}

	var (
		summary *service.RunSummary
		err     error
	)
	switch kind {
	case types.RunPairUp:
		summary, err = s.pairUp.Run(ctx, types.TriggerSchedule)
	case types.RunMoodPoll:
		summary, err = s.pairUp.SendMoodPoll(ctx, types.TriggerSchedule)
	default:
		log.Printf("[Cron] Unknown job %q", kind)
		return nil
	}
	if err != nil {
		log.Printf("[Cron] ❌ %s failed: %v", kind, err)
		return nil
	}

	log.Printf("[Cron] ✅ %s finished: %d teams, %d failed", kind, summary.TeamsProcessed, summary.TeamsFailed)
	return summary
}
