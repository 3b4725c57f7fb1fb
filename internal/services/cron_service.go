package services

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/bus-reservation-backend/internal/config"
	"github.com/smarttransit/bus-reservation-backend/internal/models"
)

// Job names
const (
	JobReconcileSeats = "reconcile-seats"
	JobStalePayments  = "stale-payments"
	JobCleanupTokens  = "cleanup-tokens"
	JobCleanupLogins  = "cleanup-login-attempts"
	JobCleanupAudit   = "cleanup-audit-logs"
)

// SeatReconciler rewrites drifted seat counters
type SeatReconciler interface {
	Reconcile() (int64, error)
}

// StalePaymentFinder lists Pending payments older than an age
type StalePaymentFinder interface {
	StalePending(age time.Duration) ([]models.Payment, error)
}

// TokenCleaner removes expired and long-revoked refresh tokens
type TokenCleaner interface {
	Cleanup(now time.Time, revokedFor time.Duration) (int64, error)
}

// JobRun is the outcome of the last run of a job
type JobRun struct {
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Affected  int64         `json:"affected"`
	Error     string        `json:"error,omitempty"`
}

// JobStatus describes a registered job
type JobStatus struct {
	Name    string    `json:"name"`
	Spec    string    `json:"spec"`
	NextRun time.Time `json:"next_run"`
	PrevRun time.Time `json:"prev_run"`
	LastRun *JobRun   `json:"last_run,omitempty"`
}

type job struct {
	spec    string
	entryID cron.EntryID
	run     func() (int64, error)
	last    *JobRun
}

// CronService manages scheduled background jobs
type CronService struct {
	cron   *cron.Cron
	cfg    config.JobsConfig
	logger *logrus.Logger

	mu   sync.Mutex
	jobs map[string]*job
}

// NewCronService creates a new CronService with the maintenance jobs registered
func NewCronService(cfg config.JobsConfig, seats SeatReconciler, payments StalePaymentFinder, tokens TokenCleaner, logger *logrus.Logger) *CronService {
	s := &CronService{
		cron:   cron.New(cron.WithSeconds()),
		cfg:    cfg,
		logger: logger,
		jobs:   make(map[string]*job),
	}

	s.jobs[JobReconcileSeats] = &job{
		spec: cfg.ReconcileSeatsSpec,
		run:  seats.Reconcile,
	}
	s.jobs[JobStalePayments] = &job{
		spec: cfg.StalePaymentsSpec,
		run: func() (int64, error) {
			stale, err := payments.StalePending(cfg.StalePaymentAge)
			if err != nil {
				return 0, err
			}
			for _, p := range stale {
				logger.WithFields(logrus.Fields{
					"payment_code": p.PaymentCode,
					"booking_id":   p.BookingID,
					"created_at":   p.CreatedAt,
				}).Warn("Payment still pending")
			}
			return int64(len(stale)), nil
		},
	}
	s.jobs[JobCleanupTokens] = &job{
		spec: cfg.CleanupTokensSpec,
		run: func() (int64, error) {
			return tokens.Cleanup(time.Now(), cfg.RevokedTokenTTL)
		},
	}
	return s
}

// Register adds a job; it must be called before Start
func (s *CronService) Register(name, spec string, run func() (int64, error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[name] = &job{spec: spec, run: run}
}

// Start schedules every job with a spec and starts the scheduler
func (s *CronService) Start() error {
	s.logger.Info("Starting cron service...")

	for _, name := range s.jobNames() {
		j := s.jobs[name]
		if j.spec == "" {
			s.logger.WithField("job", name).Info("Job has no schedule, manual runs only")
			continue
		}
		name := name
		id, err := s.cron.AddFunc(j.spec, func() { s.execute(name, "CRON") })
		if err != nil {
			return fmt.Errorf("failed to schedule %s job: %w", name, err)
		}
		j.entryID = id
		s.logger.WithFields(logrus.Fields{"job": name, "spec": j.spec}).Info("Job scheduled")
	}

	s.cron.Start()
	s.logger.Info("Cron service started")
	return nil
}

// Stop stops the scheduler and waits for running jobs
func (s *CronService) Stop() {
	s.logger.Info("Stopping cron service...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Cron service stopped")
}

// RunNow runs a job immediately and returns its outcome
func (s *CronService) RunNow(name string) (*JobRun, error) {
	if _, ok := s.jobs[name]; !ok {
		return nil, &models.NotFoundError{Resource: "job", ID: name}
	}
	run := s.execute(name, "MANUAL")
	return &run, nil
}

// GetJobStatus returns the status of registered jobs
func (s *CronService) GetJobStatus() []JobStatus {
	entries := make(map[cron.EntryID]cron.Entry)
	for _, e := range s.cron.Entries() {
		entries[e.ID] = e
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	statuses := make([]JobStatus, 0, len(s.jobs))
	for _, name := range s.jobNames() {
		j := s.jobs[name]
		status := JobStatus{Name: name, Spec: j.spec}
		if e, ok := entries[j.entryID]; ok && j.entryID != 0 {
			status.NextRun = e.Next
			status.PrevRun = e.Prev
		}
		if j.last != nil {
			last := *j.last
			status.LastRun = &last
		}
		statuses = append(statuses, status)
	}
	return statuses
}

func (s *CronService) execute(name, trigger string) JobRun {
	j := s.jobs[name]
	log := s.logger.WithFields(logrus.Fields{"job": name, "trigger": trigger})
	log.Info("Job started")

	run := JobRun{StartedAt: time.Now()}
	affected, err := j.run()
	run.Duration = time.Since(run.StartedAt)
	run.Affected = affected
	if err != nil {
		run.Error = err.Error()
		log.WithError(err).Error("Job failed")
	} else {
		log.WithFields(logrus.Fields{
			"affected": affected,
			"duration": run.Duration.String(),
		}).Info("Job finished")
	}

	s.mu.Lock()
	j.last = &run
	s.mu.Unlock()
	return run
}

func (s *CronService) jobNames() []string {
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
