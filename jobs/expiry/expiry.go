package expiry

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tyreaid/roadaid/infra/logger"
)

// Sweeper is the slice of the dispatch manager the job calls. It returns the
// number of requests it closed.
type Sweeper interface {
	ExpirePending(ctx context.Context, ttl time.Duration) (int, error)
}

// Config parameterises the TTL sweep.
type Config struct {
	Enabled bool `json:"enabled"`
	// TTLMinutes is how long a PENDING request stays open before the sweep
	// cancels it.
	TTLMinutes int `json:"ttl_minutes"`
	// Schedule is a cron expression; the default runs every five minutes.
	Schedule string `json:"schedule"`
}

// SetDefaults applies sane defaults. Requests expire after four hours.
func (c *Config) SetDefaults() {
	if c.TTLMinutes <= 0 {
		c.TTLMinutes = 240
	}
	if c.Schedule == "" {
		c.Schedule = "*/5 * * * *"
	}
}

// Validate checks the cron expression.
func (c Config) Validate() error {
	if _, err := cron.ParseStandard(c.Schedule); err != nil {
		return fmt.Errorf("expiry: bad schedule %q: %w", c.Schedule, err)
	}
	if c.TTLMinutes <= 0 {
		return fmt.Errorf("expiry: ttl must be positive")
	}
	return nil
}

// Job runs the TTL sweep on a cron schedule.
type Job struct {
	cron    *cron.Cron
	sweeper Sweeper
	ttl     time.Duration
	log     logger.Logger
}

// New creates the sweep job without starting it.
func New(sweeper Sweeper, cfg Config) (*Job, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	j := &Job{
		cron:    cron.New(),
		sweeper: sweeper,
		ttl:     time.Duration(cfg.TTLMinutes) * time.Minute,
		log:     logger.New("expiry-job"),
	}
	if _, err := j.cron.AddFunc(cfg.Schedule, j.sweep); err != nil {
		return nil, err
	}
	return j, nil
}

// Start triggers sweeps on the schedule and blocks until the context is
// canceled.
func (j *Job) Start(ctx context.Context) error {
	j.log.Infof("expiry sweep started, ttl=%s", j.ttl)
	j.cron.Start()
	<-ctx.Done()
	stopCtx := j.cron.Stop()
	<-stopCtx.Done()
	j.log.Infof("expiry sweep stopped")
	return ctx.Err()
}

// TTL returns the configured time-to-live.
func (j *Job) TTL() time.Duration { return j.ttl }

func (j *Job) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	n, err := j.sweeper.ExpirePending(ctx, j.ttl)
	if err != nil {
		j.log.Errorf("sweep error after %d expiries: %v", n, err)
	}
}
