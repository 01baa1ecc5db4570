package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/tyreaid/roadaid/core/dispatch"
	"github.com/tyreaid/roadaid/core/logger"
)

// Config defines the polling contract clients use to stay approximately
// consistent with server state. Consistency is eventual with bounded
// staleness equal to the poll interval, never stronger.
type Config struct {
	// IntervalSeconds is the base poll cadence. The mobile dashboards
	// refresh every 30 seconds.
	IntervalSeconds int `json:"interval_seconds"`
	// MaxBackoffSeconds caps the doubling applied after repeated failures.
	MaxBackoffSeconds int `json:"max_backoff_seconds"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.IntervalSeconds <= 0 {
		c.IntervalSeconds = 30
	}
	if c.MaxBackoffSeconds <= 0 {
		c.MaxBackoffSeconds = 8 * c.IntervalSeconds
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.MaxBackoffSeconds < c.IntervalSeconds {
		return fmt.Errorf("max backoff %ds below poll interval %ds", c.MaxBackoffSeconds, c.IntervalSeconds)
	}
	return nil
}

// Interval returns the base cadence as a duration.
func (c Config) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// NextPollDeadline computes when the client should poll next. A single
// transient failure retries at the base cadence; each further consecutive
// failure doubles the wait up to the configured cap, so a struggling server
// is not hammered.
func NextPollDeadline(lastPoll time.Time, consecutiveFailures int, cfg Config) time.Time {
	cfg.SetDefaults()
	wait := cfg.Interval()
	max := time.Duration(cfg.MaxBackoffSeconds) * time.Second
	for i := 1; i < consecutiveFailures; i++ {
		wait *= 2
		if wait >= max {
			wait = max
			break
		}
	}
	return lastPoll.Add(wait)
}

// FetchFunc pulls the provider's current visible set from the server.
type FetchFunc func(ctx context.Context) (dispatch.Visibility, error)

// Poller drives the refresh loop for one provider client. On transient fetch
// failure it keeps the last-known state and retries on the backoff schedule;
// it never blocks past its context.
type Poller struct {
	fetch    FetchFunc
	cfg      Config
	log      logger.Logger
	failures int
	known    map[string]struct{}
	last     dispatch.Visibility
	haveLast bool
}

// NewPoller creates a Poller.
func NewPoller(fetch FetchFunc, cfg Config, log logger.Logger) *Poller {
	cfg.SetDefaults()
	return &Poller{fetch: fetch, cfg: cfg, log: log, known: make(map[string]struct{})}
}

// Poll performs one refresh and returns the requests that became visible
// since the previous successful poll, in the server's order. On failure the
// previous state is retained and an empty diff is returned.
func (p *Poller) Poll(ctx context.Context) ([]string, error) {
	vis, err := p.fetch(ctx)
	if err != nil {
		p.failures++
		p.log.Warnf("poll failed (%d in a row): %v", p.failures, err)
		return nil, err
	}
	p.failures = 0
	var fresh []string
	next := make(map[string]struct{}, len(vis.Pending))
	for _, req := range vis.Pending {
		next[req.ID] = struct{}{}
		if _, seen := p.known[req.ID]; !seen {
			fresh = append(fresh, req.ID)
		}
	}
	p.known = next
	p.last = vis
	p.haveLast = true
	return fresh, nil
}

// Last returns the most recent successfully fetched view.
func (p *Poller) Last() (dispatch.Visibility, bool) { return p.last, p.haveLast }

// Failures returns the current consecutive failure count.
func (p *Poller) Failures() int { return p.failures }

// Run polls until the context is cancelled, honouring the backoff schedule.
// Each successful poll invokes onFresh with the newly visible request ids,
// if any.
func (p *Poller) Run(ctx context.Context, onFresh func([]string)) {
	for {
		last := time.Now()
		if fresh, err := p.Poll(ctx); err == nil && len(fresh) > 0 && onFresh != nil {
			onFresh(fresh)
		}
		deadline := NextPollDeadline(last, p.failures, p.cfg)
		timer := time.NewTimer(time.Until(deadline))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}
