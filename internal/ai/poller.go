package ai

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/rs/zerolog"
)

const (
	// overallPollTimeout bounds the wall-clock life of one poll sequence.
	overallPollTimeout = 120 * time.Second
	// maxPollCalls bounds the number of status checks independently of time.
	maxPollCalls = 60
)

// TaskFetcher issues a single status check for an async task.
type TaskFetcher interface {
	PollTask(ctx context.Context, taskID string) (*Task, error)
}

// PollerOptions configures a TaskPoller. Sleep and Now exist so tests can
// drive the loop on a virtual clock.
type PollerOptions struct {
	Fetcher        TaskFetcher
	Logger         *zerolog.Logger
	OverallTimeout time.Duration
	MaxCalls       int
	Sleep          func(ctx context.Context, d time.Duration) error
	Now            func() time.Time
}

// TaskPoller drives an async task to a terminal state: delay, deadline
// check, status call, repeat. Owned by a single in-flight generation;
// never shared.
type TaskPoller struct {
	fetcher        TaskFetcher
	logger         zerolog.Logger
	overallTimeout time.Duration
	maxCalls       int
	sleep          func(ctx context.Context, d time.Duration) error
	now            func() time.Time
}

// NewTaskPoller constructs a poller with production defaults for any
// option left unset.
func NewTaskPoller(opts PollerOptions) *TaskPoller {
	p := &TaskPoller{
		fetcher:        opts.Fetcher,
		logger:         zerolog.New(io.Discard),
		overallTimeout: opts.OverallTimeout,
		maxCalls:       opts.MaxCalls,
		sleep:          opts.Sleep,
		now:            opts.Now,
	}
	if opts.Logger != nil {
		p.logger = *opts.Logger
	}
	if p.overallTimeout <= 0 {
		p.overallTimeout = overallPollTimeout
	}
	if p.maxCalls <= 0 {
		p.maxCalls = maxPollCalls
	}
	if p.sleep == nil {
		p.sleep = sleepContext
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// Await polls until the task succeeds, fails, or a bound is hit. On
// success it returns the generated image URL. Transient network failures
// are absorbed into widened backoff; everything else is terminal.
func (p *TaskPoller) Await(ctx context.Context, taskID string) (string, error) {
	start := p.now()
	interval := initialPollInterval
	consecutiveFailures := 0
	calls := 0

	for {
		if err := p.sleep(ctx, interval); err != nil {
			return "", err
		}
		if p.now().Sub(start) >= p.overallTimeout {
			p.logger.Warn().Str("task_id", taskID).Int("calls", calls).Msg("poll deadline exceeded")
			return "", ErrTimeout
		}
		if calls >= p.maxCalls {
			p.logger.Warn().Str("task_id", taskID).Int("calls", calls).Msg("poll call cap exhausted")
			return "", ErrTimeout
		}
		calls++

		task, err := p.fetcher.PollTask(ctx, taskID)
		if err != nil {
			var transient *TransientPollError
			if errors.As(err, &transient) {
				consecutiveFailures++
				interval = NextInterval(interval, consecutiveFailures)
				p.logger.Debug().Str("task_id", taskID).Int("call", calls).
					Int("consecutive_failures", consecutiveFailures).
					Dur("next_interval", interval).
					Err(transient.Err).Msg("transient poll failure")
				continue
			}
			return "", err
		}

		switch task.Status {
		case StatusSucceeded:
			url, ok := task.ResultURL()
			if !ok {
				return "", ErrUnrecognizedResult
			}
			p.logger.Debug().Str("task_id", taskID).Int("calls", calls).Msg("task succeeded")
			return url, nil
		default:
			// PENDING, RUNNING, and any status we have never seen all mean
			// "not done yet"; unknown statuses are bounded by the caps.
			consecutiveFailures = 0
			interval = NextInterval(interval, 0)
			p.logger.Debug().Str("task_id", taskID).Int("call", calls).
				Str("status", string(task.Status)).
				Dur("next_interval", interval).Msg("task still in progress")
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
