package reconcile

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Run reconciles immediately and then again cfg.Interval after each cycle
// completes, until a cycle fails or ctx is cancelled. Cycles never overlap.
//
// A failed cycle stops the loop and its error is returned. When
// cfg.MaxRetries is positive, cycles failing with a *ControlPlaneError are
// first retried with exponential backoff.
func (s *Supervisor) Run(ctx context.Context, desired DesiredState) error {
	s.logger.Info("supervisor started",
		"component", "reconcile",
		"interval", s.cfg.Interval,
		"max_retries", s.cfg.MaxRetries,
	)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("supervisor stopped",
				"component", "reconcile",
			)
			return ctx.Err()
		case <-timer.C:
		}

		if err := s.runCycle(ctx, desired); err != nil {
			if ctx.Err() != nil {
				s.logger.Info("supervisor stopped",
					"component", "reconcile",
				)
				return ctx.Err()
			}
			s.logger.Error("reconciliation failed, stopping supervisor",
				"component", "reconcile",
				"error", err,
			)
			return err
		}

		timer.Reset(s.cfg.Interval)
	}
}

// runCycle runs Reconcile under the retry policy.
func (s *Supervisor) runCycle(ctx context.Context, desired DesiredState) error {
	return backoff.RetryNotify(
		func() error {
			err := s.Reconcile(ctx, desired)
			if err != nil && !IsTransient(err) {
				return backoff.Permanent(err)
			}
			return err
		},
		s.retryPolicy(ctx),
		func(err error, next time.Duration) {
			s.logger.Warn("reconciliation failed, retrying",
				"component", "reconcile",
				"error", err,
				"retry_in", next,
			)
		},
	)
}

func (s *Supervisor) retryPolicy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.RetryInitialInterval
	b.MaxInterval = s.cfg.RetryMaxInterval
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.cfg.MaxRetries)), ctx)
}
