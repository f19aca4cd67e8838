// Package saga runs multi-step operations that span stores without a shared
// transaction. Each step pairs an action with an optional compensation; when a step
// fails, compensations for the steps that already completed run in reverse order.
//
// Compensation is best-effort. Its failures never replace the step error: they are
// attached to the returned *FailedError and exposed through CompensationFailures.
package saga

import (
	"context"
	"errors"
	"fmt"
	"time"

	dErrors "roster/pkg/domain-errors"
)

// Step is one unit of a saga.
//
// Indeterminate reports whether an action error leaves the step's effect unknown,
// as with a write that timed out after reaching the remote side. When it returns
// true the step's own compensation runs along with those of the completed steps, so
// Compensate must tolerate the effect never having happened.
type Step struct {
	Name          string
	Action        func(ctx context.Context) error
	Compensate    func(ctx context.Context) error
	Indeterminate func(err error) bool
}

// FailedError is returned when a step fails. It unwraps to the step error.
type FailedError struct {
	Step          string
	Err           error
	Compensations []error
}

func (e *FailedError) Error() string {
	if len(e.Compensations) == 0 {
		return fmt.Sprintf("saga step %q failed: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("saga step %q failed: %v (%d compensation(s) failed)", e.Step, e.Err, len(e.Compensations))
}

func (e *FailedError) Unwrap() error {
	return e.Err
}

// CompensationFailures returns the compensation errors attached to err, if any.
func CompensationFailures(err error) []error {
	var fe *FailedError
	if errors.As(err, &fe) {
		return fe.Compensations
	}
	return nil
}

// Hook observes compensation outcomes; err is nil on success.
type Hook func(ctx context.Context, step string, err error)

// Saga is an ordered list of steps.
type Saga struct {
	steps               []Step
	compensationTimeout time.Duration
	onCompensate        Hook
}

// Option configures a Saga.
type Option func(*Saga)

// WithCompensationTimeout bounds each compensation. Compensations run on a context
// detached from the caller's cancellation, since a cancelled request is the most
// common reason for needing to roll back.
func WithCompensationTimeout(d time.Duration) Option {
	return func(s *Saga) {
		if d > 0 {
			s.compensationTimeout = d
		}
	}
}

// WithCompensationHook registers a callback invoked after each compensation.
func WithCompensationHook(h Hook) Option {
	return func(s *Saga) {
		s.onCompensate = h
	}
}

// New builds a saga.
func New(opts ...Option) *Saga {
	s := &Saga{compensationTimeout: 10 * time.Second}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add appends a step.
func (s *Saga) Add(step Step) *Saga {
	s.steps = append(s.steps, step)
	return s
}

// Run executes the steps in order.
func (s *Saga) Run(ctx context.Context) error {
	completed := make([]Step, 0, len(s.steps))
	for _, step := range s.steps {
		if err := step.Action(ctx); err != nil {
			if step.Indeterminate != nil && step.Indeterminate(err) {
				completed = append(completed, step)
			}
			return &FailedError{
				Step:          step.Name,
				Err:           err,
				Compensations: s.compensate(ctx, completed),
			}
		}
		completed = append(completed, step)
	}
	return nil
}

func (s *Saga) compensate(ctx context.Context, completed []Step) []error {
	var failures []error
	for i := len(completed) - 1; i >= 0; i-- {
		step := completed[i]
		if step.Compensate == nil {
			continue
		}
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.compensationTimeout)
		err := step.Compensate(cctx)
		cancel()
		if s.onCompensate != nil {
			s.onCompensate(ctx, step.Name, err)
		}
		if err != nil {
			failures = append(failures, dErrors.Wrap(err, dErrors.CodeCompensationFailed,
				fmt.Sprintf("compensation for step %q failed", step.Name)))
		}
	}
	return failures
}
