package ratelimit

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/ghkeeper/internal/metrics"
)

const (
	operationFieldNameConstant        = "operation"
	subjectFieldNameConstant          = "subject"
	attemptFieldNameConstant          = "attempt"
	maxRetriesFieldNameConstant       = "max_retries"
	waitFieldNameConstant             = "wait"
	fromStateFieldNameConstant        = "from_state"
	toStateFieldNameConstant          = "to_state"
	rateLimitedLogMessageConstant     = "Rate limited; waiting before retry"
	abandonedLogMessageConstant       = "Retry ceiling reached; abandoning operation"
	fatalLogMessageConstant           = "Operation failed"
	transitionLogMessageConstant      = "Retry state transition"
	waitInterruptedLogMessageConstant = "Backoff wait interrupted"
	operationMissingMessageConstant   = "retry operation must be provided"
)

// State names a node of the retry state machine.
type State string

// Retry states.
const (
	StateReady       State = "ready"
	StateInFlight    State = "in_flight"
	StateSuccess     State = "success"
	StateRateLimited State = "rate_limited"
	StateFatalError  State = "fatal_error"
	StateAbandoned   State = "abandoned"
)

// ErrOperationMissing indicates Do was called without an operation.
var ErrOperationMissing = errors.New(operationMissingMessageConstant)

// Sleeper blocks for the duration or until the context ends.
type Sleeper func(ctx context.Context, duration time.Duration) error

// TransitionObserver receives every state change of a retried operation.
type TransitionObserver func(operation Operation, from State, to State)

// RetrierConfiguration carries the policy and optional overrides for a Retrier.
type RetrierConfiguration struct {
	Policy             Policy
	Sleeper            Sleeper
	TransitionObserver TransitionObserver
}

// Retrier executes operations and retries rate-limit rejections for the same request.
type Retrier struct {
	logger             *zap.Logger
	recorder           *metrics.Recorder
	policy             Policy
	sleeper            Sleeper
	transitionObserver TransitionObserver
}

// NewRetrier validates the policy and constructs a Retrier.
func NewRetrier(logger *zap.Logger, recorder *metrics.Recorder, configuration RetrierConfiguration) (*Retrier, error) {
	if validationError := configuration.Policy.Validate(); validationError != nil {
		return nil, validationError
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	sleeper := configuration.Sleeper
	if sleeper == nil {
		sleeper = TimerSleeper
	}

	return &Retrier{
		logger:             logger,
		recorder:           recorder,
		policy:             configuration.Policy,
		sleeper:            sleeper,
		transitionObserver: configuration.TransitionObserver,
	}, nil
}

// Policy returns the policy the retrier enforces.
func (retrier *Retrier) Policy() Policy {
	return retrier.policy
}

// Do runs the operation until it succeeds, fails fatally, or is abandoned at the retry ceiling.
// The returned error is nil, a FatalError, or an AbandonedError. Metrics are labelled by the operation kind only.
func (retrier *Retrier) Do(executionContext context.Context, operation Operation, call func(context.Context) error) error {
	operationName := operation.String()
	if call == nil {
		return FatalError{Operation: operationName, Cause: ErrOperationMissing}
	}
	operationFields := []zap.Field{
		zap.String(operationFieldNameConstant, operation.Kind),
		zap.String(subjectFieldNameConstant, operation.Subject),
	}

	exponentialBackOff := retrier.policy.NewBackOff()
	consecutiveRateLimits := 0
	retrier.transition(operation, StateReady, StateInFlight)

	for {
		operationError := call(executionContext)
		if operationError == nil {
			retrier.transition(operation, StateInFlight, StateSuccess)
			return nil
		}

		if Classify(operationError) != ErrorKindRateLimited {
			retrier.transition(operation, StateInFlight, StateFatalError)
			retrier.recorder.RecordFatal(operation.Kind)
			retrier.logger.Debug(fatalLogMessageConstant, append(operationFields, zap.Error(operationError))...)
			return FatalError{Operation: operationName, Cause: operationError}
		}

		retrier.transition(operation, StateInFlight, StateRateLimited)
		consecutiveRateLimits++

		if consecutiveRateLimits >= retrier.policy.MaxRetries {
			retrier.transition(operation, StateRateLimited, StateAbandoned)
			retrier.recorder.RecordAbandoned(operation.Kind)
			retrier.logger.Warn(
				abandonedLogMessageConstant,
				append(operationFields, zap.Int(attemptFieldNameConstant, consecutiveRateLimits), zap.Error(operationError))...,
			)
			return AbandonedError{Operation: operationName, Attempts: consecutiveRateLimits, LastCause: operationError}
		}

		waitDuration := exponentialBackOff.NextBackOff()
		retrier.logger.Warn(
			rateLimitedLogMessageConstant,
			append(
				operationFields,
				zap.Int(attemptFieldNameConstant, consecutiveRateLimits),
				zap.Int(maxRetriesFieldNameConstant, retrier.policy.MaxRetries),
				zap.Duration(waitFieldNameConstant, waitDuration),
			)...,
		)
		retrier.recorder.RecordRateLimitRetry(operation.Kind, waitDuration)

		if sleepError := retrier.sleeper(executionContext, waitDuration); sleepError != nil {
			retrier.transition(operation, StateRateLimited, StateFatalError)
			retrier.recorder.RecordFatal(operation.Kind)
			retrier.logger.Warn(waitInterruptedLogMessageConstant, append(operationFields, zap.Error(sleepError))...)
			return FatalError{Operation: operationName, Cause: sleepError}
		}

		retrier.transition(operation, StateRateLimited, StateInFlight)
	}
}

func (retrier *Retrier) transition(operation Operation, from State, to State) {
	retrier.logger.Debug(
		transitionLogMessageConstant,
		zap.String(operationFieldNameConstant, operation.Kind),
		zap.String(subjectFieldNameConstant, operation.Subject),
		zap.String(fromStateFieldNameConstant, string(from)),
		zap.String(toStateFieldNameConstant, string(to)),
	)
	if retrier.transitionObserver != nil {
		retrier.transitionObserver(operation, from, to)
	}
}

// TimerSleeper waits on a timer and returns the context error when the context ends first.
func TimerSleeper(executionContext context.Context, duration time.Duration) error {
	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-executionContext.Done():
		return executionContext.Err()
	case <-timer.C:
		return nil
	}
}
