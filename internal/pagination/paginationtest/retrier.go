package paginationtest

import (
	"context"
	"time"

	"github.com/temirov/ghkeeper/internal/ratelimit"
)

// RecordedWaits collects the waits requested by a retrier built with NewImmediateRetrier.
type RecordedWaits struct {
	Durations []time.Duration
}

// NewImmediateRetrier builds a retrier whose waits return immediately and are recorded.
func NewImmediateRetrier(maxRetries int) (*ratelimit.Retrier, *RecordedWaits, error) {
	recordedWaits := &RecordedWaits{}
	retrier, creationError := ratelimit.NewRetrier(nil, nil, ratelimit.RetrierConfiguration{
		Policy: ratelimit.Policy{
			InitialWait:   time.Second,
			BackoffFactor: 2,
			MaxWait:       time.Minute,
			MaxRetries:    maxRetries,
		},
		Sleeper: func(_ context.Context, duration time.Duration) error {
			recordedWaits.Durations = append(recordedWaits.Durations, duration)
			return nil
		},
	})
	if creationError != nil {
		return nil, nil, creationError
	}
	return retrier, recordedWaits, nil
}
