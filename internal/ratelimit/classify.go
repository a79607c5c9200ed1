package ratelimit

import (
	"context"
	"errors"
	"strings"

	"github.com/google/go-github/v62/github"
)

const (
	graphQLRateLimitedMarkerConstant = "rate_limited"
	restRateLimitMarkerConstant      = "rate limit"
	errorKindNoneNameConstant        = "none"
	errorKindRateLimitedNameConstant = "rate_limited"
	errorKindFatalNameConstant       = "fatal"
)

// ErrorKind is the classification assigned to an upstream failure.
type ErrorKind int

const (
	// ErrorKindNone marks the absence of an error.
	ErrorKindNone ErrorKind = iota
	// ErrorKindRateLimited marks quota rejections that are worth retrying after a wait.
	ErrorKindRateLimited
	// ErrorKindFatal marks every other failure.
	ErrorKindFatal
)

// String returns the label used in logs.
func (kind ErrorKind) String() string {
	switch kind {
	case ErrorKindNone:
		return errorKindNoneNameConstant
	case ErrorKindRateLimited:
		return errorKindRateLimitedNameConstant
	default:
		return errorKindFatalNameConstant
	}
}

// Classify decides whether an error is a rate-limit rejection.
func Classify(err error) ErrorKind {
	if err == nil {
		return ErrorKindNone
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorKindFatal
	}

	var fatalError FatalError
	if errors.Is(err, ErrAbandoned) || errors.As(err, &fatalError) {
		return ErrorKindFatal
	}

	var primaryRateLimitError *github.RateLimitError
	if errors.As(err, &primaryRateLimitError) {
		return ErrorKindRateLimited
	}

	var secondaryRateLimitError *github.AbuseRateLimitError
	if errors.As(err, &secondaryRateLimitError) {
		return ErrorKindRateLimited
	}

	normalizedMessage := strings.ToLower(err.Error())
	if strings.Contains(normalizedMessage, graphQLRateLimitedMarkerConstant) || strings.Contains(normalizedMessage, restRateLimitMarkerConstant) {
		return ErrorKindRateLimited
	}

	return ErrorKindFatal
}
