package executor

import (
	"errors"
	"time"
)

// Request is one merge invocation: a source and the ordered targets.
// It is not modified after NewRequest.
type Request struct {
	Source  string
	Targets []string
	At      time.Time
}

// NewRequest validates and copies its arguments
func NewRequest(source string, targets []string, at time.Time) (Request, error) {
	if source == "" {
		return Request{}, errors.New("source branch is required")
	}
	if len(targets) == 0 {
		return Request{}, errors.New("at least one target branch is required")
	}
	for _, t := range targets {
		if t == "" {
			return Request{}, errors.New("target branch names must not be empty")
		}
	}
	return Request{
		Source:  source,
		Targets: append([]string(nil), targets...),
		At:      at,
	}, nil
}
