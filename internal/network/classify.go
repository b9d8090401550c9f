package network

import (
	"context"
	"errors"
	"strings"

	mgerrors "mergeguard.dev/mergeguard/internal/errors"
)

// Kind is the failure class of a remote operation
type Kind string

const (
	// KindTransient failures are retried
	KindTransient Kind = "transient"
	// KindTimeout is a transient failure caused by the per-attempt deadline
	KindTimeout Kind = "timeout"
	// KindAuth failures are surfaced immediately
	KindAuth Kind = "auth"
	// KindOther failures are not network related
	KindOther Kind = "other"
)

var authMarkers = []string{
	"permission denied",
	"authentication failed",
	"403",
	"invalid credentials",
}

var transientMarkers = []string{
	"timeout",
	"timed out",
	"connection refused",
	"could not connect",
	"host not found",
	"network is unreachable",
	"unable to access",
	"ssl",
	"tls",
	"handshake",
	"connection reset",
	"dns error",
	"name resolution failed",
	"no route to host",
	"temporary failure",
	"could not read from remote",
	"could not resolve host",
}

// Classify sorts a failed remote command into a Kind by looking at the
// command output. Auth markers win over transient ones.
func Classify(err error) Kind {
	if err == nil {
		return KindOther
	}
	var te *timeoutError
	if errors.As(err, &te) || errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	text := err.Error()
	var gitErr *mgerrors.GitCommandError
	if errors.As(err, &gitErr) {
		text = gitErr.Output()
	}
	text = strings.ToLower(text)

	for _, marker := range authMarkers {
		if strings.Contains(text, marker) {
			return KindAuth
		}
	}
	for _, marker := range transientMarkers {
		if strings.Contains(text, marker) {
			return KindTransient
		}
	}
	return KindOther
}
