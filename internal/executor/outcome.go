package executor

import (
	"time"

	"mergeguard.dev/mergeguard/internal/conflict"
)

// Kind is the terminal result of one target
type Kind string

const (
	KindSuccess  Kind = "success"
	KindSkipped  Kind = "skipped"
	KindConflict Kind = "conflict"
	KindRejected Kind = "rejected"
	KindFailed   Kind = "failed"
)

// OK reports whether the kind counts towards an overall success
func (k Kind) OK() bool {
	return k == KindSuccess || k == KindSkipped
}

// State is a step of the per-target state machine
type State string

const (
	StateInit           State = "init"
	StatePrecheck       State = "precheck"
	StateScratchCreated State = "scratch_created"
	StateFetched        State = "fetched"
	StateAttempted      State = "attempted"
	StateMerged         State = "merged"
	StateConflicted     State = "conflicted"
	StatePushed         State = "pushed"
	StateRolledBack     State = "rolled_back"
	StateCleaned        State = "cleaned"
	StateTerminal       State = "terminal"
)

// Step is one recorded state transition
type Step struct {
	State  State     `json:"state"`
	At     time.Time `json:"at"`
	Detail string    `json:"detail,omitempty"`
}

// Outcome is produced exactly once per target
type Outcome struct {
	Source string
	Target string
	Kind   Kind

	// Reason is a human readable explanation for Skipped, Rejected and Failed
	Reason string
	// Err is the underlying error for Rejected and Failed
	Err error

	// Files and Advice are set for Conflict
	Files  []string
	Advice *conflict.Advice

	Ahead    int
	Warnings []string

	// Scratch is the scratch branch name, empty if none was created
	Scratch string
	// MergeCommit is the new target tip for Success
	MergeCommit string

	FetchAttempts int
	PushAttempts  int
	// RetryDelays are the waits performed by fetch and push retries
	RetryDelays []time.Duration

	Steps    []Step
	Duration time.Duration
}

// ScratchCreated reports whether a scratch branch was made for this target
func (o Outcome) ScratchCreated() bool {
	return o.Scratch != ""
}
