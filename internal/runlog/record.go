// Package runlog persists one structured JSON record per merge run and
// enforces the retention policy on the record directory.
package runlog

import (
	"time"

	"github.com/oklog/ulid/v2"

	"mergeguard.dev/mergeguard/internal/batch"
	"mergeguard.dev/mergeguard/internal/conflict"
	"mergeguard.dev/mergeguard/internal/executor"
)

// TargetRecord is the persisted form of one target's outcome
type TargetRecord struct {
	Target        string           `json:"target"`
	Outcome       executor.Kind    `json:"outcome"`
	Reason        string           `json:"reason,omitempty"`
	Error         string           `json:"error,omitempty"`
	Ahead         int              `json:"ahead"`
	Files         []string         `json:"conflict_files,omitempty"`
	Advice        *conflict.Advice `json:"advice,omitempty"`
	Warnings      []string         `json:"warnings,omitempty"`
	Scratch       string           `json:"scratch_branch,omitempty"`
	MergeCommit   string           `json:"merge_commit,omitempty"`
	FetchAttempts int              `json:"fetch_attempts"`
	PushAttempts  int              `json:"push_attempts"`
	RetryDelays   []string         `json:"retry_delays,omitempty"`
	Steps         []executor.Step  `json:"steps"`
	DurationMS    int64            `json:"duration_ms"`
}

// Record is the persisted form of one merge run
type Record struct {
	ID       string         `json:"id"`
	Source   string         `json:"source"`
	Targets  []string       `json:"targets"`
	Started  time.Time      `json:"started"`
	Finished time.Time      `json:"finished"`
	Success  bool           `json:"success"`
	ExitCode int            `json:"exit_code"`
	Swept    []string       `json:"swept_branches,omitempty"`
	Results  []TargetRecord `json:"results"`
}

// NewID returns a sortable unique run id
func NewID() string {
	return ulid.Make().String()
}

// FromResult converts a batch result into a Record
func FromResult(res batch.Result) Record {
	rec := Record{
		ID:       NewID(),
		Source:   res.Request.Source,
		Targets:  append([]string(nil), res.Request.Targets...),
		Started:  res.Started,
		Finished: res.Finished,
		Success:  res.Success(),
		ExitCode: res.ExitCode(),
		Swept:    res.Swept,
	}
	for _, o := range res.Outcomes {
		tr := TargetRecord{
			Target:        o.Target,
			Outcome:       o.Kind,
			Reason:        o.Reason,
			Ahead:         o.Ahead,
			Files:         o.Files,
			Advice:        o.Advice,
			Warnings:      o.Warnings,
			Scratch:       o.Scratch,
			MergeCommit:   o.MergeCommit,
			FetchAttempts: o.FetchAttempts,
			PushAttempts:  o.PushAttempts,
			Steps:         o.Steps,
			DurationMS:    o.Duration.Milliseconds(),
		}
		if o.Err != nil {
			tr.Error = o.Err.Error()
		}
		for _, d := range o.RetryDelays {
			tr.RetryDelays = append(tr.RetryDelays, d.String())
		}
		rec.Results = append(rec.Results, tr)
	}
	return rec
}
