// Package errors provides sentinel errors and custom error types for mergeguard.
// Use errors.Is() and errors.As() to check for specific error types.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the merge failure taxonomy
var (
	// ErrEnvironment indicates the working tree is not in a mergeable state
	ErrEnvironment = errors.New("environment not ready")

	// ErrProtectedBranch indicates the target is in the protected set
	ErrProtectedBranch = errors.New("protected branch")

	// ErrUnknownBranch indicates a branch name could not be resolved
	ErrUnknownBranch = errors.New("unknown branch")

	// ErrNetwork indicates a transient remote failure
	ErrNetwork = errors.New("network error")

	// ErrAuth indicates an authentication or permission failure against the remote
	ErrAuth = errors.New("authentication error")

	// ErrConflict indicates the merge produced unmerged paths
	ErrConflict = errors.New("merge conflict")

	// ErrUnexpected indicates any other failure during a merge attempt
	ErrUnexpected = errors.New("unexpected error")

	// ErrRepoBusy indicates another merge run holds the repository lock
	ErrRepoBusy = errors.New("repository busy: another merge is in progress")

	// ErrNotOnBranch indicates that HEAD is not on a branch
	ErrNotOnBranch = errors.New("not on a branch")
)

// EnvironmentError represents a working tree that cannot be merged into safely
type EnvironmentError struct {
	Reason      string
	Suggestions []string
}

func (e *EnvironmentError) Error() string {
	return fmt.Sprintf("environment not ready: %s", e.Reason)
}

// Is returns true if the target error is ErrEnvironment
func (e *EnvironmentError) Is(target error) bool {
	return target == ErrEnvironment
}

// NewEnvironmentError creates a new EnvironmentError
func NewEnvironmentError(reason string, suggestions []string) *EnvironmentError {
	return &EnvironmentError{Reason: reason, Suggestions: suggestions}
}

// ProtectedBranchError represents a merge into a branch in the protected set
type ProtectedBranchError struct {
	BranchName string
}

func (e *ProtectedBranchError) Error() string {
	return fmt.Sprintf("branch %s is protected and cannot receive automated merges", e.BranchName)
}

// Is returns true if the target error is ErrProtectedBranch
func (e *ProtectedBranchError) Is(target error) bool {
	return target == ErrProtectedBranch
}

// NewProtectedBranchError creates a new ProtectedBranchError
func NewProtectedBranchError(branchName string) *ProtectedBranchError {
	return &ProtectedBranchError{BranchName: branchName}
}

// UnknownBranchError represents a branch name that does not exist locally or on the remote
type UnknownBranchError struct {
	BranchName  string
	Suggestions []string
}

func (e *UnknownBranchError) Error() string {
	if len(e.Suggestions) == 0 {
		return fmt.Sprintf("branch %s does not exist", e.BranchName)
	}
	return fmt.Sprintf("branch %s does not exist (did you mean: %s?)", e.BranchName, strings.Join(e.Suggestions, ", "))
}

// Is returns true if the target error is ErrUnknownBranch
func (e *UnknownBranchError) Is(target error) bool {
	return target == ErrUnknownBranch
}

// NewUnknownBranchError creates a new UnknownBranchError
func NewUnknownBranchError(branchName string, suggestions []string) *UnknownBranchError {
	return &UnknownBranchError{BranchName: branchName, Suggestions: suggestions}
}

// NetworkError represents a transient failure talking to the remote
type NetworkError struct {
	Operation string
	Kind      string
	Err       error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s failed (%s): %v", e.Operation, e.Kind, e.Err)
}

// Is returns true if the target error is ErrNetwork
func (e *NetworkError) Is(target error) bool {
	return target == ErrNetwork
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewNetworkError creates a new NetworkError
func NewNetworkError(operation, kind string, err error) *NetworkError {
	return &NetworkError{Operation: operation, Kind: kind, Err: err}
}

// AuthError represents a rejected credential or missing permission on the remote
type AuthError struct {
	Operation string
	Err       error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s failed: permission denied: %v", e.Operation, e.Err)
}

// Is returns true if the target error is ErrAuth
func (e *AuthError) Is(target error) bool {
	return target == ErrAuth
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// NewAuthError creates a new AuthError
func NewAuthError(operation string, err error) *AuthError {
	return &AuthError{Operation: operation, Err: err}
}

// ConflictError represents a merge that stopped on unmerged paths
type ConflictError struct {
	Source string
	Target string
	Files  []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("merge of %s into %s conflicts in %d file(s): %s",
		e.Source, e.Target, len(e.Files), strings.Join(e.Files, ", "))
}

// Is returns true if the target error is ErrConflict
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// NewConflictError creates a new ConflictError
func NewConflictError(source, target string, files []string) *ConflictError {
	return &ConflictError{Source: source, Target: target, Files: files}
}

// UnexpectedError wraps a failure that is neither a conflict nor a classified remote error
type UnexpectedError struct {
	Stage string
	Err   error
}

func (e *UnexpectedError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

// Is returns true if the target error is ErrUnexpected
func (e *UnexpectedError) Is(target error) bool {
	return target == ErrUnexpected
}

func (e *UnexpectedError) Unwrap() error {
	return e.Err
}

// NewUnexpectedError creates a new UnexpectedError
func NewUnexpectedError(stage string, err error) *UnexpectedError {
	return &UnexpectedError{Stage: stage, Err: err}
}

// GitCommandError represents an error from a git command execution
type GitCommandError struct {
	Command string
	Args    []string
	Stdout  string
	Stderr  string
	Err     error
}

func (e *GitCommandError) Error() string {
	msg := fmt.Sprintf("git command failed: %s", e.Command)
	if len(e.Args) > 0 {
		msg += fmt.Sprintf(" %v", e.Args)
	}
	if e.Stderr != "" {
		msg += fmt.Sprintf("\nstderr: %s", e.Stderr)
	}
	if e.Stdout != "" {
		msg += fmt.Sprintf("\nstdout: %s", e.Stdout)
	}
	if e.Err != nil {
		msg += fmt.Sprintf("\n%v", e.Err)
	}
	return msg
}

func (e *GitCommandError) Unwrap() error {
	return e.Err
}

// Output returns the combined stderr and stdout of the failed command
func (e *GitCommandError) Output() string {
	return e.Stderr + e.Stdout
}

// NewGitCommandError creates a new GitCommandError
func NewGitCommandError(command string, args []string, stdout, stderr string, err error) *GitCommandError {
	return &GitCommandError{
		Command: command,
		Args:    args,
		Stdout:  stdout,
		Stderr:  stderr,
		Err:     err,
	}
}
