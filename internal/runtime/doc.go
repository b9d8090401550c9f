// Package runtime provides the execution context for mergeguard commands.
//
// It encapsulates shared dependencies resolved once per invocation, such as
// the repository root, the effective configuration, the remote and the logger.
package runtime
