// Package abstraction is the single entry point callers use to run agent
// workflows. Every operation checks framework support and adapter binding
// through the registry before touching an adapter.
//
// ExecuteWorkflow never reports an execution failure as an error: adapter
// errors, panics, timeouts and cancellations all come back as a failed
// ExecutionResult with a normalized, user-safe message and code. Only
// configuration problems (an unsupported framework or a missing adapter)
// are returned as errors, and they are returned before any execution
// record exists.
package abstraction
