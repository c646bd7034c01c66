// Package worker runs cancellable background loops. A Worker owns one
// scheduling goroutine that invokes a Runner on a polling interval, and a
// Registry tracks the running workers by name so that at most one live worker
// exists per name and all of them can be shut down together.
package worker
