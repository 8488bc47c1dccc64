// Package detector runs the deadlock safety check on integer-second
// boundaries of the simulated clock and resolves any deadlock it finds by
// terminating the lowest-index member, re-checking after every kill so no
// worker dies that an earlier termination already freed.
package detector
