// Package arbiter is the only component allowed to mutate the ledger and
// process table in response to worker messages. A request is granted whole
// or the requester blocks; released instances flow to blocked waiters
// strictly in the order they blocked, never by slot index. Malformed
// messages are dropped without touching any state.
package arbiter
