// Package ledger owns the resource accounting state: the available vector
// and the allocation and request matrices. Only the master mutates it, and
// every mutation preserves conservation: for each resource, available plus
// the column sum of holdings equals the instance total.
package ledger
