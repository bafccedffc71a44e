// Package storage defines the transaction handle shared by the storage
// backends and the service layer.
package storage

// Tx is a storage transaction. Rollback after a successful Commit has no
// effect, so callers may unconditionally defer it.
type Tx interface {
	Commit() error
	Rollback() error
}
