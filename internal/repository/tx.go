package repository

import "github.com/jmoiron/sqlx"

// Tx is the transactional surface handed to services for check-then-write
// sequences. Satisfied by *sqlx.Tx.
type Tx interface {
	sqlx.ExtContext
	Commit() error
	Rollback() error
}
