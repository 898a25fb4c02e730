package db

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// TxRunner provides a shared transaction boundary primitive for the
// composite writes (course + children, attempt completion + certificate
// minting). Repos accept the tx handle and fall back to their own db when it
// is nil, so the same service code runs inside or outside a transaction.
type TxRunner interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type gormTxRunner struct {
	db *gorm.DB
}

// NewGormTxRunner returns a transaction runner backed by GORM transactions.
func NewGormTxRunner(gdb *gorm.DB) TxRunner {
	return &gormTxRunner{db: gdb}
}

func (r *gormTxRunner) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	if r == nil || r.db == nil {
		return fmt.Errorf("transaction runner has nil db")
	}
	return r.db.WithContext(ctx).Transaction(fn)
}

type noopTxRunner struct{}

// NewNoopTxRunner returns a runner that executes fn without a transaction.
// Used with the in-memory store, whose repos ignore the tx handle.
func NewNoopTxRunner() TxRunner { return noopTxRunner{} }

func (noopTxRunner) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return fn(nil)
}
