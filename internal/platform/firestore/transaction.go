package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
)

const (
	defaultTxAttempts = 5
	defaultTxTimeout  = 15 * time.Second
	defaultTxLabel    = "transaction"
)

var (
	errNilClient = errors.New("firestore: client is nil")
	errNilTxFunc = errors.New("firestore: transaction function is nil")
)

// TxFunc is executed within a Firestore transaction. It may run more than once
// when Firestore aborts an attempt on contention.
type TxFunc func(ctx context.Context, tx *firestore.Transaction) error

// TxOption customises transaction behaviour.
type TxOption func(*txConfig)

type txConfig struct {
	attempts int
	timeout  time.Duration
	label    string
}

// WithTxAttempts overrides the retry attempts for a transaction.
func WithTxAttempts(attempts int) TxOption {
	return func(cfg *txConfig) {
		if attempts > 0 {
			cfg.attempts = attempts
		}
	}
}

// WithTxTimeout caps the time spent across all attempts.
func WithTxTimeout(timeout time.Duration) TxOption {
	return func(cfg *txConfig) {
		if timeout > 0 {
			cfg.timeout = timeout
		}
	}
}

// WithTxLabel names the transaction in returned errors, e.g. "catalog.save".
func WithTxLabel(label string) TxOption {
	return func(cfg *txConfig) {
		if label = strings.TrimSpace(label); label != "" {
			cfg.label = label
		}
	}
}

func newTxConfig(opts []TxOption) txConfig {
	cfg := txConfig{attempts: defaultTxAttempts, timeout: defaultTxTimeout, label: defaultTxLabel}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// txContext applies the configured timeout unless the caller already has a tighter deadline.
func (cfg txConfig) txContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if cfg.timeout <= 0 {
		return ctx, func() {}
	}
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) <= cfg.timeout {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, cfg.timeout)
}

// RunTransaction executes fn within a transaction on the provided client. Errors are
// classified by WrapError and carry the label and, after contention, the attempt count.
func RunTransaction(ctx context.Context, client *firestore.Client, fn TxFunc, opts ...TxOption) error {
	cfg := newTxConfig(opts)
	if client == nil {
		return WrapError(cfg.label, errNilClient)
	}
	if fn == nil {
		return WrapError(cfg.label, errNilTxFunc)
	}

	txnCtx, cancel := cfg.txContext(ctx)
	defer cancel()

	attempts := 0
	err := client.RunTransaction(txnCtx, func(ctx context.Context, tx *firestore.Transaction) error {
		attempts++
		return fn(ctx, tx)
	}, firestore.MaxAttempts(cfg.attempts))

	return WrapError(cfg.opName(attempts), err)
}

func (cfg txConfig) opName(attempts int) string {
	if attempts <= 1 {
		return cfg.label
	}
	return fmt.Sprintf("%s (%d attempts)", cfg.label, attempts)
}
