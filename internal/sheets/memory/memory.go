// Package memory provides an in-memory ReceiptAppender used in tests
// and local development without Google credentials.
package memory

import (
	"context"
	"fmt"
	"sync"

	"yeongsu/internal/core"
	ports "yeongsu/internal/sheets"
)

type Appender struct {
	mu       sync.Mutex
	receipts []core.Receipt
	failNext error
}

var _ ports.ReceiptAppender = (*Appender)(nil)

func New() *Appender {
	return &Appender{}
}

func (a *Appender) Append(_ context.Context, r core.Receipt) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.failNext != nil {
		err := a.failNext
		a.failNext = nil
		return "", err
	}

	a.receipts = append(a.receipts, r)
	return fmt.Sprintf("memory!%d", len(a.receipts)), nil
}

// FailNext makes the next Append call return err once.
func (a *Appender) FailNext(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failNext = err
}

// Receipts returns a copy of everything appended so far.
func (a *Appender) Receipts() []core.Receipt {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]core.Receipt, len(a.receipts))
	copy(out, a.receipts)
	return out
}
