package sheets

import (
	"context"

	"yeongsu/internal/core"
)

// ReceiptAppender is the outbound port for exporting one saved receipt
// to a spreadsheet. One row per item.
type ReceiptAppender interface {
	Append(ctx context.Context, r core.Receipt) (rowRef string, err error)
}
