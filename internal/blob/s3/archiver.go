package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/alanyoungcy/settleoracle/internal/domain"
)

// ReceiptArchiver writes one JSON document per submitted settlement.
type ReceiptArchiver struct {
	writer domain.BlobWriter
}

// NewReceiptArchiver creates an archiver on top of any BlobWriter.
func NewReceiptArchiver(w domain.BlobWriter) *ReceiptArchiver {
	return &ReceiptArchiver{writer: w}
}

// ReceiptPath is the object key for a settlement receipt.
func ReceiptPath(marketID uint64, txHash string) string {
	return fmt.Sprintf("settlements/%d/%s.json", marketID, txHash)
}

// Archive uploads s as JSON. Settlements without a transaction hash have
// nothing to archive and are skipped.
func (a *ReceiptArchiver) Archive(ctx context.Context, s domain.Settlement) error {
	if s.TxHash == "" {
		return nil
	}
	data, err := json.MarshalIndent(s.Record(), "", "  ")
	if err != nil {
		return fmt.Errorf("s3blob: marshal receipt market=%d: %w", s.MarketID, err)
	}
	return a.writer.Put(ctx, ReceiptPath(s.MarketID, s.TxHash), bytes.NewReader(data), "application/json")
}
