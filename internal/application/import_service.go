package application

import (
	"context"
	"fmt"

	"github.com/wms-platform/inbound-service/internal/domain"
	"github.com/wms-platform/inbound-service/internal/importer"
	apperrors "github.com/wms-platform/inbound-service/pkg/errors"
	"github.com/wms-platform/inbound-service/pkg/logging"
)

// ImportService creates DRAFT receipts from import messages, once per message id
type ImportService struct {
	receipts domain.ReceiptRepository
	decoder  *importer.Decoder
	logger   *logging.Logger
}

// NewImportService creates a new ImportService
func NewImportService(receipts domain.ReceiptRepository, decoder *importer.Decoder, logger *logging.Logger) *ImportService {
	return &ImportService{
		receipts: receipts,
		decoder:  decoder,
		logger:   logger.WithOperation("import_receipt"),
	}
}

// Import validates the raw message and creates its receipt. A message id seen before is a conflict.
func (s *ImportService) Import(ctx context.Context, payload []byte) (*domain.Receipt, error) {
	msg, err := s.decoder.Decode(payload)
	if err != nil {
		return nil, apperrors.ErrValidation(err.Error()).Wrap(err)
	}

	existing, err := s.receipts.FindByMessageID(ctx, msg.MessageID)
	if err != nil {
		return nil, toAppError(err, "receipt")
	}
	if existing != nil {
		return nil, apperrors.ErrConflict(fmt.Sprintf("message %s was already imported", msg.MessageID)).
			WithDetail("receiptId", existing.ID)
	}

	lines := make([]domain.ReceiptLine, 0, len(msg.Lines))
	for _, l := range msg.Lines {
		uom := l.UOM
		if uom == "" {
			uom = "EA"
		}
		lines = append(lines, domain.ReceiptLine{
			LineNo:         l.LineNo,
			SKU:            l.SKU,
			ProductName:    l.Name,
			Packaging:      l.Packaging,
			UOM:            uom,
			QtyExpected:    l.QtyExpected,
			ExpectedSSCC:   l.SSCC,
			ExpectedLot:    l.Lot,
			ExpectedExpiry: l.Expiry,
		})
	}

	receipt, err := domain.NewReceipt(msg.DocNo, msg.DocDate, msg.Supplier, msg.CrossDock, msg.OutboundRef,
		domain.ReceiptSourceImport, msg.MessageID, lines)
	if err != nil {
		return nil, toAppError(err, "receipt")
	}

	// The unique index on messageId catches a concurrent import of the same message.
	if err := s.receipts.Save(ctx, receipt); err != nil {
		return nil, toAppError(fmt.Errorf("failed to save imported receipt: %w", err), "receipt")
	}

	s.logger.Info("Imported receipt",
		"receiptId", receipt.ID,
		"messageId", msg.MessageID,
		"docNo", receipt.DocNo,
		"lines", len(receipt.Lines),
	)
	return receipt, nil
}
