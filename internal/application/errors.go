package application

import (
	"errors"

	"github.com/wms-platform/inbound-service/internal/domain"
	apperrors "github.com/wms-platform/inbound-service/pkg/errors"
)

var preconditionErrors = []error{
	domain.ErrInvalidReceiptTransition,
	domain.ErrReceiptNotEditable,
	domain.ErrReceiptNotDeletable,
	domain.ErrNoLines,
	domain.ErrReceiptTerminal,
	domain.ErrInvalidTaskTransition,
	domain.ErrTaskTerminal,
	domain.ErrInvalidPalletState,
	domain.ErrInsufficientQty,
	domain.ErrDiscrepancyResolved,
}

var validationErrors = []error{
	domain.ErrOutboundRefRequired,
	domain.ErrInvalidLine,
	domain.ErrDuplicateLineNo,
	domain.ErrAssigneeRequired,
	domain.ErrInvalidTaskType,
	domain.ErrInvalidQuantity,
	domain.ErrInvalidStrategy,
	domain.ErrInvalidLocationType,
	domain.ErrInvalidCapacity,
}

// toAppError maps domain and store errors onto API error codes. AppErrors pass through.
func toAppError(err error, resource string) error {
	if err == nil {
		return nil
	}
	if _, ok := apperrors.AsAppError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, domain.ErrVersionConflict):
		return apperrors.ErrConcurrentModification(resource).Wrap(err)
	case errors.Is(err, domain.ErrDuplicateKey):
		return apperrors.ErrConflict(err.Error()).Wrap(err)
	case errors.Is(err, domain.ErrLineNotFound):
		return apperrors.ErrNotFound("receipt line").Wrap(err)
	}
	for _, sentinel := range preconditionErrors {
		if errors.Is(err, sentinel) {
			return apperrors.ErrPreconditionFailed(err.Error()).Wrap(err)
		}
	}
	for _, sentinel := range validationErrors {
		if errors.Is(err, sentinel) {
			return apperrors.ErrValidation(err.Error()).Wrap(err)
		}
	}
	return apperrors.ErrInternal("").Wrap(err)
}
