package txexec

import (
	"errors"
	"fmt"

	"github.com/nft-marketplace/backend/internal/models"
)

// Error is the failure of one executed action. Kind is one of the models
// sentinels and is what errors.Is matches against.
type Error struct {
	Kind   error
	Action Action
	Reason string
	Hash   string
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Action, e.Kind)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Hash != "" {
		msg += " (tx " + e.Hash + ")"
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// KindName is the stable label for an error class, used in metrics and
// API responses.
func KindName(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, models.ErrConnectionRejected):
		return "connection_rejected"
	case errors.Is(err, models.ErrValidationFailed):
		return "validation_failed"
	case errors.Is(err, models.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, models.ErrTxRejected):
		return "tx_rejected"
	case errors.Is(err, models.ErrTxReverted):
		return "tx_reverted"
	case errors.Is(err, models.ErrTxTimeout):
		return "tx_timeout"
	case errors.Is(err, models.ErrUploadFailed):
		return "upload_failed"
	case errors.Is(err, models.ErrRepositoryUnavailable):
		return "repository_unavailable"
	case errors.Is(err, models.ErrNotEligible):
		return "not_eligible"
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	}
	return "internal"
}
