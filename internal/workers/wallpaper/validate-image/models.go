// internal/workers/wallpaper/validate-image/models.go
package validateimage

import (
	"errors"
	"fmt"

	apperrors "wallpaper-bot/internal/common/errors"
)

var ErrValidationRejected = errors.New("VALIDATION_REJECTED")

// RejectReason names the first check an image failed.
type RejectReason string

const (
	RejectDecodeFailed      RejectReason = "decode_failed"
	RejectUnsupportedFormat RejectReason = "unsupported_format"
	RejectTooSmall          RejectReason = "too_small"
	RejectTooLarge          RejectReason = "too_large"
	RejectTooManyPixels     RejectReason = "too_many_pixels"
)

// Rejection is returned by Check. It matches ErrValidationRejected and carries a
// VALIDATION_REJECTED StandardError.
type Rejection struct {
	Reason RejectReason
	Detail string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("image rejected: %s: %s", r.Reason, r.Detail)
}

func (r *Rejection) Unwrap() []error {
	return []error{
		ErrValidationRejected,
		apperrors.NewValidationRejectedError(string(r.Reason) + ": " + r.Detail),
	}
}

func reject(reason RejectReason, format string, args ...interface{}) *Rejection {
	return &Rejection{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}
