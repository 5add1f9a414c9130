// Package scanerr defines the error taxonomy shared by every stage of the
// card acquisition pipeline. Callers classify failures with KindOf and decide
// retry vs. abort; nothing in this library is fatal to the process.
package scanerr

import (
	"errors"
	"fmt"
)

// Kind classifies a scan failure.
type Kind int

const (
	KindUnknown Kind = iota
	// KindInvalidCardNumber covers both a malformed card number supplied by
	// the caller and a chip VERIFY rejection.
	KindInvalidCardNumber
	KindSessionTimeout
	KindUserCancelled
	KindCardNotDetected
	KindMultipleTagsDetected
	KindInvalidResponse
	KindSecurityViolation
	KindReadFailed
	KindMissingRequiredField
	KindOCRLowConfidence
	KindOCRNoTextDetected
	KindOCRProcessingFailed
	KindWrongCardType
)

func (k Kind) String() string {
	switch k {
	case KindInvalidCardNumber:
		return "invalid card number"
	case KindSessionTimeout:
		return "session timeout"
	case KindUserCancelled:
		return "user cancelled"
	case KindCardNotDetected:
		return "card not detected"
	case KindMultipleTagsDetected:
		return "multiple tags detected"
	case KindInvalidResponse:
		return "invalid response"
	case KindSecurityViolation:
		return "security violation"
	case KindReadFailed:
		return "read failed"
	case KindMissingRequiredField:
		return "missing required field"
	case KindOCRLowConfidence:
		return "ocr low confidence"
	case KindOCRNoTextDetected:
		return "ocr no text detected"
	case KindOCRProcessingFailed:
		return "ocr processing failed"
	case KindWrongCardType:
		return "wrong card type"
	}
	return "unknown"
}

// Recoverable reports whether restarting the scan is worthwhile for this
// kind. Timeout and cancellation are terminal for the session but a caller
// may still begin a fresh one; those report false because the current
// attempt cannot be salvaged.
func (k Kind) Recoverable() bool {
	switch k {
	case KindCardNotDetected, KindMultipleTagsDetected, KindInvalidResponse,
		KindSecurityViolation, KindReadFailed, KindOCRLowConfidence,
		KindOCRNoTextDetected, KindOCRProcessingFailed:
		return true
	}
	return false
}

// Error carries a failure kind plus enough context (stage, optionally the
// affected field) for the caller to render an actionable message.
type Error struct {
	Kind  Kind
	Stage string // pipeline stage, e.g. "transport", "chip.verify", "tlv"
	Field string // semantic field name when the failure is field-scoped
	Err   error  // wrapped cause, may be nil
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Stage != "" {
		msg = e.Stage + ": " + msg
	}
	if e.Field != "" {
		msg = fmt.Sprintf("%s (field %q)", msg, e.Field)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches two scan errors by kind so that errors.Is(err, &Error{Kind: k})
// works without identity comparison.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

// New builds a scan error with no wrapped cause.
func New(kind Kind, stage string) *Error {
	return &Error{Kind: kind, Stage: stage}
}

// Wrap attaches kind and stage context to an underlying error.
func Wrap(kind Kind, stage string, err error) *Error {
	return &Error{Kind: kind, Stage: stage, Err: err}
}

// ForField builds a field-scoped error, used by the parser and the
// extractors when a mandatory field is absent or implausible.
func ForField(kind Kind, stage, field string) *Error {
	return &Error{Kind: kind, Stage: stage, Field: field}
}

// KindOf extracts the kind from any error in the chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind anywhere in its chain.
func IsKind(err error, kind Kind) bool { return KindOf(err) == kind }
