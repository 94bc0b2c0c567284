package services

import (
	"errors"
	"strings"
)

var (
	ErrTransport     = errors.New("transport error")
	ErrDataShape     = errors.New("data shape error")
	ErrConversion    = errors.New("conversion error")
	ErrConfiguration = errors.New("configuration error")
)

// Error is a classified pipeline failure. It matches its marker and its cause
// through errors.Is/errors.As.
type Error struct {
	Marker    error
	Stage     string
	Operation string
	Message   string
	Err       error
}

func (e *Error) Error() string {
	detail := buildDetail(e.Stage, e.Operation, e.Message)
	marker := e.Marker
	if marker == nil {
		marker = ErrTransport
	}
	if e.Err != nil {
		return marker.Error() + ": " + detail + ": " + e.Err.Error()
	}
	return marker.Error() + ": " + detail
}

func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Marker != nil {
		errs = append(errs, e.Marker)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransport
	}
	return &Error{
		Marker:    marker,
		Stage:     strings.TrimSpace(stage),
		Operation: strings.TrimSpace(operation),
		Message:   strings.TrimSpace(message),
		Err:       err,
	}
}

// ErrorDetails is the caller-facing view of a classified error.
type ErrorDetails struct {
	Kind      string
	Stage     string
	Operation string
	Message   string
}

// Details extracts the outermost classified error. Unclassified errors report
// kind "internal" and their full text as the message.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	var svcErr *Error
	if errors.As(err, &svcErr) {
		message := svcErr.Message
		if message == "" {
			message = svcErr.Error()
		}
		return ErrorDetails{
			Kind:      KindOf(err),
			Stage:     svcErr.Stage,
			Operation: svcErr.Operation,
			Message:   message,
		}
	}
	return ErrorDetails{Kind: KindOf(err), Message: err.Error()}
}

// KindOf returns the stable kind label for err. A classified error reports
// the kind of its own marker, not of a marker further down its cause chain.
func KindOf(err error) string {
	if err == nil {
		return ""
	}
	var svcErr *Error
	if errors.As(err, &svcErr) {
		if svcErr.Marker == nil {
			return "transport"
		}
		return markerKind(svcErr.Marker)
	}
	return markerKind(err)
}

func markerKind(err error) string {
	switch {
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrConversion):
		return "conversion"
	case errors.Is(err, ErrDataShape):
		return "data_shape"
	case errors.Is(err, ErrTransport):
		return "transport"
	default:
		return "internal"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
