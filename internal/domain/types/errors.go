package types

import "errors"

// Error taxonomy shared by the pipeline packages. Producers wrap these with
// fmt.Errorf("%w: ...") so callers can match them with errors.Is. All of them
// abort the current batch.
var (
	// ErrConfiguration reports missing or malformed model directory contents
	// or an invalid assembler request.
	ErrConfiguration = errors.New("configuration error")

	// ErrMissingField reports an absent or ambiguous required per-event field.
	ErrMissingField = errors.New("missing field")

	// ErrScalerMismatch reports a feature-count mismatch between shaped data
	// and a standardization transform.
	ErrScalerMismatch = errors.New("scaler mismatch")

	// ErrInvalidMode reports an unrecognized threshold comparison mode.
	ErrInvalidMode = errors.New("invalid mode")

	// ErrUnsupportedFormat reports a source format or model kind that is not implemented.
	ErrUnsupportedFormat = errors.New("unsupported format")
)
