package telemetry

import "codeberg.org/mutker/pressurebar/internal/errors"

const (
	// Decode Errors
	ErrShapeMismatch     = errors.ErrorCode("telemetry_shape_mismatch")
	ErrReadingOutOfRange = errors.ErrorCode("telemetry_reading_out_of_range")
)

func init() {
	errors.RegisterMessages(map[errors.ErrorCode]string{
		ErrShapeMismatch:     "Snapshot does not match the expected shape",
		ErrReadingOutOfRange: "Reading outside the 16-bit full-scale range",
	})
}
