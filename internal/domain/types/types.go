// Package types contains common types used across the application
package types

import "fmt"

// Label names a labeled input source of the dataset assembler.
type Label string

// Known source labels. Only these keys are accepted by the assembler.
const (
	LabelSignal     Label = "signal"
	LabelBackground Label = "background"
)

// Labels lists the known labels in concatenation order.
var Labels = []Label{LabelSignal, LabelBackground} //nolint:gochecknoglobals // fixed ordering table

// Value returns the numeric target assigned to rows of this label.
func (l Label) Value() float64 {
	if l == LabelSignal {
		return 1.0
	}
	return 0.0
}

// ParseLabel converts a string into a known Label.
func ParseLabel(s string) (Label, error) {
	switch Label(s) {
	case LabelSignal, LabelBackground:
		return Label(s), nil
	default:
		return "", fmt.Errorf("%w: unknown source label %q", ErrConfiguration, s)
	}
}
