package domain

// Diagnostic codes attached to results. Diagnostics are data, not errors.
const (
	// DiagnosticNegativeDerivedValue marks a ratio or delta that came out
	// negative. Overlays report it as-is; it signals model sensitivity when
	// the baseline revenue is small relative to variance.
	DiagnosticNegativeDerivedValue = "NEGATIVE_DERIVED_VALUE"

	// DiagnosticZeroDenominator marks a ratio whose denominator was zero.
	// Value holds the fallback that was reported instead.
	DiagnosticZeroDenominator = "ZERO_DENOMINATOR"
)

// Diagnostic is an observable flagged on an overlay result.
type Diagnostic struct {
	Code    string  `json:"code"`
	Field   string  `json:"field"`
	Value   float64 `json:"value"`
	Message string  `json:"message"`
}

// NegativeValue returns a NEGATIVE_DERIVED_VALUE diagnostic for field when
// value < 0, or nil otherwise.
func NegativeValue(field string, value float64, message string) *Diagnostic {
	if value >= 0 {
		return nil
	}
	return &Diagnostic{
		Code:    DiagnosticNegativeDerivedValue,
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// ZeroDenominator returns a ZERO_DENOMINATOR diagnostic for field when ok
// is false, or nil otherwise.
func ZeroDenominator(field string, ok bool, fallback float64, message string) *Diagnostic {
	if ok {
		return nil
	}
	return &Diagnostic{
		Code:    DiagnosticZeroDenominator,
		Field:   field,
		Value:   fallback,
		Message: message,
	}
}

// appendDiagnostics keeps only non-nil diagnostics.
func appendDiagnostics(dst []Diagnostic, ds ...*Diagnostic) []Diagnostic {
	for _, d := range ds {
		if d != nil {
			dst = append(dst, *d)
		}
	}
	return dst
}

// CollectDiagnostics returns the non-nil diagnostics in order.
func CollectDiagnostics(ds ...*Diagnostic) []Diagnostic {
	return appendDiagnostics(nil, ds...)
}
