package model

import (
	"errors"
	"strings"

	"github.com/rotisserie/eris"
)

// ConfigurationIncompleteError is returned when the strategy lacks a field
// every prompt depends on. It is the only error that ends a run without a
// result.
type ConfigurationIncompleteError struct {
	SiteID  string
	Missing []string
}

func (e *ConfigurationIncompleteError) Error() string {
	return "configuration incomplete for site " + e.SiteID + ": missing " + strings.Join(e.Missing, ", ")
}

var (
	// ErrProviderUnavailable marks an enrichment or lookup provider failure.
	ErrProviderUnavailable = eris.New("provider unavailable")
	// ErrExtractionParse marks structured output that could not be parsed.
	ErrExtractionParse = eris.New("extraction parse failure")
	// ErrBudgetExceeded marks work cut short by the run's wall-clock budget.
	ErrBudgetExceeded = eris.New("budget exceeded")
)

// ErrorKind classifies a recorded degradation.
type ErrorKind string

const (
	KindConfigurationIncomplete ErrorKind = "configuration_incomplete"
	KindProviderUnavailable     ErrorKind = "provider_unavailable"
	KindExtractionParse         ErrorKind = "extraction_parse_failure"
	KindBudgetExceeded          ErrorKind = "budget_exceeded"
	KindPhaseFailed             ErrorKind = "phase_failed"
)

// KindOf maps an error onto the taxonomy.
func KindOf(err error) ErrorKind {
	var cie *ConfigurationIncompleteError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &cie):
		return KindConfigurationIncomplete
	case eris.Is(err, ErrBudgetExceeded):
		return KindBudgetExceeded
	case eris.Is(err, ErrExtractionParse):
		return KindExtractionParse
	case eris.Is(err, ErrProviderUnavailable):
		return KindProviderUnavailable
	default:
		return KindPhaseFailed
	}
}
