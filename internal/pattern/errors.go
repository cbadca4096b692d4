package pattern

import "fmt"

// ConfigParseError reports a malformed pattern. Offending holds the part of
// the pattern the parser rejected.
type ConfigParseError struct {
	Pattern   string
	Offending string
	Reason    string
}

func (e *ConfigParseError) Error() string {
	if e.Offending == "" || e.Offending == e.Pattern {
		return fmt.Sprintf("invalid pattern %q: %s", e.Pattern, e.Reason)
	}
	return fmt.Sprintf("invalid pattern %q at %q: %s", e.Pattern, e.Offending, e.Reason)
}

func parseError(pattern, offending, format string, args ...any) *ConfigParseError {
	return &ConfigParseError{
		Pattern:   pattern,
		Offending: offending,
		Reason:    fmt.Sprintf(format, args...),
	}
}
