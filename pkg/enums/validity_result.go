package enums

import "fmt"

// ValidityResult is the outcome recorded by a validity check.
type ValidityResult string

const (
	ValidityResultValid   ValidityResult = "valid"
	ValidityResultInvalid ValidityResult = "invalid"
	ValidityResultError   ValidityResult = "error"
)

var validValidityResults = []ValidityResult{
	ValidityResultValid,
	ValidityResultInvalid,
	ValidityResultError,
}

// String implements fmt.Stringer.
func (r ValidityResult) String() string {
	return string(r)
}

// IsValid reports whether the value is a known ValidityResult.
func (r ValidityResult) IsValid() bool {
	for _, candidate := range validValidityResults {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseValidityResult converts raw input into a ValidityResult.
func ParseValidityResult(value string) (ValidityResult, error) {
	for _, candidate := range validValidityResults {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid validity result %q", value)
}
