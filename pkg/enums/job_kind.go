package enums

import "fmt"

// JobKind distinguishes the jobs launched on the external job service.
type JobKind string

const (
	JobKindCollection JobKind = "collection"
	JobKindValidation JobKind = "validation"
)

var validJobKinds = []JobKind{
	JobKindCollection,
	JobKindValidation,
}

// String implements fmt.Stringer.
func (k JobKind) String() string {
	return string(k)
}

// IsValid reports whether the value is a known JobKind.
func (k JobKind) IsValid() bool {
	for _, candidate := range validJobKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseJobKind converts raw input into a JobKind.
func ParseJobKind(value string) (JobKind, error) {
	for _, candidate := range validJobKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid job kind %q", value)
}
