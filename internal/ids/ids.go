package ids

import "github.com/segmentio/ksuid"

// New returns a time-ordered, globally unique identifier.
func New() string {
	return ksuid.New().String()
}

// WithPrefix returns an identifier of the form "<prefix>_<ksuid>", the
// shape used for user and audit row keys.
func WithPrefix(prefix string) string {
	if prefix == "" {
		return New()
	}
	return prefix + "_" + New()
}
