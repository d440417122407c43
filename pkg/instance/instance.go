package instance

import "os"

// EnvInstanceID overrides the identifier reported by GetID.
const EnvInstanceID = "STOCKROOM_INSTANCE_ID"

// GetID returns the process instance identifier: the configured value, the
// hostname, or a fixed fallback.
func GetID() string {
	if id := os.Getenv(EnvInstanceID); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "stockroom-0"
}
