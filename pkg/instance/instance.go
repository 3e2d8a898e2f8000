package instance

import "os"

// GetID returns the process instance identifier used in log fields and lock ownership.
func GetID() string {
	for _, key := range []string{"SETTLEMENT_INSTANCE_ID", "DYNO", "HOSTNAME"} {
		if id := os.Getenv(key); id != "" {
			return id
		}
	}
	return "local"
}
