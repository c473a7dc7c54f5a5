package runtime

import (
	"os"
	"strings"
)

// Getenv returns the trimmed value of key, or fallback when unset or blank.
func Getenv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}
