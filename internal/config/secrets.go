package config

import (
	"os"
	"strings"
)

// getEnvOrFile retrieves a secret from either a direct environment variable
// or a file path in the companion _FILE variable (Docker secrets pattern).
// The file takes precedence so production secrets never live in the
// environment.
func getEnvOrFile(key string) string {
	if filePath := os.Getenv(key + "_FILE"); filePath != "" {
		content, err := os.ReadFile(filePath)
		if err == nil {
			return strings.TrimSpace(string(content))
		}
	}
	return os.Getenv(key)
}
