package config

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

var envFiles = []string{".env", ".env.local"}

// loadEnvFiles loads the first readable .env file from dir, then the working directory.
// Existing process environment variables are never overwritten.
func loadEnvFiles(dir string) {
	seen := map[string]bool{}
	for _, base := range []string{dir, "."} {
		for _, name := range envFiles {
			p := filepath.Clean(filepath.Join(base, name))
			if seen[p] {
				continue
			}
			seen[p] = true
			if _, err := os.Stat(p); err != nil {
				continue
			}
			if err := godotenv.Load(p); err != nil {
				slog.Warn("Failed to load env file", slog.String("path", p), slog.String("error", err.Error()))
				continue
			}
			return
		}
	}
}
