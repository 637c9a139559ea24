package config

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// loadEnvFiles loads .env and .env.local from the working directory and from
// dir. Existing process variables are never overwritten.
func loadEnvFiles(dir string) {
	seen := map[string]bool{}
	for _, base := range []string{".", dir} {
		for _, name := range []string{".env", ".env.local"} {
			p, err := filepath.Abs(filepath.Join(base, name))
			if err != nil || seen[p] {
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
			slog.Debug("Loaded environment variables", slog.String("path", p))
		}
	}
}
