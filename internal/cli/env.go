package cli

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// EnvFileVar overrides the --env flag when set.
const EnvFileVar = "NEWSPAPER_ENV_FILE"

// ErrNoEnvFile means no candidate .env file could be read. Running without one
// is normal when configuration comes from the real environment.
var ErrNoEnvFile = errors.New("no env file found")

// EnvLoader loads .env files with a predictable override order.
type EnvLoader struct {
	value       *string
	defaultPath string
	fs          *flag.FlagSet
}

// AddEnvFlag registers an --env flag and returns an EnvLoader.
func AddEnvFlag(fs *flag.FlagSet, defaultPath, description string) *EnvLoader {
	if fs == nil {
		fs = flag.CommandLine
	}
	if defaultPath == "" {
		defaultPath = ".env"
	}
	if description == "" {
		description = "Path to the .env file"
	}

	value := fs.String("env", defaultPath, description)
	return &EnvLoader{
		value:       value,
		defaultPath: defaultPath,
		fs:          fs,
	}
}

// Load resolves and loads environment variables. Candidates are tried in
// order: $NEWSPAPER_ENV_FILE, the --env value, its basename, then the
// default path. The first readable file wins.
func (l *EnvLoader) Load() (string, error) {
	if l == nil {
		return "", fmt.Errorf("env loader is nil")
	}

	logger := log.New(os.Stderr, "", 0)

	if custom := strings.TrimSpace(os.Getenv(EnvFileVar)); custom != "" {
		if err := godotenv.Overload(custom); err == nil {
			logger.Printf("Loaded environment from %s: %s", EnvFileVar, custom)
			return custom, nil
		}
		logger.Printf("Warning: failed to load %s=%s", EnvFileVar, custom)
	}

	requested := strings.TrimSpace(derefString(l.value))
	if requested == "" {
		requested = l.defaultPath
	}

	candidates := []string{requested}
	if base := filepath.Base(requested); base != "" && base != requested {
		candidates = append(candidates, base)
	}
	if requested != l.defaultPath {
		candidates = append(candidates, l.defaultPath)
	}

	for _, candidate := range candidates {
		if err := godotenv.Overload(candidate); err == nil {
			if candidate != l.defaultPath || l.flagSet() {
				logger.Printf("Loaded environment from: %s", candidate)
			}
			return candidate, nil
		}
	}

	if l.flagSet() {
		return "", fmt.Errorf("failed to load env file from %s: %w", requested, ErrNoEnvFile)
	}
	return "", ErrNoEnvFile
}

func (l *EnvLoader) flagSet() bool {
	if l.fs == nil {
		return false
	}
	set := false
	l.fs.Visit(func(f *flag.Flag) {
		if f.Name == "env" {
			set = true
		}
	})
	return set
}

// LoadQuietly loads the env file and reports only failures the user asked
// for explicitly.
func LoadQuietly(l *EnvLoader) {
	if l == nil {
		return
	}
	if _, err := l.Load(); err != nil && !isQuietMiss(l, err) {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
}

func isQuietMiss(l *EnvLoader, err error) bool {
	return errors.Is(err, ErrNoEnvFile) && !l.flagSet()
}

func derefString(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
