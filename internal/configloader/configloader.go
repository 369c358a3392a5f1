package configloader

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnvConfig names the environment variable that overrides config lookup.
const EnvConfig = "LINEGEIST_CONFIG"

// ResolveConfigPath returns the best config path for a given subsystem and filename.
// It checks, in order:
// 1. $LINEGEIST_CONFIG if set (absolute path)
// 2. ~/.linegeist/<subsystem>/<file>
// 3. /etc/linegeist/<file>
func ResolveConfigPath(subsystem, file string) (string, error) {
	if env := os.Getenv(EnvConfig); env != "" {
		return env, nil
	}
	return resolveIn(subsystem, file, "/etc/linegeist")
}

// ResolveSiblingPath resolves a file that lives next to the main config,
// e.g. macros.yaml. Relative names are taken relative to the config dir.
func ResolveSiblingPath(configPath, file string) string {
	if file == "" || filepath.IsAbs(file) {
		return file
	}
	if configPath == "" {
		return file
	}
	return filepath.Join(filepath.Dir(configPath), file)
}

func resolveIn(subsystem, file, systemDir string) (string, error) {
	if home, err := os.UserHomeDir(); err == nil {
		userPath := filepath.Join(home, ".linegeist", subsystem, file)
		if _, err := os.Stat(userPath); err == nil {
			return userPath, nil
		}
	}
	systemPath := filepath.Join(systemDir, file)
	if _, err := os.Stat(systemPath); err == nil {
		return systemPath, nil
	}
	return "", fmt.Errorf("no config found for %s/%s", subsystem, file)
}
