package conf

import (
	"os"
	"path/filepath"
	"runtime"
)

const appDir = "audiobridge"

// GetDefaultConfigPaths returns the directories searched for config.yaml,
// in order. The working directory comes first.
func GetDefaultConfigPaths() []string {
	paths := []string{"."}

	homeDir, err := os.UserHomeDir()
	switch runtime.GOOS {
	case "windows":
		if exePath, err := os.Executable(); err == nil {
			paths = append(paths, filepath.Dir(exePath))
		}
		if err == nil {
			paths = append(paths, filepath.Join(homeDir, "AppData", "Roaming", appDir))
		}
	default:
		if err == nil {
			paths = append(paths, filepath.Join(homeDir, ".config", appDir))
		}
		paths = append(paths, filepath.Join("/etc", appDir))
	}
	return paths
}
