package appfs

import (
	"os"
	"path/filepath"
)

func DataDir() string {
	return filepath.Join(UserHome(), ".local/share/plugreg")
}

func CacheDir() string {
	return filepath.Join(UserHome(), ".cache/plugreg")
}

func ConfigDir() string {
	return filepath.Join(UserHome(), ".config/plugreg")
}

func UserHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// We need a home dir, this should only panic in rare circumstances
		// where we actually want to panic.
		panic(err)
	}
	return home
}
