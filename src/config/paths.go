package config

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

// StoragePaths contains paths for application storage
type StoragePaths struct {
	DatabasePath string
	MemoryRoot   string
}

// GetDefaultStoragePaths returns default storage paths using XDG base directories
func GetDefaultStoragePaths() StoragePaths {
	// Runtime state goes under XDG_STATE_HOME, user-owned notes under
	// XDG_DATA_HOME.
	return StoragePaths{
		DatabasePath: filepath.Join(xdg.StateHome, "turnkit", "turnkit.db"),
		MemoryRoot:   filepath.Join(xdg.DataHome, "turnkit", "memories"),
	}
}

