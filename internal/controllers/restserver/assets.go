package restserver

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
)

// Embed the REST server assets
//
//go:embed all:assets
var assetsFS embed.FS

// GetAssets returns the front-end filesystem. A non-empty dir (rest.assets_dir,
// or ECHOMAP_ASSETS_DIR) serves files straight from disk so that the page can
// be edited without rebuilding the binary.
func GetAssets(dir string) (fs.FS, error) {
	if dir == "" {
		dir = os.Getenv("ECHOMAP_ASSETS_DIR")
	}
	if dir != "" {
		info, err := os.Stat(dir)
		if err != nil {
			return nil, fmt.Errorf("assets directory: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("assets directory %s is not a directory", dir)
		}
		return os.DirFS(dir), nil
	}

	// Return a sub-filesystem starting from the "assets" directory
	assets, err := fs.Sub(assetsFS, "assets")
	if err != nil {
		return nil, fmt.Errorf("failed to create assets sub-filesystem: %w", err)
	}
	return assets, nil
}
