package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
)

// LoadImage reads the input image. Any failure to open or read it is ImageNotFound.
func LoadImage(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, imageNotFound(path, err)
	}
	if info.IsDir() {
		return nil, imageNotFound(path, fmt.Errorf("%s is a directory", path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, imageNotFound(path, err)
	}
	return data, nil
}

// writeAudio writes data to path, creating missing parent directories and
// replacing any existing file.
func writeAudio(mkdirAll func(string, os.FileMode) error, path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := mkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write audio file: %w", err)
	}
	return nil
}
