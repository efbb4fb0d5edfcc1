package table

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Loader turns a raw file into a Table.
type Loader interface {
	CanLoad(filename string) bool
	Load(r io.Reader, name string, opt ReadOptions) (*Table, error)
}

var registry []Loader

// Register adds a loader implementation to the registry.
func Register(l Loader) {
	registry = append(registry, l)
}

// Read selects a loader based on filename and parses r. Unknown extensions
// are read as CSV.
func Read(r io.Reader, filename string, opt ReadOptions) (*Table, error) {
	name := filepath.Base(filename)
	for _, l := range registry {
		if l.CanLoad(filename) {
			return l.Load(r, name, opt)
		}
	}
	return csvLoader{}.Load(r, name, opt)
}

// LoadFile opens path and reads it with the matching loader.
func LoadFile(path string, opt ReadOptions) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()
	return Read(f, path, opt)
}

func init() {
	Register(csvLoader{})
	Register(xlsxLoader{})
}
