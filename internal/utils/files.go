package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	json "github.com/goccy/go-json"
)

// SafeWriteFile writes data to a temp file and atomically renames it into place.
func SafeWriteFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir output dir: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("atomic rename: %w", err)
	}
	return nil
}

// PrettyJSON marshals a value as indented JSON.
func PrettyJSON(v any) ([]byte, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal json: %w", err)
	}
	return b, nil
}

// SafeBase turns a file name into a lowercase slug usable as an output name.
func SafeBase(name string) string {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(base)) {
		switch {
		case r == ' ' || r == '-' || r == '_' || r == '.':
			b.WriteRune('-')
		case r == '/' || r == '\\' || r == ':' || r < 0x20:
		default:
			b.WriteRune(r)
		}
	}
	s := strings.Trim(b.String(), "-")
	if s == "" {
		s = "dataset"
	}
	return s
}

// NameAllocator hands out output paths inside a directory without clobbering
// existing files or each other. It is safe for concurrent use.
type NameAllocator struct {
	mu    sync.Mutex
	dir   string
	taken map[string]bool
}

func NewNameAllocator(dir string) *NameAllocator {
	return &NameAllocator{dir: dir, taken: map[string]bool{}}
}

// Next returns dir/base+suffix, or dir/base__N+suffix when that name is already
// used on disk or by an earlier call. ok is false when a numbered name had to
// be chosen.
func (a *NameAllocator) Next(base, suffix string) (path string, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	cand := filepath.Join(a.dir, base+suffix)
	for idx := 2; a.exists(cand); idx++ {
		cand = filepath.Join(a.dir, fmt.Sprintf("%s__%d%s", base, idx, suffix))
		ok = true
	}
	a.taken[cand] = true
	return cand, !ok
}

func (a *NameAllocator) exists(p string) bool {
	if a.taken[p] {
		return true
	}
	_, err := os.Stat(p)
	return err == nil
}
