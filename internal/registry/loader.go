package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"diffusiond/internal/common/fsutil"
)

// Checkpoint is a diffusion weights file found on disk.
type Checkpoint struct {
	// ID is the filename without extension, e.g. "sd_xl_base_1.0".
	ID        string
	Path      string
	SizeBytes int64
}

var weightExts = []string{".safetensors", ".ckpt", ".gguf"}

func isWeightsFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range weightExts {
		if ext == e {
			return true
		}
	}
	return false
}

// LoadDir scans a directory for diffusion checkpoints (*.safetensors, *.ckpt, *.gguf).
// Results are sorted by ID.
func LoadDir(dir string) ([]Checkpoint, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var out []Checkpoint
	for _, e := range entries {
		if e.IsDir() || !isWeightsFile(e.Name()) {
			continue
		}
		name := e.Name()
		ck := Checkpoint{ID: strings.TrimSuffix(name, filepath.Ext(name)), Path: filepath.Join(abs, name)}
		if info, err := e.Info(); err == nil {
			ck.SizeBytes = info.Size()
		}
		out = append(out, ck)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Resolve maps a model identifier to a checkpoint path.
// An identifier that names an existing file is returned as-is (absolute).
// Otherwise dir is scanned and the first checkpoint matching the identifier's
// last path segment, with or without extension, case-insensitively, is used.
// Hub-style identifiers like "runwayml/stable-diffusion-v1-5" therefore match
// "stable-diffusion-v1-5.safetensors".
func Resolve(dir, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("empty model identifier")
	}
	if p, err := fsutil.ExpandHome(id); err == nil {
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return filepath.Abs(p)
		}
	}
	cks, err := LoadDir(dir)
	if err != nil {
		return "", err
	}
	want := strings.ToLower(id[strings.LastIndex(id, "/")+1:])
	for _, ck := range cks {
		if strings.ToLower(ck.ID) == want || strings.ToLower(filepath.Base(ck.Path)) == want {
			return ck.Path, nil
		}
	}
	return "", fmt.Errorf("model %q not found in %s", id, dir)
}
