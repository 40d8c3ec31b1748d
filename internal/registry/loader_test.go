package registry

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte("w"), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return p
}

func TestLoadDir_FiltersWeights(t *testing.T) {
	dir := t.TempDir()
	for _, f := range []string{"b.safetensors", "a.CKPT", "c.gguf", "notes.txt", "vae.bin"} {
		touch(t, dir, f)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.safetensors"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	cks, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("scan error: %v", err)
	}
	if len(cks) != 3 {
		t.Fatalf("expected 3 checkpoints, got %d: %+v", len(cks), cks)
	}
	if cks[0].ID != "a" || cks[1].ID != "b" || cks[2].ID != "c" {
		t.Fatalf("unexpected order: %+v", cks)
	}
	if cks[1].SizeBytes != 1 {
		t.Fatalf("expected size 1, got %d", cks[1].SizeBytes)
	}
}

func TestLoadDir_ExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home dir on this platform: %v", err)
	}
	hTmp, err := os.MkdirTemp(home, "diffusiond-registry-*")
	if err != nil {
		t.Skipf("cannot create temp under home: %v", err)
	}
	defer os.RemoveAll(hTmp)
	touch(t, hTmp, "x.safetensors")
	tildePath := "~/" + filepath.Base(hTmp)
	if runtime.GOOS == "windows" {
		tildePath = filepath.Join("~", filepath.Base(hTmp))
	}
	cks, err := LoadDir(tildePath)
	if err != nil {
		t.Fatalf("scan error: %v", err)
	}
	if len(cks) != 1 || cks[0].ID != "x" {
		t.Fatalf("unexpected checkpoints: %+v", cks)
	}
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	p := touch(t, dir, "stable-diffusion-v1-5.safetensors")

	got, err := Resolve(dir, "runwayml/stable-diffusion-v1-5")
	if err != nil || got != p {
		t.Fatalf("hub id: got %q err=%v", got, err)
	}
	got, err = Resolve(dir, "Stable-Diffusion-V1-5.safetensors")
	if err != nil || got != p {
		t.Fatalf("filename: got %q err=%v", got, err)
	}
	got, err = Resolve("/nonexistent-dir", p)
	if err != nil || got != p {
		t.Fatalf("direct path: got %q err=%v", got, err)
	}
	if _, err := Resolve(dir, "missing"); err == nil {
		t.Fatalf("expected not found error")
	}
	if _, err := Resolve(dir, " "); err == nil {
		t.Fatalf("expected error for empty id")
	}
}
