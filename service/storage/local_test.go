package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/khaledhikmat/fs-go/service/config"
)

func TestLocalStoreWritesUnderFolder(t *testing.T) {
	dir := t.TempDir()
	svc := NewLocal(config.NewWith(func(s *config.Settings) { s.Storage.Folder = dir }))

	path, err := svc.Store(context.Background(), "snapshots/e1.jpg", []byte("jpeg"), "image/jpeg")
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if path != filepath.Join(dir, "snapshots", "e1.jpg") {
		t.Fatalf("unexpected path %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil || string(data) != "jpeg" {
		t.Fatalf("unexpected stored content %q (%v)", data, err)
	}
}

func TestLocalStoreRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	svc := NewLocal(config.NewWith(func(s *config.Settings) { s.Storage.Folder = dir }))

	path, err := svc.Store(context.Background(), "../../escape.jpg", []byte("x"), "image/jpeg")
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Fatalf("expected key to be confined to %s, got %s", dir, path)
	}
}

func TestLocalStoreFileCopiesForeignFiles(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(src, []byte("mp4"), 0o600); err != nil {
		t.Fatalf("write clip: %v", err)
	}

	svc := NewLocal(config.NewWith(func(s *config.Settings) { s.Storage.Folder = dir }))
	path, err := svc.StoreFile(context.Background(), src, "video/mp4")
	if err != nil {
		t.Fatalf("store file: %v", err)
	}
	if path != filepath.Join(dir, "clip.mp4") {
		t.Fatalf("unexpected path %s", path)
	}
}
