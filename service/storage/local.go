package storage

import (
	"context"
	"os"
	"path/filepath"

	"golang.org/x/xerrors"

	"github.com/khaledhikmat/fs-go/service/config"
)

type localService struct {
	CfgSvc config.IService
}

// NewLocal keeps everything under the configured storage folder
func NewLocal(cfgsvc config.IService) IService {
	return &localService{
		CfgSvc: cfgsvc,
	}
}

func (svc *localService) Store(_ context.Context, key string, data []byte, _ string) (string, error) {
	path := filepath.Join(svc.CfgSvc.GetStorageParameters().Folder, filepath.Clean("/" + key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", xerrors.Errorf("creating storage folder: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", xerrors.Errorf("writing %s: %w", path, err)
	}

	return path, nil
}

// StoreFile leaves files that already live under the storage folder in place.
func (svc *localService) StoreFile(ctx context.Context, fileName string, contentType string) (string, error) {
	folder, err := filepath.Abs(svc.CfgSvc.GetStorageParameters().Folder)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(fileName)
	if err != nil {
		return "", err
	}
	if filepath.Dir(abs) == folder {
		return fileName, nil
	}

	data, err := os.ReadFile(fileName)
	if err != nil {
		return "", xerrors.Errorf("reading %s: %w", fileName, err)
	}
	return svc.Store(ctx, filepath.Base(fileName), data, contentType)
}
