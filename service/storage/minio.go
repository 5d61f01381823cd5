package storage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/fs-go/service/config"
	"github.com/khaledhikmat/fs-go/service/lgr"
)

type minioService struct {
	client *minio.Client
	bucket string
	secure bool
	host   string
}

// NewMinio uploads snapshots and clips to an S3 compatible bucket. The bucket is
// created if it does not exist.
func NewMinio(ctx context.Context, cfgSvc config.IService) (IService, error) {
	params := cfgSvc.GetStorageParameters()

	client, err := minio.New(params.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(params.MinioAccessKey, params.MinioSecretKey, ""),
		Secure: params.MinioSecure,
	})
	if err != nil {
		return nil, xerrors.Errorf("creating minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, params.MinioBucket)
	if err != nil {
		return nil, xerrors.Errorf("checking bucket %s: %w", params.MinioBucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, params.MinioBucket, minio.MakeBucketOptions{}); err != nil {
			return nil, xerrors.Errorf("creating bucket %s: %w", params.MinioBucket, err)
		}
		lgr.Logger.Info("storage bucket created", slog.String("bucket", params.MinioBucket))
	}

	return &minioService{
		client: client,
		bucket: params.MinioBucket,
		secure: params.MinioSecure,
		host:   params.MinioEndpoint,
	}, nil
}

func (svc *minioService) Store(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := svc.client.PutObject(ctx, svc.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", xerrors.Errorf("uploading %s: %w", key, err)
	}

	return svc.objectURL(key), nil
}

func (svc *minioService) StoreFile(ctx context.Context, fileName string, contentType string) (string, error) {
	key := filepath.Base(fileName)
	_, err := svc.client.FPutObject(ctx, svc.bucket, key, fileName, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", xerrors.Errorf("uploading %s: %w", fileName, err)
	}

	return svc.objectURL(key), nil
}

func (svc *minioService) objectURL(key string) string {
	scheme := "http"
	if svc.secure {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, svc.host, svc.bucket, key)
}
