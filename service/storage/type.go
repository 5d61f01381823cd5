package storage

import "context"

// IService keeps alert snapshots and episode clips. Both methods return a
// location (URL or path) that can be handed to notification channels.
type IService interface {
	Store(ctx context.Context, key string, data []byte, contentType string) (string, error)
	StoreFile(ctx context.Context, fileName string, contentType string) (string, error)
}
