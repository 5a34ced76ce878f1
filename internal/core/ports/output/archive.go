package ports

import "context"

// RawArchive keeps the original uploaded bytes next to the parsed snapshot.
type RawArchive interface {
	Put(ctx context.Context, key string, data []byte) (string, error)
}
