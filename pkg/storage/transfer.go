package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
)

// ReadAll downloads the blob at key into memory.
func ReadAll(ctx context.Context, sys System, key string) ([]byte, error) {
	body, err := sys.Download(ctx, key)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", key, err)
	}
	return data, nil
}

// Copy duplicates the blob at src to dst.
func Copy(ctx context.Context, sys System, src, dst, contentType string) error {
	data, err := ReadAll(ctx, sys, src)
	if err != nil {
		return err
	}
	return sys.Upload(ctx, dst, bytes.NewReader(data), contentType)
}

// Move copies src to dst and removes src. A missing src after a successful
// copy is not an error, so a move interrupted between the two steps can be
// repeated.
func Move(ctx context.Context, sys System, src, dst, contentType string) error {
	if err := Copy(ctx, sys, src, dst, contentType); err != nil {
		if errors.Is(err, ErrNotFound) {
			if ok, existsErr := sys.Exists(ctx, dst); existsErr == nil && ok {
				return nil
			}
		}
		return err
	}

	if err := sys.Delete(ctx, src); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}
