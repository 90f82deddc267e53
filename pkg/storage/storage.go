// Package storage holds the tally document blobs: dropped worklogs, mailbox
// attachments, merged submissions and their archived copies. Blobs live in
// Azure Blob Storage (azurite in development) or, for tests and offline
// runs, in process memory.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"github.com/JaimeStill/tally/pkg/lifecycle"
	"github.com/JaimeStill/tally/pkg/retry"
)

// System stores blobs by key. Every method rejects keys that fail
// ValidateKey, and a missing blob is ErrNotFound.
type System interface {
	// Start ensures the container exists once the lifecycle starts.
	Start(lc *lifecycle.Coordinator) error
	Upload(ctx context.Context, key string, reader io.Reader, contentType string) error
	// Download streams a blob. The caller closes the reader.
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// containerRetry paces container creation while azurite starts alongside
// the coordinator.
var containerRetry = retry.Config{
	MaxRetries:      5,
	InitialInterval: "500ms",
	MaxInterval:     "5s",
}

type azure struct {
	client    *azblob.Client
	container string
	logger    *slog.Logger
}

// New returns the configured provider. The Azure client is built from the
// connection string here; nothing is contacted until Start.
func New(cfg *Config, logger *slog.Logger) (System, error) {
	if cfg.Provider == ProviderMemory {
		return NewMemory(logger), nil
	}

	client, err := azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	return &azure{
		client:    client,
		container: cfg.ContainerName,
		logger:    logger.With("system", "storage", "container", cfg.ContainerName),
	}, nil
}

func (a *azure) Start(lc *lifecycle.Coordinator) error {
	lc.OnStartup(func() {
		err := retry.Do(lc.Context(), containerRetry, a.logger, func() error {
			_, err := a.client.CreateContainer(lc.Context(), a.container, nil)
			if bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
				return nil
			}
			return err
		})
		if err != nil {
			a.logger.Error("container unavailable, document intake will fail", "error", err)
			return
		}
		a.logger.Info("container ready")
	})
	return nil
}

func (a *azure) Upload(ctx context.Context, key string, reader io.Reader, contentType string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	_, err := a.client.UploadStream(ctx, a.container, key, reader, &azblob.UploadStreamOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	})
	return a.mapErr("upload", key, err)
}

func (a *azure) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}

	resp, err := a.client.DownloadStream(ctx, a.container, key, nil)
	if err != nil {
		return nil, a.mapErr("download", key, err)
	}
	return resp.Body, nil
}

func (a *azure) Delete(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	include := blob.DeleteSnapshotsOptionTypeInclude
	_, err := a.client.DeleteBlob(ctx, a.container, key, &blob.DeleteOptions{DeleteSnapshots: &include})
	return a.mapErr("delete", key, err)
}

func (a *azure) Exists(ctx context.Context, key string) (bool, error) {
	if err := ValidateKey(key); err != nil {
		return false, err
	}

	_, err := a.client.
		ServiceClient().
		NewContainerClient(a.container).
		NewBlobClient(key).
		GetProperties(ctx, nil)

	switch err = a.mapErr("stat", key, err); {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// mapErr turns a missing blob into ErrNotFound and wraps everything else
// with the operation and key.
func (a *azure) mapErr(op, key string, err error) error {
	switch {
	case err == nil:
		return nil
	case bloberror.HasCode(err, bloberror.BlobNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	default:
		return fmt.Errorf("%s blob %s: %w", op, key, err)
	}
}
