package model

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// BlobSource names a model artifact stored in Azure Blob Storage.
type BlobSource struct {
	AccountURL string
	Container  string
	Blob       string
}

// Configured reports whether all fields are set.
func (b BlobSource) Configured() bool {
	return b.AccountURL != "" && b.Container != "" && b.Blob != ""
}

// FetchArtifact makes sure the model file exists at dst. If it is missing
// and src is configured, the blob is downloaded with the default Azure
// credential chain. An existing file is never overwritten.
func FetchArtifact(ctx context.Context, dst string, src BlobSource, logger *slog.Logger) error {
	if _, err := os.Stat(dst); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("checking model artifact %q: %w", dst, err)
	}
	if !src.Configured() {
		return fmt.Errorf("model artifact %q not found and no blob source configured", dst)
	}

	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return fmt.Errorf("creating azure credential: %w", err)
	}
	return downloadBlob(ctx, dst, src, cred, logger)
}

func downloadBlob(ctx context.Context, dst string, src BlobSource, cred azcore.TokenCredential, logger *slog.Logger) error {
	client, err := azblob.NewClient(src.AccountURL, cred, nil)
	if err != nil {
		return fmt.Errorf("creating blob client: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("creating model directory: %w", err)
	}

	// Download beside dst and rename once complete.
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".model-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := client.DownloadFile(ctx, src.Container, src.Blob, tmp, nil)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("downloading %s/%s: %w", src.Container, src.Blob, err)
	}

	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("installing model artifact: %w", err)
	}

	logger.Info("model artifact downloaded", "container", src.Container, "blob", src.Blob, "bytes", n, "path", dst)
	return nil
}
