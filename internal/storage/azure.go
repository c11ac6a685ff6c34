package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
)

// AzureConfig addresses one container through a SAS token.
type AzureConfig struct {
	Account   string
	Container string
	SAS       string
	// ServiceURL overrides https://{account}.blob.core.windows.net, e.g. for Azurite.
	ServiceURL string
}

func (c AzureConfig) serviceURL() string {
	if c.ServiceURL != "" {
		return strings.TrimSuffix(c.ServiceURL, "/")
	}
	return fmt.Sprintf("https://%s.blob.core.windows.net", c.Account)
}

type AzureUploader struct {
	cfg    AzureConfig
	client *azblob.Client
	logger *slog.Logger
}

func NewAzureUploader(cfg AzureConfig, logger *slog.Logger) (*AzureUploader, error) {
	if cfg.Account == "" && cfg.ServiceURL == "" {
		return nil, errors.New("storage account name is required")
	}
	if cfg.Container == "" {
		return nil, errors.New("container name is required")
	}
	if cfg.SAS == "" {
		return nil, errors.New("storage account SAS token is required")
	}
	cfg.SAS = strings.TrimPrefix(cfg.SAS, "?")
	if logger == nil {
		logger = slog.Default()
	}

	client, err := azblob.NewClientWithNoCredential(cfg.serviceURL()+"/?"+cfg.SAS, nil)
	if err != nil {
		return nil, fmt.Errorf("create blob client: %w", err)
	}
	return &AzureUploader{
		cfg:    cfg,
		client: client,
		logger: logger.With("component", "storage", "backend", "azure", "container", cfg.Container),
	}, nil
}

// Upload overwrites blobName with the contents of localPath. The returned
// URL carries no SAS token.
func (u *AzureUploader) Upload(ctx context.Context, localPath, blobName string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open report: %w", err)
	}
	defer f.Close()

	contentType := ContentTypeXLSX
	_, err = u.client.UploadFile(ctx, u.cfg.Container, blobName, f, &azblob.UploadFileOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	})
	if err != nil {
		u.logger.Error("upload failed", "blob", blobName, "error", err)
		return "", fmt.Errorf("upload blob %s: %w", blobName, err)
	}

	blobURL := fmt.Sprintf("%s/%s/%s", u.cfg.serviceURL(), url.PathEscape(u.cfg.Container), url.PathEscape(blobName))
	u.logger.Info("report uploaded", "url", blobURL)
	return blobURL, nil
}
