// Package storage archives captured images off the station.
package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// BlobStorage uploads a local file under a blob name and returns its URL
type BlobStorage interface {
	UploadFile(ctx context.Context, blobName, localPath string) (string, error)
}

type azureStorage struct {
	client    *azblob.Client
	account   string
	container string
}

// NewAzureStorage creates an archive bound to one container of a storage account
func NewAzureStorage(accountName, accountKey, container string) (BlobStorage, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("azure credential: %w", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net", accountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("azure client: %w", err)
	}

	return &azureStorage{client: client, account: accountName, container: container}, nil
}

func (s *azureStorage) UploadFile(ctx context.Context, blobName, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	if _, err := s.client.UploadFile(ctx, s.container, blobName, f, nil); err != nil {
		return "", fmt.Errorf("upload failed: %w", err)
	}
	return fmt.Sprintf("https://%s.blob.core.windows.net/%s/%s", s.account, s.container, blobName), nil
}

// BlobName is the archive key of a capture: project/accession/file
func BlobName(project, accession, localPath string) string {
	return path.Join(project, accession, path.Base(filepath.ToSlash(localPath)))
}
