package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"

	apperrors "go-lens-sharpness/internal/errors"
)

// blobUploader is the part of the azblob client the store uses
type blobUploader interface {
	UploadBuffer(ctx context.Context, containerName string, blobName string, buffer []byte, o *azblob.UploadBufferOptions) (azblob.UploadBufferResponse, error)
	URL() string
}

// AzureArtifactStore uploads artifacts as block blobs of one container
type AzureArtifactStore struct {
	client    blobUploader
	container string
	prefix    string
}

// NewAzureArtifactStore creates a store using shared key credentials
func NewAzureArtifactStore(accountName, accountKey, container, prefix string) (*AzureArtifactStore, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, apperrors.NewConfigurationError("invalid Azure storage credentials", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net/", accountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, apperrors.NewConfigurationError("cannot create Azure blob client", err)
	}

	return newAzureArtifactStore(client, container, prefix), nil
}

func newAzureArtifactStore(client blobUploader, container, prefix string) *AzureArtifactStore {
	return &AzureArtifactStore{
		client:    client,
		container: container,
		prefix:    strings.Trim(prefix, "/"),
	}
}

// Save uploads data as <prefix>/<key>
func (s *AzureArtifactStore) Save(ctx context.Context, key string, data []byte, contentType string) error {
	name := s.blobName(key)
	opts := &azblob.UploadBufferOptions{}
	if contentType != "" {
		opts.HTTPHeaders = &blob.HTTPHeaders{BlobContentType: &contentType}
	}
	if _, err := s.client.UploadBuffer(ctx, s.container, name, data, opts); err != nil {
		return apperrors.NewPersistenceError("upload failed for "+name, err)
	}
	return nil
}

// Location returns the blob URL of key
func (s *AzureArtifactStore) Location(key string) string {
	return strings.TrimRight(s.client.URL(), "/") + "/" + s.container + "/" + s.blobName(key)
}

func (s *AzureArtifactStore) blobName(key string) string {
	key = strings.TrimLeft(key, "/")
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}
