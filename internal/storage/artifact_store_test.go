package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "go-lens-sharpness/internal/errors"
)

func TestLocalArtifactStore_Save(t *testing.T) {
	root := t.TempDir()
	store := NewLocalArtifactStore(root)

	err := store.Save(context.Background(), "reports/lens_a/chart_analysis.json", []byte(`{}`), ContentTypeJSON)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, "reports", "lens_a", "chart_analysis.json"))
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
	assert.Equal(t, filepath.Join(root, "reports", "lens_a", "chart_analysis.json"), store.Location("reports/lens_a/chart_analysis.json"))
}

func TestLocalArtifactStore_RejectsEscapingKeys(t *testing.T) {
	store := NewLocalArtifactStore(t.TempDir())

	for _, key := range []string{"", "../outside.txt", "/etc/passwd", "a/../../b"} {
		err := store.Save(context.Background(), key, []byte("x"), ContentTypeText)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypePersistence), "key %q", key)
	}
}

func TestLocalArtifactStore_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewLocalArtifactStore(t.TempDir()).Save(ctx, "a.txt", nil, ContentTypeText)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypePersistence))
}

type fakeUploader struct {
	container, name, contentType string
	data                         []byte
	err                          error
}

func (f *fakeUploader) UploadBuffer(_ context.Context, container, name string, buf []byte, o *azblob.UploadBufferOptions) (azblob.UploadBufferResponse, error) {
	f.container, f.name, f.data = container, name, buf
	if o != nil && o.HTTPHeaders != nil && o.HTTPHeaders.BlobContentType != nil {
		f.contentType = *o.HTTPHeaders.BlobContentType
	}
	return azblob.UploadBufferResponse{}, f.err
}

func (f *fakeUploader) URL() string { return "https://acct.blob.core.windows.net/" }

func TestAzureArtifactStore_Save(t *testing.T) {
	up := &fakeUploader{}
	store := newAzureArtifactStore(up, "lens-analysis", "/run-1/")

	require.NoError(t, store.Save(context.Background(), "heatmaps/lens_a/chart_sobel_heatmap.png", []byte{1, 2}, ContentTypePNG))
	assert.Equal(t, "lens-analysis", up.container)
	assert.Equal(t, "run-1/heatmaps/lens_a/chart_sobel_heatmap.png", up.name)
	assert.Equal(t, ContentTypePNG, up.contentType)
	assert.Equal(t, []byte{1, 2}, up.data)
	assert.Equal(t, "https://acct.blob.core.windows.net/lens-analysis/run-1/x.png", store.Location("x.png"))

	up.err = errors.New("boom")
	err := store.Save(context.Background(), "x.png", nil, ContentTypePNG)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypePersistence))
}

func TestNewAzureArtifactStore_BadKey(t *testing.T) {
	_, err := NewAzureArtifactStore("acct", "not base64 !!", "c", "")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConfiguration))
}
