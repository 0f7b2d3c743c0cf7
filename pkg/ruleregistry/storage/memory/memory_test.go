package memory

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zxcvhub/registry/pkg/ruleregistry"
)

func TestUploadDownload(t *testing.T) {
	backend := New()
	ctx := context.Background()
	key := "rules/abc/versions/def.md"

	require.NoError(t, backend.Upload(ctx, key, strings.NewReader("# Rule body")))

	reader, err := backend.Download(ctx, key)
	require.NoError(t, err)
	defer reader.Close()

	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "# Rule body", string(data))
}

func TestUploadOverwrites(t *testing.T) {
	backend := New()
	ctx := context.Background()
	key := "rules/abc/versions/def.md"

	require.NoError(t, backend.Upload(ctx, key, strings.NewReader("first")))
	require.NoError(t, backend.Upload(ctx, key, strings.NewReader("second")))

	reader, err := backend.Download(ctx, key)
	require.NoError(t, err)
	defer reader.Close()

	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestMissingKey(t *testing.T) {
	backend := New()
	ctx := context.Background()

	_, err := backend.Download(ctx, "nope")
	assert.ErrorIs(t, err, ruleregistry.ErrBlobNotFound)

	err = backend.Delete(ctx, "nope")
	assert.ErrorIs(t, err, ruleregistry.ErrBlobNotFound)

	_, err = backend.GetBlobMeta(ctx, "nope")
	assert.ErrorIs(t, err, ruleregistry.ErrBlobNotFound)
}

func TestDelete(t *testing.T) {
	backend := New()
	ctx := context.Background()
	key := "rules/abc/versions/def.md"

	require.NoError(t, backend.Upload(ctx, key, strings.NewReader("x")))
	require.NoError(t, backend.Delete(ctx, key))

	_, err := backend.Download(ctx, key)
	assert.ErrorIs(t, err, ruleregistry.ErrBlobNotFound)
}

func TestGetBlobMeta(t *testing.T) {
	backend := New()
	ctx := context.Background()
	key := "rules/abc/versions/def.md"

	require.NoError(t, backend.Upload(ctx, key, strings.NewReader("12345")))

	meta, err := backend.GetBlobMeta(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, key, meta.Key)
	assert.Equal(t, int64(5), meta.Size)
	assert.Equal(t, "text/markdown", meta.ContentType)
}
