package s3

import (
	"context"
	"testing"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// No network: constructor and key mapping only. Behavior against a live
// endpoint is covered by the S3-compatible MinIO path in integration
// environments.

func testStore(t *testing.T, prefix string) *Store {
	t.Helper()

	store, err := New(context.Background(), "test-bucket", func(o *Options) {
		o.Prefix = prefix
		o.Client = awss3.New(awss3.Options{Region: "us-east-1"})
	})
	require.NoError(t, err)
	return store
}

func TestKeyMapping(t *testing.T) {
	store := testStore(t, "scape")

	assert.Equal(t, "scape/models/a", store.key("models/a"))
	assert.Equal(t, "models/a", store.relative("scape/models/a"))
}

func TestKeyMapping_NoPrefix(t *testing.T) {
	store := testStore(t, "")

	assert.Equal(t, "models/a", store.key("models/a"))
	assert.Equal(t, "models/a", store.relative("models/a"))
}
