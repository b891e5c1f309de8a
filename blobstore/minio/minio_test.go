package minio

import (
	"testing"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// No network: constructor and key mapping only.

func TestKeyMapping(t *testing.T) {
	client, err := miniogo.New("localhost:9000", &miniogo.Options{})
	require.NoError(t, err)

	store := New(client, "test-bucket", "scape")
	assert.Equal(t, "scape/models/a", store.key("models/a"))
	assert.Equal(t, "models/a", store.relative("scape/models/a"))

	bare := New(client, "test-bucket", "")
	assert.Equal(t, "models/a", bare.key("models/a"))
}
