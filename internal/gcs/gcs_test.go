package gcs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURI(t *testing.T) {
	tests := []struct {
		uri     string
		bucket  string
		object  string
		wantErr bool
	}{
		{uri: "gs://statements/2024/jan.pdf", bucket: "statements", object: "2024/jan.pdf"},
		{uri: "gs://b/o", bucket: "b", object: "o"},
		{uri: "gs://bucket-only", wantErr: true},
		{uri: "gs://bucket/", wantErr: true},
		{uri: "s3://bucket/key", wantErr: true},
		{uri: "/tmp/local.pdf", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, object, err := ParseURI(tt.uri)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.bucket, bucket)
			assert.Equal(t, tt.object, object)
		})
	}
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "file.pdf", Filename("gs://bucket/folder/file.pdf"))
	assert.Equal(t, "bucket", Filename("gs://bucket"))
}
