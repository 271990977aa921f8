package s3

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectKey(t *testing.T) {
	cases := []struct {
		prefix, key, want string
	}{
		{"", "charges/pay-1.json", "charges/pay-1.json"},
		{"receipts/", "/refunds/pay-2.json", "receipts/refunds/pay-2.json"},
		{" archive ", "charges/x.json", "archive/charges/x.json"},
	}
	for _, tc := range cases {
		got, err := objectKey(tc.prefix, tc.key)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}

	_, err := objectKey("", " / ")
	assert.Error(t, err)
	_, err = objectKey("", "../etc/passwd")
	assert.Error(t, err)
}

func TestParseEndpoint(t *testing.T) {
	assert.Equal(t, "minio:9000", parseEndpoint("http://minio:9000"))
	assert.Equal(t, "localhost:9000", parseEndpoint("localhost:9000"))
}

func TestNewArchiveRequiresEndpointAndBucket(t *testing.T) {
	_, err := NewArchive("", false, "a", "b", "bucket", "", nil)
	assert.Error(t, err)
	_, err = NewArchive("localhost:9000", false, "a", "b", " ", "", nil)
	assert.Error(t, err)

	a, err := NewArchive("http://localhost:9000", false, "a", "b", "bucket", "receipts", nil)
	require.NoError(t, err)
	assert.Equal(t, "bucket", a.bucket)
}
