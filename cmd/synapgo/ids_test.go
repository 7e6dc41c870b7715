package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIDs(t *testing.T) {
	ids, err := parseIDs("1-3, 7,10-10")
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 2, 3, 7, 10}, ids.ToArray())

	for _, bad := range []string{"", ",", "x", "3-1", "1-", "-5", "4294967296"} {
		_, err := parseIDs(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseStoreURI(t *testing.T) {
	tests := []struct {
		raw  string
		want storeURI
	}{
		{"./circuit", storeURI{Scheme: "file", Path: "./circuit"}},
		{"file:///data/circuit", storeURI{Scheme: "file", Path: "/data/circuit"}},
		{"s3://bucket/circuits/ca1/", storeURI{Scheme: "s3", Bucket: "bucket", Path: "circuits/ca1"}},
		{"minio://bucket", storeURI{Scheme: "minio", Bucket: "bucket"}},
	}
	for _, tt := range tests {
		got, err := parseStoreURI(tt.raw)
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}

	for _, bad := range []string{"", "gs://bucket/x", "s3:///x"} {
		_, err := parseStoreURI(bad)
		assert.Error(t, err, bad)
	}
}
