package s3blob

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/xetraetl/internal/domain"
)

func TestNormaliseEndpoint(t *testing.T) {
	tests := []struct {
		endpoint string
		useSSL   bool
		want     string
	}{
		{"localhost:9000", false, "http://localhost:9000"},
		{"s3.eu-central-1.amazonaws.com", true, "https://s3.eu-central-1.amazonaws.com"},
		{"https://minio.internal", false, "https://minio.internal"},
		{"minio.internal:9000", true, "https://minio.internal:9000"},
		{"http://127.0.0.1:9000", true, "http://127.0.0.1:9000"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normaliseEndpoint(tt.endpoint, tt.useSSL), tt.endpoint)
	}
}

func TestNewRequiresBucketAndRegion(t *testing.T) {
	_, err := New(context.Background(), ClientConfig{Region: "eu-central-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket")

	_, err = New(context.Background(), ClientConfig{Bucket: "xetra-1234"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "region")
}

func TestNewStaticCredentials(t *testing.T) {
	c, err := New(context.Background(), ClientConfig{
		Endpoint:       "localhost:9000",
		Region:         "us-east-1",
		Bucket:         "xetra-reports",
		AccessKey:      "minio",
		SecretKey:      "minio123",
		ForcePathStyle: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "xetra-reports", c.Bucket())
	assert.NotNil(t, NewStore(c).Reader)
}

func bucketServer(t *testing.T, status int) (*httptest.Server, <-chan string) {
	t.Helper()
	requests := make(chan string, 16)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case requests <- r.Method + " " + r.URL.Path:
		default:
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, requests
}

func testClient(t *testing.T, endpoint string) *Client {
	t.Helper()
	c, err := New(context.Background(), ClientConfig{
		Endpoint:       endpoint,
		Region:         "us-east-1",
		Bucket:         "xetra-reports",
		AccessKey:      "minio",
		SecretKey:      "minio123",
		ForcePathStyle: true,
	})
	require.NoError(t, err)
	return c
}

func TestHealthHeadsBucket(t *testing.T) {
	srv, requests := bucketServer(t, http.StatusOK)

	require.NoError(t, testClient(t, srv.URL).Health(context.Background()))
	require.Len(t, requests, 1)
	assert.Equal(t, "HEAD /xetra-reports", <-requests)
}

func TestHealthMissingBucket(t *testing.T) {
	srv, _ := bucketServer(t, http.StatusNotFound)

	err := testClient(t, srv.URL).Health(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Contains(t, err.Error(), "xetra-reports")
}

func TestHealthForbidden(t *testing.T) {
	srv, _ := bucketServer(t, http.StatusForbidden)

	err := testClient(t, srv.URL).Health(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
}
