package main

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/ory/dockertest/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testStorageUser     = "minioadmin"
	testStoragePassword = "minioadmin"
)

func startMinioDockerContainer(t *testing.T) (*Config, func()) {
	t.Helper()

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("Failed to start Dockertest: %+v", err)
	}

	err = pool.Client.Ping()
	if err != nil {
		t.Fatalf("Could not connect to Docker: %+v", err)
	}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "minio/minio",
		Tag:        "latest",
		Cmd:        []string{"server", "/data"},
		Env: []string{
			"MINIO_ROOT_USER=" + testStorageUser,
			"MINIO_ROOT_PASSWORD=" + testStoragePassword,
		},
	})
	if err != nil {
		t.Fatalf("Failed to start minio: %+v", err)
	}

	endpoint := "localhost:" + resource.GetPort("9000/tcp")
	config := &Config{Storage: StorageConfig{
		Endpoint:  endpoint,
		AccessKey: testStorageUser,
		SecretKey: testStoragePassword,
		Region:    "us-east-1",
		Bucket:    "test-covers",
		PublicURL: "http://" + endpoint,
	}}

	// ensure to wait for the container to be ready
	err = pool.Retry(func() error {
		_, e := GetStorageClient(config)
		return e
	})
	if err != nil {
		t.Fatalf("Failed to reach Minio: %+v", err)
	}

	destroyFunc := func() {
		if err := pool.Purge(resource); err != nil {
			t.Logf("Failed to purge resource: %+v", err)
		}
	}

	return config, destroyFunc
}

// newTestFileUpload builds a FileUpload the way a multipart request provides it.
func newTestFileUpload(t *testing.T, name string, content []byte) *FileUpload {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	fw, err := mw.CreateFormFile("cover", name)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	r := httptest.NewRequest(http.MethodPost, "/v1/books/"+testBookHexID+"/cover", body)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	file, err := ExtractFirstFile(r, 1<<20)
	require.NoError(t, err)
	return file
}

func TestS3Uploader(t *testing.T) {
	config, destroyFunc := startMinioDockerContainer(t)
	defer destroyFunc()

	client, err := GetStorageClient(config)
	require.NoError(t, err)

	uploader := NewS3Uploader(zap.NewNop(), &config.Storage, client, NewMockUIDHandler("abc"))
	content := []byte("fake png content")

	url, err := uploader.UploadFile(context.Background(), newTestFileUpload(t, "Cover.PNG", content))
	require.NoError(t, err)
	assert.Equal(t, config.Storage.PublicURL+"/test-covers/covers/abc.png", url)

	obj, err := client.GetObject(context.Background(), config.Storage.Bucket, "covers/abc.png", minio.GetObjectOptions{})
	require.NoError(t, err)
	defer obj.Close()
	data, err := io.ReadAll(obj)
	require.NoError(t, err)
	assert.Equal(t, content, data)

	info, err := obj.Stat()
	require.NoError(t, err)
	assert.Equal(t, "Cover.PNG", info.UserMetadata["Original-Name"])
}

func TestExtractFirstFile_NoFile(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/v1/books/"+testBookHexID+"/cover", strings.NewReader(`{}`))
	r.Header.Set("Content-Type", "application/json")
	_, err := ExtractFirstFile(r, 1<<20)
	assert.Equal(t, ErrNoFileFound, err)

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	require.NoError(t, mw.WriteField("title", "no file"))
	require.NoError(t, mw.Close())
	r = httptest.NewRequest(http.MethodPost, "/v1/books/"+testBookHexID+"/cover", body)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	_, err = ExtractFirstFile(r, 1<<20)
	assert.Equal(t, ErrNoFileFound, err)
}
