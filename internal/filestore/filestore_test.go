package filestore

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/caseindex/internal/config"
	appErr "github.com/xxxsen/caseindex/internal/pkg/errors"
)

func TestBuildKey(t *testing.T) {
	ts := time.Date(2024, 3, 7, 23, 30, 0, 0, time.FixedZone("x", -2*3600))
	require.Equal(t, "documents/2024/03/08/abc_brief.pdf", BuildKey(ts, "abc", "brief.pdf"))
	require.Equal(t, "documents/2024/03/08/abc_evil.txt", BuildKey(ts, "abc", "../../evil.txt"))
	require.Equal(t, "documents/2024/03/08/abc_x.md", BuildKey(ts, "abc", `C:\docs\x.md`))
}

func TestLocalStoreSave(t *testing.T) {
	dir := t.TempDir()
	store, err := New(config.FileStoreConfig{Type: "local", Data: map[string]interface{}{"dir": dir, "public_url": "http://files.local/"}})
	require.NoError(t, err)

	u := NewUploader(store, time.Second)
	u.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	u.newID = func() string { return "fixed-id" }

	url, err := u.Upload(context.Background(), []byte("hello"), "notes.txt", "text/plain")
	require.NoError(t, err)
	require.Equal(t, "http://files.local/documents/2024/01/02/fixed-id_notes.txt", url)

	data, err := os.ReadFile(filepath.Join(dir, "documents", "2024", "01", "02", "fixed-id_notes.txt"))
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))
}

func TestLocalStoreRejectsTraversal(t *testing.T) {
	store := &localStore{dir: t.TempDir()}
	for _, key := range []string{"", "../x", "a/../../x", `a\b`} {
		_, err := store.resolve(key)
		require.Error(t, err, key)
	}
}

type failingStore struct{}

func (failingStore) Type() string { return "failing" }
func (failingStore) Save(ctx context.Context, key string, r io.ReadSeeker, size int64, opts SaveOptions) error {
	return errors.New("access denied")
}
func (failingStore) URL(key string) string { return "" }

func TestUploaderWrapsFailures(t *testing.T) {
	u := NewUploader(failingStore{}, 0)
	_, err := u.Upload(context.Background(), []byte("x"), "a.txt", "")
	require.True(t, errors.Is(err, appErr.ErrBlobStore))
	require.Contains(t, err.Error(), "access denied")
}

type fakePutObject struct {
	input *s3.PutObjectInput
	body  []byte
}

func (f *fakePutObject) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = params
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.body = data
	return &s3.PutObjectOutput{}, nil
}

func TestS3StoreSave(t *testing.T) {
	fake := &fakePutObject{}
	store := &s3Store{client: fake, bucket: "cases", prefix: "raw", baseURL: buildS3BaseURL("", "cases")}
	err := store.Save(context.Background(), "documents/2024/01/02/id_a.pdf", strings.NewReader("pdf-bytes"), 9, SaveOptions{
		ContentType: "application/pdf",
		Metadata:    map[string]string{"original_filename": "résumé.pdf"},
	})
	require.NoError(t, err)
	require.Equal(t, "cases", aws.ToString(fake.input.Bucket))
	require.Equal(t, "raw/documents/2024/01/02/id_a.pdf", aws.ToString(fake.input.Key))
	require.Equal(t, "application/pdf", aws.ToString(fake.input.ContentType))
	require.Equal(t, "r%C3%A9sum%C3%A9.pdf", fake.input.Metadata["original_filename"])
	require.Equal(t, "pdf-bytes", string(fake.body))
	require.Equal(t, "https://cases.s3.amazonaws.com/raw/documents/2024/01/02/id_a.pdf", store.URL("documents/2024/01/02/id_a.pdf"))
}

func TestBuildS3BaseURL(t *testing.T) {
	require.Equal(t, "https://b.s3.amazonaws.com", buildS3BaseURL("", "b"))
	require.Equal(t, "http://minio:9000/b", buildS3BaseURL("http://minio:9000", "b"))
	require.Equal(t, "https://s3.example.com/b", buildS3BaseURL("s3.example.com", "b"))
}

func TestNewRequiresType(t *testing.T) {
	_, err := New(config.FileStoreConfig{})
	require.Error(t, err)
	_, err = New(config.FileStoreConfig{Type: "ftp", Data: map[string]interface{}{}})
	require.Error(t, err)
	_, err = New(config.FileStoreConfig{Type: "s3", Data: map[string]interface{}{}})
	require.Error(t, err)
}
