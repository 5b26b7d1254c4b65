package filestore

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	appErr "github.com/xxxsen/caseindex/internal/pkg/errors"
)

// Uploader stores original document bytes under dated, uuid-qualified keys.
type Uploader struct {
	store   Store
	timeout time.Duration
	now     func() time.Time
	newID   func() string
}

func NewUploader(store Store, timeout time.Duration) *Uploader {
	return &Uploader{
		store:   store,
		timeout: timeout,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// BuildKey returns documents/YYYY/MM/DD/{id}_{filename} for t in UTC.
func BuildKey(t time.Time, id, filename string) string {
	t = t.UTC()
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || name == ".." {
		name = "file"
	}
	return fmt.Sprintf("documents/%04d/%02d/%02d/%s_%s", t.Year(), int(t.Month()), t.Day(), id, name)
}

// Upload returns the object URL. Every failure matches appErr.ErrBlobStore.
func (u *Uploader) Upload(ctx context.Context, data []byte, filename, contentType string) (string, error) {
	if u.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.timeout)
		defer cancel()
	}
	now := u.now()
	key := BuildKey(now, u.newID(), filename)
	err := u.store.Save(ctx, key, bytes.NewReader(data), int64(len(data)), SaveOptions{
		ContentType: contentType,
		Metadata: map[string]string{
			"original_filename": filename,
			"upload_timestamp":  now.UTC().Format(time.RFC3339Nano),
		},
	})
	if err != nil {
		return "", appErr.BlobStore(err)
	}
	url := u.store.URL(key)
	logutil.GetLogger(ctx).Info("stored original document",
		zap.String("store", u.store.Type()),
		zap.String("key", key),
		zap.Int("size", len(data)),
	)
	return url, nil
}
