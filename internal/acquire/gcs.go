package acquire

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/joseph-ayodele/mining-enricher/internal/common"
)

// GCSFetcher reads gs://bucket/object references. The storage client is
// created on first use so runs without Cloud Storage sources need no credentials.
type GCSFetcher struct {
	credentials string
	maxBytes    int64
	logger      *slog.Logger

	once   sync.Once
	client *storage.Client
	err    error
}

func NewGCSFetcher(credentials string, maxBytes int64, logger *slog.Logger) *GCSFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &GCSFetcher{credentials: strings.TrimSpace(credentials), maxBytes: maxBytes, logger: logger}
}

// clientOptions accepts inline JSON credentials or a path to a key file.
func clientOptions(creds string) []option.ClientOption {
	opts := []option.ClientOption{option.WithScopes(storage.ScopeReadOnly)}
	if creds == "" {
		return opts
	}
	if strings.HasPrefix(creds, "{") {
		return append(opts, option.WithCredentialsJSON([]byte(creds)))
	}
	return append(opts, option.WithCredentialsFile(creds))
}

func (g *GCSFetcher) storageClient(ctx context.Context) (*storage.Client, error) {
	g.once.Do(func() {
		g.client, g.err = storage.NewClient(ctx, clientOptions(g.credentials)...)
	})
	return g.client, g.err
}

func (g *GCSFetcher) Fetch(ctx context.Context, ref string) (Blob, error) {
	bucket, object, err := parseGSRef(ref)
	if err != nil {
		return Blob{}, common.AcquisitionError("parse gs reference", err)
	}
	client, err := g.storageClient(ctx)
	if err != nil {
		return Blob{}, common.AcquisitionError("create storage client", err)
	}
	r, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return Blob{}, common.AcquisitionError("object not found", common.ErrNotFound)
		}
		return Blob{}, common.AcquisitionError("open object", err)
	}
	defer func() {
		if err := r.Close(); err != nil {
			g.logger.Warn("acquire.gcs.reader_close_error", "error", err)
		}
	}()

	b, err := readLimited(r, g.maxBytes)
	if err != nil {
		return Blob{}, common.AcquisitionError("read object", err)
	}
	return Blob{Bytes: b, ContentType: r.Attrs.ContentType, Name: path.Base(object)}, nil
}

// Close releases the storage client if one was created.
func (g *GCSFetcher) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func parseGSRef(ref string) (bucket, object string, err error) {
	rest, ok := strings.CutPrefix(ref, "gs://")
	if !ok {
		return "", "", fmt.Errorf("not a gs:// reference: %q", ref)
	}
	bucket, object, _ = strings.Cut(rest, "/")
	if bucket == "" || object == "" {
		return "", "", fmt.Errorf("gs reference needs bucket and object: %q", ref)
	}
	return bucket, object, nil
}
