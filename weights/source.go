package weights

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

const gcsScheme = "gs://"

// Open returns a reader for a local weights file or a gs://bucket/object URL. a missing
// file or object gives an error matching os.ErrNotExist.
func Open(ctx context.Context, location string) (io.ReadCloser, error) {
	if !strings.HasPrefix(location, gcsScheme) {
		f, err := os.Open(location)
		if err != nil {
			return nil, errors.Wrapf(err, "opening weights %q", location)
		}
		return f, nil
	}

	bucket, object, err := parseGCSURL(location)
	if err != nil {
		return nil, err
	}
	return openGCS(ctx, bucket, object)
}

func parseGCSURL(location string) (bucket, object string, err error) {
	rest := strings.TrimPrefix(location, gcsScheme)
	bucket, object, found := strings.Cut(rest, "/")
	if !found || bucket == "" || object == "" {
		return "", "", errors.Errorf("invalid GCS url %q, expected gs://bucket/object", location)
	}
	return bucket, object, nil
}

// gcsReader closes the client together with the object reader.
type gcsReader struct {
	*storage.Reader
	client *storage.Client
}

func (r *gcsReader) Close() error {
	err := r.Reader.Close()
	if cerr := r.client.Close(); err == nil {
		err = cerr
	}
	return err
}

func openGCS(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	log := klog.FromContext(ctx)
	gcsURL := gcsScheme + bucket + "/" + object

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "creating GCS storage client")
	}

	log.Info("downloading weights from GCS", "url", gcsURL)
	startedAt := time.Now()
	r, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		client.Close()
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, errors.Wrapf(os.ErrNotExist, "object %q", gcsURL)
		}
		return nil, errors.Wrapf(err, "opening object from GCS %q", gcsURL)
	}
	log.V(2).Info("opened GCS object", "url", gcsURL, "bytes", r.Attrs.Size, "duration", time.Since(startedAt))
	return &gcsReader{Reader: r, client: client}, nil
}
