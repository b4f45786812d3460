package storagesvc

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/attachment"
)

const cacheForever = "public, max-age=31536000, immutable"

// OSSStore keeps objects in an Alibaba Cloud OSS bucket. Keys are unique per upload so objects
// are cached forever.
type OSSStore struct {
	bucket  *oss.Bucket
	baseURL string
}

var _ attachment.Store = (*OSSStore)(nil)

func NewOSSStore(conf core.StorageConfig) (*OSSStore, error) {
	if conf.OSSEndpoint == "" || conf.OSSAccessKey == "" || conf.OSSSecretKey == "" || conf.OSSBucket == "" {
		return nil, errors.New("oss storage needs an endpoint, access key, secret key and bucket")
	}
	client, err := oss.New(conf.OSSEndpoint, conf.OSSAccessKey, conf.OSSSecretKey)
	if err != nil {
		return nil, errors.Wrap(err, "creating oss client")
	}
	bucket, err := client.Bucket(conf.OSSBucket)
	if err != nil {
		return nil, errors.Wrap(err, "opening oss bucket")
	}

	baseURL := conf.PublicBaseURL
	if baseURL == "" {
		endpoint := strings.TrimPrefix(strings.TrimPrefix(conf.OSSEndpoint, "https://"), "http://")
		baseURL = "https://" + conf.OSSBucket + "." + endpoint
	}
	return &OSSStore{bucket: bucket, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *OSSStore) Put(ctx context.Context, path string, body io.Reader, size int64, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	opts := []oss.Option{
		oss.WithContext(ctx),
		oss.ContentType(contentType),
		oss.ContentDisposition("inline"),
		oss.CacheControl(cacheForever),
	}
	if size >= 0 {
		opts = append(opts, oss.ContentLength(size))
	}
	return errors.Wrap(s.bucket.PutObject(path, body, opts...), "putting oss object")
}

// Remove deletes the objects. Missing objects are not an error.
func (s *OSSStore) Remove(ctx context.Context, paths ...string) error {
	switch len(paths) {
	case 0:
		return nil
	case 1:
		err := s.bucket.DeleteObject(paths[0], oss.WithContext(ctx))
		if isNotFound(err) {
			return nil
		}
		return errors.Wrap(err, "deleting oss object")
	default:
		_, err := s.bucket.DeleteObjects(paths, oss.WithContext(ctx), oss.DeleteObjectsQuiet(true))
		return errors.Wrap(err, "deleting oss objects")
	}
}

func (s *OSSStore) PublicURL(path string) string {
	return s.baseURL + "/" + strings.TrimLeft(path, "/")
}

func isNotFound(err error) bool {
	if e, ok := err.(oss.ServiceError); ok {
		return e.StatusCode == http.StatusNotFound
	}
	return false
}
