package loader

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ezoic/elasticity/pkg/errors"
	"github.com/ezoic/elasticity/pkg/log"
)

// Fetcher downloads the object at rawURL into w.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, w io.Writer) error
}

// FetchSource serves local files, downloading each missing file once from its remote.
type FetchSource struct {
	remotes  map[string]string  // local path -> remote URL
	fetchers map[string]Fetcher // URL scheme -> fetcher

	mu     sync.Mutex
	logger log.Logger
}

// NewFetchSource creates a FetchSource. fetchers is keyed by URL scheme; when nil,
// http and https use an HTTPFetcher with the default client.
func NewFetchSource(remotes map[string]string, fetchers map[string]Fetcher) *FetchSource {
	if fetchers == nil {
		h := &HTTPFetcher{}
		fetchers = map[string]Fetcher{"http": h, "https": h}
	}
	return &FetchSource{
		remotes:  remotes,
		fetchers: fetchers,
		logger:   log.GetLoggerWithName("loader"),
	}
}

// Open opens path, fetching it first if it is missing locally and has a remote.
func (s *FetchSource) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	remote, ok := s.remotes[path]
	if !ok {
		return openLocal(path)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(path); err == nil {
		return openLocal(path)
	}
	if err := s.fetch(ctx, remote, path); err != nil {
		return nil, err
	}
	return openLocal(path)
}

func (s *FetchSource) fetch(ctx context.Context, remote, path string) error {
	u, err := url.Parse(remote)
	if err != nil {
		return errors.NewTransferError("fetch", remote, err)
	}
	f, ok := s.fetchers[u.Scheme]
	if !ok {
		return errors.NewTransferError("fetch", remote, errors.Newf("no fetcher for scheme %q", u.Scheme))
	}

	start := time.Now()
	logger := s.logger.With(log.URLKey, remote, log.PathKey, path)
	logger.Info("Fetching remote input", log.OperationKey, log.OperationFetch)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.NewTransferError("fetch", remote, err)
	}

	// partial downloads never appear at path
	tmp, err := os.CreateTemp(filepath.Dir(path), ".fetch-*")
	if err != nil {
		return errors.NewTransferError("fetch", remote, err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := f.Fetch(ctx, remote, tmp); err != nil {
		_ = tmp.Close()
		logger.Error("Fetch failed", err)
		return errors.NewTransferError("fetch", remote, err)
	}
	if err := tmp.Close(); err != nil {
		return errors.NewTransferError("fetch", remote, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.NewTransferError("fetch", remote, err)
	}

	logger.Info("Fetched remote input", log.DurationMsKey, time.Since(start).Milliseconds())
	return nil
}

// HTTPFetcher downloads over HTTP(S).
type HTTPFetcher struct {
	Client *http.Client
}

// Fetch GETs rawURL and copies the body to w. Any status other than 200 fails.
func (h *HTTPFetcher) Fetch(ctx context.Context, rawURL string, w io.Writer) error {
	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return errors.Newf("unexpected status %s", resp.Status)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return errors.Wrap(err, "read body")
	}
	return nil
}

// S3GetObjectAPI is the subset of the S3 client used by S3Fetcher.
type S3GetObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Fetcher downloads s3://bucket/key URLs.
type S3Fetcher struct {
	Client S3GetObjectAPI
}

// NewS3Fetcher creates an S3Fetcher using the default AWS credential chain.
func NewS3Fetcher(ctx context.Context) (*S3Fetcher, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load aws config")
	}
	return &S3Fetcher{Client: s3.NewFromConfig(cfg)}, nil
}

// Fetch copies the object body to w.
func (f *S3Fetcher) Fetch(ctx context.Context, rawURL string, w io.Writer) error {
	bucket, key, err := ParseS3URL(rawURL)
	if err != nil {
		return err
	}

	out, err := f.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return errors.Wrapf(err, "get s3://%s/%s", bucket, key)
	}
	defer func() { _ = out.Body.Close() }()

	if _, err := io.Copy(w, out.Body); err != nil {
		return errors.Wrap(err, "read object")
	}
	return nil
}

// ParseS3URL splits s3://bucket/key into its bucket and key.
func ParseS3URL(rawURL string) (bucket, key string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", err
	}
	if u.Scheme != "s3" || u.Host == "" {
		return "", "", errors.Newf("not an s3 url: %s", rawURL)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", "", errors.Newf("s3 url has no key: %s", rawURL)
	}
	return u.Host, key, nil
}
