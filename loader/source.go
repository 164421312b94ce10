// Package loader reads the dashboard's inputs: the held-out feature table, its
// labels and the trained model artifact.
//
// All reads go through a Source. FileSource reads local files only; FetchSource
// downloads a missing file once from its configured remote URL (HTTP(S) or S3) and
// then reads the local copy.
//
// Error contract:
//   - a path that does not exist (and has no remote) is a NotFoundError
//   - unreadable or malformed content is a DeserializationError
//   - a failed download is a TransferError
package loader

import (
	"context"
	"io"
	"io/fs"
	"os"

	"github.com/ezoic/elasticity/pkg/errors"
)

// Source opens a named input for reading.
type Source interface {
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// FileSource reads from the local filesystem.
type FileSource struct{}

// Open opens path, returning a NotFoundError if it does not exist.
func (FileSource) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return openLocal(path)
}

func openLocal(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.NewNotFoundError("open", path)
		}
		return nil, errors.NewDeserializationError("open", path, err)
	}
	return f, nil
}

// NewSource returns a FetchSource when remotes maps any local path to a URL, and a
// FileSource otherwise.
func NewSource(remotes map[string]string, fetchers map[string]Fetcher) Source {
	if len(remotes) == 0 {
		return FileSource{}
	}
	return NewFetchSource(remotes, fetchers)
}
