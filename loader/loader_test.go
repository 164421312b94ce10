package loader

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezoic/elasticity/frame"
	"github.com/ezoic/elasticity/linear"
	"github.com/ezoic/elasticity/pkg/errors"
	"github.com/ezoic/elasticity/sklearn/pipeline"
)

const featuresCSV = `Price,Store,Promotion
10,StoreA,0
12,StoreB,1
8,StoreA,1
15,StoreC,0
11,StoreB,0
`

const labelsCSV = `Revenue
600
650
720
450
570
`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func writeModel(t *testing.T, dir string) string {
	t.Helper()
	tbl, err := frame.ReadCSV(strings.NewReader(featuresCSV))
	require.NoError(t, err)
	p, err := pipeline.Fit(linear.Name, linear.NewLinearRegression(), tbl,
		[]string{"Price", "Store", "Promotion"},
		frame.Series{Values: []float64{600, 650, 720, 450, 570}})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, p.WriteArtifact(&buf))
	return writeFile(t, dir, "model.json", buf.String())
}

func TestLoadTableNotFound(t *testing.T) {
	_, err := LoadTable(context.Background(), FileSource{}, filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	assert.False(t, errors.Is(err, errors.ErrDeserialization))
}

func TestLoadTableMalformed(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.csv", "a,b\n1,2,3\n4\n")
	_, err := LoadTable(context.Background(), FileSource{}, path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrDeserialization))
}

func TestLoadPipelineMalformed(t *testing.T) {
	path := writeFile(t, t.TempDir(), "model.pkl", "\x80\x04\x95not json")
	_, err := LoadPipeline(context.Background(), FileSource{}, path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrDeserialization))
}

func TestLoadAssets(t *testing.T) {
	dir := t.TempDir()
	paths := Paths{
		Features: writeFile(t, dir, "X_test.csv", featuresCSV),
		Labels:   writeFile(t, dir, "y_test.csv", labelsCSV),
		Model:    writeModel(t, dir),
	}

	a, err := LoadAssets(context.Background(), FileSource{}, paths)
	require.NoError(t, err)
	assert.Equal(t, 5, a.Features.Nrow())
	assert.Equal(t, "Revenue", a.Labels.Name)
	assert.Equal(t, 5, a.Predictions.Len())
	assert.Equal(t, linear.Name, a.Model.Name)
}

func TestLoadAssetsMisaligned(t *testing.T) {
	dir := t.TempDir()
	paths := Paths{
		Features: writeFile(t, dir, "X_test.csv", featuresCSV),
		Labels:   writeFile(t, dir, "y_test.csv", "Revenue\n1\n2\n"),
		Model:    writeModel(t, dir),
	}
	_, err := LoadAssets(context.Background(), FileSource{}, paths)
	assert.True(t, errors.Is(err, errors.ErrDimensionMismatch))
}

func TestFetchSourceDownloadsOnce(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = io.WriteString(w, labelsCSV)
	}))
	defer srv.Close()

	local := filepath.Join(t.TempDir(), "data", "y_test.csv")
	src := NewFetchSource(map[string]string{local: srv.URL + "/y_test.csv"}, nil)

	for i := 0; i < 2; i++ {
		s, err := LoadSeries(context.Background(), src, local, "")
		require.NoError(t, err)
		assert.Equal(t, 5, s.Len())
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestFetchSourceTransferError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	local := filepath.Join(t.TempDir(), "model.json")
	src := NewFetchSource(map[string]string{local: srv.URL + "/model.json"}, nil)

	_, err := LoadPipeline(context.Background(), src, local)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrTransfer))
	_, statErr := os.Stat(local)
	assert.True(t, os.IsNotExist(statErr), "failed fetch must not leave a file")
}

func TestFetchSourceWithoutRemoteIsNotFound(t *testing.T) {
	src := NewFetchSource(map[string]string{}, nil)
	_, err := src.Open(context.Background(), filepath.Join(t.TempDir(), "x.csv"))
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

type fakeS3 struct {
	objects map[string]string
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func TestS3Fetcher(t *testing.T) {
	fetcher := &S3Fetcher{Client: &fakeS3{objects: map[string]string{
		"models/elasticity/X_test.csv": featuresCSV,
	}}}
	local := filepath.Join(t.TempDir(), "X_test.csv")
	src := NewSource(
		map[string]string{local: "s3://models/elasticity/X_test.csv"},
		map[string]Fetcher{"s3": fetcher},
	)

	tbl, err := LoadTable(context.Background(), src, local)
	require.NoError(t, err)
	assert.Equal(t, 5, tbl.Nrow())

	missing := filepath.Join(t.TempDir(), "y_test.csv")
	src = NewSource(map[string]string{missing: "s3://models/none.csv"}, map[string]Fetcher{"s3": fetcher})
	_, err = LoadTable(context.Background(), src, missing)
	assert.True(t, errors.Is(err, errors.ErrTransfer))
}

func TestParseS3URL(t *testing.T) {
	bucket, key, err := ParseS3URL("s3://bucket/path/to/model.json")
	require.NoError(t, err)
	assert.Equal(t, "bucket", bucket)
	assert.Equal(t, "path/to/model.json", key)

	_, _, err = ParseS3URL("https://bucket/key")
	assert.Error(t, err)
	_, _, err = ParseS3URL("s3://bucket/")
	assert.Error(t, err)
}

func TestNewSourceSelectsFileSource(t *testing.T) {
	assert.IsType(t, FileSource{}, NewSource(nil, nil))
}

func TestCache(t *testing.T) {
	c := NewCache[int]()
	calls := 0
	load := func() (int, error) {
		calls++
		return 42, nil
	}

	v, err := c.Get("k", load)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	_, _ = c.Get("k", load)
	assert.Equal(t, 1, calls)

	c.Invalidate("k")
	_, _ = c.Get("k", load)
	assert.Equal(t, 2, calls)

	c.Reset()
	assert.Equal(t, 0, c.Len())
}

func TestCacheDoesNotStoreFailures(t *testing.T) {
	c := NewCache[string]()
	_, err := c.Get("k", func() (string, error) { return "", errors.New("boom") })
	require.Error(t, err)
	assert.Equal(t, 0, c.Len())

	v, err := c.Get("k", func() (string, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}
