package sink

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/agleyzer/hlsfetch/pkg/pipeline"
	"github.com/agleyzer/hlsfetch/pkg/playlist"
	"github.com/agleyzer/hlsfetch/pkg/segment"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fmp4Deliveries() []pipeline.Delivery {
	initRef := &segment.InitSegmentRef{URI: "init.mp4"}
	return []pipeline.Delivery{
		{Kind: pipeline.KindInit, Index: -1, URL: "https://cdn.example.com/v/init.mp4", Data: []byte("INIT")},
		{
			Kind: pipeline.KindMedia, Index: 0, URL: "https://cdn.example.com/v/seg0.m4s?token=abc",
			Segment: segment.Segment{URI: "seg0.m4s", Duration: 5.005, InitMap: initRef},
			Data:    []byte("S0"),
		},
		{
			Kind: pipeline.KindMedia, Index: 1, URL: "https://cdn.example.com/v/seg1.m4s",
			Segment: segment.Segment{URI: "seg1.m4s", Duration: 3.2, Sequence: 1, InitMap: initRef},
			Data:    []byte("S1"),
		},
	}
}

func TestFileName(t *testing.T) {
	tests := []struct {
		name string
		d    pipeline.Delivery
		want string
	}{
		{"init keeps extension", pipeline.Delivery{Kind: pipeline.KindInit, URL: "https://h/p/init.mp4"}, "init.mp4"},
		{"init default", pipeline.Delivery{Kind: pipeline.KindInit, URL: "https://h/p/map"}, "init.mp4"},
		{"media ts", pipeline.Delivery{Kind: pipeline.KindMedia, Index: 7, URL: "https://h/p/a.ts"}, "segment-00007.ts"},
		{"query dropped", pipeline.Delivery{Kind: pipeline.KindMedia, Index: 0, URL: "https://h/p/a.M4S?x=1"}, "segment-00000.m4s"},
		{"media default", pipeline.Delivery{Kind: pipeline.KindMedia, Index: 12}, "segment-00012.ts"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, fileName(tt.d))
		})
	}
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "video/mp2t", contentType("segment-00000.ts"))
	assert.Equal(t, "video/mp4", contentType("init.mp4"))
	assert.Equal(t, "video/iso.segment", contentType("segment-00001.m4s"))
	assert.Equal(t, "application/vnd.apple.mpegurl", contentType(PlaylistName))
	assert.Equal(t, "application/octet-stream", contentType("blob"))
}

func TestCollector(t *testing.T) {
	c := NewCollector()
	for _, d := range fmp4Deliveries() {
		require.NoError(t, c.DeliverSegment(d))
	}
	require.NoError(t, c.Deliver([]byte("RAW")))

	got := c.Deliveries()
	require.Len(t, got, 4)
	assert.Equal(t, pipeline.KindInit, got[0].Kind)
	assert.Equal(t, 3, got[3].Index)
	assert.Equal(t, int64(4+2+2+3), c.TotalBytes())
	assert.Equal(t, 4, c.Len())
}

func TestCollector_NoCopy(t *testing.T) {
	c := NewCollector()
	buf := []byte("abc")
	require.NoError(t, c.Deliver(buf))

	got := c.Deliveries()[0].Data
	assert.Same(t, &buf[0], &got[0])
}

func TestTee(t *testing.T) {
	a := NewCollector()
	var plain [][]byte
	b := pipeline.SinkFunc(func(data []byte) error {
		plain = append(plain, data)
		return nil
	})

	tee := NewTee(a, nil, b)
	for _, d := range fmp4Deliveries() {
		require.NoError(t, tee.DeliverSegment(d))
	}

	assert.Equal(t, 3, a.Len())
	assert.Equal(t, pipeline.KindInit, a.Deliveries()[0].Kind)
	require.Len(t, plain, 3)
	assert.Equal(t, "S1", string(plain[2]))
}

func TestTee_StopsAtFirstFailure(t *testing.T) {
	boom := errors.New("boom")
	after := NewCollector()

	tee := NewTee(pipeline.SinkFunc(func([]byte) error { return boom }), after)
	err := tee.DeliverSegment(fmp4Deliveries()[0])

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, after.Len())
}

func TestArchive(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	a, err := NewArchive(dir, nil)
	require.NoError(t, err)

	for _, d := range fmp4Deliveries() {
		require.NoError(t, a.DeliverSegment(d))
	}
	require.NoError(t, a.Close())

	for name, want := range map[string]string{
		"init.mp4":          "INIT",
		"segment-00000.m4s": "S0",
		"segment-00001.m4s": "S1",
	} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err, name)
		assert.Equal(t, want, string(data), name)
	}

	text, err := os.ReadFile(filepath.Join(dir, PlaylistName))
	require.NoError(t, err)
	assert.Contains(t, string(text), `#EXT-X-MAP:URI="init.mp4"`)
	assert.Contains(t, string(text), "#EXT-X-ENDLIST")

	pl, err := playlist.Parse(string(text))
	require.NoError(t, err)
	require.Equal(t, playlist.KindMedia, pl.Kind)
	require.Len(t, pl.Media.Segments, 2)
	assert.Equal(t, "segment-00000.m4s", pl.Media.Segments[0].URI)
	assert.Equal(t, "segment-00001.m4s", pl.Media.Segments[1].URI)
	require.NotNil(t, pl.Media.Segments[0].InitMap)
	assert.Equal(t, "init.mp4", pl.Media.Segments[0].InitMap.URI)
	assert.True(t, pl.Media.Ended)
	assert.Equal(t, 6, pl.Media.TargetDuration)
}

func TestArchive_TransportStream(t *testing.T) {
	dir := t.TempDir()
	a, err := NewArchive(dir, nil)
	require.NoError(t, err)

	require.NoError(t, a.DeliverSegment(pipeline.Delivery{
		Kind: pipeline.KindMedia, Index: 0, URL: "https://h/a.ts",
		Segment: segment.Segment{URI: "a.ts", Duration: 10},
		Data:    []byte("TS"),
	}))
	require.NoError(t, a.Close())

	text, err := os.ReadFile(filepath.Join(dir, PlaylistName))
	require.NoError(t, err)
	assert.NotContains(t, string(text), "EXT-X-MAP")
	assert.Contains(t, string(text), "segment-00000.ts")
}

func TestArchive_Closed(t *testing.T) {
	a, err := NewArchive(t.TempDir(), nil)
	require.NoError(t, err)
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())

	assert.Error(t, a.Deliver([]byte("late")))
}

func TestNewArchive_RequiresDir(t *testing.T) {
	_, err := NewArchive("", nil)
	assert.Error(t, err)
}

type putCall struct {
	bucket, key, contentType string
	body                     string
}

type fakePutter struct {
	mu    sync.Mutex
	calls []putCall
	err   error
}

func (f *fakePutter) PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.err != nil {
		return minio.UploadInfo{}, f.err
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	if int64(len(body)) != size {
		return minio.UploadInfo{}, errors.New("size mismatch")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, putCall{bucket: bucket, key: key, contentType: opts.ContentType, body: string(body)})
	return minio.UploadInfo{Bucket: bucket, Key: key, Size: size}, nil
}

func TestObject(t *testing.T) {
	putter := &fakePutter{}
	o := NewObject(context.Background(), putter, "media", "show/42", nil)

	for _, d := range fmp4Deliveries() {
		require.NoError(t, o.DeliverSegment(d))
	}
	require.NoError(t, o.Close())

	require.Len(t, putter.calls, 4)
	assert.Equal(t, putCall{bucket: "media", key: "show/42/init.mp4", contentType: "video/mp4", body: "INIT"}, putter.calls[0])
	assert.Equal(t, "show/42/segment-00000.m4s", putter.calls[1].key)
	assert.Equal(t, "video/iso.segment", putter.calls[1].contentType)

	last := putter.calls[3]
	assert.Equal(t, "show/42/"+PlaylistName, last.key)
	assert.Equal(t, "application/vnd.apple.mpegurl", last.contentType)
	assert.True(t, strings.HasPrefix(last.body, "#EXTM3U"))
}

func TestObject_UploadFailure(t *testing.T) {
	putter := &fakePutter{err: errors.New("access denied")}
	o := NewObject(context.Background(), putter, "media", "", nil)

	err := o.Deliver([]byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "segment-00000.ts")
	assert.ErrorIs(t, err, putter.err)
}
