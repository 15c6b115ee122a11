package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fknsrs.biz/p/vidvault/internal/catalog"
	"fknsrs.biz/p/vidvault/internal/config"
	"fknsrs.biz/p/vidvault/internal/taskreg"
)

type stubTranscoder struct {
	hasAudio   bool
	probeErr   error
	thumbErr   error
	convertErr error
}

func (s *stubTranscoder) HasAudioStream(ctx context.Context, videoFile string) (bool, error) {
	return s.hasAudio, s.probeErr
}

func (s *stubTranscoder) MakeThumbnail(ctx context.Context, videoFile, imageFile, at string) (string, error) {
	if s.thumbErr != nil {
		return "frame extraction failed", s.thumbErr
	}

	return "", os.WriteFile(imageFile, []byte("jpg"), 0644)
}

func (s *stubTranscoder) ConvertToMP4(ctx context.Context, inputFile, outputFile string) (string, error) {
	if s.convertErr != nil {
		return "conversion diagnostics", s.convertErr
	}

	d, err := os.ReadFile(inputFile)
	if err != nil {
		return "", err
	}

	return "", os.WriteFile(outputFile, d, 0644)
}

type testEnv struct {
	pipeline *Pipeline
	registry *taskreg.Registry
	store    *catalog.Store
	cfg      config.Config
}

func newTestEnv(t *testing.T, transcoder Transcoder) *testEnv {
	t.Helper()

	root := t.TempDir()

	cfg := config.Config{
		VideoDir:     filepath.Join(root, "videos"),
		ThumbnailDir: filepath.Join(root, "thumbnails"),
		CatalogPath:  filepath.Join(root, "catalog.db"),
	}

	require.NoError(t, os.MkdirAll(cfg.VideoDir, 0755))
	require.NoError(t, os.MkdirAll(cfg.ThumbnailDir, 0755))

	store, err := catalog.Open(cfg.CatalogPath)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	registry := taskreg.NewRegistry()

	return &testEnv{
		pipeline: NewPipeline(registry, store, transcoder, config.NewCell(cfg), nil, nil),
		registry: registry,
		store:    store,
		cfg:      cfg,
	}
}

func serveFile(t *testing.T, name string, content []byte) *httptest.Server {
	t.Helper()

	s := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/"+name {
			http.NotFound(rw, r)
			return
		}

		rw.Header().Set("Content-Length", fmt.Sprintf("%d", len(content)))
		rw.WriteHeader(http.StatusOK)
		rw.Write(content)
	}))
	t.Cleanup(s.Close)

	return s
}

func waitForTask(t *testing.T, registry *taskreg.Registry, id string) taskreg.Task {
	t.Helper()

	deadline := time.Now().Add(time.Second * 10)

	for time.Now().Before(deadline) {
		task, err := registry.Get(id)
		require.NoError(t, err)

		if task.Status == taskreg.StatusCompleted || task.Status == taskreg.StatusFailed {
			return task
		}

		time.Sleep(time.Millisecond * 10)
	}

	t.Fatalf("task %s did not finish in time", id)
	return taskreg.Task{}
}

func TestSubmitRejectsUnsupportedExtension(t *testing.T) {
	a := assert.New(t)

	env := newTestEnv(t, &stubTranscoder{})

	for _, u := range []string{
		"http://example.com/video.avi",
		"http://example.com/video",
		"not a url",
	} {
		_, err := env.pipeline.Submit(context.Background(), u)
		a.ErrorIs(err, ErrUnsupportedSource, "url %q", u)
	}

	a.Empty(env.registry.All(), "rejected submissions must not register tasks")
}

func TestIngestMP4(t *testing.T) {
	a := assert.New(t)

	content := []byte(strings.Repeat("x", 4096))
	server := serveFile(t, "holiday.mp4", content)

	env := newTestEnv(t, &stubTranscoder{hasAudio: true})

	taskID, err := env.pipeline.Submit(context.Background(), server.URL+"/holiday.mp4")
	require.NoError(t, err)
	a.NotEmpty(taskID)

	task := waitForTask(t, env.registry, taskID)
	a.Equal(taskreg.StatusCompleted, task.Status)
	a.Equal(100, task.Progress)
	a.Empty(task.Error)

	videos, err := env.store.All()
	require.NoError(t, err)
	require.Len(t, videos, 1)

	v := videos[0]
	a.Equal("holiday", v.Title)
	a.Equal("holiday.mp4", v.OriginalFilename)
	a.True(strings.HasSuffix(v.Path, ".mp4"))
	a.True(v.HasAudio)
	a.Equal(v.ID+".mp4", v.Path)

	stored, err := os.ReadFile(filepath.Join(env.cfg.VideoDir, v.Path))
	require.NoError(t, err)
	a.Equal(content, stored)

	_, err = os.Stat(filepath.Join(env.cfg.ThumbnailDir, v.ID+".jpg"))
	a.NoError(err)
}

func TestIngestWebmNormalizes(t *testing.T) {
	a := assert.New(t)

	content := []byte("webm bytes")
	server := serveFile(t, "clip.webm", content)

	env := newTestEnv(t, &stubTranscoder{})

	taskID, err := env.pipeline.Submit(context.Background(), server.URL+"/clip.webm")
	require.NoError(t, err)

	task := waitForTask(t, env.registry, taskID)
	a.Equal(taskreg.StatusCompleted, task.Status)

	videos, err := env.store.All()
	require.NoError(t, err)
	require.Len(t, videos, 1)

	v := videos[0]
	a.True(strings.HasSuffix(v.Path, ".mp4"), "webm sources are normalized to mp4")

	_, err = os.Stat(filepath.Join(env.cfg.VideoDir, v.Path))
	a.NoError(err)

	archived, err := os.ReadFile(filepath.Join(env.cfg.ArchiveDir(), "clip.webm"))
	a.NoError(err, "the original webm is retained in the archive")
	a.Equal(content, archived)
}

func TestIngestDownloadFailure(t *testing.T) {
	a := assert.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		http.Error(rw, "gone", http.StatusNotFound)
	}))
	t.Cleanup(server.Close)

	env := newTestEnv(t, &stubTranscoder{})

	taskID, err := env.pipeline.Submit(context.Background(), server.URL+"/lost.mp4")
	require.NoError(t, err, "submission succeeds; the failure is asynchronous")

	task := waitForTask(t, env.registry, taskID)
	a.Equal(taskreg.StatusFailed, task.Status)
	a.Contains(task.Error, "download failed")

	videos, err := env.store.All()
	require.NoError(t, err)
	a.Empty(videos, "failed tasks must not produce catalog records")
}

func TestIngestConversionFailure(t *testing.T) {
	a := assert.New(t)

	server := serveFile(t, "broken.webm", []byte("not really webm"))

	env := newTestEnv(t, &stubTranscoder{convertErr: fmt.Errorf("codec exploded")})

	taskID, err := env.pipeline.Submit(context.Background(), server.URL+"/broken.webm")
	require.NoError(t, err)

	task := waitForTask(t, env.registry, taskID)
	a.Equal(taskreg.StatusFailed, task.Status)
	a.Contains(task.Error, "conversion failed")
	a.Contains(task.Error, "conversion diagnostics")

	videos, err := env.store.All()
	require.NoError(t, err)
	a.Empty(videos)
}

func TestIngestThumbnailFailureTolerated(t *testing.T) {
	a := assert.New(t)

	server := serveFile(t, "silent.mp4", []byte("mp4 bytes"))

	env := newTestEnv(t, &stubTranscoder{thumbErr: fmt.Errorf("timed out")})

	taskID, err := env.pipeline.Submit(context.Background(), server.URL+"/silent.mp4")
	require.NoError(t, err)

	task := waitForTask(t, env.registry, taskID)
	a.Equal(taskreg.StatusCompleted, task.Status, "a missing thumbnail must not fail the ingest")

	videos, err := env.store.All()
	require.NoError(t, err)
	require.Len(t, videos, 1)

	_, err = os.Stat(filepath.Join(env.cfg.ThumbnailDir, videos[0].ID+".jpg"))
	a.True(os.IsNotExist(err))
}

func TestConcurrentSubmissionsDoNotCollide(t *testing.T) {
	a := assert.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		io.WriteString(rw, "content for "+r.URL.Path)
	}))
	t.Cleanup(server.Close)

	env := newTestEnv(t, &stubTranscoder{})

	var taskIDs []string
	for i := 0; i < 4; i++ {
		taskID, err := env.pipeline.Submit(context.Background(), fmt.Sprintf("%s/video_%d.mp4", server.URL, i))
		require.NoError(t, err)
		taskIDs = append(taskIDs, taskID)
	}

	for _, taskID := range taskIDs {
		task := waitForTask(t, env.registry, taskID)
		a.Equal(taskreg.StatusCompleted, task.Status)
	}

	videos, err := env.store.All()
	require.NoError(t, err)
	require.Len(t, videos, 4)

	ids := map[string]bool{}
	paths := map[string]bool{}
	for _, v := range videos {
		a.False(ids[v.ID], "video ids must be unique")
		a.False(paths[v.Path], "stored filenames must be unique")
		ids[v.ID] = true
		paths[v.Path] = true
	}
}
