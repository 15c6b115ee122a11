package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"fknsrs.biz/p/vidvault/internal/catalog"
	"fknsrs.biz/p/vidvault/internal/catchpanic"
	"fknsrs.biz/p/vidvault/internal/config"
	"fknsrs.biz/p/vidvault/internal/metrics"
	"fknsrs.biz/p/vidvault/internal/taskreg"
	"fknsrs.biz/p/vidvault/internal/uniquename"
	"fknsrs.biz/p/vidvault/models"
)

var ErrUnsupportedSource = fmt.Errorf("unsupported source format")

// Transcoder is what the pipeline needs from the external media tooling.
// *ffmpeg.Tool satisfies it.
type Transcoder interface {
	HasAudioStream(ctx context.Context, videoFile string) (bool, error)
	MakeThumbnail(ctx context.Context, videoFile, imageFile, at string) (string, error)
	ConvertToMP4(ctx context.Context, inputFile, outputFile string) (string, error)
}

const downloadChunkSize = 256 * 1024

// Pipeline turns a remote URL into a playable, thumbnailed, cataloged video.
// Each task gets its own freshly generated id, so concurrent tasks never
// collide on filenames or catalog keys.
type Pipeline struct {
	registry   *taskreg.Registry
	store      *catalog.Store
	transcoder Transcoder
	cfg        *config.Cell
	client     *http.Client
	logger     logrus.FieldLogger
}

func NewPipeline(registry *taskreg.Registry, store *catalog.Store, transcoder Transcoder, cfg *config.Cell, client *http.Client, logger logrus.FieldLogger) *Pipeline {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Pipeline{
		registry:   registry,
		store:      store,
		transcoder: transcoder,
		cfg:        cfg,
		client:     client,
		logger:     logger,
	}
}

// Submit validates the source synchronously, registers a task, and starts
// the background work. The returned task id is for polling; errors after
// this point only ever show up in the task status.
func (p *Pipeline) Submit(ctx context.Context, sourceURL string) (string, error) {
	u, err := url.Parse(sourceURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("ingest.Pipeline.Submit: could not parse %q as a url: %w", sourceURL, ErrUnsupportedSource)
	}

	ext := strings.ToLower(path.Ext(u.Path))
	switch ext {
	case ".mp4", ".webm":
		// supported container types
	default:
		return "", fmt.Errorf("ingest.Pipeline.Submit: extension %q is not a supported container type: %w", ext, ErrUnsupportedSource)
	}

	taskID := uuid.NewString()
	p.registry.Create(taskID)
	metrics.IngestStarted.Inc()

	l := p.logger.WithFields(logrus.Fields{
		"task.id":     taskID,
		"task.source": sourceURL,
	})

	go func() {
		// the submitting request is long gone by the time this runs
		ctx := context.Background()

		if err := catchpanic.CatchErr(func() error {
			return p.run(ctx, l, taskID, sourceURL, ext)
		}); err != nil {
			l.WithError(err).Error("ingest task failed")
			p.registry.Fail(taskID, err.Error())
			metrics.IngestFailed.Inc()
		}
	}()

	return taskID, nil
}

func (p *Pipeline) run(ctx context.Context, l logrus.FieldLogger, taskID, sourceURL, ext string) error {
	cfg := p.cfg.Get()

	originalFilename := path.Base(mustParse(sourceURL).Path)

	tempPath, err := p.download(ctx, taskID, sourceURL, ext)
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}
	defer os.Remove(tempPath)

	p.registry.Update(taskID, taskreg.StatusDownloading, 30)

	videoID := uuid.NewString()

	var storedName string

	if ext == ".webm" {
		p.registry.Update(taskID, taskreg.StatusConverting, 30)

		storedName = videoID + ".mp4"

		if output, err := p.transcoder.ConvertToMP4(ctx, tempPath, cfg.VideoFile(storedName)); err != nil {
			return fmt.Errorf("conversion failed: %w: %s", err, strings.TrimSpace(output))
		}

		p.registry.Update(taskID, taskreg.StatusConverting, 60)

		if err := p.archiveOriginal(cfg, tempPath, originalFilename); err != nil {
			return fmt.Errorf("could not archive original: %w", err)
		}
	} else {
		storedName = videoID + ext

		if err := moveFile(tempPath, cfg.VideoFile(storedName)); err != nil {
			return fmt.Errorf("could not place video file: %w", err)
		}
	}

	p.registry.Update(taskID, taskreg.StatusGeneratingThumbnail, 60)

	hasAudio, err := p.transcoder.HasAudioStream(ctx, cfg.VideoFile(storedName))
	if err != nil {
		l.WithError(err).Warn("audio probe failed; assuming no audio")
		hasAudio = false
	}

	p.registry.Update(taskID, taskreg.StatusGeneratingThumbnail, 80)

	// a missing thumbnail is tolerated; a stuck ffmpeg must not stall the
	// task, so the adapter applies its own timeout
	if output, err := p.transcoder.MakeThumbnail(ctx, cfg.VideoFile(storedName), cfg.ThumbnailFile(videoID+".jpg"), ""); err != nil {
		l.WithError(err).WithFields(logrus.Fields{
			"ffmpeg.output": strings.TrimSpace(output),
		}).Warn("thumbnail generation failed; continuing without one")
	}

	p.registry.Update(taskID, taskreg.StatusGeneratingThumbnail, 90)

	record := models.Video{
		ID:               videoID,
		Title:            strings.TrimSuffix(originalFilename, path.Ext(originalFilename)),
		Path:             storedName,
		OriginalFilename: originalFilename,
		CreationDate:     time.Now().UTC(),
		Description:      "",
		Tags:             []string{},
		HasAudio:         hasAudio,
	}

	if err := p.store.Insert(record); err != nil {
		return fmt.Errorf("could not insert catalog record: %w", err)
	}

	p.registry.Update(taskID, taskreg.StatusCompleted, 100)
	metrics.IngestCompleted.Inc()

	l.WithFields(logrus.Fields{
		"video.id":   videoID,
		"video.path": storedName,
	}).Info("ingest task completed")

	return nil
}

// download fetches the source into a scratch file, reporting progress from
// 0 to 30 against the declared content length. With no declared length the
// progress sits at 0 until the transfer ends.
func (p *Pipeline) download(ctx context.Context, taskID, sourceURL, ext string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return "", fmt.Errorf("ingest.Pipeline.download: %w", err)
	}

	res, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ingest.Pipeline.download: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ingest.Pipeline.download: unexpected status %s", res.Status)
	}

	f, err := os.CreateTemp("", "vidvault-*"+ext)
	if err != nil {
		return "", fmt.Errorf("ingest.Pipeline.download: %w", err)
	}

	tempPath := f.Name()

	cleanup := func() {
		f.Close()
		os.Remove(tempPath)
	}

	total := res.ContentLength

	var received int64

	buf := make([]byte, downloadChunkSize)

	for {
		n, err := res.Body.Read(buf)

		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				cleanup()
				return "", fmt.Errorf("ingest.Pipeline.download: %w", werr)
			}

			received += int64(n)

			if total > 0 {
				p.registry.Update(taskID, taskreg.StatusDownloading, int(received*30/total))
			} else {
				p.registry.Update(taskID, taskreg.StatusDownloading, 0)
			}
		}

		if err == io.EOF {
			break
		}
		if err != nil {
			cleanup()
			return "", fmt.Errorf("ingest.Pipeline.download: %w", err)
		}
	}

	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("ingest.Pipeline.download: %w", err)
	}

	return tempPath, nil
}

// archiveOriginal keeps the pre-normalization file under the archival
// directory, named with the legacy numeric-suffix scheme since archive
// entries keep their human filenames.
func (p *Pipeline) archiveOriginal(cfg config.Config, tempPath, originalFilename string) error {
	dir := cfg.ArchiveDir()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("ingest.Pipeline.archiveOriginal: %w", err)
	}

	name, err := uniquename.Next(dir, originalFilename)
	if err != nil {
		return fmt.Errorf("ingest.Pipeline.archiveOriginal: %w", err)
	}

	if err := moveFile(tempPath, filepath.Join(dir, name)); err != nil {
		return fmt.Errorf("ingest.Pipeline.archiveOriginal: %w", err)
	}

	return nil
}

// moveFile renames src to dst, copying across filesystems when the scratch
// directory is not on the same device as the video root.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("ingest.moveFile: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("ingest.moveFile: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("ingest.moveFile: %w", err)
	}

	if err := out.Close(); err != nil {
		os.Remove(dst)
		return fmt.Errorf("ingest.moveFile: %w", err)
	}

	return os.Remove(src)
}

func mustParse(s string) *url.URL {
	u, err := url.Parse(s)
	if err != nil {
		panic(err)
	}

	return u
}
