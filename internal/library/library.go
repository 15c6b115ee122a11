package library

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"fknsrs.biz/p/vidvault/internal/catalog"
	"fknsrs.biz/p/vidvault/internal/config"
	"fknsrs.biz/p/vidvault/internal/uniquename"
	"fknsrs.biz/p/vidvault/models"
)

// Transcoder mirrors the pipeline's media tooling needs; *ffmpeg.Tool
// satisfies it.
type Transcoder interface {
	HasAudioStream(ctx context.Context, videoFile string) (bool, error)
	MakeThumbnail(ctx context.Context, videoFile, imageFile, at string) (string, error)
	ConvertToMP4(ctx context.Context, inputFile, outputFile string) (string, error)
}

// Reconciler brings the catalog in line with what is actually on disk:
// stray webm files get normalized, uncataloged videos get adopted, and
// missing thumbnails get regenerated. It runs at startup and again after the
// video root changes.
type Reconciler struct {
	store      *catalog.Store
	transcoder Transcoder
	cfg        *config.Cell
	logger     logrus.FieldLogger
}

func NewReconciler(store *catalog.Store, transcoder Transcoder, cfg *config.Cell, logger logrus.FieldLogger) *Reconciler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Reconciler{store: store, transcoder: transcoder, cfg: cfg, logger: logger}
}

func (r *Reconciler) Reconcile(ctx context.Context) error {
	cfg := r.cfg.Get()

	if err := os.MkdirAll(cfg.VideoDir, 0755); err != nil {
		return fmt.Errorf("library.Reconciler.Reconcile: %w", err)
	}
	if err := os.MkdirAll(cfg.ThumbnailDir, 0755); err != nil {
		return fmt.Errorf("library.Reconciler.Reconcile: %w", err)
	}

	if err := r.normalizeStrayWebm(ctx, cfg); err != nil {
		return fmt.Errorf("library.Reconciler.Reconcile: %w", err)
	}

	if err := r.adoptStrays(ctx, cfg); err != nil {
		return fmt.Errorf("library.Reconciler.Reconcile: %w", err)
	}

	if err := r.backfillThumbnails(ctx, cfg); err != nil {
		return fmt.Errorf("library.Reconciler.Reconcile: %w", err)
	}

	return nil
}

func listVideoFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var a []string

	for _, e := range entries {
		if e.IsDir() {
			continue
		}

		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".mp4", ".webm":
			a = append(a, e.Name())
		}
	}

	return a, nil
}

// normalizeStrayWebm converts webm files sitting in the video root into the
// primary serving format, archiving the originals with the legacy suffix
// naming.
func (r *Reconciler) normalizeStrayWebm(ctx context.Context, cfg config.Config) error {
	names, err := listVideoFiles(cfg.VideoDir)
	if err != nil {
		return err
	}

	for _, name := range names {
		if strings.ToLower(filepath.Ext(name)) != ".webm" {
			continue
		}

		webmPath := cfg.VideoFile(name)

		// the file may have been removed since listing; not our problem
		if _, err := os.Stat(webmPath); err != nil {
			continue
		}

		videoID := uuid.NewString()
		storedName := videoID + ".mp4"

		l := r.logger.WithFields(logrus.Fields{
			"video.id":     videoID,
			"video.source": name,
		})

		if output, err := r.transcoder.ConvertToMP4(ctx, webmPath, cfg.VideoFile(storedName)); err != nil {
			l.WithError(err).WithFields(logrus.Fields{
				"ffmpeg.output": strings.TrimSpace(output),
			}).Warn("could not normalize stray webm; leaving it in place")
			continue
		}

		if err := archiveFile(cfg, webmPath, name); err != nil {
			return err
		}

		hasAudio, err := r.transcoder.HasAudioStream(ctx, cfg.VideoFile(storedName))
		if err != nil {
			l.WithError(err).Warn("audio probe failed; assuming no audio")
		}

		st, err := os.Stat(cfg.VideoFile(storedName))
		if err != nil {
			continue
		}

		if err := r.store.Insert(models.Video{
			ID:               videoID,
			Title:            strings.TrimSuffix(name, filepath.Ext(name)),
			Path:             storedName,
			OriginalFilename: name,
			CreationDate:     st.ModTime().UTC(),
			Description:      "",
			Tags:             []string{},
			HasAudio:         hasAudio,
		}); err != nil {
			return err
		}

		l.Info("normalized stray webm")
	}

	return nil
}

// adoptStrays catalogs video files present on disk but absent from the
// catalog, keeping their existing filenames.
func (r *Reconciler) adoptStrays(ctx context.Context, cfg config.Config) error {
	videos, err := r.store.All()
	if err != nil {
		return err
	}

	known := make(map[string]bool, len(videos))
	for _, v := range videos {
		known[v.Path] = true
	}

	names, err := listVideoFiles(cfg.VideoDir)
	if err != nil {
		return err
	}

	for _, name := range names {
		if known[name] {
			continue
		}

		st, err := os.Stat(cfg.VideoFile(name))
		if err != nil {
			continue
		}

		videoID := uuid.NewString()

		hasAudio, err := r.transcoder.HasAudioStream(ctx, cfg.VideoFile(name))
		if err != nil {
			r.logger.WithError(err).WithFields(logrus.Fields{
				"video.source": name,
			}).Warn("audio probe failed; assuming no audio")
		}

		if err := r.store.Insert(models.Video{
			ID:               videoID,
			Title:            strings.TrimSuffix(name, filepath.Ext(name)),
			Path:             name,
			OriginalFilename: name,
			CreationDate:     st.ModTime().UTC(),
			Description:      "",
			Tags:             []string{},
			HasAudio:         hasAudio,
		}); err != nil {
			return err
		}

		r.logger.WithFields(logrus.Fields{
			"video.id":   videoID,
			"video.path": name,
		}).Info("adopted uncataloged video")
	}

	return nil
}

func (r *Reconciler) backfillThumbnails(ctx context.Context, cfg config.Config) error {
	videos, err := r.store.All()
	if err != nil {
		return err
	}

	for _, v := range videos {
		if _, err := os.Stat(cfg.VideoFile(v.Path)); err != nil {
			continue
		}

		if _, err := os.Stat(cfg.ThumbnailFile(v.ThumbnailName())); err == nil {
			continue
		}

		if output, err := r.transcoder.MakeThumbnail(ctx, cfg.VideoFile(v.Path), cfg.ThumbnailFile(v.ThumbnailName()), ""); err != nil {
			r.logger.WithError(err).WithFields(logrus.Fields{
				"video.id":      v.ID,
				"ffmpeg.output": strings.TrimSpace(output),
			}).Warn("could not backfill thumbnail")
		}
	}

	return nil
}

func archiveFile(cfg config.Config, src, originalFilename string) error {
	dir := cfg.ArchiveDir()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("library.archiveFile: %w", err)
	}

	name, err := uniquename.Next(dir, originalFilename)
	if err != nil {
		return fmt.Errorf("library.archiveFile: %w", err)
	}

	if err := os.Rename(src, filepath.Join(dir, name)); err != nil {
		return fmt.Errorf("library.archiveFile: %w", err)
	}

	return nil
}

// SiblingFolders lists directories next to the current video root, used by
// the change-directory UI.
func SiblingFolders(cfg config.Config) ([]string, error) {
	current := filepath.Clean(cfg.VideoDir)
	parent := filepath.Dir(current)

	entries, err := os.ReadDir(parent)
	if err != nil {
		return nil, fmt.Errorf("library.SiblingFolders: %w", err)
	}

	var a []string

	for _, e := range entries {
		if e.IsDir() && filepath.Join(parent, e.Name()) != current {
			a = append(a, e.Name())
		}
	}

	return a, nil
}
