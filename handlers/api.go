package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/monoculum/formam"

	"fknsrs.biz/p/vidvault/internal/catalog"
	"fknsrs.biz/p/vidvault/internal/ctxconfig"
	"fknsrs.biz/p/vidvault/internal/ctxlogger"
	"fknsrs.biz/p/vidvault/internal/ffmpeg"
	"fknsrs.biz/p/vidvault/internal/httputil"
	"fknsrs.biz/p/vidvault/internal/ingest"
	"fknsrs.biz/p/vidvault/internal/library"
	"fknsrs.biz/p/vidvault/internal/taskreg"
)

// Download accepts a remote video URL and starts an ingest task. The body
// can be JSON or a form post from the add page; either way the response is
// the task id to poll.
func (h *Handlers) Download(rw http.ResponseWriter, r *http.Request) {
	var input struct {
		URL string `json:"url" formam:"url"`
	}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			httputil.BadRequest(rw, "could not parse request body")
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			httputil.BadRequest(rw, "could not parse form")
			return
		}

		if err := formam.Decode(r.PostForm, &input); err != nil {
			httputil.BadRequest(rw, "could not decode form")
			return
		}
	}

	if input.URL == "" {
		httputil.BadRequest(rw, "url is required")
		return
	}

	taskID, err := h.pipeline.Submit(r.Context(), input.URL)
	if err != nil {
		if errors.Is(err, ingest.ErrUnsupportedSource) {
			httputil.BadRequest(rw, "only mp4 and webm sources are supported")
			return
		}

		panic(err)
	}

	httputil.WriteJSON(rw, http.StatusOK, map[string]string{"task_id": taskID})
}

func (h *Handlers) TaskStatus(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	task, err := h.registry.Get(vars["task_id"])
	if err != nil {
		if errors.Is(err, taskreg.ErrNoSuchTask) {
			httputil.NotFound(rw, "task not found")
			return
		}

		panic(err)
	}

	httputil.WriteJSON(rw, http.StatusOK, task)
}

// TaskUpdates streams task progress over SSE so the add page doesn't have
// to poll.
func (h *Handlers) TaskUpdates(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "text/event-stream")
	rw.Header().Set("Cache-Control", "no-cache")
	rw.Header().Set("Connection", "keep-alive")

	flusher, ok := rw.(http.Flusher)
	if !ok {
		httputil.InternalError(rw, "streaming not supported")
		return
	}

	ctx := r.Context()

	last := make(map[string]taskreg.Task)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, task := range h.registry.All() {
				if prev, ok := last[task.ID]; ok && prev == task {
					continue
				}

				d, err := json.Marshal(task)
				if err != nil {
					continue
				}

				fmt.Fprintf(rw, "data: %s\n\n", d)
				flusher.Flush()

				last[task.ID] = task
			}
		}
	}
}

func (h *Handlers) ListVideos(rw http.ResponseWriter, r *http.Request) {
	items, err := h.listVideos(r, r.URL.Query().Get("sort"))
	if err != nil {
		panic(err)
	}

	httputil.WriteJSON(rw, http.StatusOK, items)
}

// UpdateVideo changes the mutable metadata fields. The stored filename never
// changes; renaming is a title edit only.
func (h *Handlers) UpdateVideo(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var input struct {
		Title       *string   `json:"title"`
		Description *string   `json:"description"`
		Tags        *[]string `json:"tags"`
	}

	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		httputil.BadRequest(rw, "could not parse request body")
		return
	}

	video, err := h.store.Update(vars["id"], catalog.Fields{
		Title:       input.Title,
		Description: input.Description,
		Tags:        input.Tags,
	})
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			httputil.NotFound(rw, "video not found")
			return
		}

		panic(err)
	}

	httputil.WriteJSON(rw, http.StatusOK, video)
}

// DeleteVideo removes the file, the thumbnail, and the catalog entry.
// Already-missing files are fine; an already-missing record is a 404.
func (h *Handlers) DeleteVideo(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	video, err := h.store.Get(vars["id"])
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			httputil.NotFound(rw, "video not found")
			return
		}

		panic(err)
	}

	cfg := ctxconfig.GetConfig(r.Context())

	if err := os.Remove(cfg.VideoFile(video.Path)); err != nil && !os.IsNotExist(err) {
		panic(err)
	}

	if err := os.Remove(cfg.ThumbnailFile(video.ThumbnailName())); err != nil && !os.IsNotExist(err) {
		panic(err)
	}

	if err := h.store.Delete(video.ID); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			httputil.NotFound(rw, "video not found")
			return
		}

		panic(err)
	}

	httputil.WriteJSON(rw, http.StatusOK, map[string]bool{"deleted": true})
}

var timestampPattern = regexp.MustCompile(`^\d{2}:\d{2}:\d{2}$`)

// RegenerateThumbnail replaces the thumbnail with a frame from the given
// timestamp. The old image is removed first so a tool failure can't leave a
// stale one behind.
func (h *Handlers) RegenerateThumbnail(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	at := r.URL.Query().Get("time")
	if at == "" {
		at = ffmpeg.DefaultThumbnailTime
	}

	if !timestampPattern.MatchString(at) {
		httputil.BadRequest(rw, "time must be formatted as HH:MM:SS")
		return
	}

	video, err := h.store.Get(vars["id"])
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			httputil.NotFound(rw, "video not found")
			return
		}

		panic(err)
	}

	cfg := ctxconfig.GetConfig(r.Context())
	videoPath := cfg.VideoFile(video.Path)

	if _, err := os.Stat(videoPath); err != nil {
		httputil.NotFound(rw, "video file not found")
		return
	}

	thumbnailPath := cfg.ThumbnailFile(video.ThumbnailName())

	if err := os.Remove(thumbnailPath); err != nil && !os.IsNotExist(err) {
		panic(err)
	}

	if output, err := h.transcoder.MakeThumbnail(r.Context(), videoPath, thumbnailPath, at); err != nil {
		ctxlogger.GetLogger(r.Context()).WithError(err).WithField("ffmpeg.output", strings.TrimSpace(output)).Error("thumbnail generation failed")
		httputil.InternalError(rw, "thumbnail generation failed")
		return
	}

	httputil.WriteJSON(rw, http.StatusOK, map[string]string{"thumbnail": video.ThumbnailName()})
}

func (h *Handlers) Folders(rw http.ResponseWriter, r *http.Request) {
	cfg := ctxconfig.GetConfig(r.Context())

	siblings, err := library.SiblingFolders(cfg)
	if err != nil {
		panic(err)
	}

	httputil.WriteJSON(rw, http.StatusOK, map[string]interface{}{
		"current": filepath.Base(cfg.VideoDir),
		"folders": siblings,
	})
}

// ChangeDirectory points the server at a sibling folder of the current
// video root and reconciles the catalog against its contents.
func (h *Handlers) ChangeDirectory(rw http.ResponseWriter, r *http.Request) {
	var input struct {
		Folder string `json:"folder"`
	}

	if err := json.NewDecoder(r.Body).Decode(&input); err != nil || input.Folder == "" {
		httputil.BadRequest(rw, "folder is required")
		return
	}

	if strings.ContainsAny(input.Folder, `/\`) {
		httputil.BadRequest(rw, "folder must be a plain name")
		return
	}

	cell := ctxconfig.GetCell(r.Context())
	cfg := cell.Get()

	newDir := filepath.Join(filepath.Dir(filepath.Clean(cfg.VideoDir)), input.Folder)

	if st, err := os.Stat(newDir); err != nil || !st.IsDir() {
		httputil.BadRequest(rw, "no such folder")
		return
	}

	cell.SetVideoDir(newDir)

	l := ctxlogger.GetLogger(r.Context())

	go func() {
		if err := h.reconciler.Reconcile(context.Background()); err != nil {
			l.WithError(err).Error("reconcile after directory change failed")
		}
	}()

	httputil.WriteJSON(rw, http.StatusOK, map[string]string{"video_dir": newDir})
}
