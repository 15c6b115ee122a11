package handlers

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gorilla/mux"

	"fknsrs.biz/p/vidvault/internal/ctxconfig"
	"fknsrs.biz/p/vidvault/internal/ctxlogger"
	"fknsrs.biz/p/vidvault/internal/httputil"
	"fknsrs.biz/p/vidvault/internal/metrics"
	"fknsrs.biz/p/vidvault/internal/rangespec"
	"fknsrs.biz/p/vidvault/internal/stream"
)

// StreamVideo serves video bytes with range support. Every response is a
// 206 over the resolved interval; with no Range header that interval is the
// whole file.
func (h *Handlers) StreamVideo(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	video, err := h.store.Get(vars["id"])
	if err != nil {
		httputil.NotFound(rw, "video not found")
		return
	}

	cfg := ctxconfig.GetConfig(r.Context())
	videoPath := cfg.VideoFile(video.Path)

	st, err := os.Stat(videoPath)
	if err != nil {
		// cataloged but gone from disk; soft-deleted as far as readers
		// are concerned
		httputil.NotFound(rw, "video file not found")
		return
	}

	rng, err := rangespec.Resolve(r.Header.Get("Range"), st.Size())
	if err != nil {
		if errors.Is(err, rangespec.ErrMalformed) {
			httputil.BadRequest(rw, "invalid range header")
			return
		}

		panic(err)
	}

	fr, err := stream.Open(videoPath, rng)
	if err != nil {
		if os.IsNotExist(err) {
			httputil.NotFound(rw, "video file not found")
			return
		}

		panic(err)
	}
	defer fr.Close()

	rw.Header().Set("Content-Range", rng.ContentRange(st.Size()))
	rw.Header().Set("Content-Length", strconv.FormatInt(rng.Length(), 10))
	rw.Header().Set("Accept-Ranges", "bytes")
	rw.Header().Set("Content-Type", rangespec.ContentType(video.Path))
	rw.WriteHeader(http.StatusPartialContent)

	n, err := fr.WriteTo(rw)
	metrics.BytesStreamed.Add(float64(n))

	if err != nil {
		// the client hanging up mid-stream is routine
		ctxlogger.GetLogger(r.Context()).WithError(err).Debug("stream interrupted")
	}
}

// Thumbnail serves a generated thumbnail image, or 404 when the video has
// none.
func (h *Handlers) Thumbnail(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	cfg := ctxconfig.GetConfig(r.Context())

	name := filepath.Base(vars["name"])
	if filepath.Ext(name) != ".jpg" {
		httputil.NotFound(rw, "thumbnail not found")
		return
	}

	thumbnailPath := cfg.ThumbnailFile(name)

	if _, err := os.Stat(thumbnailPath); err != nil {
		httputil.NotFound(rw, "thumbnail not found")
		return
	}

	http.ServeFile(rw, r, thumbnailPath)
}
