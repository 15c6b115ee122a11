package handlers

import (
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/gorilla/mux"

	"fknsrs.biz/p/vidvault/internal/ctxconfig"
	"fknsrs.biz/p/vidvault/internal/ctxtemplate"
	"fknsrs.biz/p/vidvault/internal/httputil"
	"fknsrs.biz/p/vidvault/models"
)

type videoListItem struct {
	models.Video
	HasThumbnail bool
}

// listVideos returns every catalog entry whose file is actually present,
// sorted as requested. Records with a missing file stay in the catalog but
// drop out of listings.
func (h *Handlers) listVideos(r *http.Request, sortBy string) ([]videoListItem, error) {
	cfg := ctxconfig.GetConfig(r.Context())

	videos, err := h.store.All()
	if err != nil {
		return nil, err
	}

	items := make([]videoListItem, 0, len(videos))

	for _, v := range videos {
		if _, err := os.Stat(cfg.VideoFile(v.Path)); err != nil {
			continue
		}

		_, thumbErr := os.Stat(cfg.ThumbnailFile(v.ThumbnailName()))

		items = append(items, videoListItem{Video: v, HasThumbnail: thumbErr == nil})
	}

	switch sortBy {
	case "title":
		sort.SliceStable(items, func(i, j int) bool {
			return strings.ToLower(items[i].Title) < strings.ToLower(items[j].Title)
		})
	default: // newest
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].CreationDate.After(items[j].CreationDate)
		})
	}

	return items, nil
}

func (h *Handlers) Index(rw http.ResponseWriter, r *http.Request) {
	items, err := h.listVideos(r, r.URL.Query().Get("sort"))
	if err != nil {
		panic(err)
	}

	if err := ctxtemplate.ExecuteTemplateIntoResponse(r, rw, "page_index", map[string]interface{}{
		"Videos": items,
		"Sort":   r.URL.Query().Get("sort"),
	}); err != nil {
		panic(err)
	}
}

func (h *Handlers) Play(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	video, err := h.store.Get(vars["id"])
	if err != nil {
		httputil.NotFound(rw, "video not found")
		return
	}

	if err := ctxtemplate.ExecuteTemplateIntoResponse(r, rw, "page_play", map[string]interface{}{
		"Video": video,
	}); err != nil {
		panic(err)
	}
}
