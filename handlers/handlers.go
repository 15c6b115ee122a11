package handlers

import (
	"fknsrs.biz/p/vidvault/internal/catalog"
	"fknsrs.biz/p/vidvault/internal/ingest"
	"fknsrs.biz/p/vidvault/internal/library"
	"fknsrs.biz/p/vidvault/internal/taskreg"
)

// Handlers bundles the request-path dependencies. Configuration travels in
// the request context (ctxconfig) because the video root can change at
// runtime.
type Handlers struct {
	store      *catalog.Store
	registry   *taskreg.Registry
	pipeline   *ingest.Pipeline
	reconciler *library.Reconciler
	transcoder library.Transcoder
}

func New(store *catalog.Store, registry *taskreg.Registry, pipeline *ingest.Pipeline, reconciler *library.Reconciler, transcoder library.Transcoder) *Handlers {
	return &Handlers{
		store:      store,
		registry:   registry,
		pipeline:   pipeline,
		reconciler: reconciler,
		transcoder: transcoder,
	}
}
