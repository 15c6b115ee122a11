package main

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/tdewolff/minify"
	"github.com/tdewolff/minify/css"
	"github.com/tdewolff/minify/html"
	"github.com/tdewolff/minify/js"
	"github.com/urfave/negroni/v2"

	"fknsrs.biz/p/vidvault/handlers"
	"fknsrs.biz/p/vidvault/internal/catalog"
	"fknsrs.biz/p/vidvault/internal/config"
	"fknsrs.biz/p/vidvault/internal/configreader"
	"fknsrs.biz/p/vidvault/internal/ctxconfig"
	"fknsrs.biz/p/vidvault/internal/ctxlogger"
	"fknsrs.biz/p/vidvault/internal/ctxtemplate"
	"fknsrs.biz/p/vidvault/internal/ffmpeg"
	"fknsrs.biz/p/vidvault/internal/ingest"
	"fknsrs.biz/p/vidvault/internal/ipfilter"
	"fknsrs.biz/p/vidvault/internal/library"
	"fknsrs.biz/p/vidvault/internal/metrics"
	"fknsrs.biz/p/vidvault/internal/taskreg"
	"fknsrs.biz/p/vidvault/internal/templatecollection"
)

var cfg = config.Config{
	LogLevel:     logrus.InfoLevel,
	ListenAddr:   ":8000",
	VideoDir:     "videos",
	ThumbnailDir: "thumbnails",
	CatalogPath:  "catalog.db",
	Minify:       true,
}

//go:embed templates
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

func init() {
	for _, configPath := range []string{"config.toml", "config.yaml", "config.yml"} {
		if st, err := os.Stat(configPath); err == nil && st != nil && !st.IsDir() {
			cfg.Config = configPath
		}
	}
}

const reconcileInterval = time.Hour

func main() {
	ctx := context.Background()

	_ = godotenv.Load()

	if err := configreader.Read(os.Args[1:], os.Environ(), &cfg); err != nil {
		panic(err)
	}

	logger := logrus.New()
	logger.SetLevel(cfg.LogLevel)

	logger.WithFields(logrus.Fields{
		"config.config":        cfg.Config,
		"config.log_level":     cfg.LogLevel,
		"config.listen_addr":   cfg.ListenAddr,
		"config.video_dir":     cfg.VideoDir,
		"config.thumbnail_dir": cfg.ThumbnailDir,
		"config.catalog_path":  cfg.CatalogPath,
		"config.allowed_ips":   cfg.AllowedIPs,
		"config.minify":        cfg.Minify,
	}).Info("program starting")

	ctx = ctxlogger.WithLogger(ctx, logger)

	cell := config.NewCell(cfg)
	ctx = ctxconfig.WithCell(ctx, cell)

	for _, dir := range []string{cfg.VideoDir, cfg.ThumbnailDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			panic(err)
		}
	}

	store, err := catalog.Open(cfg.CatalogPath)
	if err != nil {
		panic(err)
	}
	defer store.Close()

	transcoder := ffmpeg.New()
	registry := taskreg.NewRegistry()
	pipeline := ingest.NewPipeline(registry, store, transcoder, cell, nil, logger)
	reconciler := library.NewReconciler(store, transcoder, cell, logger)

	h := handlers.New(store, registry, pipeline, reconciler, transcoder)

	workers := []worker{
		{
			name: "application",
			run: func(ctx context.Context) error {
				return runApplicationWorker(ctx, cell, h, cfg.ListenAddr)
			},
		},
		{
			name: "reconciler",
			run: func(ctx context.Context) error {
				return runReconcileWorker(ctx, reconciler)
			},
		},
	}

	if err := runAllWorkers(ctx, workers); err != nil {
		panic(err)
	}
}

type worker struct {
	name string
	run  func(ctx context.Context) error
}

// runAllWorkers runs every worker forever, restarting each one a second
// after it returns. It only gives up when the outer context is cancelled.
func runAllWorkers(ctx context.Context, workers []worker) error {
	var wg sync.WaitGroup

	for id, w := range workers {
		wg.Add(1)

		go func(id int, w worker) {
			defer wg.Done()

			for {
				l := ctxlogger.GetLogger(ctx).WithFields(logrus.Fields{
					"worker.id":   id + 1,
					"worker.name": w.name,
				})

				if err := w.run(ctxlogger.WithLogger(ctx, l)); err != nil {
					l.WithError(err).Error("worker failed")
				} else {
					l.Info("worker finished; restarting")
				}

				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Second):
				}
			}
		}(id, w)
	}

	wg.Wait()

	return ctx.Err()
}

func directoryExists(name string) bool {
	st, err := os.Stat(name)
	if err != nil {
		return false
	}
	return st.IsDir()
}

func runApplicationWorker(ctx context.Context, cell *config.Cell, h *handlers.Handlers, addr string) error {
	l := ctxlogger.GetLogger(ctx)

	l.WithFields(logrus.Fields{
		"args.addr": addr,
	}).Info("running application worker")

	templateFuncs := template.FuncMap{
		"format_time": func(t time.Time) string {
			return t.Format(time.RFC3339)
		},
		"format_date": func(t time.Time) string {
			return t.Format("2006-01-02")
		},
		"join": strings.Join,
	}

	var templates templatecollection.Collection

	if directoryExists("templates") {
		l.Info("using live filesystem for templates")
		c, err := templatecollection.NewLive(os.DirFS("."), templateFuncs)
		if err != nil {
			return fmt.Errorf("runApplicationWorker: %w", err)
		}
		templates = c
	} else {
		l.Info("using embedded filesystem for templates")
		c, err := templatecollection.NewCached(templateFS, templateFuncs)
		if err != nil {
			return fmt.Errorf("runApplicationWorker: %w", err)
		}
		templates = c
	}

	m := mux.NewRouter()

	m.Methods(http.MethodGet).Path("/").HandlerFunc(h.Index)
	m.Methods(http.MethodGet).Path("/play/{id}").HandlerFunc(h.Play)
	m.Methods(http.MethodGet).Path("/videos/{id}").HandlerFunc(h.StreamVideo)
	m.Methods(http.MethodGet).Path("/thumbnails/{name}").HandlerFunc(h.Thumbnail)
	m.Methods(http.MethodPost).Path("/api/download").HandlerFunc(h.Download)
	m.Methods(http.MethodGet).Path("/api/task-status/{task_id}").HandlerFunc(h.TaskStatus)
	m.Methods(http.MethodGet).Path("/api/task-updates").HandlerFunc(h.TaskUpdates)
	m.Methods(http.MethodGet).Path("/api/videos").HandlerFunc(h.ListVideos)
	m.Methods(http.MethodPost).Path("/api/videos/{id}/update").HandlerFunc(h.UpdateVideo)
	m.Methods(http.MethodDelete).Path("/api/videos/{id}").HandlerFunc(h.DeleteVideo)
	m.Methods(http.MethodPost).Path("/api/videos/{id}/thumbnail").HandlerFunc(h.RegenerateThumbnail)
	m.Methods(http.MethodGet).Path("/api/folders").HandlerFunc(h.Folders)
	m.Methods(http.MethodPost).Path("/api/change-directory").HandlerFunc(h.ChangeDirectory)
	m.Methods(http.MethodGet).Path("/metrics").Handler(metrics.Handler())

	if directoryExists("static") {
		l.Info("using live filesystem for static files")
		m.Methods(http.MethodGet).PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.Dir("static"))))
	} else {
		l.Info("using embedded filesystem for static files")
		staticRoot, err := fs.Sub(staticFS, "static")
		if err != nil {
			return fmt.Errorf("runApplicationWorker: %w", err)
		}
		m.Methods(http.MethodGet).PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.FS(staticRoot))))
	}

	min := minify.New()
	min.Add("text/html", html.DefaultMinifier)
	min.Add("text/css", css.DefaultMinifier)
	min.Add("application/javascript", js.DefaultMinifier)

	n := negroni.New()
	n.Use(negroni.NewRecovery())
	n.UseFunc(ctxlogger.Register(l))
	n.UseFunc(ctxconfig.Register(cell))
	n.UseFunc(ipfilter.Register(cell))
	n.UseFunc(ctxtemplate.Register(templates))
	n.UseFunc(ctxlogger.Log())

	n.UseFunc(func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
		started := time.Now()
		next(rw, r)

		if nrw, ok := rw.(negroni.ResponseWriter); ok {
			metrics.ObserveRequest(r.Method, nrw.Status(), time.Since(started).Seconds())
		}
	})

	if cell.Get().Minify {
		n.UseFunc(func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
			if strings.ToLower(r.Header.Get("connection")) != "upgrade" && r.Header.Get("accept") != "text/event-stream" {
				mw := min.ResponseWriter(rw, r)
				defer mw.Close()
				rw = mw
			}

			next(rw, r)
		})
	}

	n.UseHandler(m)

	s := &http.Server{
		Addr:        addr,
		Handler:     n,
		BaseContext: func(l net.Listener) context.Context { return ctx },
	}

	errs := make(chan error, 1)
	go func() {
		l.Info("starting server")
		errs <- s.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// runReconcileWorker brings the catalog in line with the video directory at
// startup and then again periodically, which picks up files dropped in by
// hand.
func runReconcileWorker(ctx context.Context, reconciler *library.Reconciler) error {
	l := ctxlogger.GetLogger(ctx)

	l.Info("running reconcile worker")

	for {
		if err := reconciler.Reconcile(ctx); err != nil {
			return fmt.Errorf("runReconcileWorker: %w", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconcileInterval):
		}
	}
}
