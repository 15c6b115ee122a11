package config

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// IPList is a comma-separated list of addresses allowed through the access
// filter. Empty means everybody, which is what you want in development and
// almost never in production.
type IPList []string

func (a IPList) MarshalText() ([]byte, error) {
	return []byte(strings.Join(a, ",")), nil
}

func (a *IPList) UnmarshalText(d []byte) error {
	var aa IPList

	for _, e := range strings.Split(string(d), ",") {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}

		aa = append(aa, e)
	}

	*a = aa

	return nil
}

func (a IPList) Contains(ip string) bool {
	for _, e := range a {
		if e == ip {
			return true
		}
	}

	return false
}

type Config struct {
	Config       string       `name:"config" toml:"config" yaml:"config" help:"Config file location."`
	LogLevel     logrus.Level `name:"log_level" toml:"log_level" yaml:"log_level" help:"Global log level."`
	ListenAddr   string       `name:"listen_addr" toml:"listen_addr" yaml:"listen_addr" help:"Address to listen on."`
	VideoDir     string       `name:"video_dir" toml:"video_dir" yaml:"video_dir" help:"Directory holding the video library."`
	ThumbnailDir string       `name:"thumbnail_dir" toml:"thumbnail_dir" yaml:"thumbnail_dir" help:"Directory holding generated thumbnails."`
	CatalogPath  string       `name:"catalog_path" toml:"catalog_path" yaml:"catalog_path" help:"Location of the catalog database file."`
	AllowedIPs   IPList       `name:"allowed_ips" toml:"allowed_ips" yaml:"allowed_ips" help:"Client addresses allowed through; empty allows all."`
	Minify       bool         `name:"minify" toml:"minify" yaml:"minify" help:"Minify HTML/CSS/JS output."`
}

func (c Config) VideoFile(name string) string {
	return filepath.Join(c.VideoDir, name)
}

func (c Config) ThumbnailFile(name string) string {
	return filepath.Join(c.ThumbnailDir, name)
}

// ArchiveDir is where pre-normalization originals are kept.
func (c Config) ArchiveDir() string {
	return filepath.Join(c.VideoDir, "original_webm")
}

// Cell holds the live configuration. VideoDir can be swapped at runtime by
// the change-directory endpoint, so nothing is allowed to hold a bare Config
// across a request; read through the cell instead.
type Cell struct {
	mu  sync.RWMutex
	cfg Config
}

func NewCell(cfg Config) *Cell {
	return &Cell{cfg: cfg}
}

func (c *Cell) Get() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.cfg
}

func (c *Cell) SetVideoDir(dir string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cfg.VideoDir = dir
}
