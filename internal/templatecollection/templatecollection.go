package templatecollection

import (
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"strings"
)

type Collection interface {
	ExecuteTemplate(wr io.Writer, name string, data interface{}) error
}

var ErrTemplateNotFound = fmt.Errorf("template not found")

// Cached parses every page template once, pairing each page_*.gohtml with
// layout.gohtml.
type Cached struct {
	m map[string]*template.Template
}

func NewCached(fileSystem fs.FS, funcs template.FuncMap) (*Cached, error) {
	pageFiles, err := fs.Glob(fileSystem, "*/page_*.gohtml")
	if err != nil {
		return nil, fmt.Errorf("templatecollection.NewCached: could not get page template names: %w", err)
	}

	c := Cached{m: make(map[string]*template.Template)}

	for _, pageFile := range pageFiles {
		name := strings.TrimSuffix(path.Base(pageFile), ".gohtml")

		tpl := template.New(name)
		if funcs != nil {
			tpl = tpl.Funcs(funcs)
		}

		fileNames := []string{pageFile}

		layouts, err := fs.Glob(fileSystem, "*/layout.gohtml")
		if err != nil {
			return nil, fmt.Errorf("templatecollection.NewCached: could not get layout names: %w", err)
		}
		fileNames = append(fileNames, layouts...)

		tpl, err = tpl.ParseFS(fileSystem, fileNames...)
		if err != nil {
			return nil, fmt.Errorf("templatecollection.NewCached: could not construct template %q: %w", name, err)
		}

		c.m[name] = tpl
	}

	return &c, nil
}

func (c *Cached) ExecuteTemplate(wr io.Writer, name string, data interface{}) error {
	tpl, ok := c.m[name]
	if !ok {
		return fmt.Errorf("templatecollection.Cached.ExecuteTemplate: %q: %w", name, ErrTemplateNotFound)
	}

	if err := tpl.ExecuteTemplate(wr, name, data); err != nil {
		return fmt.Errorf("templatecollection.Cached.ExecuteTemplate: %w", err)
	}

	return nil
}

// Live re-parses templates on every execution so edits show up without a
// restart. Development only.
type Live struct {
	fs fs.FS
	m  template.FuncMap
}

func NewLive(fileSystem fs.FS, funcs template.FuncMap) (*Live, error) {
	return &Live{fs: fileSystem, m: funcs}, nil
}

func (l *Live) ExecuteTemplate(wr io.Writer, name string, data interface{}) error {
	tpl := template.New(name)
	if l.m != nil {
		tpl = tpl.Funcs(l.m)
	}

	fileNames := []string{}

	for _, pattern := range []string{"*/" + name + ".gohtml", "*/layout.gohtml"} {
		names, err := fs.Glob(l.fs, pattern)
		if err != nil {
			return fmt.Errorf("templatecollection.Live.ExecuteTemplate: could not get names for pattern %q: %w", pattern, err)
		}

		fileNames = append(fileNames, names...)
	}

	if len(fileNames) == 0 {
		return fmt.Errorf("templatecollection.Live.ExecuteTemplate: %q: %w", name, ErrTemplateNotFound)
	}

	tpl, err := tpl.ParseFS(l.fs, fileNames...)
	if err != nil {
		return fmt.Errorf("templatecollection.Live.ExecuteTemplate: could not construct template: %w", err)
	}

	if err := tpl.ExecuteTemplate(wr, name, data); err != nil {
		return fmt.Errorf("templatecollection.Live.ExecuteTemplate: %w", err)
	}

	return nil
}
