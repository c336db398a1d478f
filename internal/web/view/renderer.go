package view

import (
	"fmt"
	"io"
	"io/fs"
	"strings"
)

// MemRenderer renders pages that were all parsed up front.
type MemRenderer struct {
	views map[string]*View
}

// NewMemRenderer parses every page in the root of viewFS, it fails on the
// first page that doesn't parse.
func NewMemRenderer(viewFS fs.FS) (*MemRenderer, error) {
	files, err := fs.Glob(viewFS, "*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to glob for views: %w", err)
	}

	views := make(map[string]*View, len(files))
	for _, file := range files {
		if file == baseFilename {
			continue
		}

		name := strings.TrimSuffix(file, ".html")
		v, err := Parse(viewFS, name)
		if err != nil {
			return nil, fmt.Errorf("failed to parse view %q: %w", name, err)
		}

		views[name] = v
	}

	return &MemRenderer{views: views}, nil
}

func (r *MemRenderer) Render(w io.Writer, name string, data any) error {
	v, ok := r.views[name]
	if !ok {
		return fmt.Errorf("view %q not found", name)
	}

	return v.Render(w, data)
}

// FSRenderer parses the page on every render, so that edits under
// HTTP_VIEW_DIR show up without a restart. Like MemRenderer it only
// renders pages, never the base on its own.
type FSRenderer struct {
	viewFS fs.FS
}

func NewFSRenderer(viewFS fs.FS) *FSRenderer {
	return &FSRenderer{viewFS: viewFS}
}

func (r *FSRenderer) Render(w io.Writer, name string, data any) error {
	if name == "" || name+".html" == baseFilename {
		return fmt.Errorf("view %q not found", name)
	}

	v, err := Parse(r.viewFS, name)
	if err != nil {
		return fmt.Errorf("failed to parse view %q: %w", name, err)
	}

	return v.Render(w, data)
}
