package view

import (
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/efish/efish/internal/email"
)

// MemRenderer parses every email once, so that a broken template fails
// at startup instead of on the first password reset.
type MemRenderer struct {
	views map[string]*View
}

func NewMemRenderer(fsys fs.FS) (*MemRenderer, error) {
	files, err := fs.Glob(fsys, "*.tmpl")
	if err != nil {
		return nil, err
	}

	views := make(map[string]*View, len(files))
	for _, f := range files {
		v, err := Parse(fsys, strings.TrimSuffix(f, ".tmpl"))
		if err != nil {
			return nil, err
		}
		views[v.name] = v
	}

	return &MemRenderer{views: views}, nil
}

func (r *MemRenderer) Render(w io.Writer, name string, elem email.TemplateElement, data any) error {
	v, ok := r.views[name]
	if !ok {
		return fmt.Errorf("no email named %q", name)
	}

	return v.Render(w, elem, data)
}

// FSRenderer parses the email on every render. Used with EMAIL_VIEW_DIR
// to edit emails without restarting.
type FSRenderer struct {
	fsys fs.FS
}

func NewFSRenderer(fsys fs.FS) *FSRenderer {
	return &FSRenderer{fsys: fsys}
}

func (r *FSRenderer) Render(w io.Writer, name string, elem email.TemplateElement, data any) error {
	v, err := Parse(r.fsys, name)
	if err != nil {
		return err
	}

	return v.Render(w, elem, data)
}
