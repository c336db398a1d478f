// Package view renders the HTML pages of efish.
package view

import (
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"time"
)

const baseFilename = "base.html"

// funcs are available in every view.
var funcs = template.FuncMap{
	"add": func(a, b int) int {
		return a + b
	},
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.UTC().Format("2006-01-02 15:04")
	},
}

// View is a collection of templates used to render data. Every
// view has an unique name.
//
// A view combines the following templates to render a HTML page:
// - base.html (required)
// - {name}.html (optional)
// - partials/*.html (optional)
type View struct {
	name     string
	template *template.Template
}

// Parse parses the file system and returns a view for the given name.
func Parse(viewFS fs.FS, name string) (*View, error) {
	// View names end up in file names, they should never allow access
	// to other parts of the file system.
	if err := validateName(name); err != nil {
		return nil, err
	}

	files := []string{
		baseFilename,
	}

	if name != baseFilename && name != "" {
		files = append(files, fmt.Sprintf("%s.html", name))
	}

	partials, err := fs.Glob(viewFS, "partials/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to glob for partials: %w", err)
	}

	files = append(files, partials...)

	templ, err := template.New(baseFilename).Funcs(funcs).ParseFS(viewFS, files...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse view: %w", err)
	}

	return &View{
		name:     name,
		template: templ,
	}, nil
}

// Render executes the view with data and writes the result to w.
func (v *View) Render(w io.Writer, data any) error {
	return v.template.Execute(w, data)
}

// validateName checks if all characters are alphanumeric, dashes or underscores.
func validateName(name string) error {
	for _, c := range name {
		if !validViewRune(c) {
			return fmt.Errorf("invalid character %v in view name: %s", c, name)
		}
	}
	return nil
}

func validViewRune(r rune) bool {
	if r == '-' || r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
		return true
	}

	return false
}
