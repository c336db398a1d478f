// Package view parses the plain text email templates of efish.
//
// Every email is a <name>.tmpl file in the root of a file system that
// defines a "subject" and a "body" template. Missing data is an error
// rather than "<no value>" in someone's inbox.
package view

import (
	"fmt"
	"io"
	"io/fs"
	"slices"
	"text/template"

	"github.com/efish/efish/internal/email"
)

var elements = []email.TemplateElement{email.ElementSubject, email.ElementBody}

// View is a parsed email template.
type View struct {
	name string
	tmpl *template.Template
}

// Parse parses the template for the email with the given name.
func Parse(fsys fs.FS, name string) (*View, error) {
	// names end up in file names, only allow a safe subset.
	if !validName(name) {
		return nil, fmt.Errorf("invalid email name %q", name)
	}

	tmpl, err := template.New(name).Option("missingkey=error").ParseFS(fsys, name+".tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse email %s: %w", name, err)
	}

	for _, elem := range elements {
		if tmpl.Lookup(string(elem)) == nil {
			return nil, fmt.Errorf("email %s does not define a %s", name, elem)
		}
	}

	return &View{
		name: name,
		tmpl: tmpl,
	}, nil
}

// Render writes the element of the email to w.
func (v *View) Render(w io.Writer, elem email.TemplateElement, data any) error {
	if !slices.Contains(elements, elem) {
		return fmt.Errorf("email %s has no element %q", v.name, elem)
	}

	return v.tmpl.ExecuteTemplate(w, string(elem), data)
}

func validName(name string) bool {
	if name == "" {
		return false
	}

	for _, r := range name {
		switch {
		case r == '-', r == '_':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		default:
			return false
		}
	}

	return true
}
