// Package assets embeds the HTML views, the email templates and the
// static files served by efish.
package assets

import (
	"embed"
	"io/fs"
)

//go:embed templates/*
var templateFS embed.FS

//go:embed emails/*.tmpl
var emailFS embed.FS

//go:embed dist/*
var distFS embed.FS

var (
	// TemplateFS holds base.html, the partials and one file per view.
	TemplateFS = mustSub(templateFS, "templates")
	// EmailFS holds one .tmpl file per email.
	EmailFS = mustSub(emailFS, "emails")
	// DistFS is served under /static/.
	DistFS = mustSub(distFS, "dist")
)

func mustSub(fsys fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic("failed to subtree " + dir + " FS: " + err.Error())
	}
	return sub
}
