package web

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"
)

//go:embed templates
var templateFS embed.FS

type Templates struct {
	base  *template.Template
	pages map[string]*PageTemplate
}

type PageTemplate struct {
	*template.Template
}

// NewTemplates parses the shared layout and one template set per page under
// templates/pages.
func NewTemplates() *Templates {
	base := template.New("").Funcs(TemplateFuncs())
	base = template.Must(base.ParseFS(templateFS, "templates/layout/*.html"))

	pages := make(map[string]*PageTemplate)
	entries, err := fs.ReadDir(templateFS, "templates/pages")
	if err != nil {
		panic(fmt.Sprintf("Failed to read pages directory: %v", err))
	}
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".html" {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".html")
		clone, err := base.Clone()
		if err != nil {
			panic(fmt.Sprintf("Failed to clone template for %s: %v", name, err))
		}
		if _, err := clone.ParseFS(templateFS, "templates/pages/"+entry.Name()); err != nil {
			panic(fmt.Sprintf("Failed to parse templates for %s: %v", name, err))
		}
		pages[name] = &PageTemplate{Template: clone}
	}

	return &Templates{
		base:  base,
		pages: pages,
	}
}

func TemplateFuncs() template.FuncMap {
	return template.FuncMap{
		"unixTime": func(ts int64) string {
			return time.Unix(ts, 0).Format("2006-01-02 15:04:05")
		},
	}
}

// RenderPage renders page inside the shared layout
func (t *Templates) RenderPage(w http.ResponseWriter, page string, data any) {
	pt, ok := t.pages[page]
	if !ok {
		http.Error(w, "Unknown page: "+page, http.StatusNotFound)
		return
	}
	pt.RenderPage(w, data)
}

// Renders entire page
func (pt *PageTemplate) RenderPage(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := pt.ExecuteTemplate(w, "layout", data)
	if err != nil {
		http.Error(w, "Template rendering error: "+err.Error(), http.StatusInternalServerError)
	}
}
