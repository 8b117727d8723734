package web

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"math"
	"strings"

	"github.com/desertthunder/melodymatch/internal/flow"
	"github.com/desertthunder/melodymatch/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

// page is the data every template renders.
type page struct {
	Title    string
	Profile  *models.UserProfile
	Error    string
	CleanURL string
}

var funcs = template.FuncMap{
	"join": strings.Join,
	"inc":  func(i int) int { return i + 1 },
	"percent": func(v float64) int {
		return int(math.Round(math.Max(0, math.Min(1, v)) * 100))
	},
}

// templates holds one parsed set per page, each combined with the layout.
type templates map[flow.Page]*template.Template

func parseTemplates() (templates, error) {
	files := map[flow.Page]string{
		flow.PageLanding:   "templates/landing.html",
		flow.PageLogin:     "templates/login.html",
		flow.PageDashboard: "templates/dashboard.html",
	}

	t := templates{}
	for p, file := range files {
		tmpl, err := template.New(p.String()).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", file)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", file, err)
		}
		t[p] = tmpl
	}
	return t, nil
}

func (t templates) render(w io.Writer, p flow.Page, data page) error {
	tmpl, ok := t[p]
	if !ok {
		return fmt.Errorf("no template for page %v", p)
	}
	return tmpl.ExecuteTemplate(w, "layout", data)
}
