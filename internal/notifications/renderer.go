package notifications

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
	"unicode/utf8"

	"github.com/yasmineadnan/dev-mobile-react-native/internal/domain"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// RenderData is the input of a notification template.
type RenderData struct {
	IncidentTitle    string
	Status           string
	PreviousStatus   string
	Priority         string
	PreviousPriority string
	Actor            string
	Assignee         string
	Reason           string
	Note             string
	Title            string
	Message          string
}

// Renderer renders notification titles and messages from templates.
type Renderer struct {
	templates map[domain.NotificationType]*template.Template
}

var renderedTypes = []domain.NotificationType{
	domain.NotificationIncidentCreated,
	domain.NotificationIncidentAssigned,
	domain.NotificationStatusChanged,
	domain.NotificationIncidentApproved,
	domain.NotificationIncidentRejected,
	domain.NotificationPriorityChanged,
	domain.NotificationNewMessage,
	domain.NotificationGeneral,
}

// NewRenderer creates a new renderer and loads all templates.
func NewRenderer() (*Renderer, error) {
	funcMap := template.FuncMap{
		"title":    titleCase,
		"lower":    strings.ToLower,
		"truncate": truncate,
	}

	r := &Renderer{templates: make(map[domain.NotificationType]*template.Template, len(renderedTypes))}
	for _, t := range renderedTypes {
		filename := fmt.Sprintf("templates/%s.tmpl", t)
		content, err := templatesFS.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", filename, err)
		}

		tmpl, err := template.New(string(t)).Funcs(funcMap).Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", t, err)
		}
		r.templates[t] = tmpl
	}

	return r, nil
}

// Render returns the title and message for a notification type.
func (r *Renderer) Render(t domain.NotificationType, data RenderData) (title, message string, err error) {
	tmpl, ok := r.templates[t]
	if !ok {
		return "", "", fmt.Errorf("%w: no template for type %q", ErrInvalidNotification, t)
	}

	if title, err = execute(tmpl, "title", data); err != nil {
		return "", "", err
	}
	if message, err = execute(tmpl, "message", data); err != nil {
		return "", "", err
	}
	return title, message, nil
}

func execute(tmpl *template.Template, name string, data RenderData) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("execute template %s/%s: %w", tmpl.Name(), name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

var titleCaser = cases.Title(language.English)

func titleCase(s string) string {
	return titleCaser.String(s)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "…"
}
