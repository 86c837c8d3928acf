package notify

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/hireflow/hireflow/internal/domain"
)

// RenderError means a template could not be expanded against the supplied
// context. It fails the render entirely; a half-substituted message is never
// produced.
type RenderError struct {
	TemplateName string
	Field        string
	Cause        error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render template %q field %s: %v", e.TemplateName, e.Field, e.Cause)
}

func (e *RenderError) Unwrap() error { return e.Cause }

// Render expands a notification template's subject and body against a context
// map. Missing variables are errors, not empty strings, so a typo in a
// template or a caller that forgot a key is caught before anything is queued.
func Render(t *domain.NotificationTemplate, ctx map[string]string) (subject, body string, err error) {
	subject, err = renderField(t.Name, "subject", t.SubjectTemplate, ctx)
	if err != nil {
		return "", "", err
	}
	body, err = renderField(t.Name, "body", t.BodyTemplate, ctx)
	if err != nil {
		return "", "", err
	}
	return subject, body, nil
}

func renderField(name, field, text string, ctx map[string]string) (string, error) {
	tmpl, err := template.New(name + ":" + field).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", &RenderError{TemplateName: name, Field: field, Cause: err}
	}
	var buf strings.Builder
	if err := tmpl.Execute(&buf, ctx); err != nil {
		return "", &RenderError{TemplateName: name, Field: field, Cause: err}
	}
	return buf.String(), nil
}
