package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

type followUpEmailData struct {
	Subject    string
	Paragraphs [][]string
}

// newFollowUpEmailData splits a plain-text draft into paragraphs of lines so
// the template can render it without trusting any markup in the draft.
func newFollowUpEmailData(subject, body string) followUpEmailData {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	var paragraphs [][]string
	for _, block := range strings.Split(body, "\n\n") {
		block = strings.Trim(block, "\n")
		if strings.TrimSpace(block) == "" {
			continue
		}
		paragraphs = append(paragraphs, strings.Split(block, "\n"))
	}
	return followUpEmailData{Subject: subject, Paragraphs: paragraphs}
}

func renderEmailTemplate(name string, data any) (string, error) {
	templates := []string{"templates/base.html", "templates/" + name}
	tmpl, err := template.New("base.html").ParseFS(templateFS, templates...)
	if err != nil {
		return "", fmt.Errorf("parse email template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "email", data); err != nil {
		return "", fmt.Errorf("execute email template %s: %w", name, err)
	}
	return buf.String(), nil
}
