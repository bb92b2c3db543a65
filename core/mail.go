package core

import (
	"bytes"
	htmltmpl "html/template"
	"net/mail"
	"sync"
	texttmpl "text/template"

	"github.com/pkg/errors"
)

var (
	templatesMu sync.RWMutex
	templates   = make(map[string]emailTemplate)
)

type (
	emailTemplate struct {
		text *texttmpl.Template
		html *htmltmpl.Template
	}

	// EmailMessage is a notification to users, rendered from a registered template.
	EmailMessage struct {
		To           []mail.Address
		Subject      string
		TemplateName string
		TemplateData interface{}

		// set by Render
		TextContent string
		HTMLContent string
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
	}
)

// RegisterEmailTemplate parses and registers the text and html bodies of a named email.
// Either body may be empty.
func RegisterEmailTemplate(name, text, html string) error {
	var tmpl emailTemplate
	if text != "" {
		t, err := texttmpl.New(name).Option("missingkey=error").Parse(text)
		if err != nil {
			return errors.Wrapf(err, "parsing %s text template", name)
		}
		tmpl.text = t
	}
	if html != "" {
		t, err := htmltmpl.New(name).Option("missingkey=error").Parse(html)
		if err != nil {
			return errors.Wrapf(err, "parsing %s html template", name)
		}
		tmpl.html = t
	}

	templatesMu.Lock()
	templates[name] = tmpl
	templatesMu.Unlock()
	return nil
}

// Render executes the message template into TextContent and HTMLContent.
func (m *EmailMessage) Render() error {

	templatesMu.RLock()
	tmpl, ok := templates[m.TemplateName]
	templatesMu.RUnlock()
	if !ok {
		return errors.Errorf("email template %q not registered", m.TemplateName)
	}

	if tmpl.text != nil {
		var buff bytes.Buffer
		if err := tmpl.text.Execute(&buff, m.TemplateData); err != nil {
			return errors.Wrap(err, "rendering text")
		}
		m.TextContent = buff.String()
	}
	if tmpl.html != nil {
		var buff bytes.Buffer
		if err := tmpl.html.Execute(&buff, m.TemplateData); err != nil {
			return errors.Wrap(err, "rendering html")
		}
		m.HTMLContent = buff.String()
	}
	return nil
}

func (m *EmailMessage) HasRecipients() bool { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool    { return (m.TextContent != "") || (m.HTMLContent != "") }
