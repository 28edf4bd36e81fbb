// Package notify renders and delivers ticket emails.
package notify

import (
	"bytes"
	"embed"
	"encoding/base64"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/aura-events/ticketing/internal/models"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// DefaultEventName is used in emails when no event name is configured.
const DefaultEventName = "our event"

// Message is a rendered email ready for delivery.
type Message struct {
	EmailType string
	To        string
	ToName    string
	Subject   string
	Text      string
	HTML      string
	// Fallback is set when templates failed and the static message was used.
	Fallback bool
}

// TicketData is the template context for ticket emails.
type TicketData struct {
	Participant *models.Participant
	Event       models.EventSettings
	EventName   string
	QRDataURI   htmltemplate.URL
}

// Renderer turns participants into ticket emails using the embedded templates.
type Renderer struct {
	text *texttemplate.Template
	html *htmltemplate.Template
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("Monday 2 January 2006, 15:04 MST")
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	text, err := texttemplate.New("text").Funcs(texttemplate.FuncMap{"date": formatDate}).
		ParseFS(templateFS, "templates/*.subject.tmpl", "templates/*.txt.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse text templates: %w", err)
	}
	html, err := htmltemplate.New("html").Funcs(htmltemplate.FuncMap{"date": formatDate}).
		ParseFS(templateFS, "templates/*.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse html templates: %w", err)
	}
	return &Renderer{text: text, html: html}, nil
}

// QRDataURI encodes a PNG as an inline data URI.
func QRDataURI(png []byte) htmltemplate.URL {
	if len(png) == 0 {
		return ""
	}
	return htmltemplate.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(png))
}

// Render builds the message of the given type. When a template fails it returns the static
// fallback message along with the template error.
func (r *Renderer) Render(emailType string, p *models.Participant, event models.EventSettings, qrPNG []byte) (Message, error) {
	data := TicketData{
		Participant: p,
		Event:       event,
		EventName:   event.DisplayName(DefaultEventName),
		QRDataURI:   QRDataURI(qrPNG),
	}
	msg := Message{EmailType: emailType, To: p.Email, ToName: p.FullName()}

	var subject, text, html bytes.Buffer
	err := r.text.ExecuteTemplate(&subject, emailType+".subject.tmpl", data)
	if err == nil {
		err = r.text.ExecuteTemplate(&text, emailType+".txt.tmpl", data)
	}
	if err == nil {
		err = r.html.ExecuteTemplate(&html, emailType+".html.tmpl", data)
	}
	if err != nil {
		return fallback(msg, data), fmt.Errorf("render %s email: %w", emailType, err)
	}
	msg.Subject = strings.TrimSpace(subject.String())
	msg.Text = text.String()
	msg.HTML = html.String()
	return msg, nil
}

func fallback(msg Message, data TicketData) Message {
	msg.Fallback = true
	msg.Subject = "Your ticket / QR code"
	msg.Text = fmt.Sprintf("Hello %s,\n\nThank you for registering for %s. Your ticket: %s\n",
		data.Participant.FirstName, data.EventName, data.Participant.TicketUUID)
	if data.QRDataURI != "" {
		msg.HTML = fmt.Sprintf(`<p>Hello %s,</p><p>Thank you for registering. Your ticket: %s</p><p><img src="%s" alt="Ticket QR code"></p>`,
			htmltemplate.HTMLEscapeString(data.Participant.FirstName), data.Participant.TicketUUID, data.QRDataURI)
	}
	return msg
}
