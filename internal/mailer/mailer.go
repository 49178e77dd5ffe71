// Package mailer sends visit emails over SMTP. It is only ever invoked by
// the queue consumer, so a slow or unreachable SMTP server can never block
// an API request.
package mailer

import (
	"fmt"
	"log"
	"os"
	"strconv"

	gomail "github.com/wneessen/go-mail"

	"github.com/visicontrol/visit-scheduler/internal/queue"
)

// Mailer wraps an SMTP client configured from the environment.
type Mailer struct {
	client *gomail.Client
	from   string
}

// NewFromEnv builds a Mailer from SMTP_HOST, SMTP_PORT, SMTP_USER,
// SMTP_PASS and SMTP_FROM. When SMTP_HOST is empty it returns (nil, nil)
// and delivery is disabled; events are then logged and acked without
// sending.
func NewFromEnv() (*Mailer, error) {
	host := os.Getenv("SMTP_HOST")
	if host == "" {
		return nil, nil
	}
	port := 587
	if raw := os.Getenv("SMTP_PORT"); raw != "" {
		p, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid SMTP_PORT %q: %w", raw, err)
		}
		port = p
	}
	user := os.Getenv("SMTP_USER")
	pass := os.Getenv("SMTP_PASS")
	from := os.Getenv("SMTP_FROM")
	if from == "" {
		from = user
	}

	opts := []gomail.Option{gomail.WithPort(port)}
	if user != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(user),
			gomail.WithPassword(pass),
		)
	}
	if port == 465 {
		opts = append(opts, gomail.WithSSL())
	}

	client, err := gomail.NewClient(host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &Mailer{client: client, from: from}, nil
}

// SendVisitEmail renders and sends the email for a queued event. A nil
// Mailer logs the event and reports success.
func (m *Mailer) SendVisitEmail(ev queue.VisitEmailEvent) error {
	if m == nil {
		log.Printf("mailer: delivery disabled, dropping %s email for %s", ev.Kind, ev.To)
		return nil
	}

	var subject, text, html string
	switch ev.Kind {
	case queue.EmailKindReminder:
		subject, text, html = renderReminder(ev)
	default:
		subject, text, html = renderStatusChange(ev)
	}

	msg := gomail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return fmt.Errorf("set from: %w", err)
	}
	if err := msg.To(ev.To); err != nil {
		return fmt.Errorf("set to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextPlain, text)
	msg.AddAlternativeString(gomail.TypeTextHTML, html)

	return m.client.DialAndSend(msg)
}

func renderReminder(ev queue.VisitEmailEvent) (subject, text, html string) {
	subject = "Recordatorio de visita para mañana – VisiControl"
	text = fmt.Sprintf(`Hola %s,

Te recordamos que mañana tienes una visita programada con %s a las %s (fecha: %s).

Si ya no puedes asistir, puedes cancelar o reprogramar la visita desde la aplicación.

Saludos,
Equipo VisiControl`, ev.UserName, ev.InmateName, ev.VisitHour, ev.VisitDate)
	html = fmt.Sprintf(`<p>Hola <strong>%s</strong>,</p>
<p>Te recordamos que <strong>mañana</strong> tienes una visita programada:</p>
<ul>
  <li>Interno: <strong>%s</strong></li>
  <li>Fecha: <strong>%s</strong></li>
  <li>Hora: <strong>%s</strong></li>
</ul>
<p>Si ya no puedes asistir, puedes cancelar o reprogramar la visita desde la aplicación.</p>
<p>Saludos,<br/>Equipo VisiControl</p>`, ev.UserName, ev.InmateName, ev.VisitDate, ev.VisitHour)
	return subject, text, html
}

func renderStatusChange(ev queue.VisitEmailEvent) (subject, text, html string) {
	subject = fmt.Sprintf("Actualización de tu visita – %s", ev.StatusLabel)
	name := ""
	if ev.UserName != "" {
		name = " " + ev.UserName
	}
	text = fmt.Sprintf(`Hola%s,
El estado de tu visita ha cambiado a %s.
Interno: %s
Fecha: %s
Hora: %s
Revisa el detalle en la aplicación VisiControl.`, name, ev.StatusLabel, ev.InmateName, ev.VisitDate, ev.VisitHour)
	html = fmt.Sprintf(`<p>Hola%s,</p>
<p>Te informamos que el estado de tu visita ha cambiado a <strong>%s</strong>.</p>
<ul>
  <li>Interno: <strong>%s</strong></li>
  <li>Fecha: <strong>%s</strong></li>
  <li>Hora: <strong>%s</strong></li>
</ul>
<p>Puedes revisar el detalle en la aplicación VisiControl.</p>
<p>Saludos,<br/>Equipo VisiControl</p>`, name, ev.StatusLabel, ev.InmateName, ev.VisitDate, ev.VisitHour)
	return subject, text, html
}
