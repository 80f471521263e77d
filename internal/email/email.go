// Package email sends operational emails about bot runs
package email

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"html/template"
	"log"
	"net/smtp"
	"strings"
	"time"
)

// Template names
const (
	TemplateRunReport = "run_report"
)

// Config holds email configuration
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	FromName string
	UseTLS   bool
}

// Service handles email sending
type Service struct {
	config    *Config
	templates map[string]*template.Template
}

// NewService creates a new email service
func NewService(config *Config) *Service {
	s := &Service{
		config:    config,
		templates: make(map[string]*template.Template),
	}
	s.loadTemplates()
	return s
}

// Enabled reports whether an SMTP host is configured.
func (s *Service) Enabled() bool {
	return s.config != nil && s.config.Host != ""
}

// Email is an HTML message to the ops recipients
type Email struct {
	To       []string
	Subject  string
	HTMLBody string
}

// TeamFailure is one failed team in a run report
type TeamFailure struct {
	TeamID string
	Error  string
}

// RunReportData holds data for the run report email
type RunReportData struct {
	Kind          string
	RunID         string
	Trigger       string
	StartedAt     time.Time
	FinishedAt    time.Time
	TeamsTotal    int
	TeamsFailed   int
	PairsNotified int
	Delivered     int
	Failures      []TeamFailure
}

// Duration is how long the run took, rounded to milliseconds.
func (d RunReportData) Duration() time.Duration {
	return d.FinishedAt.Sub(d.StartedAt).Round(time.Millisecond)
}

// loadTemplates loads all email templates
func (s *Service) loadTemplates() {
	// Run report, sent when one or more teams failed
	s.templates[TemplateRunReport] = template.Must(template.New(TemplateRunReport).Parse(`
<!DOCTYPE html>
<html>
<head>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Helvetica, Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background: #ef4444; color: white; padding: 24px; border-radius: 8px 8px 0 0; }
        .content { background: #f9fafb; padding: 24px; border-radius: 0 0 8px 8px; }
        table { width: 100%; border-collapse: collapse; margin-top: 16px; }
        td, th { text-align: left; padding: 6px 8px; border-bottom: 1px solid #e5e7eb; }
        .footer { margin-top: 24px; font-size: 12px; color: #6b7280; text-align: center; }
    </style>
</head>
<body>
<div class="container">
    <div class="header">
        <h2>⚠️ {{.TeamsFailed}} of {{.TeamsTotal}} teams failed</h2>
    </div>
    <div class="content">
        <p><strong>Run:</strong> {{.Kind}} {{.RunID}} ({{.Trigger}})</p>
        <p><strong>Started:</strong> {{.StartedAt.Format "2006-01-02 15:04:05 MST"}} &middot; took {{.Duration}}</p>
        {{if eq .Kind "pairup"}}<p><strong>Pairs notified:</strong> {{.PairsNotified}}</p>{{else}}<p><strong>Members reached:</strong> {{.Delivered}}</p>{{end}}

        <table>
            <tr><th>Team</th><th>Error</th></tr>
            {{range .Failures}}<tr><td>{{.TeamID}}</td><td>{{.Error}}</td></tr>
            {{end}}
        </table>
    </div>
    <div class="footer">
        Meetup Bot • Run report
    </div>
</div>
</body>
</html>
`))
}

// Render executes a template without sending it
func (s *Service) Render(templateName string, data interface{}) (string, error) {
	tmpl, ok := s.templates[templateName]
	if !ok {
		return "", fmt.Errorf("template not found: %s", templateName)
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		return "", fmt.Errorf("template execution error: %w", err)
	}
	return body.String(), nil
}

// buildMessage renders the headers and HTML body of email.
func buildMessage(fromName, from string, email *Email) *bytes.Buffer {
	var msg bytes.Buffer
	msg.WriteString(fmt.Sprintf("From: %s <%s>\r\n", fromName, from))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(email.To, ", ")))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", email.Subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(email.HTMLBody)
	return &msg
}

// Send sends an email
func (s *Service) Send(email *Email) error {
	if !s.Enabled() {
		log.Println("[Email] Email not configured, skipping send")
		return nil
	}

	msg := buildMessage(s.config.FromName, s.config.From, email)
	recipients := email.To

	var auth smtp.Auth
	if s.config.User != "" {
		auth = smtp.PlainAuth("", s.config.User, s.config.Password, s.config.Host)
	}

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	if s.config.UseTLS {
		tlsConfig := &tls.Config{
			ServerName: s.config.Host,
		}

		conn, err := tls.Dial("tcp", addr, tlsConfig)
		if err != nil {
			return fmt.Errorf("TLS dial error: %w", err)
		}
		defer conn.Close()

		client, err := smtp.NewClient(conn, s.config.Host)
		if err != nil {
			return fmt.Errorf("SMTP client error: %w", err)
		}
		defer client.Close()

		if auth != nil {
			if err = client.Auth(auth); err != nil {
				return fmt.Errorf("auth error: %w", err)
			}
		}

		if err = client.Mail(s.config.From); err != nil {
			return fmt.Errorf("mail error: %w", err)
		}

		for _, rcpt := range recipients {
			if err = client.Rcpt(rcpt); err != nil {
				return fmt.Errorf("rcpt error: %w", err)
			}
		}

		w, err := client.Data()
		if err != nil {
			return fmt.Errorf("data error: %w", err)
		}

		if _, err = w.Write(msg.Bytes()); err != nil {
			return fmt.Errorf("write error: %w", err)
		}

		if err = w.Close(); err != nil {
			return fmt.Errorf("close error: %w", err)
		}

		return client.Quit()
	}

	// Non-TLS
	return smtp.SendMail(addr, auth, s.config.From, recipients, msg.Bytes())
}

// SendWithTemplate sends an email using a template
func (s *Service) SendWithTemplate(to []string, subject, templateName string, data interface{}) error {
	body, err := s.Render(templateName, data)
	if err != nil {
		return err
	}

	return s.Send(&Email{
		To:       to,
		Subject:  subject,
		HTMLBody: body,
	})
}

// RunReportSubject is the subject line for a run report
func RunReportSubject(data RunReportData) string {
	return fmt.Sprintf("[Meetup Bot] %s run %s: %d of %d teams failed", data.Kind, data.RunID, data.TeamsFailed, data.TeamsTotal)
}

// SendRunReport sends a run report email
func (s *Service) SendRunReport(to []string, data RunReportData) error {
	return s.SendWithTemplate(to, RunReportSubject(data), TemplateRunReport, data)
}

// ============================================
// Async Email Queue (simple in-memory)
// ============================================

// EmailQueue handles async email sending
type EmailQueue struct {
	service *Service
	queue   chan *queuedEmail
	done    chan struct{}
}

type queuedEmail struct {
	to           []string
	subject      string
	templateName string
	data         interface{}
	retries      int
}

// NewEmailQueue creates a new email queue
func NewEmailQueue(service *Service, workers int) *EmailQueue {
	q := &EmailQueue{
		service: service,
		queue:   make(chan *queuedEmail, 100),
		done:    make(chan struct{}),
	}

	for i := 0; i < workers; i++ {
		go q.worker()
	}

	return q
}

func (q *EmailQueue) worker() {
	for {
		select {
		case email := <-q.queue:
			err := q.service.SendWithTemplate(email.to, email.subject, email.templateName, email.data)
			if err != nil {
				log.Printf("[Email] Send error: %v", err)
				if email.retries < 3 {
					email.retries++
					select {
					case <-time.After(time.Second * time.Duration(email.retries*2)):
						q.requeue(email)
					case <-q.done:
						return
					}
				}
			}
		case <-q.done:
			return
		}
	}
}

func (q *EmailQueue) requeue(email *queuedEmail) {
	select {
	case q.queue <- email:
	default:
		log.Printf("[Email] Queue full, dropping retry of %q", email.subject)
	}
}

// Enqueue adds an email to the queue. It drops the email when the queue is full.
func (q *EmailQueue) Enqueue(to []string, subject, templateName string, data interface{}) {
	q.requeue(&queuedEmail{
		to:           to,
		subject:      subject,
		templateName: templateName,
		data:         data,
	})
}

// EnqueueRunReport queues a run report email
func (q *EmailQueue) EnqueueRunReport(to []string, data RunReportData) {
	q.Enqueue(to, RunReportSubject(data), TemplateRunReport, data)
}

// Stop stops the email queue workers
func (q *EmailQueue) Stop() {
	close(q.done)
}
