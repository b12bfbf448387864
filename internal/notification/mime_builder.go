package notification

import (
	"bytes"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"strings"
	"time"
)

// AlertEmail is a complete alert ready for MIME encoding.
type AlertEmail struct {
	From     string
	FromName string
	To       []string
	Subject  string
	TextBody string
	HTMLBody string

	MessageID  string
	AlertID    string
	SystemName string
}

// NewAlertEmail renders data into an email addressed to recipients.
func NewAlertEmail(data *AlertData, from, fromName string, recipients []string) (*AlertEmail, error) {
	htmlBody, textBody, err := RenderAlert(data)
	if err != nil {
		return nil, fmt.Errorf("failed to render template: %w", err)
	}

	return &AlertEmail{
		From:       from,
		FromName:   fromName,
		To:         recipients,
		Subject:    AlertSubject,
		TextBody:   textBody,
		HTMLBody:   htmlBody,
		MessageID:  fmt.Sprintf("%s@plantwatch.local", data.AlertID),
		AlertID:    data.AlertID,
		SystemName: data.SystemName,
	}, nil
}

// BuildMIMEMessage encodes the email as multipart/alternative with
// quoted-printable text and HTML parts.
func BuildMIMEMessage(email *AlertEmail) ([]byte, error) {
	var buf bytes.Buffer
	alt := multipart.NewWriter(&buf)

	writeEmailHeaders(&buf, email, alt.Boundary())

	if err := writePart(alt, "text/plain", email.TextBody); err != nil {
		return nil, fmt.Errorf("failed to write text part: %w", err)
	}
	if err := writePart(alt, "text/html", email.HTMLBody); err != nil {
		return nil, fmt.Errorf("failed to write HTML part: %w", err)
	}
	if err := alt.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart: %w", err)
	}

	return buf.Bytes(), nil
}

func writeEmailHeaders(buf *bytes.Buffer, email *AlertEmail, boundary string) {
	from := email.From
	if email.FromName != "" {
		from = CreateDisplayName(email.FromName, email.From)
	}

	headers := [][2]string{
		{"From", from},
		{"To", strings.Join(email.To, ", ")},
		{"Subject", mime.QEncoding.Encode("utf-8", email.Subject)},
		{"Date", time.Now().Format(time.RFC1123Z)},
		{"MIME-Version", "1.0"},
		{"Content-Type", fmt.Sprintf("multipart/alternative; boundary=%s", boundary)},
	}
	if email.MessageID != "" {
		headers = append(headers, [2]string{"Message-ID", fmt.Sprintf("<%s>", email.MessageID)})
	}
	headers = append(headers,
		[2]string{"Auto-Submitted", "auto-generated"},
		[2]string{"X-Auto-Response-Suppress", "All"},
		[2]string{"X-Priority", "2"},
	)
	if email.SystemName != "" {
		headers = append(headers, [2]string{"X-Plantwatch-System", email.SystemName})
	}
	if email.AlertID != "" {
		headers = append(headers, [2]string{"X-Alert-ID", email.AlertID})
	}

	for _, h := range headers {
		fmt.Fprintf(buf, "%s: %s\r\n", h[0], h[1])
	}
	buf.WriteString("\r\n")
}

func writePart(w *multipart.Writer, contentType, body string) error {
	part, err := w.CreatePart(map[string][]string{
		"Content-Type":              {contentType + "; charset=utf-8"},
		"Content-Transfer-Encoding": {"quoted-printable"},
	})
	if err != nil {
		return err
	}
	qp := quotedprintable.NewWriter(part)
	if _, err := qp.Write([]byte(body)); err != nil {
		return err
	}
	return qp.Close()
}
