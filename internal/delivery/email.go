package delivery

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/textproto"
	"strings"
	"text/template"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"go.uber.org/zap"
)

// SESAPI is the part of the SES v2 client used for delivery
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// EmailConfig configuration for email delivery
type EmailConfig struct {
	FromAddress      string `json:"from_address"`
	FromName         string `json:"from_name"`
	ReplyTo          string `json:"reply_to"`
	ConfigurationSet string `json:"configuration_set"`
	BCC              string `json:"bcc"`
}

// Attachment represents an email attachment
type Attachment struct {
	Name        string
	Data        []byte
	ContentType string
}

// ReportEmail is one report delivery to one prospect
type ReportEmail struct {
	To           string
	ContactName  string
	BusinessName string
	DownloadURL  string
	// Markdown overrides the default body
	Markdown   string
	Attachment Attachment
}

const defaultBody = `Hi {{.ContactName}},

Thank you for telling us about **{{.BusinessName}}**. Your personalized AI Opportunities report is attached.

Inside you will find:

- quick wins you can start this month
- the larger opportunities we see for your business
- concrete next steps
{{if .DownloadURL}}
You can also [download the report]({{.DownloadURL}}) for the next few days.
{{end}}
Reply to this email to book a discovery call.
`

var bodyTemplate = template.Must(template.New("body").Parse(defaultBody))

// Mailer sends reports through SES as raw MIME messages
type Mailer struct {
	client   SESAPI
	config   EmailConfig
	markdown goldmark.Markdown
	logger   *zap.Logger
	now      func() time.Time
}

// NewMailer creates a new SES mailer
func NewMailer(client SESAPI, config EmailConfig, logger *zap.Logger) *Mailer {
	return &Mailer{
		client:   client,
		config:   config,
		markdown: goldmark.New(goldmark.WithExtensions(extension.Linkify)),
		logger:   logger,
		now:      time.Now,
	}
}

// SendReport emails the report PDF with text and HTML bodies
func (m *Mailer) SendReport(ctx context.Context, email ReportEmail) error {
	if email.To == "" {
		return fmt.Errorf("no recipient specified")
	}
	if len(email.Attachment.Data) == 0 {
		return fmt.Errorf("no report attached")
	}

	raw, err := m.BuildMessage(email)
	if err != nil {
		return err
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(m.from()),
		Destination:      &types.Destination{ToAddresses: []string{email.To}},
		Content:          &types.EmailContent{Raw: &types.RawMessage{Data: raw}},
	}
	if m.config.BCC != "" {
		input.Destination.BccAddresses = []string{m.config.BCC}
	}
	if m.config.ReplyTo != "" {
		input.ReplyToAddresses = []string{m.config.ReplyTo}
	}
	if m.config.ConfigurationSet != "" {
		input.ConfigurationSetName = aws.String(m.config.ConfigurationSet)
	}

	out, err := m.client.SendEmail(ctx, input)
	if err != nil {
		m.logger.Error("Failed to send email", zap.Error(err), zap.String("to", email.To))
		return fmt.Errorf("failed to send email: %w", err)
	}

	m.logger.Info("Email sent successfully",
		zap.String("to", email.To),
		zap.String("message_id", aws.ToString(out.MessageId)),
		zap.Int("bytes", len(raw)))
	return nil
}

// BuildMessage renders the full MIME message: a text/HTML alternative body
// followed by the attachment
func (m *Mailer) BuildMessage(email ReportEmail) ([]byte, error) {
	markdown := email.Markdown
	if markdown == "" {
		var buf bytes.Buffer
		if err := bodyTemplate.Execute(&buf, email); err != nil {
			return nil, fmt.Errorf("failed to render email body: %w", err)
		}
		markdown = buf.String()
	}
	var html bytes.Buffer
	if err := m.markdown.Convert([]byte(markdown), &html); err != nil {
		return nil, fmt.Errorf("failed to convert email body: %w", err)
	}

	var msg, body bytes.Buffer
	mixed := multipart.NewWriter(&msg)
	alt := multipart.NewWriter(&body)

	header := func(k, v string) { fmt.Fprintf(&msg, "%s: %s\r\n", k, v) }
	header("From", m.from())
	header("To", email.To)
	header("Subject", mime.QEncoding.Encode("utf-8", subject(email.BusinessName)))
	header("Date", m.now().UTC().Format(time.RFC1123Z))
	header("MIME-Version", "1.0")
	header("Content-Type", fmt.Sprintf("multipart/mixed; boundary=%q", mixed.Boundary()))
	msg.WriteString("\r\n")

	if err := writePart(alt, "text/plain; charset=utf-8", "quoted-printable", "", []byte(markdown)); err != nil {
		return nil, err
	}
	if err := writePart(alt, "text/html; charset=utf-8", "quoted-printable", "", html.Bytes()); err != nil {
		return nil, err
	}
	if err := alt.Close(); err != nil {
		return nil, err
	}

	altPart, err := mixed.CreatePart(textproto.MIMEHeader{
		"Content-Type": {fmt.Sprintf("multipart/alternative; boundary=%q", alt.Boundary())},
	})
	if err != nil {
		return nil, err
	}
	if _, err := altPart.Write(body.Bytes()); err != nil {
		return nil, err
	}

	a := email.Attachment
	contentType := a.ContentType
	if contentType == "" {
		contentType = "application/pdf"
	}
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": a.Name})
	if err := writePart(mixed, mime.FormatMediaType(contentType, map[string]string{"name": a.Name}), "base64", disposition, a.Data); err != nil {
		return nil, err
	}
	if err := mixed.Close(); err != nil {
		return nil, err
	}
	return msg.Bytes(), nil
}

func (m *Mailer) from() string {
	if m.config.FromName == "" {
		return m.config.FromAddress
	}
	return fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", m.config.FromName), m.config.FromAddress)
}

func subject(business string) string {
	if business == "" {
		return "Your AI Opportunities Report"
	}
	return "Your AI Opportunities Report for " + business
}

func writePart(w *multipart.Writer, contentType, encoding, disposition string, data []byte) error {
	h := textproto.MIMEHeader{
		"Content-Type":              {contentType},
		"Content-Transfer-Encoding": {encoding},
	}
	if disposition != "" {
		h.Set("Content-Disposition", disposition)
	}
	part, err := w.CreatePart(h)
	if err != nil {
		return fmt.Errorf("failed to create mime part: %w", err)
	}
	switch encoding {
	case "base64":
		_, err = part.Write([]byte(base64Lines(data)))
	default:
		qp := quotedprintable.NewWriter(part)
		if _, err = qp.Write(data); err == nil {
			err = qp.Close()
		}
	}
	if err != nil {
		return fmt.Errorf("failed to write mime part: %w", err)
	}
	return nil
}

// base64Lines encodes data in 76 column lines as MIME requires
func base64Lines(data []byte) string {
	const lineLen = 76
	encoded := base64.StdEncoding.EncodeToString(data)

	var b strings.Builder
	b.Grow(len(encoded) + len(encoded)/lineLen*2 + 2)
	for i := 0; i < len(encoded); i += lineLen {
		end := min(i+lineLen, len(encoded))
		b.WriteString(encoded[i:end])
		b.WriteString("\r\n")
	}
	return b.String()
}
