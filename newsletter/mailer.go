package newsletter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/a-h/templ"
	"github.com/resend/resend-go/v2"

	"github.com/eringen/folio/markdown"
)

// Mailer sends the welcome email for a new subscriber.
type Mailer interface {
	SendWelcome(ctx context.Context, sub Subscriber) error
}

// LogMailer logs instead of sending. It is the default when no email
// provider is configured.
type LogMailer struct {
	Logger *slog.Logger
}

func (m LogMailer) SendWelcome(_ context.Context, sub Subscriber) error {
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("Welcome email skipped, no provider configured", "subscriber", sub.ID)
	return nil
}

// Welcome describes the welcome message.
type Welcome struct {
	SiteName string
	SiteURL  string
	Subject  string
	Intro    string // markdown, rendered above the signup summary
}

// UnsubscribeURL is the one-click unsubscribe link for sub.
func (w Welcome) UnsubscribeURL(sub Subscriber) string {
	return strings.TrimRight(w.SiteURL, "/") + "/api/newsletter/unsubscribe?token=" + sub.ID.String()
}

// Body renders the HTML body of the welcome email.
func (w Welcome) Body(sub Subscriber) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
		greeting := "Hi"
		if sub.Name != nil {
			greeting = "Hi " + templ.EscapeString(*sub.Name)
		}
		if _, err := fmt.Fprintf(out, `<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
<h1 style="color: #10b981; font-size: 24px;">Welcome to %s!</h1>
`, templ.EscapeString(w.SiteName)); err != nil {
			return err
		}
		if strings.TrimSpace(w.Intro) != "" {
			if err := markdown.Markdown(w.Intro).Render(ctx, out); err != nil {
				return err
			}
		}
		_, err := fmt.Fprintf(out, `<p>%s, thank you for subscribing. You'll receive updates about:</p>
<ul>
<li>Latest blog posts</li>
<li>New project launches and updates</li>
<li>Tips and tutorials</li>
</ul>
<p style="color: #6b7280; font-size: 14px;">If you didn't subscribe to this newsletter, <a href="%s">unsubscribe here</a>.</p>
</div>`,
			greeting,
			templ.EscapeString(w.UnsubscribeURL(sub)),
		)
		return err
	})
}

// ResendMailer sends through the Resend API.
type ResendMailer struct {
	Client  *resend.Client
	From    string
	Welcome Welcome
}

// NewResendMailer returns a ResendMailer authenticated with apiKey.
func NewResendMailer(apiKey, from string, welcome Welcome) *ResendMailer {
	return &ResendMailer{
		Client:  resend.NewClient(apiKey),
		From:    from,
		Welcome: welcome,
	}
}

func (m *ResendMailer) SendWelcome(ctx context.Context, sub Subscriber) error {
	if m.Client == nil || m.Client.ApiKey == "" {
		return fmt.Errorf("resend: api key not configured")
	}
	var html bytes.Buffer
	if err := m.Welcome.Body(sub).Render(ctx, &html); err != nil {
		return fmt.Errorf("resend: render body: %w", err)
	}
	subject := m.Welcome.Subject
	if subject == "" {
		subject = "Welcome to the " + m.Welcome.SiteName + " newsletter!"
	}
	_, err := m.Client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    m.From,
		To:      []string{sub.Email},
		Subject: subject,
		Html:    html.String(),
	})
	if err != nil {
		return fmt.Errorf("resend: send: %w", err)
	}
	return nil
}
