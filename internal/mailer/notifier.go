package mailer

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/izpodvypodvert/todoapi/internal/domain"
)

// Notifier turns account events into emails.
type Notifier struct {
	sender      Sender
	frontendURL string
}

// NewNotifier builds a Notifier. When frontendURL is set, emails carry links
// to its /verify and /reset-password pages.
func NewNotifier(sender Sender, frontendURL string) *Notifier {
	return &Notifier{sender: sender, frontendURL: strings.TrimRight(frontendURL, "/")}
}

func (n *Notifier) UserRegistered(ctx context.Context, user *domain.User) error {
	return n.sender.Send(ctx, Message{
		To:      user.Email,
		Subject: "Welcome to todoapi",
		Body:    fmt.Sprintf("Hi %s,\n\nyour account has been created.\n", user.Username),
	})
}

func (n *Notifier) PasswordResetRequested(ctx context.Context, user *domain.User, token string) error {
	return n.sender.Send(ctx, Message{
		To:      user.Email,
		Subject: "Reset your password",
		Body:    n.body("Someone asked to reset the password of your account.", "/reset-password", token),
	})
}

func (n *Notifier) VerificationRequested(ctx context.Context, user *domain.User, token string) error {
	return n.sender.Send(ctx, Message{
		To:      user.Email,
		Subject: "Verify your email",
		Body:    n.body("Please confirm your email address.", "/verify", token),
	})
}

func (n *Notifier) body(intro, path, token string) string {
	var b strings.Builder
	b.WriteString(intro)
	b.WriteString("\n\n")
	if n.frontendURL != "" {
		fmt.Fprintf(&b, "Open %s%s?token=%s\n\nor use this token: ", n.frontendURL, path, url.QueryEscape(token))
	} else {
		b.WriteString("Token: ")
	}
	b.WriteString(token)
	b.WriteString("\n")
	return b.String()
}
