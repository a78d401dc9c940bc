// Package email implements a notifier.Notifier that delivers vendor
// notifications over SMTP.
package email

import (
	"context"
	"fmt"
	"net/smtp"
	"strconv"

	"github.com/openprocure/tenderd/internal/port/notifier"
)

const providerName = "email"

// Notifier sends vendor emails via SMTP.
type Notifier struct {
	host     string
	port     int
	from     string
	password string
}

// NewNotifier creates an SMTP notifier.
func NewNotifier(host string, port int, from, password string) *Notifier {
	return &Notifier{host: host, port: port, from: from, password: password}
}

func (n *Notifier) Name() string { return providerName }

func (n *Notifier) Send(_ context.Context, notification notifier.Notification) error {
	if n.host == "" || n.from == "" {
		return notifier.ErrNotConfigured
	}

	addr := fmt.Sprintf("%s:%d", n.host, n.port)

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s",
		n.from, notification.VendorEmail, notification.Subject, notification.Body)

	var auth smtp.Auth
	if n.password != "" {
		auth = smtp.PlainAuth("", n.from, n.password, n.host)
	}

	return smtp.SendMail(addr, auth, n.from, []string{notification.VendorEmail}, []byte(msg))
}

func init() {
	notifier.Register(providerName, func(config map[string]string) (notifier.Notifier, error) {
		port := 25
		if p, err := strconv.Atoi(config["port"]); err == nil && p > 0 {
			port = p
		}
		return NewNotifier(config["host"], port, config["from"], config["password"]), nil
	})
}
