package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"net/textproto"
	"regexp"
	"strconv"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/telekom/mail-dispatcher/pkg/endpoint"
	"github.com/telekom/mail-dispatcher/pkg/metrics"
)

// Transport delivers a single item through an endpoint. It is called once
// per item and does not retry.
type Transport interface {
	Deliver(ctx context.Context, ep endpoint.Config, item Item) error
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, ep endpoint.Config, item Item) error

func (f TransportFunc) Deliver(ctx context.Context, ep endpoint.Config, item Item) error {
	return f(ctx, ep, item)
}

var replyCodePattern = regexp.MustCompile(`(?:^|\s)([2-5][0-9]{2})[\s-]`)

type SMTPOptions struct {
	// InsecureSkipVerify disables certificate verification for STARTTLS and SSL.
	InsecureSkipVerify bool
}

// SMTPTransport sends items with gomail, dialling the item's endpoint for
// every delivery.
type SMTPTransport struct {
	opts SMTPOptions
	log  *zap.SugaredLogger
	send func(d *gomail.Dialer, m *gomail.Message) error
}

func NewSMTPTransport(opts SMTPOptions, log *zap.SugaredLogger) *SMTPTransport {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if opts.InsecureSkipVerify {
		log.Warnw("InsecureSkipVerify is enabled for SMTP TLS connections")
	}
	return &SMTPTransport{
		opts: opts,
		log:  log.Named("smtp"),
		send: func(d *gomail.Dialer, m *gomail.Message) error {
			return d.DialAndSend(m)
		},
	}
}

func (t *SMTPTransport) Deliver(ctx context.Context, ep endpoint.Config, item Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.log.Debugw("Sending item", "item", item.ID, "endpoint", ep.ID, "host", ep.Host, "security", ep.Security.String())

	err := t.send(t.dialer(ep), t.message(ep, item))
	if err != nil {
		metrics.SendFailure.WithLabelValues(ep.Host).Inc()
		t.log.Warnw("Delivery failed", "item", item.ID, "host", ep.Host, "error", err)
		return &TransportError{Code: replyCode(err), Text: err.Error()}
	}
	metrics.SendSuccess.WithLabelValues(ep.Host).Inc()
	return nil
}

// dialer maps the endpoint's security mode onto gomail. SSL wraps the
// connection in TLS from the start. None and StartTLS both dial in plain text
// and gomail upgrades with STARTTLS whenever the server advertises it, so the
// two modes differ only in the TLS settings handed over for that upgrade.
// A server that never offers STARTTLS is spoken to in plain text either way.
func (t *SMTPTransport) dialer(ep endpoint.Config) *gomail.Dialer {
	d := gomail.NewDialer(ep.Host, ep.Port, ep.User, ep.Password)
	d.SSL = ep.Security == endpoint.SecuritySSL
	if ep.Security == endpoint.SecurityNone && !t.opts.InsecureSkipVerify {
		return d
	}
	d.TLSConfig = &tls.Config{
		ServerName:         ep.Host,
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: t.opts.InsecureSkipVerify, // #nosec G402 -- opt-in via config
	}
	return d
}

func (t *SMTPTransport) message(ep endpoint.Config, item Item) *gomail.Message {
	item.normalize()
	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", item.SenderAddress, item.SenderName)
	msg.SetAddressHeader("Reply-To", item.SenderAddress, item.SenderName)
	msg.SetAddressHeader("To", item.RecipientAddress, item.RecipientName)
	msg.SetHeader("Subject", item.Subject)
	msg.SetHeader("X-Priority", item.Priority.header())
	if ep.Banner != "" {
		msg.SetHeader("X-Mailer", ep.Banner)
	}
	if item.IsHTML() {
		msg.SetBody("text/html", item.Body)
	} else {
		msg.SetBody("text/plain", item.Body)
	}
	return msg
}

// replyCode extracts the SMTP reply code from a delivery error, or -1.
func replyCode(err error) int {
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		return protoErr.Code
	}
	if m := replyCodePattern.FindStringSubmatch(err.Error()); m != nil {
		if code, convErr := strconv.Atoi(m[1]); convErr == nil {
			return code
		}
	}
	return -1
}
