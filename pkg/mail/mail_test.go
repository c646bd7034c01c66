package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/telekom/mail-dispatcher/pkg/endpoint"
	"github.com/telekom/mail-dispatcher/pkg/system"
)

type capturedSend struct {
	dialer  *gomail.Dialer
	message string
}

func newCapturingTransport(t *testing.T, result error) (*SMTPTransport, *capturedSend) {
	t.Helper()
	captured := &capturedSend{}
	tr := NewSMTPTransport(SMTPOptions{}, system.NewTestLogger())
	tr.send = func(d *gomail.Dialer, m *gomail.Message) error {
		var buf bytes.Buffer
		_, err := m.WriteTo(&buf)
		require.NoError(t, err)
		captured.dialer = d
		captured.message = buf.String()
		return result
	}
	return tr, captured
}

func testEndpoint() endpoint.Config {
	return endpoint.Config{
		ID:       42,
		Host:     "smtp.example.com",
		Port:     587,
		Security: endpoint.SecurityStartTLS,
		User:     "a",
		Password: "b",
		Database: "db1",
		Banner:   "Dispatcher 1.0",
	}
}

func TestSMTPTransport_BuildsMessage(t *testing.T) {
	tr, captured := newCapturingTransport(t, nil)
	item := validItem()
	item.Priority = PriorityHigh
	item.RecipientName = "Paul"
	item.Body = "<p>hello</p>"

	require.NoError(t, tr.Deliver(context.Background(), testEndpoint(), item))

	assert.Equal(t, "smtp.example.com", captured.dialer.Host)
	assert.Equal(t, 587, captured.dialer.Port)
	assert.False(t, captured.dialer.SSL)
	assert.Contains(t, captured.message, "Subject: Hello World")
	assert.Contains(t, captured.message, "X-Priority: 1 (Highest)")
	assert.Contains(t, captured.message, "X-Mailer: Dispatcher 1.0")
	assert.Contains(t, captured.message, "x@y.com")
	assert.Contains(t, captured.message, "Paul")
	assert.Contains(t, captured.message, "text/html")
}

func TestSMTPTransport_PlainTextAndSSL(t *testing.T) {
	tr, captured := newCapturingTransport(t, nil)
	ep := testEndpoint()
	ep.Security = endpoint.SecuritySSL
	ep.Port = 465
	ep.Banner = ""

	require.NoError(t, tr.Deliver(context.Background(), ep, validItem()))
	assert.True(t, captured.dialer.SSL)
	assert.Contains(t, captured.message, "text/plain")
	assert.NotContains(t, captured.message, "X-Mailer")
	assert.Contains(t, captured.message, "X-Priority: 3 (Normal)")
}

func TestSMTPTransport_DialerPerSecurityMode(t *testing.T) {
	tests := []struct {
		name     string
		mode     endpoint.SecurityMode
		insecure bool
		wantSSL  bool
		wantTLS  bool
	}{
		{"none", endpoint.SecurityNone, false, false, false},
		{"none insecure", endpoint.SecurityNone, true, false, true},
		{"starttls", endpoint.SecurityStartTLS, false, false, true},
		{"ssl", endpoint.SecuritySSL, false, true, true},
		{"default", endpoint.SecurityDefault, false, false, true},
		{"ssl insecure", endpoint.SecuritySSL, true, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewSMTPTransport(SMTPOptions{InsecureSkipVerify: tt.insecure}, system.NewTestLogger())
			ep := testEndpoint()
			ep.Security = tt.mode

			d := tr.dialer(ep)
			assert.Equal(t, tt.wantSSL, d.SSL)
			if !tt.wantTLS {
				assert.Nil(t, d.TLSConfig)
				return
			}
			require.NotNil(t, d.TLSConfig)
			assert.Equal(t, ep.Host, d.TLSConfig.ServerName)
			assert.Equal(t, uint16(tls.VersionTLS12), d.TLSConfig.MinVersion)
			assert.Equal(t, tt.insecure, d.TLSConfig.InsecureSkipVerify)
		})
	}
}

func TestSMTPTransport_ErrorCarriesReplyCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"textproto error", &textproto.Error{Code: 550, Msg: "5.1.1 mailbox unavailable"}, 550},
		{"code in message", errors.New("gomail: could not send email 1: 554 5.7.1 relay denied"), 554},
		{"no code", errors.New("dial tcp 127.0.0.1:25: connect: connection refused"), -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, _ := newCapturingTransport(t, tt.err)
			err := tr.Deliver(context.Background(), testEndpoint(), validItem())
			var te *TransportError
			require.ErrorAs(t, err, &te)
			assert.Equal(t, tt.code, te.Code)
			assert.Equal(t, tt.err.Error(), te.Text)
		})
	}
}

func TestSMTPTransport_CancelledContext(t *testing.T) {
	tr, captured := newCapturingTransport(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := tr.Deliver(ctx, testEndpoint(), validItem())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, captured.dialer, "nothing may be dialled for a cancelled context")
}
