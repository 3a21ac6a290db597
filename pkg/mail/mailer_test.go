package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/smtp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	from    string
	rcpts   []string
	body    strings.Builder
	authed  bool
	failOn  string
	dataErr error
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func (f *fakeClient) Mail(from string) error {
	if f.failOn == "mail" {
		return errors.New("mail rejected")
	}
	f.from = from
	return nil
}

func (f *fakeClient) Rcpt(rcpt string) error {
	if f.failOn == "rcpt" {
		return errors.New("rcpt rejected")
	}
	f.rcpts = append(f.rcpts, rcpt)
	return nil
}

func (f *fakeClient) Data() (io.WriteCloser, error) {
	if f.dataErr != nil {
		return nil, f.dataErr
	}
	return nopWriteCloser{&f.body}, nil
}

func (f *fakeClient) Close() error                     { return nil }
func (f *fakeClient) StartTLS(*tls.Config) error       { return nil }
func (f *fakeClient) Auth(smtp.Auth) error             { f.authed = true; return nil }
func (f *fakeClient) Extension(string) (bool, string)  { return false, "" }

func newTestMailer(t *testing.T, cfg SMTPSettings, client *fakeClient) Mailer {
	t.Helper()
	m, err := NewSMTPMailer(cfg)
	require.NoError(t, err)

	sm := m.(*smtpMailer)
	sm.dial = func(context.Context, SMTPSettings) (net.Conn, smtpClient, error) {
		server, conn := net.Pipe()
		t.Cleanup(func() { _ = server.Close() })
		return conn, client, nil
	}
	return sm
}

func TestSendDisabled(t *testing.T) {
	m, err := NewSMTPMailer(SMTPSettings{Enabled: false})
	require.NoError(t, err)

	err = m.Send(context.Background(), Message{To: []string{"a@example.com"}})
	require.ErrorIs(t, err, ErrSMTPDisabled)
}

func TestSendWritesMessage(t *testing.T) {
	client := &fakeClient{}
	m := newTestMailer(t, SMTPSettings{
		Enabled: true,
		Host:    "mail.example.com",
		Port:    587,
		From:    "noreply@example.com",
	}, client)

	err := m.Send(context.Background(), Message{
		To:      []string{"user@example.com", "user@example.com"},
		Subject: "Confirm your account",
		Body:    "hello",
	})
	require.NoError(t, err)

	require.Equal(t, "noreply@example.com", client.from)
	require.Equal(t, []string{"user@example.com"}, client.rcpts, "duplicate recipients must collapse")
	require.Contains(t, client.body.String(), "Subject: Confirm your account")
	require.Contains(t, client.body.String(), "hello")
	require.False(t, client.authed, "no credentials configured, no auth expected")
}

func TestSendAuthenticatesWhenConfigured(t *testing.T) {
	client := &fakeClient{}
	m := newTestMailer(t, SMTPSettings{
		Enabled:  true,
		Host:     "mail.example.com",
		Port:     587,
		From:     "noreply@example.com",
		Username: "relay",
		Password: "secret",
	}, client)

	require.NoError(t, m.Send(context.Background(), Message{To: []string{"user@example.com"}}))
	require.True(t, client.authed)
}

func TestSendRejectsInvalidAddresses(t *testing.T) {
	client := &fakeClient{}
	m := newTestMailer(t, SMTPSettings{
		Enabled: true,
		Host:    "mail.example.com",
		Port:    587,
		From:    "noreply@example.com",
	}, client)

	err := m.Send(context.Background(), Message{To: []string{"not an address"}})
	require.Error(t, err)
}

func TestNewSMTPMailerValidatesConfig(t *testing.T) {
	_, err := NewSMTPMailer(SMTPSettings{Enabled: true})
	require.Error(t, err)
}

func TestEscapeHeaderStripsNewlines(t *testing.T) {
	require.Equal(t, "a b c", escapeHeader("a\rb\nc"))
}

func TestRecorderCaptures(t *testing.T) {
	r := NewRecorder()

	_, ok := r.Last()
	require.False(t, ok)

	require.NoError(t, r.Send(context.Background(), Message{Subject: "one"}))
	require.NoError(t, r.Send(context.Background(), Message{Subject: "two"}))

	last, ok := r.Last()
	require.True(t, ok)
	require.Equal(t, "two", last.Subject)
	require.Len(t, r.Messages(), 2)

	r.Reset()
	require.Empty(t, r.Messages())
}
