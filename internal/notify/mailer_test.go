package notify

import (
	"context"
	"log/slog"
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/require"

	_ "github.com/meridian-bank/meridian/testing"
)

func TestSendOTPComposesMessage(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte

	m := NewMailer(SMTPConfig{
		Host: "smtp.example.com",
		Port: 587,
		From: "no-reply@meridian.example",
	}, slog.New(slog.DiscardHandler))
	m.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	require.NoError(t, m.SendOTP(context.Background(), "admin@meridian.example", "482913"))
	require.Equal(t, "smtp.example.com:587", gotAddr)
	require.Equal(t, "no-reply@meridian.example", gotFrom)
	require.Equal(t, []string{"admin@meridian.example"}, gotTo)
	require.Contains(t, string(gotMsg), "482913")
	require.Contains(t, string(gotMsg), "Subject: Meridian admin login code")
}

func TestSendHonoursCancelledContext(t *testing.T) {
	m := NewMailer(SMTPConfig{Host: "smtp.example.com", Port: 25}, slog.New(slog.DiscardHandler))
	m.send = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("send should not be reached")
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, m.Send(ctx, "x@example.com", "s", "b"))
}
