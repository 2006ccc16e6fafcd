package smtp

import (
	"io"
	"log/slog"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/motivation-hub/internal/config"
)

func TestTransport_Sender(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	assert.Equal(t, "noreply@example.com",
		NewTransport(config.SMTP{From: "noreply@example.com", User: "mailer"}, log).Sender())
	assert.Equal(t, "mailer", NewTransport(config.SMTP{User: "mailer"}, log).Sender())
}

func TestTransport_ConnectRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	_, err = NewTransport(config.SMTP{Host: "127.0.0.1", Port: port}, log).Connect()
	assert.ErrorContains(t, err, "smtp.Connect")
}
