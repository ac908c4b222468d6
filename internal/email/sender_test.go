package email

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thriftly_backend/config"
)

func TestBuildMessage(t *testing.T) {
	date := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	raw := string(BuildMessage("ThriftLy <noreply@thriftly.local>", "alice@example.com", "Verify Account", "Your OTP: 1234\nThanks", date))

	assert.Contains(t, raw, "To: alice@example.com\r\n")
	assert.Contains(t, raw, "From: ThriftLy <noreply@thriftly.local>\r\n")
	assert.Contains(t, raw, "Subject: Verify Account\r\n")
	assert.Contains(t, raw, "Date: Fri, 02 Jan 2026 03:04:05 +0000\r\n")
	assert.True(t, strings.HasSuffix(raw, "\r\n\r\nYour OTP: 1234\r\nThanks\r\n"))
}

func TestBuildMessage_EncodesNonASCIISubject(t *testing.T) {
	raw := string(BuildMessage("a@b.c", "d@e.f", "🎉 Item Sold!", "x", time.Now()))
	assert.Contains(t, raw, "Subject: =?utf-8?q?")
	assert.NotContains(t, raw, "🎉")
}

func TestEnvelopeAddress(t *testing.T) {
	assert.Equal(t, "noreply@thriftly.local", envelopeAddress("ThriftLy <noreply@thriftly.local>"))
	assert.Equal(t, "plain@example.com", envelopeAddress(" plain@example.com "))
}

func TestNewSender(t *testing.T) {
	s := NewSender(&config.Config{})
	_, ok := s.(*LoggingSender)
	assert.True(t, ok)
	require.NoError(t, s.Send(context.Background(), []string{"a@b.c"}, "hi", []byte("body")))

	s = NewSender(&config.Config{SMTPHost: "smtp.example.com", SMTPPort: 587, SMTPFrom: "ThriftLy <noreply@thriftly.local>"})
	smtpSender, ok := s.(*SMTPSender)
	require.True(t, ok)
	assert.Equal(t, "smtp.example.com:587", smtpSender.addr)
	assert.Equal(t, "noreply@thriftly.local", smtpSender.from)
}
