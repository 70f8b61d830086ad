package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"mail-dispatch/internal/config"
	"mail-dispatch/internal/models"
)

func TestMailRouterSelectsProvider(t *testing.T) {
	smtpTr := new(mockTransport)
	sgTr := new(mockTransport)
	env := &models.Envelope{ToAddresses: []string{"a@example.com"}}

	sgTr.On("Send", mock.Anything, env).Return("sg-1", nil)
	router := NewMailRouter(&config.Config{MailProvider: config.MailProviderSendGrid}, smtpTr, sgTr)
	id, err := router.Send(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, "sg-1", id)
	smtpTr.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)

	smtpTr.On("Send", mock.Anything, env).Return("<smtp-1@x>", nil)
	router = NewMailRouter(&config.Config{MailProvider: config.MailProviderSMTP}, smtpTr, sgTr)
	id, err = router.Send(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, "<smtp-1@x>", id)
}

func TestMailRouterValidateConfiguration(t *testing.T) {
	router := NewMailRouter(&config.Config{MailProvider: config.MailProviderSendGrid}, new(mockTransport), nil)
	assert.Error(t, router.ValidateConfiguration())

	_, err := router.Send(context.Background(), &models.Envelope{})
	assert.Error(t, err)

	router = NewMailRouter(&config.Config{MailProvider: config.MailProviderSMTP}, new(mockTransport), nil)
	assert.NoError(t, router.ValidateConfiguration())
}
