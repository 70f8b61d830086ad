package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"mail-dispatch/internal/config"
	"mail-dispatch/internal/models"
)

const welcomeTemplateID = "3b241101-e2bb-4255-8caf-4136c566a962"

var fixedNow = time.Date(2026, 4, 2, 10, 30, 0, 0, time.UTC)

func newTestDispatch(t *testing.T) (*DispatchService, *mockTransport, *memoryDeliveries, *memoryTemplates) {
	t.Helper()
	cfg := &config.Config{
		SenderEmail:     "hello@agency.example",
		SenderName:      "Agency",
		TrackingBaseURL: testBaseURL,
		SMTPTimeout:     5 * time.Second,
	}
	text := "Hi {{name}}"
	templates := newMemoryTemplates(&models.EmailTemplate{
		ID:           welcomeTemplateID,
		Name:         "welcome",
		TemplateType: models.EmailTypeOutreach,
		Subject:      "Welcome {{name}}",
		HTMLBody:     "<html><body><p>Hi {{name}}</p><a href=\"https://agency.example/start\">Start</a></body></html>",
		TextBody:     &text,
		IsActive:     true,
	})
	deliveries := newMemoryDeliveries()
	transport := new(mockTransport)

	svc := NewDispatchService(cfg, transport, deliveries, templates)
	svc.now = func() time.Time { return fixedNow }
	return svc, transport, deliveries, templates
}

func TestSendWithTemplateEndToEnd(t *testing.T) {
	svc, transport, deliveries, templates := newTestDispatch(t)

	var sent *models.Envelope
	transport.On("Send", mock.Anything, mock.AnythingOfType("*models.Envelope")).
		Run(func(args mock.Arguments) { sent = args.Get(1).(*models.Envelope) }).
		Return("<msg-1@agency.example>", nil)

	res, err := svc.SendWithTemplate(context.Background(), SendTemplateInput{
		TemplateID: welcomeTemplateID,
		To:         models.AddressList{"ada@example.com"},
		Variables:  map[string]any{"name": "Ada"},
		CreatedBy:  "operator-1",
	})
	require.NoError(t, err)
	assert.Regexp(t, tokenPattern, res.TrackingToken)
	assert.Equal(t, "<msg-1@agency.example>", res.ProviderMessageID)

	require.NotNil(t, sent)
	assert.Equal(t, "Welcome Ada", sent.Subject)
	assert.Equal(t, "Hi Ada", sent.Text)
	assert.Contains(t, sent.HTML, "Hi Ada")
	assert.Equal(t, 1, strings.Count(sent.HTML, "/track/"+res.TrackingToken))
	assert.Contains(t, sent.HTML, "/click/"+res.TrackingToken+"?url=")
	assert.Equal(t, res.TrackingToken, sent.TrackingToken)

	record := deliveries.only()
	require.NotNil(t, record)
	assert.Equal(t, res.DeliveryID, record.ID)
	assert.Equal(t, sent.HTML, record.HTMLBody)
	assert.Equal(t, models.EmailTypeOutreach, record.EmailType)
	require.NotNil(t, record.TemplateID)
	assert.Equal(t, welcomeTemplateID, *record.TemplateID)
	assert.Equal(t, fixedNow, record.SentAt)
	assert.Equal(t, "operator-1", record.CreatedBy)
	assert.Equal(t, 0, record.OpenCount)
	assert.False(t, record.ReadStatus)

	assert.Equal(t, 1, templates.usage(welcomeTemplateID))
}

func TestSendWithTemplateTransportFailureKeepsUsage(t *testing.T) {
	svc, transport, deliveries, templates := newTestDispatch(t)

	transport.On("Send", mock.Anything, mock.Anything).Return("", errors.New("535 authentication failed"))

	_, err := svc.SendWithTemplate(context.Background(), SendTemplateInput{
		TemplateID: welcomeTemplateID,
		To:         models.AddressList{"ada@example.com"},
		Variables:  map[string]any{"name": "Ada"},
		CreatedBy:  "operator-1",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "535")

	assert.Equal(t, 0, deliveries.count())
	assert.Equal(t, 1, templates.usage(welcomeTemplateID))
}

func TestSendWithTemplateNotFound(t *testing.T) {
	svc, transport, _, _ := newTestDispatch(t)

	for _, id := range []string{"missing", "", "00000000-0000-0000-0000-000000000000"} {
		_, err := svc.SendWithTemplate(context.Background(), SendTemplateInput{
			TemplateID: id,
			To:         models.AddressList{"ada@example.com"},
			CreatedBy:  "operator-1",
		})
		assert.ErrorIs(t, err, ErrTemplateNotFound, id)
	}
	transport.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestSendRawValidation(t *testing.T) {
	svc, transport, _, _ := newTestDispatch(t)

	tests := []struct {
		name string
		in   SendRawInput
	}{
		{name: "no recipients", in: SendRawInput{Subject: "s", HTML: "h", CreatedBy: "op"}},
		{name: "no creator", in: SendRawInput{To: models.AddressList{"a@example.com"}, Subject: "s"}},
		{name: "unknown type", in: SendRawInput{
			To: models.AddressList{"a@example.com"}, CreatedBy: "op",
			Options: models.SendOptions{EmailType: "newsletter"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SendRaw(context.Background(), tt.in)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
	transport.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestSendRawDefaultsAndTrackingToggle(t *testing.T) {
	svc, transport, deliveries, _ := newTestDispatch(t)

	transport.On("Send", mock.Anything, mock.Anything).Return("id-1", nil)

	html := `<body><a href="https://example.com">x</a></body>`
	clientID := "client-7"
	res, err := svc.SendRaw(context.Background(), SendRawInput{
		To:        models.AddressList{"a@example.com", "a@example.com"},
		Subject:   "Plain",
		HTML:      html,
		CreatedBy: "op",
		Options: models.SendOptions{
			CC:              models.AddressList{"cc@example.com"},
			ClientID:        &clientID,
			DisableTracking: true,
		},
	})
	require.NoError(t, err)

	record := deliveries.only()
	assert.Equal(t, html, record.HTMLBody)
	assert.Equal(t, models.EmailTypeOther, record.EmailType)
	assert.Nil(t, record.TemplateID)
	assert.Equal(t, []string{"a@example.com", "a@example.com"}, []string(record.ToAddresses))
	assert.Equal(t, []string{"cc@example.com"}, []string(record.CCAddresses))
	assert.Equal(t, "client-7", *record.ClientID)
	assert.Equal(t, res.TrackingToken, record.TrackingToken)
}

func TestSendRawPersistFailureNamesMessageID(t *testing.T) {
	svc, transport, deliveries, _ := newTestDispatch(t)
	deliveries.createErr = errors.New("connection refused")

	transport.On("Send", mock.Anything, mock.Anything).Return("<sent-42@agency.example>", nil)

	_, err := svc.SendRaw(context.Background(), SendRawInput{
		To:        models.AddressList{"a@example.com"},
		Subject:   "s",
		HTML:      "<p>h</p>",
		CreatedBy: "op",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "<sent-42@agency.example>")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestSendRawTokenFailureAbortsBeforeTransport(t *testing.T) {
	svc, transport, deliveries, _ := newTestDispatch(t)

	orig := tokenSource
	tokenSource = failingReader{}
	t.Cleanup(func() { tokenSource = orig })

	_, err := svc.SendRaw(context.Background(), SendRawInput{
		To:        models.AddressList{"a@example.com"},
		Subject:   "s",
		CreatedBy: "op",
	})
	assert.ErrorIs(t, err, ErrTokenGeneration)
	transport.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	assert.Equal(t, 0, deliveries.count())
}
