package worker

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"mail-dispatch/internal/config"
	"mail-dispatch/internal/models"
	"mail-dispatch/internal/services"
)

type mockRunner struct{ mock.Mock }

func (m *mockRunner) Send(ctx context.Context, req services.BulkRequest) *services.BulkResult {
	return m.Called(ctx, req).Get(0).(*services.BulkResult)
}

type recordingStatuses struct {
	history []models.BatchStatusCache
}

func (r *recordingStatuses) SetBatchStatus(_ context.Context, status *models.BatchStatusCache) error {
	r.history = append(r.history, *status)
	return nil
}

type mockFailed struct{ mock.Mock }

func (m *mockFailed) PublishFailed(ctx context.Context, job *models.BatchJob) error {
	return m.Called(ctx, job).Error(0)
}

func newTestConsumer() (*Consumer, *mockRunner, *recordingStatuses, *mockFailed) {
	runner := new(mockRunner)
	statuses := &recordingStatuses{}
	failed := new(mockFailed)
	return NewConsumer(&config.Config{}, runner, statuses, failed), runner, statuses, failed
}

func jobBody(t *testing.T, job models.BatchJob) []byte {
	t.Helper()
	body, err := json.Marshal(job)
	require.NoError(t, err)
	return body
}

func TestHandleBodyCompletesBatch(t *testing.T) {
	consumer, runner, statuses, failed := newTestConsumer()
	job := models.BatchJob{
		BatchID:    "b-1",
		TemplateID: "tmpl-1",
		Recipients: []models.BatchRecipient{{Email: "a@example.com"}, {Email: "b@example.com"}},
		CreatedBy:  "client_1",
	}

	runner.On("Send", mock.Anything, mock.MatchedBy(func(req services.BulkRequest) bool {
		return req.TemplateID == "tmpl-1" && len(req.Recipients) == 2 && req.CreatedBy == "client_1"
	})).Return(&services.BulkResult{
		Sent:   []models.BulkSuccess{{Recipient: "a@example.com", DeliveryID: "d-1"}},
		Failed: []models.BulkFailure{{Recipient: "b@example.com", Error: "boom"}},
	})

	require.NoError(t, consumer.handleBody(context.Background(), jobBody(t, job)))

	require.Len(t, statuses.history, 2)
	assert.Equal(t, models.BatchStatusProcessing, statuses.history[0].Status)
	final := statuses.history[1]
	assert.Equal(t, models.BatchStatusCompleted, final.Status)
	assert.Equal(t, 2, final.Total)
	assert.Len(t, final.Succeeded, 1)
	assert.Len(t, final.Failed, 1)
	failed.AssertNotCalled(t, "PublishFailed", mock.Anything, mock.Anything)
	assert.EqualValues(t, 0, consumer.activeJobs.Load())
}

func TestHandleBodyAllFailedGoesToFailedQueue(t *testing.T) {
	consumer, runner, statuses, failed := newTestConsumer()
	job := models.BatchJob{BatchID: "b-2", HTML: "<p>x</p>", Recipients: []models.BatchRecipient{{Email: "a@example.com"}}}

	runner.On("Send", mock.Anything, mock.Anything).Return(&services.BulkResult{
		Failed: []models.BulkFailure{{Recipient: "a@example.com", Error: "smtp down"}},
	})
	failed.On("PublishFailed", mock.Anything, mock.MatchedBy(func(j *models.BatchJob) bool {
		return j.BatchID == "b-2"
	})).Return(nil)

	require.NoError(t, consumer.handleBody(context.Background(), jobBody(t, job)))

	final := statuses.history[len(statuses.history)-1]
	assert.Equal(t, models.BatchStatusFailed, final.Status)
	assert.Equal(t, "all recipients failed", final.ErrorMessage)
	failed.AssertExpectations(t)
}

func TestHandleBodyRejectsMalformed(t *testing.T) {
	consumer, runner, statuses, _ := newTestConsumer()

	err := consumer.handleBody(context.Background(), []byte("{not json"))
	assert.ErrorIs(t, err, errMalformedJob)

	err = consumer.handleBody(context.Background(), jobBody(t, models.BatchJob{BatchID: "b-3"}))
	assert.ErrorIs(t, err, errMalformedJob)

	runner.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	assert.Empty(t, statuses.history)
}
