package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mail-dispatch/internal/models"
	"mail-dispatch/internal/repository"
)

func TestComputeStats(t *testing.T) {
	deliveries := newMemoryDeliveries()
	clientID := "client-1"
	other := "client-2"
	sentAt := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		r := &models.DeliveryRecord{
			ID:            fmt.Sprintf("d-%d", i),
			TrackingToken: fmt.Sprintf("t-%d", i),
			ClientID:      &clientID,
			SentAt:        sentAt,
			ReadStatus:    i < 4,
			ReplyStatus:   i < 2,
			BounceStatus:  models.BounceStatusNone,
		}
		if i == 9 {
			r.BounceStatus = models.BounceStatusHard
		}
		require.NoError(t, deliveries.Create(context.Background(), r))
	}
	require.NoError(t, deliveries.Create(context.Background(), &models.DeliveryRecord{
		ID: "x", TrackingToken: "t-x", ClientID: &other, SentAt: sentAt, ReadStatus: true,
	}))

	svc := NewStatsService(deliveries)
	stats, err := svc.ComputeStats(context.Background(), repository.StatsFilter{ClientID: &clientID})
	require.NoError(t, err)

	assert.EqualValues(t, 10, stats.TotalSent)
	assert.EqualValues(t, 4, stats.TotalOpened)
	assert.EqualValues(t, 2, stats.TotalReplied)
	assert.EqualValues(t, 1, stats.TotalBounced)
	assert.Equal(t, 40.0, stats.OpenRate)
	assert.Equal(t, 20.0, stats.ReplyRate)
}

func TestComputeStatsEmpty(t *testing.T) {
	svc := NewStatsService(newMemoryDeliveries())

	stats, err := svc.ComputeStats(context.Background(), repository.StatsFilter{})
	require.NoError(t, err)
	assert.Zero(t, stats.TotalSent)
	assert.Zero(t, stats.OpenRate)
	assert.Zero(t, stats.ReplyRate)
}

func TestComputeStatsStorageError(t *testing.T) {
	deliveries := newMemoryDeliveries()
	deliveries.countErr = errors.New("timeout")

	_, err := NewStatsService(deliveries).ComputeStats(context.Background(), repository.StatsFilter{})
	assert.ErrorContains(t, err, "timeout")
}

func TestPercentageRounding(t *testing.T) {
	assert.Equal(t, 33.33, percentage(1, 3))
	assert.Equal(t, 66.67, percentage(2, 3))
	assert.Equal(t, 100.0, percentage(5, 5))
	assert.Equal(t, 0.0, percentage(3, 0))
}
