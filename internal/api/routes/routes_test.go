package routes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrackingPath(t *testing.T) {
	assert.Equal(t, "/api/email", TrackingPath("https://mail.example.com/api/email"))
	assert.Equal(t, "/t", TrackingPath("http://localhost:8080/t"))
	assert.Equal(t, "/", TrackingPath("https://mail.example.com"))
}
