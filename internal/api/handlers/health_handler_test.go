package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"mail-dispatch/internal/config"
)

type stubPinger bool

func (p stubPinger) Ping(context.Context) bool { return bool(p) }

func healthStatus(storeErr error, cacheOK bool) int {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h := NewHealthHandler(&config.Config{StoreDriver: "postgres"}, func(context.Context) error { return storeErr }, stubPinger(cacheOK))
	router.GET("/health", h.Health)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	return w.Code
}

func TestHealth(t *testing.T) {
	assert.Equal(t, http.StatusOK, healthStatus(nil, true))
	assert.Equal(t, http.StatusServiceUnavailable, healthStatus(errors.New("down"), true))
	assert.Equal(t, http.StatusServiceUnavailable, healthStatus(nil, false))
}
