package utils

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestRetry(t *testing.T) {
	calls := 0
	var notified []error
	err := Retry(context.Background(), 3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	}, func(err error, _ time.Duration) { notified = append(notified, err) })
	require.NoError(t, err)
	require.Equal(t, 3, calls)
	require.Len(t, notified, 2)

	calls = 0
	err = Retry(context.Background(), 2, time.Millisecond, func() error {
		calls++
		return errors.New("down")
	}, nil)
	require.EqualError(t, err, "down")
	require.Equal(t, 2, calls)
}

func TestRetryStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := Retry(ctx, 5, time.Hour, func() error {
		calls++
		return errors.New("down")
	}, nil)
	require.Error(t, err)
	require.Equal(t, 1, calls)
}

func TestPagination(t *testing.T) {
	p := NewPagination(2, 20, 41)
	require.EqualValues(t, 3, p.TotalPages)
	require.EqualValues(t, 0, NewPagination(1, 20, 0).TotalPages)
}

func TestResponses(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	RespondSuccess(c, []int{1, 2}, NewPagination(1, 2, 5))
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "success", body["message"])
	require.EqualValues(t, 200, body["code"])
	require.Contains(t, body, "pagination")

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	RespondError(c, http.StatusForbidden, "nope")
	require.Equal(t, http.StatusForbidden, w.Code)
	require.JSONEq(t, `{"error":"nope"}`, w.Body.String())
	require.True(t, c.IsAborted())
}
