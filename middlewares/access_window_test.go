package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func windowStatus(t *testing.T, start, end string, at time.Time) int {
	t.Helper()
	mw, err := accessWindow(start, end, func() time.Time { return at })
	require.NoError(t, err)
	r := gin.New()
	r.Use(mw)
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	return w.Code
}

func at(hour, minute int) time.Time {
	return time.Date(2024, 3, 1, hour, minute, 0, 0, time.Local)
}

func TestAccessWindow(t *testing.T) {
	require.Equal(t, http.StatusOK, windowStatus(t, "18:00", "21:00", at(18, 0)))
	require.Equal(t, http.StatusOK, windowStatus(t, "18:00", "21:00", at(21, 0)))
	require.Equal(t, http.StatusForbidden, windowStatus(t, "18:00", "21:00", at(17, 59)))
	require.Equal(t, http.StatusForbidden, windowStatus(t, "18:00", "21:00", at(21, 1)))
	require.Equal(t, http.StatusForbidden, windowStatus(t, "18:00", "21:00", at(21, 0).Add(30*time.Second)))
	require.Equal(t, http.StatusOK, windowStatus(t, "18:00", "21:00", at(20, 59).Add(59*time.Second)))

	// 跨午夜
	require.Equal(t, http.StatusOK, windowStatus(t, "22:00", "02:00", at(23, 30)))
	require.Equal(t, http.StatusOK, windowStatus(t, "22:00", "02:00", at(1, 15)))
	require.Equal(t, http.StatusForbidden, windowStatus(t, "22:00", "02:00", at(12, 0)))

	// 未配置时不限制
	require.Equal(t, http.StatusOK, windowStatus(t, "", "", at(4, 0)))
}

func TestAccessWindowRejectsBadClock(t *testing.T) {
	_, err := AccessWindow("6pm", "21:00")
	require.Error(t, err)
	_, err = AccessWindow("18:00", "25:00")
	require.Error(t, err)
}
