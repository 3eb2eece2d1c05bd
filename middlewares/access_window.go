package middlewares

import (
	"fmt"
	"net/http"
	"time"

	"messaging-app/utils"

	"github.com/gin-gonic/gin"
)

func parseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q, want HH:MM", s)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// AccessWindow 只允许在 [start, end] 本地时间内访问，start 晚于 end 时跨越午夜
func AccessWindow(start, end string) (gin.HandlerFunc, error) {
	return accessWindow(start, end, time.Now)
}

func accessWindow(start, end string, now func() time.Time) (gin.HandlerFunc, error) {
	if start == "" && end == "" {
		return func(c *gin.Context) { c.Next() }, nil
	}
	from, err := parseClock(start)
	if err != nil {
		return nil, err
	}
	to, err := parseClock(end)
	if err != nil {
		return nil, err
	}
	msg := fmt.Sprintf("Access to messaging is only allowed between %s and %s.", start, end)

	return func(c *gin.Context) {
		t := now()
		// 按完整时刻比较，end 为 21:00 时 21:00:30 已在窗口外
		clock := time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute +
			time.Duration(t.Second())*time.Second + time.Duration(t.Nanosecond())
		var inside bool
		if from <= to {
			inside = clock >= from && clock <= to
		} else {
			inside = clock >= from || clock <= to
		}
		if !inside {
			utils.RespondError(c, http.StatusForbidden, msg)
			return
		}
		c.Next()
	}, nil
}
