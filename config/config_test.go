package config

import (
	"testing"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/stretchr/testify/require"
)

func TestFromEnvironDefaults(t *testing.T) {
	cfg, err := FromEnviron(env.EnvSet{})
	require.NoError(t, err)
	require.Equal(t, ":8082", cfg.Addr())
	require.Equal(t, "sqlite", cfg.DBDriver)
	require.Equal(t, 60*time.Minute, cfg.AccessTokenTTL)
	require.Equal(t, 5, cfg.SendRateLimit)
	require.Equal(t, time.Minute, cfg.SendRateWindow)
	require.Equal(t, 30, cfg.NotificationRetentionDays)
	require.Equal(t, []string{"*"}, cfg.AllowedOrigins())
}

func TestFromEnvironOverrides(t *testing.T) {
	cfg, err := FromEnviron(env.EnvSet{
		"PORT":                "127.0.0.1:9000",
		"ACCESS_TOKEN_TTL":    "15m",
		"SEND_RATE_LIMIT":     "10",
		"ACCESS_WINDOW_START": "18:00",
		"ACCESS_WINDOW_END":   "21:00",
		"CORS_ORIGINS":        "https://a.example.com, https://b.example.com,",
	})
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9000", cfg.Addr())
	require.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	require.Equal(t, 10, cfg.SendRateLimit)
	require.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.AllowedOrigins())
}

func TestFromEnvironValidation(t *testing.T) {
	cases := map[string]env.EnvSet{
		"driver":       {"DB_DRIVER": "postgres"},
		"port":         {"PORT": "80 80"},
		"ttl":          {"ACCESS_TOKEN_TTL": "0s"},
		"half window":  {"ACCESS_WINDOW_START": "18:00"},
		"negative cap": {"SEND_RATE_LIMIT": "-1"},
		"bad duration": {"SEND_RATE_WINDOW": "soon"},
	}
	for name, vars := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FromEnviron(vars)
			require.Error(t, err)
		})
	}
}

func TestSQLiteDSN(t *testing.T) {
	require.Equal(t, "file::memory:?cache=shared&_foreign_keys=on", sqliteDSN(":memory:"))
	require.Equal(t, "chat.db?_foreign_keys=on", sqliteDSN("chat.db"))
	require.Equal(t, "file:x?mode=memory&_foreign_keys=on", sqliteDSN("file:x?mode=memory"))
	require.Equal(t, "chat.db?_foreign_keys=off", sqliteDSN("chat.db?_foreign_keys=off"))
}

func TestOpenDBRejectsUnknownDriver(t *testing.T) {
	_, err := OpenDB("oracle", "", NewLogger("error"), false)
	require.Error(t, err)
}
