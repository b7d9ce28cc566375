package config

import (
	"testing"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatabase_DSN(t *testing.T) {
	env := func(vars map[string]string) func(string) string {
		return func(key string) string { return vars[key] }
	}

	t.Run("explicit url wins", func(t *testing.T) {
		d := Database{URL: "postgres://explicit"}
		assert.Equal(t, "postgres://explicit", d.dsn(env(map[string]string{"POSTGRES_URL": "postgres://other"})))
	})

	t.Run("resolution order", func(t *testing.T) {
		d := Database{}
		got := d.dsn(env(map[string]string{
			"DATABASE_URL":              "postgres://database-url",
			"POSTGRES_URL":              "postgres://postgres-url",
			"POSTGRES_URL_POSTGRES_URL": "postgres://supabase-prefixed",
		}))
		assert.Equal(t, "postgres://supabase-prefixed", got)

		got = d.dsn(env(map[string]string{
			"DATABASE_URL": "postgres://database-url",
			"POSTGRES_URL": "postgres://postgres-url",
		}))
		assert.Equal(t, "postgres://postgres-url", got)
	})

	t.Run("built from host fields", func(t *testing.T) {
		d := Database{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "n", SSLMode: "disable", Timezone: "UTC"}
		assert.Equal(t, "host=db user=u password=p dbname=n port=5432 sslmode=disable TimeZone=UTC", d.dsn(env(nil)))
	})

	t.Run("nothing configured", func(t *testing.T) {
		d := Database{}
		assert.Empty(t, d.dsn(env(nil)))
	})
}

func TestTelegram_Enabled(t *testing.T) {
	assert.False(t, (&Telegram{}).Enabled())
	assert.False(t, (&Telegram{BotToken: "1:abc"}).Enabled())
	assert.True(t, (&Telegram{BotToken: "1:abc", ChatID: "42"}).Enabled())
}

func TestRateLimit_Normalize(t *testing.T) {
	for _, w := range []time.Duration{0, -time.Second} {
		r := RateLimit{Requests: 10, Window: w}
		assert.True(t, r.normalize())
		assert.Equal(t, DefaultRateLimitWindow, r.Window)
	}

	r := RateLimit{Requests: 10, Window: 30 * time.Second}
	assert.False(t, r.normalize())
	assert.Equal(t, 30*time.Second, r.Window)
}

func TestRateLimit_TrustedProxiesFromEnv(t *testing.T) {
	t.Setenv("RATE_LIMIT_TRUSTED_PROXIES", "127.0.0.1,10.0.0.0/8")
	var cfg Config
	require.NoError(t, cleanenv.ReadEnv(&cfg))
	assert.Equal(t, []string{"127.0.0.1", "10.0.0.0/8"}, cfg.RateLimit.TrustedProxies)
}
