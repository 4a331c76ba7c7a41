package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, env := range envBindings {
		t.Setenv(env, "")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
mongodb:
  uri: mongodb://localhost:27017
auth:
  jwt_secret: devsecret
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 4500, cfg.Gateway.Port)
	assert.Equal(t, "localdelivery", cfg.MongoDB.Database)
	assert.Equal(t, "orders", cfg.MongoDB.Collections.Orders)
	assert.Equal(t, "serviceareas", cfg.MongoDB.Collections.ServiceAreas)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 10*time.Second, cfg.MongoDB.ConnectTimeout)
	assert.False(t, cfg.MySQL.Enabled())
	assert.False(t, cfg.Kafka.Enabled())
	assert.False(t, cfg.Etcd.Enabled())
}

func TestLoadReadsFileValues(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
gateway:
  port: 8080
  allowed_origins: ["http://localhost:3000"]
etcd:
  endpoints: ["localhost:2379"]
  dial_timeout: 2s
mongodb:
  uri: mongodb://db:27017
  database: shop
auth:
  jwt_secret: s3cret
  token_ttl: 24h
mysql:
  host: ledger-db
  port: 3306
  username: app
  password: pw
  database: ledger
kafka:
  brokers: ["kafka:9092"]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Gateway.Port)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Gateway.AllowedOrigins)
	assert.Equal(t, 2*time.Second, cfg.Etcd.DialTimeout)
	assert.Equal(t, "shop", cfg.MongoDB.Database)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.True(t, cfg.MySQL.Enabled())
	assert.Equal(t, "app:pw@tcp(ledger-db:3306)/ledger?charset=utf8mb4&parseTime=True&loc=Local", cfg.MySQL.DSN())
	assert.True(t, cfg.Kafka.Enabled())
	assert.Equal(t, "order.events", cfg.Kafka.Topic)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
mongodb:
  uri: mongodb://from-file:27017
auth:
  jwt_secret: from-file
`)
	clearEnv(t)
	t.Setenv("MONGODB_URL", "mongodb://from-env:27017")
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("PORT", "9000")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "mongodb://from-env:27017", cfg.MongoDB.URI)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, 9000, cfg.Gateway.Port)
}

func TestLoadRequiresSecrets(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "gateway:\n  port: 4500\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mongodb.uri")
	assert.Contains(t, err.Error(), "auth.jwt_secret")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
