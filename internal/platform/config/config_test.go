package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("INVESTOR_ID", "inv-1")
	t.Setenv("BTC_WALLET_ADDRESS", "bc1qtest")
	t.Setenv("ETH_WALLET_ADDRESS", "0xtest")
	t.Setenv("SOL_WALLET_ADDRESS", "SoLTest")
	t.Setenv("ION_SOLUTION_ENDPOINT", "https://ion.example/operations")
	t.Setenv("CUSTODIAL_API_BASE_URL", "https://custodial.example")
	t.Setenv("CUSTODIAL_API_KEY", "key-1")
	t.Setenv("CUSTODIAL_VAULT_ACCOUNT_ID", "vault-7")
}

func TestFromEnvDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg := FromEnv()
	require.Equal(t, ":8080", cfg.Addr)
	require.Equal(t, "info", cfg.LogLevel)
	require.False(t, cfg.RunOnStart)
	require.Equal(t, "BTC", cfg.Custodial.AssetID)
	require.Equal(t, "checkpoints", cfg.Checkpoints.Dir)
	require.Equal(t, 30*time.Second, cfg.Poll.Interval)
	require.Equal(t, 10*time.Minute, cfg.Poll.MaxWait)
	require.NoError(t, cfg.Validate())
}

func TestFromEnvOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ANCHORID_ADDR", ":9090")
	t.Setenv("ANCHORID_RUN_ON_START", "true")
	t.Setenv("POLL_INTERVAL", "5s")
	t.Setenv("POLL_MAX_WAIT", "1m")
	t.Setenv("KAFKA_BROKERS", "broker-1:9092, broker-2:9092,")
	t.Setenv("REDIS_POOL_SIZE", "25")

	cfg := FromEnv()
	require.Equal(t, ":9090", cfg.Addr)
	require.True(t, cfg.RunOnStart)
	require.Equal(t, 5*time.Second, cfg.Poll.Interval)
	require.Equal(t, time.Minute, cfg.Poll.MaxWait)
	require.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.Kafka.Brokers)
	require.Equal(t, 25, cfg.Redis.PoolSize)
}

func TestFromEnvIgnoresUnparseableValues(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("POLL_INTERVAL", "soon")
	t.Setenv("REDIS_POOL_SIZE", "many")

	cfg := FromEnv()
	require.Equal(t, 30*time.Second, cfg.Poll.Interval)
	require.Equal(t, 10, cfg.Redis.PoolSize)
}

func TestValidateNamesEveryMissingValue(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("INVESTOR_ID", "")
	t.Setenv("SOL_WALLET_ADDRESS", "  ")
	t.Setenv("CUSTODIAL_API_KEY", "")

	err := FromEnv().Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "INVESTOR_ID")
	require.Contains(t, err.Error(), "SOL_WALLET_ADDRESS")
	require.Contains(t, err.Error(), "CUSTODIAL_API_KEY")
	require.NotContains(t, err.Error(), "BTC_WALLET_ADDRESS")
}
