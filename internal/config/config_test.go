package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rocket-mimo/internal/domain"
)

const (
	owner     = "0xde00000000000000000000000000000000000001"
	collector = "0xc011ec7000000000000000000000000000000002"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ROCKET_USE_MEMORY", "true")
	t.Setenv("ROCKET_FACTORY_OWNER", owner)
	t.Setenv("ROCKET_FACTORY_PENALTY_COLLECTOR", collector)

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.True(t, cfg.UseMemory)
	assert.Equal(t, domain.DefaultSchedule(), cfg.DomainSchedule())
	assert.Equal(t, "@every 30s", cfg.PhaseCheckSpec)
	assert.True(t, cfg.AutoFinalize)
	assert.Equal(t, 1024, cfg.Dispatcher.Buffer)

	n, err := cfg.Network()
	require.NoError(t, err)
	assert.Equal(t, "iotex_test", n.Name)
	assert.Equal(t, "https://babel-api.testnet.iotex.io", n.RPCEndpoint)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rocketd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
postgres_dsn: postgres://rocket@localhost/rocket
clickhouse_dsn: clickhouse://default@localhost:9000/rocket
chain_id: 31337
rpc_endpoint: http://localhost:8545
factory:
  owner: `+owner+`
  penalty_collector: `+collector+`
schedule:
  no_fee_duration: 10m
  phase_one_duration: 20m
  phase_two_duration: 10m
networks:
  - chain_id: 31337
    name: hardhat
    weth: 0x5FbDB2315678afecb367f032d93F642f64180aa3
`), 0o600))

	t.Setenv("ROCKET_HTTP_ADDR", ":9999")

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.HTTPAddr)
	assert.Equal(t, 10*time.Minute, cfg.Schedule.NoFeeDuration)
	assert.Equal(t, 20*time.Minute, cfg.Schedule.PhaseOneDuration)

	n, err := cfg.Network()
	require.NoError(t, err)
	assert.Equal(t, "hardhat", n.Name)
	assert.Equal(t, "http://localhost:8545", n.RPCEndpoint)
	assert.Equal(t, Addr("0x5FbDB2315678afecb367f032d93F642f64180aa3"), n.WETH)

	// built-ins stay available
	table, err := cfg.NetworkTable()
	require.NoError(t, err)
	assert.Len(t, table, 3)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			UseMemory:   true,
			ChainID:     4,
			Composition: "ADDITIVE",
			Schedule: Schedule{
				NoFeeDuration:    time.Hour,
				PhaseOneDuration: 2 * time.Hour,
				PhaseTwoDuration: time.Hour,
			},
			Factory: Factory{Owner: owner, PenaltyCollector: collector},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing dsn", mutate: func(c *Config) { c.UseMemory = false }, wantErr: "postgres_dsn"},
		{name: "missing event log dsn", mutate: func(c *Config) {
			c.UseMemory = false
			c.PostgresDSN = "postgres://rocket@db/rocket"
		}, wantErr: "clickhouse_dsn"},
		{name: "bad owner", mutate: func(c *Config) { c.Factory.Owner = "dev" }, wantErr: "factory.owner"},
		{name: "bad composition", mutate: func(c *Config) { c.Composition = "SUM" }, wantErr: "allocation_composition"},
		{name: "bad schedule", mutate: func(c *Config) { c.Schedule.PhaseOneDuration = time.Minute }, wantErr: "schedule"},
		{name: "unknown chain", mutate: func(c *Config) { c.ChainID = 1 }, wantErr: "unknown chain_id 1"},
		{name: "bad nft", mutate: func(c *Config) { c.NFTAddress = "0x12" }, wantErr: "nft_address"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestPrepare_ReadsEnvWithoutValidation(t *testing.T) {
	t.Setenv("ROCKET_POSTGRES_DSN", "postgres://rocket@db/rocket")

	v := viper.New()
	require.NoError(t, Prepare(v, ""))
	assert.Equal(t, "postgres://rocket@db/rocket", v.GetString("postgres_dsn"))
	assert.Equal(t, "launch-events", v.GetString("rabbitmq_queue"))

	err := Prepare(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
