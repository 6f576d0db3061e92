// Package config loads rocketd configuration from file, environment and
// flags through viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"

	"rocket-mimo/internal/allocation"
	"rocket-mimo/internal/domain"
	"rocket-mimo/internal/scheduler"
)

// EnvPrefix prefixes every environment variable: ROCKET_POSTGRES_DSN, ...
const EnvPrefix = "ROCKET"

// Config is the rocketd configuration.
type Config struct {
	HTTPAddr       string         `mapstructure:"http_addr"`
	LogLevel       string         `mapstructure:"log_level"`
	UseMemory      bool           `mapstructure:"use_memory"`
	PostgresDSN    string         `mapstructure:"postgres_dsn"`
	ClickhouseDSN  string         `mapstructure:"clickhouse_dsn"`
	RabbitMQURL    string         `mapstructure:"rabbitmq_url"`
	RabbitMQQueue  string         `mapstructure:"rabbitmq_queue"`
	ChainID        int64          `mapstructure:"chain_id"`
	RPCEndpoint    string         `mapstructure:"rpc_endpoint"`
	Networks       []Network      `mapstructure:"networks"`
	Schedule       Schedule       `mapstructure:"schedule"`
	Factory        Factory        `mapstructure:"factory"`
	NFTAddress     string         `mapstructure:"nft_address"`
	Composition    string         `mapstructure:"allocation_composition"`
	PhaseCheckSpec string         `mapstructure:"phase_check_spec"`
	AutoFinalize   bool           `mapstructure:"auto_finalize"`
	DevMode        bool           `mapstructure:"dev_mode"`
	Dispatcher     DispatcherSize `mapstructure:"dispatcher"`
}

// Network is a configured chain, merged over the built-in table.
type Network struct {
	ChainID     int64  `mapstructure:"chain_id"`
	Name        string `mapstructure:"name"`
	WETH        string `mapstructure:"weth"`
	Router      string `mapstructure:"router"`
	AMMFactory  string `mapstructure:"amm_factory"`
	RPCEndpoint string `mapstructure:"rpc_endpoint"`
}

// Schedule holds the prototype phase durations.
type Schedule struct {
	NoFeeDuration    time.Duration `mapstructure:"no_fee_duration"`
	PhaseOneDuration time.Duration `mapstructure:"phase_one_duration"`
	PhaseTwoDuration time.Duration `mapstructure:"phase_two_duration"`
}

// Factory holds the factory identity.
type Factory struct {
	Address          string `mapstructure:"address"`
	Owner            string `mapstructure:"owner"`
	Prototype        string `mapstructure:"prototype"`
	PenaltyCollector string `mapstructure:"penalty_collector"`
}

// DispatcherSize sizes the event queue.
type DispatcherSize struct {
	Buffer int `mapstructure:"buffer"`
}

// SetDefaults registers every key with its default, which also makes each
// key reachable through AutomaticEnv.
func SetDefaults(v *viper.Viper) {
	def := domain.DefaultSchedule()

	v.SetDefault("http_addr", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("use_memory", false)
	v.SetDefault("postgres_dsn", "")
	v.SetDefault("clickhouse_dsn", "")
	v.SetDefault("rabbitmq_url", "")
	v.SetDefault("rabbitmq_queue", "launch-events")
	v.SetDefault("chain_id", domain.NetworkIotexTestnet.ChainID)
	v.SetDefault("rpc_endpoint", "")
	v.SetDefault("networks", []map[string]interface{}{})
	v.SetDefault("schedule.no_fee_duration", def.NoFeeDuration)
	v.SetDefault("schedule.phase_one_duration", def.PhaseOneDuration)
	v.SetDefault("schedule.phase_two_duration", def.PhaseTwoDuration)
	v.SetDefault("factory.address", "0x000000000000000000000000000000000000fac7")
	v.SetDefault("factory.owner", "")
	v.SetDefault("factory.prototype", "0x0000000000000000000000000000000000009207")
	v.SetDefault("factory.penalty_collector", "")
	v.SetDefault("nft_address", "")
	v.SetDefault("allocation_composition", string(allocation.ComposeAdditive))
	v.SetDefault("phase_check_spec", scheduler.DefaultSpec)
	v.SetDefault("auto_finalize", true)
	v.SetDefault("dev_mode", false)
	v.SetDefault("dispatcher.buffer", 1024)
}

// Prepare registers defaults and environment lookup on v and reads file
// when set. Commands needing only a few keys read them from v directly.
func Prepare(v *viper.Viper, file string) error {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", file, err)
		}
	}
	return nil
}

// Load reads configuration from file (optional), ROCKET_* environment
// variables and whatever flags were bound to v, then validates it.
func Load(v *viper.Viper, file string) (*Config, error) {
	if err := Prepare(v, file); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for startup.
func (c *Config) Validate() error {
	var errs []error

	if !c.UseMemory && c.PostgresDSN == "" {
		errs = append(errs, errors.New("postgres_dsn is required (set use_memory for in-memory storage)"))
	}
	if !c.UseMemory && c.ClickhouseDSN == "" {
		errs = append(errs, errors.New("clickhouse_dsn is required with persistent storage"))
	}
	for key, addr := range map[string]string{
		"factory.owner":             c.Factory.Owner,
		"factory.penalty_collector": c.Factory.PenaltyCollector,
	} {
		if !common.IsHexAddress(addr) {
			errs = append(errs, fmt.Errorf("%s must be a hex address, got %q", key, addr))
		}
	}
	for key, addr := range map[string]string{
		"factory.address":   c.Factory.Address,
		"factory.prototype": c.Factory.Prototype,
		"nft_address":       c.NFTAddress,
	} {
		if addr != "" && !common.IsHexAddress(addr) {
			errs = append(errs, fmt.Errorf("%s must be a hex address, got %q", key, addr))
		}
	}
	if !allocation.Composition(c.Composition).IsValid() {
		errs = append(errs, fmt.Errorf("allocation_composition %q is not ADDITIVE or MAX", c.Composition))
	}
	if !c.DomainSchedule().IsValid() {
		errs = append(errs, fmt.Errorf("schedule %+v: phase one must exceed no-fee and phase two must be positive", c.Schedule))
	}
	if _, err := c.Network(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// DomainSchedule converts the configured durations.
func (c *Config) DomainSchedule() domain.Schedule {
	return domain.Schedule{
		NoFeeDuration:    c.Schedule.NoFeeDuration,
		PhaseOneDuration: c.Schedule.PhaseOneDuration,
		PhaseTwoDuration: c.Schedule.PhaseTwoDuration,
	}
}

// NetworkTable returns the built-in networks overlaid with configured ones.
func (c *Config) NetworkTable() (domain.Networks, error) {
	table := domain.DefaultNetworks()
	for _, n := range c.Networks {
		for _, addr := range []string{n.WETH, n.Router, n.AMMFactory} {
			if addr != "" && !common.IsHexAddress(addr) {
				return nil, fmt.Errorf("network %d: invalid address %q", n.ChainID, addr)
			}
		}
		if n.WETH == "" {
			return nil, fmt.Errorf("network %d: weth is required", n.ChainID)
		}
		table[n.ChainID] = domain.NetworkConfig{
			ChainID:     n.ChainID,
			Name:        n.Name,
			WETH:        common.HexToAddress(n.WETH),
			Router:      common.HexToAddress(n.Router),
			AMMFactory:  common.HexToAddress(n.AMMFactory),
			RPCEndpoint: n.RPCEndpoint,
		}
	}
	return table, nil
}

// Network resolves the configured chain id. rpc_endpoint overrides the
// network's own endpoint.
func (c *Config) Network() (domain.NetworkConfig, error) {
	table, err := c.NetworkTable()
	if err != nil {
		return domain.NetworkConfig{}, err
	}
	n, ok := table.Resolve(c.ChainID)
	if !ok {
		return domain.NetworkConfig{}, fmt.Errorf("unknown chain_id %d", c.ChainID)
	}
	if c.RPCEndpoint != "" {
		n.RPCEndpoint = c.RPCEndpoint
	}
	return n, nil
}

// Addr parses a validated address field. Empty yields the zero address.
func Addr(s string) common.Address {
	if s == "" {
		return common.Address{}
	}
	return common.HexToAddress(s)
}
