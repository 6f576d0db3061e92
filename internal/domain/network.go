package domain

import "github.com/ethereum/go-ethereum/common"

// NetworkConfig holds the per-chain infrastructure addresses.
type NetworkConfig struct {
	ChainID     int64
	Name        string
	WETH        common.Address
	Router      common.Address
	AMMFactory  common.Address
	RPCEndpoint string
}

// Built-in networks from the deployment scripts.
var (
	NetworkRinkeby = NetworkConfig{
		ChainID:    4,
		Name:       "rinkeby",
		WETH:       common.HexToAddress("0xc778417e063141139fce010982780140aa0cd5ab"),
		Router:     common.HexToAddress("0x7E2528476b14507f003aE9D123334977F5Ad7B14"),
		AMMFactory: common.HexToAddress("0x86f83be9770894d8e46301b12E88e14AdC6cdb5F"),
	}
	NetworkIotexTestnet = NetworkConfig{
		ChainID:     4690,
		Name:        "iotex_test",
		WETH:        common.HexToAddress("0xff5fae9fe685b90841275e32c348dc4426190db0"),
		Router:      common.HexToAddress("0xF0CF2cDbED5836C3Aa3f68649e359422991743Fd"),
		AMMFactory:  common.HexToAddress("0xda257cBe968202Dea212bBB65aB49f174Da58b9D"),
		RPCEndpoint: "https://babel-api.testnet.iotex.io",
	}
)

// Networks maps chain id to network configuration.
type Networks map[int64]NetworkConfig

// DefaultNetworks returns the built-in network table.
func DefaultNetworks() Networks {
	return Networks{
		NetworkRinkeby.ChainID:      NetworkRinkeby,
		NetworkIotexTestnet.ChainID: NetworkIotexTestnet,
	}
}

// Resolve returns the configuration for chainID.
func (n Networks) Resolve(chainID int64) (NetworkConfig, bool) {
	cfg, ok := n[chainID]
	return cfg, ok
}
