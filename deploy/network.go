package deploy

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// Network is a name of the blockchain network assertions are deployed to.
type Network string

// Supported networks.
const (
	NetworkLocal      Network = "local"
	NetworkDev        Network = "dev"
	NetworkStaging    Network = "stg"
	NetworkProduction Network = "prod"
)

// ErrUnsupportedChain is returned when requested network is not one of the
// supported ones.
var ErrUnsupportedChain = errors.New("unsupported chain")

var networks = []Network{NetworkLocal, NetworkDev, NetworkStaging, NetworkProduction}

// Networks returns all supported networks.
func Networks() []Network {
	return slices.Clone(networks)
}

// ParseNetwork checks that s names supported network.
func ParseNetwork(s string) (Network, error) {
	n := Network(s)
	if !slices.Contains(networks, n) {
		return "", fmt.Errorf("%w '%s', expected one of %v", ErrUnsupportedChain, s, networks)
	}
	return n, nil
}

// IsTest checks whether the network is allowed to be operated by well-known
// development accounts.
func (n Network) IsTest() bool {
	return n == NetworkLocal || n == NetworkDev
}

// NetworkConfig groups endpoints of the particular network.
type NetworkConfig struct {
	// Public parachain node endpoint.
	RPCEndpoint string

	// Trusted TEE worker endpoint.
	WorkerEndpoint string

	// Base URL block hashes are appended to for block explorer links. Empty
	// means Polkadot{.js} apps connected to RPCEndpoint.
	ExplorerURL string

	// Skip verification of the worker TLS certificate.
	InsecureWorker bool
}

var defaultNetworkConfigs = map[Network]NetworkConfig{
	NetworkLocal: {
		RPCEndpoint:    "ws://localhost:9944",
		WorkerEndpoint: "wss://localhost:2000",
		InsecureWorker: true,
	},
	NetworkDev: {
		RPCEndpoint:    "wss://tee-dev.litentry.io",
		WorkerEndpoint: "wss://tee-dev.litentry.io:2000",
		InsecureWorker: true,
	},
	NetworkStaging: {
		RPCEndpoint:    "wss://tee-staging.litentry.io",
		WorkerEndpoint: "wss://tee-staging.litentry.io:2000",
		InsecureWorker: true,
	},
	NetworkProduction: {
		RPCEndpoint:    "wss://rpc.litentry-parachain.litentry.io",
		WorkerEndpoint: "wss://tee-prod.litentry.io:2000",
		InsecureWorker: true,
	},
}

// DefaultNetworkConfig returns built-in endpoints of the network.
func DefaultNetworkConfig(n Network) (NetworkConfig, error) {
	c, ok := defaultNetworkConfigs[n]
	if !ok {
		return NetworkConfig{}, fmt.Errorf("%w '%s'", ErrUnsupportedChain, n)
	}
	return c, nil
}

// ExplorerLink returns link to the block in the network block explorer.
func (c NetworkConfig) ExplorerLink(h BlockHash) string {
	if c.ExplorerURL != "" {
		return strings.TrimSuffix(c.ExplorerURL, "/") + "/" + h.String()
	}
	return "https://polkadot.js.org/apps/?rpc=" + url.QueryEscape(c.RPCEndpoint) + "#/explorer/query/" + h.String()
}
