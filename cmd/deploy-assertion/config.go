package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/litentry/assertion-deploy/deploy"
	"github.com/litentry/assertion-deploy/internal/substrate"
	"gopkg.in/yaml.v3"
)

// config overrides built-in deployment settings. Empty values are ignored.
type config struct {
	Networks   map[string]networkConfig `yaml:"networks"`
	Events     eventsConfig             `yaml:"events"`
	Calls      callsConfig              `yaml:"calls"`
	ScanBlocks int                      `yaml:"scan_blocks"`
}

type networkConfig struct {
	RPC            string `yaml:"rpc"`
	Worker         string `yaml:"worker"`
	Explorer       string `yaml:"explorer"`
	InsecureWorker *bool  `yaml:"insecure_worker"`
}

type eventsConfig struct {
	AssertionPallet string `yaml:"assertion_pallet"`
	AssertionStored string `yaml:"assertion_stored"`
	CommitteePallet string `yaml:"committee_pallet"`
	MemberExecuted  string `yaml:"member_executed"`
}

type callsConfig struct {
	CreateAssertion  string `yaml:"create_assertion"`
	CommitteeExecute string `yaml:"committee_execute"`
}

// loadConfig reads config from the YAML file. Empty path means no overrides.
func loadConfig(path string) (config, error) {
	if path == "" {
		return config{}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return config{}, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	return decodeConfig(f)
}

func decodeConfig(r io.Reader) (config, error) {
	var c config

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	err := dec.Decode(&c)
	if err != nil && !errors.Is(err, io.EOF) {
		return config{}, fmt.Errorf("decode config YAML: %w", err)
	}

	for name := range c.Networks {
		_, err = deploy.ParseNetwork(name)
		if err != nil {
			return config{}, fmt.Errorf("config networks: %w", err)
		}
	}

	if c.ScanBlocks < 0 {
		return config{}, fmt.Errorf("negative scan_blocks %d", c.ScanBlocks)
	}

	return c, nil
}

// network returns settings of the network overridden by the config.
func (c config) network(n deploy.Network) (deploy.NetworkConfig, error) {
	res, err := deploy.DefaultNetworkConfig(n)
	if err != nil {
		return res, err
	}

	o, ok := c.Networks[string(n)]
	if !ok {
		return res, nil
	}

	setIfNotEmpty(&res.RPCEndpoint, o.RPC)
	setIfNotEmpty(&res.WorkerEndpoint, o.Worker)
	setIfNotEmpty(&res.ExplorerURL, o.Explorer)
	if o.InsecureWorker != nil {
		res.InsecureWorker = *o.InsecureWorker
	}

	return res, nil
}

func (c config) eventNames() deploy.EventNames {
	res := deploy.DefaultEventNames()

	setIfNotEmpty(&res.AssertionPallet, c.Events.AssertionPallet)
	setIfNotEmpty(&res.AssertionStored, c.Events.AssertionStored)
	setIfNotEmpty(&res.CommitteePallet, c.Events.CommitteePallet)
	setIfNotEmpty(&res.MemberExecuted, c.Events.MemberExecuted)

	return res
}

func (c config) callNames() substrate.CallNames {
	res := substrate.DefaultCallNames()

	setIfNotEmpty(&res.CreateAssertion, c.Calls.CreateAssertion)
	setIfNotEmpty(&res.CommitteeExecute, c.Calls.CommitteeExecute)

	return res
}

func setIfNotEmpty(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
