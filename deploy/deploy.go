/*
Package deploy implements deployment of the assertion contracts to the
Litentry parachain.

Deployment summary:
 1. retrieval of the TEE worker shielding key (only if there are secrets)
 2. encryption of the contract secrets with the shielding key
 3. derivation of the contract ID
 4. submission of the assertion creation call executed by the governance
    committee
 5. watching of the new blocks until the assertion is stored or the limit of
    blocks is reached
*/
package deploy

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types/codec"
	"github.com/litentry/assertion-deploy/contracts"
	"github.com/litentry/assertion-deploy/shielding"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Prm groups all parameters of the deployment procedure.
type Prm struct {
	// Writes progress into the log. Optional.
	Logger *zap.Logger

	// Parachain the assertion is deployed to.
	Blockchain Blockchain

	// TEE worker serving the shielding key. Not called without secrets.
	Worker ShieldingKeySource

	// Target network.
	Network Network

	// Compiled assertion contract.
	Contract contracts.Contract

	// Plain contract secrets.
	Secrets []string

	// Events tracked for the deployment confirmation. Zero means
	// DefaultEventNames.
	Events EventNames

	// Number of blocks to watch for the confirmation. Zero means
	// DefaultScanBlocks.
	ScanBlocks int

	// Source of randomness for the secret encryption. Nil means
	// crypto/rand.Reader.
	Random io.Reader
}

// Report describes finished deployment.
type Report struct {
	ContractID ContractID
	Network    Network
	Result
}

// Deploy deploys assertion contract and waits for the confirmation.
//
// Deploy returns error only if deployment could not be carried out. The
// deployment not confirmed in Prm.ScanBlocks blocks is reported with
// unsuccessful Result. Nothing is retried.
func Deploy(ctx context.Context, prm Prm) (Report, error) {
	if prm.Logger == nil {
		prm.Logger = zap.NewNop()
	}
	if prm.Events == (EventNames{}) {
		prm.Events = DefaultEventNames()
	}
	if prm.ScanBlocks == 0 {
		prm.ScanBlocks = DefaultScanBlocks
	}
	if prm.Random == nil {
		prm.Random = rand.Reader
	}

	network, err := ParseNetwork(string(prm.Network))
	if err != nil {
		return Report{}, err
	}

	bytecode, err := codec.HexDecodeString(prm.Contract.Bytecode)
	if err != nil {
		return Report{}, fmt.Errorf("decode bytecode of contract '%s': %w", prm.Contract.Name, err)
	}
	if len(bytecode) == 0 {
		return Report{}, fmt.Errorf("empty bytecode of contract '%s'", prm.Contract.Name)
	}

	encryptedSecrets := []shielding.EncryptedSecret{}

	if len(prm.Secrets) > 0 {
		prm.Logger.Info("retrieving shielding key from TEE worker...")

		key, err := prm.Worker.ShieldingKey(ctx)
		if err != nil {
			return Report{}, fmt.Errorf("failed to retrieve shielding key: %w", err)
		}

		encryptedSecrets, err = shielding.EncryptSecrets(prm.Random, key, prm.Secrets)
		if err != nil {
			return Report{}, fmt.Errorf("shield contract secrets: %w", err)
		}

		prm.Logger.Info("contract secrets successfully shielded", zap.Int("count", len(encryptedSecrets)))
	} else {
		prm.Logger.Debug("contract has no secrets, shielding skipped")
	}

	id := GenerateContractID(prm.Contract.Bytecode, prm.Secrets)

	prm.Logger.Info("deploying assertion contract...",
		zap.String("contract", prm.Contract.Name), zap.Stringer("id", id), zap.String("network", string(network)))

	watcher, err := newConfirmationWatcher(prm.Logger, prm.Blockchain, prm.Events, prm.ScanBlocks)
	if err != nil {
		return Report{}, fmt.Errorf("init deployment confirmation watcher: %w", err)
	}

	var (
		res      Result
		resolved atomic.Bool
	)

	g, gctx := errgroup.WithContext(ctx)

	// submission status is not awaited after the confirmation is resolved
	submitCtx, cancelSubmit := context.WithCancel(gctx)
	defer cancelSubmit()

	g.Go(func() error {
		var err error

		res, err = watcher.run(gctx)
		if err != nil {
			return fmt.Errorf("watch deployment confirmation: %w", err)
		}

		resolved.Store(true)
		cancelSubmit()

		return nil
	})

	g.Go(func() error {
		err := prm.Blockchain.SubmitCommitteeProposal(submitCtx, AssertionCall{
			ID:       id,
			Bytecode: bytecode,
			Secrets:  encryptedSecrets,
		})
		if err != nil {
			if resolved.Load() && errors.Is(err, context.Canceled) {
				prm.Logger.Debug("deployment resolved before proposal submission status")
				return nil
			}

			return fmt.Errorf("submit assertion creation proposal: %w", err)
		}

		prm.Logger.Info("assertion creation proposal submitted, waiting for confirmation...",
			zap.Int("blocks", prm.ScanBlocks))

		return nil
	})

	err = g.Wait()
	if err != nil {
		return Report{}, err
	}

	if res.Success {
		prm.Logger.Info("assertion contract successfully deployed", zap.Stringer("id", id))
	} else {
		prm.Logger.Warn("assertion contract deployment is not confirmed",
			zap.Stringer("id", id), zap.Int("related blocks", len(res.Hashes)))
	}

	return Report{
		ContractID: id,
		Network:    network,
		Result:     res,
	}, nil
}
