// Package substrate implements deploy.Blockchain on top of the Substrate
// node RPC.
package substrate

import (
	"context"
	"errors"
	"fmt"
	"sync"

	gsrpc "github.com/centrifuge/go-substrate-rpc-client/v4"
	"github.com/centrifuge/go-substrate-rpc-client/v4/registry"
	"github.com/centrifuge/go-substrate-rpc-client/v4/registry/parser"
	"github.com/centrifuge/go-substrate-rpc-client/v4/signature"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types/codec"
	"github.com/litentry/assertion-deploy/deploy"
	"go.uber.org/zap"
)

// CallNames groups names of the runtime calls in 'Pallet.call' format.
type CallNames struct {
	CreateAssertion  string
	CommitteeExecute string
}

// DefaultCallNames returns CallNames of the Litentry parachain runtime.
func DefaultCallNames() CallNames {
	return CallNames{
		CreateAssertion:  "EvmAssertions.create_assertion",
		CommitteeExecute: "DeveloperCommittee.execute",
	}
}

// Prm groups Chain parameters.
type Prm struct {
	Logger *zap.Logger

	// WebSocket endpoint of the node.
	Endpoint string

	// Account signing transactions.
	Signer signature.KeyringPair

	Calls CallNames
}

// runtime groups data decoded with the particular runtime version.
type runtime struct {
	meta   *types.Metadata
	events registry.EventRegistry
}

// Chain provides deploy.Blockchain services of the remote node. Chain must be
// closed when no longer needed.
type Chain struct {
	logger *zap.Logger
	api    *gsrpc.SubstrateAPI
	signer signature.KeyringPair
	calls  CallNames

	registries  registry.Factory
	eventParser parser.EventParser

	mtx      sync.Mutex
	runtimes map[types.U32]runtime
}

// Dial connects to the node and returns Chain based on the opened
// connection.
func Dial(prm Prm) (*Chain, error) {
	if prm.Logger == nil {
		prm.Logger = zap.NewNop()
	}
	if prm.Calls == (CallNames{}) {
		prm.Calls = DefaultCallNames()
	}

	api, err := gsrpc.NewSubstrateAPI(prm.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("connect to node %s: %w", prm.Endpoint, err)
	}

	return &Chain{
		logger:      prm.Logger,
		api:         api,
		signer:      prm.Signer,
		calls:       prm.Calls,
		registries:  registry.NewFactory(),
		eventParser: parser.NewEventParser(),
		runtimes:    make(map[types.U32]runtime),
	}, nil
}

// Close closes connection to the node.
func (x *Chain) Close() {
	if c, ok := x.api.Client.(interface{ Close() }); ok {
		c.Close()
	}
}

// SubscribeNewHeads implements [deploy.Blockchain] interface.
func (x *Chain) SubscribeNewHeads() (deploy.HeaderSubscription, error) {
	sub, err := x.api.RPC.Chain.SubscribeNewHeads()
	if err != nil {
		return nil, err
	}

	return newHeaderSubscription(sub.Chan(), sub.Err(), sub.Unsubscribe), nil
}

// Events implements [deploy.Blockchain] interface.
func (x *Chain) Events(h deploy.BlockHash) ([]deploy.Event, error) {
	hash := types.Hash(h)

	rt, err := x.runtimeAt(hash)
	if err != nil {
		return nil, err
	}

	key, err := types.CreateStorageKey(rt.meta, "System", "Events", nil)
	if err != nil {
		return nil, fmt.Errorf("create System.Events storage key: %w", err)
	}

	raw, err := x.api.RPC.State.GetStorageRaw(key, hash)
	if err != nil {
		return nil, fmt.Errorf("read System.Events storage: %w", err)
	}

	if raw == nil || len(*raw) == 0 {
		return nil, nil
	}

	es, err := x.eventParser.ParseEvents(rt.events, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: decode System.Events storage: %w", deploy.ErrUndecodableEvents, err)
	}

	return convertEvents(es), nil
}

// runtimeAt returns runtime of the block. Runtimes are cached by the spec
// version.
func (x *Chain) runtimeAt(hash types.Hash) (runtime, error) {
	rv, err := x.api.RPC.State.GetRuntimeVersion(hash)
	if err != nil {
		return runtime{}, fmt.Errorf("get runtime version: %w", err)
	}

	x.mtx.Lock()
	defer x.mtx.Unlock()

	rt, ok := x.runtimes[rv.SpecVersion]
	if ok {
		return rt, nil
	}

	rt.meta, err = x.api.RPC.State.GetMetadata(hash)
	if err != nil {
		return runtime{}, fmt.Errorf("get metadata of runtime %d: %w", rv.SpecVersion, err)
	}

	rt.events, err = x.registries.CreateEventRegistry(rt.meta)
	if err != nil {
		return runtime{}, fmt.Errorf("create event registry of runtime %d: %w", rv.SpecVersion, err)
	}

	x.runtimes[rv.SpecVersion] = rt

	x.logger.Debug("runtime metadata loaded", zap.Uint32("spec version", uint32(rv.SpecVersion)))

	return rt, nil
}

// SubmitCommitteeProposal implements [deploy.Blockchain] interface.
func (x *Chain) SubmitCommitteeProposal(ctx context.Context, c deploy.AssertionCall) error {
	meta, err := x.api.RPC.State.GetMetadataLatest()
	if err != nil {
		return fmt.Errorf("get latest metadata: %w", err)
	}

	secrets := make([]types.Bytes, len(c.Secrets))
	for i := range c.Secrets {
		secrets[i] = types.NewBytes(c.Secrets[i])
	}

	inner, err := types.NewCall(meta, x.calls.CreateAssertion, types.NewH160(c.ID[:]), types.NewBytes(c.Bytecode), secrets)
	if err != nil {
		return fmt.Errorf("compose %s call: %w", x.calls.CreateAssertion, err)
	}

	bInner, err := codec.Encode(inner)
	if err != nil {
		return fmt.Errorf("encode %s call: %w", x.calls.CreateAssertion, err)
	}

	outer, err := types.NewCall(meta, x.calls.CommitteeExecute, inner, types.NewUCompactFromUInt(uint64(len(bInner))))
	if err != nil {
		return fmt.Errorf("compose %s call: %w", x.calls.CommitteeExecute, err)
	}

	ext := types.NewExtrinsic(outer)

	opts, err := x.signatureOptions(meta)
	if err != nil {
		return err
	}

	err = ext.Sign(x.signer, opts)
	if err != nil {
		return fmt.Errorf("sign extrinsic: %w", err)
	}

	sub, err := x.api.RPC.Author.SubmitAndWatchExtrinsic(ext)
	if err != nil {
		return fmt.Errorf("%w: %w", deploy.ErrSubmissionRejected, err)
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-sub.Err():
			if !ok {
				err = errors.New("subscription terminated")
			}
			return fmt.Errorf("extrinsic status subscription: %w", err)
		case st, ok := <-sub.Chan():
			if !ok {
				return errors.New("extrinsic status subscription: channel closed")
			}

			accepted, err := checkStatus(st)
			if err != nil {
				return err
			}

			if accepted {
				x.logger.Info("extrinsic accepted", zap.String("status", statusString(st)),
					zap.String("signer", x.signer.Address), zap.Int("call size", len(bInner)))
				return nil
			}
		}
	}
}

// signatureOptions returns options of the immortal transaction from the
// signer valid for the current runtime.
func (x *Chain) signatureOptions(meta *types.Metadata) (types.SignatureOptions, error) {
	genesisHash, err := x.api.RPC.Chain.GetBlockHash(0)
	if err != nil {
		return types.SignatureOptions{}, fmt.Errorf("get genesis block hash: %w", err)
	}

	rv, err := x.api.RPC.State.GetRuntimeVersionLatest()
	if err != nil {
		return types.SignatureOptions{}, fmt.Errorf("get latest runtime version: %w", err)
	}

	key, err := types.CreateStorageKey(meta, "System", "Account", x.signer.PublicKey)
	if err != nil {
		return types.SignatureOptions{}, fmt.Errorf("create System.Account storage key: %w", err)
	}

	var acc types.AccountInfo

	ok, err := x.api.RPC.State.GetStorageLatest(key, &acc)
	if err != nil {
		return types.SignatureOptions{}, fmt.Errorf("read signer account %s: %w", x.signer.Address, err)
	}

	var nonce uint64
	if ok {
		nonce = uint64(acc.Nonce)
	}

	return types.SignatureOptions{
		BlockHash:          genesisHash,
		Era:                types.ExtrinsicEra{IsMortalEra: false},
		GenesisHash:        genesisHash,
		Nonce:              types.NewUCompactFromUInt(nonce),
		SpecVersion:        rv.SpecVersion,
		Tip:                types.NewUCompactFromUInt(0),
		TransactionVersion: rv.TransactionVersion,
	}, nil
}
