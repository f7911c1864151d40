package deploy

import (
	"context"
	"encoding/hex"
	"errors"

	"github.com/litentry/assertion-deploy/shielding"
)

// ErrSubmissionRejected is returned when the chain refuses to accept the
// deployment transaction.
var ErrSubmissionRejected = errors.New("submission rejected")

// ErrUndecodableEvents is returned when events of the block cannot be decoded
// with the runtime metadata.
var ErrUndecodableEvents = errors.New("undecodable block events")

// BlockHash is a hash of the parachain block.
type BlockHash [32]byte

// String returns 0x-prefixed hex of the hash.
func (h BlockHash) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

// Header is a header of the new block.
type Header struct {
	Number uint64
	Hash   BlockHash
}

// Event is an event dispatched in the block.
type Event struct {
	// Name of the pallet emitted the event.
	Pallet string
	// Event name within the pallet.
	Name string
	// Whether event was emitted during extrinsic application (and not
	// during block initialization or finalization).
	ApplyExtrinsic bool
}

// HeaderSubscription is a live stream of new block headers.
type HeaderSubscription interface {
	// Headers returns channel of the new headers in the order of their
	// arrival.
	Headers() <-chan Header

	// Err returns channel which receives subscription failure. No more
	// headers arrive after the failure.
	Err() <-chan error

	// Unsubscribe stops the subscription. It must be called once, the
	// subscription is inactive when Unsubscribe returns.
	Unsubscribe()
}

// AssertionCall groups parameters of the assertion creation call.
type AssertionCall struct {
	ID       ContractID
	Bytecode []byte
	Secrets  []shielding.EncryptedSecret
}

// Blockchain groups services provided by the parachain that are required for
// assertion deployment.
type Blockchain interface {
	// SubscribeNewHeads opens stream of the new block headers.
	SubscribeNewHeads() (HeaderSubscription, error)

	// Events returns all events dispatched in the block with given hash read
	// from the chain state at this block. Events that cannot be decoded
	// result in ErrUndecodableEvents.
	Events(BlockHash) ([]Event, error)

	// SubmitCommitteeProposal submits assertion creation call executed on
	// behalf of the governance committee and signed by the configured
	// account. SubmitCommitteeProposal returns when transaction is accepted
	// for inclusion, rejection results in ErrSubmissionRejected.
	SubmitCommitteeProposal(context.Context, AssertionCall) error
}

// ShieldingKeySource provides public shielding key of the TEE worker.
type ShieldingKeySource interface {
	ShieldingKey(context.Context) (shielding.Key, error)
}
