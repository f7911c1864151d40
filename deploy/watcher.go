package deploy

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"
)

// DefaultScanBlocks is a default number of blocks watched for the deployment
// confirmation.
const DefaultScanBlocks = 15

// EventNames groups names of the events signaling deployment progress.
type EventNames struct {
	// Pallet storing assertions. All its events are related to deployment.
	AssertionPallet string
	// AssertionPallet event confirming deployment.
	AssertionStored string

	// Governance committee pallet executing deployment proposal.
	CommitteePallet string
	// CommitteePallet event of proposal execution.
	MemberExecuted string
}

// DefaultEventNames returns EventNames of the Litentry parachain runtime.
func DefaultEventNames() EventNames {
	return EventNames{
		AssertionPallet: "EvmAssertions",
		AssertionStored: "AssertionStored",
		CommitteePallet: "DeveloperCommittee",
		MemberExecuted:  "MemberExecuted",
	}
}

// Result is a result of the deployment confirmation.
type Result struct {
	// Whether assertion is stored on the chain.
	Success bool

	// Hashes of all blocks with events related to the deployment in the
	// order of block arrival.
	Hashes []BlockHash
}

// scanState is a state of the block scanning. Belongs to one watcher.
type scanState struct {
	blocksLeft int
	succeeded  bool
	related    []BlockHash
	resolved   bool
}

func (s *scanState) relate(h BlockHash) {
	if !slices.Contains(s.related, h) {
		s.related = append(s.related, h)
	}
}

// resolve finishes scanning. Must be called once.
func (s *scanState) resolve() Result {
	if s.resolved {
		panic("deployment confirmation resolved twice")
	}
	s.resolved = true

	return Result{
		Success: s.succeeded,
		Hashes:  slices.Clone(s.related),
	}
}

// confirmationWatcher watches new blocks for the deployment events.
type confirmationWatcher struct {
	logger     *zap.Logger
	blockchain Blockchain
	events     EventNames
	sub        HeaderSubscription

	state scanState
}

// newConfirmationWatcher subscribes to the new blocks. Blocks are not missed
// from this moment, so the watcher should be created before the transaction
// is sent. Watcher must be run after creation to release the subscription.
func newConfirmationWatcher(logger *zap.Logger, b Blockchain, events EventNames, scanBlocks int) (*confirmationWatcher, error) {
	sub, err := b.SubscribeNewHeads()
	if err != nil {
		return nil, fmt.Errorf("subscribe to new block headers: %w", err)
	}

	return &confirmationWatcher{
		logger:     logger,
		blockchain: b,
		events:     events,
		sub:        sub,
		state:      scanState{blocksLeft: scanBlocks},
	}, nil
}

// run processes new blocks one by one until the deployment is confirmed or
// the scanning limit is reached. The subscription is released on return.
//
// Unsuccessful deployment is not an error: run returns error only on
// subscription or chain failures and context cancellation.
func (w *confirmationWatcher) run(ctx context.Context) (Result, error) {
	defer w.sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case err, ok := <-w.sub.Err():
			if !ok {
				err = errors.New("subscription terminated")
			}
			return Result{}, fmt.Errorf("new block headers: %w", err)
		case h, ok := <-w.sub.Headers():
			if !ok {
				return Result{}, errors.New("new block headers: subscription channel closed")
			}

			done, err := w.handleHeader(h)
			if err != nil {
				return Result{}, err
			}

			if done {
				return w.state.resolve(), nil
			}
		}
	}
}

// handleHeader processes all events of the block and checks whether watching
// should be finished.
func (w *confirmationWatcher) handleHeader(h Header) (bool, error) {
	events, err := w.blockchain.Events(h.Hash)
	if err != nil {
		if !errors.Is(err, ErrUndecodableEvents) {
			return false, fmt.Errorf("read events of block #%d (%s): %w", h.Number, h.Hash, err)
		}

		w.logger.Warn("failed to decode block events, block is counted without events",
			zap.Uint64("block", h.Number), zap.Stringer("hash", h.Hash), zap.Error(err))
	}

	for i := range events {
		if !events[i].ApplyExtrinsic {
			continue
		}

		switch {
		case events[i].Pallet == w.events.AssertionPallet:
			w.state.relate(h.Hash)

			if events[i].Name == w.events.AssertionStored {
				w.state.succeeded = true
			}
		case events[i].Pallet == w.events.CommitteePallet && events[i].Name == w.events.MemberExecuted:
			w.state.relate(h.Hash)
		default:
			continue
		}

		w.logger.Debug("deployment event",
			zap.Uint64("block", h.Number), zap.Stringer("hash", h.Hash),
			zap.String("pallet", events[i].Pallet), zap.String("event", events[i].Name))
	}

	if w.state.succeeded {
		return true, nil
	}

	w.state.blocksLeft--

	w.logger.Debug("block scanned",
		zap.Uint64("block", h.Number), zap.Stringer("hash", h.Hash), zap.Int("blocks left", w.state.blocksLeft))

	return w.state.blocksLeft < 1, nil
}
