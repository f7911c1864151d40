package substrate

import (
	"errors"
	"fmt"
	"sync"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types/codec"
	"github.com/litentry/assertion-deploy/deploy"
	"golang.org/x/crypto/blake2b"
)

// headerHash calculates hash of the block from its header.
func headerHash(h types.Header) (deploy.BlockHash, error) {
	b, err := codec.Encode(h)
	if err != nil {
		return deploy.BlockHash{}, fmt.Errorf("encode header: %w", err)
	}
	return blake2b.Sum256(b), nil
}

// headerSubscription relays node headers supplementing them with hashes.
type headerSubscription struct {
	headers chan deploy.Header
	errs    chan error

	unsubscribeOnce sync.Once
	unsubscribe     func()
	done            chan struct{}
	wg              sync.WaitGroup
}

func newHeaderSubscription(src <-chan types.Header, srcErr <-chan error, unsubscribe func()) *headerSubscription {
	res := &headerSubscription{
		headers:     make(chan deploy.Header),
		errs:        make(chan error, 1),
		unsubscribe: unsubscribe,
		done:        make(chan struct{}),
	}

	res.wg.Add(1)
	go res.relay(src, srcErr)

	return res
}

func (x *headerSubscription) relay(src <-chan types.Header, srcErr <-chan error) {
	defer x.wg.Done()

	for {
		select {
		case <-x.done:
			return
		case err := <-srcErr:
			if err == nil {
				err = errors.New("subscription terminated")
			}
			x.errs <- err
			return
		case h, ok := <-src:
			if !ok {
				x.errs <- errors.New("subscription channel closed")
				return
			}

			hash, err := headerHash(h)
			if err != nil {
				x.errs <- err
				return
			}

			select {
			case <-x.done:
				return
			case x.headers <- deploy.Header{Number: uint64(h.Number), Hash: hash}:
			}
		}
	}
}

// Headers implements [deploy.HeaderSubscription] interface.
func (x *headerSubscription) Headers() <-chan deploy.Header {
	return x.headers
}

// Err implements [deploy.HeaderSubscription] interface.
func (x *headerSubscription) Err() <-chan error {
	return x.errs
}

// Unsubscribe implements [deploy.HeaderSubscription] interface. Unsubscribe
// returns when node subscription is closed and no more headers are relayed.
func (x *headerSubscription) Unsubscribe() {
	x.unsubscribeOnce.Do(func() {
		close(x.done)
		x.unsubscribe()
		x.wg.Wait()
	})
}
