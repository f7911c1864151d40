package deploy

import (
	"context"
	"encoding/binary"
	"sync"
	"sync/atomic"
)

func testHash(i int) BlockHash {
	var h BlockHash
	binary.BigEndian.PutUint64(h[24:], uint64(i))
	return h
}

func testHeader(i int) Header {
	return Header{Number: uint64(i), Hash: testHash(i)}
}

type testSubscription struct {
	headers      chan Header
	errs         chan error
	unsubscribed atomic.Int32
}

func newTestSubscription(buf int) *testSubscription {
	return &testSubscription{
		headers: make(chan Header, buf),
		errs:    make(chan error, 1),
	}
}

func (x *testSubscription) Headers() <-chan Header { return x.headers }

func (x *testSubscription) Err() <-chan error { return x.errs }

func (x *testSubscription) Unsubscribe() { x.unsubscribed.Add(1) }

// testBlockchain is an in-memory Blockchain. Events of blocks are set by
// block hash.
type testBlockchain struct {
	sub    *testSubscription
	subErr error

	mtx       sync.Mutex
	events    map[BlockHash][]Event
	eventsErr error

	subscribed atomic.Bool
	submitted  chan AssertionCall
	submit     func(context.Context, AssertionCall) error
}

func newTestBlockchain(buf int) *testBlockchain {
	return &testBlockchain{
		sub:       newTestSubscription(buf),
		events:    make(map[BlockHash][]Event),
		submitted: make(chan AssertionCall, 1),
	}
}

func (x *testBlockchain) setEvents(h BlockHash, es ...Event) {
	x.mtx.Lock()
	defer x.mtx.Unlock()
	x.events[h] = es
}

func (x *testBlockchain) SubscribeNewHeads() (HeaderSubscription, error) {
	if x.subErr != nil {
		return nil, x.subErr
	}
	x.subscribed.Store(true)
	return x.sub, nil
}

func (x *testBlockchain) Events(h BlockHash) ([]Event, error) {
	x.mtx.Lock()
	defer x.mtx.Unlock()

	if x.eventsErr != nil {
		return nil, x.eventsErr
	}
	return x.events[h], nil
}

func (x *testBlockchain) SubmitCommitteeProposal(ctx context.Context, call AssertionCall) error {
	x.submitted <- call
	if x.submit != nil {
		return x.submit(ctx, call)
	}
	return nil
}

var (
	assertionStored = Event{Pallet: "EvmAssertions", Name: "AssertionStored", ApplyExtrinsic: true}
	assertionOther  = Event{Pallet: "EvmAssertions", Name: "AssertionCreated", ApplyExtrinsic: true}
	memberExecuted  = Event{Pallet: "DeveloperCommittee", Name: "MemberExecuted", ApplyExtrinsic: true}
	committeeOther  = Event{Pallet: "DeveloperCommittee", Name: "Proposed", ApplyExtrinsic: true}
	unrelated       = Event{Pallet: "Balances", Name: "Withdraw", ApplyExtrinsic: true}
)
