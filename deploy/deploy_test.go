package deploy

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"errors"
	"math/big"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types/codec"
	"github.com/litentry/assertion-deploy/contracts"
	"github.com/litentry/assertion-deploy/shielding"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testBytecode = "0x608060405234801561001057600080fd5b50"

type testWorker struct {
	key   shielding.Key
	err   error
	calls atomic.Int32
}

func (x *testWorker) ShieldingKey(context.Context) (shielding.Key, error) {
	x.calls.Add(1)
	return x.key, x.err
}

func newTestWorker(t *testing.T) (*testWorker, *rsa.PrivateKey) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	n := slices.Clone(priv.N.Bytes())
	slices.Reverse(n)
	e := big.NewInt(int64(priv.E)).Bytes()
	slices.Reverse(e)

	k, err := shielding.NewKey(n, e)
	require.NoError(t, err)

	return &testWorker{key: k}, priv
}

// produceBlocks makes b emit given number of blocks after the proposal
// submission, the assertion is stored in storedAt block (if positive).
func produceBlocks(b *testBlockchain, n, storedAt int) {
	b.submit = func(context.Context, AssertionCall) error {
		go func() {
			for i := 1; i <= n; i++ {
				if i == storedAt {
					b.setEvents(testHash(i), memberExecuted, assertionStored)
				}
				b.sub.headers <- testHeader(i)
			}
		}()
		return nil
	}
}

func testPrm(t *testing.T, b Blockchain, w ShieldingKeySource) Prm {
	return Prm{
		Logger:     zaptest.NewLogger(t),
		Blockchain: b,
		Worker:     w,
		Network:    NetworkLocal,
		Contract:   contracts.Contract{Name: "A1", Bytecode: testBytecode},
	}
}

func deployCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestDeploy(t *testing.T) {
	t.Run("without secrets", func(t *testing.T) {
		b := newTestBlockchain(20)
		produceBlocks(b, 20, 3)
		w, _ := newTestWorker(t)

		rep, err := Deploy(deployCtx(t), testPrm(t, b, w))
		require.NoError(t, err)

		require.Zero(t, w.calls.Load())
		require.True(t, rep.Success)
		require.Equal(t, []BlockHash{testHash(3)}, rep.Hashes)
		require.Equal(t, NetworkLocal, rep.Network)
		require.Equal(t, GenerateContractID(testBytecode, nil), rep.ContractID)

		call := <-b.submitted
		require.Equal(t, rep.ContractID, call.ID)
		require.NotNil(t, call.Secrets)
		require.Empty(t, call.Secrets)

		bytecode, err := codec.HexDecodeString(testBytecode)
		require.NoError(t, err)
		require.Equal(t, bytecode, call.Bytecode)

		require.EqualValues(t, 1, b.sub.unsubscribed.Load())
	})

	t.Run("with secrets", func(t *testing.T) {
		b := newTestBlockchain(20)
		produceBlocks(b, 20, 1)
		w, priv := newTestWorker(t)

		prm := testPrm(t, b, w)
		prm.Secrets = []string{"key1", "key2"}

		rep, err := Deploy(deployCtx(t), prm)
		require.NoError(t, err)
		require.True(t, rep.Success)
		require.EqualValues(t, 1, w.calls.Load())
		require.Equal(t, GenerateContractID(testBytecode, prm.Secrets), rep.ContractID)

		call := <-b.submitted
		require.Len(t, call.Secrets, 2)

		for i := range call.Secrets {
			plain, err := rsa.DecryptOAEP(sha256.New(), nil, priv, call.Secrets[i], nil)
			require.NoError(t, err)

			var s types.Text
			require.NoError(t, codec.Decode(plain, &s))
			require.EqualValues(t, prm.Secrets[i], s)
		}
	})

	t.Run("not confirmed", func(t *testing.T) {
		b := newTestBlockchain(20)
		produceBlocks(b, 20, 0)
		w, _ := newTestWorker(t)

		rep, err := Deploy(deployCtx(t), testPrm(t, b, w))
		require.NoError(t, err)
		require.False(t, rep.Success)
		require.Empty(t, rep.Hashes)
	})

	t.Run("watching starts before submission", func(t *testing.T) {
		b := newTestBlockchain(20)
		w, _ := newTestWorker(t)
		b.submit = func(context.Context, AssertionCall) error {
			if !b.subscribed.Load() {
				return errors.New("submitted before subscription")
			}
			b.setEvents(testHash(1), assertionStored)
			b.sub.headers <- testHeader(1)
			return nil
		}

		rep, err := Deploy(deployCtx(t), testPrm(t, b, w))
		require.NoError(t, err)
		require.True(t, rep.Success)
	})

	t.Run("pending submission status", func(t *testing.T) {
		for _, tc := range []struct {
			name     string
			storedAt int
			hashes   []BlockHash
		}{
			{name: "not confirmed", storedAt: 0},
			{name: "confirmed", storedAt: 4, hashes: []BlockHash{testHash(4)}},
		} {
			t.Run(tc.name, func(t *testing.T) {
				b := newTestBlockchain(20)
				w, _ := newTestWorker(t)
				b.submit = func(ctx context.Context, _ AssertionCall) error {
					for i := 1; i <= 20; i++ {
						if i == tc.storedAt {
							b.setEvents(testHash(i), assertionStored)
						}
						b.sub.headers <- testHeader(i)
					}
					<-ctx.Done()
					return ctx.Err()
				}

				start := time.Now()

				rep, err := Deploy(deployCtx(t), testPrm(t, b, w))
				require.NoError(t, err)
				require.Less(t, time.Since(start), 10*time.Second)
				require.Equal(t, tc.storedAt > 0, rep.Success)
				require.Equal(t, tc.hashes, rep.Hashes)
				require.Equal(t, GenerateContractID(testBytecode, nil), rep.ContractID)
			})
		}
	})

	t.Run("cancelled before resolution", func(t *testing.T) {
		b := newTestBlockchain(1)
		w, _ := newTestWorker(t)
		b.submit = func(ctx context.Context, _ AssertionCall) error {
			<-ctx.Done()
			return ctx.Err()
		}

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		_, err := Deploy(ctx, testPrm(t, b, w))
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("unsupported chain", func(t *testing.T) {
		b := newTestBlockchain(1)
		w, _ := newTestWorker(t)

		prm := testPrm(t, b, w)
		prm.Network = "mainnet"

		_, err := Deploy(deployCtx(t), prm)
		require.ErrorIs(t, err, ErrUnsupportedChain)
		require.False(t, b.subscribed.Load())
	})

	t.Run("invalid bytecode", func(t *testing.T) {
		b := newTestBlockchain(1)
		w, _ := newTestWorker(t)

		for _, bytecode := range []string{"", "0x", "0xzz"} {
			prm := testPrm(t, b, w)
			prm.Contract.Bytecode = bytecode

			_, err := Deploy(deployCtx(t), prm)
			require.Error(t, err, bytecode)
		}
		require.False(t, b.subscribed.Load())
	})

	t.Run("key retrieval failure", func(t *testing.T) {
		b := newTestBlockchain(1)
		w, _ := newTestWorker(t)
		w.err = errors.New("connection refused")

		prm := testPrm(t, b, w)
		prm.Secrets = []string{"key"}

		_, err := Deploy(deployCtx(t), prm)
		require.ErrorIs(t, err, w.err)
		require.ErrorContains(t, err, "failed to retrieve shielding key")
		require.False(t, b.subscribed.Load())
	})

	t.Run("encryption failure", func(t *testing.T) {
		b := newTestBlockchain(1)
		w, _ := newTestWorker(t)

		prm := testPrm(t, b, w)
		prm.Secrets = []string{"key"}
		prm.Random = failingReader{}

		_, err := Deploy(deployCtx(t), prm)
		require.ErrorIs(t, err, shielding.ErrEncryption)
		require.False(t, b.subscribed.Load())
	})

	t.Run("submission rejected", func(t *testing.T) {
		b := newTestBlockchain(1)
		w, _ := newTestWorker(t)
		b.submit = func(context.Context, AssertionCall) error {
			return ErrSubmissionRejected
		}

		_, err := Deploy(deployCtx(t), testPrm(t, b, w))
		require.ErrorIs(t, err, ErrSubmissionRejected)
		require.EqualValues(t, 1, b.sub.unsubscribed.Load())
	})

	t.Run("subscription failure", func(t *testing.T) {
		b := newTestBlockchain(1)
		w, _ := newTestWorker(t)
		b.subErr = errors.New("method not found")

		_, err := Deploy(deployCtx(t), testPrm(t, b, w))
		require.ErrorIs(t, err, b.subErr)
		require.Empty(t, b.submitted)
	})

	t.Run("connection lost", func(t *testing.T) {
		b := newTestBlockchain(1)
		w, _ := newTestWorker(t)
		b.submit = func(context.Context, AssertionCall) error {
			b.sub.errs <- errors.New("connection lost")
			return nil
		}

		_, err := Deploy(deployCtx(t), testPrm(t, b, w))
		require.ErrorContains(t, err, "connection lost")
	})
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("no entropy") }
