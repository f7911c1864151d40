/*
Package enclave provides client of the TEE worker (enclave) JSON-RPC API
served over WebSocket.

Currently only shielding key retrieval is supported:

	c := enclave.New("wss://localhost:2000", enclave.Options{InsecureSkipVerify: true})
	key, err := c.ShieldingKey(ctx)
*/
package enclave

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/litentry/assertion-deploy/shielding"
)

// ErrKeyRetrieval is returned by Client.ShieldingKey on any failure.
var ErrKeyRetrieval = errors.New("shielding key retrieval failed")

const (
	methodGetShieldingKey = "author_getShieldingKey"

	// each connection carries exactly one request.
	requestID = 1
)

// Options groups optional Client parameters.
type Options struct {
	// Limits connection establishment. Zero means no limit except the one
	// from the context.
	DialTimeout time.Duration

	// Limits whole request-response exchange. Zero means no limit except the
	// one from the context.
	RequestTimeout time.Duration

	// Disables verification of the worker TLS certificate. Workers usually
	// serve self-signed certificates generated inside the enclave.
	InsecureSkipVerify bool
}

// Client calls TEE worker RPC. Each call opens a new connection which is
// closed before the call returns.
type Client struct {
	endpoint string
	opts     Options
	dialer   *websocket.Dialer
}

// New returns Client of the worker listening on given WebSocket endpoint.
func New(endpoint string, opts Options) *Client {
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = opts.DialTimeout
	if opts.InsecureSkipVerify {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // enclave certificates are self-signed
	}

	return &Client{
		endpoint: endpoint,
		opts:     opts,
		dialer:   &dialer,
	}
}

// ShieldingKey requests public shielding key of the worker. All errors wrap
// ErrKeyRetrieval.
func (c *Client) ShieldingKey(ctx context.Context) (shielding.Key, error) {
	var res rpcResponse

	err := c.call(ctx, methodGetShieldingKey, &res)
	if err != nil {
		return shielding.Key{}, fmt.Errorf("%w: %w", ErrKeyRetrieval, err)
	}

	k, err := decodeShieldingKey(res.Result)
	if err != nil {
		return shielding.Key{}, fmt.Errorf("%w: %w", ErrKeyRetrieval, err)
	}

	return k, nil
}

// call makes single RPC call with empty parameters and reads response into
// res. Frames of other requests are skipped.
func (c *Client) call(ctx context.Context, method string, res *rpcResponse) error {
	if c.opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.RequestTimeout)
		defer cancel()
	}

	conn, _, err := c.dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.endpoint, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
		_ = conn.SetReadDeadline(deadline)
	}

	// unblocks reading on context cancellation
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	err = conn.WriteJSON(rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  []any{},
		ID:      requestID,
	})
	if err != nil {
		return contextOr(ctx, fmt.Errorf("send %s request: %w", method, err))
	}

	for {
		*res = rpcResponse{}

		err = conn.ReadJSON(res)
		if err != nil {
			return contextOr(ctx, fmt.Errorf("read %s response: %w", method, err))
		}

		if !res.hasID(requestID) {
			continue
		}

		if res.Error != nil {
			return fmt.Errorf("%s call: %w", method, res.Error)
		}

		return nil
	}
}

// contextOr prefers context error as the reason of I/O failures since
// canceling the context closes the connection.
func contextOr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", ctxErr, err)
	}
	return err
}
