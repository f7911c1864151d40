package enclave

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types/codec"
	"github.com/litentry/assertion-deploy/shielding"
)

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      int    `json:"id"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  string          `json:"result"`
	Error   *RPCError       `json:"error,omitempty"`
}

// hasID checks whether response ID equals given one. Both numeric and
// string IDs are accepted.
func (x rpcResponse) hasID(id int) bool {
	if len(x.ID) == 0 {
		return false
	}

	var n json.Number
	if err := json.Unmarshal(x.ID, &n); err == nil {
		return n.String() == strconv.Itoa(id)
	}

	var s string
	if err := json.Unmarshal(x.ID, &s); err == nil {
		return s == strconv.Itoa(id)
	}

	return false
}

// RPCError is an error returned by the worker in JSON-RPC response.
type RPCError struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	if e.Data != "" {
		return fmt.Sprintf("RPC error %d: %s (%s)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// workerRPCReturnValue is a SCALE-encoded envelope of worker responses. The
// request status follows DoWatch and is not decoded.
type workerRPCReturnValue struct {
	Value   types.Bytes
	DoWatch bool
}

// rsaPublicKeyJSON is a worker representation of RSA public key. Both
// numbers are little-endian.
type rsaPublicKeyJSON struct {
	N byteArray `json:"n"`
	E byteArray `json:"e"`
}

// byteArray is a []byte encoded as JSON array of numbers instead of base64.
type byteArray []byte

// UnmarshalJSON implements [json.Unmarshaler].
func (b *byteArray) UnmarshalJSON(data []byte) error {
	var ns []int

	err := json.Unmarshal(data, &ns)
	if err != nil {
		return err
	}

	res := make([]byte, len(ns))
	for i := range ns {
		if ns[i] < 0 || ns[i] > 0xFF {
			return fmt.Errorf("element #%d is not a byte: %d", i, ns[i])
		}
		res[i] = byte(ns[i])
	}

	*b = res

	return nil
}

func decodeShieldingKey(result string) (shielding.Key, error) {
	if result == "" {
		return shielding.Key{}, errors.New("empty result")
	}

	raw, err := codec.HexDecodeString(result)
	if err != nil {
		return shielding.Key{}, fmt.Errorf("decode result hex: %w", err)
	}

	var ret workerRPCReturnValue

	err = codec.Decode(raw, &ret)
	if err != nil {
		return shielding.Key{}, fmt.Errorf("decode worker return value: %w", err)
	}

	var payload types.Bytes

	err = codec.Decode(ret.Value, &payload)
	if err != nil {
		return shielding.Key{}, fmt.Errorf("strip length prefix of returned value: %w", err)
	}

	var keyJSON rsaPublicKeyJSON

	err = json.Unmarshal(payload, &keyJSON)
	if err != nil {
		return shielding.Key{}, fmt.Errorf("decode returned key JSON: %w", err)
	}

	return shielding.NewKey(keyJSON.N, keyJSON.E)
}
