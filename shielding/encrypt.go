package shielding

import (
	"crypto/rsa"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types/codec"
)

// ErrEncryption is returned when any of the secrets can not be shielded.
var ErrEncryption = errors.New("secret encryption failed")

// EncryptedSecret is a secret shielded by the worker Key.
type EncryptedSecret []byte

// String returns 0x-prefixed hex of the ciphertext.
func (s EncryptedSecret) String() string {
	return codec.HexEncodeToString(s)
}

// EncryptSecrets shields given secrets by the Key. Each secret is encoded as
// SCALE string (the form the worker decodes after decryption) and encrypted
// with RSA-OAEP using SHA-256. Randomness is read from random.
//
// EncryptSecrets fails on the first secret which can not be encrypted, no
// partial result is returned. Empty input results in empty output.
func EncryptSecrets(random io.Reader, key Key, secrets []string) ([]EncryptedSecret, error) {
	if key.pub == nil {
		return nil, fmt.Errorf("%w: %w: missing key", ErrEncryption, ErrMalformedKey)
	}

	res := make([]EncryptedSecret, 0, len(secrets))

	for i := range secrets {
		plain, err := codec.Encode(types.NewText(secrets[i]))
		if err != nil {
			return nil, fmt.Errorf("%w: encode secret #%d: %w", ErrEncryption, i, err)
		}

		c, err := rsa.EncryptOAEP(sha256.New(), random, key.pub, plain, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: encrypt secret #%d: %w", ErrEncryption, i, err)
		}

		res = append(res, c)
	}

	return res, nil
}
