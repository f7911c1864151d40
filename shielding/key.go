/*
Package shielding provides the TEE worker shielding key and encryption of
secrets shielded by it.

The worker exposes its RSA public key as two little-endian byte buffers:
modulus and public exponent. Key turns them into a standard public key and
its JWK representation with the RSA-OAEP-256 algorithm.
*/
package shielding

import (
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"math/big"
	"slices"
)

// JWK attributes of the shielding key.
const (
	KeyType   = "RSA"
	Algorithm = "RSA-OAEP-256"
	KeyUse    = "enc"
)

// ErrMalformedKey is returned when the worker reports key material which
// can not form an RSA public key.
var ErrMalformedKey = errors.New("malformed shielding key")

// JWK is a JSON Web Key of the RSA public key. Big integers are base64url
// encoded big-endian bytes without padding.
type JWK struct {
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// Key is a public shielding key of the TEE worker. Zero Key is invalid, use
// NewKey.
type Key struct {
	jwk JWK
	pub *rsa.PublicKey
}

// NewKey constructs Key from the modulus and public exponent in the byte
// order used by the worker (little-endian).
func NewKey(n, e []byte) (Key, error) {
	switch {
	case len(n) == 0:
		return Key{}, fmt.Errorf("%w: empty modulus", ErrMalformedKey)
	case len(e) == 0:
		return Key{}, fmt.Errorf("%w: empty exponent", ErrMalformedKey)
	}

	nBE := reversed(n)
	eBE := reversed(e)

	modulus := new(big.Int).SetBytes(nBE)
	if modulus.Sign() == 0 {
		return Key{}, fmt.Errorf("%w: zero modulus", ErrMalformedKey)
	}

	exp := new(big.Int).SetBytes(eBE)
	if exp.Sign() == 0 || !exp.IsInt64() || exp.Int64() > math.MaxInt32 {
		return Key{}, fmt.Errorf("%w: unsupported exponent %s", ErrMalformedKey, exp)
	}

	return Key{
		jwk: JWK{
			Kty: KeyType,
			Alg: Algorithm,
			Use: KeyUse,
			N:   base64.RawURLEncoding.EncodeToString(nBE),
			E:   base64.RawURLEncoding.EncodeToString(eBE),
		},
		pub: &rsa.PublicKey{
			N: modulus,
			E: int(exp.Int64()),
		},
	}, nil
}

// JWK returns JSON Web Key representation of the Key.
func (k Key) JWK() JWK {
	return k.jwk
}

// PublicKey returns the Key as RSA public key. The result must not be
// modified.
func (k Key) PublicKey() *rsa.PublicKey {
	return k.pub
}

func reversed(b []byte) []byte {
	res := slices.Clone(b)
	slices.Reverse(res)
	return res
}
