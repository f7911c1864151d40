package deploy

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ContractID identifies assertion contract on the chain.
type ContractID [20]byte

// String returns 0x-prefixed hex of the ID.
func (x ContractID) String() string {
	return "0x" + hex.EncodeToString(x[:])
}

// GenerateContractID derives ID of the assertion contract from its bytecode
// hex and plain secrets: leading 20 bytes of SHA-256 of the bytecode and all
// secrets separated by spaces. Encrypted secrets are randomized, so the same
// contract with the same secrets always gets the same ID.
func GenerateContractID(bytecodeHex string, secrets []string) ContractID {
	sum := sha256.Sum256([]byte(bytecodeHex + " " + strings.Join(secrets, " ")))

	var id ContractID
	copy(id[:], sum[:])

	return id
}
