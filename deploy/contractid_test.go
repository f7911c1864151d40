package deploy

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateContractID(t *testing.T) {
	const bytecode = "0x608060405234801561001057600080fd5b50"

	t.Run("format", func(t *testing.T) {
		id := GenerateContractID(bytecode, []string{"a", "b"})

		sum := sha256.Sum256([]byte(bytecode + " a b"))
		require.Equal(t, "0x"+hex.EncodeToString(sum[:])[:40], id.String())
		require.Len(t, id.String(), 42)
	})

	t.Run("no secrets", func(t *testing.T) {
		sum := sha256.Sum256([]byte(bytecode + " "))
		require.Equal(t, "0x"+hex.EncodeToString(sum[:20]), GenerateContractID(bytecode, nil).String())
		require.Equal(t, GenerateContractID(bytecode, nil), GenerateContractID(bytecode, []string{}))
	})

	t.Run("deterministic", func(t *testing.T) {
		require.Equal(t,
			GenerateContractID(bytecode, []string{"key1", "key2"}),
			GenerateContractID(bytecode, []string{"key1", "key2"}),
		)
	})

	for _, tc := range []struct {
		name              string
		bytecode1, bytec2 string
		s1, s2            []string
	}{
		{name: "other secret", bytecode1: bytecode, bytec2: bytecode, s1: []string{"key1"}, s2: []string{"key2"}},
		{name: "other order", bytecode1: bytecode, bytec2: bytecode, s1: []string{"a", "b"}, s2: []string{"b", "a"}},
		{name: "extra secret", bytecode1: bytecode, bytec2: bytecode, s1: []string{"a"}, s2: []string{"a", "b"}},
		{name: "other bytecode", bytecode1: bytecode, bytec2: bytecode + "00", s1: []string{"a"}, s2: []string{"a"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			require.NotEqual(t, GenerateContractID(tc.bytecode1, tc.s1), GenerateContractID(tc.bytec2, tc.s2))
		})
	}
}
