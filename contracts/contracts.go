/*
Package contracts provides access to the compiled assertion contracts.

Contracts are looked up by name in the build output of the Solidity toolchain.
Supported files (first match in lexical order of the paths wins):

	<name>.json  Hardhat ("bytecode": "0x...") or Foundry ("bytecode": {"object": "0x..."}) artifact
	<name>.bin   solc output, hex without prefix
	<name>.hex   hex with or without 0x prefix
*/
package contracts

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"
)

const (
	artifactExt = ".json"
	binExt      = ".bin"
	hexExt      = ".hex"
)

var (
	// ErrContractNotFound is returned when there is no artifact of the
	// requested contract.
	ErrContractNotFound = errors.New("contract not found")

	// ErrInvalidBytecode is returned when contract artifact is found but
	// bytecode is missing or malformed.
	ErrInvalidBytecode = errors.New("invalid bytecode")
)

// Contract groups information about compiled assertion contract.
type Contract struct {
	Name string

	// Lower-case 0x-prefixed hex of the creation bytecode.
	Bytecode string
}

// Read reads named contract from the artifacts stored in fsys.
func Read(fsys fs.FS, name string) (Contract, error) {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return Contract{}, fmt.Errorf("invalid contract name '%s'", name)
	}

	p, err := find(fsys, name)
	if err != nil {
		return Contract{}, err
	}

	b, err := readBytecode(fsys, p)
	if err != nil {
		return Contract{}, fmt.Errorf("read contract '%s' from '%s': %w", name, p, err)
	}

	return Contract{
		Name:     name,
		Bytecode: b,
	}, nil
}

func find(fsys fs.FS, name string) (string, error) {
	var res string

	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		switch d.Name() {
		case name + artifactExt, name + binExt, name + hexExt:
			res = p
			return fs.SkipAll
		}

		return nil
	})
	if err != nil {
		return "", fmt.Errorf("scan artifacts: %w", err)
	}

	if res == "" {
		return "", fmt.Errorf("%w: '%s'", ErrContractNotFound, name)
	}

	return res, nil
}

// artifact is a subset of Hardhat and Foundry artifact fields.
type artifact struct {
	Bytecode artifactBytecode `json:"bytecode"`
}

// artifactBytecode is either a hex string (Hardhat) or an object with hex
// string field (Foundry).
type artifactBytecode string

// UnmarshalJSON implements [json.Unmarshaler].
func (x *artifactBytecode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*x = artifactBytecode(s)
		return nil
	}

	var obj struct {
		Object string `json:"object"`
	}

	err := json.Unmarshal(data, &obj)
	if err != nil {
		return err
	}

	*x = artifactBytecode(obj.Object)

	return nil
}

func readBytecode(fsys fs.FS, p string) (string, error) {
	data, err := fs.ReadFile(fsys, p)
	if err != nil {
		return "", err
	}

	var s string

	if path.Ext(p) == artifactExt {
		var a artifact

		err = json.Unmarshal(data, &a)
		if err != nil {
			return "", fmt.Errorf("%w: decode artifact JSON: %w", ErrInvalidBytecode, err)
		}

		s = string(a.Bytecode)
	} else {
		s = string(data)
	}

	return normalizeBytecode(s)
}

func normalizeBytecode(s string) (string, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "0x")
	s = strings.ToLower(s)

	if s == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidBytecode)
	}

	_, err := hex.DecodeString(s)
	if err != nil {
		// unlinked libraries are left as '__$<hash>$__' placeholders
		return "", fmt.Errorf("%w: %w", ErrInvalidBytecode, err)
	}

	return "0x" + s, nil
}
