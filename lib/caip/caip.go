// Copyright 2026 The AgentMeta Authors
// SPDX-License-Identifier: Apache-2.0

// Package caip parses CAIP-2 chain identifiers and CAIP-10 account
// identifiers, the address formats ERC-8004 uses for registry and
// wallet references.
//
// CAIP-2:  namespace:reference            (eip155:1)
// CAIP-10: namespace:reference:address    (eip155:1:0xab16...9911)
//
// Character sets follow the CAIP specifications; no chain-specific
// address checksum validation happens here — the pipeline reports
// wallet addresses, it never cryptographically verifies them.
package caip

import (
	"fmt"
	"strings"
)

// ChainID is a parsed CAIP-2 chain identifier.
type ChainID struct {
	// Namespace is the chain-agnostic namespace, such as "eip155".
	Namespace string

	// Reference identifies the chain within the namespace, such as
	// "1" for Ethereum mainnet.
	Reference string
}

// String reassembles the canonical CAIP-2 form.
func (c ChainID) String() string {
	return c.Namespace + ":" + c.Reference
}

// AccountID is a parsed CAIP-10 account identifier.
type AccountID struct {
	ChainID

	// Address is the account address within the chain.
	Address string
}

// String reassembles the canonical CAIP-10 form.
func (a AccountID) String() string {
	return a.ChainID.String() + ":" + a.Address
}

// ParseChainID parses a CAIP-2 identifier.
func ParseChainID(s string) (ChainID, error) {
	namespace, reference, ok := strings.Cut(s, ":")
	if !ok {
		return ChainID{}, fmt.Errorf("chain id %q has no namespace separator", s)
	}
	if strings.Contains(reference, ":") {
		return ChainID{}, fmt.Errorf("chain id %q has too many segments (account id?)", s)
	}
	if err := checkNamespace(namespace); err != nil {
		return ChainID{}, fmt.Errorf("chain id %q: %w", s, err)
	}
	if err := checkReference(reference); err != nil {
		return ChainID{}, fmt.Errorf("chain id %q: %w", s, err)
	}
	return ChainID{Namespace: namespace, Reference: reference}, nil
}

// ParseAccountID parses a CAIP-10 identifier.
func ParseAccountID(s string) (AccountID, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 {
		return AccountID{}, fmt.Errorf("account id %q needs namespace:reference:address", s)
	}
	if err := checkNamespace(parts[0]); err != nil {
		return AccountID{}, fmt.Errorf("account id %q: %w", s, err)
	}
	if err := checkReference(parts[1]); err != nil {
		return AccountID{}, fmt.Errorf("account id %q: %w", s, err)
	}
	if err := checkAddress(parts[2]); err != nil {
		return AccountID{}, fmt.Errorf("account id %q: %w", s, err)
	}
	return AccountID{
		ChainID: ChainID{Namespace: parts[0], Reference: parts[1]},
		Address: parts[2],
	}, nil
}

// checkNamespace enforces the CAIP-2 namespace charset: [-a-z0-9]{3,8}.
func checkNamespace(s string) error {
	if len(s) < 3 || len(s) > 8 {
		return fmt.Errorf("namespace must be 3-8 characters, got %d", len(s))
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') && c != '-' {
			return fmt.Errorf("namespace has invalid character %q", c)
		}
	}
	return nil
}

// checkReference enforces the CAIP-2 reference charset:
// [-_a-zA-Z0-9]{1,32}.
func checkReference(s string) error {
	if len(s) < 1 || len(s) > 32 {
		return fmt.Errorf("reference must be 1-32 characters, got %d", len(s))
	}
	for i := 0; i < len(s); i++ {
		if !isReferenceChar(s[i]) {
			return fmt.Errorf("reference has invalid character %q", s[i])
		}
	}
	return nil
}

// checkAddress enforces the CAIP-10 address charset:
// [-.%a-zA-Z0-9]{1,128}.
func checkAddress(s string) error {
	if len(s) < 1 || len(s) > 128 {
		return fmt.Errorf("address must be 1-128 characters, got %d", len(s))
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !isReferenceChar(c) && c != '.' && c != '%' {
			return fmt.Errorf("address has invalid character %q", c)
		}
	}
	return nil
}

func isReferenceChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '-' || c == '_':
		return true
	}
	return false
}
