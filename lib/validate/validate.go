// Copyright 2026 The AgentMeta Authors
// SPDX-License-Identifier: Apache-2.0

// Package validate runs the five-level validation sequence over a
// parsed agent document.
//
// The levels run in a fixed order — syntax, schema, endpoints,
// semantic, status — and each appends diagnostics without ever halting
// the pipeline: once a document exists, all five levels always run, so
// a caller gets the complete picture in one pass and can apply its own
// acceptance policy. Severity lives in the diagnostic codes, not in
// control flow.
//
// The semantic level optionally cross-checks the document against
// onchain state supplied by the caller: the keccak-256 hash of the
// resolved content against the registered hash, and the registrations
// list against the registry/agent id the caller read from chain.
package validate

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/sha3"

	"github.com/trustless-agents/agentmeta/lib/caip"
	"github.com/trustless-agents/agentmeta/lib/diag"
	"github.com/trustless-agents/agentmeta/lib/document"
)

// OnchainContext carries the identity-registry state for semantic
// cross-checks. Supplied by the caller's registry reader; this package
// never talks to a chain.
type OnchainContext struct {
	// AgentID is the onchain agent id the document is expected to
	// register.
	AgentID uint64

	// AgentHash is the keccak-256 content hash recorded onchain, nil
	// to skip the hash comparison.
	AgentHash []byte

	// RegistryAddress is the identity registry, as a CAIP-10 account
	// id (eip155:1:0x...).
	RegistryAddress string
}

// knownTrustModels is the supportedTrust enum. Entries outside it are
// advisory findings, never errors — the set grows over time.
var knownTrustModels = map[string]bool{
	"reputation":      true,
	"crypto-economic": true,
	"tee-attestation": true,
}

// knownTypeValues are the recognized `type` field values: the ERC-8004
// registration type URI and the bare legacy form.
var knownTypeValues = map[string]bool{
	"https://eips.ethereum.org/EIPS/eip-8004#registration-v1": true,
	"AgentCard": true,
}

// wellKnownAgentCardPaths are the A2A agent-card locations an A2A
// endpoint SHOULD use.
var wellKnownAgentCardPaths = []string{
	"/.well-known/agent-card.json",
	"/.well-known/agent.json",
}

// Document runs the five context-free validation levels, appending to
// list. The document is read, never mutated.
func Document(doc *document.Document, list *diag.List) {
	levelSyntax(doc, list)
	levelSchema(doc, list)
	levelEndpoints(doc, list)
	levelSemantic(doc, list)
	levelStatus(doc, list)
}

// Onchain runs the context-dependent semantic checks: content hash
// against the onchain record and the registrations bidirectional
// check. raw must be the exact bytes the parser consumed. Kept apart
// from Document so cached resolutions can replay it per caller.
func Onchain(doc *document.Document, raw []byte, onchain *OnchainContext, list *diag.List) {
	if onchain == nil {
		return
	}

	if len(onchain.AgentHash) > 0 {
		hash := sha3.NewLegacyKeccak256()
		hash.Write(raw)
		if !bytes.Equal(hash.Sum(nil), onchain.AgentHash) {
			list.Addf(diag.CodeHashMismatch, "",
				"content hash does not match the onchain record for agent %d", onchain.AgentID)
		}
	}

	checkRegistrationsAgainstChain(doc, onchain, list)
}

// levelSyntax double-checks that structural fields expected to be
// lists actually are. Parse already guaranteed well-formed JSON and an
// object root; wrong-shaped structural fields are tolerated by the
// parser (the derived views stay empty) and flagged here.
func levelSyntax(doc *document.Document, list *diag.List) {
	root := doc.Root()
	for _, field := range []string{"services", "endpoints", "registrations", "supportedTrust"} {
		v, ok := root.Get(field)
		if !ok {
			continue
		}
		if _, isList := v.([]any); !isList {
			list.Addf(diag.CodeWrongShape, field, "%s must be a list", field)
		}
	}
}

// levelSchema flags absent SHOULD fields. MAY fields are never
// checked for presence.
func levelSchema(doc *document.Document, list *diag.List) {
	if doc.Type == "" {
		list.Addf(diag.CodeMissingType, "type", "document has no type field")
	} else if !knownTypeValues[doc.Type] {
		list.Addf(diag.CodeUnknownType, "type", "type %q is not a recognized registration type", doc.Type)
	}
	if doc.Name == "" {
		list.Addf(diag.CodeMissingName, "name", "document has no name field")
	}
	if doc.Description == "" {
		list.Addf(diag.CodeMissingDescription, "description", "document has no description field")
	}
	if doc.Image == "" {
		list.Addf(diag.CodeMissingImage, "image", "document has no image field")
	}
	if !doc.ServicesPresent {
		list.Addf(diag.CodeNoServices, "services", "document declares no services")
	}
}

// levelEndpoints applies the per-variant required-field checks to each
// service entry.
func levelEndpoints(doc *document.Document, list *diag.List) {
	if doc.LegacyEndpoints {
		list.Addf(diag.CodeLegacyEndpoints, "endpoints",
			"legacy endpoints field used; rename it to services")
	}

	for i, svc := range doc.Services {
		path := fmt.Sprintf("services[%d]", i)

		if svc.Endpoint == "" {
			list.Addf(diag.CodeServiceMissingEndpoint, path+".endpoint",
				"service %q has no endpoint", svc.Name)
		}

		switch svc.Kind {
		case document.ServiceOASF:
			if len(svc.Skills) == 0 && len(svc.Domains) == 0 {
				list.Addf(diag.CodeOASFMissingTaxonomy, path,
					"OASF service declares neither skills nor domains")
			}
		case document.ServiceAgentWallet:
			if svc.Endpoint != "" {
				if _, err := caip.ParseAccountID(svc.Endpoint); err != nil {
					list.Addf(diag.CodeWalletNotCAIP10, path+".endpoint",
						"agentWallet endpoint is not a CAIP-10 account id: %v", err)
				}
			}
		case document.ServiceA2A:
			if svc.Endpoint != "" && !usesWellKnownPath(svc.Endpoint) {
				list.Addf(diag.CodeA2ANotWellKnown, path+".endpoint",
					"A2A endpoint should serve the agent card at a well-known path")
			}
		case document.ServiceUnknown:
			list.Addf(diag.CodeUnknownService, path+".name",
				"unknown service type %q preserved verbatim", svc.Name)
		}
	}
}

// levelSemantic checks cross-field consistency: the supportedTrust
// enum, CAIP formats on address-bearing fields, and the updatedAt
// timestamp format.
func levelSemantic(doc *document.Document, list *diag.List) {
	for i, trust := range doc.SupportedTrust {
		if !knownTrustModels[trust] {
			list.Addf(diag.CodeUnknownTrustModel, fmt.Sprintf("supportedTrust[%d]", i),
				"unknown trust model %q", trust)
		}
	}

	for i, reg := range doc.Registrations {
		path := fmt.Sprintf("registrations[%d].agentRegistry", i)
		if reg.AgentRegistry == "" {
			list.Addf(diag.CodeMalformedCAIP, path, "registration has no agentRegistry")
			continue
		}
		if _, err := caip.ParseAccountID(reg.AgentRegistry); err == nil {
			continue
		}
		if _, err := caip.ParseChainID(reg.AgentRegistry); err == nil {
			list.Addf(diag.CodeRegistryNoAddress, path,
				"agentRegistry %q is a chain id without a registry address", reg.AgentRegistry)
			continue
		}
		list.Addf(diag.CodeMalformedCAIP, path,
			"agentRegistry %q is not a CAIP-2/CAIP-10 identifier", reg.AgentRegistry)
	}

	if doc.UpdatedAt != "" && !isISO8601UTC(doc.UpdatedAt) {
		list.Addf(diag.CodeBadTimestamp, "updatedAt",
			"updatedAt %q is not an ISO 8601 UTC timestamp", doc.UpdatedAt)
	}
}

// levelStatus applies the production-readiness checks: absent active
// means inactive, null agent ids are advisory, an empty services list
// is a warning-class finding rather than a failure.
func levelStatus(doc *document.Document, list *diag.List) {
	if doc.Active == nil {
		list.Addf(diag.CodeActiveAbsent, "active",
			"active is absent; the agent is treated as inactive")
	}

	for i, reg := range doc.Registrations {
		if reg.AgentID == nil {
			list.Addf(diag.CodeMissingAgentID, fmt.Sprintf("registrations[%d].agentId", i),
				"registration has no agentId yet")
		}
	}

	if doc.ServicesPresent && len(doc.Services) == 0 {
		list.Addf(diag.CodeNoServices, "services", "services list is empty")
	}
}

// checkRegistrationsAgainstChain verifies that the document's
// registrations agree with the registry entry the caller read from
// chain: a registration naming the caller's registry must carry the
// caller's agent id.
func checkRegistrationsAgainstChain(doc *document.Document, onchain *OnchainContext, list *diag.List) {
	if onchain.RegistryAddress == "" {
		return
	}

	matched := false
	for i, reg := range doc.Registrations {
		if !sameRegistry(reg.AgentRegistry, onchain.RegistryAddress) {
			continue
		}
		matched = true
		if reg.AgentID != nil && *reg.AgentID != onchain.AgentID {
			list.Addf(diag.CodeRegistrationConflict, fmt.Sprintf("registrations[%d].agentId", i),
				"registration claims agent id %d but the registry records %d",
				*reg.AgentID, onchain.AgentID)
		}
	}

	if len(doc.Registrations) > 0 && !matched {
		list.Addf(diag.CodeRegistrationConflict, "registrations",
			"no registration entry names registry %s", onchain.RegistryAddress)
	}
}

// sameRegistry compares registry identifiers case-insensitively on the
// address portion (EVM addresses are checksummed with mixed case but
// identify the same account).
func sameRegistry(a, b string) bool {
	return strings.EqualFold(a, b)
}

// usesWellKnownPath reports whether an A2A endpoint ends at one of the
// well-known agent-card locations.
func usesWellKnownPath(endpoint string) bool {
	for _, p := range wellKnownAgentCardPaths {
		if strings.HasSuffix(endpoint, p) {
			return true
		}
	}
	return false
}

// isISO8601UTC accepts RFC 3339 timestamps in UTC only: the date-time
// separator must be 'T' and the offset must be the literal 'Z'. Any
// numeric offset is rejected at this level, not silently accepted.
func isISO8601UTC(s string) bool {
	if !strings.Contains(s, "T") || !strings.HasSuffix(s, "Z") {
		return false
	}
	_, err := time.Parse(time.RFC3339, s)
	return err == nil
}
