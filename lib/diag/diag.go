// Copyright 2026 The AgentMeta Authors
// SPDX-License-Identifier: Apache-2.0

// Package diag defines the classified diagnostic records produced by the
// metadata resolution pipeline.
//
// Validation findings are accumulated as data rather than raised as
// errors, because a single resolution routinely produces several
// coexisting findings and downstream consumers (registries, reputation
// indexers) apply their own acceptance policy over the full list. Only
// Critical parse failures short-circuit the pipeline, and even those are
// reported through the same Diagnostic type.
//
// Diagnostic codes follow the grammar <Severity><Object><Number> where
// Severity is E, W, or I, Object is A (agent metadata) or F (feedback),
// and Number is a zero-padded three-digit code. The catalog here is the
// authoritative one for interoperability: codes are never renumbered.
package diag

// Severity classifies how a diagnostic affects document availability.
type Severity int

const (
	// SeverityError marks a Critical finding: parsing could not
	// produce a document (malformed URI, invalid JSON, decompression
	// bomb, exhausted gateways). A resolution with an Error diagnostic
	// has no document.
	SeverityError Severity = iota

	// SeverityWarning marks a deviation from recommended practice in a
	// document that was still produced. Warnings never abort
	// resolution; whether they reject a document is a caller decision.
	SeverityWarning

	// SeverityInfo marks an advisory finding that is expected in
	// normal operation, such as a registration that has not yet been
	// assigned an onchain agent id.
	SeverityInfo
)

// String returns the lowercase severity name.
func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInfo:
		return "info"
	default:
		return "unknown"
	}
}

// Code is a stable diagnostic identifier such as "EA007" or "WA031".
type Code string

// Agent-metadata error codes. An error diagnostic is Critical: the
// pipeline stops at the failure point and the result carries no document.
const (
	// CodeInvalidURI: the metadata URI is empty or unparsable.
	CodeInvalidURI Code = "EA001"

	// CodeInvalidJSON: the payload bytes are not valid UTF-8 JSON.
	CodeInvalidJSON Code = "EA002"

	// CodeInvalidBase64: the URI declared a base64 envelope that could
	// not be decoded (and the unencoded fallback did not apply).
	CodeInvalidBase64 Code = "EA003"

	// CodeDecompressionBomb: decompressed output hit the safety
	// ceiling before completion. Emitted the instant the ceiling would
	// be exceeded, during streaming, never after the fact.
	CodeDecompressionBomb Code = "EA004"

	// CodeDecompressionFailed: a whitelisted compression envelope was
	// declared but the payload failed to decompress.
	CodeDecompressionFailed Code = "EA005"

	// CodeUnsupportedScheme: the URI carries a scheme outside the
	// supported set, or a scheme-confused hybrid.
	CodeUnsupportedScheme Code = "EA006"

	// CodeGatewaysExhausted: every configured IPFS gateway timed out
	// or returned a non-2xx status.
	CodeGatewaysExhausted Code = "EA007"

	// CodeHTTPSFetchFailed: the single HTTPS attempt failed
	// (timeout, DNS, TLS, or non-2xx status). HTTPS fetches are never
	// retried.
	CodeHTTPSFetchFailed Code = "EA008"

	// CodeArweaveFetchFailed: the single Arweave gateway attempt
	// failed.
	CodeArweaveFetchFailed Code = "EA009"

	// CodeRootNotObject: the payload parsed as JSON but the root value
	// is not an object.
	CodeRootNotObject Code = "EA010"
)

// Agent-metadata warning codes. The document was produced but deviates
// from recommended practice.
const (
	// CodeMissingType: the document has no `type` field.
	CodeMissingType Code = "WA001"

	// CodeMissingName: the document has no `name` field.
	CodeMissingName Code = "WA002"

	// CodeMissingDescription: the document has no `description` field.
	CodeMissingDescription Code = "WA003"

	// CodeWrongShape: a structural field that must be a list or object
	// carries a different JSON type.
	CodeWrongShape Code = "WA004"

	// CodeUnknownType: `type` is present but is not a recognized
	// registration type value.
	CodeUnknownType Code = "WA005"

	// CodeServiceMissingEndpoint: a service entry has no endpoint.
	CodeServiceMissingEndpoint Code = "WA020"

	// CodeOASFMissingTaxonomy: an OASF service declares neither
	// `skills` nor `domains`.
	CodeOASFMissingTaxonomy Code = "WA021"

	// CodeWalletNotCAIP10: an agentWallet endpoint is not a CAIP-10
	// account identifier.
	CodeWalletNotCAIP10 Code = "WA022"

	// CodeA2ANotWellKnown: an A2A endpoint does not use the well-known
	// agent-card path.
	CodeA2ANotWellKnown Code = "WA023"

	// CodeLegacyEndpoints: the document uses the legacy `endpoints`
	// field with no `services` present.
	CodeLegacyEndpoints Code = "WA031"

	// CodeUnencodedBase64: the URI declared base64 but the payload was
	// plain JSON, and the unencoded path was taken.
	CodeUnencodedBase64 Code = "WA050"

	// CodeMalformedCAIP: an address-bearing field does not parse as
	// CAIP-2/CAIP-10.
	CodeMalformedCAIP Code = "WA060"

	// CodeBadTimestamp: `updatedAt` is not an ISO 8601 UTC timestamp.
	CodeBadTimestamp Code = "WA061"

	// CodeHashMismatch: the keccak-256 hash of the resolved content
	// does not match the onchain record.
	CodeHashMismatch Code = "WA070"

	// CodeRegistrationConflict: a registration entry contradicts the
	// onchain registry/agent id supplied by the caller.
	CodeRegistrationConflict Code = "WA080"
)

// Agent-metadata info codes. Advisory findings expected in normal
// operation.
const (
	// CodeMissingImage: the document has no `image` field.
	CodeMissingImage Code = "IA001"

	// CodeNoServices: the document has no services, or an empty
	// services list.
	CodeNoServices Code = "IA002"

	// CodeRegistryNoAddress: a registration's `agentRegistry` is a
	// bare CAIP-2 chain id without a contract address.
	CodeRegistryNoAddress Code = "IA003"

	// CodeUnknownService: a service entry's `name` is not one of the
	// known service types. The entry is preserved verbatim.
	CodeUnknownService Code = "IA004"

	// CodeMissingAgentID: a registration has a null or absent
	// `agentId`. Expected on first deployment, before the onchain
	// registration is mined.
	CodeMissingAgentID Code = "IA006"

	// CodeActiveAbsent: `active` is absent and the agent is treated
	// as inactive.
	CodeActiveAbsent Code = "IA007"

	// CodeUnknownTrustModel: a `supportedTrust` entry is outside the
	// known enum. Not an error, for forward compatibility.
	CodeUnknownTrustModel Code = "IA009"
)

// Severity derives the severity class from the code's leading letter.
// Codes outside the grammar report SeverityError so that a corrupted
// code is never silently treated as advisory.
func (c Code) Severity() Severity {
	if len(c) == 0 {
		return SeverityError
	}
	switch c[0] {
	case 'W':
		return SeverityWarning
	case 'I':
		return SeverityInfo
	default:
		return SeverityError
	}
}

// Valid reports whether the code matches the grammar
// ^[EWI][AF][0-9]{3}$.
func (c Code) Valid() bool {
	if len(c) != 5 {
		return false
	}
	if c[0] != 'E' && c[0] != 'W' && c[0] != 'I' {
		return false
	}
	if c[1] != 'A' && c[1] != 'F' {
		return false
	}
	for i := 2; i < 5; i++ {
		if c[i] < '0' || c[i] > '9' {
			return false
		}
	}
	return true
}

// Diagnostic is one classified finding from resolution or validation.
type Diagnostic struct {
	// Code is the stable catalog identifier.
	Code Code `cbor:"code" json:"code"`

	// Severity is derived from the code and stored explicitly so that
	// serialized diagnostics are self-describing.
	Severity Severity `cbor:"severity" json:"severity"`

	// Message is the human-readable description of this specific
	// occurrence.
	Message string `cbor:"message" json:"message"`

	// FieldPath locates the finding within the document, such as
	// "services[2].endpoint". Empty for document-level and
	// transport-level findings.
	FieldPath string `cbor:"fieldPath,omitempty" json:"fieldPath,omitempty"`
}

// New constructs a Diagnostic with the severity derived from the code.
func New(code Code, fieldPath, message string) Diagnostic {
	return Diagnostic{
		Code:      code,
		Severity:  code.Severity(),
		Message:   message,
		FieldPath: fieldPath,
	}
}
