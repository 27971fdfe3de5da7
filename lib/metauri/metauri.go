// Copyright 2026 The AgentMeta Authors
// SPDX-License-Identifier: Apache-2.0

// Package metauri classifies agent-metadata URIs.
//
// An ERC-8004 identity record may point at its metadata through an
// inline data URI, a content-addressed IPFS or Arweave object, or a
// mutable HTTPS resource. Classify inspects the raw string exactly once
// and returns an immutable MetadataURI; the classification is never
// revisited after fetch. Classification is total: unparsable input
// yields SchemeMalformed with a reason, never an error or a panic.
package metauri

import (
	"net/url"
	"strings"
)

// Scheme identifies which transport a metadata URI uses.
type Scheme int

const (
	// SchemeMalformed marks input that matched no supported scheme.
	SchemeMalformed Scheme = iota

	// SchemeData is an inline data: URI. Content-addressed by
	// construction — the URI is the content.
	SchemeData

	// SchemeIPFS is an ipfs:// URI carrying a CID, fetched through the
	// configured gateway list.
	SchemeIPFS

	// SchemeArweave is an ar:// URI carrying a transaction id.
	SchemeArweave

	// SchemeHTTPS is a plain https:// URL. The only mutable scheme.
	SchemeHTTPS
)

// String returns the lowercase scheme name.
func (s Scheme) String() string {
	switch s {
	case SchemeData:
		return "data"
	case SchemeIPFS:
		return "ipfs"
	case SchemeArweave:
		return "arweave"
	case SchemeHTTPS:
		return "https"
	default:
		return "malformed"
	}
}

// ContentAddressed reports whether the scheme guarantees that the URI's
// content cannot change without the URI itself changing. Drives the
// cache retention policy: content-addressed results are evicted by
// capacity or TTL, never because the origin may have mutated.
func (s Scheme) ContentAddressed() bool {
	return s == SchemeData || s == SchemeIPFS || s == SchemeArweave
}

// ReasonKind classifies why input failed classification. The kind is
// the stable, programmatic form of the human-readable Reason string:
// downstream diagnostic mapping switches on it, never on the text.
type ReasonKind int

const (
	// ReasonNone marks a well-formed URI.
	ReasonNone ReasonKind = iota

	// ReasonInvalid marks input that is empty, relative, or does not
	// match any scheme's shape.
	ReasonInvalid

	// ReasonUnsupportedScheme marks input with a recognizable scheme
	// outside the supported set, plaintext http included.
	ReasonUnsupportedScheme
)

// Encoding describes the payload encoding a data URI declared.
type Encoding int

const (
	// EncodingNone means the payload is percent-encoded text.
	EncodingNone Encoding = iota

	// EncodingBase64 means the URI declared ;base64 and the payload
	// looks like base64.
	EncodingBase64

	// EncodingAmbiguousBase64 means the URI declared ;base64 but the
	// payload begins with '{' — the producer almost certainly forgot
	// to encode. The parser resolves the ambiguity: base64 is tried
	// first, and if the plain-JSON path is taken the pipeline records
	// a diagnostic.
	EncodingAmbiguousBase64
)

// MetadataURI is the immutable result of classifying a raw URI string.
// Only the accessors relevant to the classified scheme return
// meaningful values.
type MetadataURI struct {
	raw    string
	scheme Scheme

	// data URIs
	mediaType string
	params    map[string]string
	encoding  Encoding
	payload   string

	// ipfs
	cid     string
	subpath string

	// arweave
	txID string

	// https
	urlStr string

	// malformed
	reason     string
	reasonKind ReasonKind
}

// Classify inspects raw and assigns it exactly one scheme. It never
// fails: anything that does not match a supported scheme — including
// relative URIs, scheme-free strings, plaintext http, and
// scheme-confused hybrids — classifies as SchemeMalformed with a
// reason string.
func Classify(raw string) MetadataURI {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return malformed(raw, "empty URI")
	}

	lower := strings.ToLower(trimmed)
	switch {
	case strings.HasPrefix(lower, "data:"):
		return classifyData(trimmed)
	case strings.HasPrefix(lower, "ipfs://"):
		return classifyIPFS(trimmed)
	case strings.HasPrefix(lower, "ar://"):
		return classifyArweave(trimmed)
	case strings.HasPrefix(lower, "https://"):
		return classifyHTTPS(trimmed)
	case strings.HasPrefix(lower, "http://"):
		return unsupported(raw, "plaintext http is not a supported scheme")
	}

	if i := strings.Index(trimmed, "://"); i > 0 {
		return unsupported(raw, "unsupported scheme "+strings.ToLower(trimmed[:i]))
	}
	return malformed(raw, "relative or scheme-free URI")
}

func malformed(raw, reason string) MetadataURI {
	return MetadataURI{raw: raw, scheme: SchemeMalformed, reason: reason, reasonKind: ReasonInvalid}
}

func unsupported(raw, reason string) MetadataURI {
	return MetadataURI{raw: raw, scheme: SchemeMalformed, reason: reason, reasonKind: ReasonUnsupportedScheme}
}

func classifyData(raw string) MetadataURI {
	// data:[<mediatype>][;param=value...][;base64],<payload>
	rest := raw[len("data:"):]
	comma := strings.IndexByte(rest, ',')
	if comma < 0 {
		return malformed(raw, "data URI has no comma separating metadata from payload")
	}
	meta, payload := rest[:comma], rest[comma+1:]

	u := MetadataURI{
		raw:       raw,
		scheme:    SchemeData,
		mediaType: "text/plain",
		payload:   payload,
	}

	declaredBase64 := false
	for i, seg := range strings.Split(meta, ";") {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		if i == 0 && !strings.Contains(seg, "=") {
			u.mediaType = strings.ToLower(seg)
			continue
		}
		if strings.EqualFold(seg, "base64") {
			declaredBase64 = true
			continue
		}
		if k, v, ok := strings.Cut(seg, "="); ok {
			if u.params == nil {
				u.params = make(map[string]string)
			}
			u.params[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
		}
	}

	if declaredBase64 {
		u.encoding = EncodingBase64
		// The anomaly: a base64 marker followed by raw JSON. The
		// producer forgot to encode. Classification records the
		// ambiguity; the parser resolves it.
		if strings.HasPrefix(strings.TrimSpace(payload), "{") {
			u.encoding = EncodingAmbiguousBase64
		}
	}
	return u
}

func classifyIPFS(raw string) MetadataURI {
	rest := raw[len("ipfs://"):]
	// Tolerate the common ipfs://ipfs/<cid> confusion.
	rest = strings.TrimPrefix(rest, "ipfs/")
	if rest == "" {
		return malformed(raw, "ipfs URI has no CID")
	}
	cid, subpath, _ := strings.Cut(rest, "/")
	if !validCID(cid) {
		return malformed(raw, "ipfs URI carries an invalid CID")
	}
	return MetadataURI{raw: raw, scheme: SchemeIPFS, cid: cid, subpath: subpath}
}

func classifyArweave(raw string) MetadataURI {
	txID := raw[len("ar://"):]
	if txID == "" {
		return malformed(raw, "ar URI has no transaction id")
	}
	for i := 0; i < len(txID); i++ {
		if !isBase64URLChar(txID[i]) {
			return malformed(raw, "ar URI transaction id has invalid characters")
		}
	}
	return MetadataURI{raw: raw, scheme: SchemeArweave, txID: txID}
}

func classifyHTTPS(raw string) MetadataURI {
	parsed, err := url.Parse(raw)
	if err != nil {
		return malformed(raw, "unparsable https URL")
	}
	if parsed.Host == "" {
		return malformed(raw, "https URL has no host")
	}
	// Canonicalize the host so equivalent URLs share a cache key.
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Scheme = "https"
	return MetadataURI{raw: raw, scheme: SchemeHTTPS, urlStr: parsed.String()}
}

// validCID accepts CIDv0 (Qm..., 46 chars, base58) and CIDv1 (b-prefix
// multibase, base32 lowercase). This is a shape check, not a full
// multihash decode — gateways reject CIDs that pass shape but fail
// checksum, and that surfaces as a fetch failure.
func validCID(cid string) bool {
	if strings.HasPrefix(cid, "Qm") && len(cid) == 46 {
		for i := 0; i < len(cid); i++ {
			if !isBase58Char(cid[i]) {
				return false
			}
		}
		return true
	}
	if len(cid) >= 46 && cid[0] == 'b' {
		for i := 0; i < len(cid); i++ {
			c := cid[i]
			if (c < 'a' || c > 'z') && (c < '2' || c > '7') {
				return false
			}
		}
		return true
	}
	return false
}

func isBase58Char(c byte) bool {
	switch {
	case c >= '1' && c <= '9':
		return true
	case c >= 'A' && c <= 'Z':
		return c != 'I' && c != 'O'
	case c >= 'a' && c <= 'z':
		return c != 'l'
	}
	return false
}

func isBase64URLChar(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return true
	case c == '-' || c == '_':
		return true
	}
	return false
}

// Scheme returns the classified scheme.
func (u MetadataURI) Scheme() Scheme { return u.scheme }

// Raw returns the original input string, untrimmed of meaning but
// whitespace-trimmed during classification.
func (u MetadataURI) Raw() string { return u.raw }

// Reason returns the malformed-classification reason. Empty for
// well-formed URIs.
func (u MetadataURI) Reason() string { return u.reason }

// ReasonKind returns the malformed-classification kind. ReasonNone for
// well-formed URIs.
func (u MetadataURI) ReasonKind() ReasonKind { return u.reasonKind }

// MediaType returns the data URI media type (lowercased), defaulting to
// text/plain per RFC 2397.
func (u MetadataURI) MediaType() string { return u.mediaType }

// Param returns a data URI media-type parameter, such as the enc=
// compression marker.
func (u MetadataURI) Param(name string) (string, bool) {
	v, ok := u.params[strings.ToLower(name)]
	return v, ok
}

// Encoding returns the declared payload encoding of a data URI.
func (u MetadataURI) Encoding() Encoding { return u.encoding }

// Payload returns the raw (still encoded) payload of a data URI.
func (u MetadataURI) Payload() string { return u.payload }

// CID returns the content identifier of an IPFS URI.
func (u MetadataURI) CID() string { return u.cid }

// Subpath returns the optional path below the CID of an IPFS URI.
func (u MetadataURI) Subpath() string { return u.subpath }

// TxID returns the transaction id of an Arweave URI.
func (u MetadataURI) TxID() string { return u.txID }

// URL returns the canonicalized URL string of an HTTPS URI.
func (u MetadataURI) URL() string { return u.urlStr }

// CacheKey returns the canonical string form used as the result-cache
// key. Equivalent URIs (gateway-prefixed IPFS forms, mixed-case hosts)
// share a key; malformed input keys on the raw string.
func (u MetadataURI) CacheKey() string {
	switch u.scheme {
	case SchemeIPFS:
		if u.subpath != "" {
			return "ipfs://" + u.cid + "/" + u.subpath
		}
		return "ipfs://" + u.cid
	case SchemeArweave:
		return "ar://" + u.txID
	case SchemeHTTPS:
		return u.urlStr
	default:
		return u.raw
	}
}
