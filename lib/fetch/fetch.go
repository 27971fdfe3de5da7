// Copyright 2026 The AgentMeta Authors
// SPDX-License-Identifier: Apache-2.0

// Package fetch retrieves raw metadata payloads for classified URIs.
//
// Inline data URIs are decoded without touching the network. IPFS URIs
// walk an ordered list of public gateways with a per-gateway timeout —
// there is no backoff between attempts, the next gateway is tried
// immediately, and the first success short-circuits the rest. Racing
// mode issues all gateway attempts at once and cancels the losers when
// one succeeds; the observable contract (first success wins,
// deterministic exhaustion diagnostic) is identical to sequential
// fallback. Arweave and HTTPS get exactly one attempt each: those
// schemes have no built-in redundancy, so the fetcher fails fast
// rather than retrying a single origin.
//
// Fetch failures are reported as diagnostics, not Go errors: the
// pipeline treats an unreachable document the same way it treats an
// unparsable one.
package fetch

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/trustless-agents/agentmeta/lib/compress"
	"github.com/trustless-agents/agentmeta/lib/diag"
	"github.com/trustless-agents/agentmeta/lib/metauri"
)

// DefaultGateways is the ordered public IPFS gateway list. Order is
// part of the fetch contract: attempts walk the list front to back.
var DefaultGateways = []string{
	"https://ipfs.io/ipfs/",
	"https://cloudflare-ipfs.com/ipfs/",
	"https://gateway.pinata.cloud/ipfs/",
	"https://dweb.link/ipfs/",
}

const (
	// DefaultArweaveGateway serves ar:// transactions over HTTPS.
	DefaultArweaveGateway = "https://arweave.net/"

	// DefaultGatewayTimeout bounds each individual IPFS gateway
	// attempt. Timeouts are per-attempt: a full sequential fallback
	// can take up to len(gateways) times this value.
	DefaultGatewayTimeout = 10 * time.Second

	// DefaultHTTPSTimeout bounds the single HTTPS or Arweave attempt.
	DefaultHTTPSTimeout = 15 * time.Second

	// DefaultMaxPayloadBytes bounds the raw (still compressed) payload
	// read from any origin: 1 MiB. The decompression guard enforces
	// its own, much smaller ceiling on decompressed output.
	DefaultMaxPayloadBytes int64 = 1 << 20
)

// Config configures a Fetcher. Zero values take the defaults above.
type Config struct {
	// Gateways is the ordered IPFS gateway base URL list. Each base is
	// concatenated with the CID.
	Gateways []string

	// ArweaveGateway is the base URL for ar:// transaction fetches.
	ArweaveGateway string

	// GatewayTimeout bounds each IPFS gateway attempt.
	GatewayTimeout time.Duration

	// HTTPSTimeout bounds the single HTTPS/Arweave attempt.
	HTTPSTimeout time.Duration

	// RaceGateways issues all gateway attempts concurrently,
	// first-success-wins with loser cancellation, instead of
	// sequential fallback.
	RaceGateways bool

	// MaxPayloadBytes bounds the raw payload size.
	MaxPayloadBytes int64

	// Client is the HTTP client for all network fetches. A nil client
	// gets a default one; per-attempt timeouts come from contexts, not
	// from the client.
	Client *http.Client

	// Logger receives per-attempt debug logging. Nil disables logging.
	Logger *slog.Logger
}

// Payload is the raw fetched content plus its provenance.
type Payload struct {
	// Bytes is the raw payload, still compressed if an envelope was
	// detected.
	Bytes []byte

	// Scheme is the scheme that produced the payload.
	Scheme metauri.Scheme

	// Source identifies the origin: "inline" for data URIs, the
	// gateway base URL for IPFS/Arweave, the host for HTTPS.
	Source string

	// Envelope is the detected compression envelope, nil when the
	// payload is uncompressed (or the marker was not whitelisted).
	Envelope *compress.Envelope

	// UnencodedFallback reports that the URI declared base64 but the
	// payload was taken as plain JSON (the producer forgot to encode).
	// The pipeline records WA050 when set.
	UnencodedFallback bool
}

// Fetcher retrieves payloads. Safe for concurrent use.
type Fetcher struct {
	gateways       []string
	arweaveGateway string
	gatewayTimeout time.Duration
	httpsTimeout   time.Duration
	race           bool
	maxBytes       int64
	client         *http.Client
	logger         *slog.Logger
}

// New builds a Fetcher, filling unset Config fields with defaults.
func New(cfg Config) *Fetcher {
	f := &Fetcher{
		gateways:       cfg.Gateways,
		arweaveGateway: cfg.ArweaveGateway,
		gatewayTimeout: cfg.GatewayTimeout,
		httpsTimeout:   cfg.HTTPSTimeout,
		race:           cfg.RaceGateways,
		maxBytes:       cfg.MaxPayloadBytes,
		client:         cfg.Client,
		logger:         cfg.Logger,
	}
	if len(f.gateways) == 0 {
		f.gateways = DefaultGateways
	}
	if f.arweaveGateway == "" {
		f.arweaveGateway = DefaultArweaveGateway
	}
	if f.gatewayTimeout <= 0 {
		f.gatewayTimeout = DefaultGatewayTimeout
	}
	if f.httpsTimeout <= 0 {
		f.httpsTimeout = DefaultHTTPSTimeout
	}
	if f.maxBytes <= 0 {
		f.maxBytes = DefaultMaxPayloadBytes
	}
	if f.client == nil {
		f.client = &http.Client{}
	}
	return f
}

// Fetch retrieves the raw payload for a classified URI. The returned
// diagnostic is non-nil exactly when no payload could be produced.
func (f *Fetcher) Fetch(ctx context.Context, uri metauri.MetadataURI) (Payload, *diag.Diagnostic) {
	switch uri.Scheme() {
	case metauri.SchemeData:
		return decodeDataURI(uri)
	case metauri.SchemeIPFS:
		return f.fetchIPFS(ctx, uri)
	case metauri.SchemeArweave:
		return f.fetchArweave(ctx, uri)
	case metauri.SchemeHTTPS:
		return f.fetchHTTPS(ctx, uri)
	default:
		d := diag.New(diag.CodeUnsupportedScheme, "", "cannot fetch malformed URI: "+uri.Reason())
		return Payload{}, &d
	}
}

// decodeDataURI extracts the embedded bytes of a data URI, resolving
// the ambiguous-base64 anomaly: base64 decoding is tried first, and
// only when that fails and the payload starts with '{' is the plain
// path taken.
//
// Unencoded payloads are percent-decoded; a payload that fails
// percent-decoding (a stray '%') is deliberately passed through
// verbatim rather than rejected. Producers embed raw JSON without
// escaping it, and the parser's own JSON validation is the arbiter of
// whether the bytes are usable.
func decodeDataURI(uri metauri.MetadataURI) (Payload, *diag.Diagnostic) {
	payload := Payload{Scheme: metauri.SchemeData, Source: "inline"}
	payload.Envelope = envelopeFromParams(func(name string) (string, bool) { return uri.Param(name) })

	raw := uri.Payload()
	switch uri.Encoding() {
	case metauri.EncodingNone:
		decoded, err := url.PathUnescape(raw)
		if err != nil {
			decoded = raw
		}
		payload.Bytes = []byte(decoded)
		return payload, nil

	case metauri.EncodingBase64, metauri.EncodingAmbiguousBase64:
		if decoded, err := decodeBase64(raw); err == nil {
			payload.Bytes = decoded
			return payload, nil
		}
		if uri.Encoding() == metauri.EncodingAmbiguousBase64 {
			payload.Bytes = []byte(raw)
			payload.UnencodedFallback = true
			return payload, nil
		}
		d := diag.New(diag.CodeInvalidBase64, "", "data URI declared base64 but the payload does not decode")
		return Payload{}, &d
	}

	d := diag.New(diag.CodeInvalidURI, "", "unrecognized data URI encoding")
	return Payload{}, &d
}

// decodeBase64 accepts the standard and URL-safe alphabets, padded or
// not. Producers in the wild use all four.
func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	encodings := []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	}
	var lastErr error
	for _, enc := range encodings {
		decoded, err := enc.DecodeString(s)
		if err == nil {
			return decoded, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func (f *Fetcher) fetchIPFS(ctx context.Context, uri metauri.MetadataURI) (Payload, *diag.Diagnostic) {
	path := uri.CID()
	if uri.Subpath() != "" {
		path += "/" + uri.Subpath()
	}

	if f.race {
		return f.raceIPFS(ctx, path)
	}

	for _, gateway := range f.gateways {
		body, envelope, err := f.get(ctx, gateway+path, f.gatewayTimeout)
		if err == nil {
			return Payload{
				Bytes:    body,
				Scheme:   metauri.SchemeIPFS,
				Source:   gateway,
				Envelope: envelope,
			}, nil
		}
		if f.logger != nil {
			f.logger.Debug("ipfs gateway attempt failed",
				"gateway", gateway, "cid", uri.CID(), "error", err)
		}
	}

	d := diag.New(diag.CodeGatewaysExhausted, "",
		fmt.Sprintf("all %d IPFS gateways failed for CID %s", len(f.gateways), uri.CID()))
	return Payload{}, &d
}

// raceIPFS issues every gateway attempt at once. The first success
// cancels the rest; the goroutines are joined before return so no
// attempt outlives the call.
func (f *Fetcher) raceIPFS(ctx context.Context, path string) (Payload, *diag.Diagnostic) {
	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type attempt struct {
		body     []byte
		envelope *compress.Envelope
		gateway  string
		err      error
	}

	results := make(chan attempt, len(f.gateways))
	var wg sync.WaitGroup
	for _, gateway := range f.gateways {
		wg.Add(1)
		go func(gateway string) {
			defer wg.Done()
			body, envelope, err := f.get(raceCtx, gateway+path, f.gatewayTimeout)
			results <- attempt{body: body, envelope: envelope, gateway: gateway, err: err}
		}(gateway)
	}
	defer wg.Wait()

	for range f.gateways {
		a := <-results
		if a.err == nil {
			cancel()
			return Payload{
				Bytes:    a.body,
				Scheme:   metauri.SchemeIPFS,
				Source:   a.gateway,
				Envelope: a.envelope,
			}, nil
		}
		if f.logger != nil {
			f.logger.Debug("ipfs gateway attempt failed",
				"gateway", a.gateway, "error", a.err)
		}
	}

	d := diag.New(diag.CodeGatewaysExhausted, "",
		fmt.Sprintf("all %d IPFS gateways failed for %s", len(f.gateways), path))
	return Payload{}, &d
}

func (f *Fetcher) fetchArweave(ctx context.Context, uri metauri.MetadataURI) (Payload, *diag.Diagnostic) {
	body, envelope, err := f.get(ctx, f.arweaveGateway+uri.TxID(), f.httpsTimeout)
	if err != nil {
		d := diag.New(diag.CodeArweaveFetchFailed, "",
			fmt.Sprintf("arweave fetch for %s failed: %v", uri.TxID(), err))
		return Payload{}, &d
	}
	return Payload{
		Bytes:    body,
		Scheme:   metauri.SchemeArweave,
		Source:   f.arweaveGateway,
		Envelope: envelope,
	}, nil
}

func (f *Fetcher) fetchHTTPS(ctx context.Context, uri metauri.MetadataURI) (Payload, *diag.Diagnostic) {
	body, envelope, err := f.get(ctx, uri.URL(), f.httpsTimeout)
	if err != nil {
		d := diag.New(diag.CodeHTTPSFetchFailed, "",
			fmt.Sprintf("https fetch failed: %v", err))
		return Payload{}, &d
	}
	source := uri.URL()
	if parsed, err := url.Parse(uri.URL()); err == nil {
		source = parsed.Host
	}
	return Payload{
		Bytes:    body,
		Scheme:   metauri.SchemeHTTPS,
		Source:   source,
		Envelope: envelope,
	}, nil
}

// get performs one bounded HTTP attempt. Network-level success with a
// non-2xx status is a failure for this contract.
func (f *Fetcher) get(ctx context.Context, rawURL string, timeout time.Duration) ([]byte, *compress.Envelope, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, nil, fmt.Errorf("reading body: %w", err)
	}
	if int64(len(body)) > f.maxBytes {
		return nil, nil, fmt.Errorf("payload exceeds %d bytes", f.maxBytes)
	}

	return body, envelopeFromContentType(resp.Header.Get("Content-Type")), nil
}

// envelopeFromContentType detects an enc= compression marker in a
// response's Content-Type parameters.
func envelopeFromContentType(contentType string) *compress.Envelope {
	if contentType == "" {
		return nil
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil
	}
	return envelopeFromParams(func(name string) (string, bool) {
		v, ok := params[name]
		return v, ok
	})
}

// envelopeFromParams builds an Envelope from enc= (and the advisory
// size=) parameters. Markers outside the whitelist yield no envelope:
// the payload passes through uncompressed, for forward compatibility
// with algorithms this version does not know.
func envelopeFromParams(param func(string) (string, bool)) *compress.Envelope {
	marker, ok := param("enc")
	if !ok {
		return nil
	}
	algorithm, ok := compress.ParseAlgorithm(marker)
	if !ok {
		return nil
	}
	envelope := &compress.Envelope{Algorithm: algorithm, DeclaredSize: -1}
	if s, ok := param("size"); ok {
		if declared, err := strconv.ParseInt(s, 10, 64); err == nil {
			envelope.DeclaredSize = declared
		}
	}
	return envelope
}
