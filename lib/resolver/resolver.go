// Copyright 2026 The AgentMeta Authors
// SPDX-License-Identifier: Apache-2.0

// Package resolver composes the metadata pipeline into one call:
// classify, fetch, decompress, parse, validate, cache.
//
// Resolve is synchronous and safe to call from many goroutines; the
// shared cache is the only mutable state. Identical in-flight
// resolutions are collapsed through singleflight — an optimization
// with no observable effect beyond fewer fetches, since concurrent
// resolutions of one URI produce byte-equivalent cache entries anyway.
//
// A resolution always returns the complete diagnostics list, success
// or not. Critical failures return a result with no document and the
// diagnostics accumulated up to the failure point; failures are cached
// like successes so a broken URI is not hammered inside its TTL.
package resolver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/trustless-agents/agentmeta/lib/cache"
	"github.com/trustless-agents/agentmeta/lib/compress"
	"github.com/trustless-agents/agentmeta/lib/config"
	"github.com/trustless-agents/agentmeta/lib/diag"
	"github.com/trustless-agents/agentmeta/lib/document"
	"github.com/trustless-agents/agentmeta/lib/fetch"
	"github.com/trustless-agents/agentmeta/lib/metauri"
	"github.com/trustless-agents/agentmeta/lib/validate"
)

// Source reports where a resolution result came from.
type Source int

const (
	// SourceFresh means the pipeline ran end to end for this call.
	SourceFresh Source = iota

	// SourceCacheHit means the result was replayed from the cache.
	SourceCacheHit
)

// String returns the lowercase source name.
func (s Source) String() string {
	if s == SourceCacheHit {
		return "cache"
	}
	return "fresh"
}

// ResolutionResult is the complete outcome of one resolution.
type ResolutionResult struct {
	// Document is nil exactly when a Critical diagnostic halted
	// parsing.
	Document *document.Document

	// Diagnostics is the ordered, de-duplicated finding list. Always
	// populated, even on success (it may be empty).
	Diagnostics []diag.Diagnostic

	// Source reports fresh resolution versus cache replay.
	Source Source

	// FetchedFrom identifies the scheme and origin, such as
	// "ipfs:https://ipfs.io/ipfs/" or "data:inline".
	FetchedFrom string
}

// Options carries the non-serializable collaborators a Config cannot.
type Options struct {
	// Logger receives resolution-outcome logging. Nil disables it.
	Logger *slog.Logger

	// HTTPClient overrides the fetcher's HTTP client.
	HTTPClient *http.Client

	// Redis overrides the remote cache tier built from
	// Config.Cache.RedisAddr.
	Redis *redis.Client
}

// Resolver is the resolution orchestrator. Safe for concurrent use.
type Resolver struct {
	fetcher *fetch.Fetcher
	cache   *cache.Cache
	group   singleflight.Group
	logger  *slog.Logger

	// ownedRedis is the client built from config, closed by Close.
	// Injected clients belong to the caller.
	ownedRedis *redis.Client
}

// New builds a Resolver from configuration.
func New(cfg config.Config, opts Options) (*Resolver, error) {
	rdb := opts.Redis
	var owned *redis.Client
	if rdb == nil && cfg.Cache.RedisAddr != "" {
		owned = redis.NewClient(&redis.Options{
			Addr: cfg.Cache.RedisAddr,
			DB:   cfg.Cache.RedisDB,
		})
		rdb = owned
	}

	resultCache, err := cache.New(cache.Config{
		MemoryEntries: cfg.Cache.MemoryEntries,
		ContentTTL:    cfg.Cache.ContentTTL,
		HTTPSTTL:      cfg.Cache.HTTPSTTL,
		Redis:         rdb,
		KeyPrefix:     cfg.Cache.KeyPrefix,
		Logger:        opts.Logger,
	})
	if err != nil {
		if owned != nil {
			owned.Close()
		}
		return nil, err
	}

	return &Resolver{
		fetcher: fetch.New(fetch.Config{
			Gateways:        cfg.Fetch.Gateways,
			ArweaveGateway:  cfg.Fetch.ArweaveGateway,
			GatewayTimeout:  cfg.Fetch.GatewayTimeout,
			HTTPSTimeout:    cfg.Fetch.HTTPSTimeout,
			RaceGateways:    cfg.Fetch.RaceGateways,
			MaxPayloadBytes: cfg.Fetch.MaxPayloadBytes,
			Client:          opts.HTTPClient,
			Logger:          opts.Logger,
		}),
		cache:      resultCache,
		logger:     opts.Logger,
		ownedRedis: owned,
	}, nil
}

// Close releases the remote cache connection if the resolver built it.
func (r *Resolver) Close() error {
	if r.ownedRedis != nil {
		return r.ownedRedis.Close()
	}
	return nil
}

// Resolve runs the full pipeline for one URI. The optional onchain
// context enables the semantic cross-checks (content hash, registration
// consistency); those run per call, on fresh results and cache replays
// alike, since different callers may supply different chain state for
// one URI.
func (r *Resolver) Resolve(ctx context.Context, rawURI string, onchain *validate.OnchainContext) ResolutionResult {
	uri := metauri.Classify(rawURI)
	key := uri.CacheKey()

	if entry, ok := r.cache.Get(ctx, key); ok {
		result := r.assemble(entry.Result, onchain, SourceCacheHit)
		r.logOutcome(key, result)
		return result
	}

	v, _, _ := r.group.Do(key, func() (any, error) {
		res := r.resolveFresh(ctx, uri)
		// Write-through happens for every outcome, failed resolutions
		// included, so lookups of a broken URI inside its TTL window
		// replay the failure instead of re-fetching.
		r.cache.Put(ctx, key, uri.Scheme(), res)
		return res, nil
	})

	result := r.assemble(v.(cache.Result), onchain, SourceFresh)
	r.logOutcome(key, result)
	return result
}

// resolveFresh runs classify-fetch-decompress-parse-validate and
// returns the cacheable result. Only the context-free validation
// levels run here; onchain checks are applied per caller in assemble.
func (r *Resolver) resolveFresh(ctx context.Context, uri metauri.MetadataURI) cache.Result {
	list := &diag.List{}

	if uri.Scheme() == metauri.SchemeMalformed {
		list.Addf(malformedCode(uri), "", "unusable metadata URI: %s", uri.Reason())
		return cache.Result{Diagnostics: snapshot(list)}
	}

	payload, fetchDiag := r.fetcher.Fetch(ctx, uri)
	fetchedFrom := uri.Scheme().String()
	if fetchDiag != nil {
		list.Add(*fetchDiag)
		return cache.Result{Diagnostics: snapshot(list), FetchedFrom: fetchedFrom}
	}
	fetchedFrom += ":" + payload.Source

	raw := payload.Bytes
	if payload.Envelope != nil {
		decompressed, err := compress.Decompress(raw, payload.Envelope.Algorithm)
		switch {
		case errors.Is(err, compress.ErrSizeCeiling):
			list.Addf(diag.CodeDecompressionBomb, "",
				"decompression exceeded the %d byte ceiling", compress.MaxDecompressedSize)
			return cache.Result{Diagnostics: snapshot(list), FetchedFrom: fetchedFrom}
		case err != nil:
			list.Addf(diag.CodeDecompressionFailed, "",
				"declared %s envelope failed to decompress: %v", payload.Envelope.Algorithm, err)
			return cache.Result{Diagnostics: snapshot(list), FetchedFrom: fetchedFrom}
		}
		raw = decompressed
	}

	if payload.UnencodedFallback {
		list.Addf(diag.CodeUnencodedBase64, "",
			"base64 marker present but payload was plain JSON; unencoded path taken")
	}

	doc, parseDiag := document.Parse(raw)
	if parseDiag != nil {
		list.Add(*parseDiag)
		return cache.Result{
			Diagnostics:       snapshot(list),
			FetchedFrom:       fetchedFrom,
			UnencodedFallback: payload.UnencodedFallback,
		}
	}

	validate.Document(doc, list)

	return cache.Result{
		Raw:               raw,
		HasDocument:       true,
		Diagnostics:       snapshot(list),
		FetchedFrom:       fetchedFrom,
		UnencodedFallback: payload.UnencodedFallback,
	}
}

// assemble turns a cacheable result into a ResolutionResult. Fresh
// results and cache replays share this path, so the two are identical
// by construction: the document is re-parsed from the stored raw bytes
// (deterministic), and the caller's onchain checks are appended after
// the stored context-free diagnostics.
func (r *Resolver) assemble(res cache.Result, onchain *validate.OnchainContext, source Source) ResolutionResult {
	list := &diag.List{}
	for _, d := range res.Diagnostics {
		list.Add(d)
	}

	var doc *document.Document
	if res.HasDocument {
		doc, _ = document.Parse(res.Raw)
		if doc != nil && onchain != nil {
			validate.Onchain(doc, res.Raw, onchain, list)
		}
	}

	return ResolutionResult{
		Document:    doc,
		Diagnostics: snapshot(list),
		Source:      source,
		FetchedFrom: res.FetchedFrom,
	}
}

func (r *Resolver) logOutcome(key string, result ResolutionResult) {
	if r.logger == nil {
		return
	}
	r.logger.Debug("resolution complete",
		"uri", key,
		"source", result.Source.String(),
		"document", result.Document != nil,
		"diagnostics", len(result.Diagnostics),
		"fetchedFrom", result.FetchedFrom)
}

// malformedCode splits classifier rejections between EA001 (empty or
// unparsable input) and EA006 (a recognizable but unsupported or
// confused scheme).
func malformedCode(uri metauri.MetadataURI) diag.Code {
	if uri.ReasonKind() == metauri.ReasonUnsupportedScheme {
		return diag.CodeUnsupportedScheme
	}
	return diag.CodeInvalidURI
}

// snapshot copies the list's items so cached slices never alias a
// caller-visible result.
func snapshot(list *diag.List) []diag.Diagnostic {
	items := list.Items()
	if len(items) == 0 {
		return []diag.Diagnostic{}
	}
	out := make([]diag.Diagnostic, len(items))
	copy(out, items)
	return out
}
