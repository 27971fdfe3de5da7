// Copyright 2026 The AgentMeta Authors
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/trustless-agents/agentmeta/lib/diag"
	"github.com/trustless-agents/agentmeta/lib/metauri"
)

func testResult(from string) Result {
	return Result{
		Raw:         []byte(`{"name":"A"}`),
		HasDocument: true,
		Diagnostics: []diag.Diagnostic{diag.New(diag.CodeMissingType, "type", "missing")},
		FetchedFrom: from,
	}
}

func TestPutGet(t *testing.T) {
	c, err := New(Config{})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	c.Put(ctx, "ipfs://cid", metauri.SchemeIPFS, testResult("ipfs:gw"))

	entry, ok := c.Get(ctx, "ipfs://cid")
	if !ok {
		t.Fatal("expected a hit")
	}
	if entry.Key != "ipfs://cid" || entry.Result.FetchedFrom != "ipfs:gw" {
		t.Errorf("entry = %+v", entry)
	}
	if len(entry.Result.Diagnostics) != 1 || entry.Result.Diagnostics[0].Code != diag.CodeMissingType {
		t.Errorf("diagnostics not preserved: %+v", entry.Result.Diagnostics)
	}

	if _, ok := c.Get(ctx, "ipfs://other"); ok {
		t.Error("unexpected hit for a different key")
	}
}

func TestRetentionByScheme(t *testing.T) {
	c, err := New(Config{ContentTTL: time.Hour, HTTPSTTL: time.Minute})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	c.Put(ctx, "data:x", metauri.SchemeData, testResult("data:inline"))
	c.Put(ctx, "ipfs://x", metauri.SchemeIPFS, testResult("ipfs:gw"))
	c.Put(ctx, "ar://x", metauri.SchemeArweave, testResult("arweave:gw"))
	c.Put(ctx, "https://x", metauri.SchemeHTTPS, testResult("https:x"))

	dataEntry, _ := c.Get(ctx, "data:x")
	if dataEntry.ExpiresAt != nil {
		t.Error("data-URI entries must never expire")
	}

	ipfsEntry, _ := c.Get(ctx, "ipfs://x")
	if ipfsEntry.ExpiresAt == nil {
		t.Fatal("ipfs entries must carry a TTL")
	}
	arEntry, _ := c.Get(ctx, "ar://x")
	if arEntry.ExpiresAt == nil {
		t.Fatal("arweave entries must carry a TTL")
	}

	httpsEntry, _ := c.Get(ctx, "https://x")
	if httpsEntry.ExpiresAt == nil {
		t.Fatal("https entries must carry a TTL")
	}
	if !httpsEntry.ExpiresAt.Before(*ipfsEntry.ExpiresAt) {
		t.Error("https retention should be shorter than content-addressed retention")
	}
}

func TestExpiryIsAMiss(t *testing.T) {
	c, err := New(Config{HTTPSTTL: 10 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	c.Put(ctx, "https://x", metauri.SchemeHTTPS, testResult("https:x"))
	if _, ok := c.Get(ctx, "https://x"); !ok {
		t.Fatal("entry should be live immediately after Put")
	}

	time.Sleep(30 * time.Millisecond)
	if _, ok := c.Get(ctx, "https://x"); ok {
		t.Error("expired entry returned as a hit")
	}
}

func TestCapacityEviction(t *testing.T) {
	c, err := New(Config{MemoryEntries: 2})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	c.Put(ctx, "data:a", metauri.SchemeData, testResult("data:inline"))
	c.Put(ctx, "data:b", metauri.SchemeData, testResult("data:inline"))

	// Touch a so b is the least recently used.
	c.Get(ctx, "data:a")
	c.Put(ctx, "data:c", metauri.SchemeData, testResult("data:inline"))

	if _, ok := c.Get(ctx, "data:b"); ok {
		t.Error("least-recently-used entry survived capacity pressure")
	}
	if _, ok := c.Get(ctx, "data:a"); !ok {
		t.Error("recently used entry was evicted")
	}
	if _, ok := c.Get(ctx, "data:c"); !ok {
		t.Error("newest entry was evicted")
	}
}

func TestConcurrentAccess(t *testing.T) {
	c, err := New(Config{})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Put(ctx, "ipfs://shared", metauri.SchemeIPFS, testResult("ipfs:gw"))
				c.Get(ctx, "ipfs://shared")
			}
		}()
	}
	wg.Wait()

	entry, ok := c.Get(ctx, "ipfs://shared")
	if !ok || entry.Result.FetchedFrom != "ipfs:gw" {
		t.Errorf("entry lost after concurrent writes: %+v, %v", entry, ok)
	}
}

func TestFailedResolutionsAreCached(t *testing.T) {
	c, err := New(Config{})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	failure := Result{
		Diagnostics: []diag.Diagnostic{diag.New(diag.CodeGatewaysExhausted, "", "all gateways failed")},
		FetchedFrom: "ipfs",
	}
	c.Put(ctx, "ipfs://broken", metauri.SchemeIPFS, failure)

	entry, ok := c.Get(ctx, "ipfs://broken")
	if !ok {
		t.Fatal("failed resolutions must be cached")
	}
	if entry.Result.HasDocument {
		t.Error("failure entry claims a document")
	}
	if len(entry.Result.Diagnostics) != 1 || entry.Result.Diagnostics[0].Code != diag.CodeGatewaysExhausted {
		t.Errorf("failure diagnostics not preserved: %+v", entry.Result.Diagnostics)
	}
}
