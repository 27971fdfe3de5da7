// Copyright 2026 The AgentMeta Authors
// SPDX-License-Identifier: Apache-2.0

package validate

import (
	"testing"

	"golang.org/x/crypto/sha3"

	"github.com/trustless-agents/agentmeta/lib/diag"
	"github.com/trustless-agents/agentmeta/lib/document"
	"github.com/trustless-agents/agentmeta/lib/testutil"
)

func validateString(t *testing.T, data string) []diag.Diagnostic {
	t.Helper()
	doc, d := document.Parse([]byte(data))
	if d != nil {
		t.Fatalf("Parse failed: %s %s", d.Code, d.Message)
	}
	var list diag.List
	Document(doc, &list)
	return list.Items()
}

func TestSchemaLevelMissingFields(t *testing.T) {
	// The minimal document from a bare registration: name only.
	diags := validateString(t, `{"name":"A"}`)

	testutil.RequireCode(t, diags, diag.CodeMissingType)
	testutil.RequireCode(t, diags, diag.CodeMissingDescription)
	testutil.RequireCode(t, diags, diag.CodeMissingImage)
	testutil.RequireCode(t, diags, diag.CodeNoServices)
	testutil.RequireNoCode(t, diags, diag.CodeMissingName)
	testutil.RequireNoErrors(t, diags)
}

func TestSchemaLevelUnknownType(t *testing.T) {
	diags := validateString(t, `{"type":"SomethingElse","name":"A"}`)
	testutil.RequireCode(t, diags, diag.CodeUnknownType)
	testutil.RequireNoCode(t, diags, diag.CodeMissingType)

	diags = validateString(t, `{"type":"https://eips.ethereum.org/EIPS/eip-8004#registration-v1"}`)
	testutil.RequireNoCode(t, diags, diag.CodeUnknownType)
	testutil.RequireNoCode(t, diags, diag.CodeMissingType)
}

func TestSyntaxLevelWrongShape(t *testing.T) {
	diags := validateString(t, `{"services":"nope","registrations":{"x":1},"supportedTrust":7}`)
	wrongShapes := 0
	for _, d := range diags {
		if d.Code == diag.CodeWrongShape {
			wrongShapes++
		}
	}
	if wrongShapes != 3 {
		t.Errorf("got %d WA004 diagnostics, want 3: %v", wrongShapes, diags)
	}
	testutil.RequireNoErrors(t, diags)
}

func TestEndpointsLevelOASF(t *testing.T) {
	// OASF with neither skills nor domains is flagged.
	diags := validateString(t, `{"services":[{"name":"OASF","endpoint":"https://x"}]}`)
	testutil.RequireCode(t, diags, diag.CodeOASFMissingTaxonomy)

	diags = validateString(t, `{"services":[{"name":"OASF","endpoint":"https://x","skills":["a"]}]}`)
	testutil.RequireNoCode(t, diags, diag.CodeOASFMissingTaxonomy)

	diags = validateString(t, `{"services":[{"name":"OASF","endpoint":"https://x","domains":["d"]}]}`)
	testutil.RequireNoCode(t, diags, diag.CodeOASFMissingTaxonomy)
}

func TestEndpointsLevelWallet(t *testing.T) {
	diags := validateString(t, `{"services":[{"name":"agentWallet","endpoint":"0xab16a96D359eC26a11e2C2b3d8f8B8942d5Bfcdb"}]}`)
	testutil.RequireCode(t, diags, diag.CodeWalletNotCAIP10)

	diags = validateString(t, `{"services":[{"name":"agentWallet","endpoint":"eip155:1:0xab16a96D359eC26a11e2C2b3d8f8B8942d5Bfcdb"}]}`)
	testutil.RequireNoCode(t, diags, diag.CodeWalletNotCAIP10)
}

func TestEndpointsLevelA2A(t *testing.T) {
	diags := validateString(t, `{"services":[{"name":"A2A","endpoint":"https://x/api/agent"}]}`)
	testutil.RequireCode(t, diags, diag.CodeA2ANotWellKnown)

	diags = validateString(t, `{"services":[{"name":"A2A","endpoint":"https://x/.well-known/agent-card.json"}]}`)
	testutil.RequireNoCode(t, diags, diag.CodeA2ANotWellKnown)
}

func TestEndpointsLevelMissingAndUnknown(t *testing.T) {
	diags := validateString(t, `{"services":[{"name":"MCP"},{"name":"telepathy","endpoint":"psi://brain"}]}`)
	testutil.RequireCode(t, diags, diag.CodeServiceMissingEndpoint)
	testutil.RequireCode(t, diags, diag.CodeUnknownService)
}

func TestEndpointsLevelLegacy(t *testing.T) {
	diags := validateString(t, `{"endpoints":[{"name":"web","endpoint":"https://x"}]}`)
	testutil.RequireCode(t, diags, diag.CodeLegacyEndpoints)

	// When services is present, the precedence choice itself is not
	// flagged.
	diags = validateString(t, `{
		"endpoints":[{"name":"web","endpoint":"https://old"}],
		"services":[{"name":"web","endpoint":"https://new"}]
	}`)
	testutil.RequireNoCode(t, diags, diag.CodeLegacyEndpoints)
}

func TestSemanticLevelTrustModels(t *testing.T) {
	diags := validateString(t, `{"supportedTrust":["reputation","quantum-vibes"]}`)
	testutil.RequireCode(t, diags, diag.CodeUnknownTrustModel)
	testutil.RequireNoErrors(t, diags)

	diags = validateString(t, `{"supportedTrust":["reputation","crypto-economic","tee-attestation"]}`)
	testutil.RequireNoCode(t, diags, diag.CodeUnknownTrustModel)
}

func TestSemanticLevelRegistryFormats(t *testing.T) {
	diags := validateString(t, `{"registrations":[
		{"agentId":1,"agentRegistry":"eip155:1:0xab16a96D359eC26a11e2C2b3d8f8B8942d5Bfcdb"},
		{"agentId":2,"agentRegistry":"eip155:8453"},
		{"agentId":3,"agentRegistry":"not a registry"}
	]}`)
	testutil.RequireCode(t, diags, diag.CodeRegistryNoAddress)
	testutil.RequireCode(t, diags, diag.CodeMalformedCAIP)

	for _, d := range diags {
		if d.Code == diag.CodeMalformedCAIP && d.FieldPath != "registrations[2].agentRegistry" {
			t.Errorf("WA060 on wrong path %q", d.FieldPath)
		}
	}
}

func TestSemanticLevelTimestamps(t *testing.T) {
	tests := []struct {
		value string
		bad   bool
	}{
		{"2026-01-02T03:04:05Z", false},
		{"2026-01-02T03:04:05.123Z", false},
		{"2026-01-02T03:04:05+02:00", true},
		{"2026-01-02 03:04:05Z", true},
		{"2026-01-02", true},
		{"yesterday", true},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			diags := validateString(t, `{"updatedAt":"`+tt.value+`"}`)
			if tt.bad {
				testutil.RequireCode(t, diags, diag.CodeBadTimestamp)
			} else {
				testutil.RequireNoCode(t, diags, diag.CodeBadTimestamp)
			}
		})
	}
}

func TestStatusLevel(t *testing.T) {
	// Scenario: null agentId is informational only.
	diags := validateString(t, `{"registrations":[{"agentId":null,"agentRegistry":"eip155:1:0xab16a96D359eC26a11e2C2b3d8f8B8942d5Bfcdb"}]}`)
	testutil.RequireCode(t, diags, diag.CodeMissingAgentID)
	for _, d := range diags {
		if d.FieldPath == "registrations[0].agentId" && d.Severity != diag.SeverityInfo {
			t.Errorf("null agentId produced %v, want info", d.Severity)
		}
	}

	// Absent active is advisory.
	testutil.RequireCode(t, diags, diag.CodeActiveAbsent)
	diags = validateString(t, `{"active":false}`)
	testutil.RequireNoCode(t, diags, diag.CodeActiveAbsent)

	// Empty services is IA002, not a failure.
	diags = validateString(t, `{"services":[]}`)
	testutil.RequireCode(t, diags, diag.CodeNoServices)
	testutil.RequireNoErrors(t, diags)
}

func TestOnchainHashCheck(t *testing.T) {
	raw := []byte(`{"name":"A"}`)
	doc, d := document.Parse(raw)
	if d != nil {
		t.Fatalf("Parse failed: %v", d)
	}

	hash := sha3.NewLegacyKeccak256()
	hash.Write(raw)
	good := hash.Sum(nil)

	t.Run("matching hash", func(t *testing.T) {
		var list diag.List
		Onchain(doc, raw, &OnchainContext{AgentID: 1, AgentHash: good}, &list)
		testutil.RequireNoCode(t, list.Items(), diag.CodeHashMismatch)
	})

	t.Run("mismatched hash", func(t *testing.T) {
		bad := make([]byte, 32)
		var list diag.List
		Onchain(doc, raw, &OnchainContext{AgentID: 1, AgentHash: bad}, &list)
		testutil.RequireCode(t, list.Items(), diag.CodeHashMismatch)
	})

	t.Run("nil context is a no-op", func(t *testing.T) {
		var list diag.List
		Onchain(doc, raw, nil, &list)
		if list.Len() != 0 {
			t.Errorf("nil context produced diagnostics: %v", list.Items())
		}
	})
}

func TestOnchainRegistrationCheck(t *testing.T) {
	registry := "eip155:1:0xab16a96D359eC26a11e2C2b3d8f8B8942d5Bfcdb"

	parse := func(t *testing.T, data string) *document.Document {
		t.Helper()
		doc, d := document.Parse([]byte(data))
		if d != nil {
			t.Fatalf("Parse failed: %v", d)
		}
		return doc
	}

	t.Run("agreeing registration", func(t *testing.T) {
		doc := parse(t, `{"registrations":[{"agentId":7,"agentRegistry":"`+registry+`"}]}`)
		var list diag.List
		Onchain(doc, nil, &OnchainContext{AgentID: 7, RegistryAddress: registry}, &list)
		testutil.RequireNoCode(t, list.Items(), diag.CodeRegistrationConflict)
	})

	t.Run("conflicting agent id", func(t *testing.T) {
		doc := parse(t, `{"registrations":[{"agentId":8,"agentRegistry":"`+registry+`"}]}`)
		var list diag.List
		Onchain(doc, nil, &OnchainContext{AgentID: 7, RegistryAddress: registry}, &list)
		testutil.RequireCode(t, list.Items(), diag.CodeRegistrationConflict)
	})

	t.Run("registry case folds", func(t *testing.T) {
		doc := parse(t, `{"registrations":[{"agentId":7,"agentRegistry":"`+registry+`"}]}`)
		var list diag.List
		upper := "eip155:1:0xAB16A96D359EC26A11E2C2B3D8F8B8942D5BFCDB"
		Onchain(doc, nil, &OnchainContext{AgentID: 7, RegistryAddress: upper}, &list)
		testutil.RequireNoCode(t, list.Items(), diag.CodeRegistrationConflict)
	})

	t.Run("no entry names the registry", func(t *testing.T) {
		doc := parse(t, `{"registrations":[{"agentId":7,"agentRegistry":"eip155:10:0x00000000000000000000000000000000000000aa"}]}`)
		var list diag.List
		Onchain(doc, nil, &OnchainContext{AgentID: 7, RegistryAddress: registry}, &list)
		testutil.RequireCode(t, list.Items(), diag.CodeRegistrationConflict)
	})

	t.Run("null agent id does not conflict", func(t *testing.T) {
		doc := parse(t, `{"registrations":[{"agentId":null,"agentRegistry":"`+registry+`"}]}`)
		var list diag.List
		Onchain(doc, nil, &OnchainContext{AgentID: 7, RegistryAddress: registry}, &list)
		testutil.RequireNoCode(t, list.Items(), diag.CodeRegistrationConflict)
	})
}

func TestValidationNeverMutates(t *testing.T) {
	raw := `{"name":"A","services":[{"name":"OASF","endpoint":"https://x"}]}`
	doc, _ := document.Parse([]byte(raw))

	before, err := doc.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	var list diag.List
	Document(doc, &list)
	after, err := doc.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Error("validation mutated the document")
	}
}
