// Copyright 2026 The AgentMeta Authors
// SPDX-License-Identifier: Apache-2.0

// Package document parses agent-metadata documents.
//
// Parsing is tolerant by design: the document model preserves every
// field it does not recognize (order included), derives typed views of
// the fields it does, and reconciles the legacy `endpoints` field with
// the current `services` field. Only two conditions prevent a document
// from being produced at all: bytes that are not valid JSON, and a
// root value that is not an object. Everything else is a validator
// concern, reported as diagnostics against an available document.
package document

import (
	"encoding/json"
	"strconv"
	"unicode/utf8"

	"github.com/trustless-agents/agentmeta/lib/diag"
)

// ServiceKind tags a service entry with one of the known service
// types, or Unknown for forward compatibility.
type ServiceKind int

const (
	ServiceUnknown ServiceKind = iota
	ServiceMCP
	ServiceA2A
	ServiceOASF
	ServiceAgentWallet
	ServiceENS
	ServiceDID
	ServiceWeb
	ServiceEmail
)

// String returns the canonical service name for known kinds.
func (k ServiceKind) String() string {
	switch k {
	case ServiceMCP:
		return "MCP"
	case ServiceA2A:
		return "A2A"
	case ServiceOASF:
		return "OASF"
	case ServiceAgentWallet:
		return "agentWallet"
	case ServiceENS:
		return "ENS"
	case ServiceDID:
		return "DID"
	case ServiceWeb:
		return "web"
	case ServiceEmail:
		return "email"
	default:
		return "unknown"
	}
}

// serviceKind maps a service entry's `name` to its kind. Matching is
// exact: the registry of known names is part of the protocol schema.
func serviceKind(name string) ServiceKind {
	switch name {
	case "MCP":
		return ServiceMCP
	case "A2A":
		return ServiceA2A
	case "OASF":
		return ServiceOASF
	case "agentWallet":
		return ServiceAgentWallet
	case "ENS":
		return ServiceENS
	case "DID":
		return ServiceDID
	case "web":
		return ServiceWeb
	case "email":
		return ServiceEmail
	default:
		return ServiceUnknown
	}
}

// Service is one entry of the document's services list. Typed fields
// cover what the validators check; Raw holds the complete entry so
// unknown per-service fields survive re-serialization.
type Service struct {
	// Name is the entry's raw `name` value.
	Name string

	// Kind is the variant Name maps to, or ServiceUnknown.
	Kind ServiceKind

	// Endpoint is the entry's `endpoint` value, empty when absent or
	// not a string.
	Endpoint string

	// Skills and Domains are the OASF taxonomy fields.
	Skills  []string
	Domains []string

	// Raw is the full entry object.
	Raw *Object
}

// Registration is one entry of the document's registrations list.
type Registration struct {
	// AgentID is the onchain agent id, nil when null, absent, or not
	// a JSON number.
	AgentID *uint64

	// AgentRegistry is the CAIP-10 (or CAIP-2) registry identifier.
	AgentRegistry string

	// Raw is the full entry object.
	Raw *Object
}

// Document is a parsed agent-metadata document: the order-preserving
// root object plus derived typed views. Once produced a Document is
// immutable — validators read it and report diagnostics alongside,
// they never write into it.
type Document struct {
	root *Object

	// Scalar SHOULD fields.
	Type        string
	Name        string
	Description string
	Image       string

	// Active is nil when the field is absent; the pipeline treats
	// absent as inactive (a status-level advisory, not an error).
	Active *bool

	// SupportedTrust lists the declared trust models.
	SupportedTrust []string

	// UpdatedAt is the raw timestamp string, validated (ISO 8601 UTC)
	// at the semantic level.
	UpdatedAt string

	// Services is the derived service list. When the document carries
	// only the legacy `endpoints` field, that list is used and
	// LegacyEndpoints is set.
	Services []Service

	// ServicesPresent distinguishes an absent services list from an
	// empty one (different diagnostics levels flag each).
	ServicesPresent bool

	// LegacyEndpoints reports that `endpoints` was used because
	// `services` was absent.
	LegacyEndpoints bool

	// Registrations is the derived registrations list.
	Registrations []Registration
}

// Parse decodes bytes into a Document. The returned diagnostic is
// non-nil exactly when no document could be produced: EA002 for
// invalid JSON, EA010 for a non-object root.
//
// Input must be valid UTF-8. The stdlib decoder would instead coerce
// bad bytes inside strings to U+FFFD, which both accepts a payload
// that is not UTF-8 JSON and breaks byte-preserving re-serialization,
// so the check happens up front.
func Parse(data []byte) (*Document, *diag.Diagnostic) {
	if !utf8.Valid(data) {
		d := diag.New(diag.CodeInvalidJSON, "", "payload is not valid UTF-8")
		return nil, &d
	}

	root, err := parseRoot(data)
	if err != nil {
		d := diag.New(diag.CodeInvalidJSON, "", "payload is not valid JSON: "+err.Error())
		return nil, &d
	}
	obj, ok := root.(*Object)
	if !ok {
		d := diag.New(diag.CodeRootNotObject, "", "root JSON value is not an object")
		return nil, &d
	}

	doc := &Document{root: obj}
	doc.Type = getString(obj, "type")
	doc.Name = getString(obj, "name")
	doc.Description = getString(obj, "description")
	doc.Image = getString(obj, "image")
	doc.UpdatedAt = getString(obj, "updatedAt")
	doc.SupportedTrust = getStringList(obj, "supportedTrust")

	if v, ok := obj.Get("active"); ok {
		if b, ok := v.(bool); ok {
			doc.Active = &b
		}
	}

	// Reconcile services against the legacy endpoints field: when both
	// are present services wins silently; endpoints alone is treated
	// as the services list and flagged WA031 by the validator.
	if _, present := obj.Get("services"); present {
		doc.ServicesPresent = true
		if entries, ok := getObjectList(obj, "services"); ok {
			doc.Services = parseServices(entries)
		}
	} else if _, present := obj.Get("endpoints"); present {
		doc.ServicesPresent = true
		doc.LegacyEndpoints = true
		if entries, ok := getObjectList(obj, "endpoints"); ok {
			doc.Services = parseServices(entries)
		}
	}

	if entries, ok := getObjectList(obj, "registrations"); ok {
		for _, entry := range entries {
			doc.Registrations = append(doc.Registrations, parseRegistration(entry))
		}
	}

	return doc, nil
}

// Root returns the order-preserving root object.
func (d *Document) Root() *Object {
	return d.root
}

// MarshalJSON re-serializes the document from its root object,
// preserving unknown fields and field order.
func (d *Document) MarshalJSON() ([]byte, error) {
	return d.root.MarshalJSON()
}

func parseServices(entries []*Object) []Service {
	services := make([]Service, 0, len(entries))
	for _, entry := range entries {
		name := getString(entry, "name")
		services = append(services, Service{
			Name:     name,
			Kind:     serviceKind(name),
			Endpoint: getString(entry, "endpoint"),
			Skills:   getStringList(entry, "skills"),
			Domains:  getStringList(entry, "domains"),
			Raw:      entry,
		})
	}
	return services
}

func parseRegistration(entry *Object) Registration {
	reg := Registration{
		AgentRegistry: getString(entry, "agentRegistry"),
		Raw:           entry,
	}
	if v, ok := entry.Get("agentId"); ok {
		if num, ok := v.(json.Number); ok {
			if id, err := strconv.ParseUint(num.String(), 10, 64); err == nil {
				reg.AgentID = &id
			}
		}
	}
	return reg
}

func getString(o *Object, key string) string {
	if v, ok := o.Get(key); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func getStringList(o *Object, key string) []string {
	v, ok := o.Get(key)
	if !ok {
		return nil
	}
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// getObjectList returns the field's object entries when the field is
// present and is an array. Non-object array items are skipped; the
// syntax validator flags wrong-shaped structural fields separately.
func getObjectList(o *Object, key string) ([]*Object, bool) {
	v, ok := o.Get(key)
	if !ok {
		return nil, false
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, false
	}
	entries := make([]*Object, 0, len(arr))
	for _, item := range arr {
		if obj, ok := item.(*Object); ok {
			entries = append(entries, obj)
		}
	}
	return entries, true
}
