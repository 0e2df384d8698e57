// Package ledger implements the append-only, hash-chained record of state
// transitions. Every step that changes state appends an Event carrying
// before/after content hashes; each event additionally links to its
// predecessor's entry hash, making the persisted log tamper-evident.
package ledger

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/ledgerflow/ledgerflow/canonical"
)

// GenesisHash is the chain link of the first event in a run. A verifier can
// prove the chain starts from a known state.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// Event is one recorded state transition. Immutable once recorded: Seq,
// RunID, PrevHash, and EntryHash are assigned by the Ledger during Record.
type Event struct {
	ID         string         `json:"id"`
	RunID      string         `json:"run_id"`
	Seq        int64          `json:"seq"`
	Name       string         `json:"name"`
	Args       []any          `json:"args,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	BeforeHash string         `json:"before_hash"`
	AfterHash  string         `json:"after_hash"`
	PrevHash   string         `json:"prev_hash"`
	EntryHash  string         `json:"entry_hash"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// NewEvent builds an unrecorded event. BeforeHash is the digest of the state
// immediately prior to the transition, AfterHash the digest of the state the
// step actually returned.
func NewEvent(name string, args []any, beforeHash, afterHash string) Event {
	return Event{
		Name:       name,
		Args:       args,
		BeforeHash: beforeHash,
		AfterHash:  afterHash,
	}
}

// WithMeta returns a copy of the event with the given metadata attached.
func (e Event) WithMeta(meta map[string]any) Event {
	e.Meta = meta
	return e
}

// ComputeEntryHash digests the chain-relevant fields of the event. The
// timestamp enters as RFC 3339 (nanoseconds, UTC) so the digest survives a
// JSON round trip through a durable sink.
func (e Event) ComputeEntryHash() string {
	return canonical.HashIn(canonical.DomainEvent, map[string]any{
		"id":          e.ID,
		"run_id":      e.RunID,
		"seq":         e.Seq,
		"name":        e.Name,
		"args":        e.Args,
		"timestamp":   e.Timestamp.UTC().Format(time.RFC3339Nano),
		"before_hash": e.BeforeHash,
		"after_hash":  e.AfterHash,
		"prev_hash":   e.PrevHash,
		"meta":        e.Meta,
	})
}

// normalizeValue round-trips v through JSON with UseNumber so that numeric
// values hash identically before and after sink persistence. Without this an
// int argument would hash as an int at record time but as a float64 after
// being read back for verification.
func normalizeValue(v any) any {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var out any
	if err := dec.Decode(&out); err != nil {
		return v
	}
	return out
}

func normalizeArgs(args []any) []any {
	if args == nil {
		return nil
	}
	out, ok := normalizeValue(args).([]any)
	if !ok {
		return args
	}
	return out
}

func normalizeMeta(meta map[string]any) map[string]any {
	if meta == nil {
		return nil
	}
	out, ok := normalizeValue(meta).(map[string]any)
	if !ok {
		return meta
	}
	return out
}
