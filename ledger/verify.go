package ledger

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// VerifyResult summarizes a successful chain verification.
type VerifyResult struct {
	Events int // Total events checked.
	Runs   int // Distinct run chains found.
}

// Verify checks the hash chain of a line-delimited ledger stream. For every
// event it recomputes the entry hash and checks the prev-hash link against
// that run's previous event; a run's first event must link to GenesisHash
// with sequence 1. Multiple runs may interleave in one stream. Returns the
// first broken link as an error naming the offending line.
func Verify(r io.Reader) (VerifyResult, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)

	heads := make(map[string]string) // run_id → last entry hash
	seqs := make(map[string]int64)   // run_id → last seq

	var result VerifyResult
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		ev, err := decodeEvent(raw)
		if err != nil {
			return result, fmt.Errorf("line %d: %w", line, err)
		}

		if recomputed := ev.ComputeEntryHash(); recomputed != ev.EntryHash {
			return result, fmt.Errorf(
				"line %d: entry hash mismatch for event %s: recorded %s, recomputed %s",
				line, ev.ID, ev.EntryHash, recomputed)
		}

		head, seen := heads[ev.RunID]
		if !seen {
			if ev.PrevHash != GenesisHash {
				return result, fmt.Errorf(
					"line %d: run %s does not start at genesis: prev %s",
					line, ev.RunID, ev.PrevHash)
			}
			if ev.Seq != 1 {
				return result, fmt.Errorf(
					"line %d: run %s starts at sequence %d", line, ev.RunID, ev.Seq)
			}
			result.Runs++
		} else {
			if ev.PrevHash != head {
				return result, fmt.Errorf(
					"line %d: broken chain in run %s at sequence %d: prev %s, expected %s",
					line, ev.RunID, ev.Seq, ev.PrevHash, head)
			}
			if ev.Seq != seqs[ev.RunID]+1 {
				return result, fmt.Errorf(
					"line %d: sequence gap in run %s: got %d after %d",
					line, ev.RunID, ev.Seq, seqs[ev.RunID])
			}
		}

		heads[ev.RunID] = ev.EntryHash
		seqs[ev.RunID] = ev.Seq
		result.Events++
	}
	if err := scanner.Err(); err != nil {
		return result, fmt.Errorf("ledger: read stream: %w", err)
	}
	return result, nil
}

// VerifyFile verifies the hash chain of a persisted ledger file.
func VerifyFile(path string) (VerifyResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("ledger: open %s: %w", path, err)
	}
	defer f.Close()
	return Verify(f)
}

// decodeEvent parses a JSON event using Number decoding so argument and
// metadata numerics hash identically to how they were recorded.
func decodeEvent(raw []byte) (Event, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var ev Event
	if err := dec.Decode(&ev); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	return ev, nil
}
