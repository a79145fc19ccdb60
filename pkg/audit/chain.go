package audit

import (
	"bufio"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// ChainEntry is one signed link in the audit chain. Each entry includes the
// hash of the previous entry, so modifying any delivered event breaks the
// chain for every later entry.
type ChainEntry struct {
	Sequence  int64     `json:"sequence"`   // monotonic counter (1-based)
	EventID   string    `json:"event_id"`   // the audit event this signs
	EventHash string    `json:"event_hash"` // sha256 of the event JSON
	PrevHash  string    `json:"prev_hash"`  // hash of the previous ChainEntry (empty for first)
	Signature string    `json:"signature"`  // HMAC-SHA256(sequence|event_id|event_hash|prev_hash, secret)
	Timestamp time.Time `json:"timestamp"`
}

// Chain signs an ordered sequence of audit event hashes. It keeps only the
// running state (sequence counter and last entry hash), so memory stays
// constant however long the daemon runs; the entries themselves live
// wherever the caller appends them. Safe for concurrent use.
type Chain struct {
	mu     sync.Mutex
	secret []byte
	last   string
	seq    int64
}

// NewChain creates an audit chain with the given HMAC signing key.
func NewChain(secret string) *Chain {
	return &Chain{secret: []byte(secret)}
}

// Append signs a new event into the chain and returns the entry.
func (c *Chain) Append(eventID string, eventJSON []byte) ChainEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	entry := ChainEntry{
		Sequence:  c.seq,
		EventID:   eventID,
		EventHash: sha256Hex(eventJSON),
		PrevHash:  c.last,
		Timestamp: time.Now().UTC(),
	}
	entry.Signature = signEntry(entry, c.secret)

	entryJSON, _ := json.Marshal(entry)
	c.last = sha256Hex(entryJSON)
	return entry
}

// VerifyFile loads a JSONL chain file and verifies it with the given key.
// Used by offline audit tooling against a file sink's chain.
func VerifyFile(path, secret string) (valid bool, brokenAt int64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return false, 0, fmt.Errorf("audit: open chain: %w", err)
	}
	defer f.Close()

	var entries []ChainEntry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var e ChainEntry
		if err := json.Unmarshal(line, &e); err != nil {
			return false, 0, fmt.Errorf("audit: parse chain line: %w", err)
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return false, 0, fmt.Errorf("audit: read chain: %w", err)
	}

	return verifyEntries(entries, []byte(secret))
}

func verifyEntries(entries []ChainEntry, secret []byte) (bool, int64, error) {
	prevHash := ""
	for i, entry := range entries {
		if entry.PrevHash != prevHash {
			return false, entry.Sequence, fmt.Errorf(
				"chain broken at sequence %d: prev_hash mismatch", entry.Sequence)
		}
		if entry.Signature != signEntry(entry, secret) {
			return false, entry.Sequence, fmt.Errorf(
				"chain broken at sequence %d: signature mismatch", entry.Sequence)
		}
		entryJSON, _ := json.Marshal(entries[i])
		prevHash = sha256Hex(entryJSON)
	}
	return true, 0, nil
}

func signEntry(e ChainEntry, secret []byte) string {
	msg := fmt.Sprintf("%d|%s|%s|%s", e.Sequence, e.EventID, e.EventHash, e.PrevHash)
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(msg))
	return hex.EncodeToString(mac.Sum(nil))
}

func sha256Hex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
