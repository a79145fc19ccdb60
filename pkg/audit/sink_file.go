package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileSink writes one <id>.audit.json file per event and appends a signed
// chain entry to chain.jsonl in the same directory, so the record set is
// tamper-evident offline.
type FileSink struct {
	dir   string
	chain *Chain

	mu sync.Mutex
}

// NewFileSink creates the output directory and a chain signed with secret.
// An empty secret still chains records; it just weakens the signature to a
// keyless HMAC.
func NewFileSink(dir, secret string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("audit: create dir: %w", err)
	}
	return &FileSink{dir: dir, chain: NewChain(secret)}, nil
}

func (s *FileSink) Name() string { return "file" }

// Deliver persists the event and its chain entry.
func (s *FileSink) Deliver(_ context.Context, ev Event) error {
	data, err := json.MarshalIndent(ev, "", "  ")
	if err != nil {
		return fmt.Errorf("audit: marshal event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, ev.ID+".audit.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("audit: write %s: %w", path, err)
	}

	entry := s.chain.Append(ev.ID, data)
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("audit: marshal chain entry: %w", err)
	}

	chainPath := filepath.Join(s.dir, "chain.jsonl")
	f, err := os.OpenFile(chainPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("audit: open chain: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("audit: append chain: %w", err)
	}
	return nil
}

func (s *FileSink) Close(context.Context) error { return nil }
