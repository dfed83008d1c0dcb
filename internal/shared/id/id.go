// Package id provides centralized ID generation for the terminal core.
//
// IDs are prefixed ULIDs (block_*, sess_*, wf_*). ULIDs are lexicographically
// sortable, so block IDs minted by one generator order the same as their
// creation times; the block log relies on this for its monotonic-order
// invariant.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// BlockID identifies one command block within a session.
type BlockID string

// SessionID identifies a live shell session.
type SessionID string

// WorkflowID identifies a workflow definition in the catalogue.
type WorkflowID string

const (
	BlockPrefix    = "block"
	SessionPrefix  = "sess"
	WorkflowPrefix = "wf"
)

// Generator generates ULIDs with optional prefixes.
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance.
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a new ULID generator with secure entropy.
func NewGenerator() *Generator {
	return &Generator{entropy: rand.Reader}
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source.
// Useful for testing with deterministic entropy.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate creates a new ULID.
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string.
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewBlockID generates a new block ID.
func NewBlockID() BlockID {
	return BlockID(Default().GenerateWithPrefix(BlockPrefix))
}

// NewSessionID generates a new session ID.
func NewSessionID() SessionID {
	return SessionID(Default().GenerateWithPrefix(SessionPrefix))
}

// NewWorkflowID generates a new workflow ID.
func NewWorkflowID() WorkflowID {
	return WorkflowID(Default().GenerateWithPrefix(WorkflowPrefix))
}

func (id BlockID) String() string    { return string(id) }
func (id SessionID) String() string  { return string(id) }
func (id WorkflowID) String() string { return string(id) }

// IsValid checks if a string is a valid ULID, with or without a prefix.
func IsValid(s string) bool {
	if i := strings.LastIndexByte(s, '_'); i >= 0 {
		s = s[i+1:]
	}
	_, err := ulid.Parse(s)
	return err == nil
}
