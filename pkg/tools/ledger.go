package tools

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/tradecouncil/tradecouncil/pkg/models"
)

// NormalizeArgs renders an argument map into a canonical string: keys sorted,
// values JSON-encoded. Two maps with the same content normalize identically
// regardless of insertion order.
func NormalizeArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		v, err := json.Marshal(args[k])
		if err != nil {
			v = []byte(fmt.Sprintf("%q", fmt.Sprint(args[k])))
		}
		fmt.Fprintf(&b, "%q:%s", k, v)
	}
	b.WriteByte('}')
	return b.String()
}

// HashArgs returns the dedup hash of a normalized argument map.
func HashArgs(args map[string]any) string {
	sum := sha256.Sum256([]byte(NormalizeArgs(args)))
	return hex.EncodeToString(sum[:])
}

// CacheKey builds the cache key for a (tool, args) pair.
func CacheKey(toolName string, args map[string]any) string {
	sum := sha256.Sum256([]byte(toolName + "\x00" + NormalizeArgs(args)))
	return hex.EncodeToString(sum[:])
}

// ledgerEntry records one committed call for dedup inspection.
type ledgerEntry struct {
	argHash string
	argRepr string
}

// Ledger tracks per-analyst tool usage for one session. It never shrinks;
// budget and dedup checks read it, successful invocations append to it.
type Ledger struct {
	mu sync.Mutex
	// analyst → tool name → committed calls
	calls map[models.Analyst]map[string][]ledgerEntry
	// analyst → running total across all tools
	totals map[models.Analyst]int

	maxTotalCalls int
}

// NewLedger creates a ledger enforcing the given per-analyst budget.
func NewLedger(maxTotalCalls int) *Ledger {
	return &Ledger{
		calls:         make(map[models.Analyst]map[string][]ledgerEntry),
		totals:        make(map[models.Analyst]int),
		maxTotalCalls: maxTotalCalls,
	}
}

// CanCall reports whether the analyst may invoke the tool with these args.
// Refusals carry a human-readable reason for the LLM.
func (l *Ledger) CanCall(analyst models.Analyst, toolName string, args map[string]any) (bool, string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.totals[analyst] >= l.maxTotalCalls {
		return false, fmt.Sprintf("tool-call budget exhausted (%d/%d calls used)",
			l.totals[analyst], l.maxTotalCalls)
	}

	hash := HashArgs(args)
	for _, entry := range l.calls[analyst][toolName] {
		if entry.argHash == hash {
			return false, fmt.Sprintf("duplicate call: %s already invoked with args %s",
				toolName, entry.argRepr)
		}
	}
	return true, ""
}

// Record commits a call to the ledger. Called after a successful invocation
// that was not served from cache.
func (l *Ledger) Record(analyst models.Analyst, toolName string, args map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.calls[analyst] == nil {
		l.calls[analyst] = make(map[string][]ledgerEntry)
	}
	l.calls[analyst][toolName] = append(l.calls[analyst][toolName], ledgerEntry{
		argHash: HashArgs(args),
		argRepr: NormalizeArgs(args),
	})
	l.totals[analyst]++
}

// Total returns the analyst's running call total.
func (l *Ledger) Total(analyst models.Analyst) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totals[analyst]
}
