package workflow

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// DuplicateWindow is how long a (user, workflow, trigger data) start
// request is deduplicated for (spec §4.K).
const DuplicateWindow = 90 * time.Second

// IdempotencyStore records recent workflow start attempts so a retried
// trigger within the dedup window is reported as a duplicate instead
// of starting a second run.
type IdempotencyStore interface {
	// Claim records a start attempt for key, returning true if this is
	// the first claim within DuplicateWindow, false if it duplicates
	// an earlier one.
	Claim(key string, now time.Time) bool
}

// IdempotencyKey hashes (userID, workflow name, trigger data) into a
// stable dedup key. Map iteration order is nondeterministic in Go, so
// triggerData's keys are sorted before hashing.
func IdempotencyKey(userID, workflowName string, triggerData map[string]interface{}) string {
	keys := make([]string, 0, len(triggerData))
	for k := range triggerData {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ordered := make(map[string]interface{}, len(triggerData))
	for _, k := range keys {
		ordered[k] = triggerData[k]
	}
	payload, _ := json.Marshal(struct {
		UserID   string                 `json:"user_id"`
		Workflow string                 `json:"workflow"`
		Data     map[string]interface{} `json:"data"`
		Keys     []string               `json:"keys"`
	}{UserID: userID, Workflow: workflowName, Data: ordered, Keys: keys})

	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// InMemoryIdempotencyStore is a process-local IdempotencyStore, used in
// tests and as the default until a Redis-backed store is wired in at
// the infrastructure layer.
type InMemoryIdempotencyStore struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

func NewInMemoryIdempotencyStore() *InMemoryIdempotencyStore {
	return &InMemoryIdempotencyStore{seen: make(map[string]time.Time)}
}

func (s *InMemoryIdempotencyStore) Claim(key string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if last, ok := s.seen[key]; ok && now.Sub(last) < DuplicateWindow {
		return false
	}
	s.seen[key] = now
	return true
}
