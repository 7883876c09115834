package core

import (
	"encoding/json"
	"os"
	"sort"
	"sync"
	"time"
)

// ResourceEntry tracks a single cloud resource created for a harness role.
type ResourceEntry struct {
	Role         string    `json:"role"`
	ResourceType string    `json:"resourceType"` // "cluster", "asg", "service", ...
	ResourceID   string    `json:"resourceId"`   // ARN, name or id
	RunID        string    `json:"runId"`
	CreatedAt    time.Time `json:"createdAt"`
	Seq          int       `json:"seq"`
}

// ResourceRegistry tracks all cloud resources created by a provisioning run.
type ResourceRegistry struct {
	mu       sync.RWMutex
	entries  map[string]*ResourceEntry // keyed by ResourceID
	next     int
	filePath string // for JSON persistence
}

// NewResourceRegistry creates a new resource registry.
// If filePath is empty, persistence is disabled.
func NewResourceRegistry(filePath string) *ResourceRegistry {
	return &ResourceRegistry{
		entries:  make(map[string]*ResourceEntry),
		filePath: filePath,
	}
}

// Register adds a resource entry to the registry. Entries keep the order in
// which they were first registered.
func (rr *ResourceRegistry) Register(entry ResourceEntry) {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	if existing, ok := rr.entries[entry.ResourceID]; ok {
		entry.Seq = existing.Seq
	} else {
		rr.next++
		entry.Seq = rr.next
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	rr.entries[entry.ResourceID] = &entry
}

// ListAll returns all entries in creation order.
func (rr *ResourceRegistry) ListAll() []ResourceEntry {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	result := make([]ResourceEntry, 0, len(rr.entries))
	for _, e := range rr.entries {
		result = append(result, *e)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Seq < result[j].Seq })
	return result
}

// ListByRole returns the entries of one role in creation order.
func (rr *ResourceRegistry) ListByRole(role string) []ResourceEntry {
	var result []ResourceEntry
	for _, e := range rr.ListAll() {
		if e.Role == role {
			result = append(result, e)
		}
	}
	return result
}

// Len returns the number of tracked resources.
func (rr *ResourceRegistry) Len() int {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	return len(rr.entries)
}

// Save writes the registry to disk as JSON, oldest entry first.
func (rr *ResourceRegistry) Save() error {
	if rr.filePath == "" {
		return nil
	}
	data, err := json.MarshalIndent(rr.ListAll(), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(rr.filePath, data, 0644)
}

// Load reads the registry from disk.
func (rr *ResourceRegistry) Load() error {
	if rr.filePath == "" {
		return nil
	}
	data, err := os.ReadFile(rr.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var entries []ResourceEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	rr.mu.Lock()
	defer rr.mu.Unlock()
	for i := range entries {
		e := entries[i]
		rr.entries[e.ResourceID] = &e
		if e.Seq > rr.next {
			rr.next = e.Seq
		}
	}
	return nil
}
