package core

import (
	"os"
	"sort"
	"time"
)

// Tag keys applied to every resource a harness run creates.
const (
	TagManaged   = "netbench-managed"
	TagRun       = "netbench-run"
	TagRole      = "netbench-role"
	TagStack     = "netbench-stack"
	TagInstance  = "netbench-instance"
	TagCreatedAt = "netbench-created-at"
)

// TagSet holds the standard tags for a cloud resource.
type TagSet struct {
	RunID      string
	Role       string
	Stack      string
	InstanceID string
	CreatedAt  time.Time
}

// AsMap returns tags as map[string]string (CloudWatch Logs and general use).
func (ts TagSet) AsMap() map[string]string {
	m := map[string]string{
		TagManaged:   "true",
		TagRun:       ts.RunID,
		TagRole:      ts.Role,
		TagStack:     ts.Stack,
		TagInstance:  ts.InstanceID,
		TagCreatedAt: ts.CreatedAt.UTC().Format(time.RFC3339),
	}
	for k, v := range m {
		if v == "" {
			delete(m, k)
		}
	}
	return m
}

// Each calls fn for every tag in key order.
func (ts TagSet) Each(fn func(key, value string)) {
	m := ts.AsMap()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fn(k, m[k])
	}
}

// DefaultInstanceID returns the hostname or "unknown" if unavailable.
func DefaultInstanceID() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "unknown"
	}
	return h
}
