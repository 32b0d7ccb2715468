// Package health tracks per-component status for the readiness endpoint.
package health

import (
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	StateStarting = "starting"
	StateOK       = "ok"
	StateDegraded = "degraded"
	StateStopped  = "stopped"
)

type ComponentStatus struct {
	Name          string `json:"name"`
	State         string `json:"state"`
	Message       string `json:"message,omitempty"`
	UpdatedAtUnix int64  `json:"updated_at_unix"`
}

type Registry struct {
	mu         sync.RWMutex
	components map[string]ComponentStatus
}

func NewRegistry() *Registry {
	return &Registry{components: map[string]ComponentStatus{}}
}

func (r *Registry) Set(component, state, message string) {
	name := strings.ToLower(strings.TrimSpace(component))
	if name == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.components[name] = ComponentStatus{
		Name:          name,
		State:         state,
		Message:       strings.TrimSpace(message),
		UpdatedAtUnix: time.Now().UTC().Unix(),
	}
}

// Snapshot returns all component statuses sorted by name, plus the overall
// state: degraded if any component is degraded, ok otherwise.
func (r *Registry) Snapshot() (string, []ComponentStatus) {
	r.mu.RLock()
	statuses := make([]ComponentStatus, 0, len(r.components))
	for _, status := range r.components {
		statuses = append(statuses, status)
	}
	r.mu.RUnlock()

	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })
	overall := StateOK
	for _, status := range statuses {
		if status.State == StateDegraded {
			overall = StateDegraded
			break
		}
	}
	return overall, statuses
}
