package telemetry

import (
	"sync"
	"time"
)

// Usage is an aggregated snapshot of one run's model and action activity.
type Usage struct {
	UpdatedAt        time.Time        `json:"updated_at"`
	PromptTokens     int64            `json:"prompt_tokens"`
	CompletionTokens int64            `json:"completion_tokens"`
	ActionCalls      int64            `json:"action_calls"`
	ActionErrors     int64            `json:"action_errors"`
	PerAction        map[string]int64 `json:"per_action"`
}

// TotalTokens returns prompt plus completion tokens.
func (u Usage) TotalTokens() int64 {
	return u.PromptTokens + u.CompletionTokens
}

// UsageSink aggregates usage across every branch of one run. It is shared by
// reference and safe for concurrent writers; appends never lose updates.
type UsageSink struct {
	mu   sync.Mutex
	snap Usage
}

// NewUsageSink creates an empty run-scoped sink.
func NewUsageSink() *UsageSink {
	return &UsageSink{snap: Usage{PerAction: make(map[string]int64)}}
}

// AddTokens records model token usage.
func (s *UsageSink) AddTokens(prompt, completion int64) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.PromptTokens += prompt
	s.snap.CompletionTokens += completion
	s.snap.UpdatedAt = time.Now().UTC()
}

// RecordAction records one action invocation.
func (s *UsageSink) RecordAction(name string, failed bool) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.ActionCalls++
	if failed {
		s.snap.ActionErrors++
	}
	s.snap.PerAction[name]++
	s.snap.UpdatedAt = time.Now().UTC()
}

// Snapshot returns a copy of the aggregated usage.
func (s *UsageSink) Snapshot() Usage {
	if s == nil {
		return Usage{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := s.snap
	copied.PerAction = make(map[string]int64, len(s.snap.PerAction))
	for name, count := range s.snap.PerAction {
		copied.PerAction[name] = count
	}
	return copied
}
