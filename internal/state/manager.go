package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const runStateFileMode = 0600

// RunState stores the summary of the most recent run.
type RunState struct {
	RunID            string           `json:"run_id"`
	FinishedAt       time.Time        `json:"finished_at,omitempty"`
	ActionCalls      int64            `json:"action_calls"`
	ActionErrors     int64            `json:"action_errors"`
	PromptTokens     int64            `json:"prompt_tokens,omitempty"`
	CompletionTokens int64            `json:"completion_tokens,omitempty"`
	PerAction        map[string]int64 `json:"per_action,omitempty"`
}

// Manager persists lightweight runtime state.
type Manager struct {
	runStatePath string
	mu           sync.Mutex
}

// NewManager creates a state manager under stateDir.
func NewManager(stateDir string) *Manager {
	return &Manager{
		runStatePath: filepath.Join(stateDir, "last_run.json"),
	}
}

// LoadRunState reads the last run summary from disk.
// Missing or malformed files are treated as empty state.
func (m *Manager) LoadRunState() (RunState, error) {
	data, err := os.ReadFile(m.runStatePath)
	if err != nil {
		if os.IsNotExist(err) {
			return RunState{}, nil
		}
		return RunState{}, err
	}

	var st RunState
	if err := json.Unmarshal(data, &st); err != nil {
		return RunState{}, nil
	}
	st.RunID = strings.TrimSpace(st.RunID)
	if st.RunID == "" {
		return RunState{}, nil
	}
	return st, nil
}

// SaveRunState writes the run summary to disk.
func (m *Manager) SaveRunState(st RunState) error {
	st.RunID = strings.TrimSpace(st.RunID)
	if st.RunID == "" {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(m.runStatePath), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(m.runStatePath, data, runStateFileMode)
}
