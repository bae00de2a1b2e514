package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	auditFileMode = 0644
	auditDirMode  = 0755
)

// Event is one audit record written as a single JSON line. It captures a
// policy decision, an approval outcome, or a command execution.
type Event struct {
	Time     time.Time `json:"time"`
	Type     string    `json:"type"`
	RunID    string    `json:"run_id,omitempty"`
	BranchID string    `json:"branch_id,omitempty"`
	Action   string    `json:"action,omitempty"`
	Result   string    `json:"result,omitempty"`
}

// Event types recorded by the runtime.
const (
	TypePolicyBlocked    = "policy_blocked"
	TypePolicyPreApprove = "policy_pre_approved"
	TypeApprovalGranted  = "approval_granted"
	TypeApprovalDenied   = "approval_denied"
	TypeActionExecution  = "action_execution"
	TypeBranchStart      = "branch_start"
	TypeBranchFinish     = "branch_finish"
)

// Writer appends audit events to <stateDir>/audit.jsonl.
type Writer struct {
	path string
	mu   sync.Mutex
}

// NewWriter creates an append-only audit writer rooted at stateDir.
func NewWriter(stateDir string) *Writer {
	return &Writer{
		path: filepath.Join(stateDir, "audit.jsonl"),
	}
}

// Append writes one event as one JSONL line.
func (w *Writer) Append(event Event) error {
	if event.Time.IsZero() {
		event.Time = time.Now().UTC()
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(w.path), auditDirMode); err != nil {
		return fmt.Errorf("create audit dir: %w", err)
	}

	file, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, auditFileMode)
	if err != nil {
		return fmt.Errorf("open audit file: %w", err)
	}
	defer file.Close()

	encoded, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	encoded = append(encoded, '\n')

	if _, err := file.Write(encoded); err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("sync audit file: %w", err)
	}
	return nil
}
