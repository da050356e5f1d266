// Package tasks owns the task records whose ownership a transfer can move.
package tasks

import (
	"context"
	"errors"
	"fmt"
)

// MetadataChecklistRunID names the metadata key scoping a checklist item to its run.
const MetadataChecklistRunID = "checklist_run_id"

var ErrTaskNotFound = errors.New("task not found")

// Reassignment describes one ownership change.
type Reassignment struct {
	TransferID string
	TaskID     string
	TaskType   string
	NewOwner   int64
	OldOwner   int64
	Metadata   map[string]any
}

// Store moves a single task kind to a new owner.
type Store interface {
	Reassign(ctx context.Context, r Reassignment) error
}

// AuditNote is the line recorded on a workflow task when it changes hands.
func AuditNote(r Reassignment) string {
	return fmt.Sprintf("Transferred from employee %d to employee %d (transfer %s)", r.OldOwner, r.NewOwner, r.TransferID)
}

// ChecklistRunID returns the parent run named in metadata, if any.
func ChecklistRunID(metadata map[string]any) (string, bool) {
	v, ok := metadata[MetadataChecklistRunID]
	if !ok {
		return "", false
	}
	switch id := v.(type) {
	case string:
		return id, id != ""
	case fmt.Stringer:
		return id.String(), true
	case float64:
		return fmt.Sprintf("%.0f", id), true
	default:
		return "", false
	}
}
