package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeTransferRequested = "transfer_requested"
	EventTypeTransferResponded = "transfer_responded"
	EventTypeTransferCancelled = "transfer_cancelled"
	EventTypeTaskTransferred   = "task_transferred"
)

// RoleTransferApprover addresses an event to everyone allowed to approve transfers.
const RoleTransferApprover = "transfer_approver"

// Recipient addresses an event to a single employee or to a role.
type Recipient struct {
	UserID int64  `json:"user_id,omitempty"`
	Role   string `json:"role,omitempty"`
}

func ToUser(id int64) Recipient { return Recipient{UserID: id} }

func ToRole(role string) Recipient { return Recipient{Role: role} }

// TransferSnapshot is the transfer state carried on every transfer event.
type TransferSnapshot struct {
	TransferID      string         `json:"transfer_id"`
	TaskID          string         `json:"task_id"`
	TaskType        string         `json:"task_type"`
	FromUserID      int64          `json:"from_user_id"`
	ToUserID        int64          `json:"to_user_id"`
	Status          string         `json:"status"`
	Reason          string         `json:"reason,omitempty"`
	ResponseMessage string         `json:"response_message,omitempty"`
	RespondedBy     int64          `json:"responded_by,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

func (s TransferSnapshot) data() map[string]interface{} {
	data := map[string]interface{}{
		"transfer_id":  s.TransferID,
		"task_id":      s.TaskID,
		"task_type":    s.TaskType,
		"from_user_id": s.FromUserID,
		"to_user_id":   s.ToUserID,
		"status":       s.Status,
	}
	if s.Reason != "" {
		data["reason"] = s.Reason
	}
	if s.ResponseMessage != "" {
		data["response_message"] = s.ResponseMessage
	}
	if s.RespondedBy != 0 {
		data["responded_by"] = s.RespondedBy
	}
	if len(s.Metadata) > 0 {
		data["metadata"] = s.Metadata
	}
	return data
}

type TransferEvent struct {
	BaseEvent
	Recipient Recipient        `json:"recipient"`
	Title     string           `json:"title"`
	Transfer  TransferSnapshot `json:"transfer"`
}

func newTransferEvent(eventType, title string, to Recipient, snap TransferSnapshot) *TransferEvent {
	return &TransferEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      eventType,
			Timestamp: time.Now().UTC(),
			Data:      snap.data(),
		},
		Recipient: to,
		Title:     title,
		Transfer:  snap,
	}
}

func NewTransferRequestedEvent(to Recipient, snap TransferSnapshot) *TransferEvent {
	title := "Task transfer request"
	if to.Role != "" {
		title = "Task transfer awaiting approval"
	}
	return newTransferEvent(EventTypeTransferRequested, title, to, snap)
}

func NewTransferRespondedEvent(to Recipient, snap TransferSnapshot) *TransferEvent {
	return newTransferEvent(EventTypeTransferResponded, "Task transfer "+snap.Status, to, snap)
}

func NewTransferCancelledEvent(to Recipient, snap TransferSnapshot) *TransferEvent {
	return newTransferEvent(EventTypeTransferCancelled, "Task transfer cancelled", to, snap)
}

// NewTaskTransferredEvent announces that ownership of a task actually moved.
func NewTaskTransferredEvent(transferID, taskID, taskType string, from, to int64) *TransferEvent {
	snap := TransferSnapshot{
		TransferID: transferID,
		TaskID:     taskID,
		TaskType:   taskType,
		FromUserID: from,
		ToUserID:   to,
		Status:     "accepted",
	}
	return newTransferEvent(EventTypeTaskTransferred, "Task ownership changed", ToUser(to), snap)
}
