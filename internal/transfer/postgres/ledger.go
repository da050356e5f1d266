package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/frahmantamala/kitchen-ops/internal/core/database"
	transferDatamodel "github.com/frahmantamala/kitchen-ops/internal/core/datamodel/transfer"
	"github.com/frahmantamala/kitchen-ops/internal/transfer"
)

// LedgerRepository persists transfer requests with GORM.
type LedgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func (r *LedgerRepository) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return database.WithinTransaction(ctx, r.db, fn)
}

func (r *LedgerRepository) Create(ctx context.Context, req *transfer.TransferRequest) error {
	row := toRow(req)
	if err := database.Conn(ctx, r.db).Create(row).Error; err != nil {
		return fmt.Errorf("create transfer request: %w", err)
	}
	req.ID = row.ID
	req.RequestedAt = row.RequestedAt
	return nil
}

func (r *LedgerRepository) GetByID(ctx context.Context, id string) (*transfer.TransferRequest, error) {
	var row transferDatamodel.TransferRequest
	err := database.Conn(ctx, r.db).Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, transfer.ErrTransferNotFound
		}
		return nil, fmt.Errorf("get transfer request: %w", err)
	}
	return fromRow(&row), nil
}

func (r *LedgerRepository) CompareAndSetStatus(ctx context.Context, id string, expected transfer.Status, upd transfer.StatusUpdate) (bool, error) {
	res := database.Conn(ctx, r.db).Model(&transferDatamodel.TransferRequest{}).
		Where("id = ? AND status = ?", id, string(expected)).
		Updates(map[string]interface{}{
			"status":           string(upd.Status),
			"response_message": upd.ResponseMessage,
			"responded_by":     upd.RespondedBy,
			"responded_at":     upd.RespondedAt.UTC(),
			"updated_at":       time.Now().UTC(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("update transfer status: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *LedgerRepository) CountSentBetween(ctx context.Context, fromUserID int64, start, end time.Time) (int64, error) {
	var count int64
	err := database.Conn(ctx, r.db).Model(&transferDatamodel.TransferRequest{}).
		Where("from_user_id = ? AND requested_at >= ? AND requested_at < ?", fromUserID, start.UTC(), end.UTC()).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count transfers: %w", err)
	}
	return count, nil
}

func (r *LedgerRepository) ListForUser(ctx context.Context, filter transfer.ListFilter) ([]*transfer.TransferRequest, error) {
	query := database.Conn(ctx, r.db).Model(&transferDatamodel.TransferRequest{})

	switch filter.Direction {
	case transfer.DirectionSent:
		query = query.Where("from_user_id = ?", filter.UserID)
	case transfer.DirectionReceived:
		query = query.Where("to_user_id = ?", filter.UserID)
	default:
		query = query.Where("from_user_id = ? OR to_user_id = ?", filter.UserID, filter.UserID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", string(*filter.Status))
	}

	var rows []transferDatamodel.TransferRequest
	err := query.Order("requested_at DESC").Order("id DESC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	return fromRows(rows), nil
}

// ListByStatus returns requests in status, oldest first so approvers work FIFO.
func (r *LedgerRepository) ListByStatus(ctx context.Context, status transfer.Status, limit, offset int) ([]*transfer.TransferRequest, error) {
	var rows []transferDatamodel.TransferRequest
	err := database.Conn(ctx, r.db).
		Where("status = ?", string(status)).
		Order("requested_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list transfers by status: %w", err)
	}
	return fromRows(rows), nil
}

func toRow(req *transfer.TransferRequest) *transferDatamodel.TransferRequest {
	return &transferDatamodel.TransferRequest{
		ID:              req.ID,
		TaskID:          req.TaskID,
		TaskType:        string(req.TaskType),
		FromUserID:      req.FromUserID,
		ToUserID:        req.ToUserID,
		Reason:          req.Reason,
		Status:          string(req.Status),
		ResponseMessage: req.ResponseMessage,
		RespondedBy:     req.RespondedBy,
		Metadata:        req.Metadata,
		RequestedAt:     req.RequestedAt.UTC(),
		RespondedAt:     req.RespondedAt,
	}
}

func fromRow(row *transferDatamodel.TransferRequest) *transfer.TransferRequest {
	req := &transfer.TransferRequest{
		ID:              row.ID,
		TaskID:          row.TaskID,
		TaskType:        transfer.TaskType(row.TaskType),
		FromUserID:      row.FromUserID,
		ToUserID:        row.ToUserID,
		Reason:          row.Reason,
		Status:          transfer.Status(row.Status),
		ResponseMessage: row.ResponseMessage,
		RespondedBy:     row.RespondedBy,
		Metadata:        row.Metadata,
		RequestedAt:     row.RequestedAt.UTC(),
	}
	if row.RespondedAt != nil {
		t := row.RespondedAt.UTC()
		req.RespondedAt = &t
	}
	return req
}

func fromRows(rows []transferDatamodel.TransferRequest) []*transfer.TransferRequest {
	out := make([]*transfer.TransferRequest, 0, len(rows))
	for i := range rows {
		out = append(out, fromRow(&rows[i]))
	}
	return out
}
