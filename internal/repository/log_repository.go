package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/unclebandit/mica-backend/internal/model"
)

type LogRepositoryInterface interface {
	Append(ctx context.Context, l *model.CampaignLog) error
	ListByCampaign(ctx context.Context, campaignID string, limit int) ([]model.CampaignLog, error)
}

// LogRepository stores the append-only execution log.
type LogRepository struct {
	DB *sql.DB
}

func (r *LogRepository) Append(ctx context.Context, l *model.CampaignLog) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.ExecutedAt.IsZero() {
		l.ExecutedAt = time.Now()
	}
	var entryID any
	if l.ScheduleEntryID != "" {
		entryID = l.ScheduleEntryID
	}
	query := `
        INSERT INTO campaign_logs (id, campaign_id, schedule_entry_id, channel, action, recipient, status_details, executed_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `
	_, err := r.DB.ExecContext(ctx, query, l.ID, l.CampaignID, entryID, l.Channel, l.Action, l.Recipient, l.StatusDetails, l.ExecutedAt)
	return err
}

// ListByCampaign returns the newest logs first.
func (r *LogRepository) ListByCampaign(ctx context.Context, campaignID string, limit int) ([]model.CampaignLog, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
        SELECT id, campaign_id, COALESCE(schedule_entry_id, ''), channel, action, recipient, status_details, executed_at
        FROM campaign_logs
        WHERE campaign_id=$1
        ORDER BY executed_at DESC
        LIMIT $2
    `
	return listRows(ctx, r.DB, query, func(row rowScanner) (model.CampaignLog, error) {
		var l model.CampaignLog
		err := row.Scan(&l.ID, &l.CampaignID, &l.ScheduleEntryID, &l.Channel, &l.Action, &l.Recipient, &l.StatusDetails, &l.ExecutedAt)
		return l, err
	}, campaignID, limit)
}

var _ LogRepositoryInterface = (*LogRepository)(nil)
