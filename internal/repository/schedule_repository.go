package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	appErrors "github.com/unclebandit/mica-backend/internal/errors"
	"github.com/unclebandit/mica-backend/internal/model"
)

// ScheduleRepositoryInterface persists execution schedule entries.
type ScheduleRepositoryInterface interface {
	LaunchTx(ctx context.Context, campaignID string, entries []model.ScheduleEntry, start, end model.Date, launchedAt time.Time) error
	ListByCampaign(ctx context.Context, campaignID string) ([]model.ScheduleEntry, error)
	GetEntry(ctx context.Context, campaignID, entryID string) (*model.ScheduleEntry, error)
	UpdateEntry(ctx context.Context, e *model.ScheduleEntry) error
	TransitionTx(ctx context.Context, campaignID, fromCampaign, toCampaign, fromEntry, toEntry string) (int64, error)
	CountByStatus(ctx context.Context, campaignID string) (map[string]int, error)
}

type ScheduleRepository struct {
	DB *sql.DB
}

const scheduleColumns = `id, campaign_id, channel, asset_type, asset_id, scheduled_day, scheduled_date, status,
        recipients_total, recipients_sent, recipients_failed, started_at, completed_at, created_at, version`

func scanEntry(row rowScanner) (model.ScheduleEntry, error) {
	var e model.ScheduleEntry
	err := row.Scan(&e.ID, &e.CampaignID, &e.Channel, &e.AssetType, &e.AssetID, &e.ScheduledDay, &e.ScheduledDate, &e.Status,
		&e.RecipientsTotal, &e.RecipientsSent, &e.RecipientsFailed, &e.StartedAt, &e.CompletedAt, &e.CreatedAt, &e.Version)
	return e, err
}

// LaunchTx inserts every entry and moves the campaign to executing in one
// transaction. The campaign row is locked first; a campaign that is already
// executing or paused is rejected so a resubmitted launch inserts nothing.
func (r *ScheduleRepository) LaunchTx(ctx context.Context, campaignID string, entries []model.ScheduleEntry, start, end model.Date, launchedAt time.Time) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var status string
	err = tx.QueryRowContext(ctx, `SELECT status FROM campaigns WHERE id=$1 FOR UPDATE`, campaignID).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.NewCampaignNotFound(campaignID)
		}
		return err
	}
	switch status {
	case model.CampaignExecuting, model.CampaignPaused, model.CampaignCompleted:
		return appErrors.Conflict("launch", "campaign is already "+status)
	}

	query := `
        INSERT INTO execution_schedule (id, campaign_id, channel, asset_type, asset_id, scheduled_day, scheduled_date,
            status, recipients_total, recipients_sent, recipients_failed, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
    `
	for i := range entries {
		e := &entries[i]
		if _, err := tx.ExecContext(ctx, query, e.ID, campaignID, e.Channel, e.AssetType, e.AssetID, e.ScheduledDay,
			e.ScheduledDate, e.Status, e.RecipientsTotal, e.RecipientsSent, e.RecipientsFailed, e.CreatedAt); err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx, `
        UPDATE campaigns
        SET status=$1, launched_at=$2, campaign_start_date=$3, campaign_end_date=$4, updated_at=NOW()
        WHERE id=$5
    `, model.CampaignExecuting, launchedAt, start, end, campaignID)
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (r *ScheduleRepository) ListByCampaign(ctx context.Context, campaignID string) ([]model.ScheduleEntry, error) {
	return listRows(ctx, r.DB,
		`SELECT `+scheduleColumns+` FROM execution_schedule WHERE campaign_id=$1 ORDER BY scheduled_day, created_at, id`,
		scanEntry, campaignID)
}

func (r *ScheduleRepository) GetEntry(ctx context.Context, campaignID, entryID string) (*model.ScheduleEntry, error) {
	e, err := scanEntry(r.DB.QueryRowContext(ctx,
		`SELECT `+scheduleColumns+` FROM execution_schedule WHERE campaign_id=$1 AND id=$2`, campaignID, entryID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewAssetNotFound("schedule entry", entryID)
		}
		return nil, err
	}
	return &e, nil
}

// UpdateEntry writes the progress fields of one entry if nobody wrote it
// since e was read, and bumps e.Version. A lost race returns ErrStaleEntry.
func (r *ScheduleRepository) UpdateEntry(ctx context.Context, e *model.ScheduleEntry) error {
	query := `
        UPDATE execution_schedule
        SET status=$1, recipients_sent=$2, recipients_failed=$3, started_at=$4, completed_at=$5, version=version+1
        WHERE id=$6 AND version=$7
        RETURNING version
    `
	var version int
	err := r.DB.QueryRowContext(ctx, query, e.Status, e.RecipientsSent, e.RecipientsFailed, e.StartedAt, e.CompletedAt,
		e.ID, e.Version).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		var exists bool
		if err := r.DB.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM execution_schedule WHERE id=$1)`, e.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return appErrors.NewAssetNotFound("schedule entry", e.ID)
		}
		return appErrors.ErrStaleEntry
	}
	if err != nil {
		return err
	}
	e.Version = version
	return nil
}

// TransitionTx moves the campaign from fromCampaign to toCampaign and every
// entry in fromEntry to toEntry. It returns how many entries moved.
func (r *ScheduleRepository) TransitionTx(ctx context.Context, campaignID, fromCampaign, toCampaign, fromEntry, toEntry string) (int64, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE campaigns SET status=$1, updated_at=NOW() WHERE id=$2 AND status=$3`,
		toCampaign, campaignID, fromCampaign)
	if err != nil {
		return 0, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, appErrors.Conflict("transition", "campaign is not "+fromCampaign)
	}

	res, err = tx.ExecContext(ctx, `UPDATE execution_schedule SET status=$1, version=version+1 WHERE campaign_id=$2 AND status=$3`,
		toEntry, campaignID, fromEntry)
	if err != nil {
		return 0, err
	}
	moved, _ := res.RowsAffected()
	return moved, tx.Commit()
}

func (r *ScheduleRepository) CountByStatus(ctx context.Context, campaignID string) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, COUNT(*) FROM execution_schedule WHERE campaign_id=$1 GROUP BY status`, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := map[string]int{
		model.EntryScheduled:  0,
		model.EntryInProgress: 0,
		model.EntryCompleted:  0,
		model.EntryFailed:     0,
		model.EntryPaused:     0,
	}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

var _ ScheduleRepositoryInterface = (*ScheduleRepository)(nil)
