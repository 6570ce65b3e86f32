package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	appErrors "github.com/unclebandit/mica-backend/internal/errors"
	"github.com/unclebandit/mica-backend/internal/model"
)

type CampaignRepositoryInterface interface {
	// Campaign CRUD
	ListCampaigns(ctx context.Context, offset, limit int, status string) ([]*model.Campaign, int, error)
	ListByStatus(ctx context.Context, status string) ([]*model.Campaign, error)
	GetByID(ctx context.Context, id string) (*model.Campaign, error)
	Create(ctx context.Context, c *model.Campaign) error
	UpdateStatus(ctx context.Context, id, status string) error

	// Tone
	UpdateTone(ctx context.Context, id, tone, customWords string, revisionUsed bool) error
	SaveTonePreview(ctx context.Context, id string, preview *model.TonePreview, channels []string) error

	// Generated plan
	SaveMarketingPlan(ctx context.Context, id string, plan *model.MarketingPlan) error
	UpdateVideo(ctx context.Context, id, script, url, status string) error
}

type CampaignRepository struct {
	DB *sql.DB
}

const campaignColumns = `id, user_id, creator_name, product_name, product_description, product_links,
        target_audience, location, launch_date, budget, tone, tone_custom_words, tone_revision_used,
        tone_preview_content, recommended_channels, status, marketing_plan, video_script, video_url,
        video_status, launched_at, campaign_start_date, campaign_end_date, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCampaign(row rowScanner) (*model.Campaign, error) {
	var c model.Campaign
	err := row.Scan(
		&c.ID, &c.UserID, &c.CreatorName, &c.ProductName, &c.ProductDescription, &c.ProductLinks,
		&c.TargetAudience, &c.Location, &c.LaunchDate, &c.Budget, &c.Tone, &c.ToneCustomWords, &c.ToneRevisionUsed,
		&c.TonePreview, pq.Array(&c.RecommendedChannels), &c.Status, &c.MarketingPlan, &c.VideoScript, &c.VideoURL,
		&c.VideoStatus, &c.LaunchedAt, &c.StartDate, &c.EndDate, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ====================== Campaign CRUD ======================

func (r *CampaignRepository) Create(ctx context.Context, c *model.Campaign) error {
	c.CreatedAt = time.Now()
	if c.Status == "" {
		c.Status = model.CampaignTonePreview
	}
	if c.RecommendedChannels == nil {
		c.RecommendedChannels = []string{}
	}
	query := `
        INSERT INTO campaigns (id, user_id, creator_name, product_name, product_description, product_links,
            target_audience, location, launch_date, budget, tone, tone_custom_words, recommended_channels,
            status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
    `
	_, err := r.DB.ExecContext(ctx, query,
		c.ID, c.UserID, c.CreatorName, c.ProductName, c.ProductDescription, c.ProductLinks,
		c.TargetAudience, c.Location, c.LaunchDate, c.Budget, c.Tone, c.ToneCustomWords,
		pq.Array(c.RecommendedChannels), c.Status, c.CreatedAt,
	)
	return err
}

func (r *CampaignRepository) GetByID(ctx context.Context, id string) (*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id=$1`
	c, err := scanCampaign(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, err
	}
	return c, nil
}

func (r *CampaignRepository) UpdateStatus(ctx context.Context, id, status string) error {
	query := `UPDATE campaigns SET status=$1, updated_at=$2 WHERE id=$3`
	return r.execOne(ctx, id, query, status, time.Now(), id)
}

func (r *CampaignRepository) ListCampaigns(ctx context.Context, offset, limit int, status string) ([]*model.Campaign, int, error) {
	campaigns := []*model.Campaign{}
	where := ` WHERE 1=1`
	args := []interface{}{}
	argPos := 1

	if status != "" {
		where += fmt.Sprintf(" AND status=$%d", argPos)
		args = append(args, status)
		argPos++
	}

	query := `SELECT ` + campaignColumns + ` FROM campaigns` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)

	rows, err := r.DB.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, err
		}
		campaigns = append(campaigns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	// Count total
	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM campaigns`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	return campaigns, total, nil
}

// ListByStatus is used by the day scheduler to find running campaigns.
func (r *CampaignRepository) ListByStatus(ctx context.Context, status string) ([]*model.Campaign, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE status=$1 ORDER BY created_at`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	campaigns := []*model.Campaign{}
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

// ====================== Tone ======================

func (r *CampaignRepository) UpdateTone(ctx context.Context, id, tone, customWords string, revisionUsed bool) error {
	query := `
        UPDATE campaigns
        SET tone=$1, tone_custom_words=$2, tone_revision_used=$3, updated_at=NOW()
        WHERE id=$4
    `
	return r.execOne(ctx, id, query, tone, customWords, revisionUsed, id)
}

func (r *CampaignRepository) SaveTonePreview(ctx context.Context, id string, preview *model.TonePreview, channels []string) error {
	query := `
        UPDATE campaigns
        SET tone_preview_content=$1, recommended_channels=$2, updated_at=NOW()
        WHERE id=$3
    `
	return r.execOne(ctx, id, query, preview, pq.Array(channels), id)
}

// ====================== Generated plan ======================

func (r *CampaignRepository) SaveMarketingPlan(ctx context.Context, id string, plan *model.MarketingPlan) error {
	query := `UPDATE campaigns SET marketing_plan=$1, updated_at=NOW() WHERE id=$2`
	return r.execOne(ctx, id, query, plan, id)
}

func (r *CampaignRepository) UpdateVideo(ctx context.Context, id, script, url, status string) error {
	query := `
        UPDATE campaigns
        SET video_script=$1, video_url=$2, video_status=$3, updated_at=NOW()
        WHERE id=$4
    `
	return r.execOne(ctx, id, query, script, url, status, id)
}

// execOne runs an UPDATE that must hit exactly the campaign row.
func (r *CampaignRepository) execOne(ctx context.Context, id, query string, args ...any) error {
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return appErrors.NewCampaignNotFound(id)
	}
	return nil
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
