package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	appErrors "github.com/unclebandit/mica-backend/internal/errors"
	"github.com/unclebandit/mica-backend/internal/model"
)

// AssetRepositoryInterface covers the generated email, WhatsApp and social content.
// Replace* methods swap the whole set for a campaign so a retried generation
// step never leaves duplicates behind.
type AssetRepositoryInterface interface {
	ReplaceEmailTemplates(ctx context.Context, campaignID string, items []model.EmailTemplate) error
	ReplaceWhatsAppMessages(ctx context.Context, campaignID string, items []model.WhatsAppMessage) error
	ReplaceSocialPosts(ctx context.Context, campaignID string, items []model.SocialPost) error

	ListEmailTemplates(ctx context.Context, campaignID string) ([]model.EmailTemplate, error)
	ListWhatsAppMessages(ctx context.Context, campaignID string) ([]model.WhatsAppMessage, error)
	ListSocialPosts(ctx context.Context, campaignID string) ([]model.SocialPost, error)

	GetEmailTemplate(ctx context.Context, id string) (*model.EmailTemplate, error)
	GetWhatsAppMessage(ctx context.Context, id string) (*model.WhatsAppMessage, error)
	GetSocialPost(ctx context.Context, id string) (*model.SocialPost, error)

	UpdateSocialPostImage(ctx context.Context, id, imageURL string) error
}

type AssetRepository struct {
	DB *sql.DB
}

func (r *AssetRepository) replace(ctx context.Context, table, campaignID string, insert func(tx *sql.Tx) error) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE campaign_id=$1`, table), campaignID); err != nil {
		return err
	}
	if err := insert(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *AssetRepository) ReplaceEmailTemplates(ctx context.Context, campaignID string, items []model.EmailTemplate) error {
	return r.replace(ctx, "email_templates", campaignID, func(tx *sql.Tx) error {
		query := `
            INSERT INTO email_templates (id, campaign_id, template_order, subject, pre_header, body, cta_text, scheduled_day, created_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        `
		now := time.Now()
		for i := range items {
			e := &items[i]
			e.CampaignID = campaignID
			e.CreatedAt = now
			if _, err := tx.ExecContext(ctx, query, e.ID, campaignID, e.TemplateOrder, e.Subject, e.PreHeader, e.Body, e.CTAText, e.ScheduledDay, now); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *AssetRepository) ReplaceWhatsAppMessages(ctx context.Context, campaignID string, items []model.WhatsAppMessage) error {
	return r.replace(ctx, "whatsapp_messages", campaignID, func(tx *sql.Tx) error {
		query := `
            INSERT INTO whatsapp_messages (id, campaign_id, message_order, message_text, message_type, scheduled_day, created_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7)
        `
		now := time.Now()
		for i := range items {
			m := &items[i]
			m.CampaignID = campaignID
			m.CreatedAt = now
			if _, err := tx.ExecContext(ctx, query, m.ID, campaignID, m.MessageOrder, m.MessageText, m.MessageType, m.ScheduledDay, now); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *AssetRepository) ReplaceSocialPosts(ctx context.Context, campaignID string, items []model.SocialPost) error {
	return r.replace(ctx, "social_posts", campaignID, func(tx *sql.Tx) error {
		query := `
            INSERT INTO social_posts (id, campaign_id, post_order, platform, caption, hashtags, scheduled_day,
                image_suggestion, post_type, image_url, created_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        `
		now := time.Now()
		for i := range items {
			p := &items[i]
			p.CampaignID = campaignID
			p.CreatedAt = now
			if _, err := tx.ExecContext(ctx, query, p.ID, campaignID, p.PostOrder, p.Platform, p.Caption, p.Hashtags,
				p.ScheduledDay, p.ImageSuggestion, p.PostType, p.ImageURL, now); err != nil {
				return err
			}
		}
		return nil
	})
}

const (
	emailColumns    = `id, campaign_id, template_order, subject, pre_header, body, cta_text, scheduled_day, created_at`
	whatsappColumns = `id, campaign_id, message_order, message_text, message_type, scheduled_day, created_at`
	postColumns     = `id, campaign_id, post_order, platform, caption, hashtags, scheduled_day, image_suggestion, post_type, image_url, created_at`
)

func scanEmail(row rowScanner) (model.EmailTemplate, error) {
	var e model.EmailTemplate
	err := row.Scan(&e.ID, &e.CampaignID, &e.TemplateOrder, &e.Subject, &e.PreHeader, &e.Body, &e.CTAText, &e.ScheduledDay, &e.CreatedAt)
	return e, err
}

func scanWhatsApp(row rowScanner) (model.WhatsAppMessage, error) {
	var m model.WhatsAppMessage
	err := row.Scan(&m.ID, &m.CampaignID, &m.MessageOrder, &m.MessageText, &m.MessageType, &m.ScheduledDay, &m.CreatedAt)
	return m, err
}

func scanPost(row rowScanner) (model.SocialPost, error) {
	var p model.SocialPost
	err := row.Scan(&p.ID, &p.CampaignID, &p.PostOrder, &p.Platform, &p.Caption, &p.Hashtags, &p.ScheduledDay,
		&p.ImageSuggestion, &p.PostType, &p.ImageURL, &p.CreatedAt)
	return p, err
}

// listRows runs query and scans every row with scan.
func listRows[T any](ctx context.Context, db *sql.DB, query string, scan func(rowScanner) (T, error), args ...any) ([]T, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (r *AssetRepository) ListEmailTemplates(ctx context.Context, campaignID string) ([]model.EmailTemplate, error) {
	return listRows(ctx, r.DB, `SELECT `+emailColumns+` FROM email_templates WHERE campaign_id=$1 ORDER BY template_order`, scanEmail, campaignID)
}

func (r *AssetRepository) ListWhatsAppMessages(ctx context.Context, campaignID string) ([]model.WhatsAppMessage, error) {
	return listRows(ctx, r.DB, `SELECT `+whatsappColumns+` FROM whatsapp_messages WHERE campaign_id=$1 ORDER BY message_order`, scanWhatsApp, campaignID)
}

func (r *AssetRepository) ListSocialPosts(ctx context.Context, campaignID string) ([]model.SocialPost, error) {
	return listRows(ctx, r.DB, `SELECT `+postColumns+` FROM social_posts WHERE campaign_id=$1 ORDER BY post_order`, scanPost, campaignID)
}

func (r *AssetRepository) GetEmailTemplate(ctx context.Context, id string) (*model.EmailTemplate, error) {
	e, err := scanEmail(r.DB.QueryRowContext(ctx, `SELECT `+emailColumns+` FROM email_templates WHERE id=$1`, id))
	if err != nil {
		return nil, notFound(err, model.AssetEmailTemplate, id)
	}
	return &e, nil
}

func (r *AssetRepository) GetWhatsAppMessage(ctx context.Context, id string) (*model.WhatsAppMessage, error) {
	m, err := scanWhatsApp(r.DB.QueryRowContext(ctx, `SELECT `+whatsappColumns+` FROM whatsapp_messages WHERE id=$1`, id))
	if err != nil {
		return nil, notFound(err, model.AssetWhatsAppMessage, id)
	}
	return &m, nil
}

func (r *AssetRepository) GetSocialPost(ctx context.Context, id string) (*model.SocialPost, error) {
	p, err := scanPost(r.DB.QueryRowContext(ctx, `SELECT `+postColumns+` FROM social_posts WHERE id=$1`, id))
	if err != nil {
		return nil, notFound(err, model.AssetSocialPost, id)
	}
	return &p, nil
}

func (r *AssetRepository) UpdateSocialPostImage(ctx context.Context, id, imageURL string) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE social_posts SET image_url=$1 WHERE id=$2`, imageURL, id)
	return err
}

func notFound(err error, kind, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.NewAssetNotFound(kind, id)
	}
	return err
}

var _ AssetRepositoryInterface = (*AssetRepository)(nil)
