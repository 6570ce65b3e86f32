package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/unclebandit/mica-backend/internal/model"
)

// CustomerRepositoryInterface defines methods used by service
type CustomerRepositoryInterface interface {
	CountByCampaign(ctx context.Context, campaignID string) (int, error)
	InsertBatch(ctx context.Context, campaignID string, customers []model.Customer) (int, error)
	First(ctx context.Context, campaignID string) (*model.Customer, error)
}

// CustomerRepository is the concrete implementation
type CustomerRepository struct {
	DB *sql.DB
}

// CountByCampaign returns how many contacts were uploaded for the campaign.
// The count is the recipients_total of every email and WhatsApp entry.
func (r *CustomerRepository) CountByCampaign(ctx context.Context, campaignID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM customer_data WHERE campaign_id = $1`, campaignID).Scan(&n)
	return n, err
}

// InsertBatch stores uploaded contacts in one transaction and returns how many were written.
func (r *CustomerRepository) InsertBatch(ctx context.Context, campaignID string, customers []model.Customer) (int, error) {
	if len(customers) == 0 {
		return 0, nil
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO customer_data (id, campaign_id, name, email, phone)
        VALUES ($1, $2, $3, $4, $5)
    `)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for i := range customers {
		c := &customers[i]
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		c.CampaignID = campaignID
		if _, err := stmt.ExecContext(ctx, c.ID, campaignID, c.Name, c.Email, c.Phone); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(customers), nil
}

// First returns the earliest uploaded contact, used as the test-send recipient.
// It returns nil when the campaign has no contacts.
func (r *CustomerRepository) First(ctx context.Context, campaignID string) (*model.Customer, error) {
	var c model.Customer
	err := r.DB.QueryRowContext(ctx, `
        SELECT id, campaign_id, name, email, phone
        FROM customer_data WHERE campaign_id = $1
        ORDER BY id LIMIT 1
    `, campaignID).Scan(&c.ID, &c.CampaignID, &c.Name, &c.Email, &c.Phone)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

var _ CustomerRepositoryInterface = (*CustomerRepository)(nil)
