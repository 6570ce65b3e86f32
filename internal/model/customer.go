// internal/model/customer.go
package model

// Customer is one row of an uploaded contact list.
type Customer struct {
	ID         string `db:"id" json:"id"`
	CampaignID string `db:"campaign_id" json:"campaign_id"`
	Name       string `db:"name" json:"name"`
	Email      string `db:"email" json:"email"`
	Phone      string `db:"phone" json:"phone"`
}
