// Package repotest provides in-memory repositories for service and
// controller tests. They follow the not-found and conflict behaviour of the
// PostgreSQL repositories.
package repotest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	appErrors "github.com/unclebandit/mica-backend/internal/errors"
	"github.com/unclebandit/mica-backend/internal/model"
	"github.com/unclebandit/mica-backend/internal/repository"
)

var (
	_ repository.CampaignRepositoryInterface = (*Campaigns)(nil)
	_ repository.CustomerRepositoryInterface = (*Customers)(nil)
	_ repository.AssetRepositoryInterface    = (*Assets)(nil)
	_ repository.ScheduleRepositoryInterface = (*Schedule)(nil)
	_ repository.LogRepositoryInterface      = (*Logs)(nil)
)

// ErrInjected is returned by repositories whose Fail flag is set.
var ErrInjected = errors.New("injected failure")

// DB ties the fakes together so schedule transactions can move campaign status.
type DB struct {
	Campaigns *Campaigns
	Customers *Customers
	Assets    *Assets
	Schedule  *Schedule
	Logs      *Logs
}

func New() *DB {
	db := &DB{
		Campaigns: &Campaigns{byID: map[string]*model.Campaign{}},
		Customers: &Customers{byCampaign: map[string][]model.Customer{}},
		Assets:    &Assets{},
		Logs:      &Logs{},
	}
	db.Schedule = &Schedule{campaigns: db.Campaigns}
	return db
}

// Campaigns stores copies so callers cannot mutate stored rows by accident.
type Campaigns struct {
	mu    sync.Mutex
	byID  map[string]*model.Campaign
	order []string
	Fail  bool
}

func (r *Campaigns) Put(c model.Campaign) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[c.ID]; !ok {
		r.order = append(r.order, c.ID)
	}
	cp := c
	r.byID[c.ID] = &cp
}

// Get returns a copy of the stored campaign, or nil.
func (r *Campaigns) Get(id string) *model.Campaign {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return nil
	}
	cp := *c
	return &cp
}

func (r *Campaigns) ListCampaigns(_ context.Context, offset, limit int, status string) ([]*model.Campaign, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fail {
		return nil, 0, ErrInjected
	}
	var filtered []*model.Campaign
	for _, id := range r.order {
		c := r.byID[id]
		if status != "" && c.Status != status {
			continue
		}
		cp := *c
		filtered = append(filtered, &cp)
	}
	total := len(filtered)
	if offset > total {
		return []*model.Campaign{}, total, nil
	}
	end := min(offset+limit, total)
	return filtered[offset:end], total, nil
}

func (r *Campaigns) ListByStatus(ctx context.Context, status string) ([]*model.Campaign, error) {
	r.mu.Lock()
	n := len(r.order)
	r.mu.Unlock()
	out, _, err := r.ListCampaigns(ctx, 0, n, status)
	return out, err
}

func (r *Campaigns) GetByID(_ context.Context, id string) (*model.Campaign, error) {
	if c := r.Get(id); c != nil {
		return c, nil
	}
	return nil, appErrors.NewCampaignNotFound(id)
}

func (r *Campaigns) Create(_ context.Context, c *model.Campaign) error {
	if r.Fail {
		return ErrInjected
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	r.Put(*c)
	return nil
}

func (r *Campaigns) update(id string, fn func(c *model.Campaign)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fail {
		return ErrInjected
	}
	c, ok := r.byID[id]
	if !ok {
		return appErrors.NewCampaignNotFound(id)
	}
	fn(c)
	return nil
}

func (r *Campaigns) UpdateStatus(_ context.Context, id, status string) error {
	return r.update(id, func(c *model.Campaign) { c.Status = status })
}

func (r *Campaigns) UpdateTone(_ context.Context, id, tone, customWords string, revisionUsed bool) error {
	return r.update(id, func(c *model.Campaign) {
		c.Tone = tone
		c.ToneCustomWords = customWords
		c.ToneRevisionUsed = revisionUsed
	})
}

func (r *Campaigns) SaveTonePreview(_ context.Context, id string, preview *model.TonePreview, channels []string) error {
	return r.update(id, func(c *model.Campaign) {
		c.TonePreview = preview
		c.RecommendedChannels = channels
	})
}

func (r *Campaigns) SaveMarketingPlan(_ context.Context, id string, plan *model.MarketingPlan) error {
	return r.update(id, func(c *model.Campaign) { c.MarketingPlan = plan })
}

func (r *Campaigns) UpdateVideo(_ context.Context, id, script, url, status string) error {
	return r.update(id, func(c *model.Campaign) {
		c.VideoScript = script
		c.VideoURL = url
		c.VideoStatus = status
	})
}

type Customers struct {
	mu         sync.Mutex
	byCampaign map[string][]model.Customer
}

func (r *Customers) CountByCampaign(_ context.Context, campaignID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byCampaign[campaignID]), nil
}

func (r *Customers) InsertBatch(_ context.Context, campaignID string, customers []model.Customer) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range customers {
		c.ID = uuid.NewString()
		c.CampaignID = campaignID
		r.byCampaign[campaignID] = append(r.byCampaign[campaignID], c)
	}
	return len(customers), nil
}

func (r *Customers) First(_ context.Context, campaignID string) (*model.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.byCampaign[campaignID]
	if len(list) == 0 {
		return nil, nil
	}
	c := list[0]
	return &c, nil
}

type Assets struct {
	mu       sync.Mutex
	emails   []model.EmailTemplate
	whatsapp []model.WhatsAppMessage
	social   []model.SocialPost
}

func (r *Assets) ReplaceEmailTemplates(_ context.Context, campaignID string, items []model.EmailTemplate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.emails[:0:0]
	for _, t := range r.emails {
		if t.CampaignID != campaignID {
			kept = append(kept, t)
		}
	}
	r.emails = append(kept, items...)
	return nil
}

func (r *Assets) ReplaceWhatsAppMessages(_ context.Context, campaignID string, items []model.WhatsAppMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.whatsapp[:0:0]
	for _, m := range r.whatsapp {
		if m.CampaignID != campaignID {
			kept = append(kept, m)
		}
	}
	r.whatsapp = append(kept, items...)
	return nil
}

func (r *Assets) ReplaceSocialPosts(_ context.Context, campaignID string, items []model.SocialPost) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.social[:0:0]
	for _, p := range r.social {
		if p.CampaignID != campaignID {
			kept = append(kept, p)
		}
	}
	r.social = append(kept, items...)
	return nil
}

func (r *Assets) ListEmailTemplates(_ context.Context, campaignID string) ([]model.EmailTemplate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.EmailTemplate
	for _, t := range r.emails {
		if t.CampaignID == campaignID {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TemplateOrder < out[j].TemplateOrder })
	return out, nil
}

func (r *Assets) ListWhatsAppMessages(_ context.Context, campaignID string) ([]model.WhatsAppMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.WhatsAppMessage
	for _, m := range r.whatsapp {
		if m.CampaignID == campaignID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].MessageOrder < out[j].MessageOrder })
	return out, nil
}

func (r *Assets) ListSocialPosts(_ context.Context, campaignID string) ([]model.SocialPost, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.SocialPost
	for _, p := range r.social {
		if p.CampaignID == campaignID {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PostOrder < out[j].PostOrder })
	return out, nil
}

func (r *Assets) GetEmailTemplate(_ context.Context, id string) (*model.EmailTemplate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.emails {
		if t.ID == id {
			return &t, nil
		}
	}
	return nil, appErrors.NewAssetNotFound("email template", id)
}

func (r *Assets) GetWhatsAppMessage(_ context.Context, id string) (*model.WhatsAppMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.whatsapp {
		if m.ID == id {
			return &m, nil
		}
	}
	return nil, appErrors.NewAssetNotFound("whatsapp message", id)
}

func (r *Assets) GetSocialPost(_ context.Context, id string) (*model.SocialPost, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.social {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, appErrors.NewAssetNotFound("social post", id)
}

func (r *Assets) UpdateSocialPostImage(_ context.Context, id, imageURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.social {
		if r.social[i].ID == id {
			r.social[i].ImageURL = imageURL
			return nil
		}
	}
	return appErrors.NewAssetNotFound("social post", id)
}

type Schedule struct {
	mu        sync.Mutex
	campaigns *Campaigns
	entries   []model.ScheduleEntry
}

func (r *Schedule) LaunchTx(_ context.Context, campaignID string, entries []model.ScheduleEntry, start, end model.Date, launchedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.campaigns.Get(campaignID)
	if c == nil {
		return appErrors.NewCampaignNotFound(campaignID)
	}
	switch c.Status {
	case model.CampaignExecuting, model.CampaignPaused, model.CampaignCompleted:
		return appErrors.Conflict("launch", "campaign is already "+c.Status)
	}

	r.entries = append(r.entries, entries...)
	return r.campaigns.update(campaignID, func(c *model.Campaign) {
		c.Status = model.CampaignExecuting
		c.LaunchedAt = &launchedAt
		c.StartDate = start
		c.EndDate = end
	})
}

func (r *Schedule) ListByCampaign(_ context.Context, campaignID string) ([]model.ScheduleEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []model.ScheduleEntry{}
	for _, e := range r.entries {
		if e.CampaignID == campaignID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *Schedule) GetEntry(_ context.Context, campaignID, entryID string) (*model.ScheduleEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.ID == entryID && e.CampaignID == campaignID {
			return &e, nil
		}
	}
	return nil, appErrors.NewAssetNotFound("schedule entry", entryID)
}

func (r *Schedule) UpdateEntry(_ context.Context, e *model.ScheduleEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.entries {
		if r.entries[i].ID == e.ID {
			if r.entries[i].Version != e.Version {
				return appErrors.ErrStaleEntry
			}
			e.Version++
			r.entries[i] = *e
			return nil
		}
	}
	return appErrors.NewAssetNotFound("schedule entry", e.ID)
}

func (r *Schedule) TransitionTx(_ context.Context, campaignID, fromCampaign, toCampaign, fromEntry, toEntry string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.campaigns.Get(campaignID)
	if c == nil || c.Status != fromCampaign {
		return 0, appErrors.Conflict("transition", "campaign is not "+fromCampaign)
	}
	if err := r.campaigns.update(campaignID, func(c *model.Campaign) { c.Status = toCampaign }); err != nil {
		return 0, err
	}

	var moved int64
	for i := range r.entries {
		if r.entries[i].CampaignID == campaignID && r.entries[i].Status == fromEntry {
			r.entries[i].Status = toEntry
			r.entries[i].Version++
			moved++
		}
	}
	return moved, nil
}

func (r *Schedule) CountByStatus(_ context.Context, campaignID string) (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := map[string]int{}
	for _, e := range r.entries {
		if e.CampaignID == campaignID {
			counts[e.Status]++
		}
	}
	return counts, nil
}

type Logs struct {
	mu   sync.Mutex
	rows []model.CampaignLog
}

func (r *Logs) Append(_ context.Context, l *model.CampaignLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.ExecutedAt.IsZero() {
		l.ExecutedAt = time.Now()
	}
	r.rows = append(r.rows, *l)
	return nil
}

// ListByCampaign returns the newest rows first.
func (r *Logs) ListByCampaign(_ context.Context, campaignID string, limit int) ([]model.CampaignLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []model.CampaignLog{}
	for i := len(r.rows) - 1; i >= 0 && len(out) < limit; i-- {
		if r.rows[i].CampaignID == campaignID {
			out = append(out, r.rows[i])
		}
	}
	return out, nil
}
