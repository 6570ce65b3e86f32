// internal/controller/campaign_controller.go
package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/unclebandit/mica-backend/internal/model"
	"github.com/unclebandit/mica-backend/internal/service"
)

type CampaignController struct {
	CampaignService   *service.CampaignService
	ToneService       *service.ToneService
	GenerationService *service.GenerationService
	LaunchService     *service.LaunchService
	Log               zerolog.Logger
}

func (c *CampaignController) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var body service.CreateCampaignInput
	if err := decodeBody(r, &body); err != nil {
		RespondError(w, c.Log, err)
		return
	}

	campaign, err := c.CampaignService.CreateCampaign(r.Context(), body)
	if err != nil {
		RespondError(w, c.Log, err)
		return
	}

	c.Log.Info().Str("campaign_id", campaign.ID).Str("product", campaign.ProductName).Msg("✅ campaign created")
	RespondJSON(w, http.StatusCreated, campaign)
}

func (c *CampaignController) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	status := r.URL.Query().Get("status")

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}

	campaigns, pagination, err := c.CampaignService.ListCampaigns(r.Context(), page, pageSize, status)
	if err != nil {
		RespondError(w, c.Log, err)
		return
	}

	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"data":       campaigns,
		"pagination": pagination,
	})
}

// TonePreview returns the campaign with its tone preview, generating it on first call.
func (c *CampaignController) TonePreview(w http.ResponseWriter, r *http.Request) {
	campaign, err := c.ToneService.Preview(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, c.Log, err)
		return
	}
	RespondJSON(w, http.StatusOK, campaign)
}

func (c *CampaignController) ReviseTone(w http.ResponseWriter, r *http.Request) {
	var body service.ReviseToneInput
	if err := decodeBody(r, &body); err != nil {
		RespondError(w, c.Log, err)
		return
	}

	campaign, err := c.ToneService.Revise(r.Context(), chi.URLParam(r, "id"), body)
	if err != nil {
		RespondError(w, c.Log, err)
		return
	}
	RespondJSON(w, http.StatusOK, campaign)
}

func (c *CampaignController) ApproveTone(w http.ResponseWriter, r *http.Request) {
	campaign, err := c.ToneService.Approve(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, c.Log, err)
		return
	}
	RespondJSON(w, http.StatusOK, campaign)
}

// Generate starts the content pipeline in the background and answers 202.
// A run already in flight is reported, not restarted.
func (c *CampaignController) Generate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	err := c.GenerationService.Start(r.Context(), id)
	if errors.Is(err, service.ErrGenerationRunning) {
		RespondJSON(w, http.StatusAccepted, c.GenerationService.Progress(id))
		return
	}
	if err != nil {
		RespondError(w, c.Log, err)
		return
	}

	c.Log.Info().Str("campaign_id", id).Msg("🚀 generation started")
	RespondJSON(w, http.StatusAccepted, c.GenerationService.Progress(id))
}

func (c *CampaignController) GenerationProgress(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, c.GenerationService.Progress(chi.URLParam(r, "id")))
}

func (c *CampaignController) Launch(w http.ResponseWriter, r *http.Request) {
	result, err := c.LaunchService.Launch(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, c.Log, err)
		return
	}
	RespondJSON(w, http.StatusOK, result)
}

func (c *CampaignController) Pause(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	n, err := c.LaunchService.Pause(r.Context(), id)
	if err != nil {
		RespondError(w, c.Log, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"campaign_id":     id,
		"status":          model.CampaignPaused,
		"entries_changed": n,
	})
}

func (c *CampaignController) Resume(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	n, err := c.LaunchService.Resume(r.Context(), id)
	if err != nil {
		RespondError(w, c.Log, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"campaign_id":     id,
		"status":          model.CampaignExecuting,
		"entries_changed": n,
	})
}

func (c *CampaignController) TestSend(w http.ResponseWriter, r *http.Request) {
	result, err := c.LaunchService.TestSend(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, c.Log, err)
		return
	}
	RespondJSON(w, http.StatusOK, result)
}

// PersonalizedPreview renders the asset behind a schedule entry. The optional
// first_name query parameter fills {{first_name}} placeholders.
func (c *CampaignController) PersonalizedPreview(w http.ResponseWriter, r *http.Request) {
	preview, err := c.CampaignService.PreviewEntry(
		r.Context(),
		chi.URLParam(r, "id"),
		chi.URLParam(r, "entryID"),
		r.URL.Query().Get("first_name"),
	)
	if err != nil {
		RespondError(w, c.Log, err)
		return
	}
	RespondJSON(w, http.StatusOK, preview)
}
