// internal/handler/campaign_handler.go
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/unclebandit/mica-backend/internal/controller"
	"github.com/unclebandit/mica-backend/internal/service"
)

// CampaignHandler serves the campaign detail page data.
type CampaignHandler struct {
	Service *service.CampaignService
	Log     zerolog.Logger
}

func NewCampaignHandler(svc *service.CampaignService, log zerolog.Logger) *CampaignHandler {
	return &CampaignHandler{Service: svc, Log: log}
}

// GetCampaignHandlerWithStats returns the campaign, its generated assets, the
// recipient count and schedule entry counts per status.
func (h *CampaignHandler) GetCampaignHandlerWithStats(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	h.Log.Debug().Str("campaign_id", id).Msg("📥 campaign details requested")

	details, err := h.Service.GetCampaignDetailsWithStats(r.Context(), id)
	if err != nil {
		controller.RespondError(w, h.Log, err)
		return
	}

	controller.RespondJSON(w, http.StatusOK, details)
}
