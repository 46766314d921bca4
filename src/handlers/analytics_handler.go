package handlers

import (
	"net/http"

	"github.com/username/lotfolio/src/models"
	"github.com/username/lotfolio/src/services"
	"github.com/username/lotfolio/src/utils"
)

type AnalyticsHandler struct {
	lotService services.LotService
}

func NewAnalyticsHandler(lotService services.LotService) *AnalyticsHandler {
	return &AnalyticsHandler{lotService: lotService}
}

// HandlePLSummary accepts repeated account_id parameters and an optional
// start_date/end_date range on close dates.
func (h *AnalyticsHandler) HandlePLSummary(w http.ResponseWriter, r *http.Request) {
	var f models.PLFilter
	for _, raw := range r.URL.Query()["account_id"] {
		id, err := parseInt64("account_id", raw)
		if err != nil {
			utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.AccountIDs = append(f.AccountIDs, id)
	}
	var err error
	if f.StartDate, err = queryDate(r, "start_date"); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if f.EndDate, err = queryDate(r, "end_date"); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	summary, err := h.lotService.GetPLSummary(r.Context(), f)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	utils.WriteJSONWithETag(w, r, summary)
}

func (h *AnalyticsHandler) HandlePLOverTime(w http.ResponseWriter, r *http.Request) {
	accountID, err := queryInt64(r, "account_id")
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	points, err := h.lotService.GetPLOverTime(r.Context(), accountID)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	utils.WriteJSONWithETag(w, r, points)
}
