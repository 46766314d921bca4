package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/username/lotfolio/src/logger"
	"github.com/username/lotfolio/src/models"
	"github.com/username/lotfolio/src/services"
	"github.com/username/lotfolio/src/utils"
)

type LotHandler struct {
	lotService services.LotService
}

func NewLotHandler(lotService services.LotService) *LotHandler {
	return &LotHandler{lotService: lotService}
}

func (h *LotHandler) HandleListLots(w http.ResponseWriter, r *http.Request) {
	filter, err := lotFilterFromQuery(r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	page, err := queryPagination(r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	result, err := h.lotService.GetLots(r.Context(), filter, page)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	utils.WriteJSONWithETag(w, r, result)
}

func lotFilterFromQuery(r *http.Request) (models.LotFilter, error) {
	var f models.LotFilter
	var err error
	if f.AccountID, err = queryInt64(r, "account_id"); err != nil {
		return f, err
	}
	if f.IsClosed, err = queryBool(r, "is_closed"); err != nil {
		return f, err
	}
	q := r.URL.Query()
	f.Symbol = strings.ToUpper(strings.TrimSpace(q.Get("symbol")))
	switch kind := models.InstrumentKind(strings.ToUpper(q.Get("instrument_type"))); kind {
	case "", models.InstrumentStock, models.InstrumentOption:
		f.InstrumentType = kind
	default:
		return f, fmt.Errorf("invalid instrument_type %q", q.Get("instrument_type"))
	}
	switch dir := models.Direction(strings.ToUpper(q.Get("direction"))); dir {
	case "", models.DirectionLong, models.DirectionShort:
		f.Direction = dir
	default:
		return f, fmt.Errorf("invalid direction %q", q.Get("direction"))
	}
	return f, nil
}

func (h *LotHandler) HandleGetLot(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	lot, err := h.lotService.GetLot(r.Context(), id)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	utils.SendJSON(w, lot, http.StatusOK)
}

type updateLotRequest struct {
	Notes *string `json:"notes"`
}

func (h *LotHandler) HandleUpdateLot(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	var req updateLotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Notes == nil {
		utils.SendJSONError(w, "notes is required", http.StatusBadRequest)
		return
	}
	lot, err := h.lotService.UpdateLotNotes(r.Context(), id, *req.Notes)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	utils.SendJSON(w, lot, http.StatusOK)
}

func (h *LotHandler) HandleDeleteLot(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.lotService.DeleteLot(r.Context(), id); err != nil {
		sendServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *LotHandler) HandleOpenPositions(w http.ResponseWriter, r *http.Request) {
	accountID, err := queryInt64(r, "account_id")
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	lots, err := h.lotService.GetOpenPositions(r.Context(), accountID)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	if lots == nil {
		lots = []*models.Lot{}
	}
	utils.SendJSON(w, lots, http.StatusOK)
}

func (h *LotHandler) HandleSymbols(w http.ResponseWriter, r *http.Request) {
	symbols, err := h.lotService.GetUniqueSymbols(r.Context())
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	if symbols == nil {
		symbols = []string{}
	}
	utils.SendJSON(w, symbols, http.StatusOK)
}

func (h *LotHandler) HandleMatch(w http.ResponseWriter, r *http.Request) {
	accountID, err := queryInt64(r, "account_id")
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	result, err := h.lotService.MatchAll(r.Context(), accountID)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	utils.SendJSON(w, result, http.StatusOK)
}

func (h *LotHandler) HandleRematch(w http.ResponseWriter, r *http.Request) {
	accountID, err := queryInt64(r, "account_id")
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	logger.L.Info("Rematch requested", "accountID", accountID)
	result, err := h.lotService.RematchAll(r.Context(), accountID)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	utils.SendJSON(w, result, http.StatusOK)
}

type matchPositionRequest struct {
	AccountID      int64  `json:"account_id"`
	InstrumentType string `json:"instrument_type"`
	Symbol         string `json:"symbol"`
	OptionType     string `json:"option_type"`
	StrikePrice    string `json:"strike_price"`
	ExpirationDate string `json:"expiration_date"`
}

func (req matchPositionRequest) key() (models.PositionKey, error) {
	if req.AccountID <= 0 {
		return nil, fmt.Errorf("account_id is required")
	}
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	switch models.InstrumentKind(strings.ToUpper(req.InstrumentType)) {
	case models.InstrumentStock:
		return models.StockKey{AccountID: req.AccountID, Symbol: symbol}, nil
	case models.InstrumentOption:
		optionType := strings.ToUpper(strings.TrimSpace(req.OptionType))
		if optionType != models.OptionTypeCall && optionType != models.OptionTypePut {
			return nil, fmt.Errorf("invalid option_type %q", req.OptionType)
		}
		strike, err := decimal.NewFromString(strings.TrimSpace(req.StrikePrice))
		if err != nil {
			return nil, fmt.Errorf("invalid strike_price %q", req.StrikePrice)
		}
		exp, err := utils.ParseDate(strings.TrimSpace(req.ExpirationDate))
		if err != nil {
			return nil, fmt.Errorf("invalid expiration_date %q", req.ExpirationDate)
		}
		return models.OptionKey{
			AccountID:        req.AccountID,
			UnderlyingSymbol: symbol,
			OptionType:       optionType,
			StrikePrice:      strike,
			ExpirationDate:   exp,
		}, nil
	default:
		return nil, fmt.Errorf("invalid instrument_type %q", req.InstrumentType)
	}
}

func (h *LotHandler) HandleMatchPosition(w http.ResponseWriter, r *http.Request) {
	var req matchPositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	key, err := req.key()
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	result, err := h.lotService.MatchPosition(r.Context(), key)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	utils.SendJSON(w, result, http.StatusOK)
}

func (h *LotHandler) HandleRecalculate(w http.ResponseWriter, r *http.Request) {
	changed, err := h.lotService.RecalculateAllPL(r.Context())
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	utils.SendJSON(w, map[string]int{"updated": changed}, http.StatusOK)
}

func (h *LotHandler) HandleMatchRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt64(r, "limit")
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	n := 0
	if limit != nil {
		n = int(*limit)
	}
	runs, err := h.lotService.RecentMatchRuns(r.Context(), n)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	if runs == nil {
		runs = []*models.MatchRun{}
	}
	utils.SendJSON(w, runs, http.StatusOK)
}
