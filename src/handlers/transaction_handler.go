package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/username/lotfolio/src/logger"
	"github.com/username/lotfolio/src/models"
	"github.com/username/lotfolio/src/security/validation"
	"github.com/username/lotfolio/src/services"
	"github.com/username/lotfolio/src/utils"
)

type TransactionHandler struct {
	transactionService services.TransactionService
	lotService         services.LotService
	maxUploadSize      int64
}

func NewTransactionHandler(transactionService services.TransactionService, lotService services.LotService, maxUploadSize int64) *TransactionHandler {
	return &TransactionHandler{
		transactionService: transactionService,
		lotService:         lotService,
		maxUploadSize:      maxUploadSize,
	}
}

func (h *TransactionHandler) HandleListTransactions(w http.ResponseWriter, r *http.Request) {
	var f models.TransactionFilter
	var err error
	if f.AccountID, err = queryInt64(r, "account_id"); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if f.IsOption, err = queryBool(r, "is_option"); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if f.StartDate, err = queryDate(r, "start_date"); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if f.EndDate, err = queryDate(r, "end_date"); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.Symbol = strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("symbol")))
	f.Type = strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("type")))

	page, err := queryPagination(r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	result, err := h.transactionService.ListTransactions(r.Context(), f, page)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	utils.SendJSON(w, result, http.StatusOK)
}

// HandleImportJSON accepts an array of normalized transaction rows.
func (h *TransactionHandler) HandleImportJSON(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	var raw []models.RawTransaction
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		logger.L.Warn("Invalid JSON import body", "error", err)
		utils.SendJSONError(w, "Invalid request body: expected an array of transactions", http.StatusBadRequest)
		return
	}
	result, err := h.transactionService.ImportRaw(r.Context(), raw)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	utils.SendJSON(w, result, http.StatusOK)
}

// HandleImportFile accepts a multipart "file" field or a raw request body.
// The "source" query parameter picks the parser (csv by default). The declared
// and sniffed content types must fit the source before anything is parsed.
func (h *TransactionHandler) HandleImportFile(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("source")
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)

	var file io.ReadSeeker
	declaredType := r.Header.Get("Content-Type")
	filename := ""
	if strings.HasPrefix(declaredType, "multipart/form-data") {
		if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
			logger.L.Warn("Failed to parse multipart form or request too large", "error", err, "limit", h.maxUploadSize)
			utils.SendJSONError(w, fmt.Sprintf("Failed to parse form or request too large (max %d MB)", h.maxUploadSize/(1024*1024)), http.StatusBadRequest)
			return
		}
		formFile, header, err := r.FormFile("file")
		if err != nil {
			utils.SendJSONError(w, "Failed to retrieve file from request. Ensure 'file' field is used.", http.StatusBadRequest)
			return
		}
		defer formFile.Close()
		file = formFile
		filename = header.Filename
		declaredType = header.Header.Get("Content-Type")
		if source == "" {
			source = r.FormValue("source")
		}
	} else {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			utils.SendJSONError(w, fmt.Sprintf("Failed to read request body or request too large (max %d MB)", h.maxUploadSize/(1024*1024)), http.StatusBadRequest)
			return
		}
		file = bytes.NewReader(body)
	}

	// A raw body without a Content-Type is judged by its content alone.
	if declaredType != "" {
		if err := validation.ValidateClientContentType(declaredType, source); err != nil {
			utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	detectedType, err := validation.ValidateFileContentByMagicBytes(file, source)
	if err != nil {
		logger.L.Warn("Import file content validation failed", "filename", filename, "error", err)
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	logger.L.Info("Processing import request", "filename", filename, "source", source, "clientType", declaredType, "detectedType", detectedType)
	result, err := h.transactionService.ImportFile(r.Context(), file, source)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	utils.SendJSON(w, result, http.StatusOK)
}

func (h *TransactionHandler) HandleUnlinked(w http.ResponseWriter, r *http.Request) {
	accountID, err := queryInt64(r, "account_id")
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	var txns []*models.Transaction
	switch kind := strings.ToLower(r.URL.Query().Get("kind")); kind {
	case "option", "options", "":
		txns, err = h.lotService.GetUnlinkedOptionTransactions(r.Context(), accountID)
	case "stock", "stocks":
		txns, err = h.lotService.GetUnlinkedStockTransactions(r.Context(), accountID)
	default:
		utils.SendJSONError(w, fmt.Sprintf("invalid kind %q, expected option or stock", kind), http.StatusBadRequest)
		return
	}
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	if txns == nil {
		txns = []*models.Transaction{}
	}
	utils.SendJSON(w, txns, http.StatusOK)
}

func (h *TransactionHandler) HandleTransactionLots(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	lots, err := h.lotService.GetLotsForTransaction(r.Context(), id)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	if lots == nil {
		lots = []*models.Lot{}
	}
	utils.SendJSON(w, lots, http.StatusOK)
}
