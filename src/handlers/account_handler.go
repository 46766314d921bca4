package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/username/lotfolio/src/models"
	"github.com/username/lotfolio/src/services"
	"github.com/username/lotfolio/src/utils"
)

type AccountHandler struct {
	accountService services.AccountService
}

func NewAccountHandler(accountService services.AccountService) *AccountHandler {
	return &AccountHandler{accountService: accountService}
}

func (h *AccountHandler) HandleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.accountService.ListAccounts(r.Context())
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	utils.SendJSON(w, accounts, http.StatusOK)
}

func (h *AccountHandler) HandleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req models.Account
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	account, err := h.accountService.CreateAccount(r.Context(), &req)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	utils.SendJSON(w, account, http.StatusCreated)
}
