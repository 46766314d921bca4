package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/username/lotfolio/src/models"
	"github.com/username/lotfolio/src/services"
	"github.com/username/lotfolio/src/utils"
)

// AnnotationHandler serves tags, comments and trade groups.
type AnnotationHandler struct {
	annotationService services.AnnotationService
}

func NewAnnotationHandler(annotationService services.AnnotationService) *AnnotationHandler {
	return &AnnotationHandler{annotationService: annotationService}
}

// pathIDs parses two numeric path parameters, writing a 400 on failure.
func pathIDs(w http.ResponseWriter, r *http.Request, first, second string) (int64, int64, bool) {
	a, err := pathID(r, first)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return 0, 0, false
	}
	b, err := pathID(r, second)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return 0, 0, false
	}
	return a, b, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// sendLinkResult answers a link request: 201 when a new link was made, 200 when it already existed.
func sendLinkResult(w http.ResponseWriter, added bool) {
	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	utils.SendJSON(w, map[string]bool{"added": added}, status)
}

func (h *AnnotationHandler) HandleListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.annotationService.ListTags(r.Context())
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	if tags == nil {
		tags = []*models.Tag{}
	}
	utils.SendJSON(w, tags, http.StatusOK)
}

type createTagRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

func (h *AnnotationHandler) HandleCreateTag(w http.ResponseWriter, r *http.Request) {
	var req createTagRequest
	if !decodeBody(w, r, &req) {
		return
	}
	tag, err := h.annotationService.CreateTag(r.Context(), req.Name, req.Color)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	utils.SendJSON(w, tag, http.StatusCreated)
}

func (h *AnnotationHandler) HandleUpdateTag(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "tagID")
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	var req models.TagUpdate
	if !decodeBody(w, r, &req) {
		return
	}
	tag, err := h.annotationService.UpdateTag(r.Context(), id, req)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	utils.SendJSON(w, tag, http.StatusOK)
}

func (h *AnnotationHandler) HandleDeleteTag(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "tagID")
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.annotationService.DeleteTag(r.Context(), id); err != nil {
		sendServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AnnotationHandler) HandleTransactionTags(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	tags, err := h.annotationService.GetTransactionTags(r.Context(), id)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	if tags == nil {
		tags = []*models.Tag{}
	}
	utils.SendJSON(w, tags, http.StatusOK)
}

func (h *AnnotationHandler) HandleTagTransaction(w http.ResponseWriter, r *http.Request) {
	txnID, tagID, ok := pathIDs(w, r, "id", "tagID")
	if !ok {
		return
	}
	added, err := h.annotationService.TagTransaction(r.Context(), txnID, tagID)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendLinkResult(w, added)
}

func (h *AnnotationHandler) HandleUntagTransaction(w http.ResponseWriter, r *http.Request) {
	txnID, tagID, ok := pathIDs(w, r, "id", "tagID")
	if !ok {
		return
	}
	if err := h.annotationService.UntagTransaction(r.Context(), txnID, tagID); err != nil {
		sendServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type commentRequest struct {
	Text string `json:"text"`
}

func (h *AnnotationHandler) HandleListComments(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	comments, err := h.annotationService.GetComments(r.Context(), id)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	if comments == nil {
		comments = []*models.Comment{}
	}
	utils.SendJSON(w, comments, http.StatusOK)
}

func (h *AnnotationHandler) HandleAddComment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	var req commentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	comment, err := h.annotationService.AddComment(r.Context(), id, req.Text)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	utils.SendJSON(w, comment, http.StatusCreated)
}

func (h *AnnotationHandler) HandleUpdateComment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "commentID")
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	var req commentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	comment, err := h.annotationService.UpdateComment(r.Context(), id, req.Text)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	utils.SendJSON(w, comment, http.StatusOK)
}

func (h *AnnotationHandler) HandleDeleteComment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "commentID")
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.annotationService.DeleteComment(r.Context(), id); err != nil {
		sendServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AnnotationHandler) HandleListTradeGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.annotationService.ListTradeGroups(r.Context())
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	if groups == nil {
		groups = []*models.TradeGroup{}
	}
	utils.SendJSON(w, groups, http.StatusOK)
}

func (h *AnnotationHandler) HandleStrategyTypes(w http.ResponseWriter, r *http.Request) {
	utils.SendJSON(w, models.StrategyTypes, http.StatusOK)
}

func (h *AnnotationHandler) HandleGetTradeGroup(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "groupID")
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	group, err := h.annotationService.GetTradeGroup(r.Context(), id)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	utils.SendJSON(w, group, http.StatusOK)
}

func (h *AnnotationHandler) HandleCreateTradeGroup(w http.ResponseWriter, r *http.Request) {
	var req models.TradeGroup
	if !decodeBody(w, r, &req) {
		return
	}
	group, err := h.annotationService.CreateTradeGroup(r.Context(), &req)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	utils.SendJSON(w, group, http.StatusCreated)
}

func (h *AnnotationHandler) HandleUpdateTradeGroup(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "groupID")
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	var req models.TradeGroupUpdate
	if !decodeBody(w, r, &req) {
		return
	}
	group, err := h.annotationService.UpdateTradeGroup(r.Context(), id, req)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	utils.SendJSON(w, group, http.StatusOK)
}

func (h *AnnotationHandler) HandleDeleteTradeGroup(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "groupID")
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.annotationService.DeleteTradeGroup(r.Context(), id); err != nil {
		sendServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AnnotationHandler) HandleAddToTradeGroup(w http.ResponseWriter, r *http.Request) {
	groupID, txnID, ok := pathIDs(w, r, "groupID", "txnID")
	if !ok {
		return
	}
	added, err := h.annotationService.AddToTradeGroup(r.Context(), groupID, txnID)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	sendLinkResult(w, added)
}

func (h *AnnotationHandler) HandleRemoveFromTradeGroup(w http.ResponseWriter, r *http.Request) {
	groupID, txnID, ok := pathIDs(w, r, "groupID", "txnID")
	if !ok {
		return
	}
	if err := h.annotationService.RemoveFromTradeGroup(r.Context(), groupID, txnID); err != nil {
		sendServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AnnotationHandler) HandleTransactionTradeGroups(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	groups, err := h.annotationService.GetTransactionTradeGroups(r.Context(), id)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	if groups == nil {
		groups = []*models.TradeGroup{}
	}
	utils.SendJSON(w, groups, http.StatusOK)
}
