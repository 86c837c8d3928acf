package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/hireflow/hireflow/internal/domain"
	"github.com/hireflow/hireflow/internal/models"
	"github.com/hireflow/hireflow/internal/notify"
	"github.com/hireflow/hireflow/internal/orchestrator"
	"github.com/hireflow/hireflow/internal/util"
)

type NotificationsController struct {
	Orchestrator *orchestrator.Orchestrator
}

func NewNotificationsController(o *orchestrator.Orchestrator) *NotificationsController {
	return &NotificationsController{Orchestrator: o}
}

func (c *NotificationsController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/notifications", c.handleSend)
	mux.HandleFunc("POST /api/v1/notifications/bulk", c.handleSendBulk)
	mux.HandleFunc("GET /api/v1/notifications", c.handleSearch)
	mux.HandleFunc("GET /api/v1/notifications/stats", c.handleStats)
	mux.HandleFunc("GET /api/v1/notifications/{id}", c.handleGet)
	mux.HandleFunc("GET /api/v1/notifications/{id}/logs", c.handleLogs)
	mux.HandleFunc("POST /api/v1/notifications/{id}/cancel", c.handleCancel)
	mux.HandleFunc("GET /api/v1/preferences/{recipientId}", c.handleGetPreferences)
	mux.HandleFunc("PUT /api/v1/preferences/{recipientId}", c.handleUpdatePreferences)
}

func (c *NotificationsController) handleSend(w http.ResponseWriter, r *http.Request) {
	req, err := util.DecodeJSONBody[models.SendNotificationRequest](r)
	if err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}
	n, err := c.Orchestrator.SendNotification(req)
	if err != nil {
		var renderErr *notify.RenderError
		if errors.As(err, &renderErr) {
			http.Error(w, renderErr.Error(), http.StatusUnprocessableEntity)
			return
		}
		writeEngineError(w, err)
		return
	}
	util.WriteJSONResponse(w, http.StatusCreated, mapNotificationToApi(n))
}

func (c *NotificationsController) handleSendBulk(w http.ResponseWriter, r *http.Request) {
	req, err := util.DecodeJSONBody[models.BulkNotificationRequest](r)
	if err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}
	if req.TemplateName == "" || len(req.Recipients) == 0 {
		http.Error(w, "templateName and recipients are required", http.StatusBadRequest)
		return
	}
	resp, err := c.Orchestrator.SendBulk(req)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	status := http.StatusCreated
	if resp.Queued == 0 {
		status = http.StatusUnprocessableEntity
	} else if resp.Failed > 0 {
		status = http.StatusMultiStatus
	}
	util.WriteJSONResponse(w, status, resp)
}

func (c *NotificationsController) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	results, err := c.Orchestrator.ListNotifications(q.Get("status"), q.Get("channel"), q.Get("recipientId"), limit, offset)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	apiResults := make([]models.NotificationApiResponse, 0, len(*results))
	for i := range *results {
		apiResults = append(apiResults, mapNotificationToApi(&(*results)[i]))
	}
	util.WriteJSONResponse(w, http.StatusOK, apiResults)
}

func (c *NotificationsController) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := c.Orchestrator.NotificationStats()
	if err != nil {
		writeEngineError(w, err)
		return
	}
	util.WriteJSONResponse(w, http.StatusOK, stats)
}

func (c *NotificationsController) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	n, err := c.Orchestrator.GetNotification(id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	util.WriteJSONResponse(w, http.StatusOK, mapNotificationToApi(n))
}

func (c *NotificationsController) handleLogs(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	entries, err := c.Orchestrator.NotificationLogs(id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	out := make([]models.NotificationLogApiEntry, 0, len(*entries))
	for _, e := range *entries {
		out = append(out, models.NotificationLogApiEntry{
			ID: e.ID, Level: e.Level, Message: e.Message, Created: e.Created,
		})
	}
	util.WriteJSONResponse(w, http.StatusOK, out)
}

func (c *NotificationsController) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	result, err := c.Orchestrator.CancelNotification(id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	util.WriteJSONResponse(w, http.StatusOK, result)
}

func (c *NotificationsController) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	recipientID := r.PathValue("recipientId")
	if recipientID == "" {
		http.Error(w, "recipientId is required", http.StatusBadRequest)
		return
	}
	p, err := c.Orchestrator.GetPreferences(recipientID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	util.WriteJSONResponse(w, http.StatusOK, p)
}

func (c *NotificationsController) handleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	recipientID := r.PathValue("recipientId")
	if recipientID == "" {
		http.Error(w, "recipientId is required", http.StatusBadRequest)
		return
	}
	req, err := util.DecodeJSONBody[models.UpdatePreferencesRequest](r)
	if err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}
	p, err := c.Orchestrator.UpdatePreferences(recipientID, req)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	util.WriteJSONResponse(w, http.StatusOK, p)
}

func mapNotificationToApi(n *domain.NotificationRequest) models.NotificationApiResponse {
	resp := models.NotificationApiResponse{
		ID:          n.ID,
		BusinessKey: n.BusinessKey,
		Channel:     n.Channel,
		Category:    n.Category,
		RecipientID: n.RecipientID,
		Address:     n.Address,
		Subject:     n.Subject,
		Body:        n.Body,
		Context:     n.Context,
		Priority:    n.Priority,
		Status:      n.Status,
		ScheduledAt: n.ScheduledAt,
		RetryCount:  n.RetryCount,
		MaxRetries:  n.MaxRetries,
		Created:     n.Created,
	}
	if n.TemplateName.Valid {
		resp.TemplateName = n.TemplateName.String
	}
	if n.SentAt.Valid {
		t := n.SentAt.Time
		resp.SentAt = &t
	}
	if n.FailedAt.Valid {
		t := n.FailedAt.Time
		resp.FailedAt = &t
	}
	if n.FailureReason.Valid {
		resp.FailureReason = n.FailureReason.String
	}
	if n.ExternalID.Valid {
		resp.ExternalID = n.ExternalID.String
	}
	return resp
}
