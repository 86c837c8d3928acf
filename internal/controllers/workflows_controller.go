package controllers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/hireflow/hireflow/internal/domain"
	"github.com/hireflow/hireflow/internal/engine"
	"github.com/hireflow/hireflow/internal/models"
	"github.com/hireflow/hireflow/internal/orchestrator"
	"github.com/hireflow/hireflow/internal/util"
)

// WorkflowsController holds dependencies for workflow HTTP endpoints.
type WorkflowsController struct {
	Orchestrator *orchestrator.Orchestrator
}

func NewWorkflowsController(o *orchestrator.Orchestrator) *WorkflowsController {
	return &WorkflowsController{Orchestrator: o}
}

func (c *WorkflowsController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/workflows", c.handleCreateWorkflow)
	mux.HandleFunc("GET /api/v1/workflows", c.handleSearchWorkflows)
	mux.HandleFunc("GET /api/v1/workflows/{id}", c.handleGetWorkflow)
	mux.HandleFunc("POST /api/v1/workflows/{id}/transitions", c.handleTransition)
	mux.HandleFunc("POST /api/v1/workflows/{id}/cancel", c.handleCancel)
	mux.HandleFunc("GET /api/v1/workflows/{id}/actions", c.handleValidActions)
	mux.HandleFunc("GET /api/v1/workflows/{id}/timeline", c.handleTimeline)
	mux.HandleFunc("GET /api/v1/workflows/{id}/history", c.handleHistory)
	mux.HandleFunc("GET /api/v1/workflows/{id}/clock", c.handleStateClock)
}

func (c *WorkflowsController) handleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	req, err := util.DecodeJSONBody[models.CreateWorkflowRequest](r)
	if err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}
	if req.CandidateID == "" || req.JobID == "" {
		http.Error(w, "candidateId and jobId are required", http.StatusBadRequest)
		return
	}
	wf, err := c.Orchestrator.Instances.Create(req)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	util.WriteJSONResponse(w, http.StatusCreated, mapWorkflowToApi(wf))
}

func (c *WorkflowsController) handleSearchWorkflows(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.ParseInt(q.Get("limit"), 10, 64)
	offset, _ := strconv.ParseInt(q.Get("offset"), 10, 64)
	req := models.SearchWorkflowsRequest{
		Status:      q.Get("status"),
		CandidateID: q.Get("candidateId"),
		JobID:       q.Get("jobId"),
		Limit:       limit,
		Offset:      offset,
	}
	results, err := c.Orchestrator.Instances.List(req)
	if err != nil {
		slog.Error("Failed to search workflows", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	apiResults := make([]models.WorkflowApiResponse, 0, len(*results))
	for i := range *results {
		apiResults = append(apiResults, mapWorkflowToApi(&(*results)[i]))
	}
	util.WriteJSONResponse(w, http.StatusOK, apiResults)
}

func (c *WorkflowsController) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	wf, err := c.Orchestrator.Instances.Get(id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	util.WriteJSONResponse(w, http.StatusOK, mapWorkflowToApi(wf))
}

func (c *WorkflowsController) handleTransition(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	req, err := util.DecodeJSONBody[models.TransitionRequest](r)
	if err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}
	if req.Trigger == "" {
		http.Error(w, "trigger is required", http.StatusBadRequest)
		return
	}
	wf, err := c.Orchestrator.Instances.Transition(id, req)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	util.WriteJSONResponse(w, http.StatusOK, mapWorkflowToApi(wf))
}

func (c *WorkflowsController) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	req, err := util.DecodeJSONBody[models.CancelWorkflowRequest](r)
	if err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}
	result, err := c.Orchestrator.Instances.Cancel(id, req.Reason, req.Actor)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	util.WriteJSONResponse(w, http.StatusOK, result)
}

func (c *WorkflowsController) handleValidActions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	actions, err := c.Orchestrator.Instances.ValidActions(id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	util.WriteJSONResponse(w, http.StatusOK, actions)
}

func (c *WorkflowsController) handleTimeline(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	timeline, err := c.Orchestrator.Instances.Timeline(id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	util.WriteJSONResponse(w, http.StatusOK, timeline)
}

func (c *WorkflowsController) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	entries, err := c.Orchestrator.Instances.History(id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	type historyApi struct {
		Seq       int               `json:"seq"`
		FromState string            `json:"fromState,omitempty"`
		ToState   string            `json:"toState"`
		Trigger   string            `json:"trigger"`
		Actor     string            `json:"actor,omitempty"`
		Metadata  map[string]string `json:"metadata,omitempty"`
		Created   string            `json:"created"`
	}
	out := make([]historyApi, 0, len(*entries))
	for _, e := range *entries {
		h := historyApi{
			Seq: e.Seq, ToState: e.ToState, Trigger: e.Trigger,
			Actor: e.Actor, Metadata: e.Metadata,
			Created: e.Created.UTC().Format("2006-01-02T15:04:05Z07:00"),
		}
		if e.FromState.Valid {
			h.FromState = e.FromState.String
		}
		out = append(out, h)
	}
	util.WriteJSONResponse(w, http.StatusOK, out)
}

func (c *WorkflowsController) handleStateClock(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	clock, err := c.Orchestrator.Instances.StateClock(id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	util.WriteJSONResponse(w, http.StatusOK, clock)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	idStr := r.PathValue("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// writeEngineError maps engine sentinel errors onto HTTP statuses.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, engine.ErrDuplicateActive),
		errors.Is(err, engine.ErrInvalidTransition),
		errors.Is(err, engine.ErrScheduleConflict),
		errors.Is(err, engine.ErrInterviewStatus):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, engine.ErrTemplateInvalid):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		slog.Error("Request failed", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func mapWorkflowToApi(wf *domain.WorkflowInstance) models.WorkflowApiResponse {
	resp := models.WorkflowApiResponse{
		ID:              wf.ID,
		BusinessKey:     wf.BusinessKey,
		CandidateID:     wf.CandidateID,
		JobID:           wf.JobID,
		TemplateName:    wf.TemplateName,
		TemplateVersion: wf.TemplateVersion,
		CurrentState:    wf.CurrentState,
		Status:          wf.Status,
		Progress:        wf.Progress,
		StartedAt:       wf.StartedAt,
		Created:         wf.Created,
		Modified:        wf.Modified,
	}
	if wf.PreviousState.Valid {
		resp.PreviousState = wf.PreviousState.String
	}
	if wf.CompletedAt.Valid {
		t := wf.CompletedAt.Time
		resp.CompletedAt = &t
	}
	return resp
}
