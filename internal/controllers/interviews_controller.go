package controllers

import (
	"net/http"

	"github.com/hireflow/hireflow/internal/domain"
	"github.com/hireflow/hireflow/internal/models"
	"github.com/hireflow/hireflow/internal/orchestrator"
	"github.com/hireflow/hireflow/internal/util"
)

type InterviewsController struct {
	Orchestrator *orchestrator.Orchestrator
}

func NewInterviewsController(o *orchestrator.Orchestrator) *InterviewsController {
	return &InterviewsController{Orchestrator: o}
}

func (c *InterviewsController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/interviews", c.handleCreateInterview)
	mux.HandleFunc("GET /api/v1/interviews/{id}", c.handleGetInterview)
	mux.HandleFunc("POST /api/v1/interviews/{id}/schedule", c.handleSchedule)
	mux.HandleFunc("POST /api/v1/interviews/{id}/start", c.handleStart)
	mux.HandleFunc("POST /api/v1/interviews/{id}/complete", c.handleComplete)
	mux.HandleFunc("POST /api/v1/interviews/{id}/cancel", c.handleCancel)
	mux.HandleFunc("GET /api/v1/workflows/{id}/interviews", c.handleListForWorkflow)
}

func (c *InterviewsController) handleCreateInterview(w http.ResponseWriter, r *http.Request) {
	req, err := util.DecodeJSONBody[models.CreateInterviewRequest](r)
	if err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}
	if req.WorkflowID == 0 || req.InterviewType == "" {
		http.Error(w, "workflowId and interviewType are required", http.StatusBadRequest)
		return
	}
	step, err := c.Orchestrator.Interviews.Create(req)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	util.WriteJSONResponse(w, http.StatusCreated, mapInterviewToApi(step))
}

func (c *InterviewsController) handleGetInterview(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	step, err := c.Orchestrator.Interviews.Get(id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	util.WriteJSONResponse(w, http.StatusOK, mapInterviewToApi(step))
}

func (c *InterviewsController) handleSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	req, err := util.DecodeJSONBody[models.ScheduleInterviewRequest](r)
	if err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}
	step, err := c.Orchestrator.Interviews.Schedule(id, req)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	util.WriteJSONResponse(w, http.StatusOK, mapInterviewToApi(step))
}

func (c *InterviewsController) handleStart(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	step, err := c.Orchestrator.Interviews.Start(id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	util.WriteJSONResponse(w, http.StatusOK, mapInterviewToApi(step))
}

func (c *InterviewsController) handleComplete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	req, err := util.DecodeJSONBody[models.CompleteInterviewRequest](r)
	if err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}
	step, err := c.Orchestrator.Interviews.Complete(id, req)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	util.WriteJSONResponse(w, http.StatusOK, mapInterviewToApi(step))
}

func (c *InterviewsController) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	req, err := util.DecodeJSONBody[models.CancelInterviewRequest](r)
	if err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}
	result, err := c.Orchestrator.Interviews.Cancel(id, req.Reason)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	util.WriteJSONResponse(w, http.StatusOK, result)
}

func (c *InterviewsController) handleListForWorkflow(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	steps, err := c.Orchestrator.Interviews.ListForWorkflow(id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	apiResults := make([]models.InterviewApiResponse, 0, len(*steps))
	for i := range *steps {
		apiResults = append(apiResults, mapInterviewToApi(&(*steps)[i]))
	}
	util.WriteJSONResponse(w, http.StatusOK, apiResults)
}

func mapInterviewToApi(s *domain.InterviewStep) models.InterviewApiResponse {
	resp := models.InterviewApiResponse{
		ID:             s.ID,
		WorkflowID:     s.WorkflowID,
		InterviewType:  s.InterviewType,
		RoundNumber:    s.RoundNumber,
		Title:          s.Title,
		Description:    s.Description,
		InterviewerIDs: s.InterviewerIDs,
		MeetingURL:     s.MeetingURL,
		Location:       s.Location,
		Status:         s.Status,
		Feedback:       s.Feedback,
		Scores:         s.Scores,
		CancelReason:   s.CancelReason,
	}
	if s.ScheduledStart.Valid {
		t := s.ScheduledStart.Time
		resp.ScheduledStart = &t
	}
	if s.ScheduledEnd.Valid {
		t := s.ScheduledEnd.Time
		resp.ScheduledEnd = &t
	}
	if s.ActualStart.Valid {
		t := s.ActualStart.Time
		resp.ActualStart = &t
	}
	if s.ActualEnd.Valid {
		t := s.ActualEnd.Time
		resp.ActualEnd = &t
	}
	return resp
}
