package api

import (
	"context"
	"net/http"

	"github.com/mova-app/widget-tasks/internal/api/shared"
	"github.com/mova-app/widget-tasks/internal/task"
)

// InvokeTaskRequest represents the request body for invoking the task
// handler. Text is required only for SUBMIT_TODO; the dispatcher owns
// that rule, so it is not enforced here.
type InvokeTaskRequest struct {
	Action string `json:"action" validate:"required"`
	Text   string `json:"text"`
}

// Dispatcher is the slice of the task engine the HTTP layer drives.
// Version: 1.0
type Dispatcher interface {
	Handle(ctx context.Context, action string, payload task.Payload) task.Result
}

// TaskHandler handles task invocation HTTP requests
type TaskHandler struct {
	dispatcher Dispatcher
}

// NewTaskHandler creates a new TaskHandler
func NewTaskHandler(dispatcher Dispatcher) *TaskHandler {
	return &TaskHandler{dispatcher: dispatcher}
}

// InvokeTask handles POST /v1/task requests. The dispatcher classifies
// every outcome into the result's status field, so the HTTP status is
// 200 whenever the body parses; clients branch on the body.
func (h *TaskHandler) InvokeTask(w http.ResponseWriter, r *http.Request) {
	var req InvokeTaskRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	result := h.dispatcher.Handle(r.Context(), req.Action, task.Payload{Text: req.Text})
	shared.RespondWithJSON(w, r, http.StatusOK, result)
}

// Health handles GET /healthz requests.
func (h *TaskHandler) Health(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}
