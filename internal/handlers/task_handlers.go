package handlers

import (
	"net/http"
	"time"

	"taskBoard/internal/board"
	"taskBoard/internal/handlers/dto"
	"taskBoard/internal/logger"
	"taskBoard/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const serviceName = "task-board"

type TaskHandler struct {
	TaskService Service
	now         func() time.Time
}

func NewTaskHandler(taskService Service) *TaskHandler {
	return &TaskHandler{
		TaskService: taskService,
		now:         time.Now,
	}
}

func (h *TaskHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP: Health check")

	if err := h.TaskService.HealthCheck(r.Context()); err != nil {
		logger.Warn("HTTP: health check failed", zap.Error(err))
		responseWithJSON(w, http.StatusServiceUnavailable,
			toPayload("status", "unavailable"),
			toPayload("service", serviceName),
			toPayload("error", err.Error()),
		)
		return
	}
	responseWithJSON(w, http.StatusOK,
		toPayload("status", "ok"),
		toPayload("service", serviceName),
	)
}

func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	opts, ok := criteriaOptions(w, r)
	if !ok {
		return
	}

	tasks, criteria, err := h.TaskService.ListTasks(r.Context(), opts...)
	if err != nil {
		handleServiceError(w, r, err, "list_tasks")
		return
	}

	logger.Info("HTTP_OUT: tasks listed",
		zap.Int("count", len(tasks)),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	writeJSON(w, http.StatusOK, dto.ListResponse{Tasks: dto.FromTaskList(tasks, h.now()), Criteria: criteria})
}

func (h *TaskHandler) Board(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	opts, ok := criteriaOptions(w, r)
	if !ok {
		return
	}

	columns, criteria, err := h.TaskService.Board(r.Context(), opts...)
	if err != nil {
		handleServiceError(w, r, err, "board")
		return
	}

	logger.Info("HTTP_OUT: board built",
		zap.Int("columns", len(columns)),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	writeJSON(w, http.StatusOK, dto.FromColumns(columns, criteria, h.now()))
}

func (h *TaskHandler) Timeline(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	opts, ok := criteriaOptions(w, r)
	if !ok {
		return
	}

	layout, criteria, err := h.TaskService.Timeline(r.Context(), opts...)
	if err != nil {
		handleServiceError(w, r, err, "timeline")
		return
	}

	logger.Info("HTTP_OUT: timeline computed",
		zap.Int("bars", len(layout.Bars)),
		zap.Int("total_days", layout.Range.TotalDays),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	writeJSON(w, http.StatusOK, dto.FromLayout(layout, criteria, h.now()))
}

func (h *TaskHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	tasks, err := h.TaskService.Refresh(r.Context())
	if err != nil {
		handleServiceError(w, r, err, "refresh")
		return
	}

	logger.Info("HTTP_OUT: tasks reloaded",
		zap.Int("count", len(tasks)),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	writeJSON(w, http.StatusOK, dto.FromTaskList(tasks, h.now()))
}

func (h *TaskHandler) PostTask(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	if !requireJSON(w, r) {
		return
	}

	var request dto.CreateTaskRequest
	if err := decodeJSON(w, r, &request); err != nil {
		logger.Warn("HTTP: failed to read JSON",
			zap.Error(err),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, service.CodeValidation, "invalid request body: "+err.Error())
		return
	}

	created, err := h.TaskService.CreateTask(r.Context(), request.ToInput())
	if err != nil {
		handleServiceError(w, r, err, "create_task")
		return
	}

	logger.Info("HTTP_OUT: task created",
		zap.String("task_id", created.ID),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusCreated))

	writeJSON(w, http.StatusCreated, dto.FromTask(created, h.now()))
}

func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	id, ok := taskID(w, r)
	if !ok || !requireJSON(w, r) {
		return
	}

	var request dto.UpdateTaskRequest
	if err := decodeJSON(w, r, &request); err != nil {
		logger.Warn("HTTP: failed to read JSON",
			zap.Error(err),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, service.CodeValidation, "invalid update payload: "+err.Error())
		return
	}

	updated, err := h.TaskService.UpdateTask(r.Context(), id, request.ToInput())
	if err != nil {
		handleServiceError(w, r, err, "update_task")
		return
	}

	logger.Info("HTTP_OUT: task updated",
		zap.String("task_id", id),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	writeJSON(w, http.StatusOK, dto.FromTask(updated, h.now()))
}

func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	id, ok := taskID(w, r)
	if !ok {
		return
	}

	if err := h.TaskService.DeleteTask(r.Context(), id); err != nil {
		handleServiceError(w, r, err, "delete_task")
		return
	}

	logger.Info("HTTP_OUT: task deleted",
		zap.String("task_id", id),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusNoContent))

	w.WriteHeader(http.StatusNoContent)
}

func (h *TaskHandler) ToggleComplete(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	id, ok := taskID(w, r)
	if !ok || !requireJSON(w, r) {
		return
	}

	var request dto.ToggleCompleteRequest
	if err := decodeJSON(w, r, &request); err != nil {
		responseWithError(w, http.StatusBadRequest, service.CodeValidation, "invalid request body: "+err.Error())
		return
	}
	if request.Completed == nil {
		responseWithError(w, http.StatusBadRequest, service.CodeValidation, "completed is required")
		return
	}

	updated, err := h.TaskService.ToggleComplete(r.Context(), id, *request.Completed)
	if err != nil {
		handleServiceError(w, r, err, "toggle_complete")
		return
	}

	logger.Info("HTTP_OUT: task completion toggled",
		zap.String("task_id", id),
		zap.Bool("completed", *request.Completed),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	writeJSON(w, http.StatusOK, dto.FromTask(updated, h.now()))
}

func (h *TaskHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	id, ok := taskID(w, r)
	if !ok || !requireJSON(w, r) {
		return
	}

	var request dto.UpdateStatusRequest
	if err := decodeJSON(w, r, &request); err != nil {
		responseWithError(w, http.StatusBadRequest, service.CodeValidation, "invalid request body: "+err.Error())
		return
	}

	updated, err := h.TaskService.UpdateStatus(r.Context(), id, request.Status)
	if err != nil {
		handleServiceError(w, r, err, "update_status")
		return
	}

	logger.Info("HTTP_OUT: task status updated",
		zap.String("task_id", id),
		zap.String("status", string(request.Status)),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	writeJSON(w, http.StatusOK, dto.FromTask(updated, h.now()))
}

func (h *TaskHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN:")

	if err := h.TaskService.SignOut(r.Context()); err != nil {
		handleServiceError(w, r, err, "sign_out")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// criteriaOptions turns the status, q and sort query parameters into
// criteria changes. Parameters that are absent leave the criteria alone.
func criteriaOptions(w http.ResponseWriter, r *http.Request) ([]service.CriteriaOption, bool) {
	query := r.URL.Query()
	var opts []service.CriteriaOption

	if query.Has("status") {
		status, err := board.ParseStatusFilter(query.Get("status"))
		if err != nil {
			responseWithError(w, http.StatusBadRequest, service.CodeValidation, err.Error())
			return nil, false
		}
		opts = append(opts, service.WithStatusFilter(status))
	}
	if query.Has("q") {
		opts = append(opts, service.WithQuery(query.Get("q")))
	}
	if query.Has("sort") {
		sort, err := board.ParseSortOption(query.Get("sort"))
		if err != nil {
			responseWithError(w, http.StatusBadRequest, service.CodeValidation, err.Error())
			return nil, false
		}
		opts = append(opts, service.WithSort(sort))
	}
	return opts, true
}

func taskID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if id == "" {
		logger.Warn("HTTP: missing task id", zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, service.CodeValidation, "task id is required")
		return "", false
	}
	return id, true
}

func requireJSON(w http.ResponseWriter, r *http.Request) bool {
	if checkContentType(r, "application/json") {
		return true
	}
	logger.Warn("HTTP: wrong content type",
		zap.String("expected", "application/json"),
		zap.String("received", r.Header.Get("Content-Type")),
		zap.String("client_ip", r.RemoteAddr))
	responseWithError(w, http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE", "Content-Type must be application/json")
	return false
}
