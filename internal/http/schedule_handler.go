package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/school-bell/internal/application"
	"github.com/example/school-bell/internal/persistence"
	"github.com/example/school-bell/internal/recurrence"
)

type scheduleService interface {
	CreateSchedule(ctx context.Context, input application.ScheduleInput) (persistence.ScheduleEntry, error)
	UpdateSchedule(ctx context.Context, id string, input application.ScheduleInput) (persistence.ScheduleEntry, error)
	DisableSchedule(ctx context.Context, id string) (persistence.ScheduleEntry, error)
	GetSchedule(ctx context.Context, id string) (persistence.ScheduleEntry, error)
	ListSchedules(ctx context.Context) ([]persistence.ScheduleEntry, error)
	TodaySchedules(ctx context.Context) ([]persistence.ScheduleEntry, error)
	DeleteSchedule(ctx context.Context, id string) error
	DayCodes() recurrence.DayCodes
}

type ScheduleHandler struct {
	service   scheduleService
	responder responder
}

func NewScheduleHandler(service scheduleService, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{service: service, responder: newResponder(logger)}
}

func (h *ScheduleHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req application.ScheduleInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	entry, err := h.service.CreateSchedule(r.Context(), req)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.renderSchedule(r.Context(), w, entry, http.StatusCreated)
}

func (h *ScheduleHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	scheduleID, ok := h.scheduleID(r)
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidScheduleID)
		return
	}

	var req application.ScheduleInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	entry, err := h.service.UpdateSchedule(r.Context(), scheduleID, req)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.renderSchedule(r.Context(), w, entry, http.StatusOK)
}

func (h *ScheduleHandler) Disable(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	scheduleID, ok := h.scheduleID(r)
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidScheduleID)
		return
	}

	entry, err := h.service.DisableSchedule(r.Context(), scheduleID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.renderSchedule(r.Context(), w, entry, http.StatusOK)
}

func (h *ScheduleHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	scheduleID, ok := h.scheduleID(r)
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidScheduleID)
		return
	}

	entry, err := h.service.GetSchedule(r.Context(), scheduleID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.renderSchedule(r.Context(), w, entry, http.StatusOK)
}

func (h *ScheduleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	scheduleID, ok := h.scheduleID(r)
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidScheduleID)
		return
	}

	if err := h.service.DeleteSchedule(r.Context(), scheduleID); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *ScheduleHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	entries, err := h.service.ListSchedules(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listSchedulesResponse{
		Schedules: toScheduleDTOs(entries, h.service.DayCodes()),
	})
}

// Today lists the entries that ring today, in time order.
func (h *ScheduleHandler) Today(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	entries, err := h.service.TodaySchedules(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listSchedulesResponse{
		Schedules: toScheduleDTOs(entries, h.service.DayCodes()),
	})
}

func (h *ScheduleHandler) scheduleID(r *http.Request) (string, bool) {
	id, ok := ScheduleIDFromContext(r.Context())
	id = strings.TrimSpace(id)
	return id, ok && id != ""
}

func (h *ScheduleHandler) renderSchedule(ctx context.Context, w http.ResponseWriter, entry persistence.ScheduleEntry, status int) {
	h.responder.writeJSON(ctx, w, status, scheduleResponse{
		Schedule: toScheduleDTO(entry, h.service.DayCodes()),
	})
}

type scheduleResponse struct {
	Schedule scheduleDTO `json:"schedule"`
}

type listSchedulesResponse struct {
	Schedules []scheduleDTO `json:"schedules"`
}

type scheduleDTO struct {
	ID           string   `json:"id"`
	EventType    string   `json:"event_type"`
	EventDisplay string   `json:"event_display"`
	Time         string   `json:"time"`
	DaysOfWeek   []string `json:"days_of_week"`
	StartDate    string   `json:"start_date"`
	EndDate      string   `json:"end_date"`
	Active       bool     `json:"active"`
	CreatedAt    string   `json:"created_at"`
	UpdatedAt    string   `json:"updated_at"`
}

func toScheduleDTO(entry persistence.ScheduleEntry, codes recurrence.DayCodes) scheduleDTO {
	return scheduleDTO{
		ID:           entry.ID,
		EventType:    string(entry.Event),
		EventDisplay: entry.Event.Label(),
		Time:         entry.Time.String(),
		DaysOfWeek:   codes.Codes(entry.Days),
		StartDate:    recurrence.DateKey(entry.StartDate),
		EndDate:      recurrence.DateKey(entry.EndDate),
		Active:       entry.Active,
		CreatedAt:    entry.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:    entry.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func toScheduleDTOs(entries []persistence.ScheduleEntry, codes recurrence.DayCodes) []scheduleDTO {
	out := make([]scheduleDTO, 0, len(entries))
	for _, entry := range entries {
		out = append(out, toScheduleDTO(entry, codes))
	}
	return out
}
