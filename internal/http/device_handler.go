package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/school-bell/internal/application"
	"github.com/example/school-bell/internal/persistence"
)

const maxActivationBody = 4 << 10

type bellService interface {
	Resolve(ctx context.Context) (application.Directive, error)
	Activate(ctx context.Context, input application.ActivationInput) (application.ActivationResult, error)
	Confirm(ctx context.Context) error
	CheckCommand(ctx context.Context) (persistence.Command, bool)
	RequestUpdate(ctx context.Context) error
	UpdateMode(ctx context.Context) (persistence.UpdateMode, error)
	ConfirmUpdate(ctx context.Context) error
}

// DeviceHandler serves the siren controller and the manual activation endpoint.
type DeviceHandler struct {
	service   bellService
	responder responder
	logger    *slog.Logger
}

func NewDeviceHandler(service bellService, logger *slog.Logger) *DeviceHandler {
	return &DeviceHandler{service: service, responder: newResponder(logger), logger: logger}
}

// Poll answers GET /api/comando. It always responds 200.
func (h *DeviceHandler) Poll(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	directive, err := h.service.Resolve(r.Context())
	if err != nil {
		handlerLogger(r.Context(), h.logger, "DeviceHandler", "Poll").
			WarnContext(r.Context(), "poll served with degraded state", "error", err)
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toDirectiveDTO(directive))
}

// CheckCommand answers GET /check_command/.
func (h *DeviceHandler) CheckCommand(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	cmd, ok := h.service.CheckCommand(r.Context())
	if !ok {
		h.responder.writeJSON(r.Context(), w, http.StatusOK, commandDTO{Command: commandOff})
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, commandDTO{
		Command: commandOn,
		Source:  cmd.Source,
		ID:      cmd.ID,
	})
}

// Confirm answers POST /confirm_command/. Storage failures are logged and the
// device still receives success.
func (h *DeviceHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if err := h.service.Confirm(r.Context()); err != nil {
		handlerLogger(r.Context(), h.logger, "DeviceHandler", "Confirm").
			ErrorContext(r.Context(), "confirmation not recorded", "error", err)
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, statusDTO{Status: "success"})
}

// Activate answers POST /ativar/.
func (h *DeviceHandler) Activate(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req activationRequest
	if r.Body != nil {
		decoder := json.NewDecoder(io.LimitReader(r.Body, maxActivationBody))
		if err := decoder.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
			return
		}
	}

	result, err := h.service.Activate(r.Context(), application.ActivationInput{
		Duration: req.Duration,
		Source:   req.Source,
	})
	if err != nil {
		var tErr *application.TransportError
		if errors.As(err, &tErr) {
			payload := toActivationDTO(result)
			payload.Status = "error"
			payload.Message = localizedStatusMessage(http.StatusBadGateway)
			h.responder.writeJSON(r.Context(), w, http.StatusBadGateway, payload)
			return
		}
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toActivationDTO(result))
}

// RequestUpdate answers POST /update_alarm/.
func (h *DeviceHandler) RequestUpdate(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.changeUpdateMode(w, r, h.service.RequestUpdate)
}

// ConfirmUpdate answers POST /update_confirm/.
func (h *DeviceHandler) ConfirmUpdate(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.changeUpdateMode(w, r, h.service.ConfirmUpdate)
}

// UpdateMode answers GET /is_update/.
func (h *DeviceHandler) UpdateMode(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	mode, err := h.service.UpdateMode(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, updateModeDTO{Update: string(mode)})
}

func (h *DeviceHandler) changeUpdateMode(w http.ResponseWriter, r *http.Request, change func(context.Context) error) {
	if err := change(r.Context()); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, statusDTO{Status: "success"})
}

const (
	commandOn  = "ligar"
	commandOff = "desligar"
)

type directiveDTO struct {
	CurrentTime    string  `json:"current_time"`
	CurrentDay     string  `json:"current_day"`
	ShouldActivate bool    `json:"should_activate"`
	IsScheduled    bool    `json:"is_scheduled"`
	SirenStatus    bool    `json:"siren_status"`
	NextAlarm      *string `json:"next_alarm"`
	CommandID      string  `json:"command_id,omitempty"`
}

func toDirectiveDTO(d application.Directive) directiveDTO {
	dto := directiveDTO{
		CurrentTime:    d.CurrentTime.String(),
		CurrentDay:     d.CurrentDay,
		ShouldActivate: d.ShouldActivate,
		IsScheduled:    d.IsScheduled,
		SirenStatus:    d.SirenOn,
		CommandID:      d.CommandID,
	}
	if d.NextAlarm != nil {
		next := d.NextAlarm.String()
		dto.NextAlarm = &next
	}
	return dto
}

type commandDTO struct {
	Command string `json:"command"`
	Source  string `json:"source,omitempty"`
	ID      string `json:"id,omitempty"`
}

type statusDTO struct {
	Status string `json:"status"`
}

type updateModeDTO struct {
	Update string `json:"update"`
}

type activationRequest struct {
	Duration *int    `json:"duration"`
	Source   *string `json:"source"`
}

type activationDTO struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	CommandID string `json:"command_id"`
	Source    string `json:"source"`
	Duration  int    `json:"duration"`
	Timestamp string `json:"timestamp"`
}

func toActivationDTO(result application.ActivationResult) activationDTO {
	return activationDTO{
		Status:    "success",
		CommandID: result.CommandID,
		Source:    result.Source,
		Duration:  int(result.Duration / time.Second),
		Timestamp: result.IssuedAt.UTC().Format(time.RFC3339Nano),
	}
}
