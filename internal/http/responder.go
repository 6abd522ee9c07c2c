package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/school-bell/internal/application"
	"github.com/example/school-bell/internal/logging"
)

var (
	errBadRequestBody    = errors.New("Formato de requisição inválido.")
	errInvalidScheduleID = errors.New("ID de agendamento inválido.")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := localizedStatusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Status: "error", Message: message})
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	var (
		vErr *application.ValidationError
		tErr *application.TransportError
	)
	switch {
	case errors.Is(err, application.ErrNotFound):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{Status: "error", Message: localizedStatusMessage(http.StatusNotFound)})
	case errors.Is(err, application.ErrAlreadyExists):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{Status: "error", Message: localizedStatusMessage(http.StatusConflict)})
	case errors.As(err, &vErr):
		r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
			Status:  "error",
			Message: localizedStatusMessage(http.StatusUnprocessableEntity),
			Errors:  localizeValidationErrors(vErr),
		})
	case errors.As(err, &tErr):
		r.writeJSON(ctx, w, http.StatusBadGateway, errorResponse{
			Status:    "error",
			ErrorCode: "DEVICE_UNREACHABLE",
			Message:   localizedStatusMessage(http.StatusBadGateway),
		})
	case errors.Is(err, application.ErrStorageUnavailable):
		r.loggerFor(ctx).ErrorContext(ctx, "storage unavailable", "error", err)
		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{
			Status:    "error",
			ErrorCode: "STORAGE_UNAVAILABLE",
			Message:   "Armazenamento indisponível. Tente novamente.",
		})
	default:
		r.loggerFor(ctx).ErrorContext(ctx, "unexpected service error", "error", err)
		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Status: "error", Message: localizedStatusMessage(http.StatusInternalServerError)})
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	return logging.For(ctx, r.logger)
}

func localizedStatusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "Requisição inválida."
	case http.StatusNotFound:
		return "Recurso não encontrado."
	case http.StatusMethodNotAllowed:
		return "Método não permitido."
	case http.StatusConflict:
		return "O recurso já existe."
	case http.StatusUnprocessableEntity:
		return "Há erros nos dados enviados."
	case http.StatusBadGateway:
		return "Comando registrado, mas o dispositivo não respondeu."
	default:
		return "Erro interno do servidor."
	}
}

func localizeValidationErrors(vErr *application.ValidationError) map[string]string {
	if vErr == nil || len(vErr.FieldErrors) == 0 {
		return nil
	}

	translated := make(map[string]string, len(vErr.FieldErrors))
	for field, msg := range vErr.FieldErrors {
		translated[field] = translateValidationMessage(field, msg)
	}
	return translated
}

func translateValidationMessage(field, message string) string {
	switch field {
	case "duration":
		return "A duração deve estar entre 1 e 60 segundos."
	case "source":
		return "A origem deve ter no máximo 20 caracteres."
	case "event_type":
		return "Tipo de evento inválido. Use INICIO, FIM, RECREIO ou TURNO."
	case "time":
		return "Horário inválido. Use o formato HH:MM."
	case "days_of_week":
		return "Selecione ao menos um dia da semana válido."
	case "start_date":
		return "Data de início inválida. Use o formato AAAA-MM-DD."
	case "end_date":
		if strings.Contains(message, "before") {
			return "A data de término não pode ser anterior à data de início."
		}
		return "Data de término inválida. Use o formato AAAA-MM-DD."
	}
	return message
}

type errorResponse struct {
	Status    string            `json:"status"`
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
}
