package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/senyabanana/marketplace-service/internal/models"
	"github.com/senyabanana/marketplace-service/internal/services"
	"github.com/senyabanana/marketplace-service/internal/utils"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// RequestHandler - структура для обработки HTTP-запросов по заявкам.
type RequestHandler struct {
	Service *services.RequestService
	Logger  *logrus.Logger
	Timeout time.Duration
	dbPool  *pgxpool.Pool
}

// NewRequestHandler создаёт новый экземпляр RequestHandler.
func NewRequestHandler(service *services.RequestService, logger *logrus.Logger, timeout time.Duration, dbPool *pgxpool.Pool) *RequestHandler {
	return &RequestHandler{
		Service: service,
		Logger:  logger,
		Timeout: timeout,
		dbPool:  dbPool,
	}
}

// actor разрешает действующее лицо по параметру userId.
func (h *RequestHandler) actor(ctx context.Context, w http.ResponseWriter, r *http.Request) (*models.Actor, bool) {
	userId := r.URL.Query().Get("userId")
	if userId == "" {
		utils.SendErrorResponse(w, http.StatusBadRequest, "missing required query parameter: userId")
		return nil, false
	}

	actor, err := utils.GetActor(ctx, h.dbPool, userId)
	if err != nil {
		if errorResponse, ok := err.(*models.ErrorResponse); ok {
			utils.SendErrorResponse(w, errorResponse.StatusCode, errorResponse.Message)
			return nil, false
		}
		h.Logger.Error(err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "failed to resolve user")
		return nil, false
	}
	return actor, true
}

// respond пишет успешный JSON-ответ.
func (h *RequestHandler) respond(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.Logger.Error(err)
	}
}

// fail отправляет ошибку сервиса клиенту.
func (h *RequestHandler) fail(w http.ResponseWriter, err error, fallback string) {
	if errorResponse, ok := err.(*models.ErrorResponse); ok {
		h.Logger.Warn(err)
		utils.SendErrorResponse(w, errorResponse.StatusCode, errorResponse.Message)
		return
	}
	h.Logger.Error(err)
	utils.SendErrorResponse(w, http.StatusInternalServerError, fallback)
}

// CreateRequest обрабатывает запросы для создания заявки.
func (h *RequestHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	actor, ok := h.actor(ctx, w, r)
	if !ok {
		return
	}

	var input models.CreateRequestInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	input.ClientID = actor.UserID

	request, err := h.Service.CreateRequest(ctx, input)
	if err != nil {
		h.fail(w, err, "failed to create request")
		return
	}
	h.respond(w, request)
}

// GetAvailable обрабатывает запросы списка свободных заявок для исполнителя.
func (h *RequestHandler) GetAvailable(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	actor, ok := h.actor(ctx, w, r)
	if !ok {
		return
	}

	requestType := models.RequestType(r.URL.Query().Get("type"))
	limitStr := r.URL.Query().Get("limit")
	offsetStr := r.URL.Query().Get("offset")

	requests, err := h.Service.ListAvailable(ctx, actor, requestType, limitStr, offsetStr)
	if err != nil {
		h.fail(w, err, "failed to fetch available requests")
		return
	}
	h.respond(w, requests)
}

// GetMy обрабатывает запросы списка заявок клиента.
func (h *RequestHandler) GetMy(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	actor, ok := h.actor(ctx, w, r)
	if !ok {
		return
	}

	requests, err := h.Service.ListMy(ctx, actor,
		r.URL.Query().Get("status_group"),
		r.URL.Query().Get("limit"),
		r.URL.Query().Get("offset"))
	if err != nil {
		h.fail(w, err, "failed to fetch requests")
		return
	}
	h.respond(w, requests)
}

// GetAssigned обрабатывает запросы списка заявок, закреплённых за исполнителем.
func (h *RequestHandler) GetAssigned(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	actor, ok := h.actor(ctx, w, r)
	if !ok {
		return
	}

	requests, err := h.Service.ListAssigned(ctx, actor,
		r.URL.Query().Get("status_group"),
		r.URL.Query().Get("limit"),
		r.URL.Query().Get("offset"))
	if err != nil {
		h.fail(w, err, "failed to fetch assigned requests")
		return
	}
	h.respond(w, requests)
}

// Claim обрабатывает попытку исполнителя закрепить заявку за собой.
func (h *RequestHandler) Claim(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	actor, ok := h.actor(ctx, w, r)
	if !ok {
		return
	}

	request, err := h.Service.Claim(ctx, r.PathValue("requestId"), actor)
	if err != nil {
		h.fail(w, err, "failed to claim request")
		return
	}
	h.respond(w, request)
}

// Action обрабатывает явные действия над заявкой: send, start, complete, cancel.
func (h *RequestHandler) Action(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	actor, ok := h.actor(ctx, w, r)
	if !ok {
		return
	}

	var input models.ActionInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	request, err := h.Service.ExecuteAction(ctx, r.PathValue("requestId"), actor, input)
	if err != nil {
		h.fail(w, err, "failed to execute action")
		return
	}
	h.respond(w, request)
}

// Decline обрабатывает отказ исполнителя от адресованной ему заявки.
func (h *RequestHandler) Decline(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	actor, ok := h.actor(ctx, w, r)
	if !ok {
		return
	}

	var input struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	request, err := h.Service.Decline(ctx, r.PathValue("requestId"), actor, input.Reason)
	if err != nil {
		h.fail(w, err, "failed to decline request")
		return
	}
	h.respond(w, request)
}

// GetActions обрабатывает запрос набора доступных действий над заявкой.
func (h *RequestHandler) GetActions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	actor, ok := h.actor(ctx, w, r)
	if !ok {
		return
	}

	actions, err := h.Service.AllowedActionsFor(ctx, r.PathValue("requestId"), actor)
	if err != nil {
		h.fail(w, err, "failed to compute allowed actions")
		return
	}
	if actions == nil {
		actions = []models.RequestAction{}
	}
	h.respond(w, actions)
}

// GetHistory обрабатывает запрос журнала смен статуса заявки.
func (h *RequestHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	actor, ok := h.actor(ctx, w, r)
	if !ok {
		return
	}

	logs, err := h.Service.StatusLog(ctx, r.PathValue("requestId"), actor)
	if err != nil {
		h.fail(w, err, "failed to fetch status history")
		return
	}
	h.respond(w, logs)
}
