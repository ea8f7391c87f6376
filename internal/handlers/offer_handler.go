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

// OfferHandler - структура для обработки HTTP-запросов по предложениям.
type OfferHandler struct {
	Service *services.OfferService
	Logger  *logrus.Logger
	Timeout time.Duration
	dbPool  *pgxpool.Pool
}

// NewOfferHandler создает новый экземпляр OfferHandler.
func NewOfferHandler(service *services.OfferService, logger *logrus.Logger, timeout time.Duration, dbPool *pgxpool.Pool) *OfferHandler {
	return &OfferHandler{
		Service: service,
		Logger:  logger,
		Timeout: timeout,
		dbPool:  dbPool,
	}
}

func (h *OfferHandler) actor(ctx context.Context, w http.ResponseWriter, r *http.Request) (*models.Actor, bool) {
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

func (h *OfferHandler) respond(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.Logger.Error(err)
	}
}

func (h *OfferHandler) fail(w http.ResponseWriter, err error, fallback string) {
	if errorResponse, ok := err.(*models.ErrorResponse); ok {
		h.Logger.Warn(err)
		utils.SendErrorResponse(w, errorResponse.StatusCode, errorResponse.Message)
		return
	}
	h.Logger.Error(err)
	utils.SendErrorResponse(w, http.StatusInternalServerError, fallback)
}

// CreateOffer обрабатывает подачу предложения по конкурсной заявке.
func (h *OfferHandler) CreateOffer(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	actor, ok := h.actor(ctx, w, r)
	if !ok {
		return
	}

	var input models.OfferInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	offer, err := h.Service.SubmitOffer(ctx, r.PathValue("requestId"), actor, input)
	if err != nil {
		h.fail(w, err, "failed to submit offer")
		return
	}
	h.respond(w, offer)
}

// ListOffers обрабатывает запрос списка предложений по заявке.
func (h *OfferHandler) ListOffers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	actor, ok := h.actor(ctx, w, r)
	if !ok {
		return
	}

	offers, err := h.Service.ListOffers(ctx, r.PathValue("requestId"), actor,
		r.URL.Query().Get("limit"),
		r.URL.Query().Get("offset"))
	if err != nil {
		h.fail(w, err, "failed to fetch offers")
		return
	}
	h.respond(w, offers)
}

// AcceptOffer обрабатывает выбор предложения клиентом.
func (h *OfferHandler) AcceptOffer(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	actor, ok := h.actor(ctx, w, r)
	if !ok {
		return
	}

	request, err := h.Service.AcceptOffer(ctx, r.PathValue("offerId"), actor)
	if err != nil {
		h.fail(w, err, "failed to accept offer")
		return
	}
	h.respond(w, request)
}
