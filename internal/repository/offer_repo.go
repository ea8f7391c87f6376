package repository

import (
	"context"
	"errors"
	"time"

	"github.com/senyabanana/marketplace-service/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OfferRepository - интерфейс для работы с предложениями.
type OfferRepository interface {
	CreateOffer(ctx context.Context, requestId, providerId string, input models.OfferInput) (*models.Offer, error)
	GetOfferById(ctx context.Context, offerId string) (*models.Offer, error)
	GetRequestOffers(ctx context.Context, requestId string, limit, offset int) ([]models.Offer, error)
	AcceptOffer(ctx context.Context, offerId, actorUserId string) (*models.ServiceRequest, models.RequestStatus, error)
}

// PostgresOfferRepository - реализация OfferRepository для базы данных.
type PostgresOfferRepository struct {
	DB *pgxpool.Pool
}

// NewPostgresOfferRepository создает новый экземпляр PostgresOfferRepository.
func NewPostgresOfferRepository(db *pgxpool.Pool) *PostgresOfferRepository {
	return &PostgresOfferRepository{DB: db}
}

// CreateOffer создает новое предложение. Повторное предложение того же
// исполнителя по той же заявке отбивается уникальным индексом, а не
// предварительным чтением.
func (r *PostgresOfferRepository) CreateOffer(ctx context.Context, requestId, providerId string, input models.OfferInput) (*models.Offer, error) {
	newOffer := models.Offer{
		ID:           uuid.New().String(),
		RequestID:    requestId,
		ProviderID:   providerId,
		Price:        input.Price,
		DurationDays: input.DurationDays,
		Note:         input.Note,
		Status:       models.PendingOffer,
		CreatedAt:    time.Now().UTC(),
	}
	insertQuery := `INSERT INTO offer (id, request_id, provider_id, price, duration_days, note, status, created_at)
	                VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.DB.Exec(
		ctx,
		insertQuery,
		newOffer.ID,
		newOffer.RequestID,
		newOffer.ProviderID,
		newOffer.Price,
		newOffer.DurationDays,
		newOffer.Note,
		newOffer.Status,
		newOffer.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, models.NewConflict("an offer for this request has already been submitted")
		}
		return nil, err
	}
	return &newOffer, nil
}

// GetOfferById получает предложение по ID.
func (r *PostgresOfferRepository) GetOfferById(ctx context.Context, offerId string) (*models.Offer, error) {
	var offer models.Offer
	query := `SELECT id, request_id, provider_id, price, duration_days, note, status, created_at
	          FROM offer WHERE id = $1`
	err := r.DB.QueryRow(ctx, query, offerId).Scan(
		&offer.ID,
		&offer.RequestID,
		&offer.ProviderID,
		&offer.Price,
		&offer.DurationDays,
		&offer.Note,
		&offer.Status,
		&offer.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.NewNotFound("offer not found")
		}
		return nil, err
	}
	return &offer, nil
}

// GetRequestOffers возвращает список предложений по заявке.
func (r *PostgresOfferRepository) GetRequestOffers(ctx context.Context, requestId string, limit, offset int) ([]models.Offer, error) {
	query := `SELECT id, request_id, provider_id, price, duration_days, note, status, created_at
	          FROM offer WHERE request_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	rows, err := r.DB.Query(ctx, query, requestId, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var offers []models.Offer
	for rows.Next() {
		var offer models.Offer
		if err := rows.Scan(
			&offer.ID,
			&offer.RequestID,
			&offer.ProviderID,
			&offer.Price,
			&offer.DurationDays,
			&offer.Note,
			&offer.Status,
			&offer.CreatedAt); err != nil {
			return nil, err
		}
		offers = append(offers, offer)
	}
	return offers, rows.Err()
}

// AcceptOffer выбирает предложение. В одной транзакции под блокировкой строки
// заявки выполняются все четыре записи: заявка получает исполнителя и статус
// accepted, выбранное предложение становится selected, остальные - rejected,
// плюс запись журнала. Внешний наблюдатель не увидит промежуточного состояния.
// Возвращает обновлённую заявку и статус до выбора.
func (r *PostgresOfferRepository) AcceptOffer(ctx context.Context, offerId, actorUserId string) (*models.ServiceRequest, models.RequestStatus, error) {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return nil, "", err
	}
	defer tx.Rollback(ctx)

	var offer models.Offer
	err = tx.QueryRow(ctx, `SELECT id, request_id, provider_id, status FROM offer WHERE id = $1`, offerId).Scan(
		&offer.ID,
		&offer.RequestID,
		&offer.ProviderID,
		&offer.Status,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", models.NewNotFound("offer not found")
		}
		return nil, "", err
	}

	request, err := scanRequest(tx.QueryRow(ctx, `SELECT `+requestColumns+` FROM service_request WHERE id = $1 FOR UPDATE`, offer.RequestID))
	if err != nil {
		return nil, "", err
	}

	if request.ClientID != actorUserId {
		return nil, "", models.NewForbidden("only the request owner can accept an offer")
	}
	if request.Status != models.SentRequest {
		return nil, "", models.NewInvalidTransition("cannot accept an offer in status " + string(request.Status))
	}

	oldStatus := request.Status
	request.Status = models.AcceptedRequest
	request.ProviderID = &offer.ProviderID

	_, err = tx.Exec(ctx, `UPDATE service_request SET provider_id = $1, status = $2 WHERE id = $3`,
		offer.ProviderID, models.AcceptedRequest, request.ID)
	if err != nil {
		return nil, "", err
	}

	_, err = tx.Exec(ctx, `UPDATE offer SET status = $1 WHERE id = $2`, models.SelectedOffer, offer.ID)
	if err != nil {
		return nil, "", err
	}

	_, err = tx.Exec(ctx, `UPDATE offer SET status = $1 WHERE request_id = $2 AND id <> $3`,
		models.RejectedOffer, request.ID, offer.ID)
	if err != nil {
		return nil, "", err
	}

	if err := insertStatusLog(ctx, tx, request.ID, &actorUserId, oldStatus, models.AcceptedRequest, "offer selected by client"); err != nil {
		return nil, "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, "", err
	}
	return request, oldStatus, nil
}
