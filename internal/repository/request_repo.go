package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/senyabanana/marketplace-service/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

// RequestRepository - интерфейс для работы с заявками.
type RequestRepository interface {
	CreateRequest(ctx context.Context, input models.CreateRequestInput, isUrgent bool, expiresAt *time.Time) (*models.ServiceRequest, error)
	GetRequestById(ctx context.Context, requestId string) (*models.ServiceRequest, error)
	ListAvailable(ctx context.Context, provider *models.ProviderProfile, requestType models.RequestType, limit, offset int) ([]models.ServiceRequest, error)
	ListByClient(ctx context.Context, clientId string, statuses []models.RequestStatus, limit, offset int) ([]models.ServiceRequest, error)
	ListByProvider(ctx context.Context, providerId string, statuses []models.RequestStatus, limit, offset int) ([]models.ServiceRequest, error)
	Claim(ctx context.Context, requestId string, provider *models.ProviderProfile, actorUserId string) (*models.ServiceRequest, models.RequestStatus, error)
	ExecuteTransition(ctx context.Context, requestId string, actorId *string, action models.RequestAction, input models.ActionInput) (*models.ServiceRequest, models.RequestStatus, error)
	ExpireUrgent(ctx context.Context) error
	GetStatusLog(ctx context.Context, requestId string) ([]models.RequestStatusLog, error)
}

// PostgresRequestRepository - реализация RequestRepository для базы данных.
type PostgresRequestRepository struct {
	DB *pgxpool.Pool
}

// NewPostgresRequestRepository создаёт новый экземпляр PostgresRequestRepository.
func NewPostgresRequestRepository(db *pgxpool.Pool) *PostgresRequestRepository {
	return &PostgresRequestRepository{DB: db}
}

const requestColumns = `id, client_id, provider_id, target_provider_id, subcategory_id, title, description,
       type, status, city, is_urgent, created_at, expires_at, expected_delivery_at,
       estimated_amount, received_amount, remaining_amount, delivered_at, actual_amount, cancel_reason`

// scanRequest читает одну строку заявки в модель.
func scanRequest(row pgx.Row) (*models.ServiceRequest, error) {
	var r models.ServiceRequest
	err := row.Scan(
		&r.ID,
		&r.ClientID,
		&r.ProviderID,
		&r.TargetProviderID,
		&r.SubcategoryID,
		&r.Title,
		&r.Description,
		&r.Type,
		&r.Status,
		&r.City,
		&r.IsUrgent,
		&r.CreatedAt,
		&r.ExpiresAt,
		&r.ExpectedDeliveryAt,
		&r.EstimatedAmount,
		&r.ReceivedAmount,
		&r.RemainingAmount,
		&r.DeliveredAt,
		&r.ActualAmount,
		&r.CancelReason,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateRequest создает новую заявку. Заявка создаётся в статусе new и в том же
// коммите переводится в sent, чтобы сразу стать видимой исполнителям.
func (r *PostgresRequestRepository) CreateRequest(ctx context.Context, input models.CreateRequestInput, isUrgent bool, expiresAt *time.Time) (*models.ServiceRequest, error) {
	newRequest := models.ServiceRequest{
		ID:            uuid.New().String(),
		ClientID:      input.ClientID,
		SubcategoryID: input.SubcategoryID,
		Title:         input.Title,
		Description:   input.Description,
		Type:          input.Type,
		Status:        models.SentRequest,
		City:          input.City,
		IsUrgent:      isUrgent,
		CreatedAt:     time.Now().UTC(),
		ExpiresAt:     expiresAt,
	}
	if input.TargetProviderID != "" {
		targetId := input.TargetProviderID
		newRequest.TargetProviderID = &targetId
	}

	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	insertQuery := `INSERT INTO service_request (id, client_id, target_provider_id, subcategory_id, title, description, type, status, city, is_urgent, created_at, expires_at)
	                VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err = tx.Exec(
		ctx,
		insertQuery,
		newRequest.ID,
		newRequest.ClientID,
		newRequest.TargetProviderID,
		newRequest.SubcategoryID,
		newRequest.Title,
		newRequest.Description,
		newRequest.Type,
		newRequest.Status,
		newRequest.City,
		newRequest.IsUrgent,
		newRequest.CreatedAt,
		newRequest.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert request: %w", err)
	}

	if err := insertStatusLog(ctx, tx, newRequest.ID, &newRequest.ClientID, models.NewRequest, models.SentRequest, "request created and sent"); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &newRequest, nil
}

// GetRequestById получает заявку по ID.
func (r *PostgresRequestRepository) GetRequestById(ctx context.Context, requestId string) (*models.ServiceRequest, error) {
	request, err := scanRequest(r.DB.QueryRow(ctx, `SELECT `+requestColumns+` FROM service_request WHERE id = $1`, requestId))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.NewNotFound("request not found")
		}
		return nil, err
	}
	return request, nil
}

// ListAvailable возвращает незакреплённые заявки, доступные исполнителю:
// фильтр по типу, подкатегориям и городу, без просроченных и занятых.
func (r *PostgresRequestRepository) ListAvailable(ctx context.Context, provider *models.ProviderProfile, requestType models.RequestType, limit, offset int) ([]models.ServiceRequest, error) {
	if requestType == models.UrgentRequest && !provider.AcceptsUrgent {
		return nil, nil
	}

	statuses := []string{string(models.SentRequest)}
	if requestType == models.UrgentRequest {
		statuses = append(statuses, string(models.NewRequest))
	}

	query := `SELECT ` + requestColumns + `
	          FROM service_request
	          WHERE type = $1
	            AND provider_id IS NULL
	            AND status = ANY($2)
	            AND subcategory_id = ANY($3)
	            AND (city = '' OR $4 = '' OR city = $4)
	            AND (expires_at IS NULL OR expires_at >= NOW())
	          ORDER BY created_at DESC
	          LIMIT $5 OFFSET $6`

	rows, err := r.DB.Query(ctx, query, requestType, pq.Array(statuses), pq.Array(provider.SubcategoryIDs), provider.City, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectRequests(rows)
}

// ListByClient возвращает заявки клиента с необязательным фильтром по статусам.
func (r *PostgresRequestRepository) ListByClient(ctx context.Context, clientId string, statuses []models.RequestStatus, limit, offset int) ([]models.ServiceRequest, error) {
	return r.listByOwner(ctx, "client_id = $1", clientId, statuses, limit, offset)
}

// ListByProvider возвращает заявки исполнителя: закреплённые за ним и ещё не
// занятые адресные, направленные ему.
func (r *PostgresRequestRepository) ListByProvider(ctx context.Context, providerId string, statuses []models.RequestStatus, limit, offset int) ([]models.ServiceRequest, error) {
	return r.listByOwner(ctx, "(provider_id = $1 OR (provider_id IS NULL AND target_provider_id = $1))", providerId, statuses, limit, offset)
}

func (r *PostgresRequestRepository) listByOwner(ctx context.Context, condition, ownerId string, statuses []models.RequestStatus, limit, offset int) ([]models.ServiceRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM service_request WHERE ` + condition
	args := []interface{}{ownerId}
	argIndex := 2

	if len(statuses) > 0 {
		statusStrings := make([]string, 0, len(statuses))
		for _, s := range statuses {
			statusStrings = append(statusStrings, string(s))
		}
		query += fmt.Sprintf(" AND status = ANY($%d)", argIndex)
		args = append(args, pq.Array(statusStrings))
		argIndex++
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	args = append(args, limit, offset)

	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectRequests(rows)
}

func collectRequests(rows pgx.Rows) ([]models.ServiceRequest, error) {
	var requests []models.ServiceRequest
	for rows.Next() {
		request, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *request)
	}
	return requests, rows.Err()
}

// Claim закрепляет заявку за исполнителем. Вся последовательность
// чтение-проверка-запись выполняется в одной транзакции под блокировкой
// строки заявки: из конкурирующих вызовов выигрывает ровно один, остальные
// после снятия блокировки перечитывают provider_id и получают Conflict.
// Возвращает обновлённую заявку и статус до захвата.
func (r *PostgresRequestRepository) Claim(ctx context.Context, requestId string, provider *models.ProviderProfile, actorUserId string) (*models.ServiceRequest, models.RequestStatus, error) {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return nil, "", err
	}
	defer tx.Rollback(ctx)

	request, err := scanRequest(tx.QueryRow(ctx, `SELECT `+requestColumns+` FROM service_request WHERE id = $1 FOR UPDATE`, requestId))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", models.NewNotFound("request not found")
		}
		return nil, "", err
	}

	if claimErr := validateClaim(request, provider, time.Now().UTC()); claimErr != nil {
		if claimErr.Kind == models.KindExpired {
			// Просрочку фиксируем в том же коммите, откат здесь не нужен.
			if _, err := tx.Exec(ctx, `UPDATE service_request SET status = $1 WHERE id = $2`, models.ExpiredRequest, requestId); err != nil {
				return nil, "", err
			}
			if err := tx.Commit(ctx); err != nil {
				return nil, "", err
			}
		}
		return nil, "", claimErr
	}

	oldStatus := request.Status
	request.Status = models.AcceptedRequest
	providerId := provider.ID
	request.ProviderID = &providerId

	_, err = tx.Exec(ctx, `UPDATE service_request SET provider_id = $1, status = $2 WHERE id = $3`,
		providerId, models.AcceptedRequest, requestId)
	if err != nil {
		return nil, "", err
	}

	if err := insertStatusLog(ctx, tx, requestId, &actorUserId, oldStatus, models.AcceptedRequest, "claimed by provider"); err != nil {
		return nil, "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, "", err
	}
	return request, oldStatus, nil
}

// ExecuteTransition применяет действие конечного автомата к заявке под
// блокировкой строки и пишет запись журнала в той же транзакции.
// Возвращает обновлённую заявку и статус до перехода.
func (r *PostgresRequestRepository) ExecuteTransition(ctx context.Context, requestId string, actorId *string, action models.RequestAction, input models.ActionInput) (*models.ServiceRequest, models.RequestStatus, error) {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return nil, "", err
	}
	defer tx.Rollback(ctx)

	request, err := scanRequest(tx.QueryRow(ctx, `SELECT `+requestColumns+` FROM service_request WHERE id = $1 FOR UPDATE`, requestId))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", models.NewNotFound("request not found")
		}
		return nil, "", err
	}

	oldStatus := request.Status
	newStatus, err := models.NextStatus(oldStatus, action)
	if err != nil {
		return nil, "", err
	}

	updates := `status = $1`
	args := []interface{}{newStatus}
	argIndex := 2

	appendField := func(column string, value interface{}) {
		updates += fmt.Sprintf(", %s = $%d", column, argIndex)
		args = append(args, value)
		argIndex++
	}

	switch action {
	case models.StartAction:
		if input.ExpectedDeliveryAt != nil {
			appendField("expected_delivery_at", input.ExpectedDeliveryAt)
			request.ExpectedDeliveryAt = input.ExpectedDeliveryAt
		}
		if input.EstimatedAmount != nil {
			appendField("estimated_amount", input.EstimatedAmount)
			appendField("received_amount", input.ReceivedAmount)
			appendField("remaining_amount", input.RemainingAmount)
			request.EstimatedAmount = input.EstimatedAmount
			request.ReceivedAmount = input.ReceivedAmount
			request.RemainingAmount = input.RemainingAmount
		}
	case models.CompleteAction:
		if input.DeliveredAt != nil {
			appendField("delivered_at", input.DeliveredAt)
			request.DeliveredAt = input.DeliveredAt
		}
		if input.ActualAmount != nil {
			appendField("actual_amount", input.ActualAmount)
			request.ActualAmount = input.ActualAmount
		}
	case models.CancelAction:
		if input.Note != "" {
			appendField("cancel_reason", input.Note)
			request.CancelReason = input.Note
		}
	}

	args = append(args, requestId)
	_, err = tx.Exec(ctx, `UPDATE service_request SET `+updates+fmt.Sprintf(` WHERE id = $%d`, argIndex), args...)
	if err != nil {
		return nil, "", err
	}
	request.Status = newStatus

	if err := insertStatusLog(ctx, tx, requestId, actorId, oldStatus, newStatus, input.Note); err != nil {
		return nil, "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, "", err
	}
	return request, oldStatus, nil
}

// ExpireUrgent лениво переводит просроченные срочные заявки в expired.
// Журнал для системного перехода не пишется.
func (r *PostgresRequestRepository) ExpireUrgent(ctx context.Context) error {
	_, err := r.DB.Exec(ctx, `UPDATE service_request
	                          SET status = $1
	                          WHERE type = $2
	                            AND status = ANY($3)
	                            AND expires_at IS NOT NULL
	                            AND expires_at < NOW()`,
		models.ExpiredRequest,
		models.UrgentRequest,
		pq.Array([]string{string(models.NewRequest), string(models.SentRequest)}))
	return err
}

// GetStatusLog возвращает журнал смен статуса заявки, новые записи первыми.
func (r *PostgresRequestRepository) GetStatusLog(ctx context.Context, requestId string) ([]models.RequestStatusLog, error) {
	rows, err := r.DB.Query(ctx, `SELECT id, request_id, actor_id, from_status, to_status, note, created_at
	                              FROM request_status_log WHERE request_id = $1 ORDER BY created_at DESC, id DESC`, requestId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.RequestStatusLog
	for rows.Next() {
		var entry models.RequestStatusLog
		if err := rows.Scan(
			&entry.ID,
			&entry.RequestID,
			&entry.ActorID,
			&entry.FromStatus,
			&entry.ToStatus,
			&entry.Note,
			&entry.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}

// insertStatusLog добавляет запись журнала в рамках открытой транзакции.
func insertStatusLog(ctx context.Context, tx pgx.Tx, requestId string, actorId *string, from, to models.RequestStatus, note string) error {
	_, err := tx.Exec(ctx, `INSERT INTO request_status_log (id, request_id, actor_id, from_status, to_status, note, created_at)
	                        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.New().String(), requestId, actorId, from, to, note, time.Now().UTC())
	return err
}
