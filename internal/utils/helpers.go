package utils

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/senyabanana/marketplace-service/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SendErrorResponse отправляет ошибку в формате JSON
func SendErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResponse := models.ErrorResponse{
		StatusCode: statusCode,
		Message:    message,
	}
	if err := json.NewEncoder(w).Encode(errorResponse); err != nil {
		log.Println(err)
	}
}

// ParseLimitOffset обрабатывает limit и offset
func ParseLimitOffset(limitStr, offsetStr string) (int, int, error) {
	var limit, offset int
	var err error

	if limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil || limit <= 0 || limit > 50 {
			return 0, 0, fmt.Errorf("invalid limit parameter, must be a positive integer [0:50]")
		}
	} else {
		limit = 5
	}

	if offsetStr != "" {
		offset, err = strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			return 0, 0, fmt.Errorf("invalid offset parameter, must be a non-negative integer")
		}
	} else {
		offset = 0
	}

	return limit, offset, nil
}

// IsEligible проверяет, может ли исполнитель видеть и принимать заявку:
// совпадение подкатегории, совпадение города (пустой город - любой),
// для срочных заявок - флаг accepts_urgent.
func IsEligible(provider *models.ProviderProfile, request *models.ServiceRequest) bool {
	if provider == nil {
		return false
	}
	if !provider.HasSubcategory(request.SubcategoryID) {
		return false
	}
	reqCity := strings.TrimSpace(request.City)
	provCity := strings.TrimSpace(provider.City)
	if reqCity != "" && provCity != "" && reqCity != provCity {
		return false
	}
	if request.Type == models.UrgentRequest && !provider.AcceptsUrgent {
		return false
	}
	return true
}

// StatusGroup раскрывает пользовательскую группу статусов в набор статусов заявки.
func StatusGroup(group string) ([]models.RequestStatus, error) {
	switch strings.ToLower(strings.TrimSpace(group)) {
	case "":
		return nil, nil
	case "new":
		return []models.RequestStatus{models.NewRequest, models.SentRequest}, nil
	case "in_progress":
		return []models.RequestStatus{models.AcceptedRequest, models.InProgressRequest}, nil
	case "completed":
		return []models.RequestStatus{models.CompletedRequest}, nil
	case "cancelled", "canceled":
		return []models.RequestStatus{models.CancelledRequest, models.ExpiredRequest}, nil
	}
	return nil, fmt.Errorf("unknown status group: %s", group)
}

// CheckUserExists проверяет, существует ли пользователь с указанным id
func CheckUserExists(ctx context.Context, dbPool *pgxpool.Pool, userId string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM app_user WHERE id = $1)`
	err := dbPool.QueryRow(ctx, query, userId).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// CheckUserIsStaff проверяет, является ли пользователь оператором.
func CheckUserIsStaff(ctx context.Context, dbPool *pgxpool.Pool, userId string) (bool, error) {
	var isStaff bool
	query := `SELECT is_staff FROM app_user WHERE id = $1`
	err := dbPool.QueryRow(ctx, query, userId).Scan(&isStaff)
	if err != nil {
		return false, err
	}
	return isStaff, nil
}

// CheckSubcategoryExists проверяет, существует ли подкатегория
func CheckSubcategoryExists(ctx context.Context, dbPool *pgxpool.Pool, subcategoryId string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM subcategory WHERE id = $1)`
	err := dbPool.QueryRow(ctx, query, subcategoryId).Scan(&exists)
	return exists, err
}

// CheckProviderExists проверяет, существует ли профиль исполнителя
func CheckProviderExists(ctx context.Context, dbPool *pgxpool.Pool, providerId string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM provider_profile WHERE id = $1)`
	err := dbPool.QueryRow(ctx, query, providerId).Scan(&exists)
	return exists, err
}

// GetProviderByUserId получает профиль исполнителя по id пользователя вместе
// с набором его подкатегорий. Возвращает nil, если профиля нет.
func GetProviderByUserId(ctx context.Context, dbPool *pgxpool.Pool, userId string) (*models.ProviderProfile, error) {
	var provider models.ProviderProfile
	query := `SELECT id, user_id, display_name, city, accepts_urgent FROM provider_profile WHERE user_id = $1`
	err := dbPool.QueryRow(ctx, query, userId).Scan(
		&provider.ID,
		&provider.UserID,
		&provider.DisplayName,
		&provider.City,
		&provider.AcceptsUrgent,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	rows, err := dbPool.Query(ctx, `SELECT subcategory_id FROM provider_category WHERE provider_id = $1`, provider.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var subcategoryId string
		if err := rows.Scan(&subcategoryId); err != nil {
			return nil, err
		}
		provider.SubcategoryIDs = append(provider.SubcategoryIDs, subcategoryId)
	}
	return &provider, rows.Err()
}

// GetActor собирает действующее лицо: существование пользователя, флаг оператора
// и профиль исполнителя, если он есть.
func GetActor(ctx context.Context, dbPool *pgxpool.Pool, userId string) (*models.Actor, error) {
	exists, err := CheckUserExists(ctx, dbPool, userId)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, models.NewErrorResponse(http.StatusUnauthorized, "user does not exist")
	}

	isStaff, err := CheckUserIsStaff(ctx, dbPool, userId)
	if err != nil {
		return nil, err
	}

	provider, err := GetProviderByUserId(ctx, dbPool, userId)
	if err != nil {
		return nil, err
	}

	return &models.Actor{UserID: userId, IsStaff: isStaff, Provider: provider}, nil
}
