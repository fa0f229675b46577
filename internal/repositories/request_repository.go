package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"studio-chat/internal/models"
)

var ErrRequestNotFound = errors.New("service request not found")

// RequestRepository reads and seeds service requests. Chat treats requests
// as read-only except for the create used by the intake flow.
type RequestRepository interface {
	CreateRequest(ctx context.Context, code, serviceType, requesterID, requesterName string) (models.ServiceRequest, error)
	GetRequest(ctx context.Context, requestID string) (models.ServiceRequest, error)
}

// RequestRepo is a sqlx implementation of RequestRepository.
type RequestRepo struct {
	db *sqlx.DB
}

// NewRequestRepo constructs a RequestRepo.
func NewRequestRepo(db *sqlx.DB) *RequestRepo {
	return &RequestRepo{db: db}
}

// CreateRequest stores a new service request.
func (r *RequestRepo) CreateRequest(ctx context.Context, code, serviceType, requesterID, requesterName string) (models.ServiceRequest, error) {
	var req models.ServiceRequest
	err := r.db.QueryRowxContext(ctx, `INSERT INTO service_requests (id, code, service_type, requester_id, requester_name)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, code, status, service_type, requester_id, requester_name, created_at`,
		uuid.NewString(), code, serviceType, requesterID, requesterName).StructScan(&req)
	return req, err
}

// GetRequest fetches a request by id.
func (r *RequestRepo) GetRequest(ctx context.Context, requestID string) (models.ServiceRequest, error) {
	var req models.ServiceRequest
	err := r.db.GetContext(ctx, &req, `SELECT id, code, status, service_type, requester_id, requester_name, created_at
        FROM service_requests WHERE id=$1`, requestID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ServiceRequest{}, ErrRequestNotFound
	}
	return req, err
}
