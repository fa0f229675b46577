package models

import "time"

// ServiceRequest carries the summary fields of the request a chat room was
// opened for. Chat only reads these.
type ServiceRequest struct {
	ID            string    `db:"id" json:"id"`
	Code          string    `db:"code" json:"code"`
	Status        string    `db:"status" json:"status"`
	ServiceType   string    `db:"service_type" json:"service_type"`
	RequesterID   string    `db:"requester_id" json:"requester_id"`
	RequesterName string    `db:"requester_name" json:"requester_name"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// ChatRoom is one per-request conversation. Inactive rooms are hidden from
// the directory listing. UpdatedAt is bumped on every new message and drives
// the directory ordering.
type ChatRoom struct {
	ID               string    `db:"id" json:"id"`
	ServiceRequestID string    `db:"service_request_id" json:"service_request_id"`
	IsActive         bool      `db:"is_active" json:"is_active"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// RoomWithRequest is the directory listing row: a room joined with its
// parent request summary.
type RoomWithRequest struct {
	ChatRoom
	RequestCode   string `db:"request_code" json:"request_code"`
	RequestStatus string `db:"request_status" json:"request_status"`
	ServiceType   string `db:"service_type" json:"service_type"`
	RequesterID   string `db:"requester_id" json:"requester_id"`
	RequesterName string `db:"requester_name" json:"requester_name"`
}
