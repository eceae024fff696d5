package domain

import (
	"time"

	"github.com/google/uuid"
)

// ServiceStatus is the liveness tag of a directory entry.
type ServiceStatus string

const (
	ServiceStatusActive   ServiceStatus = "active"
	ServiceStatusInactive ServiceStatus = "inactive"
)

func ValidServiceStatus(s string) bool {
	switch ServiceStatus(s) {
	case ServiceStatusActive, ServiceStatusInactive:
		return true
	}
	return false
}

// Service is an external collaborating system. LastPing only moves on heartbeat.
type Service struct {
	ID          uuid.UUID     `json:"id"`
	Name        string        `json:"name"`
	URL         string        `json:"url"`
	Description *string       `json:"description,omitempty"`
	Status      ServiceStatus `json:"status"`
	LastPing    *time.Time    `json:"last_ping"`
	CreatedAt   time.Time     `json:"created_at"`
}
