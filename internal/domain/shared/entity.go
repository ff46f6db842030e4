package shared

import (
	"time"

	"github.com/google/uuid"
)

// Entity is implemented by every identified domain object.
type Entity interface {
	GetID() uuid.UUID
	GetCreatedAt() time.Time
	GetUpdatedAt() time.Time
}

// BaseEntity carries the identity and timestamps shared by all entities.
// Mutating methods on concrete entities are responsible for refreshing
// UpdatedAt when state changes.
type BaseEntity struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewBaseEntity generates a fresh identity with both timestamps set to now.
func NewBaseEntity() BaseEntity {
	now := time.Now()
	return BaseEntity{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// GetID returns the entity identifier.
func (b *BaseEntity) GetID() uuid.UUID {
	return b.ID
}

// GetCreatedAt returns when the entity was created.
func (b *BaseEntity) GetCreatedAt() time.Time {
	return b.CreatedAt
}

// GetUpdatedAt returns when the entity last changed.
func (b *BaseEntity) GetUpdatedAt() time.Time {
	return b.UpdatedAt
}
