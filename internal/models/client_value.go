package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Client storage keys, one namespace per browser.
const (
	KeyToken      = "jwt_token"
	KeyUserData   = "user_data"
	KeyOnboarding = "onboarding-storage"
)

// ClientValue is one durable key/value entry owned by a browser client.
type ClientValue struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ClientID  string    `gorm:"uniqueIndex:idx_client_key;size:64;not null" json:"client_id"`
	Key       string    `gorm:"uniqueIndex:idx_client_key;size:64;not null" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns the row ID; an upsert that hits an existing key keeps the old one.
func (v *ClientValue) BeforeCreate(*gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}
