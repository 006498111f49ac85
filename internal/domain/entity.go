package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EntityType classifies an extracted entity. Types outside this fixed
// vocabulary are discarded before persistence.
type EntityType string

// The fixed entity type vocabulary.
const (
	EntityTypePerson   EntityType = "PERSON"
	EntityTypeOrg      EntityType = "ORG"
	EntityTypeDate     EntityType = "DATE"
	EntityTypeLocation EntityType = "LOCATION"
	EntityTypeCourt    EntityType = "COURT"
)

// Common validation errors for Entity.
var (
	ErrEmptyEntityName    = errors.New("entity name cannot be empty")
	ErrInvalidEntityType  = errors.New("invalid entity type")
	ErrEmptyEntityCaseID  = errors.New("entity case ID cannot be empty")
	ErrEmptyEntityOwnerID = errors.New("entity owner ID cannot be empty")
)

// Entity is a single named-entity mention extracted from a case
// document. NormalizedName is the case- and whitespace-folded identity
// key used to merge mentions of the same entity across documents.
type Entity struct {
	ID             uuid.UUID  `json:"entity_id"`
	CaseID         uuid.UUID  `json:"case_id"`
	OwnerUserID    uuid.UUID  `json:"owner_user_id"`
	Type           EntityType `json:"entity_type"`
	Name           string     `json:"entity_name"`
	NormalizedName string     `json:"normalized_name"`
	Confidence     float64    `json:"confidence"`
	PageNumber     int        `json:"page_number"`
	CreatedAt      time.Time  `json:"created_at"`
}

// NewEntity creates a new Entity row for the given case and owner,
// deriving NormalizedName from the raw name.
// Returns an error if validation fails.
func NewEntity(caseID, ownerUserID uuid.UUID, entityType EntityType, name string, confidence float64, pageNumber int) (*Entity, error) {
	e := &Entity{
		ID:             uuid.New(),
		CaseID:         caseID,
		OwnerUserID:    ownerUserID,
		Type:           entityType,
		Name:           name,
		NormalizedName: NormalizeEntityName(name),
		Confidence:     confidence,
		PageNumber:     pageNumber,
		CreatedAt:      time.Now().UTC(),
	}

	if err := e.Validate(); err != nil {
		return nil, err
	}

	return e, nil
}

// Validate checks if the Entity has valid data.
func (e *Entity) Validate() error {
	if e.CaseID == uuid.Nil {
		return ErrEmptyEntityCaseID
	}

	if e.OwnerUserID == uuid.Nil {
		return ErrEmptyEntityOwnerID
	}

	if strings.TrimSpace(e.Name) == "" {
		return ErrEmptyEntityName
	}

	if !IsValidEntityType(e.Type) {
		return ErrInvalidEntityType
	}

	return nil
}

// IdentityKey returns the key used to group mentions of the same
// entity: the normalized name when present, the raw name otherwise,
// always lowercased.
func (e *Entity) IdentityKey() string {
	if e.NormalizedName != "" {
		return strings.ToLower(e.NormalizedName)
	}
	return strings.ToLower(e.Name)
}

// NormalizeEntityName folds case and collapses interior whitespace so
// that "John  Smith" and "john smith" share one identity key.
func NormalizeEntityName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// IsValidEntityType checks if the given type is in the fixed vocabulary.
func IsValidEntityType(t EntityType) bool {
	switch t {
	case EntityTypePerson, EntityTypeOrg, EntityTypeDate,
		EntityTypeLocation, EntityTypeCourt:
		return true
	default:
		return false
	}
}
