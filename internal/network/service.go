package network

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/lexigraph/lexigraph/internal/domain"
	"github.com/lexigraph/lexigraph/internal/store"
)

// ErrEntityNotFound is returned by EntityDetail when the named entity
// does not appear in the user's network.
var ErrEntityNotFound = errors.New("entity not found in network")

// CaseRef is the case metadata attached to an entity detail view.
type CaseRef struct {
	CaseID    uuid.UUID         `json:"case_id"`
	Filename  string            `json:"filename"`
	CourtName string            `json:"court_name,omitempty"`
	Status    domain.CaseStatus `json:"status"`
}

// EntityDetail is the drill-down view for one entity: where it
// appears and who it appears with.
type EntityDetail struct {
	Name          string            `json:"name"`
	Type          domain.EntityType `json:"type"`
	Occurrences   int               `json:"occurrences"`
	CaseCount     int               `json:"case_count"`
	Cases         []CaseRef         `json:"cases"`
	CoOccurrences []CoOccurrence    `json:"co_occurrences"`
}

// Service builds network views from a user's stored entities. The
// graph is computed per request from entity rows; nothing is cached or
// persisted.
type Service struct {
	entities store.EntityStore
	cases    store.CaseStore
	logger   *slog.Logger
}

// NewService creates a network service.
func NewService(entities store.EntityStore, cases store.CaseStore, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		entities: entities,
		cases:    cases,
		logger:   log.With(slog.String("component", "network_service")),
	}
}

// Graph returns the full co-occurrence network for the user's cases.
func (s *Service) Graph(ctx context.Context, userID uuid.UUID) (*Graph, error) {
	rows, err := s.entities.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return BuildGraph(rows), nil
}

// EntityDetail returns the drill-down view for the entity with the
// given name. Lookup is by identity key, so "John  Smith" and
// "john smith" resolve to the same entity.
func (s *Service) EntityDetail(ctx context.Context, userID uuid.UUID, name string) (*EntityDetail, error) {
	rows, err := s.entities.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	nodes, _ := indexEntities(rows)
	key := domain.NormalizeEntityName(name)
	acc, ok := nodes[key]
	if !ok {
		return nil, ErrEntityNotFound
	}

	caseIDs := acc.cases.ToSlice()
	sort.Slice(caseIDs, func(i, j int) bool {
		return caseIDs[i].String() < caseIDs[j].String()
	})

	cases, err := s.cases.ListByIDs(ctx, caseIDs)
	if err != nil {
		return nil, err
	}

	refs := make([]CaseRef, 0, len(cases))
	for _, c := range cases {
		refs = append(refs, CaseRef{
			CaseID:    c.ID,
			Filename:  c.Filename,
			CourtName: c.CourtName,
			Status:    c.Status,
		})
	}

	return &EntityDetail{
		Name:          acc.label,
		Type:          acc.typ,
		Occurrences:   len(acc.entityIDs),
		CaseCount:     acc.cases.Cardinality(),
		Cases:         refs,
		CoOccurrences: coOccurrencesFor(nodes, key),
	}, nil
}
