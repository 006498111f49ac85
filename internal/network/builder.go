// Package network builds the entity co-occurrence graph: nodes are
// distinct entities across a user's cases, edges connect entities that
// appear together in at least one case, weighted by how many distinct
// cases they share.
package network

import (
	"math"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"

	"github.com/lexigraph/lexigraph/internal/domain"
)

// Node is one distinct entity in the graph. ID is the entity's
// identity key; Label is the display name of its most confident
// mention. CaseIDs lists every case the entity appears in and
// EntityIDs every underlying entity row, so clients can drill down
// without a second query.
type Node struct {
	ID        string            `json:"id"`
	Label     string            `json:"label"`
	Type      domain.EntityType `json:"type"`
	CaseCount int               `json:"case_count"`
	CaseIDs   []uuid.UUID       `json:"case_ids"`
	EntityIDs []uuid.UUID       `json:"entity_ids"`
}

// Edge connects two entities that co-occur in at least one case.
// Source and Target are node IDs; Weight counts the distinct shared
// cases.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Weight int    `json:"weight"`
}

// Stats summarizes the graph.
type Stats struct {
	TotalNodes int `json:"total_nodes"`
	TotalEdges int `json:"total_edges"`

	// EntityTypes counts graph nodes per entity type.
	EntityTypes map[domain.EntityType]int `json:"entity_types"`

	// AvgConnections is the mean node degree, 2E/N, rounded to two
	// decimal places. Zero for an empty graph.
	AvgConnections float64 `json:"avg_connections"`
}

// Graph is the complete co-occurrence network.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
	Stats Stats  `json:"stats"`
}

// nodeAccumulator gathers one entity's mentions during a build.
type nodeAccumulator struct {
	label      string
	typ        domain.EntityType
	confidence float64
	entityIDs  []uuid.UUID
	cases      mapset.Set[uuid.UUID]

	// caseRows counts mentions per case; co-occurrence ranking weighs
	// rows, not just distinct cases.
	caseRows map[uuid.UUID]int
}

// indexEntities groups entity rows by identity key, excluding DATE
// entities: dates co-occur with everything and carry no relational
// signal. The returned order lists keys by first mention, which keeps
// graph output deterministic for identical input.
func indexEntities(entities []*domain.Entity) (map[string]*nodeAccumulator, []string) {
	nodes := make(map[string]*nodeAccumulator)
	var order []string

	for _, e := range entities {
		if e.Type == domain.EntityTypeDate {
			continue
		}

		key := e.IdentityKey()
		acc, ok := nodes[key]
		if !ok {
			acc = &nodeAccumulator{
				label:      e.Name,
				typ:        e.Type,
				confidence: e.Confidence,
				cases:      mapset.NewThreadUnsafeSet[uuid.UUID](),
				caseRows:   make(map[uuid.UUID]int),
			}
			nodes[key] = acc
			order = append(order, key)
		} else if e.Confidence > acc.confidence {
			// The most confident mention supplies the display name.
			acc.label = e.Name
			acc.confidence = e.Confidence
		}
		acc.entityIDs = append(acc.entityIDs, e.ID)
		acc.caseRows[e.CaseID]++
		acc.cases.Add(e.CaseID)
	}

	return nodes, order
}

// BuildGraph constructs the co-occurrence graph from entity rows.
// Nodes appear in first-mention order and edges in node-pair order.
func BuildGraph(entities []*domain.Entity) *Graph {
	nodes, order := indexEntities(entities)

	g := &Graph{
		Nodes: make([]Node, 0, len(order)),
		Edges: []Edge{},
	}
	typeCounts := make(map[domain.EntityType]int)

	for _, key := range order {
		acc := nodes[key]
		typeCounts[acc.typ]++

		caseIDs := acc.cases.ToSlice()
		sort.Slice(caseIDs, func(i, j int) bool {
			return caseIDs[i].String() < caseIDs[j].String()
		})

		g.Nodes = append(g.Nodes, Node{
			ID:        key,
			Label:     acc.label,
			Type:      acc.typ,
			CaseCount: len(caseIDs),
			CaseIDs:   caseIDs,
			EntityIDs: acc.entityIDs,
		})
	}

	for i := 0; i < len(order); i++ {
		for j := i + 1; j < len(order); j++ {
			shared := nodes[order[i]].cases.Intersect(nodes[order[j]].cases)
			if w := shared.Cardinality(); w > 0 {
				g.Edges = append(g.Edges, Edge{
					Source: order[i],
					Target: order[j],
					Weight: w,
				})
			}
		}
	}

	g.Stats = Stats{
		TotalNodes:     len(g.Nodes),
		TotalEdges:     len(g.Edges),
		EntityTypes:    typeCounts,
		AvgConnections: avgConnections(len(g.Nodes), len(g.Edges)),
	}

	return g
}

// avgConnections returns the mean degree 2E/N rounded to two decimals.
func avgConnections(nodes, edges int) float64 {
	if nodes == 0 {
		return 0
	}
	return math.Round(float64(2*edges)/float64(nodes)*100) / 100
}

// CoOccurrence is one neighbor of an entity. Occurrences counts the
// neighbor's mention rows within the shared cases; SharedCases counts
// the distinct cases themselves.
type CoOccurrence struct {
	Name        string            `json:"name"`
	Type        domain.EntityType `json:"type"`
	Occurrences int               `json:"occurrences"`
	SharedCases int               `json:"shared_cases"`
}

// maxCoOccurrences caps the neighbor list on the entity detail view.
const maxCoOccurrences = 10

// coOccurrencesFor returns the strongest neighbors of the node with
// the given key, ordered by occurrence count descending with name as
// the tiebreak, capped at maxCoOccurrences. A neighbor mentioned three
// times in one shared case outranks one mentioned once in each of two.
func coOccurrencesFor(nodes map[string]*nodeAccumulator, key string) []CoOccurrence {
	self, ok := nodes[key]
	if !ok {
		return nil
	}

	neighbors := make([]CoOccurrence, 0)
	for other, acc := range nodes {
		if other == key {
			continue
		}
		shared, rows := 0, 0
		for caseID, n := range acc.caseRows {
			if self.cases.Contains(caseID) {
				shared++
				rows += n
			}
		}
		if rows > 0 {
			neighbors = append(neighbors, CoOccurrence{
				Name:        acc.label,
				Type:        acc.typ,
				Occurrences: rows,
				SharedCases: shared,
			})
		}
	}

	sort.Slice(neighbors, func(i, j int) bool {
		if neighbors[i].Occurrences != neighbors[j].Occurrences {
			return neighbors[i].Occurrences > neighbors[j].Occurrences
		}
		return neighbors[i].Name < neighbors[j].Name
	})

	if len(neighbors) > maxCoOccurrences {
		neighbors = neighbors[:maxCoOccurrences]
	}
	return neighbors
}
