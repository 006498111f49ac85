package network

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexigraph/lexigraph/internal/domain"
)

func ent(t *testing.T, caseID, ownerID uuid.UUID, typ domain.EntityType, name string, confidence float64) *domain.Entity {
	t.Helper()
	e, err := domain.NewEntity(caseID, ownerID, typ, name, confidence, 1)
	require.NoError(t, err)
	return e
}

func findEdge(g *Graph, source, target string) *Edge {
	for i := range g.Edges {
		e := &g.Edges[i]
		if (e.Source == source && e.Target == target) ||
			(e.Source == target && e.Target == source) {
			return e
		}
	}
	return nil
}

func TestBuildGraphCoOccurrence(t *testing.T) {
	t.Parallel()
	owner := uuid.New()
	case1, case2, case3 := uuid.New(), uuid.New(), uuid.New()

	g := BuildGraph([]*domain.Entity{
		ent(t, case1, owner, domain.EntityTypePerson, "Alice Adams", 0.9),
		ent(t, case1, owner, domain.EntityTypePerson, "Bob Brown", 0.9),
		ent(t, case2, owner, domain.EntityTypePerson, "Bob Brown", 0.9),
		ent(t, case2, owner, domain.EntityTypeOrg, "Carter LLC", 0.9),
		ent(t, case3, owner, domain.EntityTypePerson, "Alice Adams", 0.9),
		ent(t, case3, owner, domain.EntityTypePerson, "Bob Brown", 0.9),
	})

	assert.Equal(t, 3, g.Stats.TotalNodes)
	assert.Equal(t, 2, g.Stats.TotalEdges)
	assert.Equal(t, map[domain.EntityType]int{
		domain.EntityTypePerson: 2,
		domain.EntityTypeOrg:    1,
	}, g.Stats.EntityTypes)

	ab := findEdge(g, "alice adams", "bob brown")
	require.NotNil(t, ab)
	assert.Equal(t, 2, ab.Weight, "two distinct cases share Alice and Bob")

	bc := findEdge(g, "bob brown", "carter llc")
	require.NotNil(t, bc)
	assert.Equal(t, 1, bc.Weight)

	assert.Nil(t, findEdge(g, "alice adams", "carter llc"), "Alice and Carter never co-occur")

	// Mean degree 2E/N = 4/3, rounded to two decimals.
	assert.Equal(t, 1.33, g.Stats.AvgConnections)
}

func TestBuildGraphMergesNameVariants(t *testing.T) {
	t.Parallel()
	owner := uuid.New()
	case1, case2 := uuid.New(), uuid.New()

	g := BuildGraph([]*domain.Entity{
		ent(t, case1, owner, domain.EntityTypePerson, "John  Smith", 0.7),
		ent(t, case2, owner, domain.EntityTypePerson, "JOHN SMITH", 0.95),
	})

	require.Len(t, g.Nodes, 1)
	assert.Equal(t, "john smith", g.Nodes[0].ID)
	assert.Equal(t, "JOHN SMITH", g.Nodes[0].Label, "most confident mention wins the label")
	assert.Equal(t, 2, g.Nodes[0].CaseCount)
	assert.ElementsMatch(t, []uuid.UUID{case1, case2}, g.Nodes[0].CaseIDs)
	assert.Len(t, g.Nodes[0].EntityIDs, 2, "merged node keeps every underlying row ID")
	assert.Empty(t, g.Edges)
}

func TestBuildGraphNodeProvenance(t *testing.T) {
	t.Parallel()
	owner := uuid.New()
	case1, case2 := uuid.New(), uuid.New()

	first := ent(t, case1, owner, domain.EntityTypePerson, "Alice Adams", 0.9)
	second := ent(t, case2, owner, domain.EntityTypePerson, "Alice Adams", 0.8)

	g := BuildGraph([]*domain.Entity{first, second})

	require.Len(t, g.Nodes, 1)
	node := g.Nodes[0]
	assert.ElementsMatch(t, []uuid.UUID{case1, case2}, node.CaseIDs)
	assert.Equal(t, []uuid.UUID{first.ID, second.ID}, node.EntityIDs, "row IDs kept in mention order")

	// The wire format carries the provenance lists, not just counts.
	payload, err := json.Marshal(node)
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"case_ids"`)
	assert.Contains(t, string(payload), `"entity_ids"`)
}

func TestBuildGraphExcludesDates(t *testing.T) {
	t.Parallel()
	owner := uuid.New()
	caseID := uuid.New()

	g := BuildGraph([]*domain.Entity{
		ent(t, caseID, owner, domain.EntityTypePerson, "Alice Adams", 0.9),
		ent(t, caseID, owner, domain.EntityTypeDate, "January 5, 2020", 0.99),
	})

	require.Len(t, g.Nodes, 1)
	assert.Equal(t, domain.EntityTypePerson, g.Nodes[0].Type)
	assert.Empty(t, g.Edges)
}

func TestBuildGraphEmpty(t *testing.T) {
	t.Parallel()

	g := BuildGraph(nil)

	assert.Empty(t, g.Nodes)
	assert.Empty(t, g.Edges)
	assert.Zero(t, g.Stats.TotalNodes)
	assert.Zero(t, g.Stats.AvgConnections)
}

func TestBuildGraphDeterministicOrder(t *testing.T) {
	t.Parallel()
	owner := uuid.New()
	caseID := uuid.New()

	input := []*domain.Entity{
		ent(t, caseID, owner, domain.EntityTypePerson, "Zed Zane", 0.9),
		ent(t, caseID, owner, domain.EntityTypePerson, "Amy Ames", 0.9),
		ent(t, caseID, owner, domain.EntityTypeOrg, "Mid Org", 0.9),
	}

	first := BuildGraph(input)
	second := BuildGraph(input)

	assert.Equal(t, first, second)
	assert.Equal(t, "zed zane", first.Nodes[0].ID, "nodes keep first-mention order")
	assert.Equal(t, "amy ames", first.Nodes[1].ID)
}

func TestCoOccurrencesRankingAndCap(t *testing.T) {
	t.Parallel()
	owner := uuid.New()

	// "Hub" shares two cases with "Close", one case with everyone else.
	sharedA, sharedB := uuid.New(), uuid.New()
	rows := []*domain.Entity{
		ent(t, sharedA, owner, domain.EntityTypePerson, "Hub Person", 0.9),
		ent(t, sharedB, owner, domain.EntityTypePerson, "Hub Person", 0.9),
		ent(t, sharedA, owner, domain.EntityTypePerson, "Close Friend", 0.9),
		ent(t, sharedB, owner, domain.EntityTypePerson, "Close Friend", 0.9),
	}
	for i := 0; i < 11; i++ {
		caseID := uuid.New()
		rows = append(rows,
			ent(t, caseID, owner, domain.EntityTypePerson, "Hub Person", 0.9),
			ent(t, caseID, owner, domain.EntityTypeOrg, orgName(i), 0.9),
		)
	}

	nodes, _ := indexEntities(rows)
	neighbors := coOccurrencesFor(nodes, "hub person")

	require.Len(t, neighbors, maxCoOccurrences)
	assert.Equal(t, "Close Friend", neighbors[0].Name)
	assert.Equal(t, 2, neighbors[0].Occurrences)
	assert.Equal(t, 2, neighbors[0].SharedCases)
	for _, n := range neighbors[1:] {
		assert.Equal(t, 1, n.Occurrences)
		assert.Equal(t, 1, n.SharedCases)
	}
}

func TestCoOccurrencesRankedByRowCount(t *testing.T) {
	t.Parallel()
	owner := uuid.New()
	shared1, shared2 := uuid.New(), uuid.New()

	// Busy Org is mentioned three times in one shared case; Quiet Org
	// once in each of two. Row count ranks Busy Org first even though
	// Quiet Org shares more cases.
	rows := []*domain.Entity{
		ent(t, shared1, owner, domain.EntityTypePerson, "Hub Person", 0.9),
		ent(t, shared2, owner, domain.EntityTypePerson, "Hub Person", 0.9),
		ent(t, shared1, owner, domain.EntityTypeOrg, "Busy Org", 0.9),
		ent(t, shared1, owner, domain.EntityTypeOrg, "Busy Org", 0.9),
		ent(t, shared1, owner, domain.EntityTypeOrg, "Busy Org", 0.9),
		ent(t, shared1, owner, domain.EntityTypeOrg, "Quiet Org", 0.9),
		ent(t, shared2, owner, domain.EntityTypeOrg, "Quiet Org", 0.9),
	}

	nodes, _ := indexEntities(rows)
	neighbors := coOccurrencesFor(nodes, "hub person")

	require.Len(t, neighbors, 2)
	assert.Equal(t, "Busy Org", neighbors[0].Name)
	assert.Equal(t, 3, neighbors[0].Occurrences)
	assert.Equal(t, 1, neighbors[0].SharedCases)
	assert.Equal(t, "Quiet Org", neighbors[1].Name)
	assert.Equal(t, 2, neighbors[1].Occurrences)
	assert.Equal(t, 2, neighbors[1].SharedCases)
}

func orgName(i int) string {
	return string(rune('A'+i)) + " Holdings"
}
