package graph

import (
	"sort"
	"strings"

	"github.com/agext/levenshtein"
	"github.com/google/uuid"

	"github.com/karta-graph/karta/internal/models"
	"github.com/karta-graph/karta/internal/vaultfs"
)

// SearchHit is one fuzzy-search result. UUID is set only for indexed
// nodes; unindexed filesystem entries match by path alone.
type SearchHit struct {
	UUID      *uuid.UUID      `json:"uuid,omitempty"`
	Path      models.NodePath `json:"path"`
	NType     models.NodeType `json:"ntype"`
	IsIndexed bool            `json:"is_indexed"`
	Score     float64         `json:"score"`
}

// Search fuzzy-matches the query against every indexed node and every
// not-yet-indexed entry under the vault root. Results are sorted by score
// descending (path ascending on ties), filtered by minScore, and capped
// by limit when limit is positive. Scores lie in [0, 1].
func (g *DataGraph) Search(query string, limit int, minScore float64) ([]SearchHit, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, nil
	}
	params := levenshtein.NewParams()

	nodes, err := g.store.AllNodes()
	if err != nil {
		return nil, err
	}
	indexed := make(map[models.NodePath]struct{}, len(nodes))
	hits := make([]SearchHit, 0, len(nodes))
	for _, n := range nodes {
		indexed[n.Path] = struct{}{}
		id := n.UUID
		hits = append(hits, SearchHit{
			UUID:      &id,
			Path:      n.Path,
			NType:     n.NType,
			IsIndexed: true,
			Score:     matchScore(q, n.Path, params),
		})
	}

	err = g.vault.Walk(func(e vaultfs.Entry) error {
		if _, ok := indexed[e.Path]; ok {
			return nil
		}
		hits = append(hits, SearchHit{
			Path:      e.Path,
			NType:     models.TypeForEntry(e.Path, e.IsDir),
			IsIndexed: false,
			Score:     matchScore(q, e.Path, params),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Path < hits[j].Path
	})

	out := hits[:0]
	for _, h := range hits {
		if h.Score < minScore {
			continue
		}
		out = append(out, h)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// matchScore scores a path against the query: the better of matching the
// final name segment and matching the full alias form.
func matchScore(q string, p models.NodePath, params *levenshtein.Params) float64 {
	s := levenshtein.Match(q, strings.ToLower(p.Name()), params)
	if s2 := levenshtein.Match(q, strings.ToLower(p.Alias()), params); s2 > s {
		s = s2
	}
	return s
}
