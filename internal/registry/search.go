package registry

import (
	"math"
	"sort"
	"strings"

	"github.com/solace-automations/intentflow/internal/domain"
)

// Match pairs a candidate block with its combined search score, normalized
// to [0, 1] (§4.2).
type Match struct {
	Block *domain.BlockDefinition
	Score float64
}

// lexicalBonusCap bounds how much a lexical hit can add on top of the
// semantic score — §4.2: "lexical match contributes a bounded bonus on top
// of semantic score", never letting a pure keyword hit dominate a weak
// semantic match.
const lexicalBonusCap = 0.2

// Search ranks candidates against queryEmbedding + queryText using the
// hybrid policy from §4.2: cosine similarity over the query embedding,
// normalized to [0,1], plus a bounded lexical bonus for case-insensitive
// matches over id/name/description/tags. Ties break by shorter id, then
// lexical (alphabetical) order. limit <= 0 means unlimited.
func Search(candidates []*domain.BlockDefinition, queryEmbedding []float32, queryText string, limit int) []Match {
	matches := make([]Match, 0, len(candidates))
	for _, b := range candidates {
		semantic := normalizedCosine(queryEmbedding, b.Embedding)
		bonus := lexicalBonus(b, queryText)
		score := semantic + bonus
		if score > 1 {
			score = 1
		}
		matches = append(matches, Match{Block: b, Score: score})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		if len(matches[i].Block.ID) != len(matches[j].Block.ID) {
			return len(matches[i].Block.ID) < len(matches[j].Block.ID)
		}
		return matches[i].Block.ID < matches[j].Block.ID
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// normalizedCosine returns cosine similarity rescaled from [-1,1] to [0,1].
// An empty or mismatched-length embedding contributes zero semantic score
// rather than erroring — this is the degraded path the embedding-provider
// failure model (§4.2) falls into: "fall back to lexical-only search with
// reduced confidence".
func normalizedCosine(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return (cos + 1) / 2
}

// lexicalBonus awards up to lexicalBonusCap for a case-insensitive
// substring hit of queryText against id, name, description, or tags.
func lexicalBonus(b *domain.BlockDefinition, queryText string) float64 {
	q := strings.ToLower(strings.TrimSpace(queryText))
	if q == "" {
		return 0
	}

	hits := 0
	fields := []string{b.ID, b.Name, b.Description}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			hits++
		}
	}
	for _, tag := range b.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			hits++
			break
		}
	}
	if hits == 0 {
		return 0
	}

	step := lexicalBonusCap / float64(len(fields)+1)
	bonus := step * float64(hits)
	if bonus > lexicalBonusCap {
		bonus = lexicalBonusCap
	}
	return bonus
}

// FitnessHint narrows Search results to structurally usable candidates —
// applied by the Thinker's Search stage (§4.2 "Match quality policy"), not
// by the registry itself, since what counts as "fit" depends on the
// required spec the Thinker is resolving.
type FitnessHint struct {
	RequiredInputs  []string
	RequiredOutputs []string
	ExecutionKind   domain.ExecutionKind // empty means unconstrained
}

// Fits reports whether candidate structurally satisfies hint: every
// required input/output name must be present in the candidate's schemas
// (names may differ is a Thinker-side concern resolved before calling Fits
// with the already-aligned names; here we check literal presence), and the
// execution kind must match when the hint specifies one.
func (h FitnessHint) Fits(b *domain.BlockDefinition) bool {
	if h.ExecutionKind != "" && b.ExecutionKind != h.ExecutionKind {
		return false
	}
	for _, name := range h.RequiredInputs {
		if _, ok := b.InputSchema[name]; !ok {
			return false
		}
	}
	for _, name := range h.RequiredOutputs {
		if _, ok := b.OutputSchema[name]; !ok {
			return false
		}
	}
	return true
}
