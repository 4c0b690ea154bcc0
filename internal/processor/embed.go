package processor

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"math"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/crypto/blake2b"
)

// DefaultDimensions is the embedding size used when a payload does not set one
const DefaultDimensions = 64

type embedRequest struct {
	Text       string `json:"text"       validate:"required"`
	Dimensions int    `json:"dimensions" validate:"omitempty,gte=8,lte=1024"`
}

// Embedding is returned by the embed task. Vector has unit length unless the
// text contains no tokens.
type Embedding struct {
	Dimensions int       `json:"dimensions"`
	Vector     []float64 `json:"vector"`
}

func handleEmbed(_ context.Context, payload json.RawMessage) (any, error) {
	var req embedRequest
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	if req.Dimensions == 0 {
		req.Dimensions = DefaultDimensions
	}

	return Embedding{
		Dimensions: req.Dimensions,
		Vector:     embed(req.Text, req.Dimensions),
	}, nil
}

type scoreCandidate struct {
	ID   string `json:"id"   validate:"required"`
	Text string `json:"text"`
}

type scoreRequest struct {
	Query      string           `json:"query"      validate:"required"`
	Results    []scoreCandidate `json:"results"    validate:"required,min=1,dive"`
	Limit      int              `json:"limit"      validate:"omitempty,gte=1"`
	Dimensions int              `json:"dimensions" validate:"omitempty,gte=8,lte=1024"`
}

// ScoredResult is one entry of a score_results result
type ScoredResult struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// ScoreResults is returned by the score_results task, sorted by descending
// score. Ties keep their input order.
type ScoreResults struct {
	Results []ScoredResult `json:"results"`
}

func handleScoreResults(_ context.Context, payload json.RawMessage) (any, error) {
	var req scoreRequest
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	if req.Dimensions == 0 {
		req.Dimensions = DefaultDimensions
	}

	query := embed(req.Query, req.Dimensions)
	scored := make([]ScoredResult, 0, len(req.Results))
	for _, c := range req.Results {
		scored = append(scored, ScoredResult{
			ID:    c.ID,
			Score: dot(query, embed(c.Text, req.Dimensions)),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if req.Limit > 0 && req.Limit < len(scored) {
		scored = scored[:req.Limit]
	}
	return ScoreResults{Results: scored}, nil
}

// embed maps text to a normalized bag-of-words vector using signed feature
// hashing over lower-cased alphanumeric tokens
func embed(text string, dimensions int) []float64 {
	vec := make([]float64, dimensions)

	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, token := range tokens {
		sum := blake2b.Sum256([]byte(token))
		idx := binary.LittleEndian.Uint64(sum[:8]) % uint64(dimensions)
		if sum[8]&1 == 0 {
			vec[idx]++
		} else {
			vec[idx]--
		}
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}

// dot is the cosine similarity of two unit vectors
func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
