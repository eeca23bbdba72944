package matcher

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/hetulpatel/crossarb/internal/cache"
	"github.com/hetulpatel/crossarb/internal/hashutil"
	"github.com/hetulpatel/crossarb/internal/logging"
)

// Embedder turns a title into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EmbeddingScorer scores titles by cosine similarity of their embeddings,
// scaled to 0-100. Vectors are memoized for the current cycle and optionally
// in redis, so the O(|A|·|B|) comparison costs one embedding call per
// distinct title. An embedding failure scores 0, which keeps the pair out of
// FUZZY.
type EmbeddingScorer struct {
	embedder Embedder
	cache    cache.EmbeddingCache
	model    string
	timeout  time.Duration

	mu   sync.Mutex
	ctx  context.Context
	memo map[string][]float32
}

func NewEmbeddingScorer(embedder Embedder, embCache cache.EmbeddingCache, model string, timeout time.Duration) *EmbeddingScorer {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &EmbeddingScorer{
		embedder: embedder,
		cache:    embCache,
		model:    model,
		timeout:  timeout,
		ctx:      context.Background(),
		memo:     make(map[string][]float32),
	}
}

// BeginCycle drops the vectors memoized by the previous cycle and binds
// later embedding calls to ctx.
func (s *EmbeddingScorer) BeginCycle(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	s.ctx = ctx
	s.memo = make(map[string][]float32)
	s.mu.Unlock()
}

func (s *EmbeddingScorer) Score(a, b string) float64 {
	va := s.vector(a)
	vb := s.vector(b)
	if va == nil || vb == nil {
		return 0
	}
	return clampScore(cosine(va, vb) * 100)
}

func (s *EmbeddingScorer) vector(text string) []float32 {
	s.mu.Lock()
	v, ok := s.memo[text]
	parent := s.ctx
	s.mu.Unlock()
	if ok {
		return v
	}
	if parent.Err() != nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(parent, s.timeout)
	defer cancel()

	key := hashutil.HashStrings(s.model, text)
	if s.cache != nil {
		cached, hit, err := s.cache.Get(ctx, key)
		if err != nil {
			logging.Warnf("[matcher] embedding cache get error: %v", err)
		} else if hit {
			s.remember(text, cached)
			return cached
		}
	}

	v, err := s.embedder.Embed(ctx, text)
	if err != nil {
		logging.Errorf("[matcher] embed %q: %v", text, err)
		return nil
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, v); err != nil {
			logging.Warnf("[matcher] embedding cache set error: %v", err)
		}
	}
	s.remember(text, v)
	return v
}

func (s *EmbeddingScorer) remember(text string, v []float32) {
	s.mu.Lock()
	s.memo[text] = v
	s.mu.Unlock()
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
