// Package generator builds typing text sequences.
package generator

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
	"unicode"

	"github.com/verte-zerg/keyrace/internal/corpus"
	"github.com/verte-zerg/keyrace/internal/model"
)

const (
	// TimePoolSize is the number of words generated for time mode; the timer
	// ends the session long before a typist exhausts it.
	TimePoolSize = 100
	// DefaultWordCount is used in words mode when no count is configured.
	DefaultWordCount = 25
)

// Generator produces randomized typing text from an injected corpus.
// It is safe for concurrent use.
type Generator struct {
	mu       sync.Mutex
	rnd      *rand.Rand
	corpus   corpus.Corpus
	capsPct  float64
	punctPct float64
	punctSet []rune
}

// Option configures a Generator.
type Option func(*Generator)

// WithSeed makes generation deterministic.
func WithSeed(seed int64) Option {
	return func(g *Generator) {
		g.rnd = rand.New(rand.NewSource(seed))
	}
}

// WithCaps sets the probability of a capitalized first letter per word.
func WithCaps(pct float64) Option {
	return func(g *Generator) {
		g.capsPct = pct
	}
}

// WithPunct sets the probability of trailing punctuation per word.
func WithPunct(pct float64, set []rune) Option {
	return func(g *Generator) {
		g.punctPct = pct
		g.punctSet = append([]rune(nil), set...)
	}
}

// New returns a Generator over c, seeded with the current time unless
// WithSeed is given. An unusable corpus is a configuration error.
func New(c corpus.Corpus, opts ...Option) (*Generator, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid corpus: %w", err)
	}
	g := &Generator{
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
		corpus: corpus.Corpus{
			Words:  append([]string(nil), c.Words...),
			Quotes: append([]corpus.Quote(nil), c.Quotes...),
		},
	}
	for _, opt := range opts {
		opt(g)
	}
	for _, r := range g.punctSet {
		if unicode.IsSpace(r) {
			return nil, fmt.Errorf("punctuation set must not contain whitespace, got %q", r)
		}
	}
	return g, nil
}

// Generate returns the ordered target words for a session.
func (g *Generator) Generate(cfg model.TestConfig) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	switch cfg.Mode {
	case model.ModeWords:
		count := cfg.Words
		if count <= 0 {
			count = DefaultWordCount
		}
		return g.randomWords(count), nil
	case model.ModeTime:
		return g.randomWords(TimePoolSize), nil
	case model.ModeQuote:
		return g.pickQuote(cfg.QuoteID).Words(), nil
	default:
		return nil, fmt.Errorf("unknown mode %q", cfg.Mode)
	}
}

// pickQuote returns the quote with id, or a random one when id is unset or
// unknown.
func (g *Generator) pickQuote(id int) corpus.Quote {
	if id > 0 {
		if q, ok := g.corpus.Quote(id); ok {
			return q
		}
	}
	return g.corpus.Quotes[g.rnd.Intn(len(g.corpus.Quotes))]
}

// randomWords selects words uniformly and applies caps/punctuation rules.
func (g *Generator) randomWords(count int) []string {
	words := g.corpus.Words
	result := make([]string, 0, count)
	for i := 0; i < count; i++ {
		word := words[g.rnd.Intn(len(words))]
		word = applyCaps(g.rnd, word, g.capsPct)
		word = applyPunct(g.rnd, word, g.punctPct, g.punctSet)
		result = append(result, word)
	}
	return result
}

func applyCaps(rnd *rand.Rand, word string, capsPct float64) string {
	if capsPct <= 0 {
		return word
	}
	if rnd.Float64() > capsPct {
		return word
	}
	runes := []rune(word)
	if len(runes) == 0 {
		return word
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func applyPunct(rnd *rand.Rand, word string, punctPct float64, punctSet []rune) string {
	if punctPct <= 0 || len(punctSet) == 0 {
		return word
	}
	if rnd.Float64() > punctPct {
		return word
	}
	punct := punctSet[rnd.Intn(len(punctSet))]
	return word + string(punct)
}
