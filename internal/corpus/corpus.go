// Package corpus provides the built-in vocabulary and quote collection.
package corpus

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/verte-zerg/keyrace/internal/wordlist"
)

//go:embed words.txt
var defaultWords []byte

//go:embed quotes.toml
var defaultQuotes []byte

// Quote is one entry of the quote corpus.
type Quote struct {
	ID     int    `toml:"id"`
	Text   string `toml:"text"`
	Author string `toml:"author"`
}

// Words splits the quote into target words, keeping punctuation and casing.
func (q Quote) Words() []string {
	return strings.Fields(q.Text)
}

type quoteFile struct {
	Quotes []Quote `toml:"quote"`
}

// Corpus is immutable text source data handed to a generator.
type Corpus struct {
	Words  []string
	Quotes []Quote
}

// Default parses the embedded vocabulary and quotes. Every call returns
// fresh slices.
func Default() (Corpus, error) {
	words, err := wordlist.ReadWords(bytes.NewReader(defaultWords), nil)
	if err != nil {
		return Corpus{}, fmt.Errorf("failed to read built-in words: %w", err)
	}
	quotes, err := DecodeQuotes(defaultQuotes)
	if err != nil {
		return Corpus{}, fmt.Errorf("failed to read built-in quotes: %w", err)
	}
	c := Corpus{Words: words, Quotes: quotes}
	if err := c.Validate(); err != nil {
		return Corpus{}, err
	}
	return c, nil
}

// DecodeQuotes parses a TOML quote file with [[quote]] tables.
func DecodeQuotes(data []byte) ([]Quote, error) {
	var f quoteFile
	if _, err := toml.Decode(string(data), &f); err != nil {
		return nil, fmt.Errorf("failed to decode quotes: %w", err)
	}
	return f.Quotes, nil
}

// LoadQuotes reads a TOML quote file from disk.
func LoadQuotes(path string) ([]Quote, error) {
	var f quoteFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("failed to decode quotes: %w", err)
	}
	return f.Quotes, nil
}

// Validate reports configuration errors in the corpus.
func (c Corpus) Validate() error {
	if len(c.Words) == 0 {
		return fmt.Errorf("vocabulary is empty")
	}
	for _, w := range c.Words {
		if !wordlist.Typeable(w) {
			return fmt.Errorf("vocabulary word %q cannot be typed", w)
		}
	}
	if len(c.Quotes) == 0 {
		return fmt.Errorf("quote corpus is empty")
	}
	seen := make(map[int]struct{}, len(c.Quotes))
	for _, q := range c.Quotes {
		if q.ID <= 0 {
			return fmt.Errorf("quote id must be positive, got %d", q.ID)
		}
		if _, ok := seen[q.ID]; ok {
			return fmt.Errorf("duplicate quote id %d", q.ID)
		}
		seen[q.ID] = struct{}{}
		if len(q.Words()) == 0 {
			return fmt.Errorf("quote %d is empty", q.ID)
		}
	}
	return nil
}

// Quote looks up a quote by id.
func (c Corpus) Quote(id int) (Quote, bool) {
	for _, q := range c.Quotes {
		if q.ID == id {
			return q, true
		}
	}
	return Quote{}, false
}
