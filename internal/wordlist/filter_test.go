package wordlist

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFilterEnglishASCII(t *testing.T) {
	filter := FilterForLang("en")
	if !filter("hello") {
		t.Fatalf("expected hello to pass english filter")
	}
	for _, word := range []string{"résumé", "naïve", "don’t", "co-op"} {
		if filter(word) {
			t.Fatalf("expected %q to be rejected", word)
		}
	}
}

func TestTypeableRejectsSeparators(t *testing.T) {
	for _, word := range []string{"", "two words", "tab\there", "bell\a"} {
		if Typeable(word) {
			t.Fatalf("expected %q to be rejected", word)
		}
	}
	for _, word := range []string{"naïve", "co-op", "Don't"} {
		if !Typeable(word) {
			t.Fatalf("expected %q to be kept", word)
		}
	}
}

func TestReadWordsSkipsBlankAndFiltered(t *testing.T) {
	words, err := ReadWords(strings.NewReader("alpha\n\n  beta  \nGamma\n"), FilterForLang("en"))
	if err != nil {
		t.Fatalf("read words: %v", err)
	}
	if len(words) != 2 || words[0] != "alpha" || words[1] != "beta" {
		t.Fatalf("unexpected words: %v", words)
	}
}

func TestLoadWordsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.txt")
	if err := os.WriteFile(path, []byte("\n \n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadWords(path, nil); err == nil {
		t.Fatalf("expected error for empty word list")
	}
}
