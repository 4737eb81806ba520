// Package tokenizer splits review text into words and provides stopword
// sets. Text is composed to Unicode NFC first so that a decomposed accent
// stays attached to its letter.
package tokenizer

import (
	"bufio"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

//go:embed stopwords_es.txt
var spanishRaw string

// Tokenize breaks text into words on every rune that is neither a letter,
// a digit nor a combining mark. Case and accents are preserved.
func Tokenize(text string) []string {
	text = norm.NFC.String(text)
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsMark(r)
	})
}

// Stopwords is a set of words to drop. It is built once and read-only after.
type Stopwords map[string]struct{}

// Contains reports whether word is in the set.
func (s Stopwords) Contains(word string) bool {
	_, ok := s[word]
	return ok
}

func (s Stopwords) Len() int {
	return len(s)
}

// Map returns a new set with fn applied to every word.
func (s Stopwords) Map(fn func(string) string) Stopwords {
	out := make(Stopwords, len(s))
	for w := range s {
		out[fn(w)] = struct{}{}
	}
	return out
}

// NewStopwords builds a set from a word list.
func NewStopwords(words ...string) Stopwords {
	s := make(Stopwords, len(words))
	for _, w := range words {
		s[w] = struct{}{}
	}
	return s
}

// Spanish returns the built-in Spanish stopword list.
func Spanish() Stopwords {
	s, _ := ReadStopwords(strings.NewReader(spanishRaw))
	return s
}

// ReadStopwords parses one word per line. Blank lines and lines starting
// with '#' are ignored.
func ReadStopwords(r io.Reader) (Stopwords, error) {
	s := make(Stopwords)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		s[line] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading stopwords: %w", err)
	}
	return s, nil
}

// LoadStopwords reads a stopword file. An empty path selects Spanish().
func LoadStopwords(path string) (Stopwords, error) {
	if path == "" {
		return Spanish(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening stopwords file: %w", err)
	}
	defer f.Close()
	s, err := ReadStopwords(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(s) == 0 {
		return nil, fmt.Errorf("stopwords file %s is empty", path)
	}
	return s, nil
}
