// Package chroma provides syntax highlighting using the chroma library.
package chroma

import (
	"errors"
	"strings"

	chromalib "github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/fwojciec/triage"
)

// Compile-time interface verification.
var (
	_ triage.Tokenizer     = (*Tokenizer)(nil)
	_ triage.LineTokenizer = (*Tokenizer)(nil)
)

// StyleFunc maps chroma token types to triage styles.
type StyleFunc func(chromalib.TokenType) triage.Style

// Tokenizer extracts syntax tokens using chroma.
type Tokenizer struct {
	styleFunc StyleFunc
}

// NewTokenizer creates a Tokenizer. Use StyleFromPalette to build
// styleFunc from a theme.
func NewTokenizer(styleFunc StyleFunc) (*Tokenizer, error) {
	if styleFunc == nil {
		return nil, errors.New("chroma: styleFunc cannot be nil")
	}
	return &Tokenizer{styleFunc: styleFunc}, nil
}

// Tokenize splits source into styled tokens. It returns nil for an
// unsupported language and an empty slice for empty source.
func (t *Tokenizer) Tokenize(language, source string) []triage.Token {
	if source == "" {
		return []triage.Token{}
	}
	return t.tokens(language, source)
}

// TokenizeLines tokenizes lines as one document, so constructs spanning
// lines keep their styling, and returns exactly one token row per line.
// It returns nil for an unsupported language.
func (t *Tokenizer) TokenizeLines(language string, lines []string) [][]triage.Token {
	if len(lines) == 0 {
		return [][]triage.Token{}
	}
	tokens := t.tokens(language, strings.Join(lines, "\n"))
	if tokens == nil {
		return nil
	}
	rows := splitTokensByLine(tokens)
	// Trailing empty lines produce no tokens.
	for len(rows) < len(lines) {
		rows = append(rows, nil)
	}
	return rows[:len(lines)]
}

func (t *Tokenizer) tokens(language, source string) []triage.Token {
	lexer := lexers.Get(language)
	if lexer == nil {
		return nil
	}
	iterator, err := chromalib.Coalesce(lexer).Tokenise(nil, source)
	if err != nil {
		return nil
	}
	tokens := []triage.Token{}
	for tok := iterator(); tok != chromalib.EOF; tok = iterator() {
		tokens = append(tokens, triage.Token{Text: tok.Value, Style: t.styleFunc(tok.Type)})
	}
	return tokens
}

// splitTokensByLine breaks tokens at newlines into per-line rows.
func splitTokensByLine(tokens []triage.Token) [][]triage.Token {
	var rows [][]triage.Token
	var current []triage.Token
	for _, tok := range tokens {
		parts := strings.Split(tok.Text, "\n")
		for i, part := range parts {
			if i > 0 {
				rows = append(rows, current)
				current = nil
			}
			if part != "" {
				current = append(current, triage.Token{Text: part, Style: tok.Style})
			}
		}
	}
	return append(rows, current)
}
