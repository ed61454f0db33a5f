package triage

// Token represents a syntax-highlighted segment of code.
type Token struct {
	Text  string
	Style Style
}

// Style represents the visual styling for a token.
type Style struct {
	Foreground string // Hex color code or empty for default
	Bold       bool
}

// Tokenizer extracts syntax tokens from source code.
type Tokenizer interface {
	// Tokenize splits source into tokens for the given language.
	// Returns nil if the language is not supported.
	Tokenize(language, source string) []Token
}

// LineTokenizer tokenizes consecutive lines of one file together, so
// constructs spanning lines keep their styling.
type LineTokenizer interface {
	// TokenizeLines returns one token row per line, or nil if the
	// language is not supported.
	TokenizeLines(language string, lines []string) [][]Token
}

// LanguageDetector determines the programming language from a file path.
type LanguageDetector interface {
	// DetectFromPath returns the language name for path, or "" if unknown.
	// Accepts paths with or without "a/" or "b/" prefixes.
	DetectFromPath(path string) string
	// Detect is DetectFromPath falling back to the content of source.
	Detect(path, source string) string
}

// WordSegment is a portion of a line for word-level highlighting.
type WordSegment struct {
	Text    string
	Changed bool
}

// WordDiffer computes word-level differences between two lines.
type WordDiffer interface {
	Diff(old, new string) (oldSegs, newSegs []WordSegment)
}

// Clipboard provides copy-to-clipboard functionality.
type Clipboard interface {
	Copy(content string) error
}
