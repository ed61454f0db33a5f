package chroma

import (
	"path/filepath"
	"strings"

	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/fwojciec/triage"
)

// Compile-time interface verification.
var _ triage.LanguageDetector = (*Detector)(nil)

// Detector maps file paths of suggested changes to chroma lexer names.
type Detector struct{}

// NewDetector creates a new Detector.
func NewDetector() *Detector {
	return &Detector{}
}

// DetectFromPath returns the lexer name matching the path's file name,
// or "" if none matches. Leading "a/" and "b/" are ignored.
func (d *Detector) DetectFromPath(path string) string {
	path = strings.TrimPrefix(strings.TrimPrefix(path, "a/"), "b/")
	if lexer := lexers.Match(filepath.Base(path)); lexer != nil {
		return lexer.Config().Name
	}
	return ""
}

// Detect prefers the path and falls back to analysing source, which
// catches extensionless scripts with a shebang.
func (d *Detector) Detect(path, source string) string {
	if lang := d.DetectFromPath(path); lang != "" {
		return lang
	}
	if source == "" {
		return ""
	}
	if lexer := lexers.Analyse(source); lexer != nil {
		return lexer.Config().Name
	}
	return ""
}
