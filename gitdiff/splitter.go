// Package gitdiff splits unified patches into per-file change blobs using
// bluekeyes/go-gitdiff.
package gitdiff

import (
	"fmt"
	"io"
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"
	"github.com/fwojciec/triage"
)

// Compile-time interface verification.
var _ triage.PatchSplitter = (*Splitter)(nil)

// BinaryNote is the change text recorded for binary files.
const BinaryNote = "Binary files differ\n"

// Splitter converts a multi-file patch into a DiffBundle keyed by path.
type Splitter struct{}

// NewSplitter creates a new Splitter.
func NewSplitter() *Splitter {
	return &Splitter{}
}

// Split reads a patch and returns one change blob per file. Every line
// keeps its unified diff prefix, so a context line that starts with a
// marker character is still shown on both sides.
func (s *Splitter) Split(r io.Reader) (triage.DiffBundle, error) {
	files, _, err := gitdiff.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse patch: %w", err)
	}

	bundle := make(triage.DiffBundle, len(files))
	for _, f := range files {
		path := f.NewName
		if f.IsDelete || path == "" {
			path = f.OldName
		}
		if f.IsBinary {
			bundle[path] = triage.FileChange{Changes: BinaryNote}
			continue
		}
		var sb strings.Builder
		for _, frag := range f.TextFragments {
			writeFragment(&sb, frag)
		}
		bundle[path] = triage.FileChange{Changes: sb.String()}
	}
	return bundle, nil
}

func writeFragment(sb *strings.Builder, frag *gitdiff.TextFragment) {
	fmt.Fprintf(sb, "@@ -%d,%d +%d,%d @@", frag.OldPosition, frag.OldLines, frag.NewPosition, frag.NewLines)
	if frag.Comment != "" {
		sb.WriteString(" " + frag.Comment)
	}
	sb.WriteByte('\n')

	for _, l := range frag.Lines {
		switch l.Op {
		case gitdiff.OpAdd:
			sb.WriteString(triage.AddMarker)
		case gitdiff.OpDelete:
			sb.WriteString(triage.RemoveMarker)
		default:
			sb.WriteString(l.Op.String())
		}
		sb.WriteString(l.Line)
		if !strings.HasSuffix(l.Line, "\n") {
			sb.WriteByte('\n')
		}
	}
}
