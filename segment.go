package triage

import "strings"

// Line markers recognized by Segment.
const (
	AddMarker    = "+"
	RemoveMarker = "-"
)

// DiffSegment holds the two sides of a change blob for side-by-side display.
type DiffSegment struct {
	Original []string
	Modified []string
}

// SideLine is one line of a segmented side.
type SideLine struct {
	Text    string
	Changed bool // true when the line carried a marker
}

// Segment splits a unified-diff-like blob into original and modified lines.
// Lines starting with "+" go to the modified side only and lines starting
// with "-" to the original side only, marker stripped. Every other line goes
// to both sides verbatim. Hunk headers are not interpreted.
func Segment(blob string) DiffSegment {
	original, modified := SegmentLines(blob)
	seg := DiffSegment{
		Original: make([]string, len(original)),
		Modified: make([]string, len(modified)),
	}
	for i, l := range original {
		seg.Original[i] = l.Text
	}
	for i, l := range modified {
		seg.Modified[i] = l.Text
	}
	return seg
}

// SegmentLines is Segment keeping track of which lines carried a marker.
func SegmentLines(blob string) (original, modified []SideLine) {
	original = []SideLine{}
	modified = []SideLine{}
	for _, line := range splitLines(blob) {
		switch {
		case strings.HasPrefix(line, AddMarker):
			modified = append(modified, SideLine{Text: line[len(AddMarker):], Changed: true})
		case strings.HasPrefix(line, RemoveMarker):
			original = append(original, SideLine{Text: line[len(RemoveMarker):], Changed: true})
		default:
			original = append(original, SideLine{Text: line})
			modified = append(modified, SideLine{Text: line})
		}
	}
	return original, modified
}

// CountChanges returns the number of added and removed lines in blob.
func CountChanges(blob string) (added, removed int) {
	for _, line := range splitLines(blob) {
		switch {
		case strings.HasPrefix(line, AddMarker):
			added++
		case strings.HasPrefix(line, RemoveMarker):
			removed++
		}
	}
	return added, removed
}

// splitLines splits on "\n". The empty remainder after a trailing newline
// is not a line.
func splitLines(blob string) []string {
	if blob == "" {
		return nil
	}
	lines := strings.Split(blob, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
