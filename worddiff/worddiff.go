// Package worddiff finds the changed words between a removed line and the
// added line that replaced it.
package worddiff

import (
	"unicode"
	"unicode/utf8"

	"github.com/fwojciec/triage"
)

// Compile-time interface verification.
var _ triage.WordDiffer = (*Differ)(nil)

// minSimilarity is the share of common tokens below which two lines are
// treated as a full replacement.
const minSimilarity = 0.4

// Differ computes word-level differences with a longest common
// subsequence over tokens.
type Differ struct{}

// NewDiffer creates a new Differ.
func NewDiffer() *Differ {
	return &Differ{}
}

// Tokenize splits s into words (letters, digits and underscores),
// whitespace runs and single other characters. Joining the tokens
// yields s.
func (d *Differ) Tokenize(s string) []string {
	var tokens []string
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		n := size
		if class := classOf(r); class != otherClass {
			for n < len(s) {
				next, w := utf8.DecodeRuneInString(s[n:])
				if classOf(next) != class {
					break
				}
				n += w
			}
		}
		tokens = append(tokens, s[:n])
		s = s[n:]
	}
	return tokens
}

type runeClass int

const (
	otherClass runeClass = iota
	wordClass
	spaceClass
)

func classOf(r rune) runeClass {
	switch {
	case r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r):
		return wordClass
	case unicode.IsSpace(r):
		return spaceClass
	default:
		return otherClass
	}
}

// Diff returns segments of old and new with Changed set on the parts
// that differ. Lines sharing too little are returned as one changed
// segment each.
func (d *Differ) Diff(old, new string) (oldSegs, newSegs []triage.WordSegment) {
	switch {
	case old == new:
		if old == "" {
			return nil, nil
		}
		seg := []triage.WordSegment{{Text: old}}
		return seg, []triage.WordSegment{{Text: new}}
	case old == "":
		return nil, []triage.WordSegment{{Text: new, Changed: true}}
	case new == "":
		return []triage.WordSegment{{Text: old, Changed: true}}, nil
	}

	a, b := d.Tokenize(old), d.Tokenize(new)
	if similarity(a, b) < minSimilarity {
		return []triage.WordSegment{{Text: old, Changed: true}},
			[]triage.WordSegment{{Text: new, Changed: true}}
	}

	keepA, keepB := commonTokens(a, b)
	return segments(a, keepA), segments(b, keepB)
}

// similarity is the Dice coefficient of the two token multisets.
func similarity(a, b []string) float64 {
	counts := make(map[string]int, len(a))
	for _, t := range a {
		counts[t]++
	}
	common := 0
	for _, t := range b {
		if counts[t] > 0 {
			counts[t]--
			common++
		}
	}
	return 2 * float64(common) / float64(len(a)+len(b))
}

// commonTokens marks the tokens of a and b that belong to their longest
// common subsequence. Shared prefixes and suffixes are matched directly.
func commonTokens(a, b []string) (keepA, keepB []bool) {
	keepA, keepB = make([]bool, len(a)), make([]bool, len(b))

	pre := 0
	for pre < len(a) && pre < len(b) && a[pre] == b[pre] {
		keepA[pre], keepB[pre] = true, true
		pre++
	}
	suf := 0
	for suf < len(a)-pre && suf < len(b)-pre && a[len(a)-1-suf] == b[len(b)-1-suf] {
		keepA[len(a)-1-suf], keepB[len(b)-1-suf] = true, true
		suf++
	}

	midA, midB := a[pre:len(a)-suf], b[pre:len(b)-suf]
	m, n := len(midA), len(midB)
	if m == 0 || n == 0 {
		return keepA, keepB
	}

	// lcs[i][j] is the LCS length of midA[i:] and midB[j:].
	lcs := make([][]int, m+1)
	for i := range lcs {
		lcs[i] = make([]int, n+1)
	}
	for i := m - 1; i >= 0; i-- {
		for j := n - 1; j >= 0; j-- {
			if midA[i] == midB[j] {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else {
				lcs[i][j] = max(lcs[i+1][j], lcs[i][j+1])
			}
		}
	}
	for i, j := 0, 0; i < m && j < n; {
		switch {
		case midA[i] == midB[j]:
			keepA[pre+i], keepB[pre+j] = true, true
			i++
			j++
		case lcs[i+1][j] >= lcs[i][j+1]:
			i++
		default:
			j++
		}
	}
	return keepA, keepB
}

// segments joins runs of tokens with the same changed state.
func segments(tokens []string, keep []bool) []triage.WordSegment {
	var segs []triage.WordSegment
	for i, tok := range tokens {
		changed := !keep[i]
		if last := len(segs) - 1; last >= 0 && segs[last].Changed == changed {
			segs[last].Text += tok
			continue
		}
		segs = append(segs, triage.WordSegment{Text: tok, Changed: changed})
	}
	return segs
}
