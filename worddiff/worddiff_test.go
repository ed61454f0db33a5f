package worddiff_test

import (
	"strings"
	"testing"

	"github.com/fwojciec/triage"
	"github.com/fwojciec/triage/worddiff"
	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestDiffer_Tokenize(t *testing.T) {
	t.Parallel()

	d := worddiff.NewDiffer()

	assert.Equal(t, []string{"order", ",", " ", "err", " ", ":", "=", " ", "w", ".", "store", "(", "ctx", ")"},
		d.Tokenize("order, err := w.store(ctx)"))
	assert.Equal(t, []string{"\t", "retry_count", " ", "+", "=", " ", "42"}, d.Tokenize("\tretry_count += 42"))
	assert.Equal(t, []string{"zażółć", " ", "gęślą"}, d.Tokenize("zażółć gęślą"))
	assert.Nil(t, d.Tokenize(""))
}

func TestDiffer_Diff(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		old     string
		new     string
		wantOld []triage.WordSegment
		wantNew []triage.WordSegment
	}{
		{
			name:    "single word change",
			old:     "hello world",
			new:     "hello universe",
			wantOld: []triage.WordSegment{{Text: "hello "}, {Text: "world", Changed: true}},
			wantNew: []triage.WordSegment{{Text: "hello "}, {Text: "universe", Changed: true}},
		},
		{
			name:    "identical",
			old:     "return nil",
			new:     "return nil",
			wantOld: []triage.WordSegment{{Text: "return nil"}},
			wantNew: []triage.WordSegment{{Text: "return nil"}},
		},
		{
			name:    "completely different",
			old:     "abc",
			new:     "xyz",
			wantOld: []triage.WordSegment{{Text: "abc", Changed: true}},
			wantNew: []triage.WordSegment{{Text: "xyz", Changed: true}},
		},
		{
			name:    "change in the middle",
			old:     "const ttl = 24 * time.Hour",
			new:     "const ttl = 5 * time.Minute",
			wantOld: []triage.WordSegment{{Text: "const ttl = "}, {Text: "24", Changed: true}, {Text: " * time."}, {Text: "Hour", Changed: true}},
			wantNew: []triage.WordSegment{{Text: "const ttl = "}, {Text: "5", Changed: true}, {Text: " * time."}, {Text: "Minute", Changed: true}},
		},
		{
			name:    "insertion",
			old:     "foo(a)",
			new:     "foo(a, b)",
			wantOld: []triage.WordSegment{{Text: "foo(a)"}},
			wantNew: []triage.WordSegment{{Text: "foo(a"}, {Text: ", b", Changed: true}, {Text: ")"}},
		},
		{
			name:    "old empty",
			old:     "",
			new:     "added",
			wantOld: nil,
			wantNew: []triage.WordSegment{{Text: "added", Changed: true}},
		},
		{
			name:    "new empty",
			old:     "removed",
			new:     "",
			wantOld: []triage.WordSegment{{Text: "removed", Changed: true}},
			wantNew: nil,
		},
		{
			name: "both empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			gotOld, gotNew := worddiff.NewDiffer().Diff(tt.old, tt.new)

			assert.Equal(t, tt.wantOld, gotOld)
			assert.Equal(t, tt.wantNew, gotNew)
		})
	}
}

func join(segs []triage.WordSegment) string {
	var sb strings.Builder
	for _, s := range segs {
		sb.WriteString(s.Text)
	}
	return sb.String()
}

func TestDiffer_Diff_Properties(t *testing.T) {
	t.Parallel()

	line := rapid.StringMatching(`[a-z0-9 ().,=_+-]{0,30}`)

	rapid.Check(t, func(t *rapid.T) {
		old := line.Draw(t, "old")
		new := line.Draw(t, "new")

		oldSegs, newSegs := worddiff.NewDiffer().Diff(old, new)

		if join(oldSegs) != old {
			t.Fatalf("old segments %+v do not rebuild %q", oldSegs, old)
		}
		if join(newSegs) != new {
			t.Fatalf("new segments %+v do not rebuild %q", newSegs, new)
		}
		for _, segs := range [][]triage.WordSegment{oldSegs, newSegs} {
			for i := 1; i < len(segs); i++ {
				if segs[i].Changed == segs[i-1].Changed {
					t.Fatalf("adjacent segments share state: %+v", segs)
				}
			}
		}
	})
}
