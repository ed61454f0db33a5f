package bubbletea_test

import (
	"testing"

	"github.com/fwojciec/triage/bubbletea"
	"github.com/stretchr/testify/assert"
)

func TestExpandTabs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		startCol int
		want     string
	}{
		{"no tabs", "return nil", 0, "return nil"},
		{"leading tab", "\treturn nil", 0, "        return nil"},
		{"tab after text aligns to stop", "if\tx", 0, "if      x"},
		{"two tabs", "\t\t}", 0, "                }"},
		{"start column shifts first stop", "\tx", 5, "   x"},
		{"start column on a stop", "\tx", 8, "        x"},
		{"wide rune counts two columns", "日\t.", 0, "日      ."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, bubbletea.ExpandTabs(tt.input, tt.startCol))
		})
	}
}
