package chroma

import (
	chromalib "github.com/alecthomas/chroma/v2"
	"github.com/fwojciec/triage"
)

// StyleFromPalette maps chroma token types to palette colors. Whole
// token categories share a color so lexer-specific subtypes are covered.
func StyleFromPalette(p triage.Palette) StyleFunc {
	fg := func(c triage.Color) triage.Style { return triage.Style{Foreground: string(c)} }
	bold := func(c triage.Color) triage.Style { return triage.Style{Foreground: string(c), Bold: true} }

	return func(tt chromalib.TokenType) triage.Style {
		switch {
		case tt == chromalib.KeywordType:
			return bold(p.Type)
		case tt.InCategory(chromalib.Keyword):
			return bold(p.Keyword)
		case tt.InCategory(chromalib.Comment):
			return fg(p.Comment)
		case tt.InSubCategory(chromalib.LiteralString):
			return fg(p.String)
		case tt.InSubCategory(chromalib.LiteralNumber):
			return fg(p.Number)
		case tt.InCategory(chromalib.Operator):
			return fg(p.Operator)
		case tt == chromalib.NameFunction, tt == chromalib.NameFunctionMagic:
			return fg(p.Function)
		case tt == chromalib.NameBuiltin, tt == chromalib.NameBuiltinPseudo, tt == chromalib.NameClass:
			return fg(p.Type)
		case tt == chromalib.NameConstant:
			return fg(p.Constant)
		case tt.InCategory(chromalib.Punctuation):
			return fg(p.Punctuation)
		default:
			return triage.Style{}
		}
	}
}
