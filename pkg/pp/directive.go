package pp

// directiveKeyword identifies which directive a line beginning with '#'
// spells, independent of whether it is currently being honored.
type directiveKeyword string

const (
	dirDefine  directiveKeyword = "define"
	dirUndef   directiveKeyword = "undef"
	dirInclude directiveKeyword = "include"
	dirIf      directiveKeyword = "if"
	dirIfdef   directiveKeyword = "ifdef"
	dirIfndef  directiveKeyword = "ifndef"
	dirElif    directiveKeyword = "elif"
	dirElse    directiveKeyword = "else"
	dirEndif   directiveKeyword = "endif"
	dirError   directiveKeyword = "error"
	dirWarning directiveKeyword = "warning"
	dirPragma  directiveKeyword = "pragma"
	dirLine    directiveKeyword = "line"
	dirEmpty   directiveKeyword = "" // a lone '#' on a line, a no-op
)

// conditionalKeywords always get dispatched, even in an inactive block,
// since the conditional stack itself must stay balanced regardless of
// whether its branches are emitting output (§4.8).
var conditionalKeywords = map[directiveKeyword]bool{
	dirIf: true, dirIfdef: true, dirIfndef: true,
	dirElif: true, dirElse: true, dirEndif: true,
}

// splitDirective takes the tokens of a logical line whose first non-
// whitespace token is '#' and returns the directive keyword (if any) and
// the remaining argument tokens, with the leading '#' and the keyword
// itself stripped.
func splitDirective(tokens []Token) (directiveKeyword, []Token) {
	i := SkipWhitespace(tokens, 0)
	// tokens[i] is the '#'.
	i = SkipWhitespace(tokens, i+1)
	if i >= len(tokens) {
		return dirEmpty, nil
	}
	if tokens[i].Kind != Identifier {
		return dirEmpty, tokens[i:]
	}
	kw := directiveKeyword(tokens[i].Value)
	rest := tokens[i+1:]
	switch kw {
	case dirDefine, dirUndef, dirInclude, dirIf, dirIfdef, dirIfndef,
		dirElif, dirElse, dirEndif, dirError, dirWarning, dirPragma, dirLine:
		return kw, rest
	default:
		return dirEmpty, tokens[i:]
	}
}
