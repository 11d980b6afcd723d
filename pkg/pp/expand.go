package pp

// Expander performs macro expansion with recursion prevented by a
// per-token hide set (§4.6), generalizing the single shared recursion
// guard of earlier, simpler designs into Dave Prosser's "painting blue"
// algorithm: a token produced by expanding macro M carries every hide-set
// member of the token that triggered the expansion, plus M itself.
type Expander struct {
	Macros *MacroTable

	// Report, if set, is called whenever expansion itself produces a
	// diagnostic (currently: a function-like macro invoked with the
	// wrong number of arguments, §7's "Arity" diagnostic kind). Engine
	// wires this to its own report method so such failures reach
	// Diagnostics/ReturnCode instead of vanishing (including during #if
	// evaluation, which uses the Engine's Expander). Left nil, as most
	// tests leave it, such failures are silently tolerated: the macro
	// invocation just passes through unexpanded.
	Report func(sev Severity, source string, line int, msg string)
}

// NewExpander builds an Expander backed by macros.
func NewExpander(macros *MacroTable) *Expander {
	return &Expander{Macros: macros}
}

// Expand macro-expands tokens to a fixed point, rescanning expansion
// results in place exactly as §4.6 describes: the scan pointer is not
// advanced past a successful expansion, so the freshly produced tokens
// are themselves candidates for further expansion before anything after
// them is considered.
func (e *Expander) Expand(tokens []Token) []Token {
	return e.expandTokens(tokens)
}

// ExpandString lexes source as a single logical line and expands it,
// dropping the trailing EOF token. It exists for tests, where a whole
// fragment is expanded in isolation.
func (e *Expander) ExpandString(source string) []Token {
	lex := NewLexer(source, "<expand>")
	tokens := lex.AllTokens()
	if n := len(tokens); n > 0 && tokens[n-1].Kind == EOF {
		tokens = tokens[:n-1]
	}
	return e.Expand(tokens)
}

func (e *Expander) expandTokens(tokens []Token) []Token {
	result := make([]Token, 0, len(tokens))
	i := 0
	for i < len(tokens) {
		tok := tokens[i]

		if tok.Kind != Identifier {
			result = append(result, tok)
			i++
			continue
		}

		m, ok := e.Macros.Lookup(tok.Value)
		if !ok || tok.Hide.Contains(tok.Value) {
			result = append(result, tok)
			i++
			continue
		}

		if m.Builtin != nil {
			produced := m.Builtin(tok)
			for idx := range produced {
				produced[idx].Line = tok.Line
				produced[idx].Source = tok.Source
				produced[idx].Hide = tok.Hide.Add(m.Name)
			}
			result = append(result, produced...)
			i++
			continue
		}

		if !m.IsFunctionLike() {
			body := copyTokens(m.Value)
			for idx := range body {
				body[idx].Line = tok.Line
				body[idx].Source = tok.Source
				body[idx].Hide = body[idx].Hide.Union(tok.Hide).Add(m.Name)
			}
			tokens = spliceTokens(tokens, i, i+1, body)
			continue
		}

		j := SkipWhitespace(tokens, i+1)
		if j >= len(tokens) || tokens[j].Kind != Punct || tokens[j].Value != "(" {
			// A function-like macro name not followed by '(' is just an
			// identifier here (§4.6).
			result = append(result, tok)
			i++
			continue
		}

		rawArgs, next, ok := CollectArguments(tokens, j+1)
		if !ok {
			result = append(result, tok)
			i++
			continue
		}

		substituted, err := Substitute(m, rawArgs, e.expandTokens, tok.Line, tok.Source)
		if err != nil {
			if e.Report != nil {
				e.Report(SeverityError, tok.Source, tok.Line, err.Error())
			}
			result = append(result, tok)
			i++
			continue
		}
		for idx := range substituted {
			substituted[idx].Line = tok.Line
			substituted[idx].Source = tok.Source
			substituted[idx].Hide = substituted[idx].Hide.Union(tok.Hide).Add(m.Name)
		}
		tokens = spliceTokens(tokens, i, next, substituted)
	}
	return result
}

// spliceTokens returns a new slice with tokens[from:to] replaced by repl,
// leaving the input slice untouched.
func spliceTokens(tokens []Token, from, to int, repl []Token) []Token {
	out := make([]Token, 0, len(tokens)-(to-from)+len(repl))
	out = append(out, tokens[:from]...)
	out = append(out, repl...)
	return append(out, tokens[to:]...)
}
