package pp

// TrimWhitespace returns the tokens of in with leading and trailing
// Whitespace tokens removed. It is the shared primitive behind both macro
// argument collection (§4.6) and #define body trimming at definition
// time (§4.9).
func TrimWhitespace(in []Token) []Token {
	start := 0
	for start < len(in) && in[start].Kind == Whitespace {
		start++
	}
	end := len(in)
	for end > start && in[end-1].Kind == Whitespace {
		end--
	}
	return in[start:end]
}

// SkipWhitespace returns the first index at or after i in tokens whose
// token is not Whitespace, or len(tokens) if none remains.
func SkipWhitespace(tokens []Token, i int) int {
	for i < len(tokens) && tokens[i].Kind == Whitespace {
		i++
	}
	return i
}

// CollectArguments splits the tokens found between a function-like
// macro's invoking '(' and its matching ')' into per-parameter argument
// slices, honoring nested parentheses so that a comma inside a nested
// call is not mistaken for an argument separator. tokens[start] must be
// the first token after the opening '('. It returns the arguments found
// and the index of the first token after the matching ')'.
func CollectArguments(tokens []Token, start int) (args [][]Token, next int, ok bool) {
	depth := 0
	argStart := start
	i := start
	for i < len(tokens) {
		switch tokens[i].Kind {
		case Punct:
			switch tokens[i].Value {
			case "(":
				depth++
			case ")":
				if depth == 0 {
					args = append(args, TrimWhitespace(tokens[argStart:i]))
					return args, i + 1, true
				}
				depth--
			case ",":
				if depth == 0 {
					args = append(args, TrimWhitespace(tokens[argStart:i]))
					argStart = i + 1
				}
			}
		}
		i++
	}
	return nil, start, false
}

// copyTokens returns a deep-enough copy of tokens (each Token value is
// copied; Value and Hide are themselves immutable so this fully detaches
// the result from its source, per the "tokens are always copied, never
// aliased" invariant).
func copyTokens(tokens []Token) []Token {
	out := make([]Token, len(tokens))
	copy(out, tokens)
	return out
}
