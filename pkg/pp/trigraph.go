package pp

import "strings"

// trigraphs maps each standard trigraph sequence to its single-character
// replacement, per §4.1.
var trigraphs = map[byte]byte{
	'=':  '#',
	'/':  '\\',
	'\'': '^',
	'(':  '[',
	')':  ']',
	'!':  '|',
	'<':  '{',
	'>':  '}',
	'-':  '~',
}

// substituteTrigraphs performs a single left-to-right pass replacing every
// "??X" sequence whose X has an entry in trigraphs. The standard does not
// require iterating to a fixed point, and mainstream compilers don't
// either: a replacement's output is never rescanned for further trigraphs.
func substituteTrigraphs(src string) string {
	if !strings.Contains(src, "??") {
		return src
	}
	var b strings.Builder
	b.Grow(len(src))
	i := 0
	for i < len(src) {
		if i+2 < len(src) && src[i] == '?' && src[i+1] == '?' {
			if repl, ok := trigraphs[src[i+2]]; ok {
				b.WriteByte(repl)
				i += 3
				continue
			}
		}
		b.WriteByte(src[i])
		i++
	}
	return b.String()
}
