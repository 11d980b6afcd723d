package pp

import (
	"fmt"
	"sort"
	"strings"
)

// PatchKind distinguishes whether a parameter occurrence in a macro's
// replacement list is substituted with its argument pre-expanded
// (Expand) or substituted verbatim because it sits next to a ## operator
// (Concat), per §4.4.
type PatchKind int

const (
	PatchExpand PatchKind = iota
	PatchConcat
)

// Patch records one parameter occurrence in a macro's replacement list
// along with how its argument must be substituted.
type Patch struct {
	Kind     PatchKind
	ArgIndex int
	Position int
}

// StrPatch records one parameter occurrence that must be replaced by the
// stringized spelling of its argument (the # operator), per §4.4.
type StrPatch struct {
	ArgIndex int
	Position int
}

// Macro is a macro table entry: either object-like (Params == nil) or
// function-like (Params != nil, possibly empty).
type Macro struct {
	Name       string
	Params     []string
	Variadic   bool
	VarargName string // only meaningful when Variadic
	Slots      []string // Params, plus VarargName appended when Variadic

	Value []Token

	Patch         []Patch // sorted descending by Position
	StrPatch      []StrPatch
	VarCommaPatch []int

	// Builtin, when non-nil, computes the expansion for a dynamic
	// predefined macro (__LINE__, __FILE__, __DATE__, __TIME__) from the
	// invoking token; Value and the patch lists are unused for it.
	Builtin func(invocation Token) []Token
}

// IsFunctionLike reports whether m takes an argument list.
func (m *Macro) IsFunctionLike() bool { return m.Params != nil }

// paramIndex finds name among m's parameter slots, searching from the
// last slot backward. A macro definition with duplicate parameter names
// is not diagnosed (mirroring the reference preprocessor this design is
// based on); the last matching slot wins, which only matters for
// ill-formed input in the first place.
func (m *Macro) paramIndex(name string) (int, bool) {
	for i := len(m.Slots) - 1; i >= 0; i-- {
		if m.Slots[i] == name {
			return i, true
		}
	}
	return 0, false
}

// MacroTable holds every macro currently defined.
type MacroTable struct {
	macros map[string]*Macro
}

// NewMacroTable returns an empty table seeded with nothing; predefined
// macros are installed by the Engine (§6), not here, since their values
// depend on invocation context (current file, current time).
func NewMacroTable() *MacroTable {
	return &MacroTable{macros: make(map[string]*Macro)}
}

// Define installs m, replacing any previous definition of the same name.
func (t *MacroTable) Define(m *Macro) {
	t.macros[m.Name] = m
}

// Undefine removes name from the table, if present.
func (t *MacroTable) Undefine(name string) {
	delete(t.macros, name)
}

// Lookup returns the macro named name, if defined.
func (t *MacroTable) Lookup(name string) (*Macro, bool) {
	m, ok := t.macros[name]
	return m, ok
}

// IsDefined reports whether name currently names a macro.
func (t *MacroTable) IsDefined(name string) bool {
	_, ok := t.macros[name]
	return ok
}

// stripHashHashWhitespace removes any Whitespace token immediately
// adjacent to a DoublePound token, per §4.9: "the spelling joined by ##
// must not include the whitespace that separated the operands in the
// definition."
func stripHashHashWhitespace(tokens []Token) []Token {
	out := make([]Token, 0, len(tokens))
	for i, tok := range tokens {
		if tok.Kind == Whitespace {
			prevIsHH := len(out) > 0 && out[len(out)-1].Kind == DoublePound
			nextIsHH := i+1 < len(tokens) && tokens[i+1].Kind == DoublePound
			if prevIsHH || nextIsHH {
				continue
			}
		}
		out = append(out, tok)
	}
	return out
}

// DefineFromDirective parses the tokens following "#define" (the macro
// name and everything after it on the logical line, not including the
// leading "#define" keyword itself) into a Macro. Non-fatal problems
// (such as "#" not followed by a parameter) are returned alongside a
// fully-built macro rather than aborting the definition.
func DefineFromDirective(tokens []Token) (*Macro, []error) {
	var diags []error
	if n := len(tokens); n > 0 && tokens[n-1].Kind == EOF {
		tokens = tokens[:n-1]
	}
	tokens = TrimWhitespace(tokens)
	if len(tokens) == 0 || tokens[0].Kind != Identifier {
		return nil, []error{fmt.Errorf("macro name missing")}
	}
	name := tokens[0].Value
	rest := tokens[1:]

	m := &Macro{Name: name}

	if len(rest) > 0 && rest[0].Kind == Punct && rest[0].Value == "(" {
		params, body, pdiags, err := parseParamList(rest[1:])
		diags = append(diags, pdiags...)
		if err != nil {
			return nil, append(diags, err)
		}
		m.Params = params.names
		if m.Params == nil {
			m.Params = []string{}
		}
		m.Variadic = params.variadic
		m.VarargName = params.varargName
		m.Slots = append(append([]string{}, m.Params...), extraSlot(params)...)
		m.Value = TrimWhitespace(body)
	} else {
		m.Value = TrimWhitespace(rest)
	}

	m.Value = stripHashHashWhitespace(m.Value)

	if m.IsFunctionLike() {
		pdiags := prescanMacro(m)
		diags = append(diags, pdiags...)
	}

	return m, diags
}

func extraSlot(p paramList) []string {
	if p.variadic {
		return []string{p.varargName}
	}
	return nil
}

type paramList struct {
	names      []string
	variadic   bool
	varargName string
}

// parseParamList parses a function-like macro's parameter list, having
// already consumed the opening '('. tokens begins right after it.
func parseParamList(tokens []Token) (paramList, []Token, []error, error) {
	var diags []error
	var p paramList

	i := 0
	n := len(tokens)
	for {
		i = SkipWhitespace(tokens, i)
		if i >= n {
			return p, nil, diags, fmt.Errorf("unterminated macro parameter list")
		}
		if tokens[i].Kind == Punct && tokens[i].Value == ")" {
			i++
			break
		}
		if tokens[i].Kind == Punct && tokens[i].Value == "..." {
			p.variadic = true
			p.varargName = "__VA_ARGS__"
			i = SkipWhitespace(tokens, i+1)
			if i >= n || tokens[i].Kind != Punct || tokens[i].Value != ")" {
				return p, nil, diags, fmt.Errorf("expected ')' after '...'")
			}
			i++
			break
		}
		if tokens[i].Kind != Identifier {
			return p, nil, diags, fmt.Errorf("expected parameter name, found %q", tokens[i].Value)
		}
		paramName := tokens[i].Value
		i = SkipWhitespace(tokens, i+1)
		if i < n && tokens[i].Kind == Punct && tokens[i].Value == "..." {
			// GNU named-variadic extension: "args..." binds the trailing
			// arguments to the given name instead of __VA_ARGS__.
			p.variadic = true
			p.varargName = paramName
			i = SkipWhitespace(tokens, i+1)
			if i >= n || tokens[i].Kind != Punct || tokens[i].Value != ")" {
				return p, nil, diags, fmt.Errorf("expected ')' after '...'")
			}
			i++
			break
		}
		p.names = append(p.names, paramName)
		if i < n && tokens[i].Kind == Punct && tokens[i].Value == "," {
			i++
			continue
		}
		if i < n && tokens[i].Kind == Punct && tokens[i].Value == ")" {
			i++
			break
		}
		return p, nil, diags, fmt.Errorf("expected ',' or ')' in macro parameter list")
	}
	return p, tokens[i:], diags, nil
}

// prescanMacro walks a function-like macro's replacement list once,
// classifying every parameter occurrence and recording the patch lists
// that substitution (§4.5) will later process. The ## tokens themselves
// are left in place: later pasting needs them to know which adjacent
// tokens to glue (see substitute.go), so prescan's job is purely to
// decide, for each parameter occurrence, whether its argument must be
// expanded before splicing or spliced verbatim.
func prescanMacro(m *Macro) []error {
	var diags []error
	value := m.Value
	out := make([]Token, 0, len(value))
	var patches []Patch
	var strPatches []StrPatch
	var varCommaPatch []int

	i := 0
	n := len(value)
	for i < n {
		tok := value[i]

		if tok.Kind == Pound {
			j := SkipWhitespace(value, i+1)
			if j < n && value[j].Kind == Identifier {
				if idx, ok := m.paramIndex(value[j].Value); ok {
					pos := len(out)
					strPatches = append(strPatches, StrPatch{ArgIndex: idx, Position: pos})
					out = append(out, value[j])
					i = j + 1
					continue
				}
			}
			diags = append(diags, fmt.Errorf("'#' is not followed by a macro parameter in %q", m.Name))
			out = append(out, tok)
			i++
			continue
		}

		if idx, ok := m.paramIndex(tok.Value); ok && tok.Kind == Identifier {
			prevIsConcat := len(out) > 0 && out[len(out)-1].Kind == DoublePound
			nextIsConcat := i+1 < n && value[i+1].Kind == DoublePound
			if prevIsConcat || nextIsConcat {
				if m.Variadic && idx == len(m.Slots)-1 && prevIsConcat && len(out) >= 2 &&
					out[len(out)-2].Kind == Punct && out[len(out)-2].Value == "," {
					varCommaPatch = append(varCommaPatch, len(out)-2)
					// The GNU ",##__VA_ARGS__" idiom never actually glues the
					// comma's spelling to the vararg's: it only ever elides the
					// comma when the vararg is empty. Mark this '##' so pasting
					// drops it without gluing either way.
					out[len(out)-1].Kind = gnuCommaPaste
				}
				pos := len(out)
				patches = append(patches, Patch{Kind: PatchConcat, ArgIndex: idx, Position: pos})
				out = append(out, tok)
				i++
				continue
			}
			pos := len(out)
			patches = append(patches, Patch{Kind: PatchExpand, ArgIndex: idx, Position: pos})
			out = append(out, tok)
			i++
			continue
		}

		out = append(out, tok)
		i++
	}

	sort.Slice(patches, func(a, b int) bool { return patches[a].Position > patches[b].Position })
	sort.Slice(strPatches, func(a, b int) bool { return strPatches[a].Position > strPatches[b].Position })
	sort.Slice(varCommaPatch, func(a, b int) bool { return varCommaPatch[a] > varCommaPatch[b] })

	m.Value = out
	m.Patch = patches
	m.StrPatch = strPatches
	m.VarCommaPatch = varCommaPatch
	return diags
}

// ApplyCmdlineDefines installs a batch of "-D" style definitions of the
// form "NAME", "NAME=VALUE", or "NAME(params)=VALUE" into t.
func ApplyCmdlineDefines(t *MacroTable, defines []string) []error {
	var errs []error
	for _, d := range defines {
		name, value, hasValue := strings.Cut(d, "=")
		if !hasValue {
			value = "1"
		}
		directive := name
		if strings.ContainsRune(name, '(') {
			// "NAME(params)=VALUE": keep the parameter list attached to
			// the name and append the value as the replacement list.
			directive = name + " " + value
		} else {
			directive = name + " " + value
		}
		lex := NewLexer(directive, "<command-line>")
		tokens := lex.AllTokens()
		m, diags := DefineFromDirective(tokens)
		for _, err := range diags {
			errs = append(errs, fmt.Errorf("-D%s: %w", d, err))
		}
		if m != nil {
			t.Define(m)
		}
	}
	return errs
}

// ApplyCmdlineUndefines removes every name in undefs from t.
func ApplyCmdlineUndefines(t *MacroTable, undefs []string) {
	for _, name := range undefs {
		t.Undefine(name)
	}
}
