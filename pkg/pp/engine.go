package pp

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"io"
)

// Engine is the preprocessor's public surface (§6): configure search
// paths and predefined macros, parse one or more files, then pull the
// resulting token stream or have it written out as text.
type Engine struct {
	Macros      *MacroTable
	Conditional *ConditionalStack
	Expander    *Expander
	Resolver    *IncludeResolver
	Trigraphs   bool
	LineMarkers bool

	Diagnostics []Diagnostic
	ReturnCode  int

	lines        []OutputLine
	tokenLineIdx int
	tokenIdx     int
}

// NewEngine returns an Engine with __FILE__, __LINE__, __DATE__, and
// __TIME__ already defined and line markers enabled.
func NewEngine() *Engine {
	macros := NewMacroTable()
	e := &Engine{
		Macros:      macros,
		Conditional: NewConditionalStack(),
		Resolver:    NewIncludeResolver(),
		LineMarkers: true,
	}
	e.Expander = NewExpander(macros)
	e.Expander.Report = e.report
	e.installBuiltins()
	return e
}

func (e *Engine) installBuiltins() {
	now := time.Now()
	dateStr := strconv.Quote(now.Format("Jan  2 2006"))
	timeStr := strconv.Quote(now.Format("15:04:05"))

	e.Macros.Define(&Macro{Name: "__LINE__", Builtin: func(tok Token) []Token {
		return []Token{NewToken(Integer, strconv.Itoa(tok.Line), tok.Line, tok.Source)}
	}})
	e.Macros.Define(&Macro{Name: "__FILE__", Builtin: func(tok Token) []Token {
		return []Token{NewToken(String, strconv.Quote(tok.Source), tok.Line, tok.Source)}
	}})
	e.Macros.Define(&Macro{Name: "__DATE__", Builtin: func(tok Token) []Token {
		return []Token{NewToken(String, dateStr, tok.Line, tok.Source)}
	}})
	e.Macros.Define(&Macro{Name: "__TIME__", Builtin: func(tok Token) []Token {
		return []Token{NewToken(String, timeStr, tok.Line, tok.Source)}
	}})
}

// AddPath appends dir to the ordered #include search path.
func (e *Engine) AddPath(dir string) {
	e.Resolver.AddPath(dir)
}

// Define installs a macro from its name and an optional replacement
// spelling ("" defines an empty-bodied macro, the equivalent of -DNAME
// with no "=value"). name may include a parenthesized parameter list to
// define a function-like macro, e.g. Define("MAX(a,b)", "((a)>(b)?(a):(b))").
func (e *Engine) Define(name, value string) error {
	directive := name
	if value != "" {
		directive = name + " " + value
	}
	lex := NewLexer(directive, "<command-line>")
	m, diags := DefineFromDirective(lex.AllTokens())
	for _, d := range diags {
		e.report(SeverityWarning, "<command-line>", 0, d.Error())
	}
	if m == nil {
		return diags[0]
	}
	e.Macros.Define(m)
	return nil
}

// Undef removes a macro definition, if any.
func (e *Engine) Undef(name string) {
	e.Macros.Undefine(name)
}

// Parse preprocesses filename, appending its output to the Engine's
// accumulated token stream.
func (e *Engine) Parse(filename string) error {
	content, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(filename)
	if err != nil {
		abs = filename
	}
	if err := e.Resolver.PushFile(abs); err != nil {
		return err
	}
	defer e.Resolver.PopFile()

	e.processContent(content, filename)

	if err := e.Conditional.CheckBalanced(); err != nil {
		e.report(SeverityError, filename, 0, err.Error())
	}
	return nil
}

// ParseString preprocesses source as if it were the contents of a file
// named name, without touching the filesystem. It exists for tests and
// other in-memory preprocessing.
func (e *Engine) ParseString(source, name string) error {
	if err := e.Resolver.PushFile(name); err != nil {
		return err
	}
	defer e.Resolver.PopFile()

	e.processContent([]byte(source), name)

	if err := e.Conditional.CheckBalanced(); err != nil {
		e.report(SeverityError, name, 0, err.Error())
	}
	return nil
}

// Token returns the next output token and true, or a zero Token and
// false once every accumulated line has been consumed.
func (e *Engine) Token() (Token, bool) {
	for e.tokenLineIdx < len(e.lines) {
		ol := &e.lines[e.tokenLineIdx]
		if e.tokenIdx < len(ol.Tokens) {
			t := ol.Tokens[e.tokenIdx]
			e.tokenIdx++
			return t, true
		}
		e.tokenLineIdx++
		e.tokenIdx = 0
	}
	return Token{}, false
}

// Lines returns every accumulated output line, for callers (such as the
// Writer) that want line-boundary information rather than a flat token
// stream.
func (e *Engine) Lines() []OutputLine {
	return e.lines
}

// Write formats everything parsed so far and writes it to w.
func (e *Engine) Write(w io.Writer) error {
	return NewWriter(e.LineMarkers).Write(w, e.lines)
}

func (e *Engine) report(sev Severity, source string, line int, msg string) {
	e.Diagnostics = append(e.Diagnostics, Diagnostic{Severity: sev, Source: source, Line: line, Message: msg})
	if sev == SeverityError {
		e.ReturnCode++
	}
}

// processContent runs the directive interpreter over one file's content,
// appending OutputLines to e.lines for every active, non-directive
// logical line.
func (e *Engine) processContent(content []byte, source string) {
	text := string(content)
	if e.Trigraphs {
		text = substituteTrigraphs(text)
	}
	lex := NewLexer(text, source)
	for {
		tokens, line, eof := readLogicalLine(lex)
		if len(tokens) > 0 {
			e.processLine(tokens, line, source)
		}
		if eof {
			return
		}
	}
}

// readLogicalLine collects the tokens of one logical line (already
// splice-joined by the Lexer, so a continued line is one call's worth of
// tokens). When the line is recognized mid-collection as "#include ...",
// it switches to Lexer.ScanHeaderName so that a <...> header spelling
// containing characters the generic tokenizer would otherwise
// misinterpret (a literal "//" in a path, for instance) is captured
// correctly.
func readLogicalLine(lex *Lexer) ([]Token, int, bool) {
	var toks []Token
	for {
		t := lex.NextToken()
		if t.Kind == EOF {
			return toks, t.Line, true
		}
		if t.Kind == Whitespace && t.HasNewline() {
			return toks, t.Line, false
		}
		toks = append(toks, t)
		if isIncludeDirectivePrefix(toks) {
			if hn, ok := lex.ScanHeaderName(); ok {
				toks = append(toks, hn)
			}
		}
	}
}

func isIncludeDirectivePrefix(toks []Token) bool {
	i := SkipWhitespace(toks, 0)
	if i >= len(toks) || toks[i].Kind != Pound {
		return false
	}
	j := SkipWhitespace(toks, i+1)
	if j >= len(toks) || toks[j].Kind != Identifier || toks[j].Value != "include" {
		return false
	}
	return j == len(toks)-1
}

func (e *Engine) processLine(tokens []Token, line int, source string) {
	i := SkipWhitespace(tokens, 0)
	if i < len(tokens) && tokens[i].Kind == Pound {
		kw, rest := splitDirective(tokens)
		e.processDirective(kw, rest, line, source)
		return
	}
	if !e.Conditional.IsActive() {
		return
	}
	expanded := e.Expander.Expand(tokens)
	e.lines = append(e.lines, OutputLine{Tokens: expanded, Line: line, Source: source})
}

func (e *Engine) processDirective(kw directiveKeyword, rest []Token, line int, source string) {
	active := e.Conditional.IsActive()
	if !conditionalKeywords[directiveKeyword(kw)] && !active {
		return
	}

	switch kw {
	case dirIf:
		if !active {
			e.Conditional.ProcessIf(active, false)
			return
		}
		val, err := EvaluateConstExpr(e.Expander, rest)
		if err != nil {
			e.report(SeverityError, source, line, err.Error())
			e.Conditional.ProcessIf(active, false)
			return
		}
		e.Conditional.ProcessIf(active, val != 0)

	case dirIfdef:
		name := firstIdentifier(rest)
		e.Conditional.ProcessIfdef(active, name != "" && e.Macros.IsDefined(name))

	case dirIfndef:
		name := firstIdentifier(rest)
		e.Conditional.ProcessIfndef(active, name != "" && e.Macros.IsDefined(name))

	case dirElif:
		val := false
		if e.Conditional.NeedsElifEval() {
			v, err := EvaluateConstExpr(e.Expander, rest)
			if err != nil {
				e.report(SeverityError, source, line, err.Error())
			} else {
				val = v != 0
			}
		}
		if err := e.Conditional.ProcessElif(val); err != nil {
			e.report(SeverityError, source, line, err.Error())
		}

	case dirElse:
		if err := e.Conditional.ProcessElse(); err != nil {
			e.report(SeverityError, source, line, err.Error())
		}

	case dirEndif:
		if err := e.Conditional.ProcessEndif(); err != nil {
			e.report(SeverityError, source, line, err.Error())
		}

	case dirDefine:
		m, diags := DefineFromDirective(rest)
		if m != nil {
			e.Macros.Define(m)
		}
		for _, d := range diags {
			e.report(SeverityWarning, source, line, d.Error())
		}

	case dirUndef:
		if name := firstIdentifier(rest); name != "" {
			e.Macros.Undefine(name)
		}

	case dirInclude:
		e.processInclude(rest, line, source)

	case dirError:
		e.report(SeverityError, source, line, "#error "+TokensToString(TrimWhitespace(rest)))

	case dirWarning:
		e.report(SeverityWarning, source, line, "#warning "+TokensToString(TrimWhitespace(rest)))

	case dirPragma:
		e.processPragma(rest, source)

	case dirLine, dirEmpty:
		// #line renumbering and a lone '#' are both no-ops here: neither
		// is exercised by the amalgamation use case this engine serves.
	}
}

func firstIdentifier(tokens []Token) string {
	i := SkipWhitespace(tokens, 0)
	if i < len(tokens) && tokens[i].Kind == Identifier {
		return tokens[i].Value
	}
	return ""
}

func (e *Engine) processInclude(rest []Token, line int, source string) {
	name, kind, ok := e.resolveIncludeTarget(rest)
	if !ok {
		e.report(SeverityError, source, line, "#include expects \"FILENAME\" or <FILENAME>")
		return
	}
	path, content, err := e.Resolver.Resolve(name, kind)
	if err != nil {
		e.report(SeverityError, source, line, err.Error())
		return
	}
	if e.Resolver.IsAlreadyIncluded(path) {
		return
	}
	if err := e.Resolver.PushFile(path); err != nil {
		e.report(SeverityError, source, line, err.Error())
		return
	}
	defer e.Resolver.PopFile()
	e.processContent(content, path)
}

// resolveIncludeTarget extracts the header name and form from a
// #include directive's argument tokens, handling both the literal
// <...>/"..." spellings (captured as a single HeaderName token by
// readLogicalLine) and the macro-expanded computed-include form (§4.10).
func (e *Engine) resolveIncludeTarget(rest []Token) (string, IncludeKind, bool) {
	trimmed := TrimWhitespace(rest)
	if len(trimmed) > 0 && trimmed[0].Kind == HeaderName {
		return stripHeaderDelimiters(trimmed[0].Value)
	}

	expanded := e.Expander.Expand(trimmed)
	text := TokensToString(filterWhitespace(expanded))
	lex := NewLexer(text, "<include>")
	if hn, ok := lex.ScanHeaderName(); ok {
		return stripHeaderDelimiters(hn.Value)
	}
	return "", 0, false
}

func stripHeaderDelimiters(v string) (string, IncludeKind, bool) {
	if len(v) < 2 {
		return "", 0, false
	}
	if strings.HasPrefix(v, "<") && strings.HasSuffix(v, ">") {
		return v[1 : len(v)-1], IncludeAngled, true
	}
	if strings.HasPrefix(v, "\"") && strings.HasSuffix(v, "\"") {
		return v[1 : len(v)-1], IncludeQuoted, true
	}
	return "", 0, false
}

func (e *Engine) processPragma(rest []Token, source string) {
	trimmed := TrimWhitespace(rest)
	if len(trimmed) > 0 && trimmed[0].Kind == Identifier && trimmed[0].Value == "once" {
		e.Resolver.MarkPragmaOnce(source)
	}
}
