package pattern

import (
	"strings"
	"sync"

	"github.com/mabhi256/xmx/internal/model"
)

var allVisibilities uint8 = 1<<len(model.AllVisibilities()) - 1

var modifierKeywords = []struct {
	name string
	flag model.Modifiers
}{
	{"static", model.AccStatic},
	{"abstract", model.AccAbstract},
	{"synchronized", model.AccSynchronized},
	{"native", model.AccNative},
	{"strictfp", model.AccStrict},
}

func lookupModifier(word string) (model.Modifiers, bool) {
	for _, m := range modifierKeywords {
		if m.name == word {
			return m.flag, true
		}
	}
	return 0, false
}

// MethodPattern is one alternative of a method pattern.
type MethodPattern struct {
	visibility uint8
	required   model.Modifiers
	forbidden  model.Modifiers
	returns    *TypePattern // nil matches any return type
	name       *NamePattern
	params     []*TypePattern
	anyParams  bool // no parameter list was given
	restParams bool // parameter list ends with "..."
}

func (p *MethodPattern) Matches(m model.MethodSpec) bool {
	if p.visibility&(1<<uint(m.Modifiers.Visibility())) == 0 {
		return false
	}
	if m.Modifiers&p.required != p.required || m.Modifiers&p.forbidden != 0 {
		return false
	}
	if p.returns != nil && !p.returns.Match(m.Return) {
		return false
	}
	if !p.name.Match(m.Name) {
		return false
	}
	if p.anyParams {
		return true
	}
	if len(m.Params) < len(p.params) || (!p.restParams && len(m.Params) != len(p.params)) {
		return false
	}
	for i, pp := range p.params {
		if !pp.Match(m.Params[i]) {
			return false
		}
	}
	return true
}

// String renders the pattern in canonical form; parsing the result yields
// an equivalent pattern.
func (p *MethodPattern) String() string {
	var parts []string

	if p.visibility != allVisibilities {
		parts = append(parts, visibilityString(p.visibility))
	}
	for _, m := range modifierKeywords {
		if p.required.Has(m.flag) {
			parts = append(parts, m.name)
		}
		if p.forbidden.Has(m.flag) {
			parts = append(parts, "!"+m.name)
		}
	}
	if p.returns != nil {
		parts = append(parts, p.returns.String())
	}

	name := p.name.String()
	if !p.anyParams {
		var params []string
		for _, pp := range p.params {
			params = append(params, pp.String())
		}
		if p.restParams {
			params = append(params, "...")
		}
		name += "(" + strings.Join(params, ", ") + ")"
	}
	parts = append(parts, name)

	return strings.Join(parts, " ")
}

func visibilityString(set uint8) string {
	var names []string
	var missing []string
	for _, v := range model.AllVisibilities() {
		if set&(1<<uint(v)) != 0 {
			names = append(names, v.String())
		} else {
			missing = append(missing, v.String())
		}
	}
	switch {
	case len(names) == 1:
		return names[0]
	case len(missing) == 1:
		return "!" + missing[0]
	default:
		return "{" + strings.Join(names, ",") + "}"
	}
}

// MethodMatcher is a compiled method pattern: a logical OR of its alternatives.
type MethodMatcher struct {
	alts []*MethodPattern
}

var methodCache sync.Map // string -> *MethodMatcher

// CompileMethod compiles a method pattern. Alternatives are separated by a
// top-level '|'.
func CompileMethod(s string) (*MethodMatcher, error) {
	if cached, ok := methodCache.Load(s); ok {
		return cached.(*MethodMatcher), nil
	}

	subs, err := splitAlternatives(s)
	if err != nil {
		return nil, err
	}

	m := &MethodMatcher{}
	for _, sub := range subs {
		alt, err := parseMethodPattern(s, sub)
		if err != nil {
			return nil, err
		}
		m.alts = append(m.alts, alt)
	}

	actual, _ := methodCache.LoadOrStore(s, m)
	return actual.(*MethodMatcher), nil
}

func (m *MethodMatcher) Matches(spec model.MethodSpec) bool {
	for _, alt := range m.alts {
		if alt.Matches(spec) {
			return true
		}
	}
	return false
}

func (m *MethodMatcher) Patterns() []*MethodPattern {
	return m.alts
}

func (m *MethodMatcher) String() string {
	parts := make([]string, len(m.alts))
	for i, alt := range m.alts {
		parts[i] = alt.String()
	}
	return strings.Join(parts, " | ")
}

// splitAlternatives splits on '|' outside of quotes, brackets and anchored
// regular expressions.
func splitAlternatives(s string) ([]string, error) {
	var subs []string
	depth := 0
	inQuote := false
	start := 0

	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '"':
			inQuote = !inQuote
		case inQuote:
		case c == '^' && startsToken(s, i):
			if end := regexEnd(s, i); end > 0 {
				i = end - 1
			}
		case strings.IndexByte("({[<", c) >= 0:
			depth++
		case strings.IndexByte(")}]>", c) >= 0:
			depth--
		case c == '|' && depth == 0:
			subs = append(subs, s[start:i])
			start = i + 1
		}
	}
	subs = append(subs, s[start:])

	for _, sub := range subs {
		if strings.TrimSpace(sub) == "" {
			return nil, parseError(s, "", "empty method pattern alternative")
		}
	}
	return subs, nil
}

func startsToken(s string, i int) bool {
	if i == 0 {
		return true
	}
	return strings.IndexByte(" \t\n(,|", s[i-1]) >= 0
}

// methodParser parses a single alternative. Grammar:
//
//	[visibility] {['!'] modifier} [returnType] name ['(' [param {',' param}] ')']
//	visibility := vis | '!' vis | ['!'] '{' vis {',' vis} '}'
//	param      := type ['...'] [boundName] | '...'
type methodParser struct {
	pattern string
	input   string
	l       *Lexer

	curToken  Token
	peekToken Token
}

func parseMethodPattern(pattern, sub string) (*MethodPattern, error) {
	trimmed := strings.TrimSpace(sub)
	if end := regexEnd(trimmed, 0); strings.HasPrefix(trimmed, "^") && (end < 0 || end == len(trimmed)) {
		name, err := CompileName(trimmed)
		if err != nil {
			return nil, rebase(err, pattern)
		}
		return &MethodPattern{visibility: allVisibilities, name: name, anyParams: true}, nil
	}

	p := &methodParser{pattern: pattern, input: trimmed, l: NewLexer(trimmed)}
	p.nextToken()
	p.nextToken()
	return p.parse()
}

func rebase(err error, pattern string) error {
	if pe, ok := err.(*ConfigParseError); ok {
		pe.Pattern = pattern
	}
	return err
}

func (p *methodParser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

func (p *methodParser) curTokenIs(t TokenType) bool {
	return p.curToken.Type == t
}

func (p *methodParser) errorAt(tok Token, format string, args ...any) error {
	offending := tok.Literal
	if offending == "" && tok.Position < len(p.input) {
		offending = p.input[tok.Position:]
	}
	return parseError(p.pattern, offending, format, args...)
}

func (p *methodParser) parse() (*MethodPattern, error) {
	mp := &MethodPattern{visibility: allVisibilities}

	vis, err := p.parseVisibility()
	if err != nil {
		return nil, err
	}
	mp.visibility = vis

	if err := p.parseModifiers(mp); err != nil {
		return nil, err
	}

	var refs []typeRef
	for p.curTokenIs(WORD) || p.curTokenIs(STRING) || p.curTokenIs(REGEX) {
		ref, err := p.parseTypeRef()
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}

	switch len(refs) {
	case 0:
		return nil, p.errorAt(p.curToken, "missing method name")
	case 1:
	case 2:
		ret, err := refs[0].compile(p.pattern)
		if err != nil {
			return nil, err
		}
		mp.returns = ret
	default:
		return nil, p.errorAt(refs[2].tok, "unexpected type or name")
	}

	nameRef := refs[len(refs)-1]
	if nameRef.dims > 0 {
		return nil, p.errorAt(nameRef.tok, "method name cannot have array suffix")
	}
	name, err := CompileName(nameRef.tok.Literal)
	if err != nil {
		return nil, rebase(err, p.pattern)
	}
	mp.name = name

	switch {
	case p.curTokenIs(EOF):
		mp.anyParams = true
		return mp, nil
	case p.curTokenIs(LPAREN):
		if err := p.parseParams(mp); err != nil {
			return nil, err
		}
	default:
		return nil, p.errorAt(p.curToken, "unexpected token %s", p.curToken.Type)
	}

	if !p.curTokenIs(EOF) {
		return nil, p.errorAt(p.curToken, "unexpected text after parameter list")
	}
	return mp, nil
}

func (p *methodParser) parseVisibility() (uint8, error) {
	negated := false
	if p.curTokenIs(BANG) {
		switch {
		case p.peekToken.Type == LBRACE:
			negated = true
			p.nextToken()
		case p.peekToken.Type == WORD && isVisibility(p.peekToken.Literal):
			negated = true
			p.nextToken()
		default:
			return allVisibilities, nil
		}
	}

	var set uint8
	start := p.curToken
	switch {
	case p.curTokenIs(WORD) && isVisibility(p.curToken.Literal):
		v, _ := model.ParseVisibility(p.curToken.Literal)
		set = 1 << uint(v)
		p.nextToken()
	case p.curTokenIs(LBRACE):
		p.nextToken()
		for {
			if !p.curTokenIs(WORD) || !isVisibility(p.curToken.Literal) {
				return 0, p.errorAt(p.curToken, "expected visibility keyword")
			}
			v, _ := model.ParseVisibility(p.curToken.Literal)
			set |= 1 << uint(v)
			p.nextToken()
			if p.curTokenIs(RBRACE) {
				p.nextToken()
				break
			}
			if !p.curTokenIs(COMMA) {
				return 0, p.errorAt(p.curToken, "expected ',' or '}' in visibility set")
			}
			p.nextToken()
		}
	default:
		return allVisibilities, nil
	}

	if negated {
		set = allVisibilities &^ set
		if set == 0 {
			return 0, p.errorAt(start, "negated visibility set excludes every visibility")
		}
	}
	return set, nil
}

func isVisibility(word string) bool {
	_, ok := model.ParseVisibility(word)
	return ok
}

func (p *methodParser) parseModifiers(mp *MethodPattern) error {
	for {
		negated := false
		tok := p.curToken
		if p.curTokenIs(BANG) {
			if p.peekToken.Type != WORD {
				return p.errorAt(p.curToken, "'!' must precede a modifier")
			}
			negated = true
			p.nextToken()
		}

		if !p.curTokenIs(WORD) {
			if negated {
				return p.errorAt(tok, "'!' must precede a modifier")
			}
			return nil
		}
		flag, ok := lookupModifier(p.curToken.Literal)
		if !ok {
			if negated {
				return p.errorAt(p.curToken, "unknown modifier")
			}
			return nil
		}

		if negated {
			mp.forbidden |= flag
		} else {
			mp.required |= flag
		}
		if mp.forbidden&mp.required != 0 {
			return p.errorAt(p.curToken, "modifier is both required and excluded")
		}
		p.nextToken()
	}
}

type typeRef struct {
	tok  Token
	dims int
}

func (r typeRef) compile(pattern string) (*TypePattern, error) {
	name, err := CompileName(r.tok.Literal)
	if err != nil {
		return nil, rebase(err, pattern)
	}
	return newTypePattern(name, r.dims), nil
}

func (p *methodParser) parseTypeRef() (typeRef, error) {
	ref := typeRef{tok: p.curToken}
	if p.curTokenIs(WORD) {
		if isVisibility(ref.tok.Literal) {
			return ref, p.errorAt(ref.tok, "misplaced visibility")
		}
		if _, ok := lookupModifier(ref.tok.Literal); ok {
			return ref, p.errorAt(ref.tok, "misplaced modifier")
		}
	}
	p.nextToken()

	if p.curTokenIs(LT) {
		if err := p.skipGenerics(); err != nil {
			return ref, err
		}
	}

	for p.curTokenIs(LBRACKET) {
		if p.peekToken.Type != RBRACKET {
			return ref, p.errorAt(p.curToken, "unbalanced '['")
		}
		p.nextToken()
		p.nextToken()
		ref.dims++
	}
	return ref, nil
}

// skipGenerics consumes a balanced <...> group; its content is ignored.
func (p *methodParser) skipGenerics() error {
	open := p.curToken
	depth := 0
	for {
		switch p.curToken.Type {
		case LT:
			depth++
		case GT:
			depth--
		case EOF, LPAREN, RPAREN:
			return p.errorAt(open, "unbalanced '<'")
		}
		p.nextToken()
		if depth == 0 {
			return nil
		}
	}
}

func (p *methodParser) parseParams(mp *MethodPattern) error {
	p.nextToken()
	if p.curTokenIs(RPAREN) {
		p.nextToken()
		return nil
	}

	for {
		if p.curTokenIs(ELLIPSIS) {
			mp.restParams = true
			p.nextToken()
			if !p.curTokenIs(RPAREN) {
				return p.errorAt(p.curToken, "'...' must be the last parameter")
			}
			p.nextToken()
			return nil
		}

		if !p.curTokenIs(WORD) && !p.curTokenIs(STRING) && !p.curTokenIs(REGEX) {
			return p.errorAt(p.curToken, "expected parameter type")
		}
		ref, err := p.parseTypeRef()
		if err != nil {
			return err
		}
		if p.curTokenIs(ELLIPSIS) {
			ref.dims++
			p.nextToken()
		}
		// bound parameter names are accepted and ignored
		if p.curTokenIs(WORD) {
			p.nextToken()
		}

		tp, err := ref.compile(p.pattern)
		if err != nil {
			return err
		}
		tp.exact = true
		mp.params = append(mp.params, tp)

		switch {
		case p.curTokenIs(COMMA):
			p.nextToken()
		case p.curTokenIs(RPAREN):
			p.nextToken()
			return nil
		default:
			return p.errorAt(p.curToken, "expected ',' or ')'")
		}
	}
}
