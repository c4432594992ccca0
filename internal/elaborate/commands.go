package elaborate

import (
	"fmt"

	"github.com/dragonhatcher/watson/internal/parsestate"
	"github.com/dragonhatcher/watson/internal/source"
)

// CommandKind discriminates the seven top-level commands dispatched by
// spec §4.H.
type CommandKind int

const (
	CmdModule CommandKind = iota
	CmdSyntaxCategory
	CmdSyntax
	CmdNotation
	CmdMacro
	CmdAxiom
	CmdTheorem
)

// PartSpec is a syntax/notation rule part as scanned from source, before
// category names are resolved against a registry.
type PartSpec struct {
	Kind       string // "literal", "keyword", "cat", "binder", "var"
	Text       string // literal/keyword spelling
	CatName    string // for "cat"
	Args       []string
	BinderName string // for "binder"
	RefersTo   string // for "var"
}

// MacroPartSpec is a macro pattern part as scanned from source.
type MacroPartSpec struct {
	Kind    string // "literal", "keyword", "sub", "bind"
	Text    string
	CatName string
	Bind    string
}

// TemplateSpec is one `[Name: Cat]` theorem-level template parameter.
type TemplateSpec struct {
	Name string
	Cat  string
}

// ExprSpec is an unparsed object-language expression: its raw source span,
// to be handed to package parser against a resolved category once the
// relevant registries can supply it.
type ExprSpec struct {
	Span source.Span
}

// Command is one fully-scanned top-level command.
type Command struct {
	Kind CommandKind
	Span source.Span

	Module string

	SyntaxCategory string

	RuleName  string
	RuleCat   string
	RulePrec  int
	RuleAssoc parsestate.Assoc
	RuleParts []PartSpec

	MacroName    string
	MacroPattern []MacroPartSpec
	MacroReplSpan source.Span

	TheoremName string
	IsAxiom     bool
	Templates   []TemplateSpec
	Hyps        []ExprSpec
	Conclusion  ExprSpec
	Tactic      ExprSpec
}

// ErrParse reports that no command could be scanned at a position — the
// command-level analogue of the object-grammar's "no derivation" failure.
type ErrParse struct {
	Src string
	Pos int
}

func (e *ErrParse) Error() string {
	return fmt.Sprintf("no command recognized at %s byte %d", e.Src, e.Pos)
}

func mkspan(src string, start, end int) source.Span {
	return source.Span{Source: src, StartByte: start, EndByte: end}
}

// NextCommand scans exactly one top-level command starting at pos,
// returning it and the position just past it. On failure it returns the
// position of the farthest token it managed to recognize, so the caller
// can skip to the next successful reparse of the command category (spec
// §5 cancellation model).
func NextCommand(srcName, text string, pos int) (Command, int, error) {
	start := skipTrivia(text, pos)
	if start >= len(text) {
		return Command{}, start, &ErrParse{Src: srcName, Pos: start}
	}
	kw := peekTok(text, start)
	if kw.Kind != TokIdent {
		return Command{}, start, &ErrParse{Src: srcName, Pos: start}
	}
	switch kw.Text {
	case "module":
		nameTok := peekTok(text, kw.End)
		return Command{Kind: CmdModule, Module: nameTok.Text, Span: mkspan(srcName, start, nameTok.End)}, nameTok.End, nil
	case "syntax_category":
		nameTok := peekTok(text, kw.End)
		return Command{Kind: CmdSyntaxCategory, SyntaxCategory: nameTok.Text, Span: mkspan(srcName, start, nameTok.End)}, nameTok.End, nil
	case "syntax":
		return scanSyntaxOrNotation(srcName, text, start, kw.End, CmdSyntax)
	case "notation":
		return scanSyntaxOrNotation(srcName, text, start, kw.End, CmdNotation)
	case "macro":
		return scanMacro(srcName, text, start, kw.End)
	case "axiom":
		return scanTheorem(srcName, text, start, kw.End, true)
	case "theorem":
		return scanTheorem(srcName, text, start, kw.End, false)
	}
	return Command{}, start, &ErrParse{Src: srcName, Pos: start}
}

func expect(text string, pos int, kind TokKind, spelling string) (Tok, error) {
	t := peekTok(text, pos)
	if t.Kind != kind || (spelling != "" && t.Text != spelling) {
		return t, fmt.Errorf("expected %q at byte %d, found %q", spelling, t.Pos, t.Text)
	}
	return t, nil
}

func scanSyntaxOrNotation(srcName, text string, cmdStart, pos int, kind CommandKind) (Command, int, error) {
	nameTok := peekTok(text, pos)
	pos = nameTok.End
	catTok := peekTok(text, pos)
	pos = catTok.End
	precTok := peekTok(text, pos)
	prec := 0
	if precTok.Kind == TokNumber {
		fmt.Sscanf(precTok.Text, "%d", &prec)
		pos = precTok.End
	}
	assocTok := peekTok(text, pos)
	assoc := parsestate.AssocNone
	switch assocTok.Text {
	case "left":
		assoc = parsestate.AssocLeft
		pos = assocTok.End
	case "right":
		assoc = parsestate.AssocRight
		pos = assocTok.End
	case "none":
		pos = assocTok.End
	}
	arrow, err := expect(text, pos, TokPunct, "::=")
	if err != nil {
		return Command{}, pos, err
	}
	pos = arrow.End
	parts, pos2, err := scanParts(text, pos, map[string]bool{"end": true})
	if err != nil {
		return Command{}, pos2, err
	}
	pos = pos2
	endTok, err := expect(text, pos, TokIdent, "end")
	if err != nil {
		return Command{}, pos, err
	}
	pos = endTok.End
	return Command{
		Kind: kind, Span: mkspan(srcName, cmdStart, pos),
		RuleName: nameTok.Text, RuleCat: catTok.Text, RulePrec: prec, RuleAssoc: assoc, RuleParts: parts,
	}, pos, nil
}

func scanParts(text string, pos int, terminators map[string]bool) ([]PartSpec, int, error) {
	var parts []PartSpec
	for {
		t := peekTok(text, pos)
		if t.Kind == TokEOF {
			return parts, pos, fmt.Errorf("unexpected end of input scanning parts")
		}
		if (t.Kind == TokIdent || t.Kind == TokPunct) && terminators[t.Text] {
			return parts, pos, nil
		}
		switch t.Kind {
		case TokString:
			parts = append(parts, PartSpec{Kind: "literal", Text: t.Text})
			pos = t.End
		case TokKeyword:
			parts = append(parts, PartSpec{Kind: "keyword", Text: t.Text})
			pos = t.End
		case TokPunct:
			switch t.Text {
			case "$":
				pos = t.End
				catTok := peekTok(text, pos)
				pos = catTok.End
				var args []string
				p2 := peekTok(text, pos)
				if p2.Text == "(" {
					pos = p2.End
					for {
						a := peekTok(text, pos)
						if a.Kind != TokIdent {
							break
						}
						args = append(args, a.Text)
						pos = a.End
						c := peekTok(text, pos)
						if c.Text == "," {
							pos = c.End
							continue
						}
						break
					}
					closeTok := peekTok(text, pos)
					if closeTok.Text == ")" {
						pos = closeTok.End
					}
				}
				parts = append(parts, PartSpec{Kind: "cat", CatName: catTok.Text, Args: args})
			case "%":
				pos = t.End
				nameTok := peekTok(text, pos)
				pos = nameTok.End
				parts = append(parts, PartSpec{Kind: "binder", BinderName: nameTok.Text})
			case "@":
				pos = t.End
				nameTok := peekTok(text, pos)
				pos = nameTok.End
				parts = append(parts, PartSpec{Kind: "var", RefersTo: nameTok.Text})
			default:
				return parts, pos, fmt.Errorf("unexpected token %q scanning parts at byte %d", t.Text, t.Pos)
			}
		default:
			return parts, pos, fmt.Errorf("unexpected token %q scanning parts at byte %d", t.Text, t.Pos)
		}
	}
}

func scanMacro(srcName, text string, cmdStart, pos int) (Command, int, error) {
	nameTok := peekTok(text, pos)
	pos = nameTok.End
	arrow, err := expect(text, pos, TokPunct, "::=")
	if err != nil {
		return Command{}, pos, err
	}
	pos = arrow.End

	var pattern []MacroPartSpec
	for {
		t := peekTok(text, pos)
		if t.Kind == TokPunct && t.Text == "=>" {
			pos = t.End
			break
		}
		switch t.Kind {
		case TokString:
			pattern = append(pattern, MacroPartSpec{Kind: "literal", Text: t.Text})
			pos = t.End
		case TokKeyword:
			pattern = append(pattern, MacroPartSpec{Kind: "keyword", Text: t.Text})
			pos = t.End
		case TokPunct:
			if t.Text != "$" {
				return Command{}, pos, fmt.Errorf("unexpected token %q in macro pattern at byte %d", t.Text, t.Pos)
			}
			pos = t.End
			nameTok2 := peekTok(text, pos)
			pos = nameTok2.End
			colon := peekTok(text, pos)
			if colon.Text == ":" {
				pos = colon.End
				catTok := peekTok(text, pos)
				pos = catTok.End
				pattern = append(pattern, MacroPartSpec{Kind: "bind", Bind: nameTok2.Text, CatName: catTok.Text})
			} else {
				pattern = append(pattern, MacroPartSpec{Kind: "sub", CatName: nameTok2.Text})
			}
		default:
			return Command{}, pos, fmt.Errorf("unexpected end of input in macro pattern")
		}
	}

	replStart := pos
	replEnd := findExprEnd(text, pos, map[string]bool{"end": true})
	pos = replEnd
	endTok, err := expect(text, pos, TokIdent, "end")
	if err != nil {
		return Command{}, pos, err
	}
	pos = endTok.End
	return Command{
		Kind: CmdMacro, Span: mkspan(srcName, cmdStart, pos),
		MacroName: nameTok.Text, MacroPattern: pattern, MacroReplSpan: mkspan(srcName, replStart, replEnd),
	}, pos, nil
}

func scanTheorem(srcName, text string, cmdStart, pos int, isAxiom bool) (Command, int, error) {
	nameTok := peekTok(text, pos)
	pos = nameTok.End

	var templates []TemplateSpec
	for {
		p := peekTok(text, pos)
		if p.Text != "[" {
			break
		}
		pos = p.End
		tname := peekTok(text, pos)
		pos = tname.End
		colonTok, err := expect(text, pos, TokPunct, ":")
		if err != nil {
			return Command{}, pos, err
		}
		pos = colonTok.End
		tcat := peekTok(text, pos)
		pos = tcat.End
		closeTok, err := expect(text, pos, TokPunct, "]")
		if err != nil {
			return Command{}, pos, err
		}
		pos = closeTok.End
		templates = append(templates, TemplateSpec{Name: tname.Text, Cat: tcat.Text})
	}

	colonTok, err := expect(text, pos, TokPunct, ":")
	if err != nil {
		return Command{}, pos, err
	}
	pos = colonTok.End

	var hyps []ExprSpec
	p := peekTok(text, pos)
	if p.Text == "(" {
		pos = p.End
		if peekTok(text, pos).Text != ")" {
			for {
				hStart := pos
				hEnd := findExprEnd(text, pos, map[string]bool{",": true, ")": true})
				hyps = append(hyps, ExprSpec{Span: mkspan(srcName, hStart, hEnd)})
				pos = hEnd
				c := peekTok(text, pos)
				if c.Text == "," {
					pos = c.End
					continue
				}
				break
			}
		}
		closeTok, err := expect(text, pos, TokPunct, ")")
		if err != nil {
			return Command{}, pos, err
		}
		pos = closeTok.End
	}

	barTok, err := expect(text, pos, TokPunct, "|-")
	if err != nil {
		return Command{}, pos, err
	}
	pos = barTok.End

	terminator := "end"
	if !isAxiom {
		terminator = "proof"
	}
	cStart := pos
	cEnd := findExprEnd(text, pos, map[string]bool{terminator: true})
	conclusion := ExprSpec{Span: mkspan(srcName, cStart, cEnd)}
	pos = cEnd

	if isAxiom {
		endTok, err := expect(text, pos, TokIdent, "end")
		if err != nil {
			return Command{}, pos, err
		}
		pos = endTok.End
		return Command{
			Kind: CmdAxiom, Span: mkspan(srcName, cmdStart, pos), TheoremName: nameTok.Text,
			IsAxiom: true, Templates: templates, Hyps: hyps, Conclusion: conclusion,
		}, pos, nil
	}

	proofTok, err := expect(text, pos, TokIdent, "proof")
	if err != nil {
		return Command{}, pos, err
	}
	pos = proofTok.End
	tStart := pos
	tEnd := findExprEnd(text, pos, map[string]bool{"qed": true})
	tactic := ExprSpec{Span: mkspan(srcName, tStart, tEnd)}
	pos = tEnd
	qedTok, err := expect(text, pos, TokIdent, "qed")
	if err != nil {
		return Command{}, pos, err
	}
	pos = qedTok.End
	return Command{
		Kind: CmdTheorem, Span: mkspan(srcName, cmdStart, pos), TheoremName: nameTok.Text,
		IsAxiom: false, Templates: templates, Hyps: hyps, Conclusion: conclusion, Tactic: tactic,
	}, pos, nil
}

// findExprEnd scans forward, tracking ( ) and [ ] nesting, for the first
// occurrence at depth 0 of a token whose spelling is in terminators, or of
// a `)` or `]` that closes nothing, or the end of input.
func findExprEnd(text string, pos int, terminators map[string]bool) int {
	depth := 0
	for {
		t := peekTok(text, pos)
		if t.Kind == TokEOF {
			return t.Pos
		}
		if t.Kind == TokPunct && (t.Text == "(" || t.Text == "[") {
			depth++
			pos = t.End
			continue
		}
		if t.Kind == TokPunct && (t.Text == ")" || t.Text == "]") {
			if depth == 0 {
				if terminators[t.Text] {
					return t.Pos
				}
				return t.Pos
			}
			depth--
			pos = t.End
			continue
		}
		if depth == 0 && terminators[t.Text] {
			return t.Pos
		}
		pos = t.End
	}
}
