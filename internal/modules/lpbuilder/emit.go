package lpbuilder

import (
	"fmt"
	"sort"
	"strings"
)

// lineWrapWidth is the §4.5 ~200 character wrap width for emitted lines.
const lineWrapWidth = 200

// EmitLP serializes p to the standard-format LP text. Required sections
// (Maximize, Subject To, Bounds, Binary, End) are always emitted in order,
// even when a section is empty, so a downstream solver never receives a
// malformed document (§4.5: "reject any emission missing one").
func (p *Problem) EmitLP() (string, error) {
	var b strings.Builder

	b.WriteString("Maximize\n")
	b.WriteString(wrapTerms(" obj:", objectiveTerms(p)))
	b.WriteString("\n")

	b.WriteString("Subject To\n")
	for _, c := range p.Constraints {
		line, err := emitConstraint(c)
		if err != nil {
			return "", err
		}
		b.WriteString(line)
	}

	b.WriteString("Bounds\n")
	for _, name := range p.VarNames {
		bound, ok := p.Bounds[name]
		if !ok {
			continue
		}
		b.WriteString(emitBound(name, bound))
	}

	b.WriteString("Binary\n")
	if len(p.BinaryVars) > 0 {
		b.WriteString(wrapNames(" ", p.BinaryVars))
	}

	b.WriteString("End\n")

	return b.String(), nil
}

// objectiveTerms renders the objective as "+coef varname" tokens in stable
// variable order. If the objective is entirely empty, a zero placeholder
// on the first variable is appended so the LP document never carries a
// degenerate Maximize section (§4.5).
func objectiveTerms(p *Problem) []string {
	var terms []string
	for _, name := range p.VarNames {
		coef, ok := p.Objective[name]
		if !ok || coef == 0 {
			continue
		}
		terms = append(terms, formatTerm(coef, name))
	}
	if len(terms) == 0 && len(p.VarNames) > 0 {
		terms = append(terms, formatTerm(0, p.VarNames[0]))
	}
	return terms
}

func formatTerm(coef float64, name string) string {
	if coef >= 0 {
		return fmt.Sprintf("+%.10g %s", coef, name)
	}
	return fmt.Sprintf("%.10g %s", coef, name)
}

// wrapTerms joins pre-formatted terms onto lines no wider than
// lineWrapWidth, with a leading label on the first line and indentation on
// continuation lines.
func wrapTerms(label string, terms []string) string {
	var b strings.Builder
	lineLen := len(label)
	b.WriteString(label)
	for _, term := range terms {
		sep := " "
		if lineLen+len(sep)+len(term) > lineWrapWidth {
			b.WriteString("\n  ")
			lineLen = 2
			sep = ""
		}
		b.WriteString(sep)
		b.WriteString(term)
		lineLen += len(sep) + len(term)
	}
	return b.String()
}

func wrapNames(label string, names []string) string {
	var b strings.Builder
	lineLen := len(label)
	b.WriteString(label)
	for _, n := range names {
		sep := " "
		if lineLen+len(sep)+len(n) > lineWrapWidth {
			b.WriteString("\n  ")
			lineLen = 2
			sep = ""
		}
		b.WriteString(sep)
		b.WriteString(n)
		lineLen += len(sep) + len(n)
	}
	b.WriteString("\n")
	return b.String()
}

// emitConstraint renders one constraint row as " name: term term ... sense rhs\n",
// wrapped at lineWrapWidth. Constraints with no terms are rejected: an
// empty row signals an assembly bug upstream, not a valid LP row.
func emitConstraint(c Constraint) (string, error) {
	if len(c.Terms) == 0 {
		return "", fmt.Errorf("constraint %q has no terms", c.Name)
	}

	names := make([]string, 0, len(c.Terms))
	for name := range c.Terms {
		names = append(names, name)
	}
	sort.Strings(names)

	terms := make([]string, 0, len(names))
	for _, name := range names {
		terms = append(terms, formatTerm(c.Terms[name], name))
	}

	label := fmt.Sprintf(" %s:", c.Name)
	body := wrapTerms(label, terms)
	return fmt.Sprintf("%s %s %.10g\n", body, c.Sense, c.RHS), nil
}

// emitBound renders one variable's bound line. Unbounded-above variables
// (the M slacks) use the "var >= lower" form instead of a closed range.
func emitBound(name string, b Bound) string {
	if b.NoUpper {
		return fmt.Sprintf(" %s >= %.10g\n", name, b.Lower)
	}
	return fmt.Sprintf(" %.10g <= %s <= %.10g\n", b.Lower, name, b.Upper)
}
