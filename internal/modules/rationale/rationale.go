// Package rationale formats and parses the stable, machine-parseable
// rationale strings attached to every proposal, per §6's contract:
//
//	<CODE>: <Name> → <RepName> (<details>)
//
// where CODE is one of P0-P7 or RO. The name<->code mapping here is
// authoritative: P5-P7 are reserved by the waterfall heuristic's own
// comments but only P0-P5 and RO are ever produced by this implementation
// (§9's open question on P5-P7 leaves them parse-compatible, not
// necessarily produced).
package rationale

import "strings"

// Code is the priority prefix that classifies why a proposal was made.
type Code string

const (
	CodeP0 Code = "P0"
	CodeP1 Code = "P1"
	CodeP2 Code = "P2"
	CodeP3 Code = "P3"
	CodeP4 Code = "P4"
	CodeP5 Code = "P5"
	CodeP6 Code = "P6"
	CodeP7 Code = "P7"
	CodeRO Code = "RO"
)

// names is the authoritative code -> human name mapping. P6/P7 are kept
// for parse-compatibility with the source's code comments (§9) even though
// nothing in this implementation produces them.
var names = map[Code]string{
	CodeP0: "Manual or strategic lock",
	CodeP1: "Other stability lock",
	CodeP2: "Same region and current owner",
	CodeP3: "Same region",
	CodeP4: "Same current owner",
	CodeP5: "Best composite score within capacity",
	CodeP6: "Reserved",
	CodeP7: "Reserved",
	CodeRO: "Residual optimisation",
}

// Name returns the human-readable label for code, or "" if unrecognized.
func Name(code Code) string {
	return names[code]
}

// Valid reports whether code is one of the known P0-P7/RO codes.
func Valid(code Code) bool {
	_, ok := names[code]
	return ok
}

// Format renders a rationale string in the §6 contract shape:
// "<CODE>: <Name> → <RepName> (<details>)". If details is empty the
// trailing parenthetical is omitted.
func Format(code Code, repName, details string) string {
	name := Name(code)
	if name == "" {
		name = string(code)
	}
	if details == "" {
		return string(code) + ": " + name + " → " + repName
	}
	return string(code) + ": " + name + " → " + repName + " (" + details + ")"
}

// Parse extracts the leading code from a rationale string, tolerating an
// accidental double-prefix (e.g. "P4: P4: ..."). Returns ok=false if no
// recognized code prefixes the string.
func Parse(s string) (code Code, rest string, ok bool) {
	trimmed := strings.TrimSpace(s)
	c, rest, ok := splitPrefix(trimmed)
	if !ok {
		return "", s, false
	}
	// Tolerate a repeated prefix: "P4: P4: Same current owner → ..."
	if c2, rest2, ok2 := splitPrefix(strings.TrimSpace(rest)); ok2 && c2 == c {
		return c, rest2, true
	}
	return c, rest, true
}

func splitPrefix(s string) (Code, string, bool) {
	idx := strings.Index(s, ":")
	if idx < 0 {
		return "", s, false
	}
	candidate := Code(strings.TrimSpace(s[:idx]))
	if !Valid(candidate) {
		return "", s, false
	}
	return candidate, strings.TrimSpace(s[idx+1:]), true
}
