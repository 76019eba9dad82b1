package core

import (
	"strings"
	"unicode/utf8"
)

// Debtor input arrives in three shapes: an explicit list, a comma-joined
// string of codes or full names, or a run of concatenated uppercase letters
// ("EJS" = {E,J,S}).

// SplitDebtors breaks a raw debtor string into tokens. A string containing a
// comma splits on commas; a pure run of uppercase letters splits per letter;
// anything else is a single token.
func SplitDebtors(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if strings.Contains(s, ",") {
		var out []string
		for _, part := range strings.Split(s, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	if isUpperLetters(s) {
		out := make([]string, 0, len(s))
		for _, r := range s {
			out = append(out, string(r))
		}
		return out
	}
	return []string{s}
}

func isUpperLetters(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return len(s) > 0
}

// DebtorMatch is the outcome of mapping one token to a roster code. Exact is
// false when the first-letter heuristic was used, so callers can tell a
// confident match from a guess.
type DebtorMatch struct {
	Token string
	Code  string
	Exact bool
}

// MatchDebtor maps a token to a roster code. A token that already equals a
// roster code (case-insensitive) is an exact match; otherwise the uppercased
// first letter is taken as a best-effort guess ("Tauchen" -> T).
func (r Roster) MatchDebtor(token string) DebtorMatch {
	t := strings.TrimSpace(token)
	if t == "" {
		return DebtorMatch{Token: token}
	}
	up := strings.ToUpper(t)
	if r.Contains(up) {
		return DebtorMatch{Token: token, Code: up, Exact: true}
	}
	first, _ := utf8.DecodeRuneInString(up)
	return DebtorMatch{Token: token, Code: string(first)}
}

// DecodeDebtors maps tokens to deduplicated roster codes in roster order.
// Guessed codes that are not on the roster are dropped from the result but
// still reported in the matches, so validation upstream can reject a set
// that collapses to nothing.
func (r Roster) DecodeDebtors(tokens []string) (codes []string, matches []DebtorMatch) {
	seen := make(map[string]bool, len(r))
	for _, tok := range tokens {
		m := r.MatchDebtor(tok)
		if m.Code == "" {
			continue
		}
		matches = append(matches, m)
		if r.Contains(m.Code) {
			seen[m.Code] = true
		}
	}
	for _, p := range r {
		if seen[p.Code] {
			codes = append(codes, p.Code)
		}
	}
	return codes, matches
}

// DebtorMarks is one row's flag layout: a cell per roster participant in
// grid order, FlagSentinel where the participant owes, plus the count cell.
type DebtorMarks struct {
	Flags []string
	Count int
}

// MarkDebtors computes the flag cells for a record's debtor codes. Unmarked
// columns are explicit empty strings so an overwrite clears stale flags. An
// empty set marks nothing and counts zero; rejecting it is the codec's job.
func (r Roster) MarkDebtors(codes []string) DebtorMarks {
	set := make(map[string]bool, len(codes))
	for _, c := range codes {
		set[c] = true
	}
	marks := DebtorMarks{Flags: make([]string, len(r))}
	for i, p := range r {
		if set[p.Code] {
			marks.Flags[i] = FlagSentinel
			marks.Count++
		}
	}
	return marks
}
