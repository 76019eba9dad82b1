package core

import (
	"reflect"
	"testing"
)

func TestSplitDebtors(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"EJS", []string{"E", "J", "S"}},
		{"E, J, S", []string{"E", "J", "S"}},
		{"E,J,S", []string{"E", "J", "S"}},
		{"Tauchen", []string{"Tauchen"}},
		{"Tauchen, Emanuel", []string{"Tauchen", "Emanuel"}},
		{"", nil},
		{"  ", nil},
	}
	for i, tc := range cases {
		got := SplitDebtors(tc.in)
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("case %d (%q) expected %v, got %v", i, tc.in, tc.want, got)
		}
	}
}

func TestMatchDebtor(t *testing.T) {
	r := DefaultRoster()
	cases := []struct {
		token string
		code  string
		exact bool
	}{
		{"T", "T", true},
		{"t", "T", true},
		{"Tauchen", "T", false},
		{"emanuel", "E", false},
		{"Zico", "Z", false},  // guessed, off roster
		{"ágata", "Á", false}, // first letter is a full rune, not a byte
	}
	for i, tc := range cases {
		m := r.MatchDebtor(tc.token)
		if m.Code != tc.code || m.Exact != tc.exact {
			t.Fatalf("case %d (%q) expected (%s, %v), got (%s, %v)", i, tc.token, tc.code, tc.exact, m.Code, m.Exact)
		}
	}
}

func TestDecodeDebtors(t *testing.T) {
	r := DefaultRoster()

	codes, _ := r.DecodeDebtors([]string{"E", "J", "S"})
	if !reflect.DeepEqual(codes, []string{"E", "J", "S"}) {
		t.Fatalf("expected [E J S], got %v", codes)
	}

	// Duplicates collapse; result keeps roster order.
	codes, _ = r.DecodeDebtors([]string{"S", "E", "S", "Emanuel"})
	if !reflect.DeepEqual(codes, []string{"E", "S"}) {
		t.Fatalf("expected [E S], got %v", codes)
	}

	// Off-roster guesses are dropped from codes but reported in matches.
	codes, matches := r.DecodeDebtors([]string{"Zico"})
	if len(codes) != 0 {
		t.Fatalf("expected empty codes, got %v", codes)
	}
	if len(matches) != 1 || matches[0].Exact {
		t.Fatalf("expected one inexact match, got %v", matches)
	}
}

func TestMarkDebtors(t *testing.T) {
	r := DefaultRoster()
	marks := r.MarkDebtors([]string{"E", "J", "S"})
	want := []string{"", "x", "", "", "", "x", "x"}
	if !reflect.DeepEqual(marks.Flags, want) {
		t.Fatalf("expected %v, got %v", want, marks.Flags)
	}
	if marks.Count != 3 {
		t.Fatalf("expected count 3, got %d", marks.Count)
	}

	empty := r.MarkDebtors(nil)
	if empty.Count != 0 {
		t.Fatalf("expected count 0, got %d", empty.Count)
	}
	for i, f := range empty.Flags {
		if f != "" {
			t.Fatalf("flag %d expected empty, got %q", i, f)
		}
	}
}
