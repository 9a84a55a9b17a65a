package services

import (
	"testing"

	"github.com/google/uuid"
)

func TestIsAcceptable(t *testing.T) {
	a := uuid.New()
	b := uuid.New()
	c := uuid.New()

	cases := []struct {
		name    string
		desired []uuid.UUID
		offered uuid.UUID
		want    bool
	}{
		{name: "empty set accepts anything", desired: nil, offered: a, want: true},
		{name: "member accepted", desired: []uuid.UUID{a, b}, offered: b, want: true},
		{name: "non-member rejected", desired: []uuid.UUID{a, b}, offered: c, want: false},
		{name: "single member exact", desired: []uuid.UUID{c}, offered: c, want: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsAcceptable(tc.desired, tc.offered); got != tc.want {
				t.Fatalf("IsAcceptable: want=%v got=%v", tc.want, got)
			}
		})
	}
}

func TestDesiredSetMatchesHoldings(t *testing.T) {
	w := uuid.New()
	x := uuid.New()
	holdings := map[uuid.UUID]bool{w: true}

	// An empty desired set is open to any instance, so it counts as a match.
	if !DesiredSetMatchesHoldings(nil, holdings) {
		t.Fatalf("empty desired set should match any holdings")
	}
	if !DesiredSetMatchesHoldings([]uuid.UUID{x, w}, holdings) {
		t.Fatalf("desired set containing a held instance should match")
	}
	if DesiredSetMatchesHoldings([]uuid.UUID{x}, holdings) {
		t.Fatalf("desired set disjoint from holdings should not match")
	}
	if DesiredSetMatchesHoldings([]uuid.UUID{x}, map[uuid.UUID]bool{}) {
		t.Fatalf("non-empty desired set should not match empty holdings")
	}
}
