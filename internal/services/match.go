package services

import (
	"github.com/google/uuid"
)

// IsAcceptable decides whether a candidate instance satisfies a listing's
// acceptance criteria: an empty desired set accepts any instance, otherwise
// the candidate must be a member. The candidate's own listing state is
// irrelevant; the offering party only needs to own it.
func IsAcceptable(desired []uuid.UUID, offeredInstanceID uuid.UUID) bool {
	if len(desired) == 0 {
		return true
	}
	for _, id := range desired {
		if id == offeredInstanceID {
			return true
		}
	}
	return false
}

// DesiredSetMatchesHoldings reports whether a listing with the given desired
// set is satisfiable by at least one of the caller's holdings. An empty
// desired set counts as a match, since any held instance satisfies it.
func DesiredSetMatchesHoldings(desired []uuid.UUID, holdings map[uuid.UUID]bool) bool {
	if len(desired) == 0 {
		return true
	}
	for _, id := range desired {
		if holdings[id] {
			return true
		}
	}
	return false
}
