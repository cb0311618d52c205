package service

import (
	"strings"

	"github.com/davidolu/cryptovest/internal/domain"
)

// Status machines for the three entity families. Every transition is
// one-shot: once an entity leaves pending/active it never moves again.
var (
	requestTransitions = map[string]map[string]struct{}{
		domain.RequestStatusPending: {
			domain.RequestStatusConfirmed: {},
			domain.RequestStatusRejected:  {},
		},
		domain.RequestStatusConfirmed: {},
		domain.RequestStatusRejected:  {},
	}

	entryTransitions = map[string]map[string]struct{}{
		domain.EntryStatusPending: {
			domain.EntryStatusCompleted: {},
			domain.EntryStatusFailed:    {},
		},
		domain.EntryStatusCompleted: {},
		domain.EntryStatusFailed:    {},
	}
)

func normalizeState(state string) string {
	return strings.ToLower(strings.TrimSpace(state))
}

func canTransition(transitions map[string]map[string]struct{}, current, next string) bool {
	nextStates, ok := transitions[normalizeState(current)]
	if !ok {
		return false
	}
	_, ok = nextStates[normalizeState(next)]
	return ok
}
