package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestTransitionsAreOneShot(t *testing.T) {
	cases := []struct {
		name    string
		current string
		next    string
		want    bool
	}{
		{"pending_to_confirmed", "pending", "confirmed", true},
		{"pending_to_rejected", "pending", "rejected", true},
		{"confirmed_is_terminal", "confirmed", "rejected", false},
		{"rejected_is_terminal", "rejected", "confirmed", false},
		{"pending_to_pending", "pending", "pending", false},
		{"unknown_state", "draft", "confirmed", false},
		{"case_and_whitespace_normalized", " Pending ", "CONFIRMED", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, canTransition(requestTransitions, tc.current, tc.next))
		})
	}
}

func TestEntryTransitionsAreOneShot(t *testing.T) {
	assert.True(t, canTransition(entryTransitions, "pending", "completed"))
	assert.True(t, canTransition(entryTransitions, "pending", "failed"))
	assert.False(t, canTransition(entryTransitions, "completed", "failed"))
	assert.False(t, canTransition(entryTransitions, "failed", "completed"))
}
