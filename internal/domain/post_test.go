package domain

import "testing"

func TestPostStatusCanTransition(t *testing.T) {
	tests := []struct {
		name        string
		from        PostStatus
		to          PostStatus
		allowReopen bool
		want        bool
	}{
		{"pending to verified", PostStatusPending, PostStatusVerified, false, true},
		{"pending to disputed", PostStatusPending, PostStatusDisputed, false, true},
		{"pending to resolved", PostStatusPending, PostStatusResolvedTrue, false, false},
		{"disputed to resolved true", PostStatusDisputed, PostStatusResolvedTrue, false, true},
		{"disputed to resolved false", PostStatusDisputed, PostStatusResolvedFalse, false, true},
		{"disputed to pending", PostStatusDisputed, PostStatusPending, false, false},
		{"verified strict", PostStatusVerified, PostStatusDisputed, false, false},
		{"verified reopen", PostStatusVerified, PostStatusDisputed, true, true},
		{"resolved is terminal", PostStatusResolvedTrue, PostStatusDisputed, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransition(tt.to, tt.allowReopen); got != tt.want {
				t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestVoteWeight(t *testing.T) {
	tests := []struct {
		reputation int
		want       int
	}{
		{0, 1},
		{99, 1},
		{100, 1},
		{250, 2},
		{1000, 10},
	}

	for _, tt := range tests {
		a := &Account{Reputation: tt.reputation}
		if got := a.VoteWeight(); got != tt.want {
			t.Errorf("VoteWeight(rep=%d) = %d, want %d", tt.reputation, got, tt.want)
		}
	}
}

func TestClampReputation(t *testing.T) {
	if got := ClampReputation(-20, 0, 1000); got != 0 {
		t.Errorf("expected 0, got %d", got)
	}
	if got := ClampReputation(1200, 0, 1000); got != 1000 {
		t.Errorf("expected 1000, got %d", got)
	}
	if got := ClampReputation(500, 0, 1000); got != 500 {
		t.Errorf("expected 500, got %d", got)
	}
}
