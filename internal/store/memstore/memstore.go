// Package memstore keeps the whole system of record in process memory. It
// implements the same store interfaces as the Postgres stores and applies a
// commit under one write lock, so a commit is all-or-nothing here too.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Harshitk-cp/truthstake/internal/domain"
	"github.com/Harshitk-cp/truthstake/internal/store"
	"github.com/google/uuid"
)

type voteKey struct {
	challengeID uuid.UUID
	voterID     uuid.UUID
}

type DB struct {
	mu sync.RWMutex

	clients     map[uuid.UUID]domain.Client
	accounts    map[uuid.UUID]domain.Account
	posts       map[uuid.UUID]domain.StakePost
	supports    []domain.SupportStake
	challenges  map[uuid.UUID]domain.Challenge
	votes       map[voteKey]domain.Vote
	resolutions map[uuid.UUID]domain.Resolution
	entries     []domain.LedgerEntry
	keys        map[string]struct{}
	events      []domain.DomainEvent

	entrySeq int64
	eventSeq int64
	now      func() time.Time
}

func New() *DB {
	return &DB{
		clients:     make(map[uuid.UUID]domain.Client),
		accounts:    make(map[uuid.UUID]domain.Account),
		posts:       make(map[uuid.UUID]domain.StakePost),
		challenges:  make(map[uuid.UUID]domain.Challenge),
		votes:       make(map[voteKey]domain.Vote),
		resolutions: make(map[uuid.UUID]domain.Resolution),
		keys:        make(map[string]struct{}),
		now:         time.Now,
	}
}

func (db *DB) Clients() *ClientStore         { return &ClientStore{db: db} }
func (db *DB) Accounts() *AccountStore       { return &AccountStore{db: db} }
func (db *DB) Posts() *PostStore             { return &PostStore{db: db} }
func (db *DB) Challenges() *ChallengeStore   { return &ChallengeStore{db: db} }
func (db *DB) Votes() *VoteStore             { return &VoteStore{db: db} }
func (db *DB) Resolutions() *ResolutionStore { return &ResolutionStore{db: db} }
func (db *DB) Entries() *EntryStore          { return &EntryStore{db: db} }
func (db *DB) Events() *EventStore           { return &EventStore{db: db} }
func (db *DB) Journal() *Journal             { return &Journal{db: db} }

// Ping always succeeds; it lets the health endpoint treat both storage
// drivers alike.
func (db *DB) Ping(ctx context.Context) error {
	return ctx.Err()
}

// ClientStore

type ClientStore struct {
	db *DB
}

func (s *ClientStore) Create(ctx context.Context, c *domain.Client) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, existing := range s.db.clients {
		if existing.APIKeyHash == c.APIKeyHash {
			return store.ErrConflict
		}
	}
	c.ID = uuid.New()
	c.CreatedAt = s.db.now()
	c.UpdatedAt = c.CreatedAt
	s.db.clients[c.ID] = *c
	return nil
}

func (s *ClientStore) GetByAPIKeyHash(ctx context.Context, apiKeyHash string) (*domain.Client, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	for _, c := range s.db.clients {
		if c.APIKeyHash == apiKeyHash {
			out := c
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

// AccountStore

type AccountStore struct {
	db *DB
}

func (s *AccountStore) Create(ctx context.Context, a *domain.Account) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if _, exists := s.db.accounts[a.ID]; exists {
		return store.ErrConflict
	}
	if a.ExternalAddress != "" {
		for _, existing := range s.db.accounts {
			if existing.ExternalAddress == a.ExternalAddress {
				return store.ErrConflict
			}
		}
	}
	a.CreatedAt = s.db.now()
	a.UpdatedAt = a.CreatedAt
	a.Version = 1
	s.db.accounts[a.ID] = *a
	return nil
}

func (s *AccountStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	a, ok := s.db.accounts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &a, nil
}

func (s *AccountStore) ListActive(ctx context.Context, afterID uuid.UUID, limit int) ([]domain.Account, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	after := afterID.String()
	var out []domain.Account
	for _, a := range s.db.accounts {
		if a.Active && a.ID.String() > after {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// PostStore

type PostStore struct {
	db *DB
}

func (s *PostStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.StakePost, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	p, ok := s.db.posts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *PostStore) ListByStatusBefore(ctx context.Context, status domain.PostStatus, before time.Time, limit int) ([]domain.StakePost, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	var out []domain.StakePost
	for _, p := range s.db.posts {
		if p.Status == status && p.CreatedAt.Before(before) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *PostStore) ListSupports(ctx context.Context, postID uuid.UUID) ([]domain.SupportStake, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	var out []domain.SupportStake
	for _, sup := range s.db.supports {
		if sup.PostID == postID {
			out = append(out, sup)
		}
	}
	return out, nil
}

// ChallengeStore

type ChallengeStore struct {
	db *DB
}

func (s *ChallengeStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Challenge, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	c, ok := s.db.challenges[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (s *ChallengeStore) list(match func(c domain.Challenge) bool, limit int) []domain.Challenge {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	var out []domain.Challenge
	for _, c := range s.db.challenges {
		if match(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *ChallengeStore) ListByPost(ctx context.Context, postID uuid.UUID) ([]domain.Challenge, error) {
	return s.list(func(c domain.Challenge) bool { return c.PostID == postID }, 0), nil
}

func (s *ChallengeStore) ListByChallenger(ctx context.Context, challengerID uuid.UUID) ([]domain.Challenge, error) {
	return s.list(func(c domain.Challenge) bool { return c.ChallengerID == challengerID }, 0), nil
}

func (s *ChallengeStore) HasActive(ctx context.Context, postID, challengerID uuid.UUID) (bool, error) {
	active := s.list(func(c domain.Challenge) bool {
		return c.PostID == postID && c.ChallengerID == challengerID && c.Active()
	}, 1)
	return len(active) > 0, nil
}

func (s *ChallengeStore) ListByStatus(ctx context.Context, status domain.ChallengeStatus, limit int) ([]domain.Challenge, error) {
	return s.list(func(c domain.Challenge) bool { return c.Status == status }, limit), nil
}

func (s *ChallengeStore) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Challenge, error) {
	return s.list(func(c domain.Challenge) bool {
		return c.Status == domain.ChallengeStatusAwaitingVotes && c.VotingClosed(now)
	}, limit), nil
}

// VoteStore

type VoteStore struct {
	db *DB
}

func (s *VoteStore) Get(ctx context.Context, challengeID, voterID uuid.UUID) (*domain.Vote, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	v, ok := s.db.votes[voteKey{challengeID, voterID}]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &v, nil
}

func (s *VoteStore) ListByChallenge(ctx context.Context, challengeID uuid.UUID) ([]domain.Vote, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	var out []domain.Vote
	for k, v := range s.db.votes {
		if k.challengeID == challengeID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *VoteStore) Tally(ctx context.Context, challengeID uuid.UUID) (domain.VoteTally, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	var t domain.VoteTally
	for k, v := range s.db.votes {
		if k.challengeID != challengeID {
			continue
		}
		if v.Agree {
			t.Agree += v.Weight
		} else {
			t.Disagree += v.Weight
		}
	}
	return t, nil
}

// ResolutionStore

type ResolutionStore struct {
	db *DB
}

func (s *ResolutionStore) GetByChallengeID(ctx context.Context, challengeID uuid.UUID) (*domain.Resolution, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	r, ok := s.db.resolutions[challengeID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &r, nil
}

// EntryStore

type EntryStore struct {
	db *DB
}

func (s *EntryStore) ListByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]domain.LedgerEntry, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	var out []domain.LedgerEntry
	for i := len(s.db.entries) - 1; i >= 0; i-- {
		e := s.db.entries[i]
		if e.AccountID != accountID {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *EntryStore) filter(match func(e domain.LedgerEntry) bool) []domain.LedgerEntry {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	var out []domain.LedgerEntry
	for _, e := range s.db.entries {
		if match(e) {
			out = append(out, e)
		}
	}
	return out
}

func (s *EntryStore) ListByChallenge(ctx context.Context, challengeID uuid.UUID) ([]domain.LedgerEntry, error) {
	return s.filter(func(e domain.LedgerEntry) bool {
		return e.ChallengeID != nil && *e.ChallengeID == challengeID
	}), nil
}

func (s *EntryStore) ListByPost(ctx context.Context, postID uuid.UUID) ([]domain.LedgerEntry, error) {
	return s.filter(func(e domain.LedgerEntry) bool {
		return e.PostID != nil && *e.PostID == postID
	}), nil
}

// EventStore

type EventStore struct {
	db *DB
}

func (s *EventStore) ListUndelivered(ctx context.Context, limit int) ([]domain.DomainEvent, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	var out []domain.DomainEvent
	for _, e := range s.db.events {
		if e.DeliveredAt != nil {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *EventStore) MarkDelivered(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	want := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	for i := range s.db.events {
		if _, ok := want[s.db.events[i].ID]; ok && s.db.events[i].DeliveredAt == nil {
			delivered := at
			s.db.events[i].DeliveredAt = &delivered
		}
	}
	return nil
}

func (s *EventStore) ListAfter(ctx context.Context, afterSeq int64, limit int) ([]domain.DomainEvent, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	var out []domain.DomainEvent
	for _, e := range s.db.events {
		if e.Seq <= afterSeq {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Journal

type Journal struct {
	db *DB
}

func (j *Journal) HasKey(ctx context.Context, key string) (bool, error) {
	j.db.mu.RLock()
	defer j.db.mu.RUnlock()
	_, ok := j.db.keys[key]
	return ok, nil
}

func (j *Journal) Commit(ctx context.Context, c *domain.Commit) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	db := j.db
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.validate(c); err != nil {
		return err
	}

	now := db.now()
	if c.Key != "" {
		db.keys[c.Key] = struct{}{}
	}
	for i := range c.Entries {
		db.entrySeq++
		c.Entries[i].Seq = db.entrySeq
		db.entries = append(db.entries, c.Entries[i])
	}
	for _, a := range c.Accounts {
		a.Version++
		a.UpdatedAt = now
		db.accounts[a.ID] = a
	}
	for _, p := range c.Posts {
		if existing, ok := db.posts[p.ID]; ok {
			p.CreatedAt = existing.CreatedAt
		}
		p.UpdatedAt = now
		db.posts[p.ID] = p
	}
	db.supports = append(db.supports, c.Supports...)
	for _, ch := range c.Challenges {
		db.challenges[ch.ID] = ch
	}
	for _, v := range c.Votes {
		db.votes[voteKey{v.ChallengeID, v.VoterID}] = v
	}
	if c.Resolution != nil {
		db.resolutions[c.Resolution.ChallengeID] = *c.Resolution
	}
	for i := range c.Events {
		db.eventSeq++
		c.Events[i].Seq = db.eventSeq
		db.events = append(db.events, c.Events[i])
	}
	return nil
}

// validate mirrors the constraints the Postgres schema enforces. Caller
// holds db.mu.
func (db *DB) validate(c *domain.Commit) error {
	if c.Key != "" {
		if _, ok := db.keys[c.Key]; ok {
			return store.ErrDuplicateKey
		}
	}
	for _, a := range c.Accounts {
		existing, ok := db.accounts[a.ID]
		if !ok {
			return store.ErrNotFound
		}
		if existing.Version != a.Version {
			return store.ErrStaleAccount
		}
	}
	for _, v := range c.Votes {
		if _, ok := db.votes[voteKey{v.ChallengeID, v.VoterID}]; ok {
			return store.ErrConflict
		}
	}
	for _, ch := range c.Challenges {
		if !ch.Active() {
			continue
		}
		for _, existing := range db.challenges {
			if existing.ID != ch.ID && existing.PostID == ch.PostID &&
				existing.ChallengerID == ch.ChallengerID && existing.Active() {
				return store.ErrConflict
			}
		}
	}
	if c.Resolution != nil {
		if _, ok := db.resolutions[c.Resolution.ChallengeID]; ok {
			return store.ErrConflict
		}
	}
	return nil
}
