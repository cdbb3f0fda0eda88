package visibility

import (
	"context"
	"errors"
	"testing"

	"gorm.io/gorm"

	"cvhub/internal/database"
)

type fakeStore struct {
	records map[string]*database.CVRecord

	findErr      error
	incrementErr error

	increments int
}

func newFakeStore(records ...*database.CVRecord) *fakeStore {
	s := &fakeStore{records: map[string]*database.CVRecord{}}
	for _, r := range records {
		s.records[r.Slug] = r
	}
	return s
}

func (s *fakeStore) FindBySlug(_ context.Context, slug string) (*database.CVRecord, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	record, ok := s.records[slug]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *record
	return &copied, nil
}

func (s *fakeStore) IncrementViews(_ context.Context, recordID uint) (uint, error) {
	if s.incrementErr != nil {
		return 0, s.incrementErr
	}
	for _, record := range s.records {
		if record.ID == recordID {
			s.increments++
			record.Views++
			return record.Views, nil
		}
	}
	return 0, gorm.ErrRecordNotFound
}

func publicRecord() *database.CVRecord {
	return &database.CVRecord{
		Model:         gorm.Model{ID: 1},
		OwnerEmail:    "jane@example.com",
		Slug:          "jane-doe-x7k2p1",
		ConsentPublic: true,
		Views:         4,
	}
}

func privateRecord() *database.CVRecord {
	return &database.CVRecord{
		Model:      gorm.Model{ID: 2},
		OwnerEmail: "john@example.com",
		Slug:       "john-smith-a1b2c3",
		Views:      7,
	}
}

func TestResolve_UnknownSlug(t *testing.T) {
	store := newFakeStore(publicRecord())
	gate := NewGate(store)

	for i := 0; i < 2; i++ {
		_, err := gate.Resolve(context.Background(), "no-such-slug", "")
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	}
	if store.increments != 0 {
		t.Fatalf("not-found resolution must not write, got %d increments", store.increments)
	}
}

func TestResolve_PrivateNonOwner(t *testing.T) {
	store := newFakeStore(privateRecord())
	gate := NewGate(store)

	for _, requester := range []string{"", "stranger@example.com"} {
		record, err := gate.Resolve(context.Background(), "john-smith-a1b2c3", requester)
		if !errors.Is(err, ErrPrivate) {
			t.Fatalf("requester %q: expected ErrPrivate, got %v", requester, err)
		}
		if record != nil {
			t.Fatalf("requester %q: private record must not be revealed", requester)
		}
	}
	if store.increments != 0 {
		t.Fatalf("denied resolution must not write, got %d increments", store.increments)
	}
	if store.records["john-smith-a1b2c3"].Views != 7 {
		t.Fatalf("view count changed on denied access")
	}
}

func TestResolve_PublicAnonymousIncrementsOnce(t *testing.T) {
	store := newFakeStore(publicRecord())
	gate := NewGate(store)

	record, err := gate.Resolve(context.Background(), "jane-doe-x7k2p1", "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if record.Views != 5 {
		t.Fatalf("expected post-increment views 5, got %d", record.Views)
	}
	if got := store.records["jane-doe-x7k2p1"].Views; got != 5 {
		t.Fatalf("persisted views = %d, want 5", got)
	}
	if store.increments != 1 {
		t.Fatalf("expected exactly one increment, got %d", store.increments)
	}
}

func TestResolve_EachEvaluationCountsSeparately(t *testing.T) {
	store := newFakeStore(publicRecord())
	gate := NewGate(store)

	for want := uint(5); want <= 7; want++ {
		record, err := gate.Resolve(context.Background(), "jane-doe-x7k2p1", "visitor@example.com")
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if record.Views != want {
			t.Fatalf("expected views %d, got %d", want, record.Views)
		}
	}
}

func TestResolve_OwnerNeverIncrements(t *testing.T) {
	cases := []*database.CVRecord{publicRecord(), privateRecord()}
	for _, seed := range cases {
		store := newFakeStore(seed)
		gate := NewGate(store)

		record, err := gate.Resolve(context.Background(), seed.Slug, seed.OwnerEmail)
		if err != nil {
			t.Fatalf("slug %s: resolve as owner: %v", seed.Slug, err)
		}
		if record.Views != seed.Views {
			t.Fatalf("slug %s: owner view changed count to %d", seed.Slug, record.Views)
		}
		if store.increments != 0 {
			t.Fatalf("slug %s: owner view must not write", seed.Slug)
		}
	}
}

func TestResolve_StoreErrorIsNotNotFound(t *testing.T) {
	store := newFakeStore(publicRecord())
	store.findErr = errors.New("connection refused")
	gate := NewGate(store)

	_, err := gate.Resolve(context.Background(), "jane-doe-x7k2p1", "")
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrPrivate) {
		t.Fatalf("store failure must not map to a user-facing outcome, got %v", err)
	}
	if !errors.Is(err, store.findErr) {
		t.Fatalf("store failure should be wrapped, got %v", err)
	}
}

func TestResolve_IncrementErrorSurfaces(t *testing.T) {
	store := newFakeStore(publicRecord())
	store.incrementErr = errors.New("disk full")
	gate := NewGate(store)

	_, err := gate.Resolve(context.Background(), "jane-doe-x7k2p1", "")
	if !errors.Is(err, store.incrementErr) {
		t.Fatalf("expected wrapped increment error, got %v", err)
	}
}
