// Siteselect - Clinical Trial Site Resolution and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/siteselect

package registry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/siteselect/internal/logging"
	"github.com/tomtom215/siteselect/internal/models"
	"github.com/tomtom215/siteselect/internal/normalize"
)

func newTestRegistry(t *testing.T, store Store) *Registry {
	t.Helper()
	if store == nil {
		store = NewMemoryStore()
	}
	r, err := New(context.Background(), store, logging.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return r
}

func TestCreateOrGet_CreatesOnce(t *testing.T) {
	r := newTestRegistry(t, nil)
	ctx := context.Background()

	first, created, err := r.CreateOrGet(ctx, &models.Site{DisplayName: "Mayo Clinic", Country: "United States"})
	if err != nil || !created {
		t.Fatalf("CreateOrGet() = %v, %v; want created", created, err)
	}
	if first.ID == "" || first.NormalizedName != "mayo clinic" {
		t.Errorf("site = %+v, want ID and normalized name set", first)
	}
	if first.AccreditationStatus != models.DefaultAccreditationStatus {
		t.Errorf("AccreditationStatus = %q, want default", first.AccreditationStatus)
	}

	second, created, err := r.CreateOrGet(ctx, &models.Site{DisplayName: "MAYO  CLINIC."})
	if err != nil || created {
		t.Fatalf("second CreateOrGet() = %v, %v; want existing", created, err)
	}
	if second.ID != first.ID {
		t.Errorf("second ID = %s, want %s", second.ID, first.ID)
	}
}

func TestCreateOrGet_Concurrent(t *testing.T) {
	r := newTestRegistry(t, nil)
	ctx := context.Background()

	names := []string{"Mayo Clinic", "mayo clinic", "MAYO CLINIC", "Mayo, Clinic"}
	const workers = 40

	var wg sync.WaitGroup
	ids := make(chan string, workers)
	createdCount := make(chan bool, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, created, err := r.CreateOrGet(ctx, &models.Site{DisplayName: names[i%len(names)]})
			if err != nil {
				t.Errorf("CreateOrGet() error = %v", err)
				return
			}
			ids <- s.ID
			createdCount <- created
		}(i)
	}
	wg.Wait()
	close(ids)
	close(createdCount)

	distinct := map[string]bool{}
	for id := range ids {
		distinct[id] = true
	}
	if len(distinct) != 1 {
		t.Errorf("distinct IDs = %d, want 1", len(distinct))
	}
	n := 0
	for c := range createdCount {
		if c {
			n++
		}
	}
	if n != 1 {
		t.Errorf("created = %d times, want 1", n)
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}

// racingStore simulates another process inserting the same name between the
// registry's lookup and its insert.
type racingStore struct {
	*MemoryStore
	once sync.Once
}

func (s *racingStore) InsertSite(ctx context.Context, site *models.Site) error {
	s.once.Do(func() {
		winner := site.Clone()
		winner.ID = "other-process"
		_ = s.MemoryStore.InsertSite(ctx, winner)
	})
	return s.MemoryStore.InsertSite(ctx, site)
}

func TestCreateOrGet_StoreConflictBecomesGet(t *testing.T) {
	store := &racingStore{MemoryStore: NewMemoryStore()}
	r := newTestRegistry(t, store)

	got, created, err := r.CreateOrGet(context.Background(), &models.Site{DisplayName: "Johns Hopkins Hospital"})
	if err != nil {
		t.Fatalf("CreateOrGet() error = %v", err)
	}
	if created {
		t.Error("created = true, want false after conflict")
	}
	if got.ID != "other-process" {
		t.Errorf("ID = %s, want the winner's ID", got.ID)
	}
}

func TestCreateOrGet_EmptyName(t *testing.T) {
	r := newTestRegistry(t, nil)
	if _, _, err := r.CreateOrGet(context.Background(), &models.Site{DisplayName: "..."}); err == nil {
		t.Error("CreateOrGet() with punctuation-only name succeeded")
	}
}

func TestCandidates_Blocking(t *testing.T) {
	r := newTestRegistry(t, nil)
	ctx := context.Background()

	for _, name := range []string{
		"Mayo Clinic Rochester",
		"Cleveland Clinic",
		"Massachusetts General Hospital",
		"University of Tokyo Hospital",
	} {
		if _, _, err := r.CreateOrGet(ctx, &models.Site{DisplayName: name}); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		query string
		want  []string
		not   []string
	}{
		{"mayo clinic", []string{"Mayo Clinic Rochester"}, []string{"Cleveland Clinic"}},
		{"massachusetts general", []string{"Massachusetts General Hospital"}, []string{"Mayo Clinic Rochester"}},
		{"univ of tokyo", []string{"University of Tokyo Hospital"}, nil},
		{"zzz unrelated", nil, []string{"Mayo Clinic Rochester", "Cleveland Clinic"}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got := map[string]bool{}
			for _, c := range r.Candidates(tt.query) {
				got[c.DisplayName] = true
			}
			for _, w := range tt.want {
				if !got[w] {
					t.Errorf("Candidates(%q) missing %q", tt.query, w)
				}
			}
			for _, n := range tt.not {
				if got[n] {
					t.Errorf("Candidates(%q) includes %q", tt.query, n)
				}
			}
		})
	}
}

func TestCandidates_WordStartVariants(t *testing.T) {
	r := newTestRegistry(t, nil)
	ctx := context.Background()

	kristie, _, err := r.CreateOrGet(ctx, &models.Site{DisplayName: "Kristie Clinic Research Center"})
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := r.CreateOrGet(ctx, &models.Site{DisplayName: "Cleveland Clinic Research Center"}); err != nil {
		t.Fatal(err)
	}

	found := false
	for _, c := range r.Candidates(normalize.Name("Christie Clinic Research Center")) {
		if c.ID == kristie.ID {
			found = true
		}
	}
	if !found {
		t.Error("Candidates(christie ...) missing the site that differs only in the first letters")
	}
}

func TestCandidates_FullScanBelow(t *testing.T) {
	ctx := context.Background()
	names := []string{"Mayo Clinic Rochester", "Cleveland Clinic", "Karolinska Institutet"}

	tests := []struct {
		name      string
		threshold int
		want      int
	}{
		{"below threshold scans all", 10, 3},
		{"at threshold uses blocking", 3, 0},
		{"disabled uses blocking", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := New(ctx, NewMemoryStore(), logging.Nop(), WithFullScanBelow(tt.threshold))
			if err != nil {
				t.Fatal(err)
			}
			for _, n := range names {
				if _, _, err := r.CreateOrGet(ctx, &models.Site{DisplayName: n}); err != nil {
					t.Fatal(err)
				}
			}
			got := r.Candidates("zzz unrelated")
			if len(got) != tt.want {
				t.Fatalf("Candidates() returned %d sites, want %d", len(got), tt.want)
			}
			for i := 1; i < len(got); i++ {
				if got[i].CreatedAt.Before(got[i-1].CreatedAt) {
					t.Errorf("Candidates() not ordered by creation: %+v", got)
				}
			}
		})
	}
}

func TestNew_LoadsExistingSites(t *testing.T) {
	store := NewMemoryStore()
	_ = store.InsertSite(context.Background(), &models.Site{
		ID: "s1", DisplayName: "Karolinska Institutet", NormalizedName: "karolinska institutet",
	})

	r := newTestRegistry(t, store)
	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", r.Len())
	}
	if c := r.Candidates("karolinska"); len(c) != 1 || c[0].ID != "s1" {
		t.Errorf("Candidates() = %+v, want s1", c)
	}
}

func TestUpdate(t *testing.T) {
	step := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := func() time.Time { step = step.Add(time.Minute); return step }

	store := NewMemoryStore()
	r, err := New(context.Background(), store, logging.Nop(), WithClock(now))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	site, _, _ := r.CreateOrGet(ctx, &models.Site{DisplayName: "Charité Berlin"})

	ref := &models.StudyRef{NCTID: "NCT01", Conditions: []string{"Asthma"}, Phase: "Phase 2"}
	updated, err := r.Update(ctx, site.ID, func(s *models.Site) bool { return s.MergeStudy(ref) })
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if len(updated.Conditions) != 1 || !updated.UpdatedAt.After(site.UpdatedAt) {
		t.Errorf("Update() = %+v, want merged profile and newer UpdatedAt", updated)
	}
	if !updated.CreatedAt.Equal(site.CreatedAt) || updated.ID != site.ID {
		t.Error("Update() changed identity fields")
	}

	// No-op merge leaves the stored copy alone.
	again, _ := r.Update(ctx, site.ID, func(s *models.Site) bool { return s.MergeStudy(ref) })
	if !again.UpdatedAt.Equal(updated.UpdatedAt) {
		t.Error("no-op Update() bumped UpdatedAt")
	}

	if _, err := r.Update(ctx, "missing", func(*models.Site) bool { return true }); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update(missing) error = %v, want ErrNotFound", err)
	}
}

func TestLinks(t *testing.T) {
	r := newTestRegistry(t, nil)
	ctx := context.Background()
	site, _, _ := r.CreateOrGet(ctx, &models.Site{DisplayName: "Royal Marsden"})

	tests := []struct {
		nct     string
		wantNew bool
	}{
		{"NCT1", true},
		{"NCT2", true},
		{"NCT1", false},
		{"", false},
	}
	for _, tt := range tests {
		isNew, err := r.Link(ctx, site.ID, &models.StudyRef{NCTID: tt.nct, OverallStatus: "COMPLETED"})
		if err != nil {
			t.Fatalf("Link(%q) error = %v", tt.nct, err)
		}
		if isNew != tt.wantNew {
			t.Errorf("Link(%q) new = %v, want %v", tt.nct, isNew, tt.wantNew)
		}
	}
	links, err := r.Links(ctx, site.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(links) != 2 {
		t.Errorf("Links() = %d, want 2", len(links))
	}
	if links[0].Study().OverallStatus != "COMPLETED" {
		t.Errorf("link study = %+v, want status carried", links[0].Study())
	}
	if _, err := r.Link(ctx, site.ID, nil); err != nil {
		t.Errorf("Link(nil) error = %v", err)
	}

	if _, err := r.Link(ctx, "missing", &models.StudyRef{NCTID: "NCT9"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Link(missing site) error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	site := &models.Site{ID: "a", DisplayName: "A", NormalizedName: "a", Conditions: []string{"x"}}
	_ = s.InsertSite(ctx, site)

	site.Conditions[0] = "mutated"
	got, _ := s.GetSite(ctx, "a")
	if got.Conditions[0] != "x" {
		t.Error("store shares slice with caller")
	}
}
