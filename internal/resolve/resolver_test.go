// Siteselect - Clinical Trial Site Resolution and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/siteselect

package resolve

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/siteselect/internal/geocode"
	"github.com/tomtom215/siteselect/internal/logging"
	"github.com/tomtom215/siteselect/internal/models"
	"github.com/tomtom215/siteselect/internal/registry"
)

type stubLocator struct {
	calls  atomic.Int32
	coords models.Coordinates
	err    error
}

func (l *stubLocator) Resolve(context.Context, string) (models.Coordinates, error) {
	l.calls.Add(1)
	return l.coords, l.err
}

func newTestResolver(t *testing.T, matcher Matcher, loc Locator) (*Resolver, *registry.Registry) {
	t.Helper()
	reg, err := registry.New(context.Background(), registry.NewMemoryStore(), logging.Nop())
	if err != nil {
		t.Fatalf("registry.New() error = %v", err)
	}
	return New(reg, matcher, loc, Config{}, logging.Nop()), reg
}

func mayo(name string) models.FacilityMention {
	return models.FacilityMention{Name: name, City: "Rochester", Region: "MN", Country: "United States"}
}

func TestResolve_Deduplication(t *testing.T) {
	r, reg := newTestResolver(t, TokenSet{Threshold: 85}, nil)
	ctx := context.Background()

	first, err := r.Resolve(ctx, mayo("Mayo Clinic"))
	if err != nil {
		t.Fatalf("Resolve(Mayo Clinic) error = %v", err)
	}
	if first.Method != MethodCreated {
		t.Errorf("first Method = %s, want created", first.Method)
	}

	second, err := r.Resolve(ctx, mayo("Mayo Clinic Hospital"))
	if err != nil {
		t.Fatalf("Resolve(Mayo Clinic Hospital) error = %v", err)
	}
	if second.SiteID != first.SiteID {
		t.Errorf("Mayo Clinic Hospital resolved to %s, want %s", second.SiteID, first.SiteID)
	}
	if second.Method != MethodFuzzy || second.Similarity <= 85 {
		t.Errorf("second = %s/%v, want fuzzy above 85", second.Method, second.Similarity)
	}

	other, err := r.Resolve(ctx, models.FacilityMention{Name: "City General Hospital", City: "Leeds", Country: "United Kingdom"})
	if err != nil {
		t.Fatalf("Resolve(City General Hospital) error = %v", err)
	}
	if other.SiteID == first.SiteID {
		t.Error("unrelated facility merged into Mayo Clinic")
	}

	exact, _ := r.Resolve(ctx, mayo("MAYO CLINIC."))
	if exact.Method != MethodExact || exact.SiteID != first.SiteID {
		t.Errorf("exact variant = %s/%s, want exact/%s", exact.Method, exact.SiteID, first.SiteID)
	}

	if reg.Len() != 2 {
		t.Errorf("registry size = %d, want 2", reg.Len())
	}
	if first.Degraded || second.Degraded {
		t.Error("fuzzy-mode results marked degraded")
	}
}

func TestResolve_UnicodeEquivalentNames(t *testing.T) {
	tests := []struct {
		name    string
		matcher Matcher
	}{
		{"fuzzy", TokenSet{Threshold: 85}},
		{"exact only", ExactOnly{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, reg := newTestResolver(t, tt.matcher, nil)
			ctx := context.Background()
			paris := func(name string) models.FacilityMention {
				return models.FacilityMention{Name: name, City: "Clamart", Country: "France"}
			}

			first, err := r.Resolve(ctx, paris("H\u00f4pital B\u00e9cl\u00e8re"))
			if err != nil {
				t.Fatalf("Resolve(precomposed) error = %v", err)
			}
			second, err := r.Resolve(ctx, paris("Ho\u0302pital Be\u0301cle\u0300re"))
			if err != nil {
				t.Fatalf("Resolve(combining) error = %v", err)
			}
			third, err := r.Resolve(ctx, paris("Hopital Beclere"))
			if err != nil {
				t.Fatalf("Resolve(unaccented) error = %v", err)
			}

			for _, res := range []Result{second, third} {
				if res.SiteID != first.SiteID || res.Method != MethodExact {
					t.Errorf("equivalent spelling = %s/%s, want exact/%s", res.Method, res.SiteID, first.SiteID)
				}
			}
			if reg.Len() != 1 {
				t.Errorf("registry size = %d, want 1", reg.Len())
			}
		})
	}
}

func TestResolve_FuzzyAcrossWordStartVariant(t *testing.T) {
	r, reg := newTestResolver(t, TokenSet{Threshold: 85}, nil)
	ctx := context.Background()

	first, err := r.Resolve(ctx, models.FacilityMention{Name: "Kristie Clinic Research Center", Country: "United States"})
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.Resolve(ctx, models.FacilityMention{Name: "Christie Clinic Research Center", Country: "United States"})
	if err != nil {
		t.Fatal(err)
	}
	if second.SiteID != first.SiteID || second.Method != MethodFuzzy {
		t.Errorf("Christie = %s/%s (%.1f), want fuzzy/%s", second.Method, second.SiteID, second.Similarity, first.SiteID)
	}
	if reg.Len() != 1 {
		t.Errorf("registry size = %d, want 1", reg.Len())
	}
}

func TestResolve_DegradedMode(t *testing.T) {
	r, reg := newTestResolver(t, NewMatcher(false, 85), nil)
	ctx := context.Background()

	if r.Mode() != ModeExactOnly || !r.Degraded() {
		t.Fatalf("Mode() = %s, want exact_only", r.Mode())
	}

	a, _ := r.Resolve(ctx, mayo("Mayo Clinic"))
	b, _ := r.Resolve(ctx, mayo("Mayo Clinic Hospital"))
	c, _ := r.Resolve(ctx, mayo("mayo  clinic"))

	if a.SiteID == b.SiteID {
		t.Error("exact-only mode merged non-identical names")
	}
	if c.SiteID != a.SiteID || c.Method != MethodExact {
		t.Errorf("normalized-equal name = %s/%s, want exact/%s", c.Method, c.SiteID, a.SiteID)
	}
	for _, res := range []Result{a, b, c} {
		if !res.Degraded {
			t.Error("result not marked degraded")
		}
	}
	if reg.Len() != 2 {
		t.Errorf("registry size = %d, want 2", reg.Len())
	}
}

func TestResolve_Rejections(t *testing.T) {
	r, reg := newTestResolver(t, TokenSet{}, nil)

	tests := []struct {
		name       string
		wantReject bool
	}{
		{"", true},
		{"   ", true},
		{"...", true},
		{"12345", true},
		{" 007 ", true},
		{"123456", false},
		{"Site 12", false},
	}
	for _, tt := range tests {
		_, err := r.Resolve(context.Background(), models.FacilityMention{Name: tt.name})
		if got := errors.Is(err, ErrRejectedMention); got != tt.wantReject {
			t.Errorf("Resolve(%q) rejected = %v (err %v), want %v", tt.name, got, err, tt.wantReject)
		}
	}
	if reg.Len() != 2 {
		t.Errorf("registry size = %d, want 2 (rejected mentions must not register)", reg.Len())
	}
}

func TestResolve_ConcurrentSameFacility(t *testing.T) {
	loc := &stubLocator{coords: models.Coordinates{Latitude: 44.02, Longitude: -92.47}}
	r, reg := newTestResolver(t, TokenSet{}, loc)

	const workers = 32
	var wg sync.WaitGroup
	ids := make([]string, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := r.Resolve(context.Background(), mayo("Mayo Clinic"))
			if err != nil {
				t.Errorf("Resolve() error = %v", err)
				return
			}
			ids[i] = res.SiteID
		}(i)
	}
	wg.Wait()

	for _, id := range ids[1:] {
		if id != ids[0] {
			t.Fatalf("concurrent resolves produced different IDs: %s vs %s", id, ids[0])
		}
	}
	if reg.Len() != 1 {
		t.Errorf("registry size = %d, want 1", reg.Len())
	}
}

func TestResolve_Geocoding(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		loc := &stubLocator{coords: models.Coordinates{Latitude: 44.02, Longitude: -92.47}}
		r, _ := newTestResolver(t, TokenSet{}, loc)
		res, err := r.Resolve(context.Background(), mayo("Mayo Clinic"))
		if err != nil {
			t.Fatal(err)
		}
		if res.Site.Coordinates == nil || res.Site.Coordinates.Latitude != 44.02 {
			t.Errorf("Coordinates = %v, want geocoded", res.Site.Coordinates)
		}
		if res.Site.InstitutionType != models.InstitutionClinic {
			t.Errorf("InstitutionType = %s, want Clinic", res.Site.InstitutionType)
		}
	})

	t.Run("unavailable is not fatal", func(t *testing.T) {
		loc := &stubLocator{err: geocode.ErrUnavailable}
		r, _ := newTestResolver(t, TokenSet{}, loc)
		res, err := r.Resolve(context.Background(), mayo("Mayo Clinic"))
		if err != nil {
			t.Fatalf("Resolve() error = %v, want site created anyway", err)
		}
		if res.Method != MethodCreated || res.Site.Coordinates != nil {
			t.Errorf("result = %s coords %v, want created with nil coordinates", res.Method, res.Site.Coordinates)
		}
	})

	t.Run("no location skips geocoding", func(t *testing.T) {
		loc := &stubLocator{}
		r, _ := newTestResolver(t, TokenSet{}, loc)
		if _, err := r.Resolve(context.Background(), models.FacilityMention{Name: "Nowhere Institute"}); err != nil {
			t.Fatal(err)
		}
		if loc.calls.Load() != 0 {
			t.Error("geocoder called for a mention without location")
		}
	})

	t.Run("existing site is not geocoded again", func(t *testing.T) {
		loc := &stubLocator{}
		r, _ := newTestResolver(t, TokenSet{}, loc)
		_, _ = r.Resolve(context.Background(), mayo("Mayo Clinic"))
		_, _ = r.Resolve(context.Background(), mayo("Mayo Clinic Hospital"))
		if n := loc.calls.Load(); n != 1 {
			t.Errorf("geocoder calls = %d, want 1", n)
		}
	})
}

func TestResolve_StudyLinkUpdatesProfile(t *testing.T) {
	r, reg := newTestResolver(t, TokenSet{}, nil)
	ctx := context.Background()

	m1 := mayo("Mayo Clinic")
	m1.Study = &models.StudyRef{
		NCTID: "NCT0001", Conditions: []string{"Diabetes"}, Phase: "Phase 2",
		InterventionTypes: []string{"Drug"}, OverallStatus: "COMPLETED", Enrollment: 120,
	}
	m2 := mayo("Mayo Clinic Hospital")
	m2.Study = &models.StudyRef{
		NCTID: "NCT0002", Conditions: []string{"Obesity"}, Phase: "Phase 3",
		InterventionTypes: []string{"Behavioral"}, OverallStatus: "TERMINATED", Enrollment: 30,
	}

	if _, err := r.Resolve(ctx, m1); err != nil {
		t.Fatal(err)
	}
	res, err := r.Resolve(ctx, m2)
	if err != nil {
		t.Fatal(err)
	}
	// Same study again must not double count.
	res, err = r.Resolve(ctx, m2)
	if err != nil {
		t.Fatal(err)
	}

	site, _ := reg.Get(ctx, res.SiteID)
	if len(site.Conditions) != 2 || len(site.Phases) != 2 || len(site.InterventionTypes) != 2 {
		t.Errorf("profile = %v / %v / %v, want two of each", site.Conditions, site.Phases, site.InterventionTypes)
	}
	if site.Experience == nil || site.Experience.TotalStudies != 2 || site.Experience.Completed != 1 {
		t.Errorf("Experience = %+v, want 2 studies, 1 completed", site.Experience)
	}
	if site.Capacity != 150 {
		t.Errorf("Capacity = %d, want total enrollment 150", site.Capacity)
	}
}

func TestTokenSetRatio(t *testing.T) {
	tests := []struct {
		a, b    string
		atLeast float64
		below   float64
	}{
		{"Mayo Clinic", "Mayo Clinic Hospital", 100, 101},
		{"Clinic Mayo", "mayo clinic", 100, 101},
		{"Massachusetts General Hospital", "Massachusetts Gen Hospital", 85, 101},
		{"Mayo Clinic", "City General Hospital", 0, 60},
		{"", "Mayo Clinic", 0, 0.1},
	}
	for _, tt := range tests {
		got := TokenSetRatio(tt.a, tt.b)
		if got < tt.atLeast || got >= tt.below {
			t.Errorf("TokenSetRatio(%q, %q) = %v, want in [%v, %v)", tt.a, tt.b, got, tt.atLeast, tt.below)
		}
		if sym := TokenSetRatio(tt.b, tt.a); sym != got {
			t.Errorf("TokenSetRatio not symmetric: %v vs %v", got, sym)
		}
	}
}

func TestTokenSet_TieBreak(t *testing.T) {
	early := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	late := early.Add(time.Hour)

	tests := []struct {
		name  string
		cands []registry.Candidate
		want  string
	}{
		{
			name: "earliest created wins",
			cands: []registry.Candidate{
				{ID: "a", DisplayName: "Mayo Clinic Jacksonville", CreatedAt: late},
				{ID: "b", DisplayName: "Mayo Clinic Arizona", CreatedAt: early},
			},
			want: "b",
		},
		{
			name: "smaller ID wins on equal time",
			cands: []registry.Candidate{
				{ID: "z", DisplayName: "Mayo Clinic Jacksonville", CreatedAt: early},
				{ID: "c", DisplayName: "Mayo Clinic Arizona", CreatedAt: early},
			},
			want: "c",
		},
		{
			name: "higher score beats age",
			cands: []registry.Candidate{
				{ID: "old", DisplayName: "Cleveland Clinic Florida", CreatedAt: early},
				{ID: "new", DisplayName: "Mayo Clinic Florida", CreatedAt: late},
			},
			want: "new",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := TokenSet{}.Best("Mayo Clinic", tt.cands)
			if !ok || m.Candidate.ID != tt.want {
				t.Errorf("Best() = %+v, %v; want %s", m, ok, tt.want)
			}
		})
	}
}

func TestTokenSet_ThresholdIsStrict(t *testing.T) {
	cands := []registry.Candidate{{ID: "x", DisplayName: "Mayo Clinic"}}
	if _, ok := (TokenSet{Threshold: 100}).Best("Mayo Clinic Hospital", cands); ok {
		t.Error("score equal to threshold accepted")
	}
	if _, ok := (TokenSet{Threshold: 99.9}).Best("Mayo Clinic Hospital", cands); !ok {
		t.Error("score above threshold rejected")
	}
	if _, ok := (ExactOnly{}).Best("Mayo Clinic", cands); ok {
		t.Error("ExactOnly matched")
	}
}
