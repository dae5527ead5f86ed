package reconcile

import (
	"context"
	"errors"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/bincrafters/envy/pkg/envvar"
)

// fakeProvider keeps projects and variables in memory and merges variables
// with a reversible encryption.
type fakeProvider struct {
	name string

	mu        sync.Mutex
	projects  map[string]bool
	vars      map[string][]envvar.Var
	adds      int
	removes   []string
	updateErr map[string]error
	removeErr map[string]error
}

func newFake(name string, projects ...string) *fakeProvider {
	f := &fakeProvider{
		name:      name,
		projects:  map[string]bool{},
		vars:      map[string][]envvar.Var{},
		updateErr: map[string]error{},
		removeErr: map[string]error{},
	}
	for _, p := range projects {
		f.projects[p] = true
	}
	return f
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) List(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Sorted(maps.Keys(f.projects)), nil
}

func (f *fakeProvider) Exists(_ context.Context, slug string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.projects[slug], nil
}

func (f *fakeProvider) AddOne(_ context.Context, slug string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.adds++
	f.projects[slug] = true
	return nil
}

func (f *fakeProvider) RemoveOne(_ context.Context, slug string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.removeErr[slug]; err != nil {
		return err
	}
	f.removes = append(f.removes, slug)
	delete(f.projects, slug)
	return nil
}

func (f *fakeProvider) Update(ctx context.Context, slug string, desired envvar.Set, encrypted envvar.Names) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.updateErr[slug]; err != nil {
		return err
	}
	merged, err := envvar.Merge(ctx, desired, encrypted, f.vars[slug], encrypt)
	if err != nil {
		return err
	}
	for i := range merged {
		merged[i].Carried = false
	}
	f.vars[slug] = merged
	return nil
}

func encrypt(_ context.Context, v string) (string, error) {
	return "enc:" + v, nil
}

// normalizingProvider matches remove patterns with hyphens instead of
// underscores.
type normalizingProvider struct {
	*fakeProvider
}

func (normalizingProvider) NormalizePattern(p string) string {
	return strings.ReplaceAll(p, "_", "-")
}

type staticConfirmer struct {
	answer bool
	err    error
	asked  [][]string
}

func (s *staticConfirmer) Confirm(_ context.Context, _ string, items []string) (bool, error) {
	s.asked = append(s.asked, items)
	return s.answer, s.err
}

var errBoom = errors.New("boom")
