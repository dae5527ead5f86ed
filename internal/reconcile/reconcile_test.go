package reconcile

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/bincrafters/envy/pkg/envvar"
)

func TestAddIdempotent(t *testing.T) {
	p := newFake("travis")
	var out bytes.Buffer

	for range 2 {
		if err := Add(context.Background(), p, "conan-a", &out); err != nil {
			t.Fatal(err)
		}
	}

	if p.adds != 1 {
		t.Fatalf("expected a single AddOne, got %d", p.adds)
	}
	exp := "adding project conan-a to travis\nproject conan-a already exists on travis\n"
	if out.String() != exp {
		t.Fatalf("expected output:\n%s\ngot:\n%s", exp, out.String())
	}
}

func TestRemove(t *testing.T) {
	cases := []struct {
		note     string
		pattern  string
		force    bool
		answer   bool
		removed  []string
		asked    int
		contains string
	}{
		{
			note:     "glob with force",
			pattern:  "conan-*",
			force:    true,
			removed:  []string{"conan-a", "conan-b"},
			contains: "the following projects will be removed:\nconan-a\nconan-b\n",
		},
		{
			note:    "confirmed",
			pattern: "conan-a",
			answer:  true,
			removed: []string{"conan-a"},
			asked:   1,
		},
		{
			note:    "declined",
			pattern: "conan-?",
			answer:  false,
			asked:   1,
		},
		{
			note:     "no match",
			pattern:  "boost-*",
			contains: "no projects matching boost-* pattern were found on circle\n",
		},
	}

	for _, tc := range cases {
		t.Run(tc.note, func(t *testing.T) {
			p := newFake("circle", "conan-a", "conan-b", "other")
			c := &staticConfirmer{answer: tc.answer}
			var out bytes.Buffer

			if err := Remove(context.Background(), p, tc.pattern, tc.force, c, &out); err != nil {
				t.Fatal(err)
			}

			if diff := cmp.Diff(tc.removed, p.removes); diff != "" {
				t.Fatalf("removed (-want,+got):\n%s", diff)
			}
			if len(c.asked) != tc.asked {
				t.Fatalf("expected %d confirmations, got %d", tc.asked, len(c.asked))
			}
			if !strings.Contains(out.String(), tc.contains) {
				t.Fatalf("expected output to contain %q, got:\n%s", tc.contains, out.String())
			}
		})
	}
}

func TestRemoveNormalizesPattern(t *testing.T) {
	p := normalizingProvider{newFake("appveyor", "conan-a-b", "conan_a_b_raw")}

	if err := Remove(context.Background(), p, "conan_a_*", true, nil, &bytes.Buffer{}); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"conan-a-b"}, p.removes); diff != "" {
		t.Fatalf("(-want,+got):\n%s", diff)
	}
}

func TestRemoveAbortsOnFirstFailure(t *testing.T) {
	p := newFake("travis", "conan-a", "conan-b", "conan-c")
	p.removeErr["conan-b"] = errBoom

	err := Remove(context.Background(), p, "conan-*", true, nil, &bytes.Buffer{})
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected errBoom, got %v", err)
	}
	if diff := cmp.Diff([]string{"conan-a"}, p.removes); diff != "" {
		t.Fatalf("(-want,+got):\n%s", diff)
	}
}

func TestRemoveConfirmerError(t *testing.T) {
	p := newFake("travis", "conan-a")
	if err := Remove(context.Background(), p, "*", false, &staticConfirmer{err: errBoom}, &bytes.Buffer{}); !errors.Is(err, errBoom) {
		t.Fatalf("expected errBoom, got %v", err)
	}
	if err := Remove(context.Background(), p, "*", false, nil, &bytes.Buffer{}); err == nil {
		t.Fatal("expected error without a confirmer")
	}
	if len(p.removes) != 0 {
		t.Fatal("nothing should have been removed")
	}
}

func TestRemoveInvalidPattern(t *testing.T) {
	p := newFake("travis", "conan-a")
	if err := Remove(context.Background(), p, "conan-[", true, nil, &bytes.Buffer{}); err == nil {
		t.Fatal("expected invalid pattern error")
	}
}

func TestRunScenario(t *testing.T) {
	p := newFake("appveyor", "conan-a")
	p.vars["conan-a"] = []envvar.Var{{Name: "C", Value: "3"}}

	req := Request{
		Projects:  []string{"conan-a"},
		Desired:   envvar.Set{"A": "1", "B": "2"},
		Encrypted: envvar.NewNames("B"),
		Mode:      ModeAdd,
	}

	e := New(p)
	for range 2 {
		if r := e.Run(context.Background(), req); r.Failed() {
			t.Fatal(r.Err())
		}
	}

	exp := []envvar.Var{
		{Name: "A", Value: "1"},
		{Name: "B", Value: "enc:2", Encrypted: true},
		{Name: "C", Value: "3"},
	}
	if diff := cmp.Diff(exp, p.vars["conan-a"]); diff != "" {
		t.Fatalf("(-want,+got):\n%s", diff)
	}
}

func TestRunFailureIsolation(t *testing.T) {
	for _, parallel := range []int{1, 4} {
		x := newFake("x")
		y := newFake("y")
		x.updateErr["p1"] = errBoom

		var out bytes.Buffer
		e := New(x, y).WithOutput(&out).WithParallel(parallel)

		r := e.Run(context.Background(), Request{
			Projects: []string{"p1", "p2"},
			Desired:  envvar.Set{"A": "1"},
			Mode:     ModeAdd,
		})

		if !r.Failed() {
			t.Fatalf("parallel=%d: expected the run to fail", parallel)
		}

		var failed []string
		for _, pair := range r.Pairs {
			if pair.Err != nil {
				failed = append(failed, pair.Project+"/"+pair.Provider)
			}
		}
		if diff := cmp.Diff([]string{"p1/x"}, failed); diff != "" {
			t.Fatalf("parallel=%d: failures (-want,+got):\n%s", parallel, diff)
		}

		for _, f := range []*fakeProvider{x, y} {
			if !f.projects["p1"] || !f.projects["p2"] {
				t.Fatalf("parallel=%d: expected both projects on %s", parallel, f.name)
			}
		}
		if len(y.vars["p1"]) != 1 || len(x.vars["p2"]) != 1 || len(y.vars["p2"]) != 1 {
			t.Fatalf("parallel=%d: expected other pairs to be updated", parallel)
		}

		if !errors.Is(r.Err(), errBoom) {
			t.Fatalf("parallel=%d: expected aggregated errBoom, got %v", parallel, r.Err())
		}

		s := out.String()
		for _, line := range []string{
			"updating project p1 on x...FAIL\nboom\n",
			"updating project p1 on y...OK\n",
			"updating project p2 on x...OK\n",
			"updating project p2 on y...OK\n",
		} {
			if !strings.Contains(s, line) {
				t.Fatalf("parallel=%d: expected %q in output:\n%s", parallel, line, s)
			}
		}
	}
}

func TestRunOrder(t *testing.T) {
	a, b := newFake("a"), newFake("b")
	r := New(a, b).Run(context.Background(), Request{Projects: []string{"p1", "p2"}, Mode: ModeAdd})

	var got []string
	for _, pair := range r.Pairs {
		got = append(got, pair.Project+"/"+pair.Provider)
	}
	if diff := cmp.Diff([]string{"p1/a", "p1/b", "p2/a", "p2/b"}, got); diff != "" {
		t.Fatalf("(-want,+got):\n%s", diff)
	}
	if r.Err() != nil {
		t.Fatal(r.Err())
	}
}

func TestRunRemove(t *testing.T) {
	p := newFake("azure", "conan-a", "conan-b")
	c := &staticConfirmer{answer: true}

	r := New(p).WithConfirmer(c).Run(context.Background(), Request{Projects: []string{"conan-*"}, Mode: ModeRemove})
	if r.Failed() {
		t.Fatal(r.Err())
	}
	if len(c.asked) != 1 || len(p.projects) != 0 {
		t.Fatalf("expected both projects removed after one confirmation, got %v", p.projects)
	}
}

func TestRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := newFake("travis")
	r := New(p).Run(ctx, Request{Projects: []string{"p1"}, Mode: ModeAdd})
	if !r.Failed() || !errors.Is(r.Pairs[0].Err, context.Canceled) {
		t.Fatalf("expected canceled pair, got %+v", r.Pairs)
	}
	if p.adds != 0 {
		t.Fatal("no provider call expected")
	}
}

func TestWriteSummary(t *testing.T) {
	r := &Result{Pairs: []PairResult{
		{Project: "conan-a", Provider: "travis", Mode: ModeAdd},
		{Project: "conan-a", Provider: "circle", Mode: ModeAdd, Err: errors.New("status 500\nbody")},
	}}

	var buf bytes.Buffer
	if err := WriteSummary(&buf, r); err != nil {
		t.Fatal(err)
	}

	s := buf.String()
	for _, exp := range []string{"conan-a", "travis", "circle", "OK", "FAIL", "status 500"} {
		if !strings.Contains(s, exp) {
			t.Fatalf("expected %q in summary:\n%s", exp, s)
		}
	}
	if strings.Contains(s, "body") {
		t.Fatalf("expected only the first error line:\n%s", s)
	}
}
