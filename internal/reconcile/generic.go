package reconcile

import (
	"context"
	"fmt"
	"io"

	"github.com/gobwas/glob"

	"github.com/bincrafters/envy/pkg/provider"
)

// Add registers the project on p unless it already exists.
func Add(ctx context.Context, p provider.Provider, slug string, out io.Writer) error {
	exists, err := p.Exists(ctx, slug)
	if err != nil {
		return err
	}

	if exists {
		fmt.Fprintf(out, "project %s already exists on %s\n", slug, p.Name())
		return nil
	}

	fmt.Fprintf(out, "adding project %s to %s\n", slug, p.Name())
	return p.AddOne(ctx, slug)
}

// Remove deregisters every project of p matching the glob pattern. Unless
// force is set the matches are confirmed first; a declined confirmation
// removes nothing and is not an error. The first failing removal aborts the
// remaining ones.
func Remove(ctx context.Context, p provider.Provider, pattern string, force bool, confirmer provider.Confirmer, out io.Writer) error {
	projects, err := p.List(ctx)
	if err != nil {
		return err
	}

	normalized := pattern
	if n, ok := p.(provider.PatternNormalizer); ok {
		normalized = n.NormalizePattern(pattern)
	}

	g, err := glob.Compile(normalized)
	if err != nil {
		return fmt.Errorf("invalid project pattern %q: %w", pattern, err)
	}

	var matched []string
	for _, project := range projects {
		if g.Match(project) {
			matched = append(matched, project)
		}
	}

	if len(matched) == 0 {
		fmt.Fprintf(out, "no projects matching %s pattern were found on %s\n", pattern, p.Name())
		return nil
	}

	const question = "the following projects will be removed:"
	if force {
		fmt.Fprintln(out, question)
		for _, project := range matched {
			fmt.Fprintln(out, project)
		}
	} else {
		if confirmer == nil {
			return fmt.Errorf("removing %d projects from %s requires confirmation", len(matched), p.Name())
		}
		ok, err := confirmer.Confirm(ctx, question, matched)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}

	for _, project := range matched {
		fmt.Fprintf(out, "removing project %s from %s\n", project, p.Name())
		if err := p.RemoveOne(ctx, project); err != nil {
			return fmt.Errorf("remove %s: %w", project, err)
		}
	}

	return nil
}
