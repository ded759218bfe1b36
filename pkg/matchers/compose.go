package matchers

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/reqtrap/reqtrap/pkg/traffic"
)

// BuildMatchers compiles an ordered descriptor list into one composite
// matcher. The composite evaluates every atomic matcher concurrently, awaits
// them all, and matches only when each one matched; there is no
// short-circuiting, so a slow body-dependent matcher never starves the rest.
// Any matcher error fails the whole evaluation.
//
// An empty list builds a vacuous matcher that accepts every request.
func BuildMatchers(descriptors []Descriptor) (RequestMatcher, error) {
	if len(descriptors) == 0 {
		return (&WildcardMatcher{}).BuildMatcher()
	}

	built := make([]RequestMatcher, len(descriptors))
	for i, d := range descriptors {
		m, err := d.BuildMatcher()
		if err != nil {
			return nil, fmt.Errorf("building %s matcher: %w", d.Type(), err)
		}
		built[i] = m
	}

	if len(built) == 1 {
		return built[0], nil
	}
	return &compositeMatcher{matchers: built}, nil
}

// CombineMatchers joins two already-built matchers into a binary AND with the
// explanation "{a} and {b}". Useful for programmatic composition without
// going back through descriptors.
func CombineMatchers(a, b RequestMatcher) RequestMatcher {
	return &matcherFunc{
		explain: a.Explain() + " and " + b.Explain(),
		matches: func(ctx context.Context, req *traffic.Request) (bool, error) {
			composite := compositeMatcher{matchers: []RequestMatcher{a, b}}
			return composite.Matches(ctx, req)
		},
	}
}

type compositeMatcher struct {
	matchers []RequestMatcher
}

func (c *compositeMatcher) Matches(ctx context.Context, req *traffic.Request) (bool, error) {
	results := make([]bool, len(c.matchers))

	g, gctx := errgroup.WithContext(ctx)
	for i, m := range c.matchers {
		g.Go(func() error {
			matched, err := m.Matches(gctx, req)
			results[i] = matched
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return false, err
	}

	for _, matched := range results {
		if !matched {
			return false, nil
		}
	}
	return true, nil
}

func (c *compositeMatcher) Explain() string {
	parts := make([]string, len(c.matchers))
	for i, m := range c.matchers {
		parts[i] = m.Explain()
	}
	return explainList(parts)
}

// explainList enumerates explanations the way a sentence would: two items are
// separated by a space, three or more get an Oxford comma.
func explainList(parts []string) string {
	switch len(parts) {
	case 0:
		return "for anything"
	case 1:
		return parts[0]
	case 2:
		return parts[0] + " " + parts[1]
	default:
		return strings.Join(parts[:len(parts)-1], ", ") + ", and " + parts[len(parts)-1]
	}
}
