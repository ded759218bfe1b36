package matchers

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strings"

	"github.com/reqtrap/reqtrap/internal/urlnorm"
	"github.com/reqtrap/reqtrap/pkg/traffic"
)

// WildcardMatcher matches every request.
type WildcardMatcher struct{}

func (*WildcardMatcher) Type() string { return TypeWildcard }

func (*WildcardMatcher) BuildMatcher() (RequestMatcher, error) {
	return &matcherFunc{
		explain: "for anything",
		matches: func(context.Context, *traffic.Request) (bool, error) {
			return true, nil
		},
	}, nil
}

// MethodMatcher matches requests using one exact HTTP verb.
type MethodMatcher struct {
	Method string `json:"method"`
}

func (*MethodMatcher) Type() string { return TypeMethod }

func (d *MethodMatcher) validate() error {
	if d.Method == "" {
		return errors.New("method is required")
	}
	return nil
}

func (d *MethodMatcher) BuildMatcher() (RequestMatcher, error) {
	if err := d.validate(); err != nil {
		return nil, err
	}
	method := d.Method
	return &matcherFunc{
		explain: fmt.Sprintf("making %ss", method),
		matches: func(_ context.Context, req *traffic.Request) (bool, error) {
			return req.Method == method, nil
		},
	}, nil
}

// SimplePathMatcher matches requests whose URL equals the configured path
// after both sides pass through the shared canonicalization, so "/foo" and
// "/foo/" are the same location.
type SimplePathMatcher struct {
	Path string `json:"path"`
}

func (*SimplePathMatcher) Type() string { return TypeSimplePath }

func (d *SimplePathMatcher) validate() error {
	if d.Path == "" {
		return errors.New("path is required")
	}
	return nil
}

func (d *SimplePathMatcher) BuildMatcher() (RequestMatcher, error) {
	if err := d.validate(); err != nil {
		return nil, err
	}

	// Absolute URLs are reduced to their path component; the matcher is
	// host-agnostic because incoming server requests carry no host in the URL.
	target := d.Path
	if strings.Contains(target, "://") {
		if u, err := url.Parse(target); err == nil {
			target = u.Path
		}
	}
	target = urlnorm.Path(target)

	return &matcherFunc{
		explain: "for " + d.Path,
		matches: func(_ context.Context, req *traffic.Request) (bool, error) {
			return urlnorm.Path(req.URL.Path) == target, nil
		},
	}, nil
}

// RegexPathMatcher matches the normalized request URL against a regular
// expression. Only the pattern source is stored, so the descriptor survives
// serialization; the regex is recompiled on every build.
type RegexPathMatcher struct {
	Pattern string `json:"pattern"`
}

func (*RegexPathMatcher) Type() string { return TypeRegexPath }

func (d *RegexPathMatcher) validate() error {
	if d.Pattern == "" {
		return errors.New("pattern is required")
	}
	return nil
}

func (d *RegexPathMatcher) BuildMatcher() (RequestMatcher, error) {
	if err := d.validate(); err != nil {
		return nil, err
	}
	re, err := regexp.Compile(d.Pattern)
	if err != nil {
		return nil, fmt.Errorf("compiling path pattern: %w", err)
	}
	return &matcherFunc{
		explain: fmt.Sprintf("for paths matching /%s/", d.Pattern),
		matches: func(_ context.Context, req *traffic.Request) (bool, error) {
			target := urlnorm.Path(req.URL.Path)
			if q := req.URL.RawQuery; q != "" {
				target += "?" + q
			}
			return re.MatchString(target), nil
		},
	}, nil
}

// HeaderMatcher matches requests carrying all of the configured header
// name/value pairs. Names are folded to lower case; the request may carry
// more headers than configured.
type HeaderMatcher struct {
	Headers map[string]string `json:"headers"`
}

func (*HeaderMatcher) Type() string { return TypeHeader }

func (d *HeaderMatcher) validate() error {
	if len(d.Headers) == 0 {
		return errors.New("at least one header is required")
	}
	return nil
}

func (d *HeaderMatcher) BuildMatcher() (RequestMatcher, error) {
	if err := d.validate(); err != nil {
		return nil, err
	}
	want := make(map[string]string, len(d.Headers))
	for name, value := range d.Headers {
		want[strings.ToLower(name)] = value
	}
	return &matcherFunc{
		explain: fmt.Sprintf("with headers including %v", d.Headers),
		matches: func(_ context.Context, req *traffic.Request) (bool, error) {
			for name, value := range want {
				if !slices.Contains(req.Headers.Values(name), value) {
					return false, nil
				}
			}
			return true, nil
		},
	}, nil
}

// QueryMatcher matches requests whose decoded query string contains all the
// configured parameters.
type QueryMatcher struct {
	Params map[string]string `json:"params"`
}

func (*QueryMatcher) Type() string { return TypeQuery }

func (d *QueryMatcher) validate() error {
	if len(d.Params) == 0 {
		return errors.New("at least one query parameter is required")
	}
	return nil
}

func (d *QueryMatcher) BuildMatcher() (RequestMatcher, error) {
	if err := d.validate(); err != nil {
		return nil, err
	}
	want := d.Params
	return &matcherFunc{
		explain: fmt.Sprintf("with query parameters including %v", d.Params),
		matches: func(_ context.Context, req *traffic.Request) (bool, error) {
			query := req.URL.Query()
			for name, value := range want {
				if !slices.Contains(query[name], value) {
					return false, nil
				}
			}
			return true, nil
		},
	}, nil
}
