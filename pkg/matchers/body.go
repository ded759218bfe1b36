package matchers

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"slices"

	"github.com/reqtrap/reqtrap/pkg/traffic"
)

// FormDataMatcher matches url-encoded form submissions whose decoded fields
// contain all the configured name/value pairs. Requests with any other
// content type never match. Reading the body makes this matcher deferred:
// the composite awaits it alongside the cheap ones.
type FormDataMatcher struct {
	FormData map[string]string `json:"formData"`
}

func (*FormDataMatcher) Type() string { return TypeFormData }

func (d *FormDataMatcher) validate() error {
	if len(d.FormData) == 0 {
		return errors.New("at least one form field is required")
	}
	return nil
}

func (d *FormDataMatcher) BuildMatcher() (RequestMatcher, error) {
	if err := d.validate(); err != nil {
		return nil, err
	}
	want := d.FormData
	return &matcherFunc{
		explain: fmt.Sprintf("with form data including %v", d.FormData),
		matches: func(_ context.Context, req *traffic.Request) (bool, error) {
			if !isFormEncoded(req.Headers.Get("Content-Type")) {
				return false, nil
			}
			form, err := req.BodyForm()
			if err != nil {
				return false, fmt.Errorf("parsing form body: %w", err)
			}
			for name, value := range want {
				if !slices.Contains(form[name], value) {
					return false, nil
				}
			}
			return true, nil
		},
	}, nil
}

func isFormEncoded(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/x-www-form-urlencoded"
}

// RawBodyMatcher matches requests whose decoded text body equals the
// configured string exactly. Deferred for the same reason as FormDataMatcher.
type RawBodyMatcher struct {
	Body string `json:"body"`
}

func (*RawBodyMatcher) Type() string { return TypeRawBody }

func (d *RawBodyMatcher) BuildMatcher() (RequestMatcher, error) {
	want := d.Body
	return &matcherFunc{
		explain: fmt.Sprintf("with body '%s'", d.Body),
		matches: func(_ context.Context, req *traffic.Request) (bool, error) {
			text, err := req.BodyText()
			if err != nil {
				return false, fmt.Errorf("reading body: %w", err)
			}
			return text == want, nil
		},
	}, nil
}
