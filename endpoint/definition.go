package endpoint

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/jonwraymond/querycache/fingerprint"
	"github.com/jonwraymond/querycache/transport"
)

// Kind distinguishes cached reads from writes.
type Kind int

const (
	// KindQuery results are cached and provide tags.
	KindQuery Kind = iota
	// KindMutation results are never cached; success invalidates tags.
	KindMutation
)

// String returns "query" or "mutation".
func (k Kind) String() string {
	switch k {
	case KindQuery:
		return "query"
	case KindMutation:
		return "mutation"
	default:
		return "unknown"
	}
}

// ParseKind parses the String form of a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "query":
		return KindQuery, nil
	case "mutation":
		return KindMutation, nil
	}
	return 0, fmt.Errorf("%w: unknown kind %q", ErrInvalidDefinition, s)
}

// Definition declares one API operation.
type Definition struct {
	Name string
	Kind Kind

	// Method defaults to GET for queries and POST for mutations.
	Method string

	// Path is relative to the adapter's base URL. {name} placeholders are
	// filled from args by gjson path; scalar args fill every placeholder.
	Path string

	// Query lists arg paths sent as query parameters, named after the last
	// path segment. Absent and null args are skipped.
	Query []string

	// BodyPath selects the part of args sent as the body. Empty sends all
	// of args. Bodies are only sent for POST, PUT and PATCH.
	BodyPath string

	// OmitPathParams removes args consumed by Path placeholders from the body.
	OmitPathParams bool

	// Provides computes the tags a query result provides.
	Provides TagsFunc

	// Invalidates computes the tags a successful mutation invalidates.
	Invalidates TagsFunc

	// KeepUnusedFor overrides the client's grace period for this endpoint.
	KeepUnusedFor time.Duration

	// StaleTime overrides the client's stale time for this endpoint.
	StaleTime time.Duration

	// Anonymous requests are sent without credentials.
	Anonymous bool
}

var validMethods = map[string]bool{
	http.MethodGet: true, http.MethodHead: true, http.MethodPost: true, http.MethodPut: true,
	http.MethodPatch: true, http.MethodDelete: true, http.MethodOptions: true,
}

var placeholder = regexp.MustCompile(`\{([^{}]+)\}`)

// Validate reports whether d is usable.
func (d *Definition) Validate() error {
	if err := fingerprint.ValidateEndpoint(d.Name); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}
	if d.Kind != KindQuery && d.Kind != KindMutation {
		return fmt.Errorf("%w: %s: unknown kind %d", ErrInvalidDefinition, d.Name, d.Kind)
	}
	if d.Method != "" && !validMethods[strings.ToUpper(d.Method)] {
		return fmt.Errorf("%w: %s: unsupported method %q", ErrInvalidDefinition, d.Name, d.Method)
	}
	if strings.TrimSpace(d.Path) == "" {
		return fmt.Errorf("%w: %s: path is required", ErrInvalidDefinition, d.Name)
	}
	if d.Kind == KindQuery && d.Invalidates != nil {
		return fmt.Errorf("%w: %s: queries cannot invalidate tags", ErrInvalidDefinition, d.Name)
	}
	if d.Kind == KindMutation && d.Provides != nil {
		return fmt.Errorf("%w: %s: mutations cannot provide tags", ErrInvalidDefinition, d.Name)
	}
	if d.KeepUnusedFor < 0 || d.StaleTime < 0 {
		return fmt.Errorf("%w: %s: negative duration", ErrInvalidDefinition, d.Name)
	}
	return nil
}

// HTTPMethod returns the effective method.
func (d *Definition) HTTPMethod() string {
	if d.Method != "" {
		return strings.ToUpper(d.Method)
	}
	if d.Kind == KindMutation {
		return http.MethodPost
	}
	return http.MethodGet
}

// BuildRequest turns canonical args into a transport request.
func (d *Definition) BuildRequest(args json.RawMessage) (*transport.Request, error) {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	parsed := gjson.ParseBytes(args)
	method := d.HTTPMethod()

	path, consumed, err := d.expandPath(parsed)
	if err != nil {
		return nil, err
	}
	req := &transport.Request{Method: method, Path: path}

	for _, q := range d.Query {
		r := parsed.Get(q)
		if !r.Exists() || r.Type == gjson.Null {
			continue
		}
		if req.Query == nil {
			req.Query = make(url.Values)
		}
		name := q[strings.LastIndex(q, ".")+1:]
		if r.IsArray() {
			for _, item := range r.Array() {
				req.Query.Add(name, item.String())
			}
			continue
		}
		req.Query.Set(name, r.String())
	}

	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		body, err := d.body(args, parsed, consumed)
		if err != nil {
			return nil, err
		}
		req.Body = body
	}

	return req, nil
}

func (d *Definition) expandPath(args gjson.Result) (string, []string, error) {
	scalar := !args.IsObject() && !args.IsArray()

	var consumed []string
	var missing string
	path := placeholder.ReplaceAllStringFunc(d.Path, func(m string) string {
		name := m[1 : len(m)-1]
		var r gjson.Result
		if scalar {
			r = args
		} else {
			r = args.Get(name)
			consumed = append(consumed, name)
		}
		if !r.Exists() || r.Type == gjson.Null || r.IsObject() || r.IsArray() {
			if missing == "" {
				missing = name
			}
			return m
		}
		return url.PathEscape(r.String())
	})
	if missing != "" {
		return "", nil, fmt.Errorf("%w: %s: %q", ErrMissingParam, d.Name, missing)
	}
	return path, consumed, nil
}

func (d *Definition) body(args json.RawMessage, parsed gjson.Result, consumed []string) (json.RawMessage, error) {
	if d.BodyPath != "" {
		r := parsed.Get(d.BodyPath)
		if !r.Exists() {
			return json.RawMessage("null"), nil
		}
		return json.RawMessage(r.Raw), nil
	}
	if !d.OmitPathParams || len(consumed) == 0 || !parsed.IsObject() {
		return args, nil
	}

	body := append([]byte(nil), args...)
	for _, p := range consumed {
		var err error
		body, err = sjson.DeleteBytes(body, p)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: strip %q: %v", ErrInvalidDefinition, d.Name, p, err)
		}
	}
	return body, nil
}

// ProvidedTags evaluates Provides. It is nil-safe.
func (d *Definition) ProvidedTags(result, args json.RawMessage) []Tag {
	return d.Provides.Resolve(result, args)
}

// InvalidatedTags evaluates Invalidates. It is nil-safe.
func (d *Definition) InvalidatedTags(result, args json.RawMessage) []Tag {
	return d.Invalidates.Resolve(result, args)
}

// String renders "name (kind METHOD path)".
func (d *Definition) String() string {
	return fmt.Sprintf("%s (%s %s %s)", d.Name, d.Kind, d.HTTPMethod(), d.Path)
}
