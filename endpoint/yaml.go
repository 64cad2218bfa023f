package endpoint

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/goccy/go-yaml"
)

// File is the YAML layout of an endpoint registry:
//
//	endpoints:
//	  - name: getUser
//	    path: /users/{id}
//	    provides: [{type: User, id: $args.id}]
//	    keepUnusedFor: 30s
//	  - name: updateUser
//	    kind: mutation
//	    method: PATCH
//	    path: /users/{id}
//	    omitPathParams: true
//	    invalidates: [{type: User, id: $args.id}]
type File struct {
	Endpoints []FileEndpoint `yaml:"endpoints"`
}

// FileEndpoint is one endpoint in a registry file.
type FileEndpoint struct {
	Name           string        `yaml:"name"`
	Kind           string        `yaml:"kind,omitempty"`
	Method         string        `yaml:"method,omitempty"`
	Path           string        `yaml:"path"`
	Query          []string      `yaml:"query,omitempty"`
	Body           string        `yaml:"body,omitempty"`
	OmitPathParams bool          `yaml:"omitPathParams,omitempty"`
	Provides       []TagTemplate `yaml:"provides,omitempty"`
	Invalidates    []TagTemplate `yaml:"invalidates,omitempty"`
	KeepUnusedFor  string        `yaml:"keepUnusedFor,omitempty"`
	StaleTime      string        `yaml:"staleTime,omitempty"`
	Anonymous      bool          `yaml:"anonymous,omitempty"`
}

// Definition converts the file entry.
func (f FileEndpoint) Definition() (Definition, error) {
	kind, err := ParseKind(f.Kind)
	if err != nil {
		return Definition{}, fmt.Errorf("%s: %w", f.Name, err)
	}
	for _, t := range append(append([]TagTemplate(nil), f.Provides...), f.Invalidates...) {
		if err := t.Validate(); err != nil {
			return Definition{}, fmt.Errorf("%s: %w", f.Name, err)
		}
	}
	keep, err := parseDuration(f.KeepUnusedFor)
	if err != nil {
		return Definition{}, fmt.Errorf("%w: %s: keepUnusedFor: %v", ErrInvalidDefinition, f.Name, err)
	}
	stale, err := parseDuration(f.StaleTime)
	if err != nil {
		return Definition{}, fmt.Errorf("%w: %s: staleTime: %v", ErrInvalidDefinition, f.Name, err)
	}

	return Definition{
		Name:           f.Name,
		Kind:           kind,
		Method:         f.Method,
		Path:           f.Path,
		Query:          f.Query,
		BodyPath:       f.Body,
		OmitPathParams: f.OmitPathParams,
		Provides:       Templates(f.Provides...),
		Invalidates:    Templates(f.Invalidates...),
		KeepUnusedFor:  keep,
		StaleTime:      stale,
		Anonymous:      f.Anonymous,
	}, nil
}

// LoadYAML reads a registry file. Unknown fields are rejected.
func LoadYAML(r io.Reader) (*Registry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read endpoints: %w", err)
	}

	var file File
	if err := yaml.UnmarshalWithOptions(data, &file, yaml.DisallowUnknownField()); err != nil {
		return nil, fmt.Errorf("parse endpoints: %w", err)
	}

	defs := make([]Definition, 0, len(file.Endpoints))
	for _, fe := range file.Endpoints {
		d, err := fe.Definition()
		if err != nil {
			return nil, err
		}
		defs = append(defs, d)
	}
	return NewRegistry(defs...)
}

// LoadFile reads a registry file from disk.
func LoadFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open endpoints: %w", err)
	}
	defer f.Close()
	return LoadYAML(f)
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
