package endpoint

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/jonwraymond/querycache/cache"
)

// Tag is a cache tag.
type Tag = cache.Tag

// TagsFunc computes tags from a successful result and the canonical args.
type TagsFunc func(result, args json.RawMessage) []Tag

// Resolve calls f; a nil TagsFunc yields no tags.
func (f TagsFunc) Resolve(result, args json.RawMessage) []Tag {
	if f == nil {
		return nil
	}
	return f(result, args)
}

// Tags returns a TagsFunc that always yields tags.
func Tags(tags ...Tag) TagsFunc {
	return func(json.RawMessage, json.RawMessage) []Tag {
		return append([]Tag(nil), tags...)
	}
}

// ArgItemTag tags by an id taken from args at path. An empty path uses args
// itself, for endpoints called with a bare id.
func ArgItemTag(typ, path string) TagsFunc {
	return func(_, args json.RawMessage) []Tag {
		return itemTags(typ, lookup(args, path))
	}
}

// ResultItemTags tags by ids taken from the result at path. Array values
// fan out, so "#.id" tags every element of a list.
func ResultItemTags(typ, path string) TagsFunc {
	return func(result, _ json.RawMessage) []Tag {
		return itemTags(typ, lookup(result, path))
	}
}

// Combine concatenates the tags of fns.
func Combine(fns ...TagsFunc) TagsFunc {
	return func(result, args json.RawMessage) []Tag {
		var out []Tag
		for _, fn := range fns {
			out = append(out, fn.Resolve(result, args)...)
		}
		return out
	}
}

// TagTemplate is the declarative form of a tag. ID is one of:
//   - empty: a type-wide tag
//   - "$args": the args value itself
//   - "$args.<path>" or "$result.<path>": a gjson path; arrays fan out
//   - anything else: a literal id
//
// A template whose path resolves to nothing yields no tag.
type TagTemplate struct {
	Type string `json:"type" yaml:"type"`
	ID   string `json:"id,omitempty" yaml:"id,omitempty"`
}

// Validate reports whether the template is well formed.
func (t TagTemplate) Validate() error {
	if strings.TrimSpace(t.Type) == "" {
		return fmt.Errorf("%w: tag type is required", ErrInvalidDefinition)
	}
	if strings.HasPrefix(t.ID, "$") && t.ID != "$args" && !strings.HasPrefix(t.ID, "$args.") && !strings.HasPrefix(t.ID, "$result.") {
		return fmt.Errorf("%w: tag %s: unsupported reference %q", ErrInvalidDefinition, t.Type, t.ID)
	}
	return nil
}

// String renders the template as Type or Type:ID.
func (t TagTemplate) String() string {
	if t.ID == "" {
		return t.Type
	}
	return t.Type + ":" + t.ID
}

// Templates compiles tag templates into a TagsFunc.
func Templates(ts ...TagTemplate) TagsFunc {
	if len(ts) == 0 {
		return nil
	}
	fns := make([]TagsFunc, 0, len(ts))
	for _, t := range ts {
		fns = append(fns, t.compile())
	}
	return Combine(fns...)
}

func (t TagTemplate) compile() TagsFunc {
	switch {
	case t.ID == "":
		return Tags(cache.TypeTag(t.Type))
	case t.ID == "$args":
		return ArgItemTag(t.Type, "")
	case strings.HasPrefix(t.ID, "$args."):
		return ArgItemTag(t.Type, strings.TrimPrefix(t.ID, "$args."))
	case strings.HasPrefix(t.ID, "$result."):
		return ResultItemTags(t.Type, strings.TrimPrefix(t.ID, "$result."))
	default:
		return Tags(cache.ItemTag(t.Type, t.ID))
	}
}

func lookup(doc json.RawMessage, path string) gjson.Result {
	if len(doc) == 0 {
		return gjson.Result{}
	}
	if path == "" {
		return gjson.ParseBytes(doc)
	}
	return gjson.GetBytes(doc, path)
}

func itemTags(typ string, r gjson.Result) []Tag {
	if !r.Exists() || r.Type == gjson.Null {
		return nil
	}
	if r.IsArray() {
		var out []Tag
		for _, item := range r.Array() {
			out = append(out, itemTags(typ, item)...)
		}
		return out
	}
	if r.IsObject() || r.String() == "" {
		return nil
	}
	return []Tag{cache.ItemTag(typ, r.String())}
}
