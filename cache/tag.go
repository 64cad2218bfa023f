package cache

import (
	"fmt"
	"sort"
	"strings"
)

// Tag labels a class (type-wide) or an instance (item-scoped) of server-side
// resource. Entries declare the tags they provide; mutations declare the tags
// they invalidate.
type Tag struct {
	Type string `json:"type" yaml:"type"`
	ID   string `json:"id,omitempty" yaml:"id,omitempty"`
}

// TypeTag returns a type-wide tag.
func TypeTag(typ string) Tag {
	return Tag{Type: typ}
}

// ItemTag returns an item-scoped tag. The id is rendered with fmt.Sprint, so
// ItemTag("User", 7) and ItemTag("User", "7") are the same tag.
func ItemTag(typ string, id any) Tag {
	return Tag{Type: typ, ID: fmt.Sprint(id)}
}

// IsItem reports whether the tag is item-scoped.
func (t Tag) IsItem() bool {
	return t.ID != ""
}

// String renders the tag as Type or Type:ID.
func (t Tag) String() string {
	if t.ID == "" {
		return t.Type
	}
	return t.Type + ":" + t.ID
}

// ParseTag parses the String form of a tag.
func ParseTag(s string) Tag {
	typ, id, _ := strings.Cut(s, ":")
	return Tag{Type: typ, ID: id}
}

// normalizeTags drops empty tags, removes duplicates, and sorts.
func normalizeTags(tags []Tag) []Tag {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[Tag]struct{}, len(tags))
	out := make([]Tag, 0, len(tags))
	for _, t := range tags {
		if t.Type == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].ID < out[j].ID
	})
	return out
}
