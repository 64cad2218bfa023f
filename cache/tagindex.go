package cache

import (
	"sort"

	"github.com/jonwraymond/querycache/fingerprint"
)

// typeWide is the bucket id for tags without an ID.
const typeWide = ""

// TagIndex maps tags to the set of keys that currently provide them.
//
// Resolution rules:
//   - an item tag {T, id} matches keys that provided exactly {T, id}
//   - a type tag {T} matches every key that provided any tag of type T
//
// TagIndex is not safe for concurrent use. Store serializes access to it.
type TagIndex struct {
	buckets map[string]map[string]map[fingerprint.Key]struct{} // type -> id -> keys
	byKey   map[fingerprint.Key][]Tag
}

// NewTagIndex creates an empty tag index.
func NewTagIndex() *TagIndex {
	return &TagIndex{
		buckets: make(map[string]map[string]map[fingerprint.Key]struct{}),
		byKey:   make(map[fingerprint.Key][]Tag),
	}
}

// Index replaces the bucket memberships of key with tags.
func (x *TagIndex) Index(key fingerprint.Key, tags []Tag) {
	x.Remove(key)

	tags = normalizeTags(tags)
	if len(tags) == 0 {
		return
	}

	for _, t := range tags {
		ids, ok := x.buckets[t.Type]
		if !ok {
			ids = make(map[string]map[fingerprint.Key]struct{})
			x.buckets[t.Type] = ids
		}
		keys, ok := ids[t.ID]
		if !ok {
			keys = make(map[fingerprint.Key]struct{})
			ids[t.ID] = keys
		}
		keys[key] = struct{}{}
	}
	x.byKey[key] = tags
}

// Remove drops key from every bucket. Empty buckets are deleted.
func (x *TagIndex) Remove(key fingerprint.Key) {
	tags, ok := x.byKey[key]
	if !ok {
		return
	}
	delete(x.byKey, key)

	for _, t := range tags {
		ids := x.buckets[t.Type]
		keys := ids[t.ID]
		delete(keys, key)
		if len(keys) == 0 {
			delete(ids, t.ID)
		}
		if len(ids) == 0 {
			delete(x.buckets, t.Type)
		}
	}
}

// Resolve returns the sorted union of keys matching any of tags.
func (x *TagIndex) Resolve(tags ...Tag) []fingerprint.Key {
	set := make(map[fingerprint.Key]struct{})
	for _, t := range tags {
		ids, ok := x.buckets[t.Type]
		if !ok {
			continue
		}
		if t.ID != typeWide {
			for k := range ids[t.ID] {
				set[k] = struct{}{}
			}
			continue
		}
		for _, keys := range ids {
			for k := range keys {
				set[k] = struct{}{}
			}
		}
	}
	return sortedKeys(set)
}

// Tags returns the tags key currently provides.
func (x *TagIndex) Tags(key fingerprint.Key) []Tag {
	tags := x.byKey[key]
	if len(tags) == 0 {
		return nil
	}
	out := make([]Tag, len(tags))
	copy(out, tags)
	return out
}

// Len returns the number of indexed keys.
func (x *TagIndex) Len() int {
	return len(x.byKey)
}

func sortedKeys(set map[fingerprint.Key]struct{}) []fingerprint.Key {
	if len(set) == 0 {
		return nil
	}
	out := make([]fingerprint.Key, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
