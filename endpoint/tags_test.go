package endpoint

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/jonwraymond/querycache/cache"
)

func TestTagsFunc_NilResolvesToNothing(t *testing.T) {
	var f TagsFunc
	if got := f.Resolve(nil, nil); got != nil {
		t.Errorf("Resolve() = %v, want nil", got)
	}
}

func TestArgItemTag(t *testing.T) {
	tests := []struct {
		name string
		path string
		args string
		want []Tag
	}{
		{"object field", "id", `{"id":7}`, []Tag{cache.ItemTag("User", 7)}},
		{"nested field", "user.id", `{"user":{"id":"abc"}}`, []Tag{cache.ItemTag("User", "abc")}},
		{"scalar args", "", `7`, []Tag{cache.ItemTag("User", 7)}},
		{"absent", "id", `{}`, nil},
		{"null", "id", `{"id":null}`, nil},
		{"object value", "", `{"id":7}`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ArgItemTag("User", tt.path).Resolve(nil, json.RawMessage(tt.args))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Resolve() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResultItemTags_ArraysFanOut(t *testing.T) {
	result := json.RawMessage(`[{"id":1},{"id":2},{"name":"no id"}]`)

	got := ResultItemTags("TourPlan", "#.id").Resolve(result, nil)
	want := []Tag{cache.ItemTag("TourPlan", 1), cache.ItemTag("TourPlan", 2)}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Resolve() = %v, want %v", got, want)
	}
}

func TestCombine(t *testing.T) {
	f := Combine(Tags(cache.TypeTag("TourPlan")), ResultItemTags("TourPlan", "id"), nil)

	got := f.Resolve(json.RawMessage(`{"id":4}`), nil)
	want := []Tag{cache.TypeTag("TourPlan"), cache.ItemTag("TourPlan", 4)}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Resolve() = %v, want %v", got, want)
	}
}

func TestTags_ReturnsCopy(t *testing.T) {
	f := Tags(cache.TypeTag("Chat"))
	first := f.Resolve(nil, nil)
	first[0].Type = "Mutated"

	if got := f.Resolve(nil, nil); got[0].Type != "Chat" {
		t.Errorf("Resolve() after caller mutation = %v", got)
	}
}

func TestTemplates(t *testing.T) {
	f := Templates(
		TagTemplate{Type: "User"},
		TagTemplate{Type: "User", ID: "$args.id"},
		TagTemplate{Type: "Agency", ID: "$result.agency.id"},
		TagTemplate{Type: "Discount", ID: "3"},
	)

	got := f.Resolve(json.RawMessage(`{"agency":{"id":9}}`), json.RawMessage(`{"id":7}`))
	want := []Tag{
		cache.TypeTag("User"),
		cache.ItemTag("User", 7),
		cache.ItemTag("Agency", 9),
		cache.ItemTag("Discount", 3),
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Resolve() = %v, want %v", got, want)
	}

	if Templates() != nil {
		t.Error("Templates() with no templates should be nil")
	}
}

func TestTagTemplate_Validate(t *testing.T) {
	tests := []struct {
		tmpl TagTemplate
		ok   bool
	}{
		{TagTemplate{Type: "User"}, true},
		{TagTemplate{Type: "User", ID: "$args"}, true},
		{TagTemplate{Type: "User", ID: "$args.id"}, true},
		{TagTemplate{Type: "User", ID: "$result.id"}, true},
		{TagTemplate{Type: "User", ID: "42"}, true},
		{TagTemplate{Type: ""}, false},
		{TagTemplate{Type: "User", ID: "$result"}, false},
		{TagTemplate{Type: "User", ID: "$argsid"}, false},
		{TagTemplate{Type: "User", ID: "$env.ID"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.tmpl.String(), func(t *testing.T) {
			err := tt.tmpl.Validate()
			if tt.ok && err != nil {
				t.Errorf("Validate() error = %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidDefinition) {
				t.Errorf("Validate() error = %v, want ErrInvalidDefinition", err)
			}
		})
	}
}
