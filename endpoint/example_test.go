package endpoint_test

import (
	"encoding/json"
	"fmt"

	"github.com/jonwraymond/querycache/endpoint"
)

func ExampleDefinition_BuildRequest() {
	update := endpoint.Definition{
		Name:           "updateUser",
		Kind:           endpoint.KindMutation,
		Method:         "PATCH",
		Path:           "/users/{id}",
		OmitPathParams: true,
		Invalidates:    endpoint.ArgItemTag("User", "id"),
	}

	args := json.RawMessage(`{"email":"new@example.com","id":7}`)
	req, err := update.BuildRequest(args)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(req.Method, req.Path)
	fmt.Println(string(req.Body.(json.RawMessage)))
	fmt.Println(update.InvalidatedTags(nil, args))
	// Output:
	// PATCH /users/7
	// {"email":"new@example.com"}
	// [User:7]
}

func ExampleTemplates() {
	provides := endpoint.Templates(
		endpoint.TagTemplate{Type: "TourPlan"},
		endpoint.TagTemplate{Type: "TourPlan", ID: "$result.#.id"},
	)

	fmt.Println(provides.Resolve(json.RawMessage(`[{"id":1},{"id":2}]`), nil))
	// Output:
	// [TourPlan TourPlan:1 TourPlan:2]
}
