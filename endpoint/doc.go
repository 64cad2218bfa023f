// Package endpoint declares the API operations a client can call.
//
// A Definition names an operation, says whether it is a query (cached,
// provides tags) or a mutation (not cached, invalidates tags), and describes
// how arguments become an HTTP request: a path template with {name}
// placeholders, optional query parameters, and for mutations a JSON body.
//
// Tags are computed by TagsFunc values from the result and the canonical
// arguments. Static tags, argument-derived item tags, and result-derived
// item tags cover the common cases:
//
//	endpoint.Definition{
//	    Name:     "getUser",
//	    Kind:     endpoint.KindQuery,
//	    Path:     "/users/{id}",
//	    Provides: endpoint.ArgItemTag("User", "id"),
//	}
//
// Registries can be declared in YAML and loaded with LoadYAML, where tag
// templates reference "$args", "$args.<path>" or "$result.<path>".
package endpoint
