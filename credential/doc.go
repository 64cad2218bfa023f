// Package credential stores the tokens the client authenticates with.
//
// A Store is a small key-value store ("access", "refresh"). Two backends
// ship with the package:
//   - memory: process-local, lost on exit
//   - sqlite: a single-file database that survives restarts
//
// Backends are created by name through a Registry so the CLI and
// configuration can select one without importing its implementation:
//
//	store, err := credential.DefaultRegistry.Create("sqlite", map[string]any{
//	    "path": "${HOME}/.querycache/credentials.db",
//	})
//
// Paths are expanded with ExpandEnvStrict, which fails on unset variables.
// Implementations never log credential values.
package credential
