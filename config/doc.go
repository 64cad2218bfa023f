// Package config loads client settings from QUERYCACHE_* environment
// variables and converts them into the option structs of the other packages.
package config
