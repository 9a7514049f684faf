// Package binder decodes HTTP requests into typed structs for
// handler.Wrap. JSON reads the body, Query reads `query` tags and Path reads
// `path` tags through a router-specific extractor. Each returns a sentinel
// error wrapped with the offending field.
package binder
