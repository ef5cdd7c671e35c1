// Package web declares the extractor marker types recognized by the vespera
// generator. Handler signatures wrap their parameters in these types to state
// where each value comes from; the generator matches them by name and the
// service's router populates them at request time.
package web

// Path extracts a value from the URL path. When T is an anonymous struct its
// fields pair positionally with the route's path placeholders.
type Path[T any] struct {
	Value T
}

// Query extracts a value from the query string. A struct type expands to one
// query parameter per field.
type Query[T any] struct {
	Value T
}

// Header extracts a single named header value.
type Header[T any] struct {
	Value T
}

// TypedHeader extracts a well-known header by its canonical name. The
// generated parameter name is derived from the binding name with underscores
// converted to hyphens, and the documented schema is always a plain string.
type TypedHeader[T any] struct {
	Value T
}

// JSON marks the request body. It is not documented as a parameter; the
// generator turns it into the operation's requestBody instead.
type JSON[T any] struct {
	Value T
}
