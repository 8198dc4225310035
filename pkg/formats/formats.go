// Package formats provides parsers for the text files a refinement run reads:
// Wavefront OBJ surfaces and per-vertex projection tables.
package formats

// Note: OBJ is implemented in obj.go
// Note: projection tables are implemented in projection.go
