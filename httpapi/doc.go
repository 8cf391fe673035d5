// Package httpapi exposes the authentication engine over a REST surface
// built on gin. Every response uses a single envelope shape:
//
//	{"status": "...", "code": "...", "message": "...", "data": ..., "timestamp": "..."}
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authentication logic itself — all decisions are delegated to the
// engine, and engine errors are mapped to stable response codes without ever
// leaking their raw text.
package httpapi
