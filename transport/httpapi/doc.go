// Package httpapi exposes a goReset engine over JSON HTTP.
//
// Routes are served by a gorilla/mux router wrapped in gorilla/handlers
// recovery and access logging. Password reset endpoints always answer with
// the generic message; the found bit is serialized only when
// [Options.ExposeFound] is set. Backend failures map to 503 with a fixed
// body so they look the same for every identifier.
package httpapi
