// Package http serves the read-only dashboard: a JSON API over the store
// plus one embedded HTML page that renders it. Handlers never write to the
// store; the pipeline CLIs own all mutation.
package http
