// Package api contains the HTTP handlers for the dispatch service: the
// allocation run trigger, read-only observability endpoints, and task
// status transitions. Handlers are transport only; all behavior lives in
// the engine and services they wrap.
package api
