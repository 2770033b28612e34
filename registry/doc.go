// Package registry manages family documents on top of a keyed document
// backend: family creation with fresh identifiers and human-shareable
// connection codes, code-to-family resolution, settings and approval-status
// updates, and verbatim storage of opaque encrypted location envelopes.
//
// The registry also runs an in-process fanout of approval status changes
// consumed by the HTTP watch endpoint, so a dependent's approval decision
// reaches connected family members without polling.
package registry
