// Package api defines the request and response types of the family location
// HTTP API and the FamilyProvider client abstraction over it.
package api
