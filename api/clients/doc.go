// Package clients provides Go clients for the family location HTTP API,
// plus mocks for testing code that depends on them.
package clients
