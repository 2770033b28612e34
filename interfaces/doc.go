// Package interfaces defines the domain types and component contracts shared
// across the location sharing backend: family identifiers and connection
// codes, the shared family document, the keyed document storage abstraction,
// and the family registry.
//
// The encrypted location envelope is treated as opaque everywhere in this
// module except the locationcrypto package, which is the only component that
// can produce or interpret it.
package interfaces
