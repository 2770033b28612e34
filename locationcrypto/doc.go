// Package locationcrypto implements the encryption subsystem for shared
// family locations: deterministic per-family key derivation and authenticated
// encryption of a small structured location payload.
//
// A family's key is a pure function of its stable identifier, derived with
// HKDF-SHA256 under fixed application constants. Any device that knows the
// identifier recomputes the identical 256-bit key on demand; keys are never
// persisted.
//
// Location readings are serialized to canonical JSON and sealed with
// AES-256-GCM under a fresh random 12-byte IV per call. The resulting
// envelope is a pair of base64 strings (ciphertext, IV) suitable for storage
// as two fields of a backend document and transmission over any text-safe
// channel. GCM's integrity tag guarantees that decryption under a wrong key
// or of a tampered envelope is observably rejected.
//
// All operations are stateless, synchronous pure transformations (aside from
// entropy consumption during encryption) and are safe for concurrent use.
package locationcrypto
