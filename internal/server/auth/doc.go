// Package auth holds the credential primitives of the server: bcrypt password
// hashing and policy, input validation, the login lockout state machine, the
// claimed-identity type, request-context helpers and the note access policy.
//
// Everything here is free of I/O. Services combine these pieces with the
// credential store.
package auth
