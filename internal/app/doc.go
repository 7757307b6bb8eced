// Package app wires application dependencies for the CLI.
//
// NewWire builds the stores, relay client and the services that work before
// an identity is unlocked. Wire.Open unlocks the identity and builds the
// session manager and message pump on top of them, returning a Node.
package app
