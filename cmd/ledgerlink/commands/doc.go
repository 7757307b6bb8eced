// Package commands defines the ledgerlink CLI and wires dependencies for subcommands.
//
// Commands
//
//   - init           Create the local identity (name, group, signing key)
//   - fingerprint    Print the identity fingerprint
//   - register       Publish the identity key to the relay directory
//   - send           Queue a message for a peer and post what is sendable
//   - recv           Poll the mailbox once and print delivered messages
//   - listen         Poll continuously, sweep expired sessions, serve /metrics
//   - sessions       List or prune persisted sessions
//   - demo           Run two identities against an in-process relay
//
// # Implementation
//
// The root command builds the app.Wire (stores, relay client, identity and
// membership services) before any subcommand runs. Commands that need the
// session layer unlock the identity with --passphrase and open an app.Node.
package commands
