// Package cli provides the session guard's command-line front end.
//
// It wires configuration, the persisted web storage, the backend client and
// the session guard, then either runs a single command given on the command
// line or an interactive REPL:
//
//	guard -u https://project.example.co -k <public key> check
//	guard protect dashboard.html
//	guard            # interactive
//
// Each run starts a new session scope, the way a new browser tab would; the
// local scope (and the signed-in session in it) survives between runs.
package cli
