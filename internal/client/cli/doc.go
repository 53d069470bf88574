// Package cli provides the interactive farmsync shell.
//
// NewApp wires the local store, the mutation tracker, the gRPC client and the
// sync orchestrator together. App.Run starts background sync and a
// connectivity watcher and then reads commands until the user exits:
//
//	register | login | logout
//	tables
//	add <table> [name=value ...]
//	edit <table> <id> name=value ...
//	delete <table> <id>
//	list <table>
//	show <table> <id>
//	plans
//	sync | status | backup
//	help | exit
//
// Edits are written to the local store first and work without a server.
// The prompt shows whether the server is currently reachable.
package cli
