package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"unicode"
)

// execIface is the command surface the REPL dispatches to. App satisfies
// it; tests use a recording stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Tables(ctx context.Context) error
	Add(ctx context.Context, args []string) error
	Edit(ctx context.Context, args []string) error
	Delete(ctx context.Context, args []string) error
	List(ctx context.Context, args []string) error
	Show(ctx context.Context, args []string) error
	Plans(ctx context.Context) error
	Sync(ctx context.Context) error
	Status(ctx context.Context) error
	Backup(ctx context.Context) error
}

// runREPL reads one command per line and dispatches it to a until EOF,
// "exit" or "quit". Handlers report their own errors to the user, so the
// returned errors are dropped here.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner, w io.Writer) {
	for {
		fmt.Fprintf(w, "farm %s> ", statusFn())
		if !scanner.Scan() {
			return
		}
		parts := splitArgs(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				fmt.Fprintln(w, "Available commands: tables, add, edit, delete, (l)ist, show, plans, sync, status, backup, logout, exit")
			} else {
				fmt.Fprintln(w, "Available commands: register, login, tables, add, edit, delete, (l)ist, show, plans, status, backup, exit")
			}

		case "register":
			_ = a.Register(ctx)

		case "login":
			_ = a.Login(ctx)

		case "logout":
			_ = a.Logout(ctx)

		case "tables":
			_ = a.Tables(ctx)

		case "add":
			_ = a.Add(ctx, args)

		case "edit":
			_ = a.Edit(ctx, args)

		case "delete", "rm":
			_ = a.Delete(ctx, args)

		case "l", "list":
			_ = a.List(ctx, args)

		case "show":
			_ = a.Show(ctx, args)

		case "plans":
			_ = a.Plans(ctx)

		case "sync":
			_ = a.Sync(ctx)

		case "status":
			_ = a.Status(ctx)

		case "backup":
			_ = a.Backup(ctx)

		case "exit", "quit":
			fmt.Fprintln(w, "Bye!")
			return

		default:
			fmt.Fprintln(w, "Unknown command:", cmd)
		}
	}
}

// splitArgs splits line on white space. Double-quoted runs are kept in one
// argument together with their quotes, so name="North Field" survives.
func splitArgs(line string) []string {
	var (
		out    []string
		cur    strings.Builder
		quoted bool
	)
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}
	for _, r := range line {
		switch {
		case r == '"':
			quoted = !quoted
			cur.WriteRune(r)
		case unicode.IsSpace(r) && !quoted:
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return out
}
