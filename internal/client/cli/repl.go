package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/notekeeper/internal/client/client"
	"github.com/dmitrijs2005/notekeeper/internal/common"
)

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Signup(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	ChangePassword(ctx context.Context) error
	List(ctx context.Context) error
	Show(ctx context.Context, args []string) error
	Add(ctx context.Context) error
	Edit(ctx context.Context, args []string) error
	Delete(ctx context.Context, args []string) error
	Search(ctx context.Context, args []string) error
}

var errUsage = errors.New("usage")

// runREPL reads one command per line from reader and dispatches it to a.
// The loop exits on EOF or when the user types "exit" or "quit".
//
//	Not logged in:
//	  - help           show available commands
//	  - signup         create an account
//	  - login          authenticate
//	  - exit | quit    leave the program
//
//	Logged in:
//	  - list | l       list visible notes
//	  - show <id>      print one note
//	  - add            create a note
//	  - edit <id>      change title and content
//	  - delete <id>    remove a note
//	  - search <text>  find notes by title or content
//	  - passwd         change the password (ends the session)
//	  - logout         forget the session
//
// Command errors are printed and the loop carries on.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader, w io.Writer) {
	for {
		fmt.Fprintf(w, "nk %s> ", statusFn())

		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			fmt.Fprintln(w)
			return
		}

		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}

		cmd, args := parts[0], parts[1:]

		var cmdErr error
		switch cmd {
		case "help":
			if a.isLoggedIn() {
				fmt.Fprintln(w, "Available commands: (l)ist, show <id>, add, edit <id>, delete <id>, search <text>, passwd, logout, exit")
			} else {
				fmt.Fprintln(w, "Available commands: signup, login, exit")
			}
		case "signup", "register":
			cmdErr = a.Signup(ctx)
		case "login":
			cmdErr = a.Login(ctx)
		case "logout":
			cmdErr = a.Logout(ctx)
		case "passwd":
			cmdErr = a.ChangePassword(ctx)
		case "l", "list":
			cmdErr = a.List(ctx)
		case "show":
			cmdErr = a.Show(ctx, args)
		case "add":
			cmdErr = a.Add(ctx)
		case "edit":
			cmdErr = a.Edit(ctx, args)
		case "delete", "rm":
			cmdErr = a.Delete(ctx, args)
		case "search":
			cmdErr = a.Search(ctx, args)
		case "exit", "quit":
			fmt.Fprintln(w, "Bye!")
			return
		default:
			fmt.Fprintln(w, "Unknown command:", cmd)
		}

		if cmdErr != nil {
			fmt.Fprintln(w, describeError(cmd, cmdErr))
		}
	}
}

// describeError turns a command failure into one line for the user.
func describeError(cmd string, err error) string {
	var apiErr *client.APIError
	switch {
	case errors.Is(err, errUsage):
		return "Usage: " + usage[cmd]
	case errors.Is(err, client.ErrNotLoggedIn):
		return "Please login first."
	case errors.Is(err, common.ErrSessionExpired):
		return "Session expired. Please login again."
	case errors.Is(err, client.ErrUnavailable):
		return "Server unavailable. Please check that it is running."
	case errors.As(err, &apiErr):
		return "✗ " + apiErr.Error()
	}
	var ve *common.ValidationError
	if errors.As(err, &ve) {
		return "✗ " + ve.Msg
	}
	return "Error: " + err.Error()
}

var usage = map[string]string{
	"show":   "show <id>",
	"edit":   "edit <id>",
	"delete": "delete <id>",
	"rm":     "delete <id>",
	"search": "search <text>",
}
