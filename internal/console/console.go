// Package console is an interactive shell over the admin API of a
// running Keycloak instance. It is deliberately small: the commands cover
// what a developer pokes at during manual testing — users, tokens,
// realms, and the instance status.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"kcdev/internal/admin"
	"kcdev/internal/realm"
	"kcdev/pkg/logging"

	"github.com/chzyer/readline"
	"golang.org/x/oauth2"
)

// commandTimeout bounds a single console command so a hung instance
// cannot freeze the shell forever.
const commandTimeout = 30 * time.Second

// historyFileName keeps command history across console sessions.
const historyFileName = ".kcdev_console_history"

// errExit signals a requested shutdown through the command dispatch.
var errExit = errors.New("exit")

// AdminAPI is the slice of the admin client the console uses. Tests
// substitute a fake.
type AdminAPI interface {
	CreateUser(ctx context.Context, u admin.User) (string, error)
	DeleteUser(ctx context.Context, id string) error
	UserID(ctx context.Context, username string) (string, error)
	UserToken(ctx context.Context, username, password, clientID string) (*oauth2.Token, error)
	EnsureRealm(ctx context.Context, doc *realm.Document) error
	DeleteRealm(ctx context.Context, name string) error
	Realm() string
}

// StatusFunc renders the current instance status for the status command.
type StatusFunc func(ctx context.Context) string

// Console is the interactive shell. Output goes to out, which Run sets to
// stdout; tests point it at a buffer.
type Console struct {
	admin  AdminAPI
	status StatusFunc
	out    io.Writer
}

// New creates a console over the given admin API.
func New(adminClient AdminAPI, status StatusFunc) *Console {
	return &Console{
		admin:  adminClient,
		status: status,
		out:    os.Stdout,
	}
}

// Run starts the interactive loop and blocks until the user exits or ctx
// is cancelled.
func (c *Console) Run(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            "kcdev » ",
		HistoryFile:       filepath.Join(os.TempDir(), historyFileName),
		AutoComplete:      c.completer(),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create readline instance: %w", err)
	}
	defer rl.Close()

	fmt.Fprintf(c.out, "Connected to realm %q. Type 'help' for available commands.\n\n", c.admin.Realm())

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				continue
			}
		} else if err == io.EOF {
			return nil
		} else if err != nil {
			return fmt.Errorf("readline error: %w", err)
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		if err := c.executeLine(ctx, input); err != nil {
			if errors.Is(err, errExit) {
				return nil
			}
			fmt.Fprintf(c.out, "Error: %v\n", err)
		}
		fmt.Fprintln(c.out)
	}
}

func (c *Console) completer() readline.AutoCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem("help"),
		readline.PcItem("status"),
		readline.PcItem("token"),
		readline.PcItem("create-user"),
		readline.PcItem("delete-user"),
		readline.PcItem("user-id"),
		readline.PcItem("create-realm"),
		readline.PcItem("delete-realm"),
		readline.PcItem("exit"),
	)
}

// executeLine parses and runs one console command. It is separated from
// the readline loop so command behavior is testable without a terminal.
func (c *Console) executeLine(ctx context.Context, input string) error {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return nil
	}
	command := strings.ToLower(parts[0])
	args := parts[1:]

	if command == "?" {
		command = "help"
	}

	cmdCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	switch command {
	case "help":
		c.printHelp()
		return nil
	case "status":
		fmt.Fprintln(c.out, c.status(cmdCtx))
		return nil
	case "token":
		return c.cmdToken(cmdCtx, args)
	case "create-user":
		return c.cmdCreateUser(cmdCtx, args)
	case "delete-user":
		return c.cmdDeleteUser(cmdCtx, args)
	case "user-id":
		return c.cmdUserID(cmdCtx, args)
	case "create-realm":
		return c.cmdCreateRealm(cmdCtx, args)
	case "delete-realm":
		return c.cmdDeleteRealm(cmdCtx, args)
	case "exit", "quit":
		return errExit
	default:
		return fmt.Errorf("unknown command: %s. Type 'help' for available commands", parts[0])
	}
}

func (c *Console) printHelp() {
	fmt.Fprint(c.out, `Available commands:
  status                              Show instance status
  token <user> <password> <client>    Obtain a token via password grant
  create-user <username> <password>   Create an enabled user
  delete-user <username>              Delete a user
  user-id <username>                  Look up a user ID
  create-realm <file>                 Import a realm from a definition file
  delete-realm <name>                 Delete a realm
  help                                Show this help
  exit                                Leave the console
`)
}

func (c *Console) cmdToken(ctx context.Context, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: token <user> <password> <client>")
	}
	token, err := c.admin.UserToken(ctx, args[0], args[1], args[2])
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, token.AccessToken)
	return nil
}

func (c *Console) cmdCreateUser(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: create-user <username> <password>")
	}
	id, err := c.admin.CreateUser(ctx, admin.User{Username: args[0], Password: args[1]})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Created user %q with ID %s\n", args[0], id)
	return nil
}

func (c *Console) cmdDeleteUser(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: delete-user <username>")
	}
	id, err := c.admin.UserID(ctx, args[0])
	if err != nil {
		return err
	}
	if err := c.admin.DeleteUser(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Deleted user %q\n", args[0])
	return nil
}

func (c *Console) cmdUserID(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: user-id <username>")
	}
	id, err := c.admin.UserID(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, id)
	return nil
}

func (c *Console) cmdCreateRealm(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: create-realm <file>")
	}
	cfg, err := realm.LoadFile(args[0])
	if err != nil {
		return err
	}
	if err := c.admin.EnsureRealm(ctx, cfg.Document()); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Realm %q imported\n", cfg.Realm)
	return nil
}

func (c *Console) cmdDeleteRealm(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: delete-realm <name>")
	}
	if err := c.admin.DeleteRealm(ctx, args[0]); err != nil {
		return err
	}
	logging.Debug("Console", "Deleted realm %q", args[0])
	fmt.Fprintf(c.out, "Realm %q deleted\n", args[0])
	return nil
}
