package main

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/passguard/passguard/internal/cli"
	"github.com/passguard/passguard/pkg/crypto"
	"github.com/passguard/passguard/pkg/security"
	"github.com/passguard/passguard/pkg/vault"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Open an interactive session",
	Long: `Starts an interactive session that stays unlocked between
operations until the idle timeout expires or the session is locked.
SIGINT and SIGTERM lock the vault before the process exits.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := ensureUnlocked(); err != nil {
			return err
		}
		defer v.Lock()

		// The signal handler races the menu loop; locking here
		// guarantees no key material survives an interrupt.
		go func() {
			<-ctx.Done()
			v.Lock()
		}()

		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		reader := cli.NewStdinReader()

		fmt.Println("passguard interactive session. Type 'help' for commands.")
		for {
			if ctx.Err() != nil {
				fmt.Println("\nSession terminated")
				return nil
			}
			if v.IsLocked() {
				fmt.Println("Session locked")
				if err := ensureUnlocked(); err != nil {
					return err
				}
			}

			line, err := cli.ReadLine(reader, "passguard> ")
			if err != nil {
				return nil
			}

			if done, err := runShellCommand(reader, line); err != nil {
				if errors.Is(err, vault.ErrSessionLocked) {
					continue
				}
				logger.Warn("command failed", "error", err)
			} else if done {
				return nil
			}
		}
	},
}

// runShellCommand dispatches one menu entry. It returns done=true on
// quit.
func runShellCommand(reader *bufio.Reader, line string) (bool, error) {
	switch line {
	case "", "help":
		fmt.Println(`Commands:
  list [filter]   list credentials
  add             add a credential
  show <id>       show one credential with its password
  delete <id>     delete a credential
  status          session and vault status
  lock            lock the session
  quit            lock and exit`)
		return false, nil

	case "add":
		return false, shellAdd(reader)

	case "status":
		n, err := v.Count()
		if err != nil {
			return false, err
		}
		fmt.Printf("Credentials: %d\n", n)
		fmt.Printf("Session locks in: %s\n", v.SessionRemaining().Round(time.Second))
		return false, nil

	case "lock":
		v.Lock()
		return false, nil

	case "quit", "exit":
		v.Lock()
		fmt.Println("Session locked")
		return true, nil
	}

	// Commands with arguments.
	var arg string
	if n, _ := fmt.Sscanf(line, "list %s", &arg); n == 1 || line == "list" {
		return false, shellList(arg)
	}
	if n, _ := fmt.Sscanf(line, "show %s", &arg); n == 1 {
		return false, shellShow(arg)
	}
	if n, _ := fmt.Sscanf(line, "delete %s", &arg); n == 1 {
		return false, shellDelete(reader, arg)
	}

	fmt.Printf("Unknown command %q, type 'help'\n", line)
	return false, nil
}

func shellList(filter string) error {
	count := 0
	for cred, err := range v.Find(filter) {
		if err != nil {
			return err
		}
		fmt.Printf("%s  %s/%s\n", cred.ID, cred.Service, cred.Username)
		count++
	}
	if count == 0 {
		fmt.Println("No credentials found")
	}
	return nil
}

func shellShow(id string) error {
	cred, err := v.GetCredential(id)
	if err != nil {
		return err
	}
	fmt.Printf("%s / %s: %s\n", cred.Service, cred.Username, cred.Password)
	return nil
}

func shellAdd(reader *bufio.Reader) error {
	service, err := cli.ReadLine(reader, "Service: ")
	if err != nil {
		return err
	}
	username, err := cli.ReadLine(reader, "Username: ")
	if err != nil {
		return err
	}
	password, err := cli.ReadSecret("Password (empty to generate): ")
	if err != nil {
		return err
	}
	defer crypto.SecureWipe(password)

	pw := string(password)
	generated := false
	if pw == "" {
		pw, err = security.GeneratePassword(security.GenerateOptions{Length: 20})
		if err != nil {
			return err
		}
		generated = true
	}

	cred, err := v.AddCredential(service, username, pw)
	if err != nil {
		return err
	}
	fmt.Printf("Saved %s/%s (id %s)\n", cred.Service, cred.Username, cred.ID)
	if generated {
		fmt.Printf("Generated password: %s\n", pw)
	}
	return nil
}

func shellDelete(reader *bufio.Reader, id string) error {
	cred, err := v.GetCredential(id)
	if err != nil {
		return err
	}
	if !cli.Confirm(reader, fmt.Sprintf("Delete %s/%s?", cred.Service, cred.Username)) {
		fmt.Println("Aborted")
		return nil
	}
	return v.DeleteCredential(id)
}
