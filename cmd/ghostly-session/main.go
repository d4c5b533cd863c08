package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/genomewalker/ghostly/internal/cli"
	"github.com/genomewalker/ghostly/internal/client"
	"github.com/genomewalker/ghostly/internal/daemon"
	"github.com/genomewalker/ghostly/internal/registry"
)

// version follows Semantic Versioning (https://semver.org/).
var version = "1.0.1"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printUsage(os.Stderr)
		return 1
	}

	switch args[0] {
	case daemon.RunServerArg():
		return runServer(args[1:])
	case "create":
		return cmdCreate(args[1:])
	case "attach":
		return cmdAttach(args[1:])
	case "open":
		return cmdOpen(args[1:])
	case "list":
		return cmdList(args[1:])
	case "info":
		return cmdInfo(args[1:])
	case "kill":
		return cmdKill(args[1:])
	case "version", "--version", "-v":
		fmt.Printf("ghostly-session %s\n", version)
		return 0
	case "help", "--help", "-h":
		printUsage(os.Stdout)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
		printUsage(os.Stderr)
		return 1
	}
}

// runServer is the hidden entry point the re-exec'd daemon process
// takes; it never returns until the session ends.
func runServer(args []string) int {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "ghostly: malformed daemon invocation")
		return 1
	}
	return daemon.RunServer(args[0], args[1])
}

func cmdCreate(args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: ghostly-session create <name> [-- cmd...]")
		return 1
	}
	name, cmd := splitNameAndCmd(args)
	if err := daemon.Create(name, cmd); err != nil {
		fmt.Fprintf(os.Stderr, "ghostly: %v\n", err)
		return 1
	}
	return 0
}

func cmdAttach(args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: ghostly-session attach <name>")
		return 1
	}
	return client.Attach(args[0])
}

func cmdOpen(args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: ghostly-session open <name> [-- cmd...]")
		return 1
	}
	name, cmd := splitNameAndCmd(args)
	return cli.Open(name, cmd)
}

func cmdList(args []string) int {
	fs := pflag.NewFlagSet("list", pflag.ContinueOnError)
	asJSON := fs.Bool("json", false, "emit JSON instead of a table")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if err := cli.PrintList(os.Stdout, *asJSON); err != nil {
		fmt.Fprintf(os.Stderr, "ghostly: %v\n", err)
		return 1
	}
	return 0
}

func cmdInfo(args []string) int {
	fs := pflag.NewFlagSet("info", pflag.ContinueOnError)
	asJSON := fs.Bool("json", false, "emit JSON instead of key:value lines")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if err := cli.PrintInfo(os.Stdout, *asJSON); err != nil {
		fmt.Fprintf(os.Stderr, "ghostly: %v\n", err)
		return 1
	}
	return 0
}

func cmdKill(args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: ghostly-session kill <name>")
		return 1
	}
	if err := cli.Kill(os.Stdout, args[0]); err != nil {
		fmt.Fprintf(os.Stderr, "ghostly: %v\n", err)
		return 1
	}
	return 0
}

// splitNameAndCmd pulls the session name from args[0] and joins
// everything after a "--" separator into a single command string.
func splitNameAndCmd(args []string) (name, cmd string) {
	name = args[0]
	for i := 1; i < len(args); i++ {
		if args[i] == "--" {
			cmd = daemon.JoinCmd(args[i+1:])
			break
		}
	}
	return name, cmd
}

func printUsage(w *os.File) {
	fmt.Fprintf(w, `ghostly-session %s - remote session manager

Usage:
  ghostly-session create <name> [-- cmd...]   Create session (daemonizes)
  ghostly-session attach <name>               Attach to session
  ghostly-session open <name> [-- cmd...]     Create-or-attach
  ghostly-session list [--json]               List sessions
  ghostly-session info [--json]               System info
  ghostly-session kill <name>                 Kill session
  ghostly-session version                     Version info

Session names: alphanumeric, dash, underscore, dot (max %d chars)
Detach key: Ctrl+\ (0x1C)
`, version, registry.MaxNameLen)
}
