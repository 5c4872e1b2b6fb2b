package app

import (
	"fmt"
	"os"
	"strings"
)

// Run executes the CLI command and returns a process exit code.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printUsage()
		return 0
	case "run":
		return runEdition(args[1:])
	case "select":
		return runSelect(args[1:])
	case "validate":
		return runValidate(args[1:])
	case "check":
		return runCheck(args[1:])
	case "health":
		return runHealth(args[1:])
	case "serve":
		return runServe(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "newspaper CLI")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  newspaper <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  run       Fetch feeds, build today's edition and publish it")
	fmt.Fprintln(os.Stderr, "  select    Deduplicate and select stories from record JSON files")
	fmt.Fprintln(os.Stderr, "  validate  Validate record JSON files against the record schema")
	fmt.Fprintln(os.Stderr, "  check     Validate the edition config and list today's topics")
	fmt.Fprintln(os.Stderr, "  health    Verify database connectivity")
	fmt.Fprintln(os.Stderr, "  serve     Serve the published edition and edition API")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Use \"newspaper <command> -h\" for command-specific flags.")
}
