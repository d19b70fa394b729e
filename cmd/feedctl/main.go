// Command feedctl is the maintenance CLI for feedview.
//
// Usage:
//
//	feedctl                 Show help
//	feedctl import          Import RSS sources into the local database
//	feedctl page            Page through the feed without the TUI
//	feedctl stats           Post and user counts, age distribution
//	feedctl events          JSONL event log viewer
package main

import (
	"fmt"
	"os"
)

const usage = `feedctl: feedview maintenance CLI

Usage:
  feedctl <command> [flags]

Commands:
  import      Import RSS sources into the local database
  page        Page through the feed with the loader, printing each page
  stats       Post and user counts and age distribution (sqlite backend)
  events      JSONL event log viewer

Environment:
  PARSE_SERVER_URL       Parse Server URL (selects the parse backend)
  PARSE_APPLICATION_ID   Parse application id
  PARSE_REST_API_KEY     Parse REST API key
  FEEDVIEW_DB            SQLite database path (default ~/.feedview/feedview.db)

Run 'feedctl <command> -h' for command-specific help.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(0)
	}

	cmd := os.Args[1]
	// Strip the program name + subcommand so flag sets see only their flags
	os.Args = os.Args[1:]

	switch cmd {
	case "import":
		runImport()
	case "page":
		runPage()
	case "stats":
		runStats()
	case "events":
		runEvents()
	case "-h", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "feedctl: unknown command %q\n\n", cmd)
		fmt.Print(usage)
		os.Exit(1)
	}
}
