// Command obs is the pulse maintenance CLI.
//
// Usage:
//
//	obs                     Show help
//	obs stats               Store statistics
//	obs purge               Delete articles past retention
//	obs archive             List or search archived insights
//	obs archive show <id>   Print one archived insight
//	obs browse              Interactive archive browser
//	obs generate            Generate insights now
//	obs export              Copy archived insights to S3
//	obs events              JSONL event log viewer
package main

import (
	"fmt"
	"os"
)

const usage = `obs - pulse maintenance CLI

Usage:
  obs <command> [flags]

Commands:
  stats       Article and archive counts by source and category
  purge       Delete articles older than the retention period
  archive     List or search archived insights (archive show <id> for one)
  browse      Interactive archive browser
  generate    Generate insights now, optionally after a fetch
  export      Copy archived insights to S3 (requires PULSE_S3_BUCKET)
  events      JSONL event log viewer

Environment:
  PULSE_CONFIG         Config file (default: ~/.pulse/config.json)
  CLAUDE_API_KEY       Model key; see config for other providers
  PULSE_S3_BUCKET      S3 bucket for export

Run 'obs <command> -h' for command-specific help.
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
	case "stats":
		runStats()
	case "purge":
		runPurge()
	case "archive":
		runArchive()
	case "browse":
		runBrowse()
	case "generate":
		runGenerate()
	case "export":
		runExport()
	case "events":
		runEvents()
	case "-h", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "obs: unknown command %q\n\n", cmd)
		fmt.Print(usage)
		os.Exit(1)
	}
}
