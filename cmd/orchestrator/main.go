// @MX:ANCHOR: [AUTO] main is the orchestrator CLI entry point; the exit status comes from cli.ExitCode
// @MX:REASON: [AUTO] the only executable entry point; Claude Code hooks and scripts rely on its exit codes
package main

import (
	"os"

	"github.com/TeldridgeLDN/Orchestrator-Project-sub005/internal/cli"
)

func main() {
	os.Exit(cli.ExitCode(cli.Execute()))
}
