// ck is the crewkit CLI for context capture and crew orchestration.
package main

import (
	"os"

	"github.com/crewkit/crewkit/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
