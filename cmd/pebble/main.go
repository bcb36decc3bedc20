// Command pebble manages tables of schema-validated immutable records
// stored in a JSONL or SQLite data directory.
package main

import (
	"os"

	"github.com/mesh-intelligence/pebble/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
