// Command idtool is an operator utility for inspecting and minting short
// codes outside of the HTTP surface — handy for debugging a production
// lease or sanity-checking a code a user reports. Adapted from the
// teacher's general-purpose multi-format snowflake CLI, trimmed to the
// one encoding this system actually ships: Base62.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sxyafiq/urlshortener/internal/codec"
	"github.com/sxyafiq/urlshortener/internal/idgen"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "generate", "gen", "g":
		cmdGenerate(os.Args[2:])
	case "parse", "p":
		cmdParse(os.Args[2:])
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `idtool - url-shortener ID utility

Usage:
  idtool generate --worker N [--count N]   Mint short codes locally
  idtool parse <code>                      Inspect a Base62 short code

`)
}

func cmdGenerate(args []string) {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	workerID := fs.Int64("worker", 0, "Worker ID (0-1023)")
	count := fs.Int("count", 1, "Number of codes to generate")
	fs.Parse(args)

	gen, err := idgen.New(*workerID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating generator: %v\n", err)
		os.Exit(1)
	}

	for i := 0; i < *count; i++ {
		id, err := gen.GenerateID()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error generating id: %v\n", err)
			os.Exit(1)
		}
		code, err := codec.Encode(id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding id: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%d\t%s\n", id, code)
	}
}

func cmdParse(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: idtool parse <code>")
		os.Exit(1)
	}

	raw := args[0]

	id, err := codec.Decode(raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %q is not a valid base62 code: %v\n", raw, err)
		os.Exit(1)
	}

	c := idgen.Parse(id)
	fmt.Printf("id:        %d\n", id)
	fmt.Printf("code:      %s\n", raw)
	fmt.Printf("timestamp: %s (%d ms since epoch)\n", time.UnixMilli(c.TimestampMS).UTC().Format(time.RFC3339), c.TimestampMS)
	fmt.Printf("worker_id: %d\n", c.WorkerID)
	fmt.Printf("sequence:  %d\n", c.Sequence)
}
