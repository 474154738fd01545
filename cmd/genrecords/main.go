// genrecords generates an unsorted record file for sorting benchmarks.
// Generation is deterministic in (-records, -payload, -seed), so the same
// invocation reproduces the same file on any host.
//
//	go run ./cmd/genrecords -records 10000000 -payload 256
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/davide-marchi/recsort"
)

func main() {
	records := flag.Uint64("records", 1_000_000, "number of records")
	payload := flag.Uint("payload", 256, "maximum payload size in bytes (>= 8)")
	seed := flag.Uint64("seed", recsort.DefaultSeed, "generator seed")
	out := flag.String("out", "", "output path (default: files/unsorted_<records>_<payload>.bin)")
	flag.Parse()

	if *payload < 8 {
		fmt.Fprintln(os.Stderr, "genrecords: -payload must be >= 8")
		os.Exit(8)
	}
	path := *out
	if path == "" {
		path = recsort.InputPath("files", *records, uint32(*payload))
	}

	if err := recsort.GenerateInput(path, *records, uint32(*payload), *seed); err != nil {
		fmt.Fprintf(os.Stderr, "genrecords: %v\n", err)
		os.Exit(1)
	}
	st, err := os.Stat(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "genrecords: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("generated %s (%s, %s records)\n",
		path, humanize.IBytes(uint64(st.Size())), humanize.Comma(int64(*records)))
}
