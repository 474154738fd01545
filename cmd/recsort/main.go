// recsort sorts a binary file of variable-length records by their 64-bit
// key, out of core: only a (key, offset, len) index entry per record (24
// bytes in memory, 20 on the wire) is held in memory and payload bytes
// move exactly once, during the final rewrite.
//
// Single machine:
//
//	recsort -records 10000000 -payload 256 -threads 8 -cutoff 10000
//
// Process group of 4 ranks (run one command per host):
//
//	recsort -rank 0 -addrs host0:7650,host1:7650,host2:7650,host3:7650 ...
//	recsort -rank 1 -addrs host0:7650,host1:7650,host2:7650,host3:7650 ...
//
// The exit code identifies the failing phase: 0 success, 2 decode,
// 3 distribute, 4 sort, 5 merge, 6 rewrite, 7 verify, 8 configuration.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/davide-marchi/recsort"
	"github.com/davide-marchi/recsort/transport"
)

func main() {
	records := flag.Uint64("records", 1_000_000, "number of records (> 0)")
	payload := flag.Uint("payload", 256, "maximum payload size in bytes (>= 8)")
	threads := flag.Int("threads", 0, "worker threads per rank (0 = hardware concurrency)")
	cutoff := flag.Int("cutoff", 10000, "mergesort task cutoff (> 0)")
	rank := flag.Int("rank", 0, "this process's rank")
	addrs := flag.String("addrs", "", "comma-separated listen addresses of all ranks, in rank order")
	input := flag.String("input", "", "input file (default: generated under -dir)")
	output := flag.String("output", "", "output file (default: under -dir)")
	dir := flag.String("dir", "files", "directory for conventionally named files")
	seed := flag.Uint64("seed", recsort.DefaultSeed, "input generator seed")
	compress := flag.Bool("compress", false, "LZ4-compress inter-rank slices")
	checkPayloads := flag.Bool("check-payloads", false, "verify output payload bytes against the input")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Parse()

	if *records == 0 {
		fmt.Fprintln(os.Stderr, "recsort: -records must be > 0")
		os.Exit(8)
	}
	if *cutoff <= 0 {
		fmt.Fprintln(os.Stderr, "recsort: -cutoff must be > 0")
		os.Exit(8)
	}
	if *payload < 8 {
		fmt.Fprintln(os.Stderr, "recsort: -payload must be >= 8")
		os.Exit(8)
	}

	logger := recsort.NewStdLogger(*verbose)
	opts := []recsort.Option{
		recsort.WithLogger(logger),
		recsort.WithPaths(*input, *output),
		recsort.WithDir(*dir),
		recsort.WithSeed(*seed),
	}
	if *checkPayloads {
		opts = append(opts, recsort.WithPayloadVerification())
	}

	if *addrs != "" {
		list := strings.Split(*addrs, ",")
		var topts []transport.TCPOption
		if *compress {
			topts = append(topts, transport.WithCompression())
		}
		tr, err := transport.NewTCP(*rank, list, topts...)
		if err != nil {
			fmt.Fprintf(os.Stderr, "recsort: rank %d: transport: %v\n", *rank, err)
			os.Exit(3)
		}
		defer tr.Close()
		opts = append(opts, recsort.WithTransport(tr))
	}

	cfg := recsort.Config{
		Records:    *records,
		PayloadMax: uint32(*payload),
		Threads:    *threads,
		Cutoff:     *cutoff,
	}
	if err := recsort.Run(context.Background(), cfg, opts...); err != nil {
		fmt.Fprintf(os.Stderr, "recsort: rank %d: %v\n", *rank, err)
		os.Exit(recsort.ExitCode(err))
	}
}
