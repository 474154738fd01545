// Package recsort implements a distributed out-of-core sort for binary files
// of variable-length records keyed by an unsigned 64-bit integer.
//
// The input file is a back-to-back sequence of records, each
// {key: u64 LE, len: u32 LE, payload[len]}. The sort never moves payload
// bytes until the very end: it builds a compact index of (key, offset,
// len) descriptors over a memory-mapped view of the file,
// sorts and merges that index — locally with a task-parallel mergesort,
// across ranks with a pairwise log2(P) merge tree — and finally rewrites
// the output file by copying records through the sorted index.
//
// # Basic Usage
//
// Sorting a file on a single machine:
//
//	cfg := recsort.Config{Records: n, PayloadMax: 256}
//	if err := recsort.Run(ctx, cfg, recsort.WithPaths(in, out)); err != nil {
//	    log.Fatal(err)
//	}
//
// Multi-rank runs supply a transport connecting the process group:
//
//	tr, err := transport.NewTCP(rank, addrs)
//	...
//	err = recsort.Run(ctx, cfg, recsort.WithTransport(tr), recsort.WithPaths(in, out))
//
// # Package Structure
//
// The implementation is organized as follows:
//
//   - Record stream codec: codec.go (DecodeHeader, RecordSize)
//   - Index records and slice arithmetic: index.go (IndexRec, countForRank)
//   - Build/sort overlap signal: gate.go (Gate)
//   - Index build over mmap: builder.go (BuildIndex)
//   - Task-parallel mergesort: sort.go (SortIndex)
//   - Slice distribution and merge tree: distribute.go, mergetree.go
//   - Output materialization and checking: rewrite.go, verify.go
//   - Input generation: generate.go (GenerateInput)
//   - Orchestration: pipeline.go (Run), options.go, bench.go
//   - Inter-rank messaging: transport/ (in-process and TCP)
//   - Platform: fallocate_*.go, fadvise_*.go, prefault_*.go
package recsort
