package recsort

import "github.com/davide-marchi/recsort/transport"

// Config carries the enumerated run parameters.
type Config struct {
	// Records is the total record count N. Required by the pipeline:
	// slice sizes and merge payloads are all derived from it.
	Records uint64

	// PayloadMax is the maximum payload byte length the input generator
	// uses; >= 8. Consulted when the pipeline generates its input and to
	// name the conventional input and output files.
	PayloadMax uint32

	// Threads is the worker-pool size per rank; 0 selects the host's
	// hardware concurrency.
	Threads int

	// Cutoff is the mergesort task granularity; ranges of at most
	// Cutoff+1 records are sorted directly. Must not be negative; 0
	// selects the default.
	Cutoff int

	// NotifyEvery is the index-build progress publication interval for
	// the build/sort overlap; 0 selects Cutoff.
	NotifyEvery uint64
}

const (
	defaultPayloadMax = 256
	defaultCutoff     = 10000
)

// Option is a functional option for configuring a Run.
type Option func(*runConfig)

type runConfig struct {
	cfg            Config
	logger         Logger
	tr             transport.Transport
	inPath         string
	inPathExplicit bool
	outPath        string
	dir            string
	seed           uint64
	checkPayloads  bool
}

// WithLogger routes phase reports and diagnostics through l.
func WithLogger(l Logger) Option {
	return func(rc *runConfig) { rc.logger = l }
}

// WithTransport attaches the process group's transport. Without it the
// run executes as a single rank.
func WithTransport(tr transport.Transport) Option {
	return func(rc *runConfig) { rc.tr = tr }
}

// WithPaths fixes the input and output file locations. Either may be
// empty to keep the conventional files/ scheme. An explicit input path
// must already exist; the conventional one is generated on demand.
func WithPaths(in, out string) Option {
	return func(rc *runConfig) {
		rc.inPath = in
		rc.inPathExplicit = in != ""
		rc.outPath = out
	}
}

// WithDir sets the directory for conventionally named input and output
// files. Default "files".
func WithDir(dir string) Option {
	return func(rc *runConfig) { rc.dir = dir }
}

// WithSeed sets the input generator seed.
func WithSeed(seed uint64) Option {
	return func(rc *runConfig) { rc.seed = seed }
}

// WithPayloadVerification adds a digest comparison of output against
// input to the verify phase, catching payload corruption the key-order
// scan cannot see.
func WithPayloadVerification() Option {
	return func(rc *runConfig) { rc.checkPayloads = true }
}
