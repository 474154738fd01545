package recsort

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	recerrors "github.com/davide-marchi/recsort/errors"
	"github.com/davide-marchi/recsort/transport"
)

// Run executes the full sort pipeline on this rank:
//
//  1. rank 0 ensures the input file exists,
//  2. rank 0 scans it once and ships per-rank index slices,
//  3. every rank sorts its local slice,
//  4. the pairwise merge tree reduces the sorted slices to rank 0,
//  5. rank 0 rewrites the sorted output file,
//  6. rank 0 verifies it with a single scan.
//
// Each phase reports one timing measurement. On a single-rank group the
// distribution and merge collapse and the index build overlaps the sort
// through a progress gate instead.
//
// Any failure is terminal: the error is wrapped with its phase class
// (see ExitCode) and the caller is expected to abort the process group.
func Run(ctx context.Context, cfg Config, opts ...Option) error {
	rc := runConfig{
		cfg:  cfg,
		dir:  "files",
		seed: DefaultSeed,
	}
	for _, opt := range opts {
		opt(&rc)
	}
	if rc.logger == nil {
		rc.logger = NewStdLogger(false)
	}
	if rc.tr == nil {
		rc.tr = transport.NewMesh(1)[0]
	}
	if rc.cfg.PayloadMax == 0 {
		rc.cfg.PayloadMax = defaultPayloadMax
	}
	if rc.cfg.Cutoff == 0 {
		rc.cfg.Cutoff = defaultCutoff
	}
	if rc.cfg.NotifyEvery == 0 {
		rc.cfg.NotifyEvery = uint64(rc.cfg.Cutoff)
	}
	if rc.cfg.Records == 0 {
		return fmt.Errorf("%w: %w", recerrors.ErrConfigPhase, recerrors.ErrNoRecords)
	}
	if rc.cfg.Cutoff < 0 {
		return fmt.Errorf("%w: %w", recerrors.ErrConfigPhase, recerrors.ErrBadCutoff)
	}
	if rc.cfg.PayloadMax < 8 {
		return fmt.Errorf("%w: %w", recerrors.ErrConfigPhase, recerrors.ErrBadPayloadMax)
	}
	if rc.inPath == "" {
		rc.inPath = InputPath(rc.dir, rc.cfg.Records, rc.cfg.PayloadMax)
	}
	if rc.outPath == "" {
		rc.outPath = OutputPath(rc.dir, rc.cfg.Records, rc.cfg.PayloadMax)
	}

	p := &pipeline{
		rc:    rc,
		tr:    rc.tr,
		rank:  rc.tr.Rank(),
		size:  rc.tr.Size(),
		bench: &timer{log: rc.logger, rank: rc.tr.Rank()},
	}
	return p.bench.measure("total_time", func() error {
		return p.run(ctx)
	})
}

type pipeline struct {
	rc    runConfig
	tr    transport.Transport
	rank  int
	size  int
	bench *timer
}

func (p *pipeline) run(ctx context.Context) error {
	n := p.rc.cfg.Records

	// Phase 1: rank 0 ensures the input exists.
	if p.rank == 0 {
		if err := p.bench.measure("generate_unsorted", p.ensureInput); err != nil {
			return fmt.Errorf("%w: rank 0: %w", recerrors.ErrDecodePhase, err)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// Phases 2+3: local slice acquisition and sort.
	local, err := p.localSortedSlice()
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// Phase 4: pairwise merge tree.
	var active bool
	err = p.bench.measure("distributed_merge", func() error {
		var merr error
		local, active, merr = mergeToRoot(p.tr, local, n)
		return merr
	})
	if err != nil {
		return fmt.Errorf("%w: rank %d: %w", recerrors.ErrMergePhase, p.rank, err)
	}

	// Senders are done; only rank 0 carries the result forward.
	if !active || p.rank != 0 {
		return nil
	}
	if uint64(len(local)) != n {
		return fmt.Errorf("%w: rank 0 holds %d of %d records: %w",
			recerrors.ErrMergePhase, len(local), n, recerrors.ErrCountMismatch)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// Phase 5: rewrite the sorted output.
	err = p.bench.measure("rewrite_sorted", func() error {
		return RewriteSorted(p.rc.inPath, p.rc.outPath, local)
	})
	if err != nil {
		return fmt.Errorf("%w: rank 0: %w", recerrors.ErrRewritePhase, err)
	}

	// Phase 6: verify by a single scan.
	err = p.bench.measure("check_if_sorted", func() error {
		if err := VerifySorted(p.rc.outPath, n); err != nil {
			return err
		}
		if p.rc.checkPayloads {
			return VerifyPermutation(p.rc.inPath, p.rc.outPath, n)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: rank 0: %w", recerrors.ErrVerifyPhase, err)
	}

	if st, serr := os.Stat(p.rc.outPath); serr == nil {
		p.rc.logger.Debugf("[rank 0] sorted %s records into %s (%s)",
			humanize.Comma(int64(n)), p.rc.outPath, humanize.IBytes(uint64(st.Size())))
	}
	return nil
}

// ensureInput generates the conventional input file when the caller did
// not point the run at an existing one.
func (p *pipeline) ensureInput() error {
	if _, err := os.Stat(p.rc.inPath); err == nil {
		return nil
	} else if p.rc.inPathExplicit {
		return fmt.Errorf("input file %s: %w", p.rc.inPath, err)
	}
	if err := GenerateInput(p.rc.inPath, p.rc.cfg.Records, p.rc.cfg.PayloadMax, p.rc.seed); err != nil {
		return err
	}
	if st, err := os.Stat(p.rc.inPath); err == nil {
		p.rc.logger.Debugf("[rank 0] generated %s (%s)", p.rc.inPath, humanize.IBytes(uint64(st.Size())))
	}
	return nil
}

// localSortedSlice produces this rank's sorted slice. Multi-rank groups
// distribute first and sort after; a single rank instead overlaps the
// index build with the gated mergesort on the shared array.
func (p *pipeline) localSortedSlice() ([]IndexRec, error) {
	cfg := p.rc.cfg

	if p.size == 1 {
		idx := make([]IndexRec, cfg.Records)
		err := p.bench.measure("index_plus_sort", func() error {
			gate := NewGate()
			var g errgroup.Group
			g.Go(func() error {
				err := BuildIndexInto(idx, p.rc.inPath, cfg.NotifyEvery, gate)
				if err != nil {
					// Release gated sort leaves; the error aborts the
					// run once both tasks have joined.
					gate.Publish(uint64(len(idx)))
				}
				return err
			})
			g.Go(func() error {
				SortIndex(idx, cfg.Cutoff, cfg.Threads, gate)
				return nil
			})
			return g.Wait()
		})
		if err != nil {
			return nil, fmt.Errorf("%w: rank 0: %w", recerrors.ErrDecodePhase, err)
		}
		return idx, nil
	}

	var local []IndexRec
	var err error
	if p.rank == 0 {
		err = p.bench.measure("distribute_index", func() error {
			var derr error
			local, derr = distributeRoot(p.tr, p.rc.inPath, cfg.Records)
			return derr
		})
	} else {
		err = p.bench.measure("distribute_index", func() error {
			var derr error
			local, derr = receiveSlice(p.tr, cfg.Records)
			return derr
		})
	}
	if err != nil {
		return nil, fmt.Errorf("%w: rank %d: %w", recerrors.ErrDistributePhase, p.rank, err)
	}

	_ = p.bench.measure("local_sort", func() error {
		SortIndex(local, cfg.Cutoff, cfg.Threads, nil)
		return nil
	})
	return local, nil
}

// ExitCode maps an error from Run to the distinct non-zero exit code of
// its failure class. Decode errors keep their own code even when they
// surface inside the distribute phase.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, recerrors.ErrShortInput),
		errors.Is(err, recerrors.ErrPayloadOverrun),
		errors.Is(err, recerrors.ErrTrailingBytes),
		errors.Is(err, recerrors.ErrDecodePhase):
		return 2
	case errors.Is(err, recerrors.ErrDistributePhase):
		return 3
	case errors.Is(err, recerrors.ErrSortPhase):
		return 4
	case errors.Is(err, recerrors.ErrMergePhase):
		return 5
	case errors.Is(err, recerrors.ErrRewritePhase):
		return 6
	case errors.Is(err, recerrors.ErrVerifyPhase):
		return 7
	case errors.Is(err, recerrors.ErrConfigPhase):
		return 8
	default:
		return 1
	}
}
