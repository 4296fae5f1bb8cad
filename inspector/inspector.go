// Package inspector provides allocating, cross-thread stack inspection built
// on the stackwalk engine. A session attaches to a set of suspended threads,
// walks each with its own walker and reports per-thread frame sequences with
// stable fingerprints for deduplication. Threads must stay suspended for the
// duration of a walk; the session never walks a running thread.
package inspector

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/embervm/stackwalk-go/stackwalk"
)

// Option configures a Session.
type Option interface {
	apply(*config)
}

type config struct {
	parallelism int
	walkerOpts  []stackwalk.Option
}

type optionFunc func(cfg *config)

func (f optionFunc) apply(cfg *config) {
	f(cfg)
}

// WithParallelism bounds the number of threads walked concurrently. Defaults
// to 4.
func WithParallelism(n int) Option {
	return optionFunc(func(cfg *config) {
		cfg.parallelism = n
	})
}

// WithWalkerOptions passes options through to every walker the session
// constructs.
func WithWalkerOptions(opts ...stackwalk.Option) Option {
	return optionFunc(func(cfg *config) {
		cfg.walkerOpts = opts
	})
}

// Session is one inspection attachment. Sessions are identified by a UUID so
// that stacks collected by different attachments can be told apart
// downstream.
type Session struct {
	id   uuid.UUID
	code stackwalk.CodeResolver
	cfg  config
}

// NewSession creates a session resolving code through resolver.
func NewSession(resolver stackwalk.CodeResolver, opts ...Option) *Session {
	cfg := config{parallelism: 4}
	for _, opt := range opts {
		opt.apply(&cfg)
	}
	return &Session{
		id:   uuid.New(),
		code: resolver,
		cfg:  cfg,
	}
}

// ID returns the session's identity.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// ThreadStack is the result of walking one suspended thread.
type ThreadStack struct {
	// Thread is the thread that was walked.
	Thread *ThreadState
	// Frames is the thread's stack, top frame first, including native and
	// bridging frames.
	Frames []*stackwalk.Frame
	// Fingerprint is a stable identity for the stack's PC sequence.
	Fingerprint uint64
}

// WalkThreads walks every thread in threads, each with its own walker,
// reading the start position from the registers designated by abi. Threads
// are walked concurrently up to the session's parallelism; results are
// returned in input order.
func (s *Session) WalkThreads(ctx context.Context, abi *stackwalk.ABI, threads []*ThreadState) ([]ThreadStack, error) {
	results := make([]ThreadStack, len(threads))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.parallelism)
	for i, t := range threads {
		i, t := i, t
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if t.Code == nil {
				t.Code = s.code
			}
			w := stackwalk.NewWalker(t, s.cfg.walkerOpts...)
			ip, sp, fp := t.Start(abi)
			frames := w.Frames(nil, ip, sp, fp)
			fingerprint, err := Fingerprint(frames)
			if err != nil {
				return fmt.Errorf("failed to fingerprint stack of thread %d: %w", i, err)
			}
			results[i] = ThreadStack{Thread: t, Frames: frames, Fingerprint: fingerprint}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
