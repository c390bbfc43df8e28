// Package generationtest provides a scripted generation backend for tests.
package generationtest

import (
	"context"
	"errors"
	"iter"
	"sync"

	"boardroom/internal/generation"
)

// Step is one scripted stream element. A step with Err ends the stream.
type Step struct {
	Text  string
	Calls []generation.Call
	Err   error
}

type Reply struct {
	Text  string
	Calls []generation.Call
	Err   error
}

var ErrExhausted = errors.New("generationtest: script exhausted")

// Backend replays scripted completions, streams, and images in call order
// and records every request it receives.
type Backend struct {
	mu          sync.Mutex
	completions []Reply
	streams     [][]Step
	images      []*generation.Media
	imageErr    error

	// StreamFunc, when set, answers streams that have no scripted entry left.
	StreamFunc func(req generation.Request) []Step

	completes    []generation.Request
	streamReqs   []generation.Request
	imagePrompts []string
}

func New() *Backend { return &Backend{} }

func (b *Backend) Name() string { return "scripted" }

func (b *Backend) QueueCompletion(r Reply) *Backend {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.completions = append(b.completions, r)
	return b
}

func (b *Backend) QueueStream(steps ...Step) *Backend {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.streams = append(b.streams, steps)
	return b
}

// QueueImage scripts the next image; nil media means the model returned none.
func (b *Backend) QueueImage(m *generation.Media) *Backend {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.images = append(b.images, m)
	return b
}

func (b *Backend) FailImages(err error) *Backend {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.imageErr = err
	return b
}

func (b *Backend) Complete(_ context.Context, req generation.Request) (generation.Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.completes = append(b.completes, req)
	if len(b.completions) == 0 {
		return generation.Result{}, ErrExhausted
	}
	r := b.completions[0]
	b.completions = b.completions[1:]
	return generation.Result{Text: r.Text, Calls: r.Calls}, r.Err
}

func (b *Backend) Stream(_ context.Context, req generation.Request) iter.Seq2[generation.Fragment, error] {
	b.mu.Lock()
	b.streamReqs = append(b.streamReqs, req)
	var steps []Step
	switch {
	case len(b.streams) > 0:
		steps = b.streams[0]
		b.streams = b.streams[1:]
	case b.StreamFunc != nil:
		steps = b.StreamFunc(req)
	default:
		steps = []Step{{Err: ErrExhausted}}
	}
	b.mu.Unlock()

	return func(yield func(generation.Fragment, error) bool) {
		for _, s := range steps {
			if s.Err != nil {
				yield(generation.Fragment{}, s.Err)
				return
			}
			if !yield(generation.Fragment{Text: s.Text, Calls: s.Calls}, nil) {
				return
			}
		}
	}
}

func (b *Backend) GenerateImage(_ context.Context, prompt string) (*generation.Media, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.imagePrompts = append(b.imagePrompts, prompt)
	if b.imageErr != nil {
		return nil, b.imageErr
	}
	if len(b.images) == 0 {
		return nil, nil
	}
	m := b.images[0]
	b.images = b.images[1:]
	return m, nil
}

// StreamRequests returns a copy of the recorded stream requests.
func (b *Backend) StreamRequests() []generation.Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]generation.Request(nil), b.streamReqs...)
}

func (b *Backend) CompleteRequests() []generation.Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]generation.Request(nil), b.completes...)
}

func (b *Backend) ImagePrompts() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.imagePrompts...)
}
