package generation

import (
	"context"
	"iter"
	"strings"
	"time"

	"go.uber.org/zap"

	"boardroom/internal/logging"
	"boardroom/internal/metrics"
)

type Options struct {
	// TextProtocol sends declarations as prose and parses inline calls
	// instead of using the provider's native call support.
	TextProtocol bool
	Logger       *zap.Logger
	Metrics      *metrics.Metrics
}

// Gateway wraps a Backend with logging, metrics, and the inline call
// protocol. A Gateway without a backend fails every call with ErrNotConfigured.
type Gateway struct {
	backend Backend
	opts    Options
	logger  *zap.Logger
}

func NewGateway(b Backend, opts Options) *Gateway {
	return &Gateway{backend: b, opts: opts, logger: logging.OrNop(opts.Logger)}
}

func (g *Gateway) Configured() bool {
	return g != nil && g.backend != nil
}

func (g *Gateway) Provider() string {
	if !g.Configured() {
		return "none"
	}
	return g.backend.Name()
}

func (g *Gateway) prepare(req Request) Request {
	if g.opts.TextProtocol && len(req.Declarations) > 0 {
		req.System = strings.TrimSpace(req.System + "\n\n" + RenderDocs(req.Declarations))
		req.Declarations = nil
	}
	return req
}

func (g *Gateway) observe(op string, start time.Time, err error) {
	d := time.Since(start)
	g.opts.Metrics.RecordGeneration(g.Provider(), op, err, d)
	if err != nil {
		g.logger.Warn("generation call failed", zap.String("op", op), zap.String("provider", g.Provider()), zap.Duration("took", d), zap.Error(err))
		return
	}
	g.logger.Debug("generation call", zap.String("op", op), zap.String("provider", g.Provider()), zap.Duration("took", d))
}

// Complete returns the backend's text for prompt. The text may be empty.
func (g *Gateway) Complete(ctx context.Context, prompt, system string) (string, error) {
	if !g.Configured() {
		return "", ErrNotConfigured
	}
	start := time.Now()
	res, err := g.backend.Complete(ctx, Request{System: system, Prompt: prompt})
	g.observe("complete", start, err)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// CompleteWithCalls is Complete with declarations attached; native calls win
// over inline ones when the backend returns both.
func (g *Gateway) CompleteWithCalls(ctx context.Context, prompt string, decls []Declaration, system string) (Result, error) {
	if !g.Configured() {
		return Result{}, ErrNotConfigured
	}
	start := time.Now()
	res, err := g.backend.Complete(ctx, g.prepare(Request{System: system, Prompt: prompt, Declarations: decls}))
	g.observe("complete_with_calls", start, err)
	if err != nil {
		return Result{}, err
	}
	if len(res.Calls) == 0 && len(decls) > 0 {
		if res.Calls = ParseTextCalls(res.Text); len(res.Calls) > 0 {
			res.Text = StripTextCalls(res.Text)
		}
	}
	return res, nil
}

// Stream relays the backend's fragments in order. With the inline protocol,
// text from the first call marker on is held back until the backend
// finishes; the remainder is then relayed without its parsed blocks, followed
// by one fragment carrying the calls.
func (g *Gateway) Stream(ctx context.Context, req Request) iter.Seq2[Fragment, error] {
	return func(yield func(Fragment, error) bool) {
		if !g.Configured() {
			yield(Fragment{}, ErrNotConfigured)
			return
		}
		inline := g.opts.TextProtocol && len(req.Declarations) > 0
		start := time.Now()
		var held string
		holding := false
		for frag, err := range g.backend.Stream(ctx, g.prepare(req)) {
			if err != nil {
				g.observe("stream", start, err)
				yield(Fragment{}, err)
				return
			}
			if inline {
				pending := held + frag.Text
				if holding {
					held, frag.Text = pending, ""
				} else {
					frag.Text, held = splitInline(pending)
					holding = strings.HasPrefix(held, callMarker)
				}
			}
			if frag.Empty() {
				continue
			}
			if !yield(frag, nil) {
				g.observe("stream", start, nil)
				return
			}
		}
		g.observe("stream", start, nil)
		if !inline || held == "" {
			return
		}
		if visible := StripTextCalls(held); visible != "" {
			if !yield(Fragment{Text: visible}, nil) {
				return
			}
		}
		if calls := ParseTextCalls(held); len(calls) > 0 {
			yield(Fragment{Calls: calls}, nil)
		}
	}
}

// GenerateImage returns nil media when the backend produced no image.
func (g *Gateway) GenerateImage(ctx context.Context, prompt string) (*Media, error) {
	if !g.Configured() {
		return nil, ErrNotConfigured
	}
	start := time.Now()
	media, err := g.backend.GenerateImage(ctx, prompt)
	g.observe("generate_image", start, err)
	return media, err
}
