// Package replay feeds a recorded JSONL event log through an emitter.
//
// Each non-blank line is one emission:
//
//	{"event": "user:login", "args": ["alice", 3]}
//	{"event": "order:placed", "payload": {"id": "o1", "total": 12.5}}
//
// Object values (in args or as payload) are passed as payload.JSON, other
// values as their Go equivalents (string, float64, bool, nil, []any). When
// both are present the payload follows the args.
package replay

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/dshills/relay/internal/event"
	"github.com/dshills/relay/internal/event/payload"
	"github.com/dshills/relay/internal/event/topic"
)

// AnnotationPath is where WithAnnotate stores the source line number.
const AnnotationPath = "_replay.line"

// maxLine bounds a single log line.
const maxLine = 4 << 20

// Errors describing malformed lines.
var (
	ErrMalformed = errors.New("malformed line")
	ErrNoEvent   = errors.New("missing event name")
	ErrArgs      = errors.New("args must be an array")
)

// LineError reports a line that could not be parsed or emitted.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// Summary counts what a run did.
type Summary struct {
	// Lines is the number of lines read, blank ones included.
	Lines int
	// Emitted is the number of emissions that returned no error.
	Emitted int
	// Skipped counts blank lines and events excluded by WithMatch.
	Skipped int
	// Failed counts malformed lines and failed emissions.
	Failed int
}

// Option configures Run.
type Option func(*options)

type options struct {
	annotate bool
	cont     bool
	match    topic.Pattern
	logger   *zap.Logger
}

// WithAnnotate stamps the line number into object payloads at
// AnnotationPath.
func WithAnnotate() Option {
	return func(o *options) { o.annotate = true }
}

// WithContinueOnError keeps going past failing lines. Run then returns every
// failure combined.
func WithContinueOnError() Option {
	return func(o *options) { o.cont = true }
}

// WithMatch replays only events whose name matches p.
func WithMatch(p topic.Pattern) Option {
	return func(o *options) { o.match = p }
}

// WithLogger sets the structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// Run reads r line by line and emits each event through em. It stops at the
// first failure unless WithContinueOnError is given, and always stops when
// ctx is done.
func Run(ctx context.Context, r io.Reader, em event.Emitter, opts ...Option) (Summary, error) {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	var (
		sum  Summary
		errs error
	)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)

	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return sum, multierr.Append(errs, err)
		}
		sum.Lines++

		line := sc.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			sum.Skipped++
			continue
		}

		name, args, err := parseLine(line, sum.Lines, o.annotate)
		if err == nil && !o.match.IsZero() && !o.match.MatchName(name) {
			sum.Skipped++
			continue
		}
		if err == nil {
			err = em.Emit(ctx, name, args...)
		}
		if err != nil {
			sum.Failed++
			lerr := &LineError{Line: sum.Lines, Err: err}
			o.logger.Warn("replay line failed", zap.Int("line", sum.Lines), zap.Error(err))
			if !o.cont {
				return sum, lerr
			}
			errs = multierr.Append(errs, lerr)
			continue
		}
		sum.Emitted++
	}

	if err := sc.Err(); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("reading event log: %w", err))
	}

	o.logger.Debug("replay finished",
		zap.Int("lines", sum.Lines),
		zap.Int("emitted", sum.Emitted),
		zap.Int("failed", sum.Failed),
	)
	return sum, errs
}

func parseLine(line []byte, n int, annotate bool) (topic.Name, []any, error) {
	if !gjson.ValidBytes(line) {
		return "", nil, ErrMalformed
	}
	doc := gjson.ParseBytes(line)
	if !doc.IsObject() {
		return "", nil, fmt.Errorf("%w: not an object", ErrMalformed)
	}

	ev := doc.Get("event")
	if ev.Type != gjson.String || ev.Str == "" {
		return "", nil, ErrNoEvent
	}

	var args []any
	if a := doc.Get("args"); a.Exists() {
		if !a.IsArray() {
			return "", nil, ErrArgs
		}
		for _, item := range a.Array() {
			v, err := value(item, n, annotate)
			if err != nil {
				return "", nil, err
			}
			args = append(args, v)
		}
	}

	if p := doc.Get("payload"); p.Exists() {
		v, err := value(p, n, annotate)
		if err != nil {
			return "", nil, err
		}
		args = append(args, v)
	}

	return topic.Name(ev.Str), args, nil
}

func value(r gjson.Result, line int, annotate bool) (any, error) {
	if !r.IsObject() {
		return r.Value(), nil
	}
	raw := []byte(r.Raw)
	if annotate {
		var err error
		raw, err = sjson.SetBytes(raw, AnnotationPath, line)
		if err != nil {
			return nil, err
		}
	}
	return payload.JSON(raw), nil
}
