package streaming

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"iter"

	httpstream "github.com/manax-dev/httpstream"
	"github.com/manax-dev/httpstream/jsonpath"
)

// Match pairs a deserialized value with the normalized path of the node it
// came from (e.g. `$["store"]["book"][2]`), so a caller consuming many
// matches out of one document can tell which element each one was.
type Match[T any] struct {
	Value T
	Path  string
}

const defaultReadSize = 4096

// Deserializer composes a byte-level Machine with encoding/json.Unmarshal,
// decoding each matched slice into T without ever holding the whole
// document in memory. It exposes both a push (Feed) and pull (Iter) API.
type Deserializer[T any] struct {
	machine *Machine
	debug   httpstream.Debugger
}

// NewDeserializer builds a Deserializer that reports values matching expr,
// buffering at most maxBufferedBytes of not-yet-compacted input (0 selects
// the package default).
func NewDeserializer[T any](expr *jsonpath.Expression, maxBufferedBytes int64) *Deserializer[T] {
	return &Deserializer[T]{machine: NewMachine(expr, maxBufferedBytes), debug: httpstream.NoopDebugger}
}

// WithDebugger attaches a Debugger that observes raw chunks and emitted
// boundaries, mirroring the teacher's WithDebug-style option chaining.
func (d *Deserializer[T]) WithDebugger(dbg httpstream.Debugger) *Deserializer[T] {
	d.debug = dbg
	return d
}

// Stats returns a snapshot of the underlying scanner's introspection
// counters.
func (d *Deserializer[T]) Stats() DeserializerStats { return statsFromMachine(d.machine.Stats()) }

// Feed pushes one Chunk through the deserializer, decoding any boundaries
// it closes and reporting them via matches (success) or err (a terminal
// failure — ChunkError chunks and malformed JSON both surface here rather
// than panicking).
func (d *Deserializer[T]) Feed(c Chunk) (matches []Match[T], err error) {
	switch c.Kind {
	case ChunkError:
		return nil, c.Err
	case ChunkEnd:
		d.debug.RawBoundary(d.machine.Position(), d.machine.Position())
		boundaries, err := d.machine.End()
		if err != nil {
			return nil, err
		}
		return d.decodeAll(boundaries)
	default:
		d.debug.RawChunk(c.Data)
		boundaries, err := d.machine.AppendChunk(c.Data)
		if err != nil {
			return nil, err
		}
		return d.decodeAll(boundaries)
	}
}

func (d *Deserializer[T]) decodeAll(boundaries []Boundary) ([]Match[T], error) {
	if len(boundaries) == 0 {
		return nil, nil
	}
	out := make([]Match[T], 0, len(boundaries))
	for _, b := range boundaries {
		var raw []byte
		if b.Inline != nil {
			raw = b.Inline
		} else {
			d.debug.RawBoundary(b.Start, b.End)
			var ok bool
			raw, ok = d.machine.buf.Slice(b.Start, b.End)
			if !ok {
				return out, &httpstream.BufferError{Operation: "decode-match", Requested: b.End - b.Start, Available: 0}
			}
		}
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return out, &httpstream.DeserializationError{
				Message:  err.Error(),
				Fragment: append([]byte(nil), raw...),
				Target:   b.Path,
				Wrapped:  err,
			}
		}
		out = append(out, Match[T]{Value: v, Path: b.Path})
	}
	return out, nil
}

// Iter returns a push-callback iterator (the teacher's `Iter() func(yield
// func(StreamStatus) bool)` shape, instantiated for Match[T]/error) driven
// by repeatedly calling next until it reports done. next's bool return
// mirrors io.Reader-adjacent "more data available" semantics: false means
// the source is exhausted and whatever error it returns (if any) is final.
func (d *Deserializer[T]) Iter(next func() (chunk []byte, more bool, err error)) iter.Seq2[Match[T], error] {
	return func(yield func(Match[T], error) bool) {
		for {
			data, more, err := next()
			if err != nil {
				yield(Match[T]{}, err)
				return
			}
			if !more {
				matches, err := d.Feed(EndChunk())
				for _, m := range matches {
					if !yield(m, nil) {
						return
					}
				}
				if err != nil {
					yield(Match[T]{}, err)
				}
				return
			}
			matches, err := d.Feed(BytesChunk(data))
			for _, m := range matches {
				if !yield(m, nil) {
					return
				}
			}
			if err != nil {
				yield(Match[T]{}, err)
				return
			}
		}
	}
}

// Stream reads r in fixed-size chunks and yields every value matching expr
// as it completes, without buffering the whole body. Grounded on the
// pull-iterator shape of a streaming JSONPath reader in the retrieval pack
// (a `Stream(ctx, r io.Reader, expr) (iter.Seq2[Result, error], error)`
// function over encoding/json.Decoder tokens), adapted here to walk raw
// bytes instead so absolute offsets survive arbitrary chunk boundaries.
func Stream[T any](ctx context.Context, r io.Reader, expr *jsonpath.Expression) iter.Seq2[Match[T], error] {
	d := NewDeserializer[T](expr, 0)
	br := bufio.NewReaderSize(r, defaultReadSize)
	buf := make([]byte, defaultReadSize)
	return d.Iter(func() ([]byte, bool, error) {
		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		default:
		}
		n, err := br.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			if err == io.EOF {
				return chunk, true, nil
			}
			return chunk, true, err
		}
		if err == io.EOF {
			return nil, false, nil
		}
		return nil, false, err
	})
}
