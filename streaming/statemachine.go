package streaming

import (
	"encoding/json"
	"fmt"

	httpstream "github.com/manax-dev/httpstream"
	"github.com/manax-dev/httpstream/jsonpath"
)

// maxFrameDepth bounds nested object/array depth, mirroring the recursion
// guard a recursive-descent JSON parser would otherwise need a call-stack
// limit for.
const maxFrameDepth = 256

type scanMode int

const (
	modeValue scanMode = iota
	modeObjectKeyOrClose
	modeObjectColon
	modeObjectValue
	modeObjectCommaOrClose
	modeArrayValueOrClose
	modeArrayCommaOrClose
	modeString
	modeNumber
	modeLiteral
	modeTrailing
)

type stringRole int

const (
	roleKey stringRole = iota
	roleValue
)

// Boundary is a fully-closed value's byte range in the stream that matched
// the compiled expression, paired with its normalized path. Inline carries
// precomputed JSON bytes instead of a stream byte range for matches produced
// by whole-container re-evaluation (Slice/Union/negative-Index selectors,
// which need their parent array's length to resolve and so cannot be
// attributed to a single child's own byte range).
type Boundary struct {
	Start, End int64
	Path       string
	Inline     []byte
}

// childPlan is the result of testing one container's child key/index
// against the selector chain active for that container's direct children.
type childPlan struct {
	active    []int
	matched   bool
	deferred  bool
	deferFrom int
}

// frame tracks one open object or array.
type frame struct {
	isObject   bool
	active     []int
	matched    bool
	deferred   bool
	deferFrom  int
	start      int64
	arrayIndex int64
	keyBuf     []byte
	path       string

	// wholeBuffer marks a container whose own children are governed by a
	// position-dependent selector (Slice, Union, or a negative Index) that
	// cannot be resolved one child at a time without knowing how many
	// siblings it has. Such a container is re-evaluated whole at close time
	// instead of child by child.
	wholeBuffer   bool
	wholeDeferFrom int
}

type closeFunc func()

// Machine is a byte-level, resumable JSON scanner that emits Boundary
// values for byte ranges matching a compiled jsonpath.Expression, without
// ever holding the whole document in memory. Bytes are fed via AppendChunk;
// a Machine handles exactly one logical JSON stream and is not safe for
// concurrent use. Grounded on the hand-rolled table/mode-stack parser style
// (character classes, explicit mode, action states) generalized from
// "parse one whole value" to "parse incrementally, tracking which selector
// states are still reachable at each open frame".
type Machine struct {
	buf       *buffer
	selectors []jsonpath.Selector
	expr      *jsonpath.Expression

	frames []*frame
	mode   scanMode
	pos    int64

	escaping   bool
	stringRole stringRole

	curPlan      childPlan
	curStart     int64
	curPath      string
	onClose      closeFunc
	topFinished  bool

	matches []Boundary

	stats Stats
}

// Stats reports introspection counters for a Machine, read-only and not
// wired to any metrics system.
type Stats struct {
	BytesConsumed  int64
	MatchesEmitted int64
	Compactions    int64
}

// NewMachine builds a Machine for expr, buffering at most maxBufferedBytes
// of not-yet-compacted input (0 selects the package default).
func NewMachine(expr *jsonpath.Expression, maxBufferedBytes int64) *Machine {
	var selectors []jsonpath.Selector
	if len(expr.Selectors) > 0 {
		selectors = expr.Selectors[1:] // drop the leading Root selector
	}
	m := &Machine{
		buf:       newBuffer(maxBufferedBytes),
		selectors: selectors,
		expr:      expr,
	}
	// The top-level value has no parent testing it against a selector: it
	// either is the whole match (a bare "$" expression) or starts the walk
	// at selector index 0 for its own children.
	if len(selectors) == 0 {
		m.curPlan = childPlan{matched: true, deferFrom: -1}
	} else {
		m.curPlan = childPlan{active: []int{0}, deferFrom: -1}
	}
	m.curPath = "$"
	return m
}

// Position reports the absolute offset of the next byte AppendChunk expects.
func (m *Machine) Position() int64 { return m.buf.Position() }

// End signals that no more bytes will arrive, flushing a trailing
// number/literal that was still being scanned (since those have no closing
// delimiter of their own) and returning a *httpstream.StreamError if the
// document was left structurally incomplete (an open object/array, or no
// value seen at all).
func (m *Machine) End() ([]Boundary, error) {
	m.matches = m.matches[:0]
	if (m.mode == modeNumber || m.mode == modeLiteral) && m.onClose != nil {
		done := m.onClose
		m.onClose = nil
		done()
	}
	m.stats.MatchesEmitted += int64(len(m.matches))
	if len(m.frames) > 0 || m.mode == modeValue {
		return m.matches, &httpstream.StreamError{Message: "unexpected end of stream", State: "incomplete", Recoverable: false}
	}
	return m.matches, nil
}

// Stats returns a snapshot of the machine's introspection counters.
func (m *Machine) Stats() Stats { return m.stats }

// AppendChunk feeds more stream bytes in and scans as much of them as forms
// complete tokens, returning every Boundary fully closed during this call.
func (m *Machine) AppendChunk(data []byte) ([]Boundary, error) {
	if err := m.buf.AppendChunk(data); err != nil {
		return nil, err
	}
	m.matches = m.matches[:0]
	if err := m.run(); err != nil {
		return m.matches, err
	}
	m.stats.MatchesEmitted += int64(len(m.matches))
	m.compact()
	return m.matches, nil
}

func (m *Machine) compact() {
	low := m.pos
	if len(m.frames) > 0 {
		if m.frames[0].start < low {
			low = m.frames[0].start
		}
	} else if !m.topFinished && m.curStart < low {
		low = m.curStart
	}
	// Boundaries returned by this AppendChunk are sliced by the caller after
	// it returns, so their bytes stay buffered until the next call.
	for _, b := range m.matches {
		if b.Inline == nil && b.Start < low {
			low = b.Start
		}
	}
	before := m.buf.Base()
	m.buf.Compact(low)
	if m.buf.Base() != before {
		m.stats.Compactions++
	}
}

func (m *Machine) run() error {
	for {
		b, ok := m.buf.ByteAt(m.pos)
		if !ok {
			return nil
		}
		advance, err := m.step(b)
		if err != nil {
			return err
		}
		if advance {
			m.pos++
			m.stats.BytesConsumed++
		}
	}
}

func isSpace(b byte) bool { return b == ' ' || b == '\t' || b == '\n' || b == '\r' }

func (m *Machine) step(b byte) (bool, error) {
	switch m.mode {
	case modeValue:
		return m.stepValue(b)
	case modeObjectKeyOrClose:
		return m.stepObjectKeyOrClose(b)
	case modeObjectColon:
		return m.stepObjectColon(b)
	case modeObjectValue:
		return m.stepObjectValueStart(b)
	case modeObjectCommaOrClose:
		return m.stepObjectCommaOrClose(b)
	case modeArrayValueOrClose:
		return m.stepArrayValueOrClose(b)
	case modeArrayCommaOrClose:
		return m.stepArrayCommaOrClose(b)
	case modeString:
		return m.stepString(b)
	case modeNumber:
		return m.stepNumber(b)
	case modeLiteral:
		return m.stepLiteral(b)
	case modeTrailing:
		if isSpace(b) {
			return true, nil
		}
		return false, &httpstream.JSONParseError{Message: "unexpected trailing data", Offset: m.pos}
	default:
		return false, fmt.Errorf("streaming: unreachable scan mode %d", m.mode)
	}
}

func (m *Machine) stepValue(b byte) (bool, error) {
	if isSpace(b) {
		return true, nil
	}
	m.curStart = m.pos
	return m.beginValue(b, m.scalarCloseForCurrent())
}

// scalarCloseForCurrent captures the plan/path/start currently staged in
// curPlan/curPath/curStart for use once the about-to-begin scalar value
// (string/number/literal) finishes. Containers don't use this: they resume
// scanning via closeContainer once their closing bracket is seen.
func (m *Machine) scalarCloseForCurrent() closeFunc {
	plan := m.curPlan
	path := m.curPath
	start := m.curStart
	resumeObjectValue := len(m.frames) > 0 && m.frames[len(m.frames)-1].isObject
	return func() {
		matched := plan.matched
		if !matched && plan.deferred {
			// A filter candidate that is a scalar is decided here, once its
			// bytes are complete; a failure to decode it counts as no match.
			matched, _ = m.evaluateDeferred(start, m.pos, plan.deferFrom)
		}
		if matched {
			m.matches = append(m.matches, Boundary{Start: start, End: m.pos, Path: path})
		}
		m.resumeAfterValue(resumeObjectValue)
	}
}

func (m *Machine) resumeAfterValue(wasObjectValue bool) {
	if len(m.frames) == 0 {
		m.mode = modeTrailing
		m.topFinished = true
		return
	}
	if wasObjectValue {
		m.mode = modeObjectCommaOrClose
	} else {
		m.mode = modeArrayCommaOrClose
	}
}

// beginValue dispatches on the first byte of any value (top-level or a
// container child), pushing a frame for containers or switching into
// scalar-scanning mode otherwise.
func (m *Machine) beginValue(b byte, onScalarDone closeFunc) (bool, error) {
	switch {
	case b == '{':
		if err := m.pushFrame(true); err != nil {
			return false, err
		}
		m.mode = modeObjectKeyOrClose
		return true, nil
	case b == '[':
		if err := m.pushFrame(false); err != nil {
			return false, err
		}
		m.mode = modeArrayValueOrClose
		return true, nil
	case b == '"':
		m.stringRole = roleValue
		m.escaping = false
		m.mode = modeString
		m.onClose = onScalarDone
		return true, nil
	case b == '-' || (b >= '0' && b <= '9'):
		m.mode = modeNumber
		m.onClose = onScalarDone
		return true, nil
	case b == 't' || b == 'f' || b == 'n':
		m.mode = modeLiteral
		m.onClose = onScalarDone
		return true, nil
	default:
		return false, &httpstream.JSONParseError{Message: fmt.Sprintf("unexpected character %q", b), Offset: m.pos}
	}
}

func (m *Machine) pushFrame(isObject bool) error {
	if len(m.frames) >= maxFrameDepth {
		return &httpstream.StreamError{Message: "maximum nesting depth exceeded", State: "push-frame", Recoverable: false}
	}
	f := &frame{
		isObject:  isObject,
		active:    m.curPlan.active,
		matched:   m.curPlan.matched,
		deferred:  m.curPlan.deferred,
		deferFrom: m.curPlan.deferFrom,
		start:     m.curStart,
		path:      m.curPath,
	}
	m.frames = append(m.frames, f)
	return nil
}

func (m *Machine) topFrame() *frame { return m.frames[len(m.frames)-1] }

// closeContainer pops the innermost frame on seeing its closing bracket,
// emitting a Boundary if it matched (directly, or via deferred evaluation
// for Filter selectors) or evaluating it whole when a Slice/Union/
// negative-Index selector governs its children, then resumes scanning
// whatever enclosing context was holding it as a child.
func (m *Machine) closeContainer() error {
	f := m.frames[len(m.frames)-1]
	m.frames = m.frames[:len(m.frames)-1]
	end := m.pos + 1

	if f.wholeBuffer {
		if err := m.evaluateWholeBuffer(f, end); err != nil {
			return err
		}
		m.resumeAfterValue(len(m.frames) > 0 && m.topFrame().isObject)
		return nil
	}

	matched := f.matched
	if !matched && f.deferred {
		var err error
		matched, err = m.evaluateDeferred(f.start, end, f.deferFrom)
		if err != nil {
			return err
		}
	}
	if matched {
		m.matches = append(m.matches, Boundary{Start: f.start, End: end, Path: f.path})
	}
	m.resumeAfterValue(len(m.frames) > 0 && m.topFrame().isObject)
	return nil
}

// evaluateDeferred tests a single candidate value (already known to be a
// FilterSelector's subject, since that is the only selector kind resolvable
// from one child's own content) against the filter predicate at deferFrom,
// then, if it passes, against whatever selectors follow it.
func (m *Machine) evaluateDeferred(start, end int64, deferFrom int) (bool, error) {
	raw, ok := m.buf.Slice(start, end)
	if !ok {
		return false, &httpstream.BufferError{Operation: "evaluate-deferred", Requested: end - start, Available: 0}
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false, &httpstream.JSONParseError{Message: "could not decode candidate for filtered selector", Offset: start, Wrapped: err}
	}
	filterSel, ok := m.selectors[deferFrom].(jsonpath.FilterSelector)
	if !ok {
		return false, nil
	}
	pass, err := jsonpath.EvaluateFilter(filterSel, v)
	if err != nil || !pass {
		return false, nil
	}
	rest := m.selectors[deferFrom+1:]
	if len(rest) == 0 {
		return true, nil
	}
	remainder := &jsonpath.Expression{Selectors: append([]jsonpath.Selector{jsonpath.RootSelector{}}, rest...)}
	nodes, err := remainder.Evaluate(v)
	if err != nil {
		return false, nil
	}
	return len(nodes) > 0, nil
}

// evaluateWholeBuffer decodes a container whose children are governed by a
// Slice/Union/negative-Index selector in one shot, since resolving those
// requires knowing the container's full length. Each resulting node is
// re-encoded to JSON and reported as an Inline Boundary, since no single
// stream byte range corresponds to it once arbitrary selectors (e.g. a
// trailing Child after the Slice) have run against the decoded value.
func (m *Machine) evaluateWholeBuffer(f *frame, end int64) error {
	raw, ok := m.buf.Slice(f.start, end)
	if !ok {
		return &httpstream.BufferError{Operation: "evaluate-whole-buffer", Requested: end - f.start, Available: 0}
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return &httpstream.JSONParseError{Message: "could not decode candidate for positional selector", Offset: f.start, Wrapped: err}
	}
	remainder := &jsonpath.Expression{Selectors: append([]jsonpath.Selector{jsonpath.RootSelector{}}, m.selectors[f.wholeDeferFrom:]...)}
	nodes, err := remainder.Evaluate(v)
	if err != nil {
		return nil
	}
	for _, n := range nodes {
		inline, err := json.Marshal(n.Value)
		if err != nil {
			continue
		}
		path := f.path
		if len(n.Path) > 1 {
			path += n.Path[1:]
		}
		m.matches = append(m.matches, Boundary{Path: path, Inline: inline})
	}
	return nil
}

// isPositional reports whether the selector at idx needs sibling-count
// information (a container's full length) to resolve, and so cannot be
// tested one child at a time while still streaming.
func (m *Machine) isPositional(idx int) bool {
	switch sel := m.selectors[idx].(type) {
	case jsonpath.SliceSelector, jsonpath.UnionSelector:
		return true
	case jsonpath.IndexSelector:
		return sel.Index < 0
	default:
		return false
	}
}

// planChild computes how a container's direct child (named key for an
// object, positional index for an array) should be handled, given the NFA
// states active for that container.
func (m *Machine) planChild(parentActive []int, isObjectChild bool, key string, arrayIdx int64) childPlan {
	var plan childPlan
	plan.deferFrom = -1
	seen := map[int]bool{}
	add := func(idx int) {
		if idx >= len(m.selectors) {
			plan.matched = true
			return
		}
		if seen[idx] {
			return
		}
		seen[idx] = true
		plan.active = append(plan.active, idx)
	}
	var visit func(idx int)
	visit = func(idx int) {
		if idx >= len(m.selectors) {
			plan.matched = true
			return
		}
		switch sel := m.selectors[idx].(type) {
		case jsonpath.ChildSelector:
			if isObjectChild && key == sel.Name {
				add(idx + 1)
			}
		case jsonpath.IndexSelector:
			if !isObjectChild {
				if sel.Index >= 0 {
					if arrayIdx == sel.Index {
						add(idx + 1)
					}
				} else {
					plan.deferred = true
					if plan.deferFrom < 0 || idx < plan.deferFrom {
						plan.deferFrom = idx
					}
				}
			}
		case jsonpath.WildcardSelector:
			add(idx + 1)
		case jsonpath.RecursiveDescentSelector:
			add(idx)
			visit(idx + 1)
		case jsonpath.SliceSelector, jsonpath.FilterSelector, jsonpath.UnionSelector:
			plan.deferred = true
			if plan.deferFrom < 0 || idx < plan.deferFrom {
				plan.deferFrom = idx
			}
		}
	}
	for _, idx := range parentActive {
		visit(idx)
	}
	return plan
}

// adoptWholeBufferIfPositional checks the plan just computed for the child
// about to be entered; if it's governed by a position-dependent selector, the
// parent container f is promoted to whole-buffer evaluation and the child's
// own plan is neutralized (the parent's close will account for all of its
// children at once, so the child must not also try to match individually).
func (m *Machine) adoptWholeBufferIfPositional(f *frame) {
	if f.wholeBuffer {
		m.curPlan = childPlan{deferFrom: -1}
		return
	}
	if m.curPlan.deferred && m.isPositional(m.curPlan.deferFrom) {
		f.wholeBuffer = true
		f.wholeDeferFrom = m.curPlan.deferFrom
		m.curPlan = childPlan{deferFrom: -1}
	}
}

func pathAppendKey(base, key string) string { return fmt.Sprintf("%s[%q]", base, key) }
func pathAppendIndex(base string, idx int64) string { return fmt.Sprintf("%s[%d]", base, idx) }

// --- Object scanning ---

func (m *Machine) stepObjectKeyOrClose(b byte) (bool, error) {
	if isSpace(b) {
		return true, nil
	}
	if b == '}' {
		return true, m.closeContainer()
	}
	if b != '"' {
		return false, &httpstream.JSONParseError{Message: "expected object key or '}'", Offset: m.pos}
	}
	f := m.topFrame()
	f.keyBuf = f.keyBuf[:0]
	m.stringRole = roleKey
	m.escaping = false
	m.mode = modeString
	m.onClose = nil
	return true, nil
}

func (m *Machine) stepObjectColon(b byte) (bool, error) {
	if isSpace(b) {
		return true, nil
	}
	if b != ':' {
		return false, &httpstream.JSONParseError{Message: "expected ':' after object key", Offset: m.pos}
	}
	m.mode = modeObjectValue
	return true, nil
}

func (m *Machine) stepObjectValueStart(b byte) (bool, error) {
	if isSpace(b) {
		return true, nil
	}
	f := m.topFrame()
	key := string(f.keyBuf)
	m.curPlan = m.planChild(f.active, true, key, 0)
	m.adoptWholeBufferIfPositional(f)
	m.curStart = m.pos
	m.curPath = pathAppendKey(f.path, key)
	return m.beginValue(b, m.scalarCloseForCurrent())
}

func (m *Machine) stepObjectCommaOrClose(b byte) (bool, error) {
	if isSpace(b) {
		return true, nil
	}
	if b == '}' {
		return true, m.closeContainer()
	}
	if b != ',' {
		return false, &httpstream.JSONParseError{Message: "expected ',' or '}'", Offset: m.pos}
	}
	m.mode = modeObjectKeyOrClose
	return true, nil
}

func (m *Machine) stepArrayValueOrClose(b byte) (bool, error) {
	if isSpace(b) {
		return true, nil
	}
	if b == ']' {
		return true, m.closeContainer()
	}
	f := m.topFrame()
	m.curPlan = m.planChild(f.active, false, "", f.arrayIndex)
	m.adoptWholeBufferIfPositional(f)
	m.curStart = m.pos
	m.curPath = pathAppendIndex(f.path, f.arrayIndex)
	return m.beginValue(b, m.scalarCloseForCurrent())
}

func (m *Machine) stepArrayCommaOrClose(b byte) (bool, error) {
	if isSpace(b) {
		return true, nil
	}
	if b == ']' {
		return true, m.closeContainer()
	}
	if b != ',' {
		return false, &httpstream.JSONParseError{Message: "expected ',' or ']'", Offset: m.pos}
	}
	m.topFrame().arrayIndex++
	m.mode = modeArrayValueOrClose
	return true, nil
}

// --- Scalar scanning ---

func (m *Machine) stepString(b byte) (bool, error) {
	if m.escaping {
		m.escaping = false
		if m.stringRole == roleKey {
			m.topFrame().keyBuf = append(m.topFrame().keyBuf, b)
		}
		return true, nil
	}
	if b == '\\' {
		m.escaping = true
		if m.stringRole == roleKey {
			m.topFrame().keyBuf = append(m.topFrame().keyBuf, b)
		}
		return true, nil
	}
	if b == '"' {
		if m.stringRole == roleKey {
			f := m.topFrame()
			var key string
			quoted := append([]byte{'"'}, append(append([]byte{}, f.keyBuf...), '"')...)
			if err := json.Unmarshal(quoted, &key); err == nil {
				f.keyBuf = []byte(key)
			}
			m.mode = modeObjectColon
			return true, nil
		}
		done := m.onClose
		m.onClose = nil
		m.pos++
		if done != nil {
			done()
		}
		return false, nil
	}
	if m.stringRole == roleKey {
		m.topFrame().keyBuf = append(m.topFrame().keyBuf, b)
	}
	return true, nil
}

func isNumberByte(b byte) bool {
	return b == '-' || b == '+' || b == '.' || b == 'e' || b == 'E' || (b >= '0' && b <= '9')
}

func (m *Machine) stepNumber(b byte) (bool, error) {
	if isNumberByte(b) {
		return true, nil
	}
	done := m.onClose
	m.onClose = nil
	if done != nil {
		done()
	}
	return false, nil
}

func isLiteralByte(b byte) bool {
	switch b {
	case 't', 'r', 'u', 'e', 'f', 'a', 'l', 's', 'n':
		return true
	default:
		return false
	}
}

func (m *Machine) stepLiteral(b byte) (bool, error) {
	if isLiteralByte(b) {
		return true, nil
	}
	done := m.onClose
	m.onClose = nil
	if done != nil {
		done()
	}
	return false, nil
}
