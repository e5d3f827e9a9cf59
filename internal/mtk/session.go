package mtk

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// discardCap bounds how many unrelated frames one wait consumes before it
// declares the channel desynchronized. Periodic position sentences between a
// command and its ack are normal; an endless stream of them is not.
const discardCap = 10

// RetryPolicy bounds one command exchange: the per-attempt response deadline
// and how many times to re-send after the first try.
type RetryPolicy struct {
	Timeout time.Duration
	Retries int
}

// Command is one outbound write. Raw goes to the wire verbatim when set;
// otherwise Body is checksum-framed as a text sentence.
type Command struct {
	Body string
	Raw  []byte
}

func (c Command) encode() []byte {
	if c.Raw != nil {
		return c.Raw
	}
	return EncodeSentence(c.Body)
}

// Session owns one serial channel and runs the command/response protocol
// over it: at most one outbound command and one inbound wait at a time.
// Registering a new wait cancels the previous one. A cancelled listener may
// still be blocked in a port read; whatever that read returns still belongs
// to the channel and is handed to the listener registered now, so a
// response racing a re-send is not swallowed by the wait it superseded.
type Session struct {
	port Port
	dec  *Decoder

	readMu sync.Mutex // serializes decoder access and frame routing

	mu  sync.Mutex
	cur *listener
}

func NewSession(port Port) *Session {
	return &Session{port: port, dec: NewDecoder(port)}
}

// listener is one registered wait, resolved at most once with the first
// frame whose tag matches or with an error.
type listener struct {
	tags []string
	ch   chan waitResult
	stop chan struct{}

	stopOnce sync.Once
	doneOnce sync.Once

	discarded int // unrelated frames consumed; guarded by Session.readMu
}

type waitResult struct {
	sent Sentence
	err  error
}

func (l *listener) cancel() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *listener) cancelled() bool {
	select {
	case <-l.stop:
		return true
	default:
		return false
	}
}

// resolve delivers the wait's single result and stops its reader. Late
// calls are dropped.
func (l *listener) resolve(r waitResult) {
	l.doneOnce.Do(func() {
		l.ch <- r
		l.cancel()
	})
}

func (l *listener) matches(s *Sentence) bool {
	if s == nil {
		return false
	}
	for _, t := range l.tags {
		if s.Tag() == t {
			return true
		}
	}
	return false
}

// listen registers a wait for any of the given tags, superseding the
// previous wait.
func (s *Session) listen(tags ...string) *listener {
	l := &listener{
		tags: tags,
		ch:   make(chan waitResult, 1),
		stop: make(chan struct{}),
	}
	s.mu.Lock()
	if s.cur != nil {
		s.cur.cancel()
	}
	s.cur = l
	s.mu.Unlock()
	go s.readUntil(l)
	return l
}

func (s *Session) current() *listener {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur
}

// readUntil consumes frames until l is done. Cancellation can land while a
// read is in flight; the result of that read is routed, not dropped.
func (s *Session) readUntil(l *listener) {
	for {
		if l.cancelled() {
			return
		}
		s.readMu.Lock()
		if l.cancelled() {
			// Superseded while parked here; the successor reads next.
			s.readMu.Unlock()
			return
		}
		f, err := s.dec.Next()
		s.route(f, err)
		s.readMu.Unlock()
	}
}

// route hands one decode result to the listener registered now, which is
// the reader itself except when a re-registration raced an in-flight read.
// Runs with readMu held; that also serializes the discard bookkeeping.
func (s *Session) route(f Frame, err error) {
	if errors.Is(err, ErrReadTimeout) {
		return
	}
	cur := s.current()
	if cur == nil || cur.cancelled() {
		return
	}
	if err != nil {
		cur.resolve(waitResult{err: err})
		return
	}
	if cur.matches(f.Sentence) {
		cur.resolve(waitResult{sent: *f.Sentence})
		return
	}
	cur.discarded++
	if cur.discarded >= discardCap {
		cur.resolve(waitResult{err: ErrDesync})
	}
}

// await blocks until l resolves, timeout passes or ctx is cancelled. On
// every exit the listener is cancelled; a result produced for it anyway is
// left unread in its buffer.
func (s *Session) await(ctx context.Context, l *listener, timeout time.Duration) (Sentence, error) {
	defer l.cancel()
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case r := <-l.ch:
		return r.sent, r.err
	case <-t.C:
		return Sentence{}, ErrTimeout
	case <-ctx.Done():
		return Sentence{}, ctx.Err()
	}
}

// AwaitTag waits for the next inbound sentence carrying any of the given
// tags, without sending anything first.
func (s *Session) AwaitTag(ctx context.Context, timeout time.Duration, tags ...string) (Sentence, error) {
	return s.await(ctx, s.listen(tags...), timeout)
}

// Send writes a command without expecting any response.
func (s *Session) Send(cmd Command) error {
	if _, err := s.port.Write(cmd.encode()); err != nil {
		return err
	}
	return s.port.Drain()
}

// Execute sends cmd and waits for a sentence tagged expect. The listener is
// registered before the write so the response cannot slip past, and stale
// input is flushed before the write so it cannot be mistaken for the
// response. Each timed-out attempt re-sends, up to pol.Retries extra times;
// a desynchronized or dead channel fails immediately, as does ctx ending.
func (s *Session) Execute(ctx context.Context, cmd Command, expect string, pol RetryPolicy) (Sentence, error) {
	attempts := pol.Retries + 1
	if attempts < 1 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return Sentence{}, err
		}
		l := s.listen(expect)
		if err := s.port.FlushInput(); err != nil {
			l.cancel()
			return Sentence{}, err
		}
		if err := s.Send(cmd); err != nil {
			l.cancel()
			return Sentence{}, err
		}
		sent, err := s.await(ctx, l, pol.Timeout)
		if err == nil {
			return sent, nil
		}
		if !errors.Is(err, ErrTimeout) {
			return Sentence{}, err
		}
	}
	return Sentence{}, ErrTimeout
}

// ExecuteAck runs Execute expecting the standard acknowledgement and checks
// its flag. A refusal comes back as ErrNotAcknowledged together with the
// ack sentence that carried it.
func (s *Session) ExecuteAck(ctx context.Context, cmd Command, pol RetryPolicy) (Sentence, error) {
	sent, err := s.Execute(ctx, cmd, TagAck, pol)
	if err != nil {
		return Sentence{}, err
	}
	if sent.Flag() != AckSuccess {
		return sent, fmt.Errorf("%w: %s (flag %s)", ErrNotAcknowledged, cmd.Body, sent.Flag())
	}
	return sent, nil
}
