package transport

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/quic-go/quic-go"
	"github.com/sirupsen/logrus"
)

// prioritySetter is implemented by quic.Stream implementations that
// expose native send-priority scheduling. Not every quic-go build
// carries this method, so callers type-assert for it and fall back to
// write-ordering when it is absent.
type prioritySetter interface {
	SetPriority(int)
}

// QueueBounds holds per-stream-type inbound queue depths. New sums the
// depths of the types that share a priority tier to size that tier's
// inbound queue; no separate limit is applied per stream type.
type QueueBounds struct {
	Audio, Video, Screen, RTCPFeedback, Data int
}

// DefaultQueueBounds returns the module's default per-type queue
// depths.
func DefaultQueueBounds() QueueBounds {
	return QueueBounds{Audio: 256, RTCPFeedback: 256, Video: 128, Screen: 64, Data: 32}
}

func (b QueueBounds) forType(t StreamType) int {
	switch t {
	case StreamAudio:
		return b.Audio
	case StreamVideo:
		return b.Video
	case StreamScreen:
		return b.Screen
	case StreamRTCPFeedback:
		return b.RTCPFeedback
	case StreamData:
		return b.Data
	default:
		return 32
	}
}

// MediaTransport owns one QUIC connection and the set of per-type
// streams multiplexed on it. It is the only component in this module
// that talks to the QUIC library directly.
//
// A MediaTransport is safe for concurrent use: state and all stream
// records share one internal mutex, which is held for bookkeeping only
// and released before any stream is opened or written.
type MediaTransport struct {
	mu    sync.RWMutex
	state State
	conn  quic.Connection

	streams map[StreamType]*streamRecord
	swg     sync.WaitGroup // tracks inbound reader goroutines

	stats      TransportStats
	statsMu    sync.Mutex
	bounds     QueueBounds
	highQueue  chan Framed
	medQueue   chan Framed
	lowQueue   chan Framed
	closed     chan struct{}
	closedOnce sync.Once

	acceptCtx    context.Context
	acceptCancel context.CancelFunc
}

// New constructs a MediaTransport in the Disconnected state. bounds
// configures the inbound per-priority queue depth; a zero value falls
// back to DefaultQueueBounds.
func New(bounds QueueBounds) *MediaTransport {
	if bounds == (QueueBounds{}) {
		bounds = DefaultQueueBounds()
	}
	return &MediaTransport{
		state:   StateDisconnected,
		streams: make(map[StreamType]*streamRecord),
		bounds:  bounds,
		// Queue capacity is a coarse aggregate across the types that
		// share a priority tier; a full tier queue stalls the readers
		// of every stream in that tier.
		highQueue: make(chan Framed, bounds.Audio+bounds.RTCPFeedback),
		medQueue:  make(chan Framed, bounds.Video),
		lowQueue:  make(chan Framed, bounds.Screen+bounds.Data),
		closed:    make(chan struct{}),
	}
}

func (t *MediaTransport) setState(next State) {
	t.mu.Lock()
	cur := t.state
	allowed := cur == next
	switch cur {
	case StateDisconnected:
		allowed = allowed || next == StateConnecting
	case StateConnecting:
		allowed = allowed || next == StateConnected || next == StateFailed || next == StateDisconnected
	case StateConnected:
		allowed = allowed || next == StateDisconnected || next == StateFailed
	case StateFailed:
		// Failed is terminal for this instance: a caller that wants to
		// retry must build a fresh MediaTransport via New.
	}
	if !allowed {
		t.mu.Unlock()
		logrus.WithFields(logrus.Fields{
			"function": "setState",
			"from":     cur,
			"to":       next,
		}).Warn("ignoring disallowed transport state transition")
		return
	}
	t.state = next
	t.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "setState",
		"from":     cur,
		"to":       next,
	}).Info("transport state transition")
}

// State returns the current connection-level state.
func (t *MediaTransport) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Bound reports whether Connect has ever been called on this
// instance. A never-bound transport sits in the Disconnected state
// permanently, which callers need to tell apart from a transport that
// reached Connected and later dropped.
func (t *MediaTransport) Bound() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.conn != nil
}

// Connect binds the transport to an established QUIC connection and
// starts the inbound accept loop. It is idempotent when already
// Connected to the same connection; connecting to a different peer
// connection while Connected fails with ErrAlreadyConnected. Any
// failure during setup transitions the transport to Failed, which is
// terminal for this instance.
func (t *MediaTransport) Connect(ctx context.Context, conn quic.Connection) error {
	t.mu.RLock()
	cur := t.state
	curConn := t.conn
	t.mu.RUnlock()

	if cur == StateConnected {
		if curConn == conn {
			return nil
		}
		return ErrAlreadyConnected
	}
	if cur == StateFailed {
		return ErrTransportFailed
	}

	t.setState(StateConnecting)

	acceptCtx, cancel := context.WithCancel(context.Background())

	t.mu.Lock()
	t.conn = conn
	t.acceptCtx = acceptCtx
	t.acceptCancel = cancel
	t.mu.Unlock()

	select {
	case <-ctx.Done():
		cancel()
		t.setState(StateFailed)
		return ErrCancelled
	default:
	}

	t.swg.Add(1)
	go t.acceptLoop(acceptCtx)

	t.setState(StateConnected)

	logrus.WithFields(logrus.Fields{
		"function": "Connect",
	}).Info("media transport connected")
	return nil
}

// acceptLoop accepts peer-opened streams and demultiplexes their
// frames into the priority queues until the transport disconnects or
// the connection fails.
func (t *MediaTransport) acceptLoop(ctx context.Context) {
	defer t.swg.Done()

	t.mu.RLock()
	conn := t.conn
	t.mu.RUnlock()

	for {
		stream, err := conn.AcceptStream(ctx)
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			logrus.WithFields(logrus.Fields{
				"function": "acceptLoop",
				"error":    err,
			}).Warn("connection-level failure accepting stream")
			t.fail()
			return
		}

		t.swg.Add(1)
		go t.readStream(ctx, stream)
	}
}

// readStream consumes frames from one accepted stream and pushes them
// into the priority queue matching each frame's declared type.
func (t *MediaTransport) readStream(ctx context.Context, stream quic.Stream) {
	defer t.swg.Done()

	var buf []byte
	chunk := make([]byte, 32*1024)

	for {
		n, err := stream.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			frames, rest, ferr := SplitFrames(buf)
			buf = rest
			for _, f := range frames {
				t.recordReceived(f.Type, len(f.Payload))
				t.enqueue(f)
			}
			if ferr != nil {
				t.recordStreamError(f0Type(frames))
				return
			}
		}
		if err != nil {
			if err != io.EOF {
				logrus.WithFields(logrus.Fields{
					"function": "readStream",
					"error":    err,
				}).Debug("stream closed")
			}
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

// f0Type is a tiny helper so readStream's error path can log a type
// hint without a separate branch when no frames decoded yet.
func f0Type(frames []Framed) StreamType {
	if len(frames) == 0 {
		return 0
	}
	return frames[len(frames)-1].Type
}

func (t *MediaTransport) enqueue(f Framed) {
	var q chan Framed
	switch priorityFor(f.Type) {
	case PriorityHigh:
		q = t.highQueue
	case PriorityMedium:
		q = t.medQueue
	default:
		q = t.lowQueue
	}
	select {
	case q <- f:
	case <-t.closed:
	}
}

// fail transitions the transport to Failed, closes every open stream,
// and wakes any outstanding Receive callers with ErrNotConnected.
func (t *MediaTransport) fail() {
	t.setState(StateFailed)
	t.closeAllStreams()
	t.closedOnce.Do(func() { close(t.closed) })
}

// Disconnect transitions the transport to Disconnected, closing every
// open stream. Per-stream stats already recorded remain readable via
// Stats/StatsByPriority.
func (t *MediaTransport) Disconnect() error {
	t.mu.Lock()
	if t.acceptCancel != nil {
		t.acceptCancel()
	}
	t.mu.Unlock()

	t.closeAllStreams()
	t.setState(StateDisconnected)
	t.closedOnce.Do(func() { close(t.closed) })

	logrus.WithFields(logrus.Fields{"function": "Disconnect"}).Info("media transport disconnected")
	return nil
}

func (t *MediaTransport) closeAllStreams() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, rec := range t.streams {
		if rec.stream != nil && !rec.closed {
			_ = rec.stream.Close()
		}
		rec.closed = true
	}
}

// OpenStream lazily opens the outbound QUIC stream for t if not
// already open. Concurrent opens of the same type are coalesced under
// the transport's lock.
func (t *MediaTransport) OpenStream(ctx context.Context, st StreamType) error {
	if !st.Valid() {
		return ErrInvalidStreamType
	}
	if t.State() != StateConnected {
		return ErrNotConnected
	}

	t.mu.Lock()
	if rec, ok := t.streams[st]; ok && !rec.closed && rec.stream != nil {
		t.mu.Unlock()
		return nil
	}
	conn := t.conn
	t.mu.Unlock()

	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		t.recordStreamError(st)
		return fmt.Errorf("%w: %v", ErrStreamError, err)
	}
	if ps, ok := stream.(prioritySetter); ok {
		ps.SetPriority(int(priorityFor(st)))
	}

	t.mu.Lock()
	rec, ok := t.streams[st]
	if ok && !rec.closed && rec.stream != nil {
		// A concurrent OpenStream for the same type got there first.
		t.mu.Unlock()
		_ = stream.Close()
		return nil
	}
	if !ok {
		// A record created by inbound frames keeps its counters.
		rec = &streamRecord{streamType: st}
		t.streams[st] = rec
	}
	rec.stream = stream
	rec.openedAt = time.Now()
	rec.closed = false
	t.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "OpenStream",
		"type":     st,
	}).Info("opened outbound stream")
	return nil
}

// EnsureStreamOpen is an alias for OpenStream kept to mirror the
// public contract's naming; both are idempotent.
func (t *MediaTransport) EnsureStreamOpen(ctx context.Context, st StreamType) error {
	return t.OpenStream(ctx, st)
}

// CloseStream closes and removes the outbound record for st, if open.
// It does not affect other stream types' stats.
func (t *MediaTransport) CloseStream(st StreamType) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.streams[st]
	if !ok {
		return nil
	}
	if rec.stream != nil {
		_ = rec.stream.Close()
	}
	delete(t.streams, st)
	return nil
}

// ReopenStream closes the existing stream of type st and opens a fresh
// one. It fails if no stream of that type exists yet.
func (t *MediaTransport) ReopenStream(ctx context.Context, st StreamType) error {
	t.mu.RLock()
	_, ok := t.streams[st]
	t.mu.RUnlock()
	if !ok {
		return fmt.Errorf("transport: reopen of unopened stream type %s: %w", st, ErrStreamClosed)
	}
	if err := t.CloseStream(st); err != nil {
		return err
	}
	return t.OpenStream(ctx, st)
}

// OpenAllStreams opens all five stream types, returning the first
// error encountered (subsequent types are still attempted).
func (t *MediaTransport) OpenAllStreams(ctx context.Context) error {
	var firstErr error
	for _, st := range AllStreamTypes {
		if err := t.OpenStream(ctx, st); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// StreamCount returns the number of stream records not closed. A
// record is created by an outbound open or by the first inbound frame
// of its type.
func (t *MediaTransport) StreamCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, rec := range t.streams {
		if !rec.closed {
			n++
		}
	}
	return n
}

// OpenStreamTypes returns the set of stream types with a record that
// is not closed (see StreamCount), in AllStreamTypes order.
func (t *MediaTransport) OpenStreamTypes() []StreamType {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []StreamType
	for _, st := range AllStreamTypes {
		if rec, ok := t.streams[st]; ok && !rec.closed {
			out = append(out, st)
		}
	}
	return out
}

// Send ensures the stream for t is open, frames payload, and writes
// the frame. Oversized payloads are rejected before any stream is
// opened or any stat is touched.
func (t *MediaTransport) Send(ctx context.Context, st StreamType, payload []byte) error {
	if len(payload) > MaxFramePayload {
		return ErrOversizedPayload
	}
	if t.State() != StateConnected {
		return ErrNotConnected
	}
	if err := t.OpenStream(ctx, st); err != nil {
		return err
	}

	framed, err := Frame(st, payload)
	if err != nil {
		return err
	}

	t.mu.RLock()
	rec := t.streams[st]
	t.mu.RUnlock()

	if _, err := rec.stream.Write(framed); err != nil {
		t.recordStreamError(st)
		_ = t.CloseStream(st)
		return fmt.Errorf("%w: %v", ErrStreamError, err)
	}

	t.recordSent(st, len(payload))
	return nil
}

// SendAudio, SendVideo, SendScreen, SendRTCP, and SendData pin the
// stream type for the corresponding Send call.
func (t *MediaTransport) SendAudio(ctx context.Context, payload []byte) error {
	return t.Send(ctx, StreamAudio, payload)
}

func (t *MediaTransport) SendVideo(ctx context.Context, payload []byte) error {
	return t.Send(ctx, StreamVideo, payload)
}

func (t *MediaTransport) SendScreen(ctx context.Context, payload []byte) error {
	return t.Send(ctx, StreamScreen, payload)
}

func (t *MediaTransport) SendRTCP(ctx context.Context, payload []byte) error {
	err := t.Send(ctx, StreamRTCPFeedback, payload)
	if err == nil {
		t.statsMu.Lock()
		t.stats.RTCPSent++
		t.statsMu.Unlock()
	}
	return err
}

func (t *MediaTransport) SendData(ctx context.Context, payload []byte) error {
	return t.Send(ctx, StreamData, payload)
}

// Receive dequeues the next complete frame from any open stream. A
// frame already waiting in the high-priority queue is taken first;
// otherwise whichever queue has a frame is served, with no preference
// between medium and low.
func (t *MediaTransport) Receive(ctx context.Context) (StreamType, []byte, error) {
	select {
	case f := <-t.highQueue:
		return f.Type, f.Payload, nil
	default:
	}
	select {
	case f := <-t.highQueue:
		return f.Type, f.Payload, nil
	case f := <-t.medQueue:
		return f.Type, f.Payload, nil
	case f := <-t.lowQueue:
		return f.Type, f.Payload, nil
	case <-t.closed:
		return 0, nil, ErrNotConnected
	case <-ctx.Done():
		return 0, nil, ErrCancelled
	}
}

func (t *MediaTransport) recordSent(st StreamType, n int) {
	t.mu.Lock()
	if rec, ok := t.streams[st]; ok {
		rec.packetsSent++
		rec.bytesSent += uint64(n)
	}
	t.mu.Unlock()

	t.statsMu.Lock()
	t.stats.PacketsSent++
	t.stats.BytesSent += uint64(n)
	t.statsMu.Unlock()
}

func (t *MediaTransport) recordReceived(st StreamType, n int) {
	t.mu.Lock()
	rec, ok := t.streams[st]
	if !ok {
		rec = &streamRecord{streamType: st, openedAt: time.Now()}
		t.streams[st] = rec
	}
	rec.packetsReceived++
	rec.bytesReceived += uint64(n)
	t.mu.Unlock()

	t.statsMu.Lock()
	t.stats.PacketsReceived++
	t.stats.BytesReceived += uint64(n)
	if st == StreamRTCPFeedback {
		t.stats.RTCPReceived++
	}
	t.statsMu.Unlock()
}

func (t *MediaTransport) recordStreamError(st StreamType) {
	t.statsMu.Lock()
	t.stats.StreamErrors++
	t.statsMu.Unlock()
	logrus.WithFields(logrus.Fields{
		"function": "recordStreamError",
		"type":     st,
	}).Warn("stream error recorded")
}

// Stats returns the per-stream snapshot for st, or the zero value if
// no record of that type exists (never used, or removed by
// CloseStream).
func (t *MediaTransport) Stats(st StreamType) StreamStats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.streams[st]
	if !ok {
		return StreamStats{Type: st}
	}
	return rec.snapshot()
}

// AggregateStats returns the connection-level totals.
func (t *MediaTransport) AggregateStats() TransportStats {
	t.statsMu.Lock()
	defer t.statsMu.Unlock()
	return t.stats
}

// StatsByPriority buckets each stream record's snapshot, open or
// closed, by its fixed priority tier.
func (t *MediaTransport) StatsByPriority() map[StreamPriority][]StreamStats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := map[StreamPriority][]StreamStats{}
	for _, st := range AllStreamTypes {
		rec, ok := t.streams[st]
		if !ok {
			continue
		}
		p := priorityFor(st)
		out[p] = append(out[p], rec.snapshot())
	}
	return out
}

// HighestPriorityOpenStream returns the open stream type with the
// numerically lowest (highest-precedence) priority, and false if no
// stream is open.
func (t *MediaTransport) HighestPriorityOpenStream() (StreamType, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	best := StreamType(0)
	bestPrio := PriorityLow + 1
	found := false
	for _, st := range AllStreamTypes {
		rec, ok := t.streams[st]
		if !ok || rec.closed {
			continue
		}
		p := priorityFor(st)
		if p < bestPrio {
			bestPrio = p
			best = st
			found = true
		}
	}
	return best, found
}
