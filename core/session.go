package core

import (
	"fmt"
	"math"
	"math/rand"
	"net"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	// maxSequences is the size of the sequence number space of one run.
	maxSequences = math.MaxUint16 + 1

	// pollReadTimeout bounds each individual socket receive so the
	// receiving side can recheck for a finish request promptly.
	pollReadTimeout = 200 * time.Millisecond

	maxDatagramLength = headerLength + maxPayloadLength
)

// Session is one run of echo requests against a single server.
type Session struct {
	settings *Settings

	// id is the random identifier carried by every request of this run,
	// used to tell our replies apart from foreign datagrams.
	id uint16

	// peer is the resolved address of the target server.
	peer *net.UDPAddr

	// table correlates outstanding requests with their replies. It is the
	// only mutable state shared between the sending and receiving sides.
	table *Table

	// payload is the byte content echoed back verbatim by the server.
	payload []byte

	// logger is an instance of logrus used to log activities related to this session
	logger *log.Logger

	// nextSeq is the sequence number of the next echo request.
	nextSeq int

	// sent is the number of echo requests sent so far.
	sent int

	startedAt time.Time
	report    *Report

	// finishReqs is the channel that will signal a request to end the session run.
	finishReqs chan error

	// finishing guards against queueing more than one finish request from
	// the event loop.
	finishing bool

	isStarted  bool
	isFinished bool

	// onStart are the callback functions called when the session starts.
	onStart []func(*Session)

	// onRecv are the callback functions called when a probe's outcome is known.
	onRecv []func(*Session, *RoundTrip)

	// onFinish are the callback functions called when the session ends.
	onFinish []func(*Session, *Report)
}

// NewSession creates a new Session targeting the given server address.
func NewSession(address string, settings *Settings) (*Session, error) {
	logger := NewLogger(settings.LoggingLevel)

	logger.Debug("Validating settings")

	if err := settings.validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	logger.Infof("Resolving address %s", address)

	peer, err := resolvePeer(address, settings.Port)
	if err != nil {
		return nil, err
	}

	logger.Infof("Address %s resolved to %s", address, peer.String())

	r := rand.New(rand.NewSource(time.Now().UTC().UnixNano()))

	payload := make([]byte, settings.PayloadSize)
	for i := range payload {
		payload[i] = byte(i)
	}

	session := &Session{
		settings:   settings,
		id:         uint16(r.Intn(math.MaxUint16)),
		peer:       peer,
		table:      newTable(),
		payload:    payload,
		logger:     logger,
		finishReqs: make(chan error, 1),
	}

	logger.Infof("Created session with id %d, addr %s, count %d", session.id, peer.String(), settings.Count)

	return session, nil
}

// Run sends the configured number of echo requests while concurrently
// collecting replies, and blocks until every probe has either resolved or
// timed out. It may be called once per session.
func (s *Session) Run() error {
	if s.isFinished {
		return fmt.Errorf("this session has already finished")
	}
	if s.isStarted {
		return fmt.Errorf("this session has already started")
	}
	defer close(s.finishReqs)
	s.isStarted = true

	transport, err := newTransport(s.peer)
	if err != nil {
		return err
	}
	defer transport.Close()

	s.startedAt = time.Now()

	s.logger.Info("Calling start callbacks")
	for _, f := range s.onStart {
		f(s)
	}

	// timer pacing the sends, firing immediately for the first probe
	interval := time.NewTimer(0)
	defer interval.Stop()

	// ticker sweeping the table for probes whose timeout has elapsed
	sweep := time.NewTicker(s.sweepInterval())
	defer sweep.Stop()

	s.logger.Debug("Creating channel of incoming raw datagrams")
	rawPackets := make(chan *rawPacket, 5)

	s.logger.Info("Calling goroutine to poll for incoming raw datagrams")
	stopPolling := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go s.pollTransport(&wg, transport, rawPackets, stopPolling)

	for {
		select {
		case <-interval.C:
			s.handleIntervalTimer(transport, interval)
		case <-sweep.C:
			s.handleSweepTick()
		case raw := <-rawPackets:
			s.handleRawPacket(raw)
		case err := <-s.finishReqs:
			return s.handleFinishRequest(err, stopPolling, &wg)
		}
	}
}

// RequestStop requests the stop of the execution of the session
func (s *Session) RequestStop() {
	if s.isFinished {
		return
	}

	s.logger.Info("Requesting to end session")

	// a finish request already queued makes this one redundant
	select {
	case s.finishReqs <- nil:
	default:
	}
}

// IsStarted returns whether this session is started
func (s *Session) IsStarted() bool {
	return s.isStarted
}

// IsFinished returns whether this session is finished
func (s *Session) IsFinished() bool {
	return s.isFinished
}

// Address is the resolved address of the target server in this session
func (s *Session) Address() net.Addr {
	return s.peer
}

// Report returns the final report of the run, nil until the run finishes.
func (s *Session) Report() *Report {
	return s.report
}

// AddOnStart adds a handler function that will be called when the session starts
func (s *Session) AddOnStart(handler func(*Session)) {
	s.onStart = append(s.onStart, handler)
}

// AddOnRecv adds a handler function that will be called when a probe resolves, times out or fails to send
func (s *Session) AddOnRecv(handler func(*Session, *RoundTrip)) {
	s.onRecv = append(s.onRecv, handler)
}

// AddOnFinish adds a handler function that will be called when the session ends
func (s *Session) AddOnFinish(handler func(*Session, *Report)) {
	s.onFinish = append(s.onFinish, handler)
}

// handleIntervalTimer sends the next echo request. The timer is rearmed
// before the send so the period is measured start-to-start, not compounded
// with the transport's own transmission cost.
func (s *Session) handleIntervalTimer(t *Transport, interval *time.Timer) {
	if s.sent >= s.settings.Count {
		s.maybeFinish()
		return
	}

	if s.sent+1 < s.settings.Count {
		interval.Reset(s.getPeriodDuration())
	}

	seq := uint16(s.nextSeq)
	s.nextSeq++
	s.sent++

	s.sendEchoRequest(t, seq)

	if s.sent >= s.settings.Count {
		s.logger.Info("Not firing more requests as we have reached the set count")
		s.maybeFinish()
	}
}

// sendEchoRequest builds, records and transmits one echo request. The table
// entry is inserted before the datagram is written so a reply can never
// race ahead of an unrecorded sequence number. A transmission failure marks
// this probe lost and the run continues.
func (s *Session) sendEchoRequest(t *Transport, seq uint16) {
	pkt := &Packet{
		Type:    echoRequest,
		Code:    echoCode,
		ID:      s.id,
		Seq:     seq,
		Payload: s.payload,
	}
	buf := pkt.Marshal()

	s.logger.Infof("Writing echo request %x with seq %d to address %s", buf, seq, s.peer.String())

	s.table.Insert(seq, time.Now())
	if err := t.Send(buf); err != nil {
		s.logger.Errorf("Could not send echo request with seq %d: %s", seq, err)
		s.table.MarkSendFailed(seq)
		s.processRoundTrip(&RoundTrip{Seq: seq, Res: SendFailed})
	}
}

// handleSweepTick transitions every probe whose timeout has elapsed to the
// terminal lost state.
func (s *Session) handleSweepTick() {
	lost := s.table.Expire(time.Now(), s.getTimeoutDuration())
	for _, e := range lost {
		s.logger.Infof("Echo request with seq %d timed out", e.Seq)
		s.processRoundTrip(&RoundTrip{Seq: e.Seq, Time: s.getTimeoutDuration(), Res: TimedOut})
	}

	if len(lost) > 0 {
		s.maybeFinish()
	}
}

// handleRawPacket decodes an incoming datagram and tries to match it to an
// outstanding probe. Anything unusable is discarded and the run continues.
func (s *Session) handleRawPacket(raw *rawPacket) {
	s.logger.Tracef("Raw datagram received: %x", raw.content[:raw.length])

	rt, err := s.preProcessRawPacket(raw)
	if err != nil {
		s.logger.Warnf("Discarding datagram: %s", err)
		return
	}

	if rt == nil {
		s.logger.Info("Received datagram was not a match")
		return
	}

	s.processRoundTrip(rt)
	s.maybeFinish()
}

// preProcessRawPacket validates a datagram against the session and resolves
// it against the table. It returns nil without error for datagrams that are
// well-formed but not ours: foreign ids, unknown sequence numbers, and
// duplicate or late replies.
func (s *Session) preProcessRawPacket(raw *rawPacket) (*RoundTrip, error) {
	pkt, err := ParsePacket(raw.content[:raw.length])
	if err != nil {
		return nil, err
	}

	if pkt.ID != s.id {
		s.logger.Debugf("Reply id does not match session id. Expected: %d. Actual: %d.", s.id, pkt.ID)
		return nil, nil
	}

	rtt, ok := s.table.Resolve(pkt.Seq, raw.at)
	if !ok {
		s.logger.Debugf("Reply with seq %d does not match an outstanding request", pkt.Seq)
		return nil, nil
	}

	return &RoundTrip{
		Seq:  pkt.Seq,
		Len:  raw.length,
		Src:  raw.src,
		Time: rtt,
		Res:  Replied,
	}, nil
}

// processRoundTrip calls all handlers for a probe outcome.
func (s *Session) processRoundTrip(rt *RoundTrip) {
	for _, f := range s.onRecv {
		f(s, rt)
	}
}

// maybeFinish queues a finish request once every probe has been sent and
// has reached a terminal state.
func (s *Session) maybeFinish() {
	if s.finishing {
		return
	}
	if s.sent < s.settings.Count || s.table.Pending() > 0 {
		return
	}

	s.logger.Info("Requesting to finish the session")
	s.finishing = true

	// an externally queued stop request reaches the loop first either way
	select {
	case s.finishReqs <- nil:
	default:
	}
}

// handleFinishRequest drains the polling goroutine, builds the final report
// and calls the finish handlers.
func (s *Session) handleFinishRequest(err error, stopPolling chan struct{}, wg *sync.WaitGroup) error {
	s.logger.Info("Finish request received")

	close(stopPolling)
	wg.Wait() // waiting for polling to return

	s.isFinished = true

	if err != nil {
		return err
	}

	s.report = buildReport(s.table.Snapshot(), time.Since(s.startedAt))

	s.logger.Info("Calling ending callbacks")
	for _, f := range s.onFinish {
		f(s, s.report)
	}

	s.logger.Info("Session ended")
	return nil
}

// Raw datagram read from the transport, stamped on arrival.
type rawPacket struct {
	content []byte
	length  int
	src     net.Addr
	at      time.Time
}

// pollTransport constantly polls the transport with bounded receives and
// streams incoming datagrams to the session loop. Transport-level receive
// errors other than a deadline expiry are transient: they are logged and the
// next receive is attempted.
func (s *Session) pollTransport(wg *sync.WaitGroup, t *Transport, recv chan<- *rawPacket, stop <-chan struct{}) {
	defer wg.Done()

	for {
		select {
		case <-stop:
			s.logger.Info("Received request to finish, ending polling")
			return
		default:
			buffer := make([]byte, maxDatagramLength)

			s.logger.Tracef("Reading from transport with deadline %s", pollReadTimeout)
			length, src, err := t.Receive(buffer, pollReadTimeout)
			if err != nil {
				if isTimeout(err) {
					s.logger.Trace("Read deadline has expired, trying again")
				} else {
					s.logger.Errorf("Error while reading from transport, retrying: %s", err)
				}
				continue
			}

			raw := &rawPacket{content: buffer, length: length, src: src, at: time.Now()}

			select {
			case recv <- raw:
			case <-stop:
				s.logger.Info("Received request to finish while forwarding, ending polling")
				return
			}
		}
	}
}

// Returns the period setting parsed as a duration.
func (s *Session) getPeriodDuration() time.Duration {
	return time.Duration(s.settings.Period) * time.Millisecond
}

// Returns the timeout setting parsed as a duration.
func (s *Session) getTimeoutDuration() time.Duration {
	return time.Duration(s.settings.Timeout) * time.Millisecond
}

// sweepInterval is the granularity at which timed-out probes are detected,
// derived from the timeout so short runs terminate promptly.
func (s *Session) sweepInterval() time.Duration {
	d := s.getTimeoutDuration() / 4
	if d > 100*time.Millisecond {
		d = 100 * time.Millisecond
	}
	if d < 5*time.Millisecond {
		d = 5 * time.Millisecond
	}
	return d
}
