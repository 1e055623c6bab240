package testing

import (
	"bufio"
	"fmt"
	"github.com/ValentinKolb/dTube/rpc/common"
	"io"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// HangUp can be returned by a Handler to close the socket instead of answering
const HangUp = "\x00hangup"

// Handler may answer a command before the broker does. It returns the raw reply
// (including CRLF terminators) and true if it handled the command.
type Handler func(line string, payload []byte) (reply string, handled bool)

type jobState string

const (
	stateReady    jobState = "ready"
	stateReserved jobState = "reserved"
	stateBuried   jobState = "buried"
	stateDelayed  jobState = "delayed"
)

type job struct {
	id       uint64
	tube     string
	priority uint32
	ttr      uint64
	data     []byte
	state    jobState
	owner    *session
}

// session is the per socket state of a beanstalkd connection
type session struct {
	used     string
	watching []string
}

func (s *session) watches(tube string) bool {
	for _, t := range s.watching {
		if t == tube {
			return true
		}
	}
	return false
}

// Broker is an in-memory stand-in for a single beanstalkd process.
// It answers immediately: a reserve without a ready job always times out.
type Broker struct {
	mu sync.Mutex

	name    string
	nextID  uint64
	jobs    map[uint64]*job
	tubes   []string
	paused  map[string]uint64
	handler Handler

	down     bool
	muted    bool
	conns    []net.Conn
	dials    int
	received []string
}

// NewBroker creates an empty broker. The name must match the endpoint name it is dialed with.
func NewBroker(name string) *Broker {
	return &Broker{
		name:   name,
		nextID: 1,
		jobs:   map[uint64]*job{},
		tubes:  []string{common.DefaultTube},
		paused: map[string]uint64{},
	}
}

// --------------------------------------------------------------------------
// Fault injection and inspection
// --------------------------------------------------------------------------

func (b *Broker) Name() string {
	return b.name
}

// SetDown makes every following dial fail. Going down also closes all open sockets.
func (b *Broker) SetDown(down bool) {
	b.mu.Lock()
	b.down = down
	b.mu.Unlock()
	if down {
		b.KillConnections()
	}
}

// SetMuted makes the broker read commands without ever answering them
func (b *Broker) SetMuted(muted bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.muted = muted
}

// SetHandler installs a handler that sees every command first (nil removes it)
func (b *Broker) SetHandler(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handler = h
}

// KillConnections closes the broker side of every open socket, the broker itself stays reachable
func (b *Broker) KillConnections() {
	b.mu.Lock()
	conns := b.conns
	b.conns = nil
	b.mu.Unlock()
	for _, c := range conns {
		_ = c.Close()
	}
}

// Dials returns how many sockets were opened successfully
func (b *Broker) Dials() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dials
}

// Received returns every command line received so far
func (b *Broker) Received() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.received...)
}

// ResetReceived clears the received command log
func (b *Broker) ResetReceived() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.received = nil
}

// JobState returns the state of a job ("" if it does not exist)
func (b *Broker) JobState(id uint64) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if j, ok := b.jobs[id]; ok {
		return string(j.state)
	}
	return ""
}

// AddJob stores a ready job directly and returns its id
func (b *Broker) AddJob(tube string, data []byte) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.insert(tube, common.DefaultPriority, 0, uint64(common.DefaultTTR.Seconds()), data).id
}

// --------------------------------------------------------------------------
// Connection handling
// --------------------------------------------------------------------------

// accept registers the broker side of a new socket and serves it in the background
func (b *Broker) accept(conn net.Conn) error {
	b.mu.Lock()
	if b.down {
		b.mu.Unlock()
		return fmt.Errorf("dial %s: connection refused", b.name)
	}
	b.dials++
	b.conns = append(b.conns, conn)
	b.mu.Unlock()

	go b.serve(conn)
	return nil
}

func (b *Broker) serve(conn net.Conn) {
	s := &session{used: common.DefaultTube, watching: []string{common.DefaultTube}}
	defer b.disconnect(conn, s)
	r := bufio.NewReader(conn)

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")

		var payload []byte
		var reply string
		if strings.HasPrefix(line, "put ") {
			payload, reply = readPayload(r, line)
			if reply == HangUp {
				return
			}
		}

		if reply == "" {
			reply = b.process(s, line, payload)
		}
		if reply == HangUp {
			return
		}
		if reply == "" {
			continue
		}
		if _, err := conn.Write([]byte(reply)); err != nil {
			return
		}
	}
}

// disconnect closes the socket and puts the jobs reserved by the session back to ready
func (b *Broker) disconnect(conn net.Conn, s *session) {
	_ = conn.Close()

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, j := range b.jobs {
		if j.owner == s {
			j.owner = nil
			j.state = stateReady
		}
	}
	for i, c := range b.conns {
		if c == conn {
			b.conns = append(b.conns[:i], b.conns[i+1:]...)
			break
		}
	}
}

// readPayload reads the body of a put. It returns a reply if the body is malformed.
func readPayload(r *bufio.Reader, line string) ([]byte, string) {
	fields := strings.Fields(line)
	n, err := strconv.Atoi(fields[len(fields)-1])
	if err != nil || n < 0 {
		return nil, "BAD_FORMAT\r\n"
	}
	buf := make([]byte, n+2)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, HangUp
	}
	if string(buf[n:]) != "\r\n" {
		return nil, "EXPECTED_CRLF\r\n"
	}
	return buf[:n], ""
}

// process runs one command under the broker lock
func (b *Broker) process(s *session, line string, payload []byte) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.received = append(b.received, line)
	if b.handler != nil {
		if reply, ok := b.handler(line, payload); ok {
			return reply
		}
	}
	if b.muted {
		return ""
	}

	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "BAD_FORMAT\r\n"
	}
	return b.execute(s, fields[0], fields[1:], payload)
}

// --------------------------------------------------------------------------
// Command execution (lock held)
// --------------------------------------------------------------------------

func (b *Broker) execute(s *session, name string, args []string, payload []byte) string {
	switch name {
	case "put":
		if len(args) != 4 {
			return "BAD_FORMAT\r\n"
		}
		pri, err1 := strconv.ParseUint(args[0], 10, 32)
		delay, err2 := strconv.ParseUint(args[1], 10, 64)
		ttr, err3 := strconv.ParseUint(args[2], 10, 64)
		if err1 != nil || err2 != nil || err3 != nil {
			return "BAD_FORMAT\r\n"
		}
		j := b.insert(s.used, uint32(pri), delay, ttr, payload)
		return fmt.Sprintf("INSERTED %d\r\n", j.id)

	case "use":
		if len(args) != 1 {
			return "BAD_FORMAT\r\n"
		}
		s.used = args[0]
		b.touchTube(args[0])
		return "USING " + args[0] + "\r\n"

	case "watch":
		if len(args) != 1 {
			return "BAD_FORMAT\r\n"
		}
		if !s.watches(args[0]) {
			s.watching = append(s.watching, args[0])
		}
		b.touchTube(args[0])
		return fmt.Sprintf("WATCHING %d\r\n", len(s.watching))

	case "ignore":
		if len(args) != 1 {
			return "BAD_FORMAT\r\n"
		}
		if s.watches(args[0]) && len(s.watching) == 1 {
			return "NOT_IGNORED\r\n"
		}
		kept := s.watching[:0]
		for _, t := range s.watching {
			if t != args[0] {
				kept = append(kept, t)
			}
		}
		s.watching = kept
		return fmt.Sprintf("WATCHING %d\r\n", len(s.watching))

	case "reserve-with-timeout":
		if j := b.nextReady(s); j != nil {
			j.state = stateReserved
			j.owner = s
			return jobReply("RESERVED", j)
		}
		return "TIMED_OUT\r\n"

	case "delete":
		j, ok := b.ownedJob(s, args, stateReady, stateBuried, stateDelayed)
		if !ok {
			return "NOT_FOUND\r\n"
		}
		delete(b.jobs, j.id)
		return "DELETED\r\n"

	case "release":
		if len(args) != 3 {
			return "BAD_FORMAT\r\n"
		}
		j, ok := b.ownedJob(s, args[:1])
		if !ok {
			return "NOT_FOUND\r\n"
		}
		pri, _ := strconv.ParseUint(args[1], 10, 32)
		delay, _ := strconv.ParseUint(args[2], 10, 64)
		j.priority = uint32(pri)
		j.owner = nil
		j.state = stateReady
		if delay > 0 {
			j.state = stateDelayed
		}
		return "RELEASED\r\n"

	case "bury":
		if len(args) != 2 {
			return "BAD_FORMAT\r\n"
		}
		j, ok := b.ownedJob(s, args[:1])
		if !ok {
			return "NOT_FOUND\r\n"
		}
		j.owner = nil
		j.state = stateBuried
		return "BURIED\r\n"

	case "touch":
		if _, ok := b.ownedJob(s, args); !ok {
			return "NOT_FOUND\r\n"
		}
		return "TOUCHED\r\n"

	case "peek":
		j, ok := b.lookup(args)
		if !ok {
			return "NOT_FOUND\r\n"
		}
		return jobReply("FOUND", j)

	case "peek-ready", "peek-delayed", "peek-buried":
		state := jobState(strings.TrimPrefix(name, "peek-"))
		if j := b.first(s.used, state); j != nil {
			return jobReply("FOUND", j)
		}
		return "NOT_FOUND\r\n"

	case "kick":
		if len(args) != 1 {
			return "BAD_FORMAT\r\n"
		}
		bound, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return "BAD_FORMAT\r\n"
		}
		return fmt.Sprintf("KICKED %d\r\n", b.kick(s.used, bound))

	case "kick-job":
		j, ok := b.lookup(args)
		if !ok || (j.state != stateBuried && j.state != stateDelayed) {
			return "NOT_FOUND\r\n"
		}
		j.state = stateReady
		return "KICKED\r\n"

	case "stats-job":
		j, ok := b.lookup(args)
		if !ok {
			return "NOT_FOUND\r\n"
		}
		return yamlReply(
			"id", strconv.FormatUint(j.id, 10),
			"tube", j.tube,
			"state", string(j.state),
			"pri", strconv.FormatUint(uint64(j.priority), 10),
			"ttr", strconv.FormatUint(j.ttr, 10),
		)

	case "stats-tube":
		if len(args) != 1 || !b.hasTube(args[0]) {
			return "NOT_FOUND\r\n"
		}
		return b.tubeStats(args[0])

	case "stats":
		counts := b.count("")
		return yamlReply(
			"current-jobs-ready", strconv.Itoa(counts[stateReady]),
			"current-jobs-reserved", strconv.Itoa(counts[stateReserved]),
			"current-jobs-delayed", strconv.Itoa(counts[stateDelayed]),
			"current-jobs-buried", strconv.Itoa(counts[stateBuried]),
			"total-jobs", strconv.FormatUint(b.nextID-1, 10),
			"current-tubes", strconv.Itoa(len(b.tubes)),
			"current-connections", strconv.Itoa(len(b.conns)),
			"version", "1.13",
			"name", b.name,
		)

	case "list-tubes":
		return yamlListReply(b.tubes)

	case "list-tubes-watched":
		return yamlListReply(s.watching)

	case "list-tube-used":
		return "USING " + s.used + "\r\n"

	case "pause-tube":
		if len(args) != 2 || !b.hasTube(args[0]) {
			return "NOT_FOUND\r\n"
		}
		delay, _ := strconv.ParseUint(args[1], 10, 64)
		b.paused[args[0]] = delay
		return "PAUSED\r\n"
	}
	return "UNKNOWN_COMMAND\r\n"
}

func (b *Broker) insert(tube string, priority uint32, delay, ttr uint64, data []byte) *job {
	j := &job{
		id:       b.nextID,
		tube:     tube,
		priority: priority,
		ttr:      ttr,
		data:     append([]byte(nil), data...),
		state:    stateReady,
	}
	if delay > 0 {
		j.state = stateDelayed
	}
	b.nextID++
	b.jobs[j.id] = j
	b.touchTube(tube)
	return j
}

func (b *Broker) touchTube(tube string) {
	if !b.hasTube(tube) {
		b.tubes = append(b.tubes, tube)
	}
}

func (b *Broker) hasTube(tube string) bool {
	for _, t := range b.tubes {
		if t == tube {
			return true
		}
	}
	return false
}

// sortedJobs returns the jobs ordered by id
func (b *Broker) sortedJobs() []*job {
	jobs := make([]*job, 0, len(b.jobs))
	for _, j := range b.jobs {
		jobs = append(jobs, j)
	}
	sort.Slice(jobs, func(i, k int) bool { return jobs[i].id < jobs[k].id })
	return jobs
}

// nextReady returns the most urgent ready job of a watched, unpaused tube
func (b *Broker) nextReady(s *session) *job {
	var best *job
	for _, j := range b.sortedJobs() {
		if j.state != stateReady || !s.watches(j.tube) || b.paused[j.tube] > 0 {
			continue
		}
		if best == nil || j.priority < best.priority {
			best = j
		}
	}
	return best
}

// first returns the oldest job of a tube in the given state (the most urgent one for ready jobs)
func (b *Broker) first(tube string, state jobState) *job {
	var best *job
	for _, j := range b.sortedJobs() {
		if j.tube != tube || j.state != state {
			continue
		}
		if best == nil || (state == stateReady && j.priority < best.priority) {
			best = j
		}
	}
	return best
}

func (b *Broker) kick(tube string, bound uint64) uint64 {
	from := stateBuried
	if b.first(tube, stateBuried) == nil {
		from = stateDelayed
	}
	var kicked uint64
	for _, j := range b.sortedJobs() {
		if kicked == bound {
			break
		}
		if j.tube == tube && j.state == from {
			j.state = stateReady
			kicked++
		}
	}
	return kicked
}

func (b *Broker) lookup(args []string) (*job, bool) {
	if len(args) != 1 {
		return nil, false
	}
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return nil, false
	}
	j, ok := b.jobs[id]
	return j, ok
}

// ownedJob returns a job reserved by the session or in one of the extra states
func (b *Broker) ownedJob(s *session, args []string, extra ...jobState) (*job, bool) {
	j, ok := b.lookup(args)
	if !ok {
		return nil, false
	}
	if j.state == stateReserved && j.owner == s {
		return j, true
	}
	for _, state := range extra {
		if j.state == state {
			return j, true
		}
	}
	return nil, false
}

// count returns the number of jobs per state, for one tube or all tubes ("")
func (b *Broker) count(tube string) map[jobState]int {
	counts := map[jobState]int{}
	for _, j := range b.jobs {
		if tube == "" || j.tube == tube {
			counts[j.state]++
		}
	}
	return counts
}

func (b *Broker) tubeStats(tube string) string {
	counts := b.count(tube)
	total := 0
	for _, n := range counts {
		total += n
	}
	return yamlReply(
		"name", tube,
		"current-jobs-urgent", "0",
		"current-jobs-ready", strconv.Itoa(counts[stateReady]),
		"current-jobs-reserved", strconv.Itoa(counts[stateReserved]),
		"current-jobs-delayed", strconv.Itoa(counts[stateDelayed]),
		"current-jobs-buried", strconv.Itoa(counts[stateBuried]),
		"total-jobs", strconv.Itoa(total),
		"pause", strconv.FormatUint(b.paused[tube], 10),
	)
}

// --------------------------------------------------------------------------
// Reply formatting
// --------------------------------------------------------------------------

func jobReply(name string, j *job) string {
	return fmt.Sprintf("%s %d %d\r\n%s\r\n", name, j.id, len(j.data), j.data)
}

// yamlReply formats key value pairs as an OK response with a YAML dictionary body
func yamlReply(kv ...string) string {
	var sb strings.Builder
	sb.WriteString("---\n")
	for i := 0; i+1 < len(kv); i += 2 {
		sb.WriteString(kv[i] + ": " + kv[i+1] + "\n")
	}
	return DataReply("OK", sb.String())
}

func yamlListReply(items []string) string {
	var sb strings.Builder
	sb.WriteString("---\n")
	for _, item := range items {
		sb.WriteString("- " + item + "\n")
	}
	return DataReply("OK", sb.String())
}

// DataReply frames a data-bearing response ("<name> <bytes>\r\n<body>\r\n")
func DataReply(name, body string) string {
	return fmt.Sprintf("%s %d\r\n%s\r\n", name, len(body), body)
}
