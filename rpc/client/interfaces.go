package client

import (
	"github.com/ValentinKolb/dTube/rpc/conn"
	"github.com/ValentinKolb/dTube/rpc/proto"
	"time"
)

// NoTimeout makes Reserve wait until a job arrives
const NoTimeout time.Duration = -1

// IProducer puts jobs into the cluster
type IProducer interface {
	// Put stores a job on one reachable broker, in the currently used tube.
	// The returned job carries the id assigned by that broker and its endpoint.
	Put(data []byte, priority uint32, delay, ttr time.Duration) (*Job, error)

	// PutInTube uses the tube and then puts the job
	PutInTube(tube string, data []byte, priority uint32, delay, ttr time.Duration) (*Job, error)

	// Use selects the tube following puts go to, on every broker
	Use(tube string) error

	// ListTubeUsed returns the tube of the session (no broker is asked)
	ListTubeUsed() string
}

// IConsumer reserves and acknowledges jobs
type IConsumer interface {
	// Reserve waits up to timeout for a job from any broker. ok is false if no job
	// arrived in time, which is not an error. Use NoTimeout to wait forever.
	// If several brokers hand out a job in the same round, one is kept and the others
	// are released with common.DefaultPriority and no delay, so a released job loses
	// its original priority.
	Reserve(timeout time.Duration) (job *Job, ok bool, err error)

	// ReserveFromTube watches only the tube and then reserves
	ReserveFromTube(tube string, timeout time.Duration) (job *Job, ok bool, err error)

	// Watch adds the tube to the watch list on every broker
	Watch(tube string) error

	// WatchOnly watches the tube and ignores every other watched tube
	WatchOnly(tube string) error

	// Ignore removes the tube from the watch list on every broker.
	// The last watched tube cannot be ignored.
	Ignore(tube string) error

	// ListTubesWatched returns the watched tubes of the session in watch order (no broker is asked)
	ListTubesWatched() []string

	// Delete removes a job from its broker
	Delete(job *Job) error

	// Release puts a reserved job back into the ready (or delayed) queue
	Release(job *Job, priority uint32, delay time.Duration) error

	// Bury moves a reserved job to the buried list
	Bury(job *Job, priority uint32) error

	// Touch requests more time to work on a reserved job
	Touch(job *Job) error
}

// IQueueAdmin inspects and administrates tubes and jobs.
// Operations without an endpoint are sent to every broker and merged.
type IQueueAdmin interface {
	// Kick moves up to max buried (or, if there are none, delayed) jobs of the used tube
	// back to ready on every broker and returns the total number of kicked jobs
	Kick(max uint64) (uint64, error)

	// KickJob moves a single buried or delayed job back to ready
	KickJob(job *Job) error

	// Peek returns a job by id from the given endpoint
	Peek(endpoint string, id uint64) (*Job, error)

	// PeekReady returns the next ready job of the tube. An empty tube keeps the used tube,
	// an empty endpoint lets the pool pick one.
	PeekReady(tube, endpoint string) (*Job, error)

	// PeekDelayed returns the delayed job with the shortest delay left (see PeekReady)
	PeekDelayed(tube, endpoint string) (*Job, error)

	// PeekBuried returns the next buried job (see PeekReady)
	PeekBuried(tube, endpoint string) (*Job, error)

	// ListTubes returns the union of all tubes on all brokers in first seen order
	ListTubes() ([]string, error)

	// ListTubesWatchedPerEndpoint asks every broker for the watched tubes of this session
	ListTubesWatchedPerEndpoint() (map[string][]string, error)

	// ListTubeUsedPerEndpoint asks every broker for the used tube of this session
	ListTubeUsedPerEndpoint() (map[string]string, error)

	// PauseTube delays new reservations from the tube on every broker that knows it
	PauseTube(tube string, delay time.Duration) error

	// Stats returns the server statistics of every reachable broker keyed by endpoint
	Stats() (map[string]proto.Stats, error)

	// StatsFor returns the server statistics of one broker
	StatsFor(endpoint string) (proto.Stats, error)

	// StatsTube returns the tube statistics of every broker that knows the tube
	StatsTube(tube string) (map[string]proto.Stats, error)

	// StatsTubeFor returns the tube statistics of one broker
	StatsTubeFor(tube, endpoint string) (proto.Stats, error)

	// StatsTubeSummary sums the numeric tube statistics over all brokers
	StatsTubeSummary(tube string) (proto.Stats, error)

	// StatsJob returns the statistics of a job
	StatsJob(job *Job) (proto.Stats, error)
}

// IPool is the complete client: a registry of broker connections that acts as one logical broker.
// Implementations are not safe for concurrent use.
type IPool interface {
	IProducer
	IConsumer
	IQueueAdmin

	// AddConnection registers a connection. A connection with the same name is replaced and closed.
	AddConnection(c *conn.Connection)

	// GetConnection returns the connection registered under the endpoint name
	GetConnection(name string) (*conn.Connection, error)

	// GetConnections returns all connections in registration order
	GetConnections() []*conn.Connection

	// Close closes every connection
	Close() error
}
