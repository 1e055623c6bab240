package client

import (
	"fmt"
	"github.com/ValentinKolb/dTube/rpc/common"
	"github.com/ValentinKolb/dTube/rpc/conn"
	"github.com/ValentinKolb/dTube/rpc/proto"
	tptesting "github.com/ValentinKolb/dTube/rpc/transport/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"math/rand"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// fakeClock is a manually advanced clock
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

// newTestPool creates a pool over n in-memory brokers named a:11300, b:11300, ...
func newTestPool(t *testing.T, n int) (*Pool, []*tptesting.Broker, *fakeClock) {
	t.Helper()
	endpoints := make([]common.EndpointConfig, 0, n)
	for i := 0; i < n; i++ {
		endpoints = append(endpoints, tptesting.Endpoint(string(rune('a'+i)), 11300))
	}
	dialer, brokers := tptesting.Cluster(endpoints...)

	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	pool := NewPool(common.ClientConfig{
		Endpoints: endpoints,
		IOTimeout: 2 * time.Second,
	}, dialer)
	pool.SetRandSource(rand.New(rand.NewSource(42))).SetClock(clock.Now)

	t.Cleanup(func() { _ = pool.Close() })
	return pool, brokers, clock
}

// countCommands counts the received command lines starting with prefix
func countCommands(b *tptesting.Broker, prefix string) int {
	n := 0
	for _, line := range b.Received() {
		if strings.HasPrefix(line, prefix) {
			n++
		}
	}
	return n
}

// answer makes the broker reply to commands starting with prefix
func answer(prefix, reply string) tptesting.Handler {
	return func(line string, _ []byte) (string, bool) {
		if strings.HasPrefix(line, prefix) {
			return reply, true
		}
		return "", false
	}
}

// --------------------------------------------------------------------------
// Registry
// --------------------------------------------------------------------------

// TestConnectionRegistry tests registration order, lookup and replacement of connections
func TestConnectionRegistry(t *testing.T) {
	pool, _, _ := newTestPool(t, 3)

	var names []string
	for _, c := range pool.GetConnections() {
		names = append(names, c.Name())
	}
	assert.Equal(t, []string{"a:11300", "b:11300", "c:11300"}, names)

	c, err := pool.GetConnection("b:11300")
	require.NoError(t, err)
	assert.Equal(t, "b", c.Host())

	_, err = pool.GetConnection("x:1")
	require.ErrorIs(t, err, common.ErrUnknownConnection)

	replacement := conn.NewConnection(tptesting.Endpoint("b", 11300), common.ClientConfig{}, tptesting.NewDialer())
	pool.AddConnection(replacement)
	assert.Len(t, pool.GetConnections(), 3)
	c, _ = pool.GetConnection("b:11300")
	assert.Same(t, replacement, c)
}

// --------------------------------------------------------------------------
// Selection and dispatch
// --------------------------------------------------------------------------

// TestPutAndReserve tests the basic produce and consume round trip
func TestPutAndReserve(t *testing.T) {
	pool, brokers, _ := newTestPool(t, 1)

	job, err := pool.Put([]byte("hello"), common.DefaultPriority, 0, common.DefaultTTR)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), job.ID)
	assert.Equal(t, "a:11300", job.Endpoint())

	reserved, ok, err := pool.Reserve(0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, job.ID, reserved.ID)
	assert.Equal(t, []byte("hello"), reserved.Data)
	assert.Equal(t, "reserved", brokers[0].JobState(job.ID))

	require.NoError(t, pool.Delete(reserved))
	assert.Equal(t, "", brokers[0].JobState(job.ID))
}

// TestPutSkipsUnreachableBroker tests that puts go to the reachable broker only
func TestPutSkipsUnreachableBroker(t *testing.T) {
	pool, brokers, _ := newTestPool(t, 2)
	brokers[0].SetDown(true)

	for i := 0; i < 10; i++ {
		job, err := pool.Put([]byte(fmt.Sprintf("job-%d", i)), 1, 0, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, "b:11300", job.Endpoint())
	}

	stats, err := pool.Stats()
	require.NoError(t, err)
	assert.Len(t, stats, 1)
	c, _ := pool.GetConnection("a:11300")
	assert.Equal(t, conn.Inactive, c.State())
}

// TestPutFailsOver tests that a put that fails twice on one broker moves on to another one
func TestPutFailsOver(t *testing.T) {
	pool, brokers, _ := newTestPool(t, 2)
	brokers[0].SetHandler(answer("put", tptesting.HangUp))

	for i := 0; i < 5; i++ {
		job, err := pool.Put([]byte("x"), 1, 0, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, "b:11300", job.Endpoint())
	}

	// one put and one retry at most, then the broker stays inactive for the backoff
	assert.LessOrEqual(t, countCommands(brokers[0], "put"), 2)
	assert.LessOrEqual(t, brokers[0].Dials(), 2)
}

// TestSelectionBackoff tests that an inactive connection is not retried before its backoff elapsed
func TestSelectionBackoff(t *testing.T) {
	pool, brokers, clock := newTestPool(t, 2)
	brokers[0].SetDown(true)
	brokers[1].SetDown(true)

	_, err := pool.Put([]byte("x"), 1, 0, time.Minute)
	require.ErrorIs(t, err, common.ErrPoolExhausted)

	brokers[0].SetDown(false)
	brokers[1].SetDown(false)

	clock.Advance(common.DefaultReconnectBackoff - time.Second)
	_, err = pool.Put([]byte("x"), 1, 0, time.Minute)
	require.ErrorIs(t, err, common.ErrPoolExhausted)
	assert.Equal(t, 0, brokers[0].Dials()+brokers[1].Dials(), "no dial during the backoff")

	clock.Advance(time.Second)
	_, err = pool.Put([]byte("x"), 1, 0, time.Minute)
	require.NoError(t, err)
}

// TestAllInactive tests that a pool without usable connections reports exhaustion
func TestAllInactive(t *testing.T) {
	pool, _, _ := newTestPool(t, 3)
	for _, c := range pool.GetConnections() {
		c.SetInactive()
	}

	_, err := pool.Put([]byte("x"), 1, 0, time.Minute)
	require.ErrorIs(t, err, common.ErrPoolExhausted)
	assert.NotErrorIs(t, err, common.ErrSocket)

	_, _, err = pool.Reserve(0)
	require.ErrorIs(t, err, common.ErrPoolExhausted)

	_, err = pool.Stats()
	require.ErrorIs(t, err, common.ErrPoolExhausted)
}

// TestDispatchReconnectsOnce tests that a transport error leads to one reconnect and one retry
func TestDispatchReconnectsOnce(t *testing.T) {
	pool, brokers, _ := newTestPool(t, 1)

	_, err := pool.StatsFor("a:11300")
	require.NoError(t, err)
	assert.Equal(t, 1, brokers[0].Dials())

	// the socket dies, the retry on a new socket succeeds
	brokers[0].KillConnections()
	_, err = pool.StatsFor("a:11300")
	require.NoError(t, err)
	assert.Equal(t, 2, brokers[0].Dials())

	// every exchange fails: still only one reconnect
	brokers[0].SetHandler(answer("stats", tptesting.HangUp))
	_, err = pool.StatsFor("a:11300")
	require.ErrorIs(t, err, common.ErrSocket)
	assert.Equal(t, 3, brokers[0].Dials())

	c, _ := pool.GetConnection("a:11300")
	assert.Equal(t, conn.Inactive, c.State())
}

// TestDispatchReconnectFails tests that the original error is returned if the reconnect fails
func TestDispatchReconnectFails(t *testing.T) {
	pool, brokers, _ := newTestPool(t, 1)

	_, err := pool.StatsFor("a:11300")
	require.NoError(t, err)

	brokers[0].SetDown(true)
	_, err = pool.StatsFor("a:11300")
	require.ErrorIs(t, err, common.ErrSocket)

	c, _ := pool.GetConnection("a:11300")
	assert.Equal(t, conn.Inactive, c.State())
}

// TestErrorsNotRetried tests that broker and protocol errors are returned without a retry
func TestErrorsNotRetried(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  error
	}{
		{"broker error", "DRAINING\r\n", common.ErrServerDraining},
		{"job too big", "JOB_TOO_BIG\r\n", common.ErrServerJobTooBig},
		{"protocol error", "INSERTED abc\r\n", common.ErrProtocol},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool, brokers, _ := newTestPool(t, 1)
			brokers[0].SetHandler(answer("put", tt.reply))

			_, err := pool.Put([]byte("x"), 1, 0, time.Minute)
			require.ErrorIs(t, err, tt.want)
			assert.Equal(t, 1, countCommands(brokers[0], "put"))
			assert.Equal(t, 1, brokers[0].Dials())
		})
	}
}

// TestReconnectRestoresSession tests the commands replayed onto a new socket
func TestReconnectRestoresSession(t *testing.T) {
	pool, brokers, _ := newTestPool(t, 1)

	require.NoError(t, pool.Use("emails"))
	require.NoError(t, pool.Watch("a"))
	require.NoError(t, pool.Watch("b"))
	require.NoError(t, pool.Ignore(common.DefaultTube))

	brokers[0].ResetReceived()
	brokers[0].KillConnections()

	watched, err := pool.ListTubesWatchedPerEndpoint()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, watched["a:11300"])

	// the first attempt hits the dead socket and never reaches the broker
	assert.Equal(t, []string{
		"use emails",
		"watch a",
		"watch b",
		"ignore default",
		"list-tubes-watched",
	}, brokers[0].Received())

	used, err := pool.ListTubeUsedPerEndpoint()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a:11300": "emails"}, used)
}

// TestSessionAppliedOnLateConnect tests that a broker that was down during Use gets the tube on connect
func TestSessionAppliedOnLateConnect(t *testing.T) {
	pool, brokers, clock := newTestPool(t, 2)
	brokers[1].SetDown(true)

	require.NoError(t, pool.Use("late"))
	assert.Equal(t, "late", pool.ListTubeUsed())

	brokers[1].SetDown(false)
	clock.Advance(common.DefaultReconnectBackoff)

	used, err := pool.ListTubeUsedPerEndpoint()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a:11300": "late", "b:11300": "late"}, used)
}

// --------------------------------------------------------------------------
// Reserve
// --------------------------------------------------------------------------

// TestReserveNoJobs tests that a round without jobs is an empty result and not an error
func TestReserveNoJobs(t *testing.T) {
	pool, brokers, _ := newTestPool(t, 3)

	jobs, err := pool.ReserveAll(0)
	require.NoError(t, err)
	assert.Empty(t, jobs)

	job, ok, err := pool.Reserve(0)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, job)

	for _, b := range brokers {
		assert.Equal(t, 2, countCommands(b, "reserve-with-timeout 0"))
	}
}

// TestReserveSingleJob tests that a job from one broker is returned without any release
func TestReserveSingleJob(t *testing.T) {
	pool, brokers, _ := newTestPool(t, 2)
	id := brokers[0].AddJob(common.DefaultTube, []byte("only"))

	job, ok, err := pool.Reserve(0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, id, job.ID)
	assert.Equal(t, "a:11300", job.Endpoint())

	for _, b := range brokers {
		assert.Equal(t, 0, countCommands(b, "release"))
	}
}

// TestReserveReleasesLosers tests that only one of two reserved jobs is kept
func TestReserveReleasesLosers(t *testing.T) {
	pool, brokers, _ := newTestPool(t, 2)
	idA := brokers[0].AddJob(common.DefaultTube, []byte("a"))
	idB := brokers[1].AddJob(common.DefaultTube, []byte("b"))

	job, ok, err := pool.Reserve(0)
	require.NoError(t, err)
	require.True(t, ok)

	winner, loser, loserID := brokers[0], brokers[1], idB
	if job.Endpoint() == "b:11300" {
		winner, loser, loserID = brokers[1], brokers[0], idA
	}

	assert.Equal(t, 0, countCommands(winner, "release"))
	assert.Equal(t, 1, countCommands(loser, "release"))
	assert.Equal(t, "reserved", winner.JobState(job.ID))
	assert.Equal(t, "ready", loser.JobState(loserID))
}

// TestReserveReleasesLosersAfterFailure tests that a failed release does not stop the
// release of the other losers
func TestReserveReleasesLosersAfterFailure(t *testing.T) {
	pool, brokers, _ := newTestPool(t, 3)
	ids := make([]uint64, len(brokers))
	for i, b := range brokers {
		ids[i] = b.AddJob(common.DefaultTube, []byte(b.Name()))
	}

	// the first release sent to any broker is answered by hanging up
	var hungUp atomic.Int32
	hungUp.Store(-1)
	for i, b := range brokers {
		i := i
		b.SetHandler(func(line string, _ []byte) (string, bool) {
			if strings.HasPrefix(line, "release") && hungUp.CompareAndSwap(-1, int32(i)) {
				return tptesting.HangUp, true
			}
			return "", false
		})
	}

	job, ok, err := pool.Reserve(0)
	require.NoError(t, err)
	require.True(t, ok)

	failed := int(hungUp.Load())
	require.NotEqual(t, -1, failed, "one release must have been sent")

	for i, b := range brokers {
		c, err := pool.GetConnection(b.Name())
		require.NoError(t, err)
		switch {
		case b.Name() == job.Endpoint():
			assert.Equal(t, 0, countCommands(b, "release"))
			assert.Equal(t, "reserved", b.JobState(ids[i]))
			assert.Equal(t, conn.Active, c.State())
		case i == failed:
			assert.Equal(t, 1, countCommands(b, "release"))
			assert.Equal(t, conn.Inactive, c.State())
		default:
			assert.Equal(t, 1, countCommands(b, "release"), "the other loser is released too")
			assert.Equal(t, "ready", b.JobState(ids[i]))
			assert.Equal(t, conn.Active, c.State())
		}
	}
}

// TestReserveRounds tests the zero wait round followed by one second rounds
func TestReserveRounds(t *testing.T) {
	pool, brokers, _ := newTestPool(t, 1)

	_, ok, err := pool.Reserve(3 * time.Second)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{
		"reserve-with-timeout 0",
		"reserve-with-timeout 1",
		"reserve-with-timeout 1",
		"reserve-with-timeout 1",
	}, brokers[0].Received())

	// a job arriving during the second round ends the loop
	rounds := 0
	brokers[0].ResetReceived()
	brokers[0].SetHandler(func(line string, _ []byte) (string, bool) {
		rounds++
		if rounds == 2 {
			return "RESERVED 7 4\r\nlate\r\n", true
		}
		return "", false
	})
	job, ok, err := pool.Reserve(NoTimeout)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(7), job.ID)
	assert.Equal(t, 2, rounds)
}

// TestReserveSkipsFailures tests that broken brokers do not fail the whole round
func TestReserveSkipsFailures(t *testing.T) {
	pool, brokers, _ := newTestPool(t, 3)
	brokers[0].SetDown(true)
	brokers[1].SetHandler(answer("reserve", tptesting.HangUp))
	id := brokers[2].AddJob(common.DefaultTube, []byte("c"))

	job, ok, err := pool.Reserve(0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, id, job.ID)
	assert.Equal(t, "c:11300", job.Endpoint())

	for _, name := range []string{"a:11300", "b:11300"} {
		c, _ := pool.GetConnection(name)
		assert.Equal(t, conn.Inactive, c.State(), name)
	}
}

// TestReserveFromTube tests that reserving from a tube watches only that tube
func TestReserveFromTube(t *testing.T) {
	pool, brokers, _ := newTestPool(t, 2)
	brokers[0].AddJob(common.DefaultTube, []byte("default job"))
	id := brokers[1].AddJob("emails", []byte("email job"))

	job, ok, err := pool.ReserveFromTube("emails", 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, id, job.ID)
	assert.Equal(t, []byte("email job"), job.Data)
	assert.Equal(t, []string{"emails"}, pool.ListTubesWatched())
}

// --------------------------------------------------------------------------
// Job operations
// --------------------------------------------------------------------------

// TestJobLifecycle tests release, bury, kick, touch, stats and delete of a job
func TestJobLifecycle(t *testing.T) {
	pool, brokers, _ := newTestPool(t, 1)
	broker := brokers[0]

	put, err := pool.PutInTube("work", []byte("payload"), 5, 0, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "work", pool.ListTubeUsed())
	require.NoError(t, pool.Watch("work"))

	job, ok, err := pool.Reserve(0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, put.ID, job.ID)

	require.NoError(t, pool.Touch(job))
	stats, err := pool.StatsJob(job)
	require.NoError(t, err)
	assert.Equal(t, "reserved", stats.Get("state"))
	assert.Equal(t, "work", stats.Get("tube"))

	require.NoError(t, pool.Release(job, 5, 0))
	assert.Equal(t, "ready", broker.JobState(job.ID))

	job, _, err = pool.Reserve(0)
	require.NoError(t, err)
	require.NoError(t, pool.Bury(job, 5))
	assert.Equal(t, "buried", broker.JobState(job.ID))

	buried, err := pool.PeekBuried("", "")
	require.NoError(t, err)
	assert.Equal(t, job.ID, buried.ID)

	require.NoError(t, pool.KickJob(job))
	assert.Equal(t, "ready", broker.JobState(job.ID))

	ref, err := pool.JobRef("a:11300", job.ID)
	require.NoError(t, err)
	require.NoError(t, pool.Delete(ref))
	assert.Equal(t, "", broker.JobState(job.ID))

	require.ErrorIs(t, pool.Delete(ref), common.ErrServerNotFound)
	require.Error(t, pool.Delete(nil))
}

// TestPeek tests peeking by id and by state
func TestPeek(t *testing.T) {
	pool, brokers, _ := newTestPool(t, 2)
	id := brokers[1].AddJob("emails", []byte("hi"))

	job, err := pool.Peek("b:11300", id)
	require.NoError(t, err)
	assert.Equal(t, []byte("hi"), job.Data)
	assert.Equal(t, "b:11300", job.Endpoint())

	job, err = pool.PeekReady("emails", "b:11300")
	require.NoError(t, err)
	assert.Equal(t, id, job.ID)
	assert.Equal(t, "emails", pool.ListTubeUsed())

	_, err = pool.PeekReady("emails", "a:11300")
	require.ErrorIs(t, err, common.ErrServerNotFound)

	_, err = pool.PeekDelayed("", "b:11300")
	require.ErrorIs(t, err, common.ErrServerNotFound)

	_, err = pool.Peek("x:1", id)
	require.ErrorIs(t, err, common.ErrUnknownConnection)
}

// --------------------------------------------------------------------------
// Broadcast
// --------------------------------------------------------------------------

// TestStatsBroadcast tests that failed brokers are left out of the merged stats
func TestStatsBroadcast(t *testing.T) {
	pool, brokers, _ := newTestPool(t, 3)
	brokers[2].SetDown(true)

	stats, err := pool.Stats()
	require.NoError(t, err)
	assert.Len(t, stats, 2)
	assert.Contains(t, stats, "a:11300")
	assert.Contains(t, stats, "b:11300")
	assert.Equal(t, "a:11300", stats["a:11300"].Get("name"))

	single, err := pool.StatsFor("b:11300")
	require.NoError(t, err)
	assert.Equal(t, "b:11300", single.Get("name"))
}

// TestStatsTube tests per endpoint and summed tube stats
func TestStatsTube(t *testing.T) {
	pool, brokers, _ := newTestPool(t, 3)
	brokers[0].AddJob("emails", []byte("1"))
	brokers[0].AddJob("emails", []byte("2"))
	brokers[1].AddJob("emails", []byte("3"))

	perEndpoint, err := pool.StatsTube("emails")
	require.NoError(t, err)
	assert.Len(t, perEndpoint, 2, "c does not know the tube")

	summary, err := pool.StatsTubeSummary("emails")
	require.NoError(t, err)
	assert.Equal(t, "emails", summary.Get("name"))
	ready, ok := summary.Uint("current-jobs-ready")
	require.True(t, ok)
	assert.Equal(t, uint64(3), ready)

	single, err := pool.StatsTubeFor("emails", "b:11300")
	require.NoError(t, err)
	assert.Equal(t, "1", single.Get("current-jobs-ready"))

	_, err = pool.StatsTube("nowhere")
	require.ErrorIs(t, err, common.ErrServerNotFound)
}

// TestListTubes tests the union of the tube lists
func TestListTubes(t *testing.T) {
	pool, brokers, _ := newTestPool(t, 2)
	brokers[0].AddJob("x", nil)
	brokers[1].AddJob("y", nil)
	brokers[1].AddJob("x", nil)

	tubes, err := pool.ListTubes()
	require.NoError(t, err)
	assert.Equal(t, []string{"default", "x", "y"}, tubes)
}

// TestKick tests that kicked counts are summed
func TestKick(t *testing.T) {
	pool, brokers, _ := newTestPool(t, 3)
	brokers[0].SetHandler(answer("kick", "KICKED 2\r\n"))
	brokers[1].SetHandler(answer("kick", "KICKED 3\r\n"))
	brokers[2].SetDown(true)

	kicked, err := pool.Kick(10)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), kicked)
}

// TestPauseTube tests that pausing reaches every broker that knows the tube
func TestPauseTube(t *testing.T) {
	pool, brokers, _ := newTestPool(t, 2)
	brokers[0].AddJob("slow", nil)

	require.NoError(t, pool.PauseTube("slow", 30*time.Second))
	assert.Equal(t, []string{"pause-tube slow 30"}, brokers[0].Received())
	assert.Equal(t, []string{"pause-tube slow 30"}, brokers[1].Received())

	stats, err := pool.StatsTubeFor("slow", "a:11300")
	require.NoError(t, err)
	assert.Equal(t, "30", stats.Get("pause"))

	require.ErrorIs(t, pool.PauseTube("nowhere", time.Second), common.ErrServerNotFound)
}

// TestWatchOnlyAndIgnore tests the watch list handling of the session
func TestWatchOnlyAndIgnore(t *testing.T) {
	pool, brokers, _ := newTestPool(t, 2)

	require.NoError(t, pool.Watch("a"))
	require.NoError(t, pool.WatchOnly("b"))
	assert.Equal(t, []string{"b"}, pool.ListTubesWatched())

	watched, err := pool.ListTubesWatchedPerEndpoint()
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"a:11300": {"b"}, "b:11300": {"b"}}, watched)

	require.ErrorIs(t, pool.Ignore("b"), common.ErrServerNotIgnored)
	assert.Equal(t, []string{"b"}, pool.ListTubesWatched())

	// a tube that is not watched is not sent
	brokers[0].ResetReceived()
	require.NoError(t, pool.Ignore("unknown"))
	assert.Empty(t, brokers[0].Received())
}

// TestWatchPartialRejection tests that a tube selection accepted by some brokers is kept in
// the session and the rejecting broker is rebuilt from it
func TestWatchPartialRejection(t *testing.T) {
	pool, brokers, _ := newTestPool(t, 2)

	var rejected atomic.Bool
	brokers[1].SetHandler(func(line string, _ []byte) (string, bool) {
		if line == "watch x" && rejected.CompareAndSwap(false, true) {
			return "OUT_OF_MEMORY\r\n", true
		}
		return "", false
	})

	require.NoError(t, pool.Watch("x"))
	assert.Equal(t, []string{common.DefaultTube, "x"}, pool.ListTubesWatched())
	assert.Equal(t, 2, brokers[1].Dials(), "the rejecting broker is reconnected")

	watched, err := pool.ListTubesWatchedPerEndpoint()
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{
		"a:11300": {common.DefaultTube, "x"},
		"b:11300": {common.DefaultTube, "x"},
	}, watched)

	// a later reconnect of the accepting broker keeps the subscription
	brokers[0].KillConnections()
	watched, err = pool.ListTubesWatchedPerEndpoint()
	require.NoError(t, err)
	assert.Equal(t, []string{common.DefaultTube, "x"}, watched["a:11300"])
}

// TestWatchRejectedEverywhere tests that a selection no broker accepts leaves the session unchanged
func TestWatchRejectedEverywhere(t *testing.T) {
	pool, brokers, _ := newTestPool(t, 2)
	for _, b := range brokers {
		b.SetHandler(answer("watch", "BAD_FORMAT\r\n"))
	}

	require.ErrorIs(t, pool.Watch("x"), common.ErrServerBadFormat)
	assert.Equal(t, []string{common.DefaultTube}, pool.ListTubesWatched())
	for _, b := range brokers {
		assert.Equal(t, 1, b.Dials(), "a rejection everywhere does not reconnect")
		c, err := pool.GetConnection(b.Name())
		require.NoError(t, err)
		assert.Equal(t, conn.Active, c.State())
	}
}

// TestSessionCommandsWithoutBrokers tests that tube selection works while every broker is down
func TestSessionCommandsWithoutBrokers(t *testing.T) {
	pool, brokers, _ := newTestPool(t, 2)
	for _, b := range brokers {
		b.SetDown(true)
	}

	require.NoError(t, pool.Use("offline"))
	require.NoError(t, pool.Watch("offline"))
	assert.Equal(t, "offline", pool.ListTubeUsed())
	assert.Equal(t, []string{"default", "offline"}, pool.ListTubesWatched())
}

// TestSumStats tests the merge rule of tube summaries
func TestSumStats(t *testing.T) {
	sum := sumStats([]proto.Stats{
		{"name": "t", "current-jobs-ready": "2", "version": "1.10"},
		{"name": "t", "current-jobs-ready": "5", "version": "1.12"},
		{"name": "t", "current-jobs-ready": "x"},
	})
	assert.Equal(t, "t", sum.Get("name"))
	assert.Equal(t, "7", sum.Get("current-jobs-ready"))
	assert.Equal(t, "1.10", sum.Get("version"))
}
