// Package client implements a beanstalkd client that spreads one logical queue
// over several independent brokers.
//
// The Pool owns one conn.Connection per broker and implements the IProducer,
// IConsumer and IQueueAdmin interfaces (together IPool). Callers should depend on
// the narrowest interface they need.
//
// Key Components:
//
//   - Selection: single target operations (e.g. Put) try the brokers in random
//     order. Brokers that failed are skipped until their reconnect backoff passed.
//
//   - Retry: a transport error on an exchange leads to exactly one reconnect and
//     one retry. Broker errors and malformed responses are never retried.
//
//   - Session restore: the used tube and the watched tubes are kept in a
//     SessionState. After every reconnect they are replayed onto the new socket
//     (use, watch for every non-default tube, ignore default if not watched).
//
//   - Reserve: ReserveAll sends a reserve to every broker before reading any
//     answer and returns all jobs of that round. Reserve repeats such rounds until
//     a job arrives or the timeout is used up, keeps one job (chosen at random)
//     and releases the others.
//
//   - Broadcast: administrative operations go to every broker. Unreachable brokers
//     are skipped and the answers are merged (union of tube lists, sum of kicked
//     jobs, stats keyed by endpoint).
//
// Usage Example:
//
//	config := common.ClientConfig{Endpoints: endpoints}
//	pool := client.NewPool(config, tcp.NewTCPDialer())
//	defer pool.Close()
//
//	job, err := pool.PutInTube("emails", []byte("hello"), common.DefaultPriority, 0, common.DefaultTTR)
//
//	job, ok, err := pool.ReserveFromTube("emails", 5*time.Second)
//	if err == nil && ok {
//		pool.Delete(job)
//	}
//
// Thread Safety:
//
//	A Pool is not safe for concurrent use. Use one Pool per goroutine.
package client
