package client

import (
	"github.com/ValentinKolb/dTube/rpc/common"
	"github.com/ValentinKolb/dTube/rpc/conn"
	"github.com/ValentinKolb/dTube/rpc/proto"
	"github.com/pkg/errors"
	"time"
)

// reserveRound is the server side wait of every reserve round after the first
const reserveRound = time.Second

// --------------------------------------------------------------------------
// Fan-out reserve
// --------------------------------------------------------------------------

// ReserveAll sends one reserve to every usable broker and then reads all answers.
// It returns every job that was reserved in this round, at most one per broker,
// and does not release any of them. Most callers want Reserve instead.
//
// A broker that fails is marked inactive and skipped. ErrPoolExhausted is returned
// if the reserve could not be sent to any broker.
func (p *Pool) ReserveAll(wait time.Duration) ([]*Job, error) {
	start := p.now()
	defer func() { observeReserveRound(start, p.now()) }()

	cmd := proto.NewReserveCommand(wait)

	// phase 1: send to everyone
	var sent []*conn.Connection
	for _, c := range p.GetConnections() {
		if !p.ensureReady(c) {
			continue
		}
		if err := c.Send(cmd); err != nil {
			Logger.Warningf("sending reserve to %s failed: %v", c.Name(), err)
			c.SetInactive()
			continue
		}
		sent = append(sent, c)
	}
	if len(sent) == 0 {
		countExhausted()
		return nil, errors.WithStack(common.ErrPoolExhausted)
	}

	// phase 2: collect the answers
	var (
		jobs     []*Job
		firstErr error
	)
	for _, c := range sent {
		resp, err := c.Read(cmd)
		if err != nil {
			switch {
			case common.IsTransportError(err):
				Logger.Warningf("reading reserve from %s failed: %v", c.Name(), err)
				c.SetInactive()
			case errors.Is(err, common.ErrProtocol):
				// the socket is already gone, keep the endpoint out until the backoff passed
				c.SetInactive()
				if firstErr == nil {
					firstErr = err
				}
			default:
				if firstErr == nil {
					firstErr = errors.Wrapf(err, "%s", c.Name())
				}
			}
			continue
		}
		c.SetActive()
		if resp.IsNoJob() {
			continue
		}
		countReserved(c.Name())
		jobs = append(jobs, &Job{ID: resp.ID, Data: resp.Data, conn: c})
	}

	if len(jobs) == 0 && firstErr != nil {
		return nil, firstErr
	}
	return jobs, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see IConsumer in interfaces.go)
// --------------------------------------------------------------------------

func (p *Pool) Reserve(timeout time.Duration) (*Job, bool, error) {
	jobs, err := p.ReserveAll(0)
	remaining := timeout
	for err == nil && len(jobs) == 0 && (timeout == NoTimeout || remaining > 0) {
		jobs, err = p.ReserveAll(reserveRound)
		remaining -= reserveRound
	}
	if err != nil {
		return nil, false, err
	}
	if len(jobs) == 0 {
		return nil, false, nil
	}

	winner := jobs[p.rand.Intn(len(jobs))]
	for _, job := range jobs {
		if job != winner {
			p.releaseLoser(job)
		}
	}
	return winner, true, nil
}

// releaseLoser gives back a job that was reserved in the same round as the winner.
// A reconnect would lose the reservation anyway, so there is no retry.
func (p *Pool) releaseLoser(job *Job) {
	_, err := job.conn.Dispatch(proto.NewReleaseCommand(job.ID, common.DefaultPriority, common.DefaultDelay))
	countReleased(job.Endpoint(), err == nil)
	if err == nil {
		return
	}
	Logger.Warningf("releasing %s failed: %v", job, err)
	if common.IsTransportError(err) {
		job.conn.SetInactive()
	}
}

func (p *Pool) ReserveFromTube(tube string, timeout time.Duration) (*Job, bool, error) {
	if err := p.WatchOnly(tube); err != nil {
		return nil, false, err
	}
	return p.Reserve(timeout)
}

func (p *Pool) Watch(tube string) error {
	return p.broadcastSession(proto.NewWatchCommand(tube), func() {
		p.session.watch(tube)
	})
}

func (p *Pool) WatchOnly(tube string) error {
	if err := p.Watch(tube); err != nil {
		return err
	}
	for _, watched := range p.session.Watching() {
		if watched == tube {
			continue
		}
		if err := p.Ignore(watched); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pool) Ignore(tube string) error {
	if !p.session.IsWatching(tube) {
		return nil
	}
	if len(p.session.watching) == 1 {
		return &common.ServerError{Code: common.CodeNotIgnored, Command: "ignore " + tube}
	}
	return p.broadcastSession(proto.NewIgnoreCommand(tube), func() {
		p.session.ignore(tube)
	})
}

func (p *Pool) ListTubesWatched() []string {
	return p.session.Watching()
}

func (p *Pool) Delete(job *Job) error {
	_, err := p.jobExchange(job, func(id uint64) proto.ICommand {
		return proto.NewDeleteCommand(id)
	})
	return err
}

func (p *Pool) Release(job *Job, priority uint32, delay time.Duration) error {
	_, err := p.jobExchange(job, func(id uint64) proto.ICommand {
		return proto.NewReleaseCommand(id, priority, delay)
	})
	return err
}

func (p *Pool) Bury(job *Job, priority uint32) error {
	_, err := p.jobExchange(job, func(id uint64) proto.ICommand {
		return proto.NewBuryCommand(id, priority)
	})
	return err
}

func (p *Pool) Touch(job *Job) error {
	_, err := p.jobExchange(job, proto.NewTouchCommand)
	return err
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// JobRef returns a handle for a job known by endpoint and id, e.g. to delete it from another process
func (p *Pool) JobRef(endpoint string, id uint64) (*Job, error) {
	c, err := p.GetConnection(endpoint)
	if err != nil {
		return nil, err
	}
	return &Job{ID: id, conn: c}, nil
}

// jobExchange dispatches a job command to the connection the job came from
func (p *Pool) jobExchange(job *Job, command func(id uint64) proto.ICommand) (*proto.Response, error) {
	if job == nil || job.conn == nil {
		return nil, errors.New("job is not bound to a connection")
	}
	return p.exchange(job.conn, command(job.ID))
}
