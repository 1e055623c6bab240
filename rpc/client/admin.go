package client

import (
	"github.com/ValentinKolb/dTube/rpc/proto"
	"strconv"
	"time"
)

// --------------------------------------------------------------------------
// Interface Methods (docu see IQueueAdmin in interfaces.go)
// --------------------------------------------------------------------------

func (p *Pool) Kick(max uint64) (uint64, error) {
	results, err := p.broadcast(proto.NewKickCommand(max), false)
	var kicked uint64
	for _, r := range results {
		kicked += r.resp.Count
	}
	return kicked, err
}

func (p *Pool) KickJob(job *Job) error {
	_, err := p.jobExchange(job, proto.NewKickJobCommand)
	return err
}

func (p *Pool) Peek(endpoint string, id uint64) (*Job, error) {
	c, err := p.GetConnection(endpoint)
	if err != nil {
		return nil, err
	}
	resp, err := p.exchange(c, proto.NewPeekCommand(id))
	if err != nil {
		return nil, err
	}
	return &Job{ID: resp.ID, Data: resp.Data, conn: c}, nil
}

func (p *Pool) PeekReady(tube, endpoint string) (*Job, error) {
	return p.peekSubject(proto.PeekReady, tube, endpoint)
}

func (p *Pool) PeekDelayed(tube, endpoint string) (*Job, error) {
	return p.peekSubject(proto.PeekDelayed, tube, endpoint)
}

func (p *Pool) PeekBuried(tube, endpoint string) (*Job, error) {
	return p.peekSubject(proto.PeekBuried, tube, endpoint)
}

func (p *Pool) ListTubes() ([]string, error) {
	results, err := p.broadcast(proto.NewListTubesCommand(), false)
	seen := map[string]struct{}{}
	tubes := []string{}
	for _, r := range results {
		for _, tube := range r.resp.Tubes {
			if _, ok := seen[tube]; ok {
				continue
			}
			seen[tube] = struct{}{}
			tubes = append(tubes, tube)
		}
	}
	return tubes, err
}

func (p *Pool) ListTubesWatchedPerEndpoint() (map[string][]string, error) {
	results, err := p.broadcast(proto.NewListTubesWatchedCommand(), false)
	watched := make(map[string][]string, len(results))
	for _, r := range results {
		watched[r.conn.Name()] = r.resp.Tubes
	}
	return watched, err
}

func (p *Pool) ListTubeUsedPerEndpoint() (map[string]string, error) {
	results, err := p.broadcast(proto.NewListTubeUsedCommand(), false)
	used := make(map[string]string, len(results))
	for _, r := range results {
		used[r.conn.Name()] = r.resp.Tube
	}
	return used, err
}

func (p *Pool) PauseTube(tube string, delay time.Duration) error {
	_, err := p.broadcast(proto.NewPauseTubeCommand(tube, delay), true)
	return err
}

func (p *Pool) Stats() (map[string]proto.Stats, error) {
	return p.statsPerEndpoint(proto.NewStatsCommand(), false)
}

func (p *Pool) StatsFor(endpoint string) (proto.Stats, error) {
	resp, _, err := p.exchangeWith(endpoint, proto.NewStatsCommand())
	if err != nil {
		return nil, err
	}
	return resp.Stats, nil
}

func (p *Pool) StatsTube(tube string) (map[string]proto.Stats, error) {
	return p.statsPerEndpoint(proto.NewStatsTubeCommand(tube), true)
}

func (p *Pool) StatsTubeFor(tube, endpoint string) (proto.Stats, error) {
	resp, _, err := p.exchangeWith(endpoint, proto.NewStatsTubeCommand(tube))
	if err != nil {
		return nil, err
	}
	return resp.Stats, nil
}

func (p *Pool) StatsTubeSummary(tube string) (proto.Stats, error) {
	perEndpoint, err := p.StatsTube(tube)
	if err != nil {
		return nil, err
	}
	// sum in registration order so non-numeric values come from the first broker
	var ordered []proto.Stats
	for _, c := range p.GetConnections() {
		if stats, ok := perEndpoint[c.Name()]; ok {
			ordered = append(ordered, stats)
		}
	}
	return sumStats(ordered), nil
}

func (p *Pool) StatsJob(job *Job) (proto.Stats, error) {
	resp, err := p.jobExchange(job, proto.NewStatsJobCommand)
	if err != nil {
		return nil, err
	}
	return resp.Stats, nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// peekSubject uses the tube (if given) and peeks on the named or a selected connection
func (p *Pool) peekSubject(subject proto.PeekSubject, tube, endpoint string) (*Job, error) {
	if tube != "" && tube != p.session.Used() {
		if err := p.Use(tube); err != nil {
			return nil, err
		}
	}
	resp, c, err := p.exchangeWith(endpoint, proto.NewPeekSubjectCommand(subject))
	if err != nil {
		return nil, err
	}
	return &Job{ID: resp.ID, Data: resp.Data, conn: c}, nil
}

// statsPerEndpoint broadcasts a stats command and keys the results by endpoint
func (p *Pool) statsPerEndpoint(cmd proto.ICommand, skipNotFound bool) (map[string]proto.Stats, error) {
	results, err := p.broadcast(cmd, skipNotFound)
	stats := make(map[string]proto.Stats, len(results))
	for _, r := range results {
		stats[r.conn.Name()] = r.resp.Stats
	}
	if err != nil && len(stats) == 0 {
		return nil, err
	}
	return stats, err
}

// sumStats adds up every value that is an unsigned integer in all snapshots.
// Other values (e.g. the tube name) are taken from the first snapshot that has them.
func sumStats(all []proto.Stats) proto.Stats {
	sum := proto.Stats{}
	numeric := map[string]bool{}
	for _, stats := range all {
		for key, value := range stats {
			n, err := strconv.ParseUint(value, 10, 64)
			isNumber := err == nil

			prev, seen := sum[key]
			switch {
			case !seen:
				sum[key] = value
				numeric[key] = isNumber
			case numeric[key] && isNumber:
				total, _ := strconv.ParseUint(prev, 10, 64)
				sum[key] = strconv.FormatUint(total+n, 10)
			default:
				numeric[key] = false
			}
		}
	}
	return sum
}
