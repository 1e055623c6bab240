package client

import (
	"github.com/ValentinKolb/dTube/rpc/common"
	"github.com/ValentinKolb/dTube/rpc/proto"
	"github.com/pkg/errors"
	"time"
)

// --------------------------------------------------------------------------
// Interface Methods (docu see IProducer in interfaces.go)
// --------------------------------------------------------------------------

func (p *Pool) Put(data []byte, priority uint32, delay, ttr time.Duration) (*Job, error) {
	cmd := proto.NewPutCommand(data, priority, delay, ttr)

	// every failed connection is left inactive, so each attempt reaches another broker
	var lastErr error
	for attempt := 0; attempt < len(p.names); attempt++ {
		c, err := p.selectConnection()
		if err != nil {
			if lastErr != nil {
				return nil, errors.Wrapf(err, "put failed, last error: %v", lastErr)
			}
			return nil, err
		}

		resp, err := p.dispatch(c, cmd)
		if err == nil {
			return &Job{ID: resp.ID, Data: data, conn: c}, nil
		}
		if !common.IsTransportError(err) {
			return nil, err
		}
		Logger.Warningf("put on %s failed, trying another endpoint: %v", c.Name(), err)
		lastErr = err
	}

	if lastErr != nil {
		return nil, lastErr
	}
	countExhausted()
	return nil, errors.WithStack(common.ErrPoolExhausted)
}

func (p *Pool) PutInTube(tube string, data []byte, priority uint32, delay, ttr time.Duration) (*Job, error) {
	if err := p.Use(tube); err != nil {
		return nil, err
	}
	return p.Put(data, priority, delay, ttr)
}

func (p *Pool) Use(tube string) error {
	return p.broadcastSession(proto.NewUseCommand(tube), func() {
		p.session.use(tube)
	})
}

func (p *Pool) ListTubeUsed() string {
	return p.session.Used()
}
