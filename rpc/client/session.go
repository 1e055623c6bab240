package client

import (
	"github.com/ValentinKolb/dTube/rpc/common"
	"github.com/ValentinKolb/dTube/rpc/proto"
)

// SessionState is the tube selection of a client session: the used tube and the
// watched tubes. Brokers keep this per socket, so it is lost on every reconnect
// and has to be restored from here.
type SessionState struct {
	used     string
	watching []string // ordered set, in the order the tubes were watched
}

// NewSessionState returns the state of a fresh broker connection
func NewSessionState() *SessionState {
	return &SessionState{
		used:     common.DefaultTube,
		watching: []string{common.DefaultTube},
	}
}

// Used returns the used tube
func (s *SessionState) Used() string {
	return s.used
}

// Watching returns a copy of the watched tubes
func (s *SessionState) Watching() []string {
	return append([]string(nil), s.watching...)
}

// IsWatching reports whether the tube is watched
func (s *SessionState) IsWatching(tube string) bool {
	for _, t := range s.watching {
		if t == tube {
			return true
		}
	}
	return false
}

func (s *SessionState) use(tube string) {
	s.used = tube
}

func (s *SessionState) watch(tube string) {
	if !s.IsWatching(tube) {
		s.watching = append(s.watching, tube)
	}
}

func (s *SessionState) ignore(tube string) {
	kept := s.watching[:0]
	for _, t := range s.watching {
		if t != tube {
			kept = append(kept, t)
		}
	}
	s.watching = kept
}

// restoreCommands returns the commands that bring a fresh broker connection to this state:
// use (if not default), watch for every non-default tube in watch order, ignore default (if not watched)
func (s *SessionState) restoreCommands() []proto.ICommand {
	var cmds []proto.ICommand
	if s.used != common.DefaultTube {
		cmds = append(cmds, proto.NewUseCommand(s.used))
	}
	for _, tube := range s.watching {
		if tube != common.DefaultTube {
			cmds = append(cmds, proto.NewWatchCommand(tube))
		}
	}
	if !s.IsWatching(common.DefaultTube) {
		cmds = append(cmds, proto.NewIgnoreCommand(common.DefaultTube))
	}
	return cmds
}
