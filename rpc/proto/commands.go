package proto

import (
	"math"
	"strconv"
	"time"
)

// --------------------------------------------------------------------------
// Peek / kick subjects
// --------------------------------------------------------------------------

// PeekSubject selects what a peek command looks at
type PeekSubject string

const (
	PeekReady   PeekSubject = "ready"
	PeekDelayed PeekSubject = "delayed"
	PeekBuried  PeekSubject = "buried"
)

// --------------------------------------------------------------------------
// Producer commands
// --------------------------------------------------------------------------

// NewPutCommand creates "put <pri> <delay> <ttr> <bytes>" followed by the job body.
// Responses: INSERTED <id>; BURIED <id>, EXPECTED_CRLF and JOB_TOO_BIG are errors.
func NewPutCommand(data []byte, priority uint32, delay, ttr time.Duration) ICommand {
	if data == nil {
		data = []byte{}
	}
	return &command{
		name: "put",
		args: []string{
			strconv.FormatUint(uint64(priority), 10),
			seconds(delay),
			seconds(ttr),
			strconv.Itoa(len(data)),
		},
		payload: data,
		parser:  newParser("put").on(ResponseInserted, withID),
	}
}

// NewUseCommand creates "use <tube>". Response: USING <tube>.
func NewUseCommand(tube string) ICommand {
	return &command{
		name:   "use",
		args:   []string{tube},
		parser: newParser("use " + tube).on(ResponseUsing, withTube),
	}
}

// --------------------------------------------------------------------------
// Consumer commands
// --------------------------------------------------------------------------

// NewReserveCommand creates "reserve-with-timeout <seconds>".
// Responses: RESERVED <id> <bytes>, TIMED_OUT, DEADLINE_SOON.
func NewReserveCommand(wait time.Duration) IBlockingCommand {
	if wait < 0 {
		wait = 0
	}
	line := "reserve-with-timeout " + seconds(wait)
	return &blockingCommand{
		command: command{
			name: "reserve-with-timeout",
			args: []string{seconds(wait)},
			parser: newParser(line).
				on(ResponseReserved, withJob).
				on(ResponseTimedOut, nameOnly).
				on(ResponseDeadlineSoon, nameOnly),
		},
		wait: wait,
	}
}

// NewDeleteCommand creates "delete <id>". Response: DELETED.
func NewDeleteCommand(id uint64) ICommand {
	return jobCommand("delete", id, ResponseDeleted)
}

// NewReleaseCommand creates "release <id> <pri> <delay>". Response: RELEASED.
func NewReleaseCommand(id uint64, priority uint32, delay time.Duration) ICommand {
	args := []string{
		strconv.FormatUint(id, 10),
		strconv.FormatUint(uint64(priority), 10),
		seconds(delay),
	}
	return &command{
		name:   "release",
		args:   args,
		parser: newParser("release " + args[0]).on(ResponseReleased, nameOnly),
	}
}

// NewBuryCommand creates "bury <id> <pri>". Response: BURIED.
func NewBuryCommand(id uint64, priority uint32) ICommand {
	args := []string{strconv.FormatUint(id, 10), strconv.FormatUint(uint64(priority), 10)}
	return &command{
		name:   "bury",
		args:   args,
		parser: newParser("bury " + args[0]).on(ResponseBuried, nameOnly),
	}
}

// NewTouchCommand creates "touch <id>". Response: TOUCHED.
func NewTouchCommand(id uint64) ICommand {
	return jobCommand("touch", id, ResponseTouched)
}

// NewWatchCommand creates "watch <tube>". Response: WATCHING <count>.
func NewWatchCommand(tube string) ICommand {
	return &command{
		name:   "watch",
		args:   []string{tube},
		parser: newParser("watch " + tube).on(ResponseWatching, withCount),
	}
}

// NewIgnoreCommand creates "ignore <tube>". Response: WATCHING <count>; NOT_IGNORED is an error.
func NewIgnoreCommand(tube string) ICommand {
	return &command{
		name:   "ignore",
		args:   []string{tube},
		parser: newParser("ignore " + tube).on(ResponseWatching, withCount),
	}
}

// --------------------------------------------------------------------------
// Other commands
// --------------------------------------------------------------------------

// NewPeekCommand creates "peek <id>". Response: FOUND <id> <bytes>.
func NewPeekCommand(id uint64) ICommand {
	line := "peek " + strconv.FormatUint(id, 10)
	return &command{
		name:   "peek",
		args:   []string{strconv.FormatUint(id, 10)},
		parser: newParser(line).on(ResponseFound, withJob),
	}
}

// NewPeekSubjectCommand creates "peek-ready", "peek-delayed" or "peek-buried". Response: FOUND <id> <bytes>.
func NewPeekSubjectCommand(subject PeekSubject) ICommand {
	name := "peek-" + string(subject)
	return &command{
		name:   name,
		parser: newParser(name).on(ResponseFound, withJob),
	}
}

// NewKickCommand creates "kick <bound>". Response: KICKED <count>.
func NewKickCommand(bound uint64) ICommand {
	args := []string{strconv.FormatUint(bound, 10)}
	return &command{
		name:   "kick",
		args:   args,
		parser: newParser("kick " + args[0]).on(ResponseKicked, withCount),
	}
}

// NewKickJobCommand creates "kick-job <id>". Response: KICKED.
func NewKickJobCommand(id uint64) ICommand {
	return jobCommand("kick-job", id, ResponseKicked)
}

// NewStatsJobCommand creates "stats-job <id>". Response: OK <bytes> with a YAML dictionary.
func NewStatsJobCommand(id uint64) ICommand {
	args := []string{strconv.FormatUint(id, 10)}
	return &command{
		name:   "stats-job",
		args:   args,
		parser: newParser("stats-job " + args[0]).on(ResponseOK, withStats),
	}
}

// NewStatsTubeCommand creates "stats-tube <tube>". Response: OK <bytes> with a YAML dictionary.
func NewStatsTubeCommand(tube string) ICommand {
	return &command{
		name:   "stats-tube",
		args:   []string{tube},
		parser: newParser("stats-tube " + tube).on(ResponseOK, withStats),
	}
}

// NewStatsCommand creates "stats". Response: OK <bytes> with a YAML dictionary.
func NewStatsCommand() ICommand {
	return &command{
		name:   "stats",
		parser: newParser("stats").on(ResponseOK, withStats),
	}
}

// NewListTubesCommand creates "list-tubes". Response: OK <bytes> with a YAML list.
func NewListTubesCommand() ICommand {
	return &command{
		name:   "list-tubes",
		parser: newParser("list-tubes").on(ResponseOK, withTubes),
	}
}

// NewListTubesWatchedCommand creates "list-tubes-watched". Response: OK <bytes> with a YAML list.
func NewListTubesWatchedCommand() ICommand {
	return &command{
		name:   "list-tubes-watched",
		parser: newParser("list-tubes-watched").on(ResponseOK, withTubes),
	}
}

// NewListTubeUsedCommand creates "list-tube-used". Response: USING <tube>.
func NewListTubeUsedCommand() ICommand {
	return &command{
		name:   "list-tube-used",
		parser: newParser("list-tube-used").on(ResponseUsing, withTube),
	}
}

// NewPauseTubeCommand creates "pause-tube <tube> <delay>". Response: PAUSED.
func NewPauseTubeCommand(tube string, delay time.Duration) ICommand {
	args := []string{tube, seconds(delay)}
	return &command{
		name:   "pause-tube",
		args:   args,
		parser: newParser("pause-tube " + tube).on(ResponsePaused, nameOnly),
	}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// jobCommand builds "<name> <id>" commands that answer with a single name
func jobCommand(name string, id uint64, success string) ICommand {
	args := []string{strconv.FormatUint(id, 10)}
	return &command{
		name:   name,
		args:   args,
		parser: newParser(name+" "+args[0]).on(success, nameOnly),
	}
}

// seconds formats a duration as whole seconds, rounding up partial seconds
func seconds(d time.Duration) string {
	if d <= 0 {
		return "0"
	}
	s := math.Ceil(d.Seconds())
	return strconv.FormatUint(uint64(s), 10)
}
