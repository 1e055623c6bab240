package proto

import (
	"github.com/ValentinKolb/dTube/rpc/common"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// Response names
// --------------------------------------------------------------------------

const (
	ResponseReserved     = "RESERVED"
	ResponseFound        = "FOUND"
	ResponseOK           = "OK"
	ResponseInserted     = "INSERTED"
	ResponseBuried       = "BURIED"
	ResponseExpectedCRLF = "EXPECTED_CRLF"
	ResponseJobTooBig    = "JOB_TOO_BIG"
	ResponseUsing        = "USING"
	ResponseDeadlineSoon = "DEADLINE_SOON"
	ResponseTimedOut     = "TIMED_OUT"
	ResponseDeleted      = "DELETED"
	ResponseNotFound     = "NOT_FOUND"
	ResponseReleased     = "RELEASED"
	ResponseTouched      = "TOUCHED"
	ResponseWatching     = "WATCHING"
	ResponseNotIgnored   = "NOT_IGNORED"
	ResponseKicked       = "KICKED"
	ResponsePaused       = "PAUSED"

	ResponseOutOfMemory    = "OUT_OF_MEMORY"
	ResponseInternalError  = "INTERNAL_ERROR"
	ResponseDraining       = "DRAINING"
	ResponseBadFormat      = "BAD_FORMAT"
	ResponseUnknownCommand = "UNKNOWN_COMMAND"
)

// --------------------------------------------------------------------------
// Classification
// --------------------------------------------------------------------------

// ResponseClass tells a connection how to frame a response
type ResponseClass int

const (
	// ClassSimple responses consist of the status line only
	ClassSimple ResponseClass = iota
	// ClassData responses are followed by <bytes> of payload and a line terminator
	ClassData
	// ClassGlobalError responses are errors that may answer any command
	ClassGlobalError
)

// globalErrors maps every global error response to its error code
var globalErrors = map[string]common.ServerErrorCode{
	ResponseOutOfMemory:    common.CodeOutOfMemory,
	ResponseInternalError:  common.CodeInternalError,
	ResponseDraining:       common.CodeDraining,
	ResponseBadFormat:      common.CodeBadFormat,
	ResponseUnknownCommand: common.CodeUnknownCommand,
}

// dataResponses are followed by a payload
var dataResponses = map[string]struct{}{
	ResponseReserved: {},
	ResponseFound:    {},
	ResponseOK:       {},
}

// commandErrors are error responses that only some commands send
var commandErrors = map[string]common.ServerErrorCode{
	ResponseNotFound:     common.CodeNotFound,
	ResponseBuried:       common.CodeBuried,
	ResponseExpectedCRLF: common.CodeExpectedCRLF,
	ResponseJobTooBig:    common.CodeJobTooBig,
	ResponseNotIgnored:   common.CodeNotIgnored,
}

// Classify returns the class of a response name and, for global errors, the error code
func Classify(name string) (ResponseClass, common.ServerErrorCode) {
	if code, ok := globalErrors[name]; ok {
		return ClassGlobalError, code
	}
	if _, ok := dataResponses[name]; ok {
		return ClassData, 0
	}
	return ClassSimple, 0
}

// ResponseName returns the leading token of a status line
func ResponseName(line string) string {
	if i := strings.IndexByte(line, ' '); i >= 0 {
		return line[:i]
	}
	return line
}

// DataLength parses the byte count at the end of a data-bearing status line
func DataLength(line string) (int, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0, strconv.ErrSyntax
	}
	n, err := strconv.Atoi(fields[len(fields)-1])
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, strconv.ErrRange
	}
	return n, nil
}

// --------------------------------------------------------------------------
// Response
// --------------------------------------------------------------------------

// Response is the structured result of one exchange. Which fields are set depends on the command.
type Response struct {
	Name  string
	ID    uint64   // put, reserve, peek
	Data  []byte   // reserve, peek
	Tube  string   // use, list-tube-used
	Count uint64   // watch, ignore, kick
	Stats Stats    // stats, stats-tube, stats-job
	Tubes []string // list-tubes, list-tubes-watched
}

// IsNoJob reports whether a reserve response means that no job was handed out
func (r *Response) IsNoJob() bool {
	return r.Name == ResponseTimedOut || r.Name == ResponseDeadlineSoon
}

// --------------------------------------------------------------------------
// Stats
// --------------------------------------------------------------------------

// Stats is the dictionary returned by the stats commands. Values are kept verbatim.
type Stats map[string]string

// Get returns the value for key, or "" if absent
func (s Stats) Get(key string) string {
	return s[key]
}

// Uint returns the value for key as an unsigned integer
func (s Stats) Uint(key string) (uint64, bool) {
	v, ok := s[key]
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
