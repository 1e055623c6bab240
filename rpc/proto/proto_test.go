package proto

import (
	"errors"
	"github.com/ValentinKolb/dTube/rpc/common"
	"reflect"
	"testing"
	"time"
)

// TestClassify tests the response classification table
func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		wantClass ResponseClass
		wantCode  common.ServerErrorCode
	}{
		{ResponseOutOfMemory, ClassGlobalError, common.CodeOutOfMemory},
		{ResponseInternalError, ClassGlobalError, common.CodeInternalError},
		{ResponseDraining, ClassGlobalError, common.CodeDraining},
		{ResponseBadFormat, ClassGlobalError, common.CodeBadFormat},
		{ResponseUnknownCommand, ClassGlobalError, common.CodeUnknownCommand},
		{ResponseReserved, ClassData, 0},
		{ResponseFound, ClassData, 0},
		{ResponseOK, ClassData, 0},
		{ResponseInserted, ClassSimple, 0},
		{ResponseTimedOut, ClassSimple, 0},
		{ResponseNotFound, ClassSimple, 0},
		{"SOMETHING_ELSE", ClassSimple, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			class, code := Classify(tt.name)
			if class != tt.wantClass {
				t.Errorf("Classify(%s) class = %v, want %v", tt.name, class, tt.wantClass)
			}
			if code != tt.wantCode {
				t.Errorf("Classify(%s) code = %v, want %v", tt.name, code, tt.wantCode)
			}
		})
	}
}

// TestDataLength tests parsing of the trailing byte count
func TestDataLength(t *testing.T) {
	tests := []struct {
		line    string
		want    int
		wantErr bool
	}{
		{"RESERVED 12 5", 5, false},
		{"FOUND 1 0", 0, false},
		{"OK 142", 142, false},
		{"OK", 0, true},
		{"OK abc", 0, true},
		{"OK -1", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := DataLength(tt.line)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DataLength(%q) error = %v, wantErr %v", tt.line, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("DataLength(%q) = %d, want %d", tt.line, got, tt.want)
			}
		})
	}
}

// TestResponseName tests extraction of the leading token
func TestResponseName(t *testing.T) {
	if got := ResponseName("RESERVED 1 2"); got != ResponseReserved {
		t.Errorf("ResponseName() = %q, want %q", got, ResponseReserved)
	}
	if got := ResponseName("TIMED_OUT"); got != ResponseTimedOut {
		t.Errorf("ResponseName() = %q, want %q", got, ResponseTimedOut)
	}
}

// TestCommandLines tests the wire syntax of all commands
func TestCommandLines(t *testing.T) {
	tests := []struct {
		cmd  ICommand
		want string
	}{
		{NewPutCommand([]byte("hello"), 1024, 0, 60*time.Second), "put 1024 0 60 5"},
		{NewPutCommand(nil, 1, 1500*time.Millisecond, time.Second), "put 1 2 1 0"},
		{NewUseCommand("emails"), "use emails"},
		{NewReserveCommand(0), "reserve-with-timeout 0"},
		{NewReserveCommand(time.Second), "reserve-with-timeout 1"},
		{NewReserveCommand(-time.Second), "reserve-with-timeout 0"},
		{NewDeleteCommand(7), "delete 7"},
		{NewReleaseCommand(7, 10, 5*time.Second), "release 7 10 5"},
		{NewBuryCommand(7, 10), "bury 7 10"},
		{NewTouchCommand(7), "touch 7"},
		{NewWatchCommand("emails"), "watch emails"},
		{NewIgnoreCommand("default"), "ignore default"},
		{NewPeekCommand(9), "peek 9"},
		{NewPeekSubjectCommand(PeekReady), "peek-ready"},
		{NewPeekSubjectCommand(PeekDelayed), "peek-delayed"},
		{NewPeekSubjectCommand(PeekBuried), "peek-buried"},
		{NewKickCommand(100), "kick 100"},
		{NewKickJobCommand(3), "kick-job 3"},
		{NewStatsJobCommand(3), "stats-job 3"},
		{NewStatsTubeCommand("emails"), "stats-tube emails"},
		{NewStatsCommand(), "stats"},
		{NewListTubesCommand(), "list-tubes"},
		{NewListTubesWatchedCommand(), "list-tubes-watched"},
		{NewListTubeUsedCommand(), "list-tube-used"},
		{NewPauseTubeCommand("emails", 30*time.Second), "pause-tube emails 30"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.cmd.CommandLine(); got != tt.want {
				t.Errorf("CommandLine() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestPutPayload tests that only put carries a payload
func TestPutPayload(t *testing.T) {
	put := NewPutCommand([]byte("hello"), 1, 0, time.Second)
	if !put.HasPayload() || string(put.Payload()) != "hello" {
		t.Errorf("put payload = %q (has=%v), want hello", put.Payload(), put.HasPayload())
	}
	if NewDeleteCommand(1).HasPayload() {
		t.Error("delete must not carry a payload")
	}
	if NewPutCommand(nil, 1, 0, time.Second).HasPayload() != true {
		t.Error("put with empty body must still carry an (empty) payload")
	}
}

// TestReserveBlockFor tests that reserve exposes its server side wait
func TestReserveBlockFor(t *testing.T) {
	cmd := NewReserveCommand(3 * time.Second)
	if cmd.BlockFor() != 3*time.Second {
		t.Errorf("BlockFor() = %v, want 3s", cmd.BlockFor())
	}
}

// TestParseResponses tests the parsers of the commands against crafted responses
func TestParseResponses(t *testing.T) {
	tests := []struct {
		name     string
		cmd      ICommand
		line     string
		data     []byte
		want     *Response
		wantCode common.ServerErrorCode
		protoErr bool
	}{
		{
			name: "put inserted",
			cmd:  NewPutCommand([]byte("x"), 1, 0, time.Second),
			line: "INSERTED 42",
			want: &Response{Name: ResponseInserted, ID: 42},
		},
		{
			name:     "put buried",
			cmd:      NewPutCommand([]byte("x"), 1, 0, time.Second),
			line:     "BURIED 42",
			wantCode: common.CodeBuried,
		},
		{
			name:     "put job too big",
			cmd:      NewPutCommand([]byte("x"), 1, 0, time.Second),
			line:     "JOB_TOO_BIG",
			wantCode: common.CodeJobTooBig,
		},
		{
			name:     "put expected crlf",
			cmd:      NewPutCommand([]byte("x"), 1, 0, time.Second),
			line:     "EXPECTED_CRLF",
			wantCode: common.CodeExpectedCRLF,
		},
		{
			name:     "put malformed id",
			cmd:      NewPutCommand([]byte("x"), 1, 0, time.Second),
			line:     "INSERTED abc",
			protoErr: true,
		},
		{
			name: "use",
			cmd:  NewUseCommand("emails"),
			line: "USING emails",
			want: &Response{Name: ResponseUsing, Tube: "emails"},
		},
		{
			name: "reserve reserved",
			cmd:  NewReserveCommand(0),
			line: "RESERVED 5 3",
			data: []byte("abc"),
			want: &Response{Name: ResponseReserved, ID: 5, Data: []byte("abc")},
		},
		{
			name: "reserve timed out",
			cmd:  NewReserveCommand(0),
			line: "TIMED_OUT",
			want: &Response{Name: ResponseTimedOut},
		},
		{
			name: "reserve deadline soon",
			cmd:  NewReserveCommand(0),
			line: "DEADLINE_SOON",
			want: &Response{Name: ResponseDeadlineSoon},
		},
		{
			name:     "delete not found",
			cmd:      NewDeleteCommand(1),
			line:     "NOT_FOUND",
			wantCode: common.CodeNotFound,
		},
		{
			name: "delete deleted",
			cmd:  NewDeleteCommand(1),
			line: "DELETED",
			want: &Response{Name: ResponseDeleted},
		},
		{
			name: "bury buried",
			cmd:  NewBuryCommand(1, 1),
			line: "BURIED",
			want: &Response{Name: ResponseBuried},
		},
		{
			name:     "release buried",
			cmd:      NewReleaseCommand(1, 1, 0),
			line:     "BURIED",
			wantCode: common.CodeBuried,
		},
		{
			name: "watch",
			cmd:  NewWatchCommand("a"),
			line: "WATCHING 2",
			want: &Response{Name: ResponseWatching, Count: 2},
		},
		{
			name:     "ignore last tube",
			cmd:      NewIgnoreCommand("default"),
			line:     "NOT_IGNORED",
			wantCode: common.CodeNotIgnored,
		},
		{
			name: "kick",
			cmd:  NewKickCommand(10),
			line: "KICKED 3",
			want: &Response{Name: ResponseKicked, Count: 3},
		},
		{
			name: "peek found",
			cmd:  NewPeekCommand(3),
			line: "FOUND 3 2",
			data: []byte("hi"),
			want: &Response{Name: ResponseFound, ID: 3, Data: []byte("hi")},
		},
		{
			name: "stats",
			cmd:  NewStatsCommand(),
			line: "OK 60",
			data: []byte("---\ncurrent-jobs-ready: 3\nversion: 1.10\nhostname: broker-1\n"),
			want: &Response{Name: ResponseOK, Stats: Stats{
				"current-jobs-ready": "3",
				"version":            "1.10",
				"hostname":           "broker-1",
			}},
		},
		{
			name: "list tubes",
			cmd:  NewListTubesCommand(),
			line: "OK 24",
			data: []byte("---\n- default\n- emails\n"),
			want: &Response{Name: ResponseOK, Tubes: []string{"default", "emails"}},
		},
		{
			name: "list tube used",
			cmd:  NewListTubeUsedCommand(),
			line: "USING emails",
			want: &Response{Name: ResponseUsing, Tube: "emails"},
		},
		{
			name: "pause tube",
			cmd:  NewPauseTubeCommand("a", time.Second),
			line: "PAUSED",
			want: &Response{Name: ResponsePaused},
		},
		{
			name:     "global error reaching the parser",
			cmd:      NewStatsCommand(),
			line:     "DRAINING",
			wantCode: common.CodeDraining,
		},
		{
			name:     "unexpected response",
			cmd:      NewTouchCommand(1),
			line:     "WHAT",
			wantCode: common.CodeUnexpectedResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := tt.cmd.ResponseParser().ParseResponse(tt.line, tt.data)

			if tt.protoErr {
				if !errors.Is(err, common.ErrProtocol) {
					t.Fatalf("ParseResponse() error = %v, want protocol error", err)
				}
				return
			}

			if tt.wantCode != 0 {
				var serverErr *common.ServerError
				if !errors.As(err, &serverErr) {
					t.Fatalf("ParseResponse() error = %v, want server error", err)
				}
				if serverErr.Code != tt.wantCode {
					t.Errorf("ParseResponse() code = %v, want %v", serverErr.Code, tt.wantCode)
				}
				if serverErr.Response != tt.line {
					t.Errorf("ParseResponse() response = %q, want %q", serverErr.Response, tt.line)
				}
				return
			}

			if err != nil {
				t.Fatalf("ParseResponse() unexpected error: %v", err)
			}
			if !reflect.DeepEqual(resp, tt.want) {
				t.Errorf("ParseResponse() = %+v, want %+v", resp, tt.want)
			}
		})
	}
}

// TestStatsAccessors tests the typed accessors of Stats
func TestStatsAccessors(t *testing.T) {
	s := Stats{"total-jobs": "12", "name": "emails"}

	if n, ok := s.Uint("total-jobs"); !ok || n != 12 {
		t.Errorf("Uint(total-jobs) = %d, %v, want 12, true", n, ok)
	}
	if _, ok := s.Uint("name"); ok {
		t.Error("Uint(name) must fail for a non numeric value")
	}
	if _, ok := s.Uint("missing"); ok {
		t.Error("Uint(missing) must fail")
	}
	if s.Get("name") != "emails" {
		t.Errorf("Get(name) = %q, want emails", s.Get("name"))
	}
}

// TestEmptyYAMLBodies tests decoding of empty documents
func TestEmptyYAMLBodies(t *testing.T) {
	stats, err := decodeYAMLDict([]byte("---\n"))
	if err != nil || len(stats) != 0 {
		t.Errorf("decodeYAMLDict(empty) = %v, %v", stats, err)
	}
	list, err := decodeYAMLList([]byte(""))
	if err != nil || len(list) != 0 {
		t.Errorf("decodeYAMLList(empty) = %v, %v", list, err)
	}
	if _, err := decodeYAMLList([]byte("---\na: b\n")); err == nil {
		t.Error("decodeYAMLList(mapping) must fail")
	}
}
