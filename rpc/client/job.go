package client

import (
	"fmt"
	"github.com/ValentinKolb/dTube/rpc/conn"
)

// Job is a job as seen by the client. Ids are only unique per broker,
// so a job stays bound to the connection it came from.
type Job struct {
	ID   uint64
	Data []byte

	conn *conn.Connection
}

// Connection returns the connection the job belongs to
func (j *Job) Connection() *conn.Connection {
	return j.conn
}

// Endpoint returns the name of the broker that holds the job
func (j *Job) Endpoint() string {
	if j.conn == nil {
		return ""
	}
	return j.conn.Name()
}

func (j *Job) String() string {
	return fmt.Sprintf("job %d@%s (%d bytes)", j.ID, j.Endpoint(), len(j.Data))
}
