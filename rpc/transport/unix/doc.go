// Package unix implements Unix domain socket connections for brokers running
// on the same machine (beanstalkd -l unix:/path). Endpoints are addressed by
// their socket path, which is also their name in the pool.
package unix
