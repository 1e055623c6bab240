// Package tcp implements TCP socket connections to beanstalkd brokers.
// It provides the tcp implementation of base.IClientConnector: dial with a
// connect timeout, keepalive, and TCP_NODELAY since the protocol consists of
// many small request/response exchanges.
package tcp
