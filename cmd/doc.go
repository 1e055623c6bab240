// Package cmd implements the command-line interface of dTube, a client for
// a pool of independent beanstalkd brokers. It provides a hierarchical command
// structure for putting and consuming jobs and for inspecting the brokers.
//
// The package is organized into several subpackages:
//
//   - job: Commands for single jobs (put, reserve, delete, release, bury, touch, ...) and a perf tool
//   - tube: Commands for tubes across all brokers (list, stats, summary, pause, kick, peek)
//   - util: Shared utilities for flags, configuration and output (internal use)
//
// All commands share the connection flags of the root command. Every flag can also be
// set with an environment variable prefixed with DTUBE_ (e.g. DTUBE_ENDPOINTS), which
// may be placed in a .env or .env.local file.
//
// See dtube -help for a list of all commands.
package cmd
