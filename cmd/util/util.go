package util

import (
	"encoding/json"
	"fmt"
	"github.com/ValentinKolb/dTube/rpc/client"
	"github.com/ValentinKolb/dTube/rpc/common"
	"github.com/ValentinKolb/dTube/rpc/proto"
	"github.com/ValentinKolb/dTube/rpc/transport"
	"github.com/ValentinKolb/dTube/rpc/transport/base"
	"github.com/ValentinKolb/dTube/rpc/transport/tcp"
	"github.com/ValentinKolb/dTube/rpc/transport/unix"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// --------------------------------------------------------------------------
// Flags and configuration
// --------------------------------------------------------------------------

// SetupClientFlags adds the broker connection flags to a command
func SetupClientFlags(cmd *cobra.Command) {
	key := "endpoints"
	cmd.PersistentFlags().String(key, "localhost:11300", WrapString("Comma separated list of beanstalkd brokers (host:port, or unix:/path/to/socket)"))

	key = "connect-timeout"
	cmd.PersistentFlags().Duration(key, common.DefaultConnectTimeout, WrapString("How long to wait for a connection to a broker"))

	key = "timeout"
	cmd.PersistentFlags().Duration(key, common.DefaultIOTimeout, WrapString("Timeout of a single read or write on an established connection"))

	key = "reconnect-backoff"
	cmd.PersistentFlags().Duration(key, common.DefaultReconnectBackoff, WrapString("How long a failed broker is left alone before it is retried"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "warn", WrapString("Log level of the client (debug, info, warn, error), optionally per logger, e.g. warn,conn=debug"))

	key = "output"
	cmd.PersistentFlags().String(key, "text", WrapString("Output format (text, json, yaml)"))

	key = "metrics"
	cmd.PersistentFlags().Bool(key, false, WrapString("Print the client metrics in Prometheus format to stderr when the command finished"))
}

// InitClientConfig initializes configuration from environment variables
func InitClientConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("dtube")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetClientConfig reads client configuration from viper
func GetClientConfig() (*common.ClientConfig, error) {
	endpoints, err := common.ParseEndpoints(viper.GetString("endpoints"))
	if err != nil {
		return nil, err
	}
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("at least one endpoint is required")
	}

	conf := &common.ClientConfig{
		Endpoints:        endpoints,
		ConnectTimeout:   viper.GetDuration("connect-timeout"),
		IOTimeout:        viper.GetDuration("timeout"),
		ReconnectBackoff: viper.GetDuration("reconnect-backoff"),
		LogLevel:         viper.GetString("log-level"),
	}
	return conf, nil
}

// GetDialer returns a dialer that reaches tcp and unix socket endpoints
func GetDialer() transport.IDialer {
	return base.NewBaseDialer(unix.NewConnector(), tcp.NewConnector())
}

// NewPool initializes the loggers and creates a pool from the configuration
func NewPool() (*client.Pool, error) {
	config, err := GetClientConfig()
	if err != nil {
		return nil, err
	}
	if err := common.InitLoggers(config.LogLevel); err != nil {
		return nil, err
	}
	return client.NewPool(*config, GetDialer()), nil
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// --------------------------------------------------------------------------
// Output
// --------------------------------------------------------------------------

// PrintResult writes v in the configured output format. In text mode the text
// function is used, it defaults to fmt.Println of v.
func PrintResult(v interface{}, text func(w io.Writer)) error {
	return writeResult(os.Stdout, viper.GetString("output"), v, text)
}

func writeResult(w io.Writer, format string, v interface{}, text func(w io.Writer)) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case "text", "":
		if text != nil {
			text(w)
		} else {
			_, _ = fmt.Fprintln(w, v)
		}
		return nil
	default:
		return fmt.Errorf("invalid output format %s", format)
	}
}

// FinishCommand closes the pool and prints the metrics if requested
func FinishCommand(pool *client.Pool) {
	if pool != nil {
		_ = pool.Close()
	}
	if viper.GetBool("metrics") {
		client.WriteMetrics(os.Stderr)
	}
}

// JobView is the printable form of a job
type JobView struct {
	Endpoint string `json:"endpoint" yaml:"endpoint"`
	ID       uint64 `json:"id" yaml:"id"`
	Data     string `json:"data,omitempty" yaml:"data,omitempty"`
}

// NewJobView converts a job, nil stays nil
func NewJobView(job *client.Job) *JobView {
	if job == nil {
		return nil
	}
	return &JobView{Endpoint: job.Endpoint(), ID: job.ID, Data: string(job.Data)}
}

// PrintJob prints a job as "id=<id> endpoint=<endpoint> data=<data>"
func PrintJob(job *client.Job) error {
	view := NewJobView(job)
	return PrintResult(view, func(w io.Writer) {
		if view == nil {
			_, _ = fmt.Fprintln(w, "no job")
			return
		}
		_, _ = fmt.Fprintf(w, "id=%d endpoint=%s data=%s\n", view.ID, view.Endpoint, view.Data)
	})
}

// PrintStats prints a stats dictionary sorted by key
func PrintStats(stats map[string]string) error {
	return PrintResult(stats, func(w io.Writer) {
		writeStats(w, "", stats)
	})
}

// PrintStatsPerEndpoint prints one stats block per endpoint in the order of the pool
func PrintStatsPerEndpoint(pool *client.Pool, perEndpoint map[string]proto.Stats) error {
	return PrintResult(perEndpoint, func(w io.Writer) {
		for _, c := range pool.GetConnections() {
			if stats, ok := perEndpoint[c.Name()]; ok {
				_, _ = fmt.Fprintf(w, "[%s]\n", c.Name())
				writeStats(w, "  ", stats)
			}
		}
	})
}

func writeStats(w io.Writer, indent string, stats map[string]string) {
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		_, _ = fmt.Fprintf(w, "%s%-24s%s\n", indent, k+":", stats[k])
	}
}

// PreparePool binds the flags of the executed command and creates the pool for it
func PreparePool(cmd *cobra.Command) (*client.Pool, error) {
	if err := BindCommandFlags(cmd); err != nil {
		return nil, err
	}
	return NewPool()
}

// ParseJobRef parses the "[endpoint] [id]" arguments of the job commands
func ParseJobRef(pool *client.Pool, args []string) (*client.Job, error) {
	id, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("id must be a number: %w", err)
	}
	return pool.JobRef(args[0], id)
}
