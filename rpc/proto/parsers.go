package proto

import (
	"fmt"
	"github.com/ValentinKolb/dTube/rpc/common"
	"gopkg.in/yaml.v3"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// Parser building blocks
// --------------------------------------------------------------------------

// buildFunc builds a Response from the arguments of a success status line
type buildFunc func(args []string, data []byte) (*Response, error)

// parser accepts a fixed set of success responses. Everything else is an error:
// known command errors become ServerErrors with their code, unknown names
// become CodeUnexpectedResponse.
type parser struct {
	cmd     string
	success map[string]buildFunc
}

func newParser(cmd string) *parser {
	return &parser{cmd: cmd, success: map[string]buildFunc{}}
}

// on registers a success response
func (p *parser) on(name string, build buildFunc) *parser {
	p.success[name] = build
	return p
}

func (p *parser) ParseResponse(line string, data []byte) (*Response, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, serverError(common.CodeUnexpectedResponse, line, p.cmd)
	}
	name := fields[0]

	if build, ok := p.success[name]; ok {
		resp, err := build(fields[1:], data)
		if err != nil {
			return nil, &common.ClientError{
				Kind: common.KindProtocol,
				Msg:  fmt.Sprintf("malformed %s response %q to '%s'", name, line, p.cmd),
				Err:  err,
			}
		}
		resp.Name = name
		return resp, nil
	}

	if code, ok := commandErrors[name]; ok {
		return nil, serverError(code, line, p.cmd)
	}
	if code, ok := globalErrors[name]; ok {
		return nil, serverError(code, line, p.cmd)
	}
	return nil, serverError(common.CodeUnexpectedResponse, line, p.cmd)
}

func serverError(code common.ServerErrorCode, line, cmd string) error {
	return &common.ServerError{Code: code, Response: line, Command: cmd}
}

// --------------------------------------------------------------------------
// Builders
// --------------------------------------------------------------------------

// nameOnly builds a response that carries nothing besides its name
func nameOnly(_ []string, _ []byte) (*Response, error) {
	return &Response{}, nil
}

// withID parses "<id>"
func withID(args []string, _ []byte) (*Response, error) {
	id, err := uintArg(args, 0)
	if err != nil {
		return nil, err
	}
	return &Response{ID: id}, nil
}

// withCount parses "<count>"
func withCount(args []string, _ []byte) (*Response, error) {
	n, err := uintArg(args, 0)
	if err != nil {
		return nil, err
	}
	return &Response{Count: n}, nil
}

// withTube parses "<tube>"
func withTube(args []string, _ []byte) (*Response, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("missing tube name")
	}
	return &Response{Tube: args[0]}, nil
}

// withJob parses "<id> <bytes>" followed by the job body
func withJob(args []string, data []byte) (*Response, error) {
	id, err := uintArg(args, 0)
	if err != nil {
		return nil, err
	}
	return &Response{ID: id, Data: data}, nil
}

// withStats decodes a YAML dictionary body
func withStats(_ []string, data []byte) (*Response, error) {
	stats, err := decodeYAMLDict(data)
	if err != nil {
		return nil, err
	}
	return &Response{Stats: stats}, nil
}

// withTubes decodes a YAML list body
func withTubes(_ []string, data []byte) (*Response, error) {
	tubes, err := decodeYAMLList(data)
	if err != nil {
		return nil, err
	}
	return &Response{Tubes: tubes}, nil
}

func uintArg(args []string, i int) (uint64, error) {
	if len(args) <= i {
		return 0, fmt.Errorf("missing argument %d", i+1)
	}
	return strconv.ParseUint(args[i], 10, 64)
}

// --------------------------------------------------------------------------
// YAML bodies
// --------------------------------------------------------------------------

// decodeYAMLDict decodes a flat YAML mapping, keeping scalar values verbatim
// (e.g. "version: 1.10" stays "1.10" instead of becoming the float 1.1)
func decodeYAMLDict(data []byte) (Stats, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	stats := Stats{}
	node := documentContent(&doc)
	if node == nil {
		return stats, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("expected a yaml mapping, got kind %d", node.Kind)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		stats[node.Content[i].Value] = node.Content[i+1].Value
	}
	return stats, nil
}

// decodeYAMLList decodes a YAML sequence of scalars
func decodeYAMLList(data []byte) ([]string, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	node := documentContent(&doc)
	if node == nil {
		return []string{}, nil
	}
	if node.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("expected a yaml sequence, got kind %d", node.Kind)
	}
	list := make([]string, 0, len(node.Content))
	for _, item := range node.Content {
		list = append(list, item.Value)
	}
	return list, nil
}

// documentContent unwraps the document node, nil for an empty document
func documentContent(doc *yaml.Node) *yaml.Node {
	node := doc
	if doc.Kind == yaml.DocumentNode {
		if len(doc.Content) == 0 {
			return nil
		}
		node = doc.Content[0]
	}
	if node.Kind == 0 || (node.Kind == yaml.ScalarNode && node.Tag == "!!null") {
		return nil
	}
	return node
}
