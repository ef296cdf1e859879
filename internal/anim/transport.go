package anim

import (
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/scgolang/osc"
)

// Transport delivers addressed messages to an animation host. Sends are
// fire-and-forget: the receiver must tolerate loss and reordering.
type Transport interface {
	Send(addr string, args ...any) error
	Close() error
}

// OSCTransport sends each message as an OSC packet over UDP.
type OSCTransport struct {
	conn *osc.UDPConn
}

func NewOSCTransport(host string, port int) (*OSCTransport, error) {
	raddr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("anim: resolve %s:%d: %w", host, port, err)
	}
	conn, err := osc.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("anim: dial osc: %w", err)
	}
	return &OSCTransport{conn: conn}, nil
}

func (t *OSCTransport) Send(addr string, args ...any) error {
	msg := osc.Message{Address: addr}
	for _, a := range args {
		switch v := a.(type) {
		case float32:
			msg.Arguments = append(msg.Arguments, osc.Float(v))
		case float64:
			msg.Arguments = append(msg.Arguments, osc.Float(float32(v)))
		case int:
			msg.Arguments = append(msg.Arguments, osc.Int(int32(v)))
		case int32:
			msg.Arguments = append(msg.Arguments, osc.Int(v))
		case string:
			msg.Arguments = append(msg.Arguments, osc.String(v))
		default:
			msg.Arguments = append(msg.Arguments, osc.String(fmt.Sprint(v)))
		}
	}
	return t.conn.Send(msg)
}

func (t *OSCTransport) Close() error {
	return t.conn.Close()
}

// LineTransport writes one JSON object per line over TCP, for receivers
// without an OSC stack.
type LineTransport struct {
	mu   sync.Mutex
	conn net.Conn
	enc  *json.Encoder
}

type lineMessage struct {
	Address string `json:"address"`
	Data    []any  `json:"data"`
}

func NewLineTransport(host string, port int) (*LineTransport, error) {
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, strconv.Itoa(port)), 2*time.Second)
	if err != nil {
		return nil, fmt.Errorf("anim: dial line transport: %w", err)
	}
	return &LineTransport{conn: conn, enc: json.NewEncoder(conn)}, nil
}

func (t *LineTransport) Send(addr string, args ...any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if args == nil {
		args = []any{}
	}
	return t.enc.Encode(lineMessage{Address: addr, Data: args})
}

func (t *LineTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn.Close()
}
