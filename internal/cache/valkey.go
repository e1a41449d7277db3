package cache

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"
)

// ValkeyProvider implements Provider backed by a Valkey/Redis-compatible server.
type ValkeyProvider struct {
	cfg ValkeyConfig
}

// ValkeyConfig holds connection parameters for the Valkey instance.
type ValkeyConfig struct {
	Addr         string
	Username     string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxRetries   int
	TLS          bool
}

// NewValkeyProvider creates a Provider using the supplied configuration. It
// pings the target so misconfigured credentials or connectivity fail at boot
// rather than on the first ingestion write.
func NewValkeyProvider(cfg ValkeyConfig) (*ValkeyProvider, error) {
	if cfg.Addr == "" {
		return nil, errors.New("valkey addr is required")
	}

	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 2 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 500 * time.Millisecond
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 500 * time.Millisecond
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}

	provider := &ValkeyProvider{cfg: cfg}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := provider.ping(ctx); err != nil {
		return nil, err
	}

	return provider, nil
}

// Get fetches bytes by key, returning ErrCacheMiss when the key is absent.
func (p *ValkeyProvider) Get(ctx context.Context, key string) ([]byte, error) {
	var payload []byte
	err := p.withConn(ctx, func(vc *valkeyConn) error {
		if err := vc.writeCommand("GET", []byte(key)); err != nil {
			return err
		}

		reply, err := vc.readReply()
		if err != nil {
			return err
		}

		switch reply.typ {
		case replyNil:
			return ErrCacheMiss
		case replyBulkString:
			payload = reply.data
			return nil
		default:
			return fmt.Errorf("unexpected valkey reply type %q for GET", reply.typ)
		}
	})
	return payload, err
}

// Set stores bytes with the provided TTL. A non-positive TTL stores without expiry.
func (p *ValkeyProvider) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return p.withConn(ctx, func(vc *valkeyConn) error {
		args := [][]byte{[]byte(key), value}
		if ttl > 0 {
			ms := strconv.FormatInt(ttl.Milliseconds(), 10)
			args = append(args, []byte("PX"), []byte(ms))
		}

		if err := vc.writeCommand("SET", args...); err != nil {
			return err
		}

		reply, err := vc.readReply()
		if err != nil {
			return err
		}
		if reply.typ != replySimpleString || string(reply.data) != "OK" {
			return fmt.Errorf("unexpected SET response: %s", reply.data)
		}
		return nil
	})
}

// Del removes a key.
func (p *ValkeyProvider) Del(ctx context.Context, key string) error {
	return p.withConn(ctx, func(vc *valkeyConn) error {
		if err := vc.writeCommand("DEL", []byte(key)); err != nil {
			return err
		}
		_, err := vc.readReply()
		return err
	})
}

// Close closes the provider (connections are per-call, so this is a no-op).
func (p *ValkeyProvider) Close() error { return nil }

func (p *ValkeyProvider) ping(ctx context.Context) error {
	return p.withConn(ctx, func(vc *valkeyConn) error {
		if err := vc.writeCommand("PING"); err != nil {
			return err
		}
		reply, err := vc.readReply()
		if err != nil {
			return err
		}
		if reply.typ != replySimpleString || string(reply.data) != "PONG" {
			return fmt.Errorf("unexpected PING response: %s", reply.data)
		}
		return nil
	})
}

func (p *ValkeyProvider) withConn(ctx context.Context, fn func(*valkeyConn) error) error {
	var lastErr error
	for attempt := 0; attempt < p.cfg.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := p.attempt(ctx, fn)
		if err == nil {
			return nil
		}
		lastErr = err
		if !shouldRetry(err) || attempt == p.cfg.MaxRetries-1 {
			return err
		}
		time.Sleep(backoff(attempt))
	}
	return lastErr
}

func (p *ValkeyProvider) attempt(ctx context.Context, fn func(*valkeyConn) error) error {
	vc, err := p.dial(ctx)
	if err != nil {
		return err
	}
	defer vc.close()

	if err := p.bootstrap(vc); err != nil {
		return err
	}
	return fn(vc)
}

func (p *ValkeyProvider) dial(ctx context.Context) (*valkeyConn, error) {
	dialer := net.Dialer{Timeout: p.cfg.DialTimeout}
	var (
		conn net.Conn
		err  error
	)
	if p.cfg.TLS {
		host := p.cfg.Addr
		if h, _, splitErr := net.SplitHostPort(p.cfg.Addr); splitErr == nil {
			host = h
		}
		tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12, ServerName: host}
		conn, err = tls.DialWithDialer(&dialer, "tcp", p.cfg.Addr, tlsCfg)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", p.cfg.Addr)
	}
	if err != nil {
		return nil, err
	}
	return &valkeyConn{
		conn:   conn,
		reader: bufio.NewReader(conn),
		writer: bufio.NewWriter(conn),
		cfg:    p.cfg,
	}, nil
}

func (p *ValkeyProvider) bootstrap(vc *valkeyConn) error {
	if p.cfg.Password != "" {
		args := make([][]byte, 0, 2)
		if p.cfg.Username != "" {
			args = append(args, []byte(p.cfg.Username))
		}
		args = append(args, []byte(p.cfg.Password))
		if err := vc.writeCommand("AUTH", args...); err != nil {
			return err
		}
		if err := vc.expectOK("auth"); err != nil {
			return err
		}
	}
	if p.cfg.DB > 0 {
		if err := vc.writeCommand("SELECT", []byte(strconv.Itoa(p.cfg.DB))); err != nil {
			return err
		}
		if err := vc.expectOK("select"); err != nil {
			return err
		}
	}
	return nil
}

// replyType enumerates the subset of RESP types the provider understands.
type replyType string

const (
	replySimpleString replyType = "+"
	replyBulkString   replyType = "$"
	replyInteger      replyType = ":"
	replyNil          replyType = "_"
)

type respReply struct {
	typ  replyType
	data []byte
}

// valkeyConn wraps a network connection with RESP helpers.
type valkeyConn struct {
	conn   net.Conn
	reader *bufio.Reader
	writer *bufio.Writer
	cfg    ValkeyConfig
}

func (vc *valkeyConn) close() {
	_ = vc.conn.Close()
}

func (vc *valkeyConn) writeCommand(command string, args ...[]byte) error {
	if err := vc.conn.SetWriteDeadline(time.Now().Add(vc.cfg.WriteTimeout)); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(vc.writer, "*%d\r\n", len(args)+1); err != nil {
		return err
	}
	parts := append([][]byte{[]byte(command)}, args...)
	for _, part := range parts {
		if _, err := fmt.Fprintf(vc.writer, "$%d\r\n", len(part)); err != nil {
			return err
		}
		if _, err := vc.writer.Write(part); err != nil {
			return err
		}
		if _, err := vc.writer.WriteString("\r\n"); err != nil {
			return err
		}
	}
	return vc.writer.Flush()
}

func (vc *valkeyConn) expectOK(op string) error {
	reply, err := vc.readReply()
	if err != nil {
		return err
	}
	if reply.typ != replySimpleString || !strings.EqualFold(string(reply.data), "OK") {
		return fmt.Errorf("%s failed: %s", op, reply.data)
	}
	return nil
}

func (vc *valkeyConn) readReply() (respReply, error) {
	if err := vc.conn.SetReadDeadline(time.Now().Add(vc.cfg.ReadTimeout)); err != nil {
		return respReply{}, err
	}
	prefix, err := vc.reader.ReadByte()
	if err != nil {
		return respReply{}, err
	}
	switch prefix {
	case '+':
		line, err := vc.readLine()
		return respReply{typ: replySimpleString, data: line}, err
	case '-':
		line, err := vc.readLine()
		if err != nil {
			return respReply{}, err
		}
		return respReply{}, errors.New(string(line))
	case ':':
		line, err := vc.readLine()
		return respReply{typ: replyInteger, data: line}, err
	case '$':
		line, err := vc.readLine()
		if err != nil {
			return respReply{}, err
		}
		size, err := strconv.Atoi(string(line))
		if err != nil {
			return respReply{}, err
		}
		if size == -1 {
			return respReply{typ: replyNil}, nil
		}
		buf := make([]byte, size+2)
		if _, err := io.ReadFull(vc.reader, buf); err != nil {
			return respReply{}, err
		}
		if buf[size] != '\r' || buf[size+1] != '\n' {
			return respReply{}, fmt.Errorf("invalid bulk string termination")
		}
		return respReply{typ: replyBulkString, data: buf[:size]}, nil
	default:
		return respReply{}, fmt.Errorf("unexpected RESP prefix %q", prefix)
	}
}

func (vc *valkeyConn) readLine() ([]byte, error) {
	line, err := vc.reader.ReadString('\n')
	if err != nil {
		return nil, err
	}
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	return []byte(line), nil
}

func backoff(attempt int) time.Duration {
	base := 25 * time.Millisecond
	return time.Duration(1<<attempt) * base
}

func shouldRetry(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
