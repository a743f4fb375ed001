package ssh

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/imamik/gpurace/internal/util/retry"
)

const (
	defaultPort        = 22
	defaultUser        = "root"
	defaultDialTimeout = 10 * time.Second
	defaultMaxAttempts = 30
	defaultRetryDelay  = 2 * time.Second
	defaultMaxDelay    = 10 * time.Second

	probeCommand = "true"
)

// Config holds SSH client configuration.
type Config struct {
	Host   string
	Port   int
	User   string
	Signer ssh.Signer

	// DialTimeout bounds the TCP connect plus handshake of one attempt.
	DialTimeout time.Duration

	// MaxAttempts bounds connection attempts. sshd usually comes up a few
	// seconds after port 22 starts accepting.
	MaxAttempts int
	RetryDelay  time.Duration

	// HostKeyCallback defaults to accepting any host key; candidates are
	// brand new machines whose keys cannot be known in advance.
	HostKeyCallback ssh.HostKeyCallback
}

// Client runs commands on one remote machine.
type Client struct {
	config Config
}

// NewClient validates cfg and applies defaults.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Host == "" {
		return nil, errors.New("config host cannot be empty")
	}
	if cfg.Signer == nil {
		return nil, errors.New("config signer cannot be nil")
	}
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.User == "" {
		cfg.User = defaultUser
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if cfg.HostKeyCallback == nil {
		cfg.HostKeyCallback = ssh.InsecureIgnoreHostKey() //nolint:gosec // ephemeral machines
	}
	return &Client{config: cfg}, nil
}

// Addr returns host:port.
func (c *Client) Addr() string {
	return net.JoinHostPort(c.config.Host, strconv.Itoa(c.config.Port))
}

// Probe succeeds once the machine runs a trivial command over SSH.
func (c *Client) Probe(ctx context.Context) error {
	_, err := c.Execute(ctx, probeCommand)
	return err
}

// Execute runs command and returns its combined output.
func (c *Client) Execute(ctx context.Context, command string) (string, error) {
	client, err := c.connect(ctx)
	if err != nil {
		return "", err
	}
	defer func() { _ = client.Close() }()

	session, err := client.NewSession()
	if err != nil {
		return "", fmt.Errorf("failed to open session on %s: %w", c.Addr(), err)
	}
	defer func() { _ = session.Close() }()

	stop := context.AfterFunc(ctx, func() { _ = client.Close() })
	defer stop()

	out, err := session.CombinedOutput(command)
	if err != nil {
		if ctx.Err() != nil {
			return string(out), ctx.Err()
		}
		return string(out), fmt.Errorf("command %q failed on %s: %w", command, c.Addr(), err)
	}
	return string(out), nil
}

func (c *Client) connect(ctx context.Context) (*ssh.Client, error) {
	cfg := &ssh.ClientConfig{
		User:            c.config.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(c.config.Signer)},
		HostKeyCallback: c.config.HostKeyCallback,
		Timeout:         c.config.DialTimeout,
	}

	var client *ssh.Client
	err := retry.Do(ctx, func(ctx context.Context) error {
		var dialErr error
		client, dialErr = c.dial(ctx, cfg)
		return dialErr
	},
		retry.WithMaxAttempts(c.config.MaxAttempts),
		retry.WithInitialDelay(c.config.RetryDelay),
		retry.WithMaxDelay(defaultMaxDelay),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", c.Addr(), err)
	}
	return client, nil
}

func (c *Client) dial(ctx context.Context, cfg *ssh.ClientConfig) (*ssh.Client, error) {
	d := net.Dialer{Timeout: c.config.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", c.Addr())
	if err != nil {
		return nil, err
	}

	// the handshake has no context of its own
	_ = conn.SetDeadline(time.Now().Add(c.config.DialTimeout))
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	sconn, chans, reqs, err := ssh.NewClientConn(conn, c.Addr(), cfg)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	_ = conn.SetDeadline(time.Time{})
	return ssh.NewClient(sconn, chans, reqs), nil
}
