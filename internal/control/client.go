package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/inbox-voice-lab/internal/logging"
)

// Client calls a running assistant's control tools.
type Client struct {
	client *sdk.Client

	mu              sync.Mutex
	session         *sdk.ClientSession
	keepaliveCancel context.CancelFunc
}

func NewClient(name, version string) *Client {
	return &Client{client: sdk.NewClient(&sdk.Implementation{Name: name, Version: version}, nil)}
}

// wsURL turns an address, http URL or ws URL into the /mcp/ws endpoint.
func wsURL(raw string) (string, error) {
	if !strings.Contains(raw, "://") {
		raw = "ws://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/mcp/ws"
	}
	return u.String(), nil
}

// Connect dials the control websocket and opens an MCP session.
func (c *Client) Connect(ctx context.Context, addr string) error {
	target, err := wsURL(addr)
	if err != nil {
		return err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", target, err)
	}
	sess, err := c.client.Connect(ctx, newWebSocketTransport(conn), nil)
	if err != nil {
		_ = conn.Close()
		return err
	}

	kaCtx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	if c.keepaliveCancel != nil {
		c.keepaliveCancel()
	}
	c.session = sess
	c.keepaliveCancel = cancel
	c.mu.Unlock()
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-kaCtx.Done():
				return
			case <-ticker.C:
				_ = sess.Ping(kaCtx, nil)
			}
		}
	}()
	logging.Debugw("control: client connected", "url", target)
	return nil
}

// Call invokes a tool and returns its text output. A tool-reported failure
// is returned as an error.
func (c *Client) Call(ctx context.Context, tool string, args map[string]any) (string, error) {
	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()
	if sess == nil {
		return "", errors.New("control client not connected")
	}
	if args == nil {
		args = map[string]any{}
	}
	res, err := sess.CallTool(ctx, &sdk.CallToolParams{Name: tool, Arguments: args})
	if err != nil {
		return "", err
	}
	var parts []string
	for _, content := range res.Content {
		if t, ok := content.(*sdk.TextContent); ok {
			parts = append(parts, t.Text)
		}
	}
	text := strings.Join(parts, "\n")
	if res.IsError {
		return "", fmt.Errorf("%s: %s", tool, text)
	}
	return text, nil
}

// Status calls the status tool and decodes its result.
func (c *Client) Status(ctx context.Context) (*StatusResult, error) {
	text, err := c.Call(ctx, ToolStatus, nil)
	if err != nil {
		return nil, err
	}
	var st StatusResult
	if err := json.Unmarshal([]byte(text), &st); err != nil {
		return nil, fmt.Errorf("decoding status: %w", err)
	}
	return &st, nil
}

// SendVoiceCommand runs command through the assistant's controller.
func (c *Client) SendVoiceCommand(ctx context.Context, command string) (*OutcomeResult, error) {
	text, err := c.Call(ctx, ToolSendVoiceCommand, map[string]any{"command": command})
	if err != nil {
		return nil, err
	}
	var out OutcomeResult
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, fmt.Errorf("decoding outcome: %w", err)
	}
	return &out, nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.keepaliveCancel != nil {
		c.keepaliveCancel()
		c.keepaliveCancel = nil
	}
	if c.session == nil {
		return nil
	}
	err := c.session.Close()
	c.session = nil
	return err
}
