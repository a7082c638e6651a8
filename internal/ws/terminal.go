// Package ws exposes the sandbox shell over a WebSocket connection: process
// output flows out as binary frames, keystrokes flow in, and resize control
// messages arrive as JSON text frames.
package ws

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/sandpad/sandpad/internal/log"
	"github.com/sandpad/sandpad/internal/session"
	"github.com/sandpad/sandpad/internal/shell"
	"github.com/sandpad/sandpad/internal/termview"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The editor frontend runs on its own origin during development.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// controlMsg is the JSON control frame sent by the terminal frontend.
type controlMsg struct {
	Type string `json:"type"`
	Cols int    `json:"cols"`
	Rows int    `json:"rows"`
}

// TerminalHandlerConfig is the configuration for the terminal handler.
type TerminalHandlerConfig struct {
	// Sessions provides the runtime session the shell attaches to.
	Sessions *session.Manager
	// Bridge is the configuration for the per-connection shell bridge.
	Bridge shell.BridgeConfig
	Logger log.Logger
}

func (c *TerminalHandlerConfig) defaults() error {
	if c.Sessions == nil {
		return fmt.Errorf("session manager is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "ws.TerminalHandler"})
	return nil
}

// TerminalHandler upgrades HTTP connections and bridges them to an
// interactive shell inside the current runtime session. Each connection gets
// its own terminal surface and shell process.
type TerminalHandler struct {
	sessions  *session.Manager
	bridgeCfg shell.BridgeConfig
	logger    log.Logger
}

// NewTerminalHandler creates a new terminal handler.
func NewTerminalHandler(cfg TerminalHandlerConfig) (*TerminalHandler, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	bridgeCfg := cfg.Bridge
	bridgeCfg.Logger = cfg.Logger

	return &TerminalHandler{
		sessions:  cfg.Sessions,
		bridgeCfg: bridgeCfg,
		logger:    cfg.Logger,
	}, nil
}

func (h *TerminalHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Errorf("Could not upgrade connection: %s", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	logger := h.logger.WithValues(log.Kv{"remote": conn.RemoteAddr().String()})

	sess, err := h.sessions.Acquire(ctx)
	if err != nil {
		logger.Errorf("Could not acquire session: %s", err)
		_ = conn.WriteMessage(websocket.TextMessage, []byte("Error: could not acquire session: "+err.Error()+"\r\n"))
		return
	}

	view := termview.NewBuffer(0, 0)

	// Gorilla connections allow a single concurrent writer.
	var writeMu sync.Mutex
	view.SetWriteHook(func(p []byte) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
			logger.Debugf("Could not write to connection: %s", err)
		}
	})

	bridge, err := shell.NewBridge(h.bridgeCfg)
	if err != nil {
		logger.Errorf("Could not create shell bridge: %s", err)
		return
	}
	if err := bridge.Attach(ctx, view, sess); err != nil {
		logger.Errorf("Could not attach shell: %s", err)
		return
	}
	defer bridge.Detach()

	logger.Infof("Terminal connected")
	defer logger.Infof("Terminal disconnected")

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debugf("Connection closed: %s", err)
			}
			return
		}

		switch msgType {
		case websocket.TextMessage:
			var msg controlMsg
			if err := json.Unmarshal(data, &msg); err == nil && msg.Type == "resize" {
				view.SendResize(msg.Cols, msg.Rows)
				continue
			}
			view.SendData(data)
		case websocket.BinaryMessage:
			view.SendData(data)
		}
	}
}
