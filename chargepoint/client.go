package chargepoint

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"evcp/internal"
	"evcp/internal/config"
	"evcp/utility"
	"fmt"
	"github.com/gorilla/websocket"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	writeWait     = 10 * time.Second
	handshakeWait = 15 * time.Second
)

// Client websocket transport towards the central system
type Client struct {
	url               string
	subProtocol       string
	user              string
	password          string
	dialer            *websocket.Dialer
	logger            internal.LogHandler
	mutex             sync.Mutex
	writeMutex        sync.Mutex
	conn              *websocket.Conn
	messageHandler    func(data []byte)
	disconnectHandler func(err error)
}

func NewClient(conf *config.Config, logger internal.LogHandler) *Client {
	url := strings.TrimSuffix(conf.CentralSystem.Url, "/")
	if !strings.HasSuffix(url, "/"+conf.ChargePoint.Id) {
		url = url + "/" + conf.ChargePoint.Id
	}
	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshakeWait,
		Subprotocols:     []string{conf.CentralSystem.SubProtocol},
	}
	if conf.CentralSystem.SkipVerify {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &Client{
		url:         url,
		subProtocol: conf.CentralSystem.SubProtocol,
		user:        conf.CentralSystem.User,
		password:    conf.CentralSystem.Password,
		dialer:      dialer,
		logger:      logger,
	}
}

func (c *Client) SetMessageHandler(handler func(data []byte)) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.messageHandler = handler
}

func (c *Client) SetDisconnectHandler(handler func(err error)) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.disconnectHandler = handler
}

func (c *Client) IsConnected() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.conn != nil
}

func (c *Client) Connect(ctx context.Context) error {
	if c.IsConnected() {
		return nil
	}
	header := http.Header{}
	if c.user != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(c.user + ":" + c.password))
		header.Set("Authorization", "Basic "+credentials)
	}
	c.logger.Debug(fmt.Sprintf("connecting to %s", c.url))
	conn, response, err := c.dialer.DialContext(ctx, c.url, header)
	if err != nil {
		if response != nil {
			return fmt.Errorf("dial %s: %w (http status %d)", c.url, err, response.StatusCode)
		}
		return fmt.Errorf("dial %s: %w", c.url, err)
	}
	if c.subProtocol != "" && conn.Subprotocol() != c.subProtocol {
		_ = conn.Close()
		return utility.Errf("central system did not accept sub protocol %s", c.subProtocol)
	}
	c.mutex.Lock()
	c.conn = conn
	c.mutex.Unlock()
	c.logger.Debug(fmt.Sprintf("connected to %s", c.url))

	go c.messageReader(conn)
	return nil
}

func (c *Client) messageReader(conn *websocket.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("central system closed the session")
			} else {
				c.logger.Warn(fmt.Sprintf("reading from central system: %s", err))
			}
			c.dropConnection(conn, err)
			return
		}
		c.logger.RawDataEvent("IN", string(message))
		c.mutex.Lock()
		handler := c.messageHandler
		c.mutex.Unlock()
		if handler != nil {
			handler(message)
		}
	}
}

// dropConnection forgets conn if it is still the current one and reports the loss
func (c *Client) dropConnection(conn *websocket.Conn, reason error) {
	c.mutex.Lock()
	current := c.conn == conn
	if current {
		c.conn = nil
	}
	handler := c.disconnectHandler
	c.mutex.Unlock()
	_ = conn.Close()
	if current && handler != nil {
		handler(reason)
	}
}

func (c *Client) Send(ctx context.Context, data []byte) error {
	c.mutex.Lock()
	conn := c.conn
	c.mutex.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	deadline, ok := ctx.Deadline()
	if !ok || time.Until(deadline) > writeWait {
		deadline = time.Now().Add(writeWait)
	}
	c.writeMutex.Lock()
	defer c.writeMutex.Unlock()
	_ = conn.SetWriteDeadline(deadline)
	c.logger.RawDataEvent("OUT", string(data))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		go c.dropConnection(conn, err)
		return err
	}
	return nil
}

func (c *Client) Close() error {
	c.mutex.Lock()
	conn := c.conn
	c.conn = nil
	c.mutex.Unlock()
	if conn == nil {
		return nil
	}
	c.writeMutex.Lock()
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.writeMutex.Unlock()
	return conn.Close()
}
