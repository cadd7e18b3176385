// Package spjs talks to a Serial Port JSON Server over a websocket so a
// controller attached to another machine can be used like a local port.
package spjs

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mastercactapus/grblhub/logger"
)

// ErrClosed is returned after the client has been closed.
var ErrClosed = errors.New("spjs: closed")

// DefaultRetryInterval is the pause between reconnect attempts.
const DefaultRetryInterval = 3 * time.Second

type Client struct {
	url   string
	log   logger.Logger
	retry time.Duration

	mx          sync.RWMutex
	serialPorts []SerialPort
	ports       map[string]*Port

	outgoing  chan message
	closeCh   chan struct{}
	closeOnce sync.Once
	done      chan struct{}
}

type message struct {
	done    chan struct{}
	payload []byte
}

type DataFrame struct {
	Port string `json:"P"`
	Data string `json:"D"`
}
type CmdStatus struct {
	Cmd        string
	QueueCount int `json:"QCnt"`
	Type       []string
	Data       []string `json:"D"`
	ID         string   `json:"Id"`
}

type ErrorMessage struct {
	Error string
}
type SerialPortList struct {
	SerialPorts []SerialPort
}
type SerialPort struct {
	Name                      string
	Friendly                  string
	SerialNumber              string
	DeviceClass               string
	IsOpen                    bool
	IsPrimary                 bool
	RelatedNames              []string
	Baud                      int
	BufferAlgorithm           string
	AvailableBufferAlgorithms []string
	Ver                       float64
	USBVID                    string
	USBPID                    string
	FeedRateOverride          float64
}

// NewClient connects to the server at url in the background and keeps
// reconnecting until Close.
func NewClient(url string, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	c := &Client{
		url:      url,
		log:      log.With("spjs", url),
		retry:    DefaultRetryInterval,
		ports:    make(map[string]*Port),
		outgoing: make(chan message, 1000),
		closeCh:  make(chan struct{}),
		done:     make(chan struct{}),
	}

	go c.loop()

	return c
}

// SerialPorts returns the port list from the server's last "list" reply.
func (c *Client) SerialPorts() []SerialPort {
	c.mx.RLock()
	defer c.mx.RUnlock()
	return append([]SerialPort(nil), c.serialPorts...)
}

// PortNames returns the names from SerialPorts.
func (c *Client) PortNames() []string {
	ports := c.SerialPorts()
	names := make([]string, len(ports))
	for i, p := range ports {
		names[i] = p.Name
	}
	return names
}

func parseSPJSMessage(data []byte, msg map[string]json.RawMessage) (val interface{}, err error) {
	check := func(fieldName string, v interface{}) bool {
		if msg[fieldName] == nil {
			return false
		}
		val = v
		err = json.Unmarshal(data, val)
		return true
	}
	if check("Error", &ErrorMessage{}) {
		return
	}
	if check("SerialPorts", &SerialPortList{}) {
		return
	}
	if check("Type", &CmdStatus{}) {
		return
	}
	if check("D", &DataFrame{}) {
		return
	}

	return nil, errors.New("unknown message: " + string(data))
}

func (c *Client) handle(val interface{}) {
	switch v := val.(type) {
	case *ErrorMessage:
		c.log.Warn("server error", "err", v.Error)
	case *SerialPortList:
		c.mx.Lock()
		c.serialPorts = v.SerialPorts
		c.mx.Unlock()
	case *DataFrame:
		c.mx.RLock()
		p := c.ports[v.Port]
		c.mx.RUnlock()
		if p == nil {
			c.log.Debug("data for unopened port", "port", v.Port)
			return
		}
		p.deliver(v.Data)
	case *CmdStatus:
		c.log.Debug("command status", "cmd", v.Cmd, "id", v.ID, "type", v.Type)
	}
}

func (c *Client) readLoop(ws *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			c.log.Warn("read", "err", err)
			return
		}
		if !bytes.HasPrefix(data, []byte("{")) {
			// ignore echo messages
			continue
		}
		var msg map[string]json.RawMessage
		err = json.Unmarshal(data, &msg)
		if err != nil {
			c.log.Warn("read", "err", err)
			continue
		}
		val, err := parseSPJSMessage(data, msg)
		if err != nil {
			c.log.Warn("parse", "err", err)
			continue
		}
		c.handle(val)
	}
}

func (c *Client) loop() {
	defer close(c.done)
	var nextUp message

reconnect:
	for {
		c.log.Info("connecting")
		ws, _, err := websocket.DefaultDialer.Dial(c.url, nil)
		if err != nil {
			c.log.Error("connect", "err", err)
			select {
			case <-time.After(c.retry):
				continue
			case <-c.closeCh:
				return
			}
		}
		c.log.Info("connected")
		ch := make(chan struct{})
		go c.readLoop(ws, ch)
		go c.WriteString("list") // refresh list on reconnect

		for {
			if nextUp.done != nil {
				err = ws.WriteMessage(websocket.TextMessage, nextUp.payload)
				if err != nil {
					c.log.Error("send", "err", err)
					ws.Close()
					continue reconnect
				}
				close(nextUp.done)
				nextUp.done = nil
			}

			select {
			case <-ch:
				ws.Close()
				continue reconnect
			case <-c.closeCh:
				ws.Close()
				<-ch
				return
			case nextUp = <-c.outgoing:
			}
		}
	}
}

type JSON struct {
	Port string `json:"P"`
	Data []Data
}
type Data struct {
	Data string `json:"D"`
	ID   string `json:"Id"`
}

var lastID int64

func nextID() string {
	id := atomic.AddInt64(&lastID, 1)
	return "cmd_" + strconv.FormatInt(id, 36)
}

// SendJSON queues a "sendjson" command and waits until it is on the wire.
func (c *Client) SendJSON(v JSON) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("spjs: marshal: %w", err)
	}
	return c.send(append([]byte("sendjson "), data...))
}

// WriteString sends a raw server command and waits until it is on the wire.
func (c *Client) WriteString(data string) error {
	return c.send([]byte(data))
}

func (c *Client) send(payload []byte) error {
	ch := make(chan struct{})
	select {
	case c.outgoing <- message{done: ch, payload: payload}:
	case <-c.closeCh:
		return ErrClosed
	}
	select {
	case <-ch:
		return nil
	case <-c.closeCh:
		return ErrClosed
	}
}

// Close disconnects and closes every open Port.
func (c *Client) Close() error {
	err := ErrClosed
	c.closeOnce.Do(func() {
		close(c.closeCh)
		<-c.done
		err = nil
	})
	if err != nil {
		return err
	}

	c.mx.Lock()
	ports := c.ports
	c.ports = make(map[string]*Port)
	c.mx.Unlock()
	for _, p := range ports {
		p.shutdown()
	}
	return nil
}
