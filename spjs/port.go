package spjs

import (
	"bytes"
	"fmt"
	"io"
	"sync"
)

// Port is one serial port on the server. Bytes the server reports for the
// port are readable in order; writes are sent with "sendjson".
type Port struct {
	c    *Client
	name string

	mx     sync.Mutex
	cond   *sync.Cond
	buf    bytes.Buffer
	closed bool
}

var _ io.ReadWriteCloser = (*Port)(nil)

// Open asks the server to open name at baud and routes its data to the
// returned Port. Only one Port per name may be open.
func (c *Client) Open(name string, baud int) (*Port, error) {
	p := &Port{c: c, name: name}
	p.cond = sync.NewCond(&p.mx)

	c.mx.Lock()
	if _, ok := c.ports[name]; ok {
		c.mx.Unlock()
		return nil, fmt.Errorf("spjs: port %s already open", name)
	}
	c.ports[name] = p
	c.mx.Unlock()

	err := c.WriteString(fmt.Sprintf("open %s %d default", name, baud))
	if err != nil {
		c.remove(p)
		return nil, err
	}
	return p, nil
}

func (c *Client) remove(p *Port) {
	c.mx.Lock()
	if c.ports[p.name] == p {
		delete(c.ports, p.name)
	}
	c.mx.Unlock()
	p.shutdown()
}

func (p *Port) Name() string { return p.name }

func (p *Port) deliver(data string) {
	p.mx.Lock()
	p.buf.WriteString(data)
	p.mx.Unlock()
	p.cond.Broadcast()
}

func (p *Port) shutdown() {
	p.mx.Lock()
	p.closed = true
	p.mx.Unlock()
	p.cond.Broadcast()
}

// Read blocks until data arrives. It returns io.EOF once the port is closed
// and drained.
func (p *Port) Read(b []byte) (int, error) {
	p.mx.Lock()
	defer p.mx.Unlock()
	for p.buf.Len() == 0 && !p.closed {
		p.cond.Wait()
	}
	if p.buf.Len() == 0 {
		return 0, io.EOF
	}
	return p.buf.Read(b)
}

func (p *Port) Write(b []byte) (int, error) {
	err := p.c.SendJSON(JSON{
		Port: p.name,
		Data: []Data{{Data: string(b), ID: nextID()}},
	})
	if err != nil {
		return 0, err
	}
	return len(b), nil
}

// Close asks the server to close the port and ends reads.
func (p *Port) Close() error {
	p.c.remove(p)
	return p.c.WriteString("close " + p.name)
}
