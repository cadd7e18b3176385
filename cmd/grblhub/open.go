package main

import (
	"github.com/mastercactapus/grblhub/grbl/sim"
	"github.com/mastercactapus/grblhub/spjs"
	"github.com/mastercactapus/grblhub/transport"
)

// opener picks the transport for a port name: the simulator, a port on the
// SPJS server, or a local serial device.
type opener struct {
	sp    *spjs.Client
	baud  int
	board *sim.Board
}

func (o *opener) open(name string) (transport.Transport, error) {
	if name == simPort {
		return o.board.Reopen(), nil
	}
	if o.sp != nil {
		p, err := o.sp.Open(name, o.baud)
		if err != nil {
			return nil, err
		}
		return transport.NewStream(p), nil
	}

	cfg := transport.DefaultConfig(name)
	cfg.Baud = o.baud
	return transport.OpenSerial(cfg)
}

// ports lists the names the opener accepts.
func (o *opener) ports() ([]string, error) {
	var names []string
	if o.sp != nil {
		names = o.sp.PortNames()
	} else {
		var err error
		names, err = transport.Ports()
		if err != nil {
			return nil, err
		}
	}
	return append(names, simPort), nil
}
