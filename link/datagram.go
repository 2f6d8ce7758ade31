package link

import (
	"context"
	"net"

	"github.com/pkg/errors"
)

// Datagram sends each payload as one UDP datagram to a fixed address.
type Datagram struct {
	conn net.Conn
}

// DialDatagram binds a UDP socket aimed at addr. Nothing is sent until Send.
func DialDatagram(ctx context.Context, addr string) (*Datagram, error) {
	var dialer net.Dialer
	c, err := dialer.DialContext(ctx, "udp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "opening datagram socket to %s", addr)
	}
	return &Datagram{conn: c}, nil
}

// Send writes payload as one datagram, honoring ctx's deadline.
func (d *Datagram) Send(ctx context.Context, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := d.conn.SetWriteDeadline(deadline); err != nil {
			return errors.Wrap(err, "setting write deadline")
		}
	}
	if _, err := d.conn.Write(payload); err != nil {
		return errors.Wrap(err, "sending datagram")
	}
	return nil
}

// Close releases the socket.
func (d *Datagram) Close() error {
	return d.conn.Close()
}
