package link

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net"
	"testing"
	"time"

	"go.uber.org/goleak"
	"go.viam.com/test"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func pipe(t *testing.T, receiveTimeout time.Duration) (*Conn, net.Conn) {
	t.Helper()
	ours, theirs := net.Pipe()
	t.Cleanup(func() {
		ours.Close()
		theirs.Close()
	})
	return NewConn(ours, receiveTimeout), theirs
}

func write(t *testing.T, c net.Conn, data string) {
	t.Helper()
	go func() {
		c.Write([]byte(data))
	}()
}

func TestReadFrame(t *testing.T) {
	conn, peer := pipe(t, 0)

	write(t, peer, "{\"id\":1}\n\n  \r\n{\"id\":2}\r\n")
	frame, err := conn.ReadFrame()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(frame), test.ShouldEqual, `{"id":1}`)
	frame, err = conn.ReadFrame()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(frame), test.ShouldEqual, `{"id":2}`)

	peer.Close()
	_, err = conn.ReadFrame()
	test.That(t, err, test.ShouldEqual, io.EOF)
}

func TestReadFrameTimeoutKeepsPartial(t *testing.T) {
	conn, peer := pipe(t, 50*time.Millisecond)

	write(t, peer, `{"id":3,`)
	_, err := conn.ReadFrame()
	test.That(t, err, test.ShouldEqual, ErrReceiveTimeout)

	_, err = conn.ReadFrame()
	test.That(t, err, test.ShouldEqual, ErrReceiveTimeout)

	write(t, peer, "\"command\":\"PING\"}\n")
	frame, err := conn.ReadFrame()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(frame), test.ShouldEqual, `{"id":3,"command":"PING"}`)
}

func TestReadFrameTooLarge(t *testing.T) {
	conn, peer := pipe(t, time.Second)
	big := bytes.Repeat([]byte("a"), MaxFrameBytes+10)
	go func() {
		peer.Write(append(big, '\n'))
	}()
	_, err := conn.ReadFrame()
	test.That(t, err, test.ShouldEqual, ErrFrameTooLarge)
	peer.Close()
}

func TestWriteFrame(t *testing.T) {
	conn, peer := pipe(t, 0)
	reader := bufio.NewReader(peer)

	go func() {
		conn.WriteFrame([]byte(`{"id":1}`))
		conn.WriteFrame([]byte("{\"id\":2}\n"))
	}()
	line, err := reader.ReadString('\n')
	test.That(t, err, test.ShouldBeNil)
	test.That(t, line, test.ShouldEqual, "{\"id\":1}\n")
	line, err = reader.ReadString('\n')
	test.That(t, err, test.ShouldBeNil)
	test.That(t, line, test.ShouldEqual, "{\"id\":2}\n")

	test.That(t, conn.Close(), test.ShouldBeNil)
	test.That(t, conn.WriteFrame([]byte("x")), test.ShouldNotBeNil)
}

func TestDial(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	test.That(t, err, test.ShouldBeNil)
	defer listener.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := listener.Accept()
		if err == nil {
			accepted <- c
		}
		close(accepted)
	}()

	conn, err := Dial(context.Background(), listener.Addr().String(), time.Second, time.Second)
	test.That(t, err, test.ShouldBeNil)
	defer conn.Close()

	peer := <-accepted
	test.That(t, peer, test.ShouldNotBeNil)
	defer peer.Close()
	test.That(t, conn.RemoteAddr().String(), test.ShouldEqual, listener.Addr().String())

	test.That(t, conn.WriteFrame([]byte("HOVERBOT")), test.ShouldBeNil)
	line, err := bufio.NewReader(peer).ReadString('\n')
	test.That(t, err, test.ShouldBeNil)
	test.That(t, line, test.ShouldEqual, "HOVERBOT\n")

	_, err = peer.Write([]byte("ok\n"))
	test.That(t, err, test.ShouldBeNil)
	frame, err := conn.ReadFrame()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(frame), test.ShouldEqual, "ok")
}

func TestDialRefused(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	test.That(t, err, test.ShouldBeNil)
	addr := listener.Addr().String()
	listener.Close()

	_, err = Dial(context.Background(), addr, time.Second, time.Second)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "connecting to "+addr)
}

func TestDatagram(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	test.That(t, err, test.ShouldBeNil)
	defer pc.Close()

	d, err := DialDatagram(context.Background(), pc.LocalAddr().String())
	test.That(t, err, test.ShouldBeNil)
	defer d.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	test.That(t, d.Send(ctx, []byte(`{"type":"proximity"}`)), test.ShouldBeNil)

	test.That(t, pc.SetReadDeadline(time.Now().Add(5*time.Second)), test.ShouldBeNil)
	buf := make([]byte, 1024)
	n, _, err := pc.ReadFrom(buf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(buf[:n]), test.ShouldEqual, `{"type":"proximity"}`)

	cancel()
	test.That(t, d.Send(ctx, []byte("late")), test.ShouldEqual, context.Canceled)
}
