//go:build unix

package udpsrv

import (
	"context"
	"net"
	"testing"
	"time"
)

func BenchmarkEchoSpeed64(b *testing.B) {
	speedclient(b, 64)
}

func BenchmarkEchoSpeed1K(b *testing.B) {
	speedclient(b, 1024)
}

func BenchmarkEchoSpeed4K(b *testing.B) {
	speedclient(b, MaxMessageSize)
}

func speedclient(b *testing.B, nbytes int) {
	ep, err := Bind(0)
	if err != nil {
		b.Fatal(err)
	}
	defer ep.Close()
	ep.SetReadBuffer(4 * 1024 * 1024)
	ep.SetWriteBuffer(4 * 1024 * 1024)
	mux, err := NewPoller(ep)
	if err != nil {
		b.Fatal(err)
	}
	defer mux.Close()

	srv := NewServer(ep, mux, DefaultConfig())
	done := make(chan error, 1)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { done <- srv.Serve(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	cli, err := net.DialUDP("udp", nil, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: ep.LocalAddr().(*net.UDPAddr).Port})
	if err != nil {
		b.Fatal(err)
	}
	defer cli.Close()

	if err := echo_tester(cli, nbytes, b.N); err != nil {
		b.Fatal(err)
	}
	b.SetBytes(int64(nbytes))
	b.ReportAllocs()
}

func echo_tester(cli net.Conn, msglen, msgcount int) error {
	buf := make([]byte, msglen)
	for i := 0; i < msgcount; i++ {
		if _, err := cli.Write(buf); err != nil {
			return err
		}
		cli.SetReadDeadline(time.Now().Add(time.Second))
		if _, err := cli.Read(buf); err != nil {
			return err
		}
	}
	return nil
}
