package main

import (
	"bufio"
	"flag"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	udpsrv "github.com/Nexxado/UDP-Server"
)

var ipaddr = flag.String("c", "127.0.0.1", "server addr")
var port = flag.Int("port", 12345, "port")
var timeout = flag.Duration("timeout", 2*time.Second, "how long to wait for each reply")

func main() {
	flag.Parse()
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	addr := net.JoinHostPort(*ipaddr, strconv.Itoa(*port))
	conn, err := net.Dial("udp", addr)
	if err != nil {
		log.Fatal().Err(err).Str("addr", addr).Msg("dial")
	}
	defer conn.Close()
	log.Info().Str("addr", addr).Msg("client ready, type lines to send")

	buf := make([]byte, udpsrv.MaxMessageSize)
	input := bufio.NewScanner(os.Stdin)
	for input.Scan() {
		line := input.Text()
		if _, err := conn.Write([]byte(line)); err != nil {
			log.Error().Err(err).Msg("send")
			continue
		}
		log.Debug().Str("msg", line).Msg("client snd")

		conn.SetReadDeadline(time.Now().Add(*timeout))
		n, err := conn.Read(buf)
		if err != nil {
			log.Error().Err(err).Msg("recv")
			continue
		}
		os.Stdout.Write(append(buf[:n:n], '\n'))
	}
}
