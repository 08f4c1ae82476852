package events

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"bomberstudent/internal/lobby"
	"bomberstudent/pkg/logger"
)

type published struct {
	subject string
	payload []byte
}

// fakeNATS speaks enough of the NATS text protocol to accept one publishing client
func fakeNATS(t *testing.T) (string, <-chan published) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })

	msgs := make(chan published, 16)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		port := ln.Addr().(*net.TCPAddr).Port
		fmt.Fprintf(conn, "INFO {\"server_id\":\"fake\",\"version\":\"2.10.0\",\"proto\":1,\"host\":\"127.0.0.1\",\"port\":%d,\"max_payload\":1048576}\r\n", port)

		r := bufio.NewReader(conn)
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			fields := strings.Fields(line)
			if len(fields) == 0 {
				continue
			}
			switch fields[0] {
			case "PING":
				io.WriteString(conn, "PONG\r\n")
			case "PUB":
				n, _ := strconv.Atoi(fields[len(fields)-1])
				buf := make([]byte, n+2)
				if _, err := io.ReadFull(r, buf); err != nil {
					return
				}
				msgs <- published{subject: fields[1], payload: buf[:n]}
			}
		}
	}()
	return "nats://" + ln.Addr().String(), msgs
}

func TestPublishGameCreated(t *testing.T) {
	url, msgs := fakeNATS(t)

	p, err := Connect(url, "", logger.NewNop())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer p.Close()

	want := lobby.Game{ID: 3, Name: "duel", MapID: 1, NbPlayers: 1}
	p.GameCreated(want)

	select {
	case m := <-msgs:
		if m.subject != DefaultSubject {
			t.Fatalf("subject = %q", m.subject)
		}
		var got lobby.Game
		if err := json.Unmarshal(m.payload, &got); err != nil || got != want {
			t.Fatalf("payload %s decoded to %+v (%v)", m.payload, got, err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no message published")
	}
}

func TestConnectFailure(t *testing.T) {
	ln, _ := net.Listen("tcp", "127.0.0.1:0")
	addr := ln.Addr().String()
	ln.Close()

	if _, err := Connect("nats://"+addr, "", logger.NewNop()); err == nil {
		t.Fatal("expected connection error")
	}
}

func TestNilPublisherIsNoop(t *testing.T) {
	var p *Publisher
	p.GameCreated(lobby.Game{ID: 1})
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
