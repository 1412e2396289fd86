package main

import (
	"strings"
	"testing"
)

// Trimmed /proc/net/tcp with one listener on 8000 (0x1F40), one established
// connection on the same port, and a listener on another port.
const tcpTable = `  sl  local_address rem_address   st tx_queue rx_queue tr tm->when retrnsmt   uid  timeout inode
   0: 00000000:1F40 00000000:0000 0A 00000000:00000000 00:00000000 00000000  1000        0 12345 1 0000000000000000 100 0 0 10 0
   1: 0100007F:1F40 0100007F:D431 01 00000000:00000000 00:00000000 00000000  1000        0 22222 1 0000000000000000 100 0 0 10 0
   2: 00000000:0050 00000000:0000 0A 00000000:00000000 00:00000000 00000000     0        0 33333 1 0000000000000000 100 0 0 10 0
`

const tcp6Table = `  sl  local_address                         remote_address                        st tx_queue rx_queue tr tm->when retrnsmt   uid  timeout inode
   0: 00000000000000000000000000000000:1F40 00000000000000000000000000000000:0000 0A 00000000:00000000 00:00000000 00000000  1000        0 44444 1 0000000000000000 100 0 0 10 0
`

func TestParseTCPListenersMatchesPortAndState(t *testing.T) {
	inodes := parseTCPListeners(strings.NewReader(tcpTable), 8000)
	if len(inodes) != 1 || inodes[0] != 12345 {
		t.Fatalf("inodes = %v, want [12345]", inodes)
	}
}

func TestParseTCPListenersIPv6(t *testing.T) {
	inodes := parseTCPListeners(strings.NewReader(tcp6Table), 8000)
	if len(inodes) != 1 || inodes[0] != 44444 {
		t.Fatalf("inodes = %v, want [44444]", inodes)
	}
}

func TestParseTCPListenersOtherPort(t *testing.T) {
	inodes := parseTCPListeners(strings.NewReader(tcpTable), 80)
	if len(inodes) != 1 || inodes[0] != 33333 {
		t.Fatalf("inodes = %v, want [33333]", inodes)
	}
	if got := parseTCPListeners(strings.NewReader(tcpTable), 9999); len(got) != 0 {
		t.Fatalf("expected no listeners on 9999, got %v", got)
	}
}

func TestParseTCPListenersGarbage(t *testing.T) {
	if got := parseTCPListeners(strings.NewReader("not a proc table\n"), 8000); len(got) != 0 {
		t.Fatalf("expected nothing from garbage input, got %v", got)
	}
}
