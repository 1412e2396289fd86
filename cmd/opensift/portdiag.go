package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// listeningPIDs finds processes listening on the given TCP port by matching
// listening-socket inodes from /proc/net/tcp{,6} against /proc/*/fd. Best
// effort: an empty result means nothing was discoverable, not that the port
// is free.
func listeningPIDs(port int) []int {
	inodes := map[uint64]struct{}{}
	for _, path := range []string{"/proc/net/tcp", "/proc/net/tcp6"} {
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		for _, ino := range parseTCPListeners(f, port) {
			inodes[ino] = struct{}{}
		}
		f.Close()
	}
	if len(inodes) == 0 {
		return nil
	}
	return pidsForSocketInodes(inodes)
}

// parseTCPListeners scans one /proc/net/tcp table and returns the socket
// inodes of LISTEN entries bound to port. The local address column is
// hex-encoded "addr:port"; the state column value for LISTEN is 0A.
func parseTCPListeners(r io.Reader, port int) []uint64 {
	var inodes []uint64
	sc := bufio.NewScanner(r)
	sc.Scan() // header row
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 10 {
			continue
		}
		local := fields[1]
		sep := strings.LastIndex(local, ":")
		if sep < 0 {
			continue
		}
		p, err := strconv.ParseInt(local[sep+1:], 16, 32)
		if err != nil || int(p) != port {
			continue
		}
		if fields[3] != "0A" {
			continue
		}
		if ino, err := strconv.ParseUint(fields[9], 10, 64); err == nil {
			inodes = append(inodes, ino)
		}
	}
	return inodes
}

// pidsForSocketInodes walks /proc/<pid>/fd looking for socket links whose
// inode is in the set. Unreadable processes are skipped silently.
func pidsForSocketInodes(inodes map[uint64]struct{}) []int {
	procs, err := os.ReadDir("/proc")
	if err != nil {
		return nil
	}
	var pids []int
	for _, proc := range procs {
		pid, err := strconv.Atoi(proc.Name())
		if err != nil {
			continue
		}
		fdDir := filepath.Join("/proc", proc.Name(), "fd")
		fds, err := os.ReadDir(fdDir)
		if err != nil {
			continue
		}
		for _, fd := range fds {
			link, err := os.Readlink(filepath.Join(fdDir, fd.Name()))
			if err != nil {
				continue
			}
			var ino uint64
			if n, _ := fmt.Sscanf(link, "socket:[%d]", &ino); n != 1 {
				continue
			}
			if _, ok := inodes[ino]; ok {
				pids = append(pids, pid)
				break
			}
		}
	}
	return pids
}
