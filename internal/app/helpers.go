package app

import (
	"fmt"
	"io"
	"net"
	"time"
)

func WaitTCP(addr string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		c, err := net.DialTimeout("tcp", addr, 200*time.Millisecond)
		if err == nil {
			_ = c.Close()
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("timeout waiting for %s", addr)
}

// Banner prints the scope of the process about to start.
func Banner(w io.Writer, mode, peerDir, cfgPath string) {
	fmt.Fprintln(w, "────────────────────────────────────────")
	fmt.Fprintf(w, "vemeego %s\n", mode)
	fmt.Fprintf(w, " Peer folder : %s\n", peerDir)
	fmt.Fprintf(w, " Config file : %s\n", cfgPath)
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, " This process represents ONE peer.")
	fmt.Fprintln(w, " Different folder/config = different peer.")
	fmt.Fprintln(w, "────────────────────────────────────────")
}
