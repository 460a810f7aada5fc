package app

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Aneesh-Raskar/vemeego/internal/config"
)

// PromptInteractive asks for the settings a fresh peer directory needs. An
// invalid result falls back to cfg unchanged.
func PromptInteractive(r io.Reader, w io.Writer, peerDir, cfgPath string, cfg config.Config) config.Config {
	in := bufio.NewReader(r)

	fmt.Fprintln(w, "────────────────────────────────────────")
	fmt.Fprintln(w, "vemeego setup")
	fmt.Fprintf(w, " Peer folder : %s\n", peerDir)
	fmt.Fprintf(w, " Config file : %s\n", cfgPath)
	fmt.Fprintln(w, "────────────────────────────────────────")
	fmt.Fprintln(w)

	next := cfg
	next.Identity.UserID = askString(in, w, "User id", next.Identity.UserID)
	next.Identity.DisplayName = askString(in, w, "Display name", next.Identity.DisplayName)
	next.Feed.URL = askString(in, w, "Feed URL", next.Feed.URL)
	next.Media.SignalURL = askString(in, w, "SFU signaling URL (empty=chat only)", next.Media.SignalURL)
	next.P2P.ListenPort = askInt(in, w, "Listen port (0=random)", next.P2P.ListenPort)
	next.P2P.MDNS = askBool(in, w, "Discover peers on the LAN", next.P2P.MDNS)

	if err := next.Validate(); err != nil {
		fmt.Fprintf(w, "Invalid config: %v\nKeeping previous values.\n", err)
		return cfg
	}
	return next
}

func askString(in *bufio.Reader, w io.Writer, label, def string) string {
	fmt.Fprintf(w, "%s [%s]: ", label, def)
	s, _ := in.ReadString('\n')
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	return s
}

func askInt(in *bufio.Reader, w io.Writer, label string, def int) int {
	for {
		fmt.Fprintf(w, "%s [%d]: ", label, def)
		s, err := in.ReadString('\n')
		s = strings.TrimSpace(s)
		if s == "" {
			return def
		}
		if v, err := strconv.Atoi(s); err == nil {
			return v
		}
		if err != nil {
			return def
		}
		fmt.Fprintln(w, "Please enter a number.")
	}
}

func askBool(in *bufio.Reader, w io.Writer, label string, def bool) bool {
	defStr := "n"
	if def {
		defStr = "y"
	}
	for {
		fmt.Fprintf(w, "%s [y/n] (default=%s): ", label, defStr)
		s, err := in.ReadString('\n')
		s = strings.TrimSpace(strings.ToLower(s))
		if s == "" {
			return def
		}
		switch s {
		case "y", "yes", "true", "1":
			return true
		case "n", "no", "false", "0":
			return false
		}
		if err != nil {
			return def
		}
		fmt.Fprintln(w, "Please enter y or n.")
	}
}
