// main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/Aneesh-Raskar/vemeego/internal/app"
	"github.com/Aneesh-Raskar/vemeego/internal/config"
	"github.com/Aneesh-Raskar/vemeego/internal/storage"
)

var (
	showHelp = flag.Bool("h", false, "Show help")
	version  = flag.Bool("version", false, "Show version")
	setup    = flag.Bool("setup", false, "Ask for identity and endpoints before starting a peer")
)

// appVersion is set at build time via -ldflags "-X main.appVersion=x.y.z"
var appVersion = "dev"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("vemeego v%s\n", appVersion)
		return
	}
	if *showHelp {
		showUsage()
		return
	}

	args := flag.Args()
	if len(args) < 2 {
		showUsage()
		os.Exit(1)
	}

	command, dir := args[0], args[1]
	switch command {
	case "peer":
		runCLIPeer(dir, "")

	case "join":
		if len(args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: vemeego join <peer-directory> <session>")
			os.Exit(1)
		}
		runCLIPeer(dir, args[2])

	case "feed":
		runCLIFeed(dir)

	case "invite":
		if len(args) < 4 {
			fmt.Fprintln(os.Stderr, "Usage: vemeego invite <peer-directory> <session> <user>")
			os.Exit(1)
		}
		runCLIInvite(dir, args[2], args[3])

	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command '%s'\n", command)
		fmt.Fprintln(os.Stderr)
		showUsage()
		os.Exit(1)
	}
}

// peerDir resolves dir and loads its config, creating a default one when
// missing.
func peerDir(dir string) (string, string, config.Config, bool) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		log.Fatalf("Invalid peer directory: %v", err)
	}
	if err := os.MkdirAll(absDir, 0o755); err != nil {
		log.Fatalf("Create peer directory: %v", err)
	}

	cfgPath := filepath.Join(absDir, config.FileName)
	cfg, created, err := config.Ensure(cfgPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	return absDir, cfgPath, cfg, created
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("\nShutting down gracefully...")
		cancel()
	}()
	return ctx, cancel
}

func runCLIPeer(dir, join string) {
	absDir, cfgPath, cfg, created := peerDir(dir)
	if created || *setup {
		cfg = app.PromptInteractive(os.Stdin, os.Stdout, absDir, cfgPath, cfg)
		if err := config.Save(cfgPath, cfg); err != nil {
			log.Fatalf("Failed to save config: %v", err)
		}
	}
	app.Banner(os.Stdout, "peer", absDir, cfgPath)

	ctx, cancel := signalContext()
	defer cancel()

	if err := app.RunPeer(ctx, app.Options{
		PeerDir: absDir,
		CfgPath: cfgPath,
		Cfg:     cfg,
		Join:    join,
	}); err != nil {
		log.Fatalf("Peer failed: %v", err)
	}
}

func runCLIFeed(dir string) {
	absDir, cfgPath, cfg, _ := peerDir(dir)
	app.Banner(os.Stdout, "feed", absDir, cfgPath)
	fmt.Printf("Feed address:  %s\n\n", cfg.Feed.Addr)

	ctx, cancel := signalContext()
	defer cancel()

	if err := app.RunFeed(ctx, app.Options{
		PeerDir: absDir,
		CfgPath: cfgPath,
		Cfg:     cfg,
	}); err != nil {
		log.Fatalf("Feed failed: %v", err)
	}
}

func runCLIInvite(dir, session, user string) {
	absDir, cfgPath, cfg, _ := peerDir(dir)

	ctx, cancel := signalContext()
	defer cancel()

	inv, err := app.RunInvite(ctx, app.Options{PeerDir: absDir, CfgPath: cfgPath, Cfg: cfg}, session, user)
	if errors.Is(err, storage.ErrNotFound) {
		log.Fatalf("Invite failed: session %s not found", session)
	}
	if err != nil {
		log.Fatalf("Invite failed: %v", err)
	}
	fmt.Printf("Invited %s to %s (invitation %s)\n", inv.ParticipantID, inv.SessionID, inv.ID)
}

func showUsage() {
	fmt.Println("vemeego - peer video meetings")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  vemeego peer <directory>                    Wait for calls and join them")
	fmt.Println("  vemeego join <directory> <session>          Join a session right away")
	fmt.Println("  vemeego feed <directory>                    Serve the shared store and change feed")
	fmt.Println("  vemeego invite <directory> <session> <user> Invite a user, creating the session if needed")
	fmt.Println()
	fmt.Println("Each directory holds one vemeego.json; a default is created on first use.")
	fmt.Println("Settings can be overridden with VEMEEGO_* environment variables,")
	fmt.Println("e.g. VEMEEGO_IDENTITY_USER_ID or VEMEEGO_FEED_URL.")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -h        Show this help message")
	fmt.Println("  -setup    Ask for identity and endpoints before starting a peer")
	fmt.Println("  -version  Show version information")
}
