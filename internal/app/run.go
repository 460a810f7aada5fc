package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	logging "github.com/ipfs/go-log/v2"

	"github.com/Aneesh-Raskar/vemeego/internal/backend"
	"github.com/Aneesh-Raskar/vemeego/internal/chat"
	"github.com/Aneesh-Raskar/vemeego/internal/config"
	"github.com/Aneesh-Raskar/vemeego/internal/feed"
	"github.com/Aneesh-Raskar/vemeego/internal/invite"
	"github.com/Aneesh-Raskar/vemeego/internal/p2p"
	"github.com/Aneesh-Raskar/vemeego/internal/realtime"
	"github.com/Aneesh-Raskar/vemeego/internal/roster"
	"github.com/Aneesh-Raskar/vemeego/internal/storage"
	"github.com/Aneesh-Raskar/vemeego/internal/util"
)

var log = logging.Logger("app")

type Options struct {
	PeerDir string
	CfgPath string
	Cfg     config.Config
	// Join, when set, joins that session right away.
	Join string
	In   io.Reader
	Out  io.Writer
}

func (o Options) streams() (io.Reader, io.Writer) {
	in, out := o.In, o.Out
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	return in, out
}

// watchConfig applies the configured log level now and on every edit of the
// config file.
func watchConfig(o Options) func() {
	if err := config.ApplyLogLevel(o.Cfg.Logging.Level); err != nil {
		log.Warnw("log level", "err", err)
	}
	if o.CfgPath == "" {
		return func() {}
	}
	stop, err := config.Watch(o.CfgPath, func(c config.Config) {
		if err := config.ApplyLogLevel(c.Logging.Level); err != nil {
			log.Warnw("log level", "err", err)
		}
	})
	if err != nil {
		log.Warnw("config watch disabled", "err", err)
		return func() {}
	}
	return stop
}

// RunFeed serves the shared store and change feed until ctx ends.
func RunFeed(ctx context.Context, o Options) error {
	defer watchConfig(o)()

	db, err := storage.Open(util.ResolvePath(o.PeerDir, o.Cfg.Store.Dir))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	ln, err := net.Listen("tcp", o.Cfg.Feed.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", o.Cfg.Feed.Addr, err)
	}
	return serveFeed(ctx, ln, db)
}

func serveFeed(ctx context.Context, ln net.Listener, db *storage.DB) error {
	hub := feed.NewHub()
	defer hub.Close()
	db.SetPublisher(hub)

	mux := http.NewServeMux()
	backend.Register(mux, db, hub)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	log.Infow("feed serving", "addr", ln.Addr().String(), "db", db.Path())

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	// Websocket subscribers are hijacked and not waited on by Shutdown.
	hub.Close()
	shctx, cancel := context.WithTimeout(context.Background(), util.ShortTimeout)
	defer cancel()
	if err := srv.Shutdown(shctx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// RunInvite invites userID to sessionID, creating the session when it does
// not exist yet.
func RunInvite(ctx context.Context, o Options, sessionID, userID string) (invite.Invitation, error) {
	c := backend.NewClient(o.Cfg.Feed.URL)
	self := o.Cfg.Identity

	if _, err := c.FetchSessionMetadata(ctx, sessionID); errors.Is(err, storage.ErrNotFound) {
		title := "Call"
		if self.DisplayName != "" {
			title = "Call with " + self.DisplayName
		}
		if _, err := c.CreateSession(ctx, sessionID, title, self.UserID); err != nil {
			return invite.Invitation{}, err
		}
	} else if err != nil {
		return invite.Invitation{}, err
	}
	return c.InsertInvitation(ctx, sessionID, userID)
}

// RunPeer runs one interactive peer: it waits for invitations, rings, and
// joins the accepted session with its call, tile grid and chat.
func RunPeer(ctx context.Context, o Options) error {
	defer watchConfig(o)()
	cfg := o.Cfg
	in, out := o.streams()
	con := newConsole(out)

	node, err := p2p.New(ctx, p2p.Options{
		ListenPort: cfg.P2P.ListenPort,
		KeyFile:    util.ResolvePath(o.PeerDir, cfg.P2P.KeyFile),
		Bootstrap:  cfg.P2P.Bootstrap,
		Relays:     cfg.P2P.Relays,
		MDNS:       cfg.P2P.MDNS,
	})
	if err != nil {
		return err
	}
	defer node.Close()

	userID := cfg.Identity.UserID
	if userID == "" {
		userID = node.ID()
	}
	self := roster.Participant{Identity: userID, Name: cfg.Identity.DisplayName}
	con.printf("user id: %s\npeer id: %s\n", userID, node.ID())

	client := backend.NewClient(cfg.Feed.URL)
	deps := meetingDeps{
		self:  self,
		store: client,
		media: cfg.Media,
		con:   con,
		channel: func(ctx context.Context, sessionID string) (realtime.Channel, func(), error) {
			m, err := realtime.NewManager(ctx, node.PubSub(), node.PeerID(), sessionID, chat.Topic)
			if err != nil {
				return nil, nil, err
			}
			return m, m.Close, nil
		},
	}

	prompts := make(chan *invite.Prompt, 1)
	joins := make(chan invite.SessionMeta, 1)
	w := invite.NewWatcher(client, client, invite.Options{
		UserID:  userID,
		Timeout: time.Duration(cfg.Invite.TimeoutSec) * time.Second,
		Ringer:  invite.NewBellRinger(out, time.Duration(cfg.Invite.RingIntervalMs)*time.Millisecond),
		OnPrompt: func(p *invite.Prompt) {
			select {
			case prompts <- p:
			case <-ctx.Done():
			}
		},
		OnAccept: func(_ invite.Invitation, meta invite.SessionMeta) {
			select {
			case joins <- meta:
			default:
				log.Warnw("join dropped, another is pending", "session", meta.ID)
			}
		},
	})
	if err := w.Start(ctx); err != nil {
		return err
	}
	defer w.Close()

	if o.Join != "" {
		meta, err := client.FetchSessionMetadata(ctx, o.Join)
		if err != nil {
			return fmt.Errorf("join %s: %w", o.Join, err)
		}
		joins <- meta
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	var (
		active *invite.Prompt
		mtg    *meeting
	)
	defer func() {
		if mtg != nil {
			mtg.leave()
		}
	}()

	for {
		if active != nil {
			select {
			case <-active.Done():
				if active.Outcome() == invite.OutcomeTimedOut {
					con.printf("missed call: %s\n", active.Meta.Title)
				}
				active = nil
			default:
			}
		}

		select {
		case <-ctx.Done():
			return nil

		case p := <-prompts:
			active = p
			con.printf("incoming call: %q  (a)ccept / (d)ecline\n", p.Meta.Title)

		case meta := <-joins:
			if mtg != nil {
				mtg.leave()
				mtg = nil
			}
			m, err := joinMeeting(ctx, meta, deps)
			if err != nil {
				con.printf("could not join %s: %v\n", meta.ID, err)
				continue
			}
			mtg = m
			con.printf("joined %q, /help for commands\n", meta.Title)

		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			switch {
			case active != nil:
				answerPrompt(ctx, con, active, line)
			case mtg != nil:
				if mtg.handle(ctx, line) {
					mtg.leave()
					mtg = nil
					con.printf("left the call\n")
				}
			}
		}
	}
}

func answerPrompt(ctx context.Context, con *console, p *invite.Prompt, line string) {
	var err error
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "a", "accept", "y", "yes":
		err = p.Accept(ctx)
	case "d", "decline", "n", "no":
		err = p.Decline(ctx)
	default:
		con.printf("(a)ccept / (d)ecline\n")
		return
	}
	if errors.Is(err, invite.ErrPromptDone) {
		con.printf("the call is no longer ringing\n")
	} else if err != nil {
		con.printf("answer not saved: %v\n", err)
	}
}
