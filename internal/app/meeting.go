package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/Aneesh-Raskar/vemeego/internal/call"
	"github.com/Aneesh-Raskar/vemeego/internal/chat"
	"github.com/Aneesh-Raskar/vemeego/internal/conference"
	"github.com/Aneesh-Raskar/vemeego/internal/config"
	"github.com/Aneesh-Raskar/vemeego/internal/invite"
	"github.com/Aneesh-Raskar/vemeego/internal/realtime"
	"github.com/Aneesh-Raskar/vemeego/internal/roster"
	"github.com/Aneesh-Raskar/vemeego/internal/state"
)

// channelFactory opens the push channel of one session.
type channelFactory func(ctx context.Context, sessionID string) (realtime.Channel, func(), error)

type meetingDeps struct {
	self    roster.Participant
	store   chat.Store
	channel channelFactory
	media   config.Media
	con     *console
}

// meeting is one joined session: the call, the tile grid and the chat panel.
type meeting struct {
	meta invite.SessionMeta
	self roster.Participant
	con  *console

	roster *state.Roster
	conf   *conference.Conference
	panel  *chat.Panel
	sess   *call.Session
	sig    *call.WSSignaler

	cancel       context.CancelFunc
	closeChannel func()
	stopPlans    func()
	msgs         <-chan struct{}
	wg           sync.WaitGroup
	once         sync.Once
}

func joinMeeting(ctx context.Context, meta invite.SessionMeta, d meetingDeps) (*meeting, error) {
	ctx, cancel := context.WithCancel(ctx)
	m := &meeting{
		meta:   meta,
		self:   d.self,
		con:    d.con,
		roster: state.NewRoster(),
		cancel: cancel,
	}

	if d.media.SignalURL != "" {
		if err := m.dialCall(ctx, d); err != nil {
			cancel()
			return nil, err
		}
	} else {
		self := d.self
		self.Local = true
		m.roster.Upsert(self)
	}

	ch, closeChannel, err := d.channel(ctx, meta.ID)
	if err != nil {
		m.hangup()
		cancel()
		return nil, fmt.Errorf("open chat channel: %w", err)
	}
	m.closeChannel = closeChannel

	m.conf = conference.New(ctx, m.roster)
	m.panel = chat.NewPanel(meta.ID, chat.Sender{ID: d.self.Identity, Name: d.self.Name}, d.store, ch)
	m.msgs = m.panel.Log().Subscribe()
	if err := m.panel.Open(ctx); err != nil {
		m.con.printf("chat history unavailable: %v\n", err)
	}

	plans, stopPlans := m.conf.Subscribe()
	m.stopPlans = stopPlans
	m.con.printPlan(m.conf.Plan())

	m.wg.Add(2)
	go func() {
		defer m.wg.Done()
		for p := range plans {
			m.con.printPlan(p)
		}
	}()
	go func() {
		defer m.wg.Done()
		seen := make(map[string]struct{})
		for range m.msgs {
			m.con.printNewMessages(m.panel.Log().Messages(), m.self.Identity, seen)
		}
	}()

	log.Infow("joined", "session", meta.ID, "title", meta.Title)
	return m, nil
}

func (m *meeting) dialCall(ctx context.Context, d meetingDeps) error {
	sig, err := call.DialSignaler(ctx, d.media.SignalURL, m.meta.ID, d.self.Identity)
	if err != nil {
		return err
	}
	pc, err := call.NewPeerConnection(m.meta.ID, d.media.ICEServers)
	if err != nil {
		_ = sig.Close()
		return fmt.Errorf("create peer connection: %w", err)
	}
	m.sig = sig
	m.sess = call.NewSession(m.meta.ID, d.self, sig, m.roster, pc)
	if err := m.sess.Join(ctx); err != nil {
		m.hangup()
		return fmt.Errorf("join call: %w", err)
	}
	return nil
}

// handle runs one console line. It reports whether the meeting should end.
func (m *meeting) handle(ctx context.Context, line string) bool {
	name, arg := parseCommand(line)
	switch name {
	case "":
		if arg == "" {
			return false
		}
		m.panel.SetDraft(arg)
		if _, err := m.panel.Send(ctx); err != nil && !errors.Is(err, chat.ErrEmpty) {
			m.con.printf("message not sent: %v\n", err)
		}
	case "pin":
		if arg == "" {
			m.con.printf("usage: /pin <identity>\n")
			return false
		}
		m.conf.TogglePin(arg)
	case "next":
		m.conf.NextPage()
	case "prev":
		m.conf.PrevPage()
	case "page":
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 {
			m.con.printf("usage: /page <n>\n")
			return false
		}
		m.conf.GotoPage(n - 1)
	case "onext":
		m.conf.NextOverflowPage()
	case "oprev":
		m.conf.PrevOverflowPage()
	case "who":
		for _, p := range m.roster.Snapshot() {
			m.con.printf("  %s  %s\n", p.Identity, p.DisplayName())
		}
	case "leave":
		return true
	default:
		m.con.printf("%s", meetingHelp)
	}
	return false
}

func (m *meeting) hangup() {
	if m.sess != nil {
		m.sess.Hangup()
	}
	if m.sig != nil {
		_ = m.sig.Close()
	}
}

// leave tears the meeting down. It is safe to call more than once.
func (m *meeting) leave() {
	m.once.Do(func() {
		m.panel.Close()
		m.closeChannel()
		m.panel.Log().Unsubscribe(m.msgs)
		m.stopPlans()
		m.conf.Close()
		m.hangup()
		m.cancel()
		m.wg.Wait()
		log.Infow("left", "session", m.meta.ID)
	})
}
