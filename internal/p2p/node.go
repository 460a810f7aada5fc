// Package p2p hosts the libp2p node that carries the call's push channel.
package p2p

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	logging "github.com/ipfs/go-log/v2"
	libp2p "github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"
	"github.com/libp2p/go-libp2p/p2p/host/autorelay"
	ma "github.com/multiformats/go-multiaddr"
	manet "github.com/multiformats/go-multiaddr/net"

	"github.com/Aneesh-Raskar/vemeego/internal/util"
)

var log = logging.Logger("p2p")

// MdnsTag is the LAN discovery service name.
const MdnsTag = "vemeego-mdns"

func init() {
	// Dial failures and backoff errors are noisy at the default level.
	logging.SetLogLevel("swarm2", "error")
	logging.SetLogLevel("relay", "info")
	logging.SetLogLevel("autorelay", "info")
	logging.SetLogLevel("autonat", "warn")
}

// Options configures a Node.
type Options struct {
	ListenPort int
	KeyFile    string
	// Bootstrap peers are full multiaddrs ending in /p2p/<id>.
	Bootstrap []string
	// Relays are used as static circuit relays when set.
	Relays []string
	MDNS   bool
}

type Node struct {
	Host host.Host
	ps   *pubsub.PubSub
	mdns mdns.Service
}

type mdnsNotifee struct {
	h host.Host
}

func (n *mdnsNotifee) HandlePeerFound(pi peer.AddrInfo) {
	if pi.ID == n.h.ID() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), util.DefaultConnectTimeout)
	defer cancel()
	if err := n.h.Connect(ctx, pi); err != nil {
		log.Debugw("mdns connect failed", "peer", pi.ID, "err", err)
	}
}

// loadOrCreateKey loads a persistent identity key from disk,
// or generates a new Ed25519 key and saves it on first run.
func loadOrCreateKey(keyFile string) (crypto.PrivKey, bool, error) {
	data, err := os.ReadFile(keyFile)
	if err == nil {
		priv, err := crypto.UnmarshalPrivateKey(data)
		if err == nil {
			return priv, false, nil
		}
		log.Warnw("corrupt identity key, generating new one", "path", keyFile, "err", err)
	}

	priv, _, err := crypto.GenerateEd25519Key(nil)
	if err != nil {
		return nil, false, err
	}

	raw, err := crypto.MarshalPrivateKey(priv)
	if err != nil {
		return nil, false, fmt.Errorf("marshal identity key: %w", err)
	}

	if dir := filepath.Dir(keyFile); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, false, fmt.Errorf("create key directory: %w", err)
		}
	}
	if err := os.WriteFile(keyFile, raw, 0600); err != nil {
		return nil, false, fmt.Errorf("save identity key: %w", err)
	}
	return priv, true, nil
}

// ParseAddrInfos parses /p2p multiaddrs, skipping invalid entries.
func ParseAddrInfos(addrs []string) []peer.AddrInfo {
	var out []peer.AddrInfo
	for _, s := range addrs {
		a, err := ma.NewMultiaddr(s)
		if err != nil {
			log.Warnw("invalid multiaddr", "addr", s, "err", err)
			continue
		}
		ai, err := peer.AddrInfoFromP2pAddr(a)
		if err != nil {
			log.Warnw("multiaddr without peer id", "addr", s, "err", err)
			continue
		}
		out = append(out, *ai)
	}
	return out
}

func New(ctx context.Context, opts Options) (*Node, error) {
	priv, isNew, err := loadOrCreateKey(opts.KeyFile)
	if err != nil {
		return nil, err
	}
	if isNew {
		log.Infow("generated identity key", "path", opts.KeyFile)
	} else {
		log.Infow("loaded identity key", "path", opts.KeyFile)
	}

	hostOpts := []libp2p.Option{
		libp2p.Identity(priv),
		libp2p.ListenAddrStrings(fmt.Sprintf("/ip4/0.0.0.0/tcp/%d", opts.ListenPort)),
	}
	if relays := ParseAddrInfos(opts.Relays); len(relays) > 0 {
		hostOpts = append(hostOpts,
			libp2p.EnableRelay(),
			libp2p.EnableHolePunching(),
			libp2p.EnableAutoRelayWithStaticRelays(relays,
				autorelay.WithBootDelay(0),
				autorelay.WithBackoff(30*time.Second),
			),
		)
		log.Infow("relay enabled", "relays", len(relays))
	}

	h, err := libp2p.New(hostOpts...)
	if err != nil {
		return nil, err
	}

	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		_ = h.Close()
		return nil, err
	}

	n := &Node{Host: h, ps: ps}

	if opts.MDNS {
		md := mdns.NewMdnsService(h, MdnsTag, &mdnsNotifee{h: h})
		if err := md.Start(); err != nil {
			_ = h.Close()
			return nil, err
		}
		n.mdns = md
	}

	n.connectBootstrap(ctx, ParseAddrInfos(opts.Bootstrap))
	log.Infow("node started", "id", h.ID().String(), "addrs", n.Addrs())
	return n, nil
}

func (n *Node) connectBootstrap(ctx context.Context, peers []peer.AddrInfo) {
	for _, pi := range peers {
		cctx, cancel := context.WithTimeout(ctx, util.DefaultConnectTimeout)
		if err := n.Host.Connect(cctx, pi); err != nil {
			log.Warnw("bootstrap connect failed", "peer", pi.ID, "err", err)
		} else {
			log.Infow("bootstrap connected", "peer", pi.ID)
		}
		cancel()
	}
}

// PubSub returns the gossipsub router.
func (n *Node) PubSub() *pubsub.PubSub { return n.ps }

// PeerID returns the host's peer id.
func (n *Node) PeerID() peer.ID { return n.Host.ID() }

func (n *Node) ID() string {
	return n.Host.ID().String()
}

// Addrs returns the host's multiaddrs without loopback and link-local
// addresses, each suffixed with /p2p/<id>. Circuit addresses are kept.
func (n *Node) Addrs() []string {
	var out []string
	suffix := "/p2p/" + n.ID()
	for _, a := range n.Host.Addrs() {
		if !isCircuitAddr(a) {
			ip, err := manet.ToIP(a)
			if err != nil {
				continue
			}
			if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
				continue
			}
		}
		out = append(out, a.String()+suffix)
	}
	return out
}

// isCircuitAddr returns true if the multiaddr contains a /p2p-circuit component.
func isCircuitAddr(a ma.Multiaddr) bool {
	for _, p := range a.Protocols() {
		if p.Code == ma.P_CIRCUIT {
			return true
		}
	}
	return false
}

func (n *Node) Close() error {
	if n.mdns != nil {
		_ = n.mdns.Close()
	}
	return n.Host.Close()
}
