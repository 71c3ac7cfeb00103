package acquirer

import (
	"context"
	"net"
	"net/netip"
	"strconv"
	"time"

	"github.com/anacrolix/torrent"
)

const (
	zeroPeerCheckDelay = 5 * time.Second
	reannounceInterval = 10 * time.Second
	maxReannounces     = 5
)

// announceOnStart checks zeroPeerCheckDelay after a torrent is added;
// if it still has no peers, it injects the DHT bootstrap nodes as peers
// and then re-adds the fallback trackers on a 10s interval, up to
// maxReannounces times, stopping once a peer connects. Every step is best-effort: peer discovery
// failures are logged, never surfaced as a Start error, since the
// watchdog is what ultimately decides a torrent is unrecoverable.
func (a *Acquirer) announceOnStart(ctx context.Context, t *torrent.Torrent) {
	timer := time.NewTimer(zeroPeerCheckDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	if t.Stats().ActivePeers > 0 {
		return
	}
	a.log.Info("acquirer: no peers shortly after start, injecting DHT bootstrap nodes", "info_hash", t.InfoHash().HexString())
	a.injectBootstrapPeers(t)

	ticker := time.NewTicker(reannounceInterval)
	defer ticker.Stop()

	for attempt := 1; attempt <= maxReannounces; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if t.Stats().ActivePeers > 0 {
			return
		}
		a.log.Info("acquirer: re-announcing to trackers", "info_hash", t.InfoHash().HexString(), "attempt", attempt)
		for _, tier := range DefaultExtraTrackers {
			t.AddTrackers([][]string{{tier}})
		}
	}
}

// reannounce is invoked by the watchdog right before declaring a
// torrent dead, as a last-ditch recovery attempt.
func (a *Acquirer) reannounce(ctx context.Context, j *job) {
	a.injectBootstrapPeers(j.t)
}

// injectBootstrapPeers resolves the curated DHT bootstrap hostnames and
// adds them directly as peers. This is a fallback for restrictive
// networks where DHT UDP traffic itself is blocked but the bootstrap
// host happens to also run a BitTorrent peer.
func (a *Acquirer) injectBootstrapPeers(t *torrent.Torrent) {
	var peers []torrent.PeerInfo
	for _, node := range DHTBootstrapNodes {
		host, portStr, err := net.SplitHostPort(node)
		if err != nil {
			continue
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			continue
		}
		ips, err := net.LookupIP(host)
		if err != nil || len(ips) == 0 {
			continue
		}
		addr, ok := netip.AddrFromSlice(ips[0])
		if !ok {
			continue
		}
		peers = append(peers, torrent.PeerInfo{Addr: netip.AddrPortFrom(addr.Unmap(), uint16(port))})
	}
	if len(peers) > 0 {
		t.AddPeers(peers)
	}
}

// injectExplicitPeer adds a single peer address, used for magnet URIs
// carrying an x.pe= parameter naming a known-good seed.
func (a *Acquirer) injectExplicitPeer(t *torrent.Torrent, hostport string) {
	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		return
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		ips, lookupErr := net.LookupIP(host)
		if lookupErr != nil || len(ips) == 0 {
			return
		}
		var ok bool
		addr, ok = netip.AddrFromSlice(ips[0])
		if !ok {
			return
		}
	}
	t.AddPeers([]torrent.PeerInfo{{Addr: netip.AddrPortFrom(addr.Unmap(), uint16(port))}})
}
