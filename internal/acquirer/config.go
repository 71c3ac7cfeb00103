package acquirer

import "time"

// Deterministic ports so NAT traversal and firewall rules stay
// reproducible across streams, per spec.md §4.3.
const (
	DefaultBitTorrentPort = 6881
	DefaultDHTPort        = 6882
)

// Config tunes the underlying BitTorrent engine.
type Config struct {
	DataDir string

	// MaxConns is the number of TCP/UDP peer connections permitted per
	// torrent. Defaults to 100; the aggressive profile raises it to 200.
	MaxConns int

	// Aggressive switches to the raised-connection-limit profile.
	Aggressive bool

	// ExtraTrackers is a curated fallback tracker list appended to
	// whatever the magnet URI itself carries.
	ExtraTrackers []string

	// WatchdogInterval is how often the stall watchdog ticks. Defaults
	// to 10s per spec.md §4.3/§5.
	WatchdogInterval time.Duration
}

// DefaultExtraTrackers is the curated fallback list from spec.md §4.3:
// UDP public trackers preferred, HTTP trackers as backup.
var DefaultExtraTrackers = []string{
	"udp://tracker.opentrackr.org:1337/announce",
	"udp://open.tracker.cl:1337/announce",
	"udp://tracker.openbittorrent.com:6969/announce",
	"udp://exodus.desync.com:6969/announce",
	"udp://tracker.torrent.eu.org:451/announce",
	"http://tracker.opentrackr.org:1337/announce",
	"http://tracker.openbittorrent.com:80/announce",
}

// DHTBootstrapNodes are injected when peer discovery stalls at zero
// peers, per spec.md §4.3's peer discovery recovery rules.
var DHTBootstrapNodes = []string{
	"router.bittorrent.com:6881",
	"dht.transmissionbt.com:6881",
	"router.utorrent.com:6881",
}

func (c Config) maxConns() int {
	if c.Aggressive {
		return 200
	}
	if c.MaxConns > 0 {
		return c.MaxConns
	}
	return 100
}

func (c Config) watchdogInterval() time.Duration {
	if c.WatchdogInterval > 0 {
		return c.WatchdogInterval
	}
	return 10 * time.Second
}
