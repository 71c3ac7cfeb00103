package acquirer

import "testing"

func TestTrackerTiersOneTrackerPerTier(t *testing.T) {
	tiers := trackerTiers([]string{"udp://a:1/announce", "udp://b:2/announce"})
	if len(tiers) != 2 {
		t.Fatalf("len(tiers) = %d, want 2", len(tiers))
	}
	if tiers[0][0] != "udp://a:1/announce" || tiers[1][0] != "udp://b:2/announce" {
		t.Fatalf("unexpected tiers: %v", tiers)
	}
}

func TestTrackerTiersEmpty(t *testing.T) {
	if got := trackerTiers(nil); len(got) != 0 {
		t.Fatalf("len(got) = %d, want 0", len(got))
	}
}

func TestExplicitPeersExtractsXPE(t *testing.T) {
	uri := "magnet:?xt=urn:btih:abc&x.pe=1.2.3.4:6881&x.pe=5.6.7.8:6882"
	peers := explicitPeers(uri)
	if len(peers) != 2 {
		t.Fatalf("len(peers) = %d, want 2, got %v", len(peers), peers)
	}
	if peers[0] != "1.2.3.4:6881" || peers[1] != "5.6.7.8:6882" {
		t.Fatalf("unexpected peers: %v", peers)
	}
}

func TestExplicitPeersNoneWhenAbsent(t *testing.T) {
	peers := explicitPeers("magnet:?xt=urn:btih:abc")
	if len(peers) != 0 {
		t.Fatalf("expected no peers, got %v", peers)
	}
}

func TestExplicitPeersInvalidURI(t *testing.T) {
	peers := explicitPeers("://not a uri")
	if peers != nil {
		t.Fatalf("expected nil for unparsable uri, got %v", peers)
	}
}

func TestConfigMaxConnsDefaultsAndAggressive(t *testing.T) {
	if got := (Config{}).maxConns(); got != 100 {
		t.Fatalf("default maxConns = %d, want 100", got)
	}
	if got := (Config{Aggressive: true}).maxConns(); got != 200 {
		t.Fatalf("aggressive maxConns = %d, want 200", got)
	}
	if got := (Config{MaxConns: 42}).maxConns(); got != 42 {
		t.Fatalf("explicit maxConns = %d, want 42", got)
	}
}

func TestConfigWatchdogIntervalDefault(t *testing.T) {
	if got := (Config{}).watchdogInterval(); got.Seconds() != 10 {
		t.Fatalf("default watchdog interval = %v, want 10s", got)
	}
}
