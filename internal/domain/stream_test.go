package domain

import "testing"

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to StreamStatus
		want     bool
	}{
		{StreamInitializing, StreamDownloading, true},
		{StreamInitializing, StreamError, true},
		{StreamInitializing, StreamConverting, false},
		{StreamDownloading, StreamWaitingForData, true},
		{StreamDownloading, StreamConverting, true},
		{StreamDownloading, StreamReady, false},
		{StreamWaitingForData, StreamConverting, true},
		{StreamWaitingForData, StreamError, true},
		{StreamConverting, StreamWaitingForData, true},
		{StreamConverting, StreamReady, true},
		{StreamConverting, StreamError, true},
		{StreamReady, StreamError, false},
		{StreamError, StreamDownloading, false},
		{StreamReady, StreamReady, true},
		{StreamError, StreamError, true},
	}
	for _, c := range cases {
		if got := CanTransition(c.from, c.to); got != c.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}
