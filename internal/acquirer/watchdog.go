package acquirer

import (
	"context"
	"time"

	"github.com/anacrolix/torrent"
)

// runWatchdog ticks every cfg.WatchdogInterval (10s by default) and
// recovers or kills a stalled job:
//
//   - 3 consecutive stalled ticks (30s of no byte progress): hard-pause
//     and resume the torrent, a cheap kick that unsticks most peers that
//     stopped sending data without dropping the connection.
//   - 6 consecutive stalled ticks with zero active peers: the torrent is
//     considered dead; reannounce makes a last recovery attempt and onDead
//     sends the stream ID on DeadCh so the Coordinator can move the
//     stream to the error state.
func (a *Acquirer) runWatchdog(ctx context.Context, j *job) {
	interval := a.cfg.watchdogInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.tick(ctx, j)
		}
	}
}

func (a *Acquirer) tick(ctx context.Context, j *job) {
	completed := j.file.BytesCompleted()

	a.mu.Lock()
	progressed := completed > j.lastProgress
	j.lastProgress = completed
	if progressed {
		j.stallTicks = 0
	} else {
		j.stallTicks++
	}
	stallTicks := j.stallTicks
	a.mu.Unlock()

	if progressed {
		return
	}

	peers := j.t.Stats().ActivePeers

	switch {
	case stallTicks >= 6 && peers == 0:
		a.log.Warn("acquirer: torrent appears dead, no peers and no progress",
			"stream_id", j.id, "stall_ticks", stallTicks)
		a.reannounce(ctx, j)
		a.onDead(j)
	case stallTicks == 3:
		a.log.Info("acquirer: stream stalled, recovering via pause/resume",
			"stream_id", j.id, "peers", peers)
		a.kick(j)
	}
}

// kick briefly deprioritizes then reprioritizes the selected file,
// forcing anacrolix/torrent to re-evaluate its peer requests.
func (a *Acquirer) kick(j *job) {
	j.file.SetPriority(torrent.PiecePriorityNone)
	j.file.SetPriority(torrent.PiecePriorityNormal)
}

// onDead notifies the Coordinator that id's torrent is dead, via a
// non-blocking send on DeadCh.
func (a *Acquirer) onDead(j *job) {
	select {
	case a.deadCh <- j.id:
	default:
		a.log.Warn("acquirer: dead-torrent channel full, dropping notification", "stream_id", j.id)
	}
}
