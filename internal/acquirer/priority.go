package acquirer

import "github.com/anacrolix/torrent"

// prioritySetter is the capability interface over a torrent file's
// piece-priority control. *torrent.File always satisfies it; the
// indirection lets the selection logic below be tested without a real
// anacrolix/torrent client.
type prioritySetter interface {
	SetPriority(torrent.PiecePriority)
}

// applySelection deselects every file except keepIndex, then selects
// it at normal priority. Deselection is best-effort: it is purely an
// optimization (skip downloading pieces nobody will read), so failures
// on any one file are irrelevant to the overall selection.
func applySelection(files []prioritySetter, keepIndex int) {
	for i, f := range files {
		if i == keepIndex {
			continue
		}
		f.SetPriority(torrent.PiecePriorityNone)
	}
	files[keepIndex].SetPriority(torrent.PiecePriorityNormal)
}
