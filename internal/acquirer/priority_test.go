package acquirer

import (
	"testing"

	"github.com/anacrolix/torrent"
)

type fakePrioritySetter struct {
	sets []torrent.PiecePriority
}

func (f *fakePrioritySetter) SetPriority(p torrent.PiecePriority) {
	f.sets = append(f.sets, p)
}

func TestApplySelectionDeselectsOthersAndSelectsChosen(t *testing.T) {
	a, b, c := &fakePrioritySetter{}, &fakePrioritySetter{}, &fakePrioritySetter{}
	applySelection([]prioritySetter{a, b, c}, 1)

	if len(a.sets) != 1 || a.sets[0] != torrent.PiecePriorityNone {
		t.Fatalf("file 0 sets = %v, want [None]", a.sets)
	}
	if len(b.sets) != 1 || b.sets[0] != torrent.PiecePriorityNormal {
		t.Fatalf("file 1 (chosen) sets = %v, want [Normal]", b.sets)
	}
	if len(c.sets) != 1 || c.sets[0] != torrent.PiecePriorityNone {
		t.Fatalf("file 2 sets = %v, want [None]", c.sets)
	}
}
