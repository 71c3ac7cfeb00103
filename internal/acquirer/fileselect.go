package acquirer

import (
	"errors"
	"path/filepath"
	"sort"
	"strings"

	"torrentstream/internal/domain"
)

// ErrNoMedia is returned when no file in the torrent survives the
// selection filters.
var ErrNoMedia = errors.New("no suitable video file in torrent")

// videoExtensions is the set of extensions (without the dot, lowercase)
// considered playable video containers.
var videoExtensions = map[string]struct{}{
	"mp4": {}, "mkv": {}, "avi": {}, "mov": {}, "wmv": {},
	"flv": {}, "webm": {}, "m4v": {}, "ts": {}, "mts": {}, "m2ts": {},
}

// excludedPatterns are case-insensitive basename substrings that mark a
// file as a non-feature extra (sample clips, trailers, etc.) rather than
// the main title.
var excludedPatterns = []string{
	"sample", "trailer", "preview", "extra", "bonus", "behind", "making",
}

// minPreferredSize is the size floor files should meet to be preferred
// over smaller survivors; below this, SelectVideoFile falls back to the
// largest of whatever candidates remain.
const minPreferredSize = 10 << 20 // 10 MiB

// SelectVideoFile applies the file-selection policy from spec.md §4.3 to
// the files announced by a torrent, returning the chosen file. It is a
// pure function: given the same input it always returns the same
// output, which is what makes the policy independently testable.
//
// The policy, in order:
//  1. Keep only files whose extension is in videoExtensions.
//  2. Drop files whose basename contains an excludedPatterns substring.
//  3. Prefer files at least minPreferredSize; if none qualify, fall back
//     to the largest of the step-2 survivors.
//  4. Among the survivors, pick the largest.
func SelectVideoFile(files []domain.TorrentFile) (domain.TorrentFile, error) {
	var candidates []domain.TorrentFile

	for _, f := range files {
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(f.Name), "."))
		if _, ok := videoExtensions[ext]; !ok {
			continue
		}
		base := strings.ToLower(filepath.Base(f.Name))
		excluded := false
		for _, pat := range excludedPatterns {
			if strings.Contains(base, pat) {
				excluded = true
				break
			}
		}
		if excluded {
			continue
		}
		candidates = append(candidates, f)
	}

	if len(candidates) == 0 {
		return domain.TorrentFile{}, ErrNoMedia
	}

	var preferred []domain.TorrentFile
	for _, f := range candidates {
		if f.Length >= minPreferredSize {
			preferred = append(preferred, f)
		}
	}
	if len(preferred) == 0 {
		preferred = candidates
	}

	sort.SliceStable(preferred, func(i, j int) bool {
		return preferred[i].Length > preferred[j].Length
	})

	return preferred[0], nil
}
