package app

import (
	"os"
	"path/filepath"
	"time"
)

// StorageUsage summarizes disk consumption under a data directory. The
// janitor logs this before and after each sweep.
type StorageUsage struct {
	DataDir               string    `json:"dataDir"`
	DataDirExists         bool      `json:"dataDirExists"`
	DataDirLogicalBytes   int64     `json:"dataDirLogicalBytes"`
	DataDirAllocatedBytes int64     `json:"dataDirAllocatedBytes"`
	ScannedAt             time.Time `json:"scannedAt"`
}

// ScanStorageUsage walks dataDir and sums logical file sizes against
// actual allocated blocks on disk, the latter via fileAllocatedBytes
// (platform-specific: sparse torrent preallocation means logical size
// can overstate real disk pressure).
func ScanStorageUsage(dataDir string) StorageUsage {
	usage := StorageUsage{
		DataDir:   dataDir,
		ScannedAt: time.Now().UTC(),
	}
	if dataDir == "" {
		return usage
	}

	info, err := os.Stat(dataDir)
	if err != nil || !info.IsDir() {
		return usage
	}
	usage.DataDirExists = true

	var logicalTotal int64
	var allocatedTotal int64
	_ = filepath.WalkDir(dataDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil || d.IsDir() {
			return nil
		}
		fileInfo, err := d.Info()
		if err != nil {
			return nil
		}
		size := fileInfo.Size()
		if size > 0 {
			logicalTotal += size
		}
		allocated := fileAllocatedBytes(fileInfo)
		if allocated > 0 {
			allocatedTotal += allocated
		}
		return nil
	})
	usage.DataDirLogicalBytes = logicalTotal
	usage.DataDirAllocatedBytes = allocatedTotal
	return usage
}
