package fs

import (
	"fmt"
	"strings"
	"time"

	"github.com/mindfs/mindfs/disk"
)

// DiskInfo formats the mounted image's geometry and free counts for
// human consumption.
func (f *Filesystem) DiskInfo() (string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if err := f.ensureMounted("get_disk_info"); err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Disk Information:\n")
	fmt.Fprintf(&b, "  Disk Size: %d MB\n", f.dev.SizeBytes()/disk.MB)
	fmt.Fprintf(&b, "  Block Size: %d bytes\n", f.sb.BlockSize)
	fmt.Fprintf(&b, "  Total Blocks: %d\n", f.dev.TotalBlocks())
	fmt.Fprintf(&b, "  Free Blocks: %d\n", f.store.FreeDataBlocks())
	fmt.Fprintf(&b, "  Total Inodes: %d\n", f.store.TotalInodes())
	fmt.Fprintf(&b, "  Free Inodes: %d\n", f.store.FreeInodes())
	fmt.Fprintf(&b, "  Mount Time: %s\n", time.Unix(f.sb.MountTime, 0).Format(time.ANSIC))
	fmt.Fprintf(&b, "  Write Time: %s\n", time.Unix(f.sb.WriteTime, 0).Format(time.ANSIC))
	return b.String(), nil
}

// FreeCounts exposes the live allocator counters for tests and the
// stress monitor.
func (f *Filesystem) FreeCounts() (freeInodes uint64, freeBlocks uint64) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.store.FreeInodes(), f.store.FreeDataBlocks()
}
