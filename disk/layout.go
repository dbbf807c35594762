package disk

import (
	"github.com/mindfs/mindfs/common"
	"github.com/mindfs/mindfs/util"
)

// Layout is where each region of the image lives, in blocks. It is a
// pure function of the total block count and is recomputed on every
// mount rather than stored verbatim.
type Layout struct {
	SuperblockStart   uint64
	SuperblockBlocks  uint64
	InodeTableStart   uint64
	InodeTableBlocks  uint64
	InodeBitmapStart  uint64
	InodeBitmapBlocks uint64
	DataBitmapStart   uint64
	DataBitmapBlocks  uint64
	DataStart         uint64
	DataBlocks        uint64
	TotalInodes       uint64
}

// ComputeLayout derives the image layout from the total block count:
// superblock, inode table (one inode per ten blocks, rounded up to
// whole table blocks), inode bitmap, data bitmap, then the data region.
func ComputeLayout(totalBlocks uint64) Layout {
	var l Layout
	l.SuperblockStart = 0
	l.SuperblockBlocks = 1

	inodeCount := util.RoundUp(totalBlocks/10, common.InodesPerBlock) * common.InodesPerBlock
	if inodeCount == 0 && totalBlocks > 10 {
		inodeCount = common.InodesPerBlock
	}
	l.TotalInodes = inodeCount
	l.InodeTableStart = l.SuperblockStart + l.SuperblockBlocks
	l.InodeTableBlocks = inodeCount / common.InodesPerBlock

	l.InodeBitmapStart = l.InodeTableStart + l.InodeTableBlocks
	l.InodeBitmapBlocks = util.RoundUp(inodeCount, common.NBitBlock)

	l.DataBitmapStart = l.InodeBitmapStart + l.InodeBitmapBlocks
	l.DataBitmapBlocks = util.RoundUp(totalBlocks, common.NBitBlock)

	l.DataStart = l.DataBitmapStart + l.DataBitmapBlocks
	if totalBlocks > l.DataStart {
		l.DataBlocks = totalBlocks - l.DataStart
	}
	return l
}
