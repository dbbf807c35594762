// inode packs fixed 128-byte inodes into inode-table blocks and manages
// the three-tier block addressing: ten direct pointers, one single
// indirect block, one double indirect block.
package inode

import (
	"time"

	"github.com/tchajed/marshal"

	"github.com/mindfs/mindfs/common"
)

// Unset marks an absent indirect or double-indirect pointer. Direct
// slots use 0 instead; readers accept either value as absent.
const Unset int32 = -1

// Inode is the decoded form of one 128-byte table entry.
type Inode struct {
	Mode           uint32
	Owner          uint32
	Group          uint32
	Size           int64
	Atime          int64
	Mtime          int64
	Ctime          int64
	LinkCount      uint32
	Direct         [common.DirectBlocks]common.Bnum
	Indirect       int32
	DoubleIndirect int32
}

// NewInode is a zeroed template with fresh timestamps. Mode stays 0
// until the caller populates the inode.
func NewInode() *Inode {
	now := time.Now().Unix()
	return &Inode{
		Atime:          now,
		Mtime:          now,
		Ctime:          now,
		LinkCount:      1,
		Indirect:       Unset,
		DoubleIndirect: Unset,
	}
}

func (ip *Inode) IsDir() bool {
	return ip.Mode&common.ModeDir != 0
}

func (ip *Inode) IsRegular() bool {
	return ip.Mode&common.ModeRegular != 0
}

func (ip *Inode) Encode() []byte {
	enc := marshal.NewEnc(common.InodeSize)
	enc.PutInt32(ip.Mode)
	enc.PutInt32(ip.Owner)
	enc.PutInt32(ip.Group)
	enc.PutInt(uint64(ip.Size))
	enc.PutInt(uint64(ip.Atime))
	enc.PutInt(uint64(ip.Mtime))
	enc.PutInt(uint64(ip.Ctime))
	enc.PutInt32(ip.LinkCount)
	for _, b := range ip.Direct {
		enc.PutInt32(uint32(b))
	}
	enc.PutInt32(uint32(ip.Indirect))
	enc.PutInt32(uint32(ip.DoubleIndirect))
	// remaining bytes are zero padding up to InodeSize
	return enc.Finish()
}

func Decode(buf []byte) *Inode {
	dec := marshal.NewDec(buf)
	ip := &Inode{}
	ip.Mode = dec.GetInt32()
	ip.Owner = dec.GetInt32()
	ip.Group = dec.GetInt32()
	ip.Size = int64(dec.GetInt())
	ip.Atime = int64(dec.GetInt())
	ip.Mtime = int64(dec.GetInt())
	ip.Ctime = int64(dec.GetInt())
	ip.LinkCount = dec.GetInt32()
	for i := range ip.Direct {
		ip.Direct[i] = common.Bnum(dec.GetInt32())
	}
	ip.Indirect = int32(dec.GetInt32())
	ip.DoubleIndirect = int32(dec.GetInt32())
	return ip
}

// ptrUnset reports whether an indirect-tier pointer slot is absent.
// Both 0 and -1 occur on image; treat either as absent.
func ptrUnset(p int32) bool {
	return p == 0 || p == Unset
}
