// Copyright © 2016 Zellyn Hunter <zellyn@gmail.com>

package dfs

import (
	"fmt"
	"strings"

	"github.com/bbcmicro/dfstool/dfserr"
	"github.com/bbcmicro/dfstool/types"
)

// CatalogueHeader is the disc-wide information carried in sectors 0
// and 1, outside the per-entry blocks.
type CatalogueHeader struct {
	Title           string
	Serial          byte
	BootOption      types.BootOption
	DeclaredSectors int
}

// DecodeCatalogue parses the two 256-byte catalogue sectors into a
// header, the ordered list of entries, and the unused tail bytes each
// sector carries after its last 8-byte entry block (preserved
// byte-for-byte so a re-encoded disc matches the original exactly).
//
// The boot option is the masked-then-shifted high nibble of sector 1
// byte 6; the low 3 bits of the same byte are the declared sector
// count's high bits.
func DecodeCatalogue(sector0, sector1 []byte) (CatalogueHeader, []*Entry, [2][]byte, error) {
	var header CatalogueHeader
	if len(sector0) != SectorLen || len(sector1) != SectorLen {
		return header, nil, [2][]byte{}, fmt.Errorf("dfs: catalogue sectors must be %d bytes each", SectorLen)
	}

	catalogueBytes := int(sector1[5] & 0xFC)
	if catalogueBytes%8 != 0 {
		return header, nil, [2][]byte{}, dfserr.FormatDefectf("catalogue length byte %#02x is not a multiple of 8", sector1[5])
	}
	count := catalogueBytes / 8
	if count > MaxCatalogueEntries {
		return header, nil, [2][]byte{}, dfserr.FormatDefectf("catalogue declares %d entries; DFS supports at most %d", count, MaxCatalogueEntries)
	}

	header.Title = strings.TrimRight(string(sector0[0:8])+string(sector1[0:4]), " ")
	header.Serial = sector1[4]
	header.BootOption = types.BootOption((sector1[6] & 0xF0) >> 4)
	header.DeclaredSectors = int(sector1[7]) | (int(sector1[6]&0x07) << 8)

	entries := make([]*Entry, count)
	for i := 0; i < count; i++ {
		nameBlock := sector0[8+i*8 : 16+i*8]
		attrBlock := sector1[8+i*8 : 16+i*8]

		dirByte := nameBlock[7]
		e := &Entry{
			Name:     strings.TrimRight(string(nameBlock[0:7]), " "),
			Dir:      dirByte & 0x7F,
			Locked:   dirByte&0x80 != 0,
			CatIndex: i,
		}

		loadLo := uint32(attrBlock[0]) | uint32(attrBlock[1])<<8
		execLo := uint32(attrBlock[2]) | uint32(attrBlock[3])<<8
		lenLo := uint32(attrBlock[4]) | uint32(attrBlock[5])<<8
		pack := attrBlock[6]
		startLo := uint32(attrBlock[7])

		execHi2 := (pack >> 6) & 0x3
		lenHi2 := (pack >> 4) & 0x3
		loadHi2 := (pack >> 2) & 0x3
		startHi2 := pack & 0x3

		e.LoadAddress = loadLo | highFromField(loadHi2)<<16
		e.ExecAddress = execLo | highFromField(execHi2)<<16
		e.Length = lenLo | uint32(lenHi2)<<16
		e.StartSector = int(startLo) | int(startHi2)<<8

		e.RecordedLength = e.Length
		entries[i] = e
	}

	var tails [2][]byte
	tails[0] = append([]byte(nil), sector0[8+catalogueBytes:]...)
	tails[1] = append([]byte(nil), sector1[8+catalogueBytes:]...)

	return header, entries, tails, nil
}

// EncodeCatalogue is the inverse of DecodeCatalogue: it renders a
// header, ordered entries, and preserved tail bytes back into two
// 256-byte catalogue sectors.
func EncodeCatalogue(header CatalogueHeader, entries []*Entry, tails [2][]byte) ([]byte, []byte, error) {
	if len(entries) > MaxCatalogueEntries {
		return nil, nil, dfserr.FormatDefectf("cannot encode %d entries; DFS supports at most %d", len(entries), MaxCatalogueEntries)
	}

	sector0 := make([]byte, SectorLen)
	sector1 := make([]byte, SectorLen)

	title := header.Title
	if len(title) > 12 {
		title = title[:12]
	}
	title += strings.Repeat(" ", 12-len(title))
	copy(sector0[0:8], title[0:8])
	copy(sector1[0:4], title[8:12])

	sector1[4] = header.Serial
	catalogueBytes := len(entries) * 8
	sector1[5] = byte(catalogueBytes) & 0xFC

	bootNibble := byte(header.BootOption) & 0x0F
	sectorsHigh := byte((header.DeclaredSectors >> 8) & 0x07)
	sector1[6] = (bootNibble << 4) | sectorsHigh
	sector1[7] = byte(header.DeclaredSectors & 0xFF)

	for i, e := range entries {
		if len(e.Name) > 7 {
			return nil, nil, fmt.Errorf("dfs: entry name %q is longer than 7 bytes", e.Name)
		}
		nameBlock := sector0[8+i*8 : 16+i*8]
		attrBlock := sector1[8+i*8 : 16+i*8]

		name := e.Name + strings.Repeat(" ", 7-len(e.Name))
		copy(nameBlock[0:7], name)
		dirByte := e.Dir & 0x7F
		if e.Locked {
			dirByte |= 0x80
		}
		nameBlock[7] = dirByte

		attrBlock[0] = byte(e.LoadAddress)
		attrBlock[1] = byte(e.LoadAddress >> 8)
		attrBlock[2] = byte(e.ExecAddress)
		attrBlock[3] = byte(e.ExecAddress >> 8)
		attrBlock[4] = byte(e.Length)
		attrBlock[5] = byte(e.Length >> 8)

		lenHi2 := byte((e.Length >> 16) & 0x3)
		loadHi2 := highField(e.LoadAddress)
		execHi2 := highField(e.ExecAddress)
		startHi2 := byte((e.StartSector >> 8) & 0x3)
		attrBlock[6] = (execHi2 << 6) | (lenHi2 << 4) | (loadHi2 << 2) | startHi2
		attrBlock[7] = byte(e.StartSector & 0xFF)
	}

	wantTailLen := SectorLen - 8 - catalogueBytes
	tail0, tail1 := tails[0], tails[1]
	if tail0 == nil {
		tail0 = make([]byte, wantTailLen)
	}
	if tail1 == nil {
		tail1 = make([]byte, wantTailLen)
	}
	if len(tail0) != wantTailLen || len(tail1) != wantTailLen {
		return nil, nil, fmt.Errorf("dfs: catalogue tail is %d/%d bytes; want %d", len(tail0), len(tail1), wantTailLen)
	}
	copy(sector0[8+catalogueBytes:], tail0)
	copy(sector1[8+catalogueBytes:], tail1)

	return sector0, sector1, nil
}
