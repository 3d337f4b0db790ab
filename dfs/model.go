// Copyright © 2016 Zellyn Hunter <zellyn@gmail.com>

package dfs

import (
	"github.com/bbcmicro/dfstool/dfserr"
	"github.com/bbcmicro/dfstool/types"
)

// SectorCell is the known content of a sector not owned by any
// catalogue entry. Absent marks a sector that is physically missing
// from the source SSD file (the disc was "cropped" short of its
// declared size); such a sector still counts as part of the disc, but
// its content is unknown until the Packer promotes it to blank during
// expansion.
type SectorCell struct {
	Bytes  []byte
	Absent bool
}

// DiscModel is the complete in-memory picture of a DFS volume: the
// catalogue, every entry's bytes, the free sectors' bytes, and the
// handful of disc regions dfstool preserves byte-for-byte without
// interpreting (the catalogue tails and any bytes trailing the
// declared disc).
//
// A DiscModel is built by FromSSDBytes or FromDirectory and mutated
// only by a Packer's Fit.
type DiscModel struct {
	Title           string
	Serial          byte
	BootOption      types.BootOption
	DeclaredSectors int

	// Entries is ordered by CatIndex.
	Entries []*Entry

	// FreeSectors holds every sector in [FirstDataSector,
	// DeclaredSectors) not claimed by an entry.
	FreeSectors map[int]*SectorCell

	CatalogueTail0 []byte
	CatalogueTail1 []byte
	Trailing       []byte
}

// NewDiscModel returns an empty DiscModel ready to be populated.
func NewDiscModel() *DiscModel {
	return &DiscModel{FreeSectors: make(map[int]*SectorCell)}
}

// FromSSDBytes parses a raw SSD image into a fully-fitted DiscModel:
// every entry already carries its payload and slack, and
// RecordedLength equals Length throughout (nothing has changed yet).
func FromSSDBytes(data []byte) (*DiscModel, error) {
	img := NewSsdImage(data)
	sector0, ok0 := img.Sector(CatalogueSector0)
	sector1, ok1 := img.Sector(CatalogueSector1)
	if !ok0 || !ok1 {
		return nil, dfserr.FormatDefectf("ssd image is too short to contain a catalogue (need at least %d bytes)", 2*SectorLen)
	}

	header, entries, tails, err := DecodeCatalogue(sector0, sector1)
	if err != nil {
		return nil, err
	}

	m := NewDiscModel()
	m.Title = header.Title
	m.Serial = header.Serial
	m.BootOption = header.BootOption
	m.DeclaredSectors = header.DeclaredSectors
	m.CatalogueTail0 = tails[0]
	m.CatalogueTail1 = tails[1]
	m.Entries = entries

	for _, e := range entries {
		e.Data = img.readPayload(e)
		e.Slack = img.SlackAfter(e)
	}

	for _, s := range unusedSectors(entries, header.DeclaredSectors) {
		sector, ok := img.Sector(s)
		if !ok {
			m.FreeSectors[s] = &SectorCell{Bytes: make([]byte, SectorLen), Absent: true}
			continue
		}
		m.FreeSectors[s] = &SectorCell{Bytes: sector}
	}

	m.Trailing = img.TrailingBytes(header.DeclaredSectors)
	return m, nil
}
