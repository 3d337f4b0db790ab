// Copyright © 2016 Zellyn Hunter <zellyn@gmail.com>

package dfs

import "github.com/bbcmicro/dfstool/dfserr"

// SsdWriter renders a fitted DiscModel back into an SSD byte stream.
// Every sector in [0, DeclaredSectors) is accounted for: sectors 0/1
// come from the catalogue codec, each entry's sectors come from its
// payload plus slack, and everything else comes from the model's
// free-sector map. Any preserved trailing bytes are appended after
// the declared disc.
type SsdWriter struct {
	model *DiscModel
}

// NewSsdWriter wraps a DiscModel for rendering. The model should
// already have been fitted by a Packer (or freshly read by
// FromSSDBytes, which is already fitted).
func NewSsdWriter(model *DiscModel) *SsdWriter {
	return &SsdWriter{model: model}
}

// Render produces the complete byte stream: exactly
// DeclaredSectors*SectorLen bytes, followed by model.Trailing.
func (w *SsdWriter) Render() ([]byte, error) {
	m := w.model

	header := CatalogueHeader{
		Title:           m.Title,
		Serial:          m.Serial,
		BootOption:      m.BootOption,
		DeclaredSectors: m.DeclaredSectors,
	}
	sector0, sector1, err := EncodeCatalogue(header, m.Entries, [2][]byte{m.CatalogueTail0, m.CatalogueTail1})
	if err != nil {
		return nil, err
	}

	out := make([]byte, m.DeclaredSectors*SectorLen)
	copy(out[0:SectorLen], sector0)
	copy(out[SectorLen:2*SectorLen], sector1)

	owner := make(map[int]*Entry, m.DeclaredSectors)
	for _, e := range m.Entries {
		for s := e.StartSector; s < e.EndSector(); s++ {
			if s < FirstDataSector || s >= m.DeclaredSectors {
				return nil, dfserr.MoveToOccupiedf("entry %c.%s occupies sector %03X, outside [%03X, %03X)", e.Dir, e.Name, s, FirstDataSector, m.DeclaredSectors)
			}
			if prev, dup := owner[s]; dup {
				return nil, dfserr.MoveToOccupiedf("sectors %03X claimed by both %c.%s and %c.%s", s, prev.Dir, prev.Name, e.Dir, e.Name)
			}
			owner[s] = e
		}
	}

	for s := FirstDataSector; s < m.DeclaredSectors; s++ {
		var sector []byte
		if e, ok := owner[s]; ok {
			sector = entrySectorBytes(e, s)
		} else if cell, ok := m.FreeSectors[s]; ok {
			sector = cell.Bytes
		} else {
			sector = make([]byte, SectorLen)
		}
		copy(out[s*SectorLen:(s+1)*SectorLen], sector)
	}

	return append(out, m.Trailing...), nil
}

// entrySectorBytes returns the 256 bytes an entry contributes to
// sector s: payload data, or for the entry's last sector, whatever
// payload remains followed by its slack.
func entrySectorBytes(e *Entry, s int) []byte {
	offset := (s - e.StartSector) * SectorLen
	buf := make([]byte, SectorLen)
	if offset < len(e.Data) {
		n := copy(buf, e.Data[offset:])
		copy(buf[n:], e.Slack)
	} else {
		copy(buf, e.Slack[offset-len(e.Data):])
	}
	return buf
}
