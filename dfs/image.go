// Copyright © 2016 Zellyn Hunter <zellyn@gmail.com>

package dfs

// SsdImage is a raw SSD byte stream with sector-granularity accessors
// that distinguish a sector that is present but zero from one that is
// physically missing because the file is shorter than its declared
// sector count ("cropped").
type SsdImage struct {
	data []byte
}

// NewSsdImage wraps raw SSD bytes for sector-level reads.
func NewSsdImage(data []byte) *SsdImage {
	return &SsdImage{data: data}
}

// Sector returns a copy of the 256 bytes at sector index i. ok is
// false when the backing data is too short to contain that sector at
// all.
func (s *SsdImage) Sector(i int) (sector []byte, ok bool) {
	start := i * SectorLen
	end := start + SectorLen
	if i < 0 || len(s.data) < end {
		return nil, false
	}
	out := make([]byte, SectorLen)
	copy(out, s.data[start:end])
	return out, true
}

// readPayload reads an entry's Length bytes starting at its
// StartSector, zero-filling any portion that falls past the physical
// end of the image.
func (s *SsdImage) readPayload(e *Entry) []byte {
	start := e.StartSector * SectorLen
	length := int(e.Length)
	out := make([]byte, length)
	if start >= len(s.data) {
		return out
	}
	end := start + length
	if end > len(s.data) {
		end = len(s.data)
	}
	copy(out, s.data[start:end])
	return out
}

// SlackAfter returns the bytes following an entry's payload up to the
// end of its last sector.
func (s *SsdImage) SlackAfter(e *Entry) []byte {
	used := int(e.Length % SectorLen)
	if used == 0 {
		return nil
	}
	need := SectorLen - used
	sector, ok := s.Sector(e.LastSector())
	if !ok {
		return make([]byte, need)
	}
	return append([]byte(nil), sector[used:]...)
}

// TrailingBytes returns whatever bytes follow the declared disc image
// (sectors [0, declaredSectors)), or nil if the image ends exactly at
// the declared boundary or before it.
func (s *SsdImage) TrailingBytes(declaredSectors int) []byte {
	start := declaredSectors * SectorLen
	if start >= len(s.data) {
		return nil
	}
	return append([]byte(nil), s.data[start:]...)
}

// unusedSectors returns, in ascending order, the sector indices in
// [FirstDataSector, declaredSectors) not covered by any entry's
// [StartSector, EndSector) range.
func unusedSectors(entries []*Entry, declaredSectors int) []int {
	used := make(map[int]bool, declaredSectors)
	for _, e := range entries {
		for s := e.StartSector; s < e.EndSector(); s++ {
			used[s] = true
		}
	}
	var out []int
	for s := FirstDataSector; s < declaredSectors; s++ {
		if !used[s] {
			out = append(out, s)
		}
	}
	return out
}
