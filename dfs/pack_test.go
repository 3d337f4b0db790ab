// Copyright © 2016 Zellyn Hunter <zellyn@gmail.com>

package dfs

import (
	"testing"

	"github.com/bbcmicro/dfstool/types"
)

// newSingleFileModel builds a minimal DiscModel: an N-sector disc with
// one data file starting at sector 2, plus every other in-range sector
// tracked as a known, zero-filled free cell.
func newSingleFileModel(declared int, e *Entry) *DiscModel {
	m := NewDiscModel()
	m.DeclaredSectors = declared
	m.Entries = []*Entry{e}
	for s := FirstDataSector; s < declared; s++ {
		m.FreeSectors[s] = &SectorCell{Bytes: make([]byte, SectorLen)}
	}
	count := ceilDiv(int(e.RecordedLength), SectorLen)
	for s := e.StartSector; s < e.StartSector+count; s++ {
		delete(m.FreeSectors, s)
	}
	return m
}

// TestFitGrowsIntoFollowingFreeSector: a file that grows by one byte
// into its immediately following, already-free sector keeps its
// StartSector rather than being relocated.
func TestFitGrowsIntoFollowingFreeSector(t *testing.T) {
	e := &Entry{
		Name:           "GROW",
		Dir:            '$',
		StartSector:    2,
		Length:         257, // grew from one sector to two
		RecordedLength: 256,
		CatIndex:       0,
	}
	m := newSingleFileModel(10, e)

	p := NewPacker(m, types.AlwaysCompact{}, 0)
	if err := p.Fit(); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if e.StartSector != 2 {
		t.Errorf("StartSector = %d, want 2 (grew in place)", e.StartSector)
	}
	if e.SectorCount() != 2 {
		t.Errorf("SectorCount() = %d, want 2", e.SectorCount())
	}
	if len(e.Slack) != SectorLen-1 {
		t.Errorf("len(Slack) = %d, want %d", len(e.Slack), SectorLen-1)
	}
	if _, stillFree := m.FreeSectors[3]; stillFree {
		t.Errorf("sector 3 should have been claimed by the grown file")
	}
}

// TestFitCompactsThenExpands: a file too large to fit in the free
// space of a near-full 400-sector disc first triggers a compaction
// (which alone still doesn't free enough room) and then an expansion
// to 800 sectors.
func TestFitCompactsThenExpands(t *testing.T) {
	m := NewDiscModel()
	m.DeclaredSectors = MinDeclaredSectors

	small := &Entry{Name: "SMALL", Dir: '$', StartSector: 2, Length: 256, RecordedLength: 256, CatIndex: 0}
	big := &Entry{Name: "BIG", Dir: '$', StartSector: 3, Length: uint32((MinDeclaredSectors - 3) * SectorLen), RecordedLength: uint32((MinDeclaredSectors - 3) * SectorLen), CatIndex: 1}
	m.Entries = []*Entry{small, big}
	for s := FirstDataSector; s < m.DeclaredSectors; s++ {
		m.FreeSectors[s] = &SectorCell{Bytes: make([]byte, SectorLen)}
	}
	delete(m.FreeSectors, 2)
	for s := 3; s < MinDeclaredSectors; s++ {
		delete(m.FreeSectors, s)
	}

	// Now grow "big" so it no longer fits even after compaction at 400
	// sectors, forcing the policy through compact, then expand.
	big.Length += SectorLen * 50
	big.Data = make([]byte, big.Length)

	p := NewPacker(m, types.AlwaysCompact{}, 0)
	if err := p.Fit(); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if m.DeclaredSectors != MaxDeclaredSectors {
		t.Errorf("DeclaredSectors = %d, want %d after expansion", m.DeclaredSectors, MaxDeclaredSectors)
	}
	if big.EndSector() > m.DeclaredSectors {
		t.Errorf("BIG's end sector %d runs past the declared size %d", big.EndSector(), m.DeclaredSectors)
	}
	if big.StartSector == small.StartSector {
		t.Errorf("BIG and SMALL ended up overlapping at %d", big.StartSector)
	}
}

// TestFitGrowSlackFromPreservedFreeBytes checks that when a file
// grows into a free sector whose original content was preserved, the
// file's new slack is cut from that content rather than zero-filled.
func TestFitGrowSlackFromPreservedFreeBytes(t *testing.T) {
	e := &Entry{
		Name:           "GROW",
		Dir:            '$',
		StartSector:    2,
		Length:         SectorLen + 1,
		RecordedLength: SectorLen,
		CatIndex:       0,
	}
	m := newSingleFileModel(10, e)
	preserved := make([]byte, SectorLen)
	for i := range preserved {
		preserved[i] = byte(i)
	}
	m.FreeSectors[3] = &SectorCell{Bytes: preserved}

	p := NewPacker(m, types.AlwaysCompact{}, 0)
	if err := p.Fit(); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if e.StartSector != 2 {
		t.Fatalf("StartSector = %d, want 2", e.StartSector)
	}
	if len(e.Slack) != SectorLen-1 {
		t.Fatalf("len(Slack) = %d, want %d", len(e.Slack), SectorLen-1)
	}
	for i, b := range e.Slack {
		if b != byte(i+1) {
			t.Fatalf("Slack[%d] = %#02x, want %#02x (preserved sector content)", i, b, byte(i+1))
		}
	}
}

// TestFitGrowIntoOccupiedSectorRelocates checks that a file which
// grew over a sector another entry still owns gets moved to a fresh
// run instead of silently overwriting its neighbour.
func TestFitGrowIntoOccupiedSectorRelocates(t *testing.T) {
	grow := &Entry{Name: "GROW", Dir: '$', StartSector: 2, Length: SectorLen + 1, RecordedLength: SectorLen, CatIndex: 0}
	next := &Entry{Name: "NEXT", Dir: '$', StartSector: 3, Length: SectorLen, RecordedLength: SectorLen, CatIndex: 1}
	m := NewDiscModel()
	m.DeclaredSectors = 10
	m.Entries = []*Entry{grow, next}
	for s := 4; s < m.DeclaredSectors; s++ {
		m.FreeSectors[s] = &SectorCell{Bytes: make([]byte, SectorLen)}
	}

	p := NewPacker(m, types.AlwaysCompact{}, 0)
	if err := p.Fit(); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if next.StartSector != 3 {
		t.Errorf("NEXT.StartSector = %d, want 3 (it never moved)", next.StartSector)
	}
	if grow.StartSector == 2 {
		t.Error("GROW should have been relocated away from NEXT's sector")
	}
	if grow.EndSector() > next.StartSector && grow.StartSector < next.EndSector() {
		t.Errorf("GROW at [%d,%d) overlaps NEXT at [%d,%d)", grow.StartSector, grow.EndSector(), next.StartSector, next.EndSector())
	}
}

// TestRelocationSkipsAbsentSectorsUntilExpanded checks that a new
// file is never placed on sectors the input image physically lacked;
// expansion promotes them to blank first, and only then does the
// placement succeed.
func TestRelocationSkipsAbsentSectorsUntilExpanded(t *testing.T) {
	e := &Entry{Name: "NEW", Dir: '$', StartSector: -1, Length: SectorLen, CatIndex: 0}
	e.Data = make([]byte, e.Length)
	m := NewDiscModel()
	m.DeclaredSectors = 10
	m.Entries = []*Entry{e}
	for s := FirstDataSector; s < m.DeclaredSectors; s++ {
		m.FreeSectors[s] = &SectorCell{Bytes: make([]byte, SectorLen), Absent: true}
	}

	p := NewPacker(m, types.AlwaysExpand{}, 0)
	if err := p.Fit(); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if m.DeclaredSectors != MinDeclaredSectors {
		t.Errorf("DeclaredSectors = %d, want %d (expansion promotes the cropped tail)", m.DeclaredSectors, MinDeclaredSectors)
	}
	if e.StartSector != FirstDataSector {
		t.Errorf("NEW.StartSector = %d, want %d", e.StartSector, FirstDataSector)
	}
	for s, cell := range m.FreeSectors {
		if cell.Absent {
			t.Fatalf("sector %d still absent after expansion", s)
		}
	}
}

// TestFitUnchangedFileKeepsSlack checks that an entry whose Length
// still matches RecordedLength is left untouched: same StartSector,
// same Slack bytes, nothing freed or reclaimed.
func TestFitUnchangedFileKeepsSlack(t *testing.T) {
	slack := []byte{0xAA, 0xBB, 0xCC}
	e := &Entry{
		Name:           "SAME",
		Dir:            '$',
		StartSector:    2,
		Length:         SectorLen - 3,
		RecordedLength: SectorLen - 3,
		Slack:          slack,
		CatIndex:       0,
	}
	m := newSingleFileModel(10, e)

	p := NewPacker(m, types.AlwaysCompact{}, 0)
	if err := p.Fit(); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if e.StartSector != 2 {
		t.Errorf("StartSector = %d, want 2", e.StartSector)
	}
	if string(e.Slack) != string(slack) {
		t.Errorf("Slack = %v, want %v (untouched)", e.Slack, slack)
	}
}

// TestFitShrinkFreesTrailingSector checks that a file shrinking out of
// a sector it used to occupy frees that sector back into the pool.
func TestFitShrinkFreesTrailingSector(t *testing.T) {
	e := &Entry{
		Name:           "SHRINK",
		Dir:            '$',
		StartSector:    2,
		Length:         10,
		RecordedLength: SectorLen + 10,
		CatIndex:       0,
	}
	m := newSingleFileModel(10, e)

	p := NewPacker(m, types.AlwaysCompact{}, 0)
	if err := p.Fit(); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if e.StartSector != 2 {
		t.Errorf("StartSector = %d, want 2", e.StartSector)
	}
	if e.SectorCount() != 1 {
		t.Errorf("SectorCount() = %d, want 1", e.SectorCount())
	}
	if _, free := m.FreeSectors[3]; !free {
		t.Errorf("sector 3 should have been freed by the shrink")
	}
}

// TestFitRelocatesOnConflict checks that two entries which now claim
// overlapping sectors get the later one in catalogue order relocated
// out of the way rather than erroring.
func TestFitRelocatesOnConflict(t *testing.T) {
	a := &Entry{Name: "A", Dir: '$', StartSector: 2, Length: 256, RecordedLength: 256, CatIndex: 0}
	b := &Entry{Name: "B", Dir: '$', StartSector: 2, Length: 256, RecordedLength: 256, CatIndex: 1}
	m := NewDiscModel()
	m.DeclaredSectors = MinDeclaredSectors
	m.Entries = []*Entry{a, b}
	for s := FirstDataSector; s < m.DeclaredSectors; s++ {
		m.FreeSectors[s] = &SectorCell{Bytes: make([]byte, SectorLen)}
	}
	delete(m.FreeSectors, 2)

	p := NewPacker(m, types.AlwaysCompact{}, 0)
	if err := p.Fit(); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if a.StartSector == b.StartSector {
		t.Fatalf("A and B still overlap at sector %d", a.StartSector)
	}
	if a.StartSector != 2 {
		t.Errorf("A.StartSector = %d, want 2 (first claimant keeps its place)", a.StartSector)
	}
}
