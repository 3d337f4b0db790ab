// Copyright © 2016 Zellyn Hunter <zellyn@gmail.com>

package dfs

import (
	"fmt"
	"os"
	"sort"

	pkgerrors "github.com/pkg/errors"

	"github.com/bbcmicro/dfstool/dfserr"
	"github.com/bbcmicro/dfstool/types"
)

// Packer is the sector-allocation engine: given a DiscModel whose
// entries carry a desired StartSector and a current Length that may
// have changed since the sidecar was written, it produces a DiscModel
// that satisfies the non-overlap invariant, preferring minimal
// movement and preserving slack where nothing changed.
//
// Allocation runs in phases: claim every entry's current range, settle
// the ones that kept their place, relocate the rest, and fall back to
// compaction or expansion when the disc is simply too full.
type Packer struct {
	model  *DiscModel
	policy types.ExpandPolicy
	debug  int
}

// NewPacker returns a Packer that will fit model's entries using
// policy to decide between compaction and expansion when neither
// alone makes room. debug controls stderr tracing; see
// types.Globals.Debug.
func NewPacker(model *DiscModel, policy types.ExpandPolicy, debug int) *Packer {
	return &Packer{model: model, policy: policy, debug: debug}
}

// Fit runs the allocation algorithm to completion, mutating the
// model's entries and free-sector map in place. On success every
// entry is Fitted and the model satisfies the catalogue non-overlap
// invariant. It returns a dfserr.PackUnfit error if entries remain
// unplaceable even after compaction and expansion to 800 sectors.
func (p *Packer) Fit() error {
	claimedBy, err := p.claimCurrentRanges()
	if err != nil {
		return err
	}

	for _, e := range p.model.Entries {
		if e.conflicting {
			continue
		}
		p.settleFittedEntry(e, claimedBy)
	}

	conflicting := conflictingEntries(p.model.Entries)
	conflicting = p.relocate(conflicting, claimedBy)
	if len(conflicting) == 0 {
		return nil
	}

	compacted := false
	for {
		need := sectorsNeeded(conflicting)
		have := p.model.DeclaredSectors - FirstDataSector - len(claimedBy)
		outcome := p.policy.Decide(need-have, compacted)
		switch outcome {
		case types.FitCompact:
			if compacted {
				return dfserr.PackUnfitf("cannot place %d file(s): compaction already tried and the policy declined to expand", len(conflicting))
			}
			p.compact(claimedBy)
			compacted = true
			conflicting = p.relocate(conflictingEntries(p.model.Entries), claimedBy)
			if len(conflicting) == 0 {
				return nil
			}
			continue
		case types.FitExpand:
			if err := p.expand(); err != nil {
				return err
			}
			conflicting = p.relocate(conflicting, claimedBy)
			if len(conflicting) == 0 {
				return nil
			}
			if p.model.DeclaredSectors >= MaxDeclaredSectors {
				return dfserr.PackUnfitf("cannot place %d file(s) even after compaction and expansion to %d sectors", len(conflicting), MaxDeclaredSectors)
			}
			continue
		}
	}
}

// claimCurrentRanges is the fit phase's conflict-detection pass: it
// walks entries in catalogue order and claims each one's current
// (possibly just-grown) sector range, provided no earlier entry
// already claimed any of those sectors and the entry carries a usable
// StartSector. Entries that lose out are flagged conflicting so the
// relocation phase picks them up.
func (p *Packer) claimCurrentRanges() (map[int]*Entry, error) {
	claimedBy := map[int]*Entry{}
	for _, e := range p.model.Entries {
		if e.StartSector < FirstDataSector {
			e.conflicting = true
			continue
		}
		count := ceilDiv(int(e.Length), SectorLen)
		if count == 0 {
			e.fitted = true
			continue
		}
		end := e.StartSector + count
		if end > MaxDeclaredSectors {
			return nil, pkgerrors.Wrapf(dfserr.MoveToOccupiedf("entry %c.%s's range runs past the maximum disc size", e.Dir, e.Name), "claiming range for catalogue index %d", e.CatIndex)
		}
		oldEnd := e.StartSector + e.oldSectorCount()
		blocked := false
		for s := e.StartSector; s < end; s++ {
			if _, taken := claimedBy[s]; taken {
				blocked = true
				break
			}
			if s < oldEnd {
				continue
			}
			// A sector the entry grew into must be known free, not
			// merely unclaimed-so-far: a sector belonging to a later
			// entry, or one the cropped input never supplied, forces
			// relocation instead.
			cell, known := p.model.FreeSectors[s]
			if !known || cell.Absent {
				blocked = true
				break
			}
		}
		if blocked || end > p.model.DeclaredSectors {
			e.conflicting = true
			continue
		}
		for s := e.StartSector; s < end; s++ {
			claimedBy[s] = e
		}
	}
	return claimedBy, nil
}

// settleFittedEntry computes the final slack for an entry that won
// its current range in claimCurrentRanges: unchanged entries keep
// their recorded slack verbatim, grown ones absorb the trailing bytes
// of their new last sector, and shrunk ones hand their vacated
// sectors back to the free map.
func (p *Packer) settleFittedEntry(e *Entry, claimedBy map[int]*Entry) {
	oldCount := e.oldSectorCount()
	newCount := e.SectorCount()
	newUsed := int(e.Length % SectorLen)
	newSlackLen := 0
	if newUsed != 0 {
		newSlackLen = SectorLen - newUsed
	}

	switch {
	case e.Length == e.RecordedLength:
		// Unchanged: keep the sidecar's recorded slack verbatim.
	case newCount > oldCount:
		last := e.StartSector + newCount - 1
		cell := p.sectorCellBytes(last)
		delete(p.model.FreeSectors, last)
		for s := e.StartSector + oldCount; s < last; s++ {
			delete(p.model.FreeSectors, s)
		}
		if newSlackLen > 0 {
			e.Slack = append([]byte(nil), cell[newUsed:]...)
		} else {
			e.Slack = nil
		}
	default:
		e.Slack = adjustSlack(e.Slack, newSlackLen)
		if newCount < oldCount {
			for s := e.StartSector + newCount; s < e.StartSector+oldCount; s++ {
				if _, owned := claimedBy[s]; !owned {
					p.model.FreeSectors[s] = &SectorCell{Bytes: make([]byte, SectorLen)}
				}
			}
		}
	}

	e.RecordedLength = e.Length
	e.fitted = true
}

// relocate is the relocation phase: conflicting entries are sorted by
// descending length (cat_index ascending breaks ties) and each is
// placed in the first contiguous run of free sectors found scanning
// from FirstDataSector upward, stopping the scan early at a sector
// the backing image never physically supplied. It returns the
// entries that still could not be placed.
func (p *Packer) relocate(conflicting []*Entry, claimedBy map[int]*Entry) []*Entry {
	sort.SliceStable(conflicting, func(i, j int) bool {
		if conflicting[i].Length != conflicting[j].Length {
			return conflicting[i].Length > conflicting[j].Length
		}
		return conflicting[i].CatIndex < conflicting[j].CatIndex
	})

	var unplaced []*Entry
	for _, e := range conflicting {
		p.freeOldRange(e, claimedBy)
		count := ceilDiv(int(e.Length), SectorLen)
		if count == 0 {
			e.StartSector = FirstDataSector
			e.fitted = true
			e.conflicting = false
			e.RecordedLength = e.Length
			continue
		}
		start, ok := p.findRun(count, claimedBy)
		if !ok {
			unplaced = append(unplaced, e)
			continue
		}
		if p.debug > 0 {
			fmt.Fprintf(os.Stderr, "DEBUG: moving %c.%s to sector %03X\n", e.Dir, e.Name, start)
		}
		p.place(e, start, count, claimedBy)
	}
	return unplaced
}

// freeOldRange restores the sectors an entry occupied according to
// its last recorded placement, since the entry is about to move
// somewhere else. The vacated sectors become free, zero-filled,
// except the old last sector, which keeps the entry's previously
// recorded slack in its trailing region.
func (p *Packer) freeOldRange(e *Entry, claimedBy map[int]*Entry) {
	if e.RecordedLength == 0 || e.StartSector < FirstDataSector {
		return
	}
	count := e.oldSectorCount()
	used := int(e.RecordedLength % SectorLen)
	for i := 0; i < count; i++ {
		s := e.StartSector + i
		if _, owned := claimedBy[s]; owned {
			continue
		}
		cell := make([]byte, SectorLen)
		if i == count-1 && used != 0 {
			copy(cell[used:], e.Slack)
		}
		p.model.FreeSectors[s] = &SectorCell{Bytes: cell}
	}
}

// findRun scans sectors from FirstDataSector upward for the first
// contiguous run of n free, non-absent sectors within the declared
// disc. The scan stops as soon as it reaches a sector the backing
// image never physically supplied (an "absent" cropped-tail sector);
// nothing may be placed on or past the cropped region until an
// expansion promotes it to known-blank.
func (p *Packer) findRun(n int, claimedBy map[int]*Entry) (int, bool) {
	run := 0
	for s := FirstDataSector; s < p.model.DeclaredSectors; s++ {
		if _, owned := claimedBy[s]; owned {
			run = 0
			continue
		}
		cell, known := p.model.FreeSectors[s]
		if !known {
			run = 0
			continue
		}
		if cell.Absent {
			return 0, false
		}
		run++
		if run == n {
			return s - n + 1, true
		}
	}
	return 0, false
}

// place claims a contiguous run of sectors for e, computing its final
// slack from the last sector's existing free content.
func (p *Packer) place(e *Entry, start, count int, claimedBy map[int]*Entry) {
	last := start + count - 1
	cell := p.sectorCellBytes(last)
	for s := start; s <= last; s++ {
		delete(p.model.FreeSectors, s)
		claimedBy[s] = e
	}
	e.StartSector = start
	newUsed := int(e.Length % SectorLen)
	if newUsed != 0 {
		e.Slack = append([]byte(nil), cell[newUsed:]...)
	} else {
		e.Slack = nil
	}
	e.RecordedLength = e.Length
	e.fitted = true
	e.conflicting = false
}

// compact unregisters every entry and re-places them back-to-back
// from FirstDataSector in catalogue order, closing every gap.
func (p *Packer) compact(claimedBy map[int]*Entry) {
	for s := range claimedBy {
		delete(claimedBy, s)
	}
	for s := FirstDataSector; s < p.model.DeclaredSectors; s++ {
		if _, ok := p.model.FreeSectors[s]; !ok {
			p.model.FreeSectors[s] = &SectorCell{Bytes: make([]byte, SectorLen)}
		}
	}

	cursor := FirstDataSector
	for _, e := range p.model.Entries {
		count := ceilDiv(int(e.Length), SectorLen)
		if count == 0 {
			e.StartSector = cursor
			e.fitted = true
			e.conflicting = false
			e.RecordedLength = e.Length
			continue
		}
		if cursor+count > p.model.DeclaredSectors {
			if p.debug > 0 {
				fmt.Fprintf(os.Stderr, "DEBUG: %c.%s does not fit even compacted (needs %d sectors at %03X)\n", e.Dir, e.Name, count, cursor)
			}
			e.fitted = false
			e.conflicting = true
			continue
		}
		last := cursor + count - 1
		cell := p.sectorCellBytes(last)
		for s := cursor; s <= last; s++ {
			delete(p.model.FreeSectors, s)
			claimedBy[s] = e
		}
		e.StartSector = cursor
		newUsed := int(e.Length % SectorLen)
		if newUsed != 0 {
			e.Slack = append([]byte(nil), cell[newUsed:]...)
		} else {
			e.Slack = nil
		}
		e.RecordedLength = e.Length
		e.fitted = true
		e.conflicting = false
		cursor = last + 1
	}
}

// expand grows the disc from 400 to 800 declared sectors (or up to
// 400 if somehow smaller), filling the newly available sectors with
// zero-filled free cells, and promotes any previously "absent"
// cropped-tail sector to known-blank: once the disc is being rewritten
// at a larger size, there is no longer a physical reason to treat the
// old tail as unknown.
func (p *Packer) expand() error {
	old := p.model.DeclaredSectors
	switch {
	case old < MinDeclaredSectors:
		p.model.DeclaredSectors = MinDeclaredSectors
	case old < MaxDeclaredSectors:
		p.model.DeclaredSectors = MaxDeclaredSectors
	default:
		return dfserr.PackUnfitf("disc is already at the maximum of %d sectors", MaxDeclaredSectors)
	}
	if p.debug > 0 {
		fmt.Fprintf(os.Stderr, "DEBUG: expanding disc from %d to %d sectors\n", old, p.model.DeclaredSectors)
	}
	for s := old; s < p.model.DeclaredSectors; s++ {
		p.model.FreeSectors[s] = &SectorCell{Bytes: make([]byte, SectorLen)}
	}
	for _, cell := range p.model.FreeSectors {
		cell.Absent = false
	}
	return nil
}

// sectorCellBytes returns the known content of a free sector, or 256
// zero bytes if the sector isn't tracked in the free map at all.
func (p *Packer) sectorCellBytes(s int) []byte {
	if cell, ok := p.model.FreeSectors[s]; ok {
		return cell.Bytes
	}
	return make([]byte, SectorLen)
}

// adjustSlack reshapes a recorded slack region to a new length,
// keeping the bytes nearest the end of the sector (the ones closest
// to the disc's declared boundary) and zero-padding or trimming at
// the front. This is how the fit phase handles a file shrinking or
// growing without leaving its last sector: front bytes are either
// freshly vacated (so zeroed) or freshly overwritten by new content
// (so dropped).
func adjustSlack(old []byte, newLen int) []byte {
	if newLen == 0 {
		return nil
	}
	if len(old) >= newLen {
		return append([]byte(nil), old[len(old)-newLen:]...)
	}
	out := make([]byte, newLen)
	copy(out[newLen-len(old):], old)
	return out
}

func conflictingEntries(entries []*Entry) []*Entry {
	var out []*Entry
	for _, e := range entries {
		if e.conflicting {
			out = append(out, e)
		}
	}
	return out
}

func sectorsNeeded(entries []*Entry) int {
	n := 0
	for _, e := range entries {
		n += ceilDiv(int(e.Length), SectorLen)
	}
	return n
}
