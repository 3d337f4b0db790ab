// Copyright © 2016 Zellyn Hunter <zellyn@gmail.com>

package dfs

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	pkgerrors "github.com/pkg/errors"

	"github.com/bbcmicro/dfstool/dfserr"
	"github.com/bbcmicro/dfstool/types"
)

// FromDirectory reconstructs a DiscModel from a directory previously
// written by Unpacker, using SidecarCodec to parse the disc-level and
// per-file ".inf"/".inf2" sidecars. Unlike FromSSDBytes, the returned
// model is not yet fitted: entries carry their desired StartSector
// (from the ".inf2" sidecar) and their current on-disk Length, which
// may differ from RecordedLength if the payload file was edited since
// unpacking. Callers run a Packer over the result before writing it
// out with SsdWriter.
//
// A file with no matching ".inf2" sidecar is accepted as a newly
// added file: it is flagged conflicting so the Packer's relocation
// phase assigns it a sector range.
func FromDirectory(dir string) (*DiscModel, *dfserr.Warnings, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, nil, dfserr.InputMissingf("unpack directory %q does not exist", dir)
	}
	if !info.IsDir() {
		return nil, nil, dfserr.InputMissingf("%q is not a directory", dir)
	}

	warnings := &dfserr.Warnings{}
	m := NewDiscModel()

	title, serial, boot, w, err := readThisDiskInf(dir)
	if err != nil {
		return nil, nil, err
	}
	warnings.Merge(w)
	m.Title, m.Serial, m.BootOption = title, serial, boot

	declaredSectors, _, _, w, err := readThisDiskInf2(dir)
	if err != nil {
		return nil, nil, err
	}
	warnings.Merge(w)
	m.DeclaredSectors = declaredSectors

	tail0, tail1, sectors, trailing, w, err := readEmptyInf(dir)
	if err != nil {
		return nil, nil, err
	}
	warnings.Merge(w)
	m.CatalogueTail0, m.CatalogueTail1, m.Trailing = tail0, tail1, trailing

	entries, w, err := readEntries(dir)
	if err != nil {
		return nil, nil, err
	}
	warnings.Merge(w)
	if len(entries) > MaxCatalogueEntries {
		return nil, nil, dfserr.FormatDefectf("directory %q describes %d files; DFS catalogues hold at most %d", dir, len(entries), MaxCatalogueEntries)
	}
	m.Entries = entries

	// The free-sector map describes the disc as it stood when the
	// sidecars were written, so ownership is computed from each entry's
	// recorded length, not its current one: a grown file's extra
	// sectors must still carry their preserved ..Empty.inf content for
	// the Packer to fold into the file's new slack, and a shrunk file's
	// vacated sectors are the Packer's to free, not this reader's.
	recorded := make([]*Entry, 0, len(entries))
	for _, e := range entries {
		if e.StartSector >= FirstDataSector && e.RecordedLength > 0 {
			recorded = append(recorded, &Entry{StartSector: e.StartSector, Length: e.RecordedLength})
		}
	}
	for _, s := range unusedSectors(recorded, declaredSectors) {
		if raw, ok := sectors[s]; ok {
			m.FreeSectors[s] = sectorCellFromHex(raw)
			continue
		}
		warnings.Add("sector %03X has no recorded content in ..Empty.inf; assuming blank", s)
		m.FreeSectors[s] = &SectorCell{Bytes: make([]byte, SectorLen)}
	}

	return m, warnings, nil
}

// sectorCellFromHex interprets a ..Empty.inf sector entry: a
// zero-length value marks a sector that was physically absent from
// the source SSD (the disc had been cropped short of its declared
// size) and is preserved as such so the Packer's cropped-disc
// handling can promote it to blank during expansion; a full 256-byte
// value is present content.
func sectorCellFromHex(raw []byte) *SectorCell {
	if len(raw) == 0 {
		return &SectorCell{Bytes: make([]byte, SectorLen), Absent: true}
	}
	if len(raw) == SectorLen {
		return &SectorCell{Bytes: raw}
	}
	out := make([]byte, SectorLen)
	copy(out, raw)
	return &SectorCell{Bytes: out}
}

func readThisDiskInf(dir string) (string, byte, types.BootOption, *dfserr.Warnings, error) {
	path := filepath.Join(dir, sidecarInfName(thisDiskPayload))
	data, err := os.ReadFile(path)
	if err != nil {
		return "", 0, types.BootNone, nil, dfserr.InputMissingf("cannot read %s: %v", path, err)
	}
	title, serial, boot, w, err := ParseThisDiskInf(data)
	return title, serial, boot, w, err
}

func readThisDiskInf2(dir string) (int, int, int, *dfserr.Warnings, error) {
	path := filepath.Join(dir, sidecarInf2Name(thisDiskPayload))
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, 0, nil, dfserr.InputMissingf("cannot read %s: %v", path, err)
	}
	return ParseThisDiskInf2(data)
}

func readEmptyInf(dir string) ([]byte, []byte, map[int][]byte, []byte, *dfserr.Warnings, error) {
	path := filepath.Join(dir, sidecarInfName(emptyPayload))
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, nil, nil, nil, dfserr.InputMissingf("cannot read %s: %v", path, err)
	}
	return ParseEmptyInf(data)
}

// readEntries walks dir for payload files ("<dir-char>.<name>") and
// pairs each with its ".inf"/".inf2" sidecars, in catalogue order.
func readEntries(dir string) ([]*Entry, *dfserr.Warnings, error) {
	warnings := &dfserr.Warnings{}
	des, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, pkgerrors.Wrapf(err, "listing %s", dir)
	}

	var entries []*Entry
	nextCatIndex := 0
	for _, de := range des {
		name := de.Name()
		if de.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		idx := strings.IndexByte(name, '.')
		if idx != 1 {
			warnings.Add("ignoring file %q: payload names must be a single directory character, a dot, and a leaf name", name)
			continue
		}
		dirChar, leaf := name[0], name[2:]
		if len(leaf) == 0 || len(leaf) > 7 {
			warnings.Add("ignoring file %q: DFS names are 1-7 characters", name)
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, nil, pkgerrors.Wrapf(err, "reading payload %s", name)
		}

		e := &Entry{
			Name: leaf,
			Dir:  dirChar,
			Data: data,
		}
		e.Length = uint32(len(data))

		infPath := filepath.Join(dir, sidecarInfName(name))
		inf2Path := filepath.Join(dir, sidecarInf2Name(name))
		infData, infErr := os.ReadFile(infPath)
		inf2Data, inf2Err := os.ReadFile(inf2Path)
		if infErr != nil || inf2Err != nil {
			warnings.Add("file %q has no matching .inf/.inf2 sidecar; treating as a new file needing placement", name)
			e.StartSector = -1
			e.CatIndex = nextCatIndex
			nextCatIndex++
			entries = append(entries, e)
			continue
		}

		load, exec, locked, w, err := ParseEntryInf(infData)
		if err != nil {
			return nil, nil, err
		}
		warnings.Merge(w)
		e.LoadAddress, e.ExecAddress, e.Locked = load, exec, locked

		start, length, catIndex, after, w, err := ParseEntryInf2(inf2Data)
		if err != nil {
			return nil, nil, err
		}
		warnings.Merge(w)
		e.StartSector = start
		e.RecordedLength = uint32(length)
		e.CatIndex = catIndex
		e.Slack = after
		if catIndex >= nextCatIndex {
			nextCatIndex = catIndex + 1
		}
		entries = append(entries, e)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CatIndex < entries[j].CatIndex
	})
	for i, e := range entries {
		e.CatIndex = i
	}
	return entries, warnings, nil
}
