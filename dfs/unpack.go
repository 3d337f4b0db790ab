// Copyright © 2016 Zellyn Hunter <zellyn@gmail.com>

package dfs

import (
	"os"
	"path/filepath"

	pkgerrors "github.com/pkg/errors"

	"github.com/bbcmicro/dfstool/dfserr"
)

// Unpacker writes a DiscModel out as a directory of extracted files
// plus the sidecar metadata SidecarCodec understands, the inverse of
// FromDirectory.
type Unpacker struct {
	model *DiscModel
}

// NewUnpacker wraps a DiscModel for unpacking.
func NewUnpacker(model *DiscModel) *Unpacker {
	return &Unpacker{model: model}
}

// Unpack writes the model into dir, creating it if necessary. It
// refuses if dir already exists and is non-empty, or exists as a
// plain file.
func (u *Unpacker) Unpack(dir string) error {
	if info, err := os.Stat(dir); err == nil {
		if !info.IsDir() {
			return dfserr.OutputConflictf("%q exists and is not a directory", dir)
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			return pkgerrors.Wrapf(err, "reading %s", dir)
		}
		if len(entries) > 0 {
			return dfserr.OutputConflictf("directory %q already exists and is not empty", dir)
		}
	} else if err := os.MkdirAll(dir, 0777); err != nil {
		return pkgerrors.Wrapf(err, "creating %s", dir)
	}

	m := u.model
	ssdSize := m.DeclaredSectors*SectorLen + len(m.Trailing)

	if err := writeSidecar(dir, sidecarInfName(thisDiskPayload), WriteThisDiskInf(m.Title, m.Serial, m.BootOption)); err != nil {
		return err
	}
	if err := writeSidecar(dir, sidecarInf2Name(thisDiskPayload), WriteThisDiskInf2(m.DeclaredSectors, ssdSize, len(m.Entries))); err != nil {
		return err
	}

	freeHex := make(map[int][]byte, len(m.FreeSectors))
	for s, cell := range m.FreeSectors {
		if cell.Absent {
			freeHex[s] = nil
			continue
		}
		freeHex[s] = cell.Bytes
	}
	if err := writeSidecar(dir, sidecarInfName(emptyPayload), WriteEmptyInf(m.CatalogueTail0, m.CatalogueTail1, freeHex, m.Trailing)); err != nil {
		return err
	}

	for _, e := range m.Entries {
		payload := PayloadName(e.Dir, e.Name)
		if err := writeSidecar(dir, payload, e.Data); err != nil {
			return err
		}
		if err := writeSidecar(dir, sidecarInfName(payload), WriteEntryInf(e)); err != nil {
			return err
		}
		if err := writeSidecar(dir, sidecarInf2Name(payload), WriteEntryInf2(e)); err != nil {
			return err
		}
	}

	return nil
}

func writeSidecar(dir, name string, data []byte) error {
	return pkgerrors.Wrapf(os.WriteFile(filepath.Join(dir, name), data, 0666), "writing %s", name)
}
