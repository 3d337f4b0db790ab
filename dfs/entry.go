// Copyright © 2016 Zellyn Hunter <zellyn@gmail.com>

package dfs

import "fmt"

// Entry is a single DFS catalogue entry together with the bytes it
// owns: its payload and the slack left over in its last sector.
//
// RecordedLength, and the fitted/conflicting state below, only matter
// during packing: they record what the sidecar (or, for an
// SSD-sourced model, the entry itself) said before the Packer ran, so
// the fit phase can tell whether a file grew, shrank, or is
// unchanged. A freshly-read SSD model always has RecordedLength ==
// Length and is already fitted.
type Entry struct {
	Name   string
	Dir    byte
	Locked bool

	LoadAddress uint32
	ExecAddress uint32

	// StartSector is the entry's desired sector before packing, and
	// its final, fitted sector afterwards.
	StartSector int

	// Length is the entry's current byte length. Data is always
	// exactly this many bytes.
	Length uint32
	Data   []byte

	// Slack holds the bytes that fill out the entry's last sector
	// past Length. For a freshly-read SSD model it is the preserved
	// original bytes; the Packer recomputes it whenever Length
	// changes or the entry moves.
	Slack []byte

	// CatIndex is the entry's position in the catalogue (0-based).
	CatIndex int

	// RecordedLength is the length the sidecar (or prior catalogue)
	// last recorded for this entry; see the Packer fit phase.
	RecordedLength uint32

	fitted      bool
	conflicting bool
}

// SectorCount returns the number of 256-byte sectors Length occupies.
func (e *Entry) SectorCount() int {
	return ceilDiv(int(e.Length), SectorLen)
}

// EndSector returns the sector index one past the entry's last used
// sector.
func (e *Entry) EndSector() int {
	return e.StartSector + e.SectorCount()
}

// LastSector returns the entry's last used sector. Only meaningful
// when Length > 0.
func (e *Entry) LastSector() int {
	if e.Length == 0 {
		return e.StartSector
	}
	return e.StartSector + (int(e.Length)-1)/SectorLen
}

func (e *Entry) oldSectorCount() int {
	return ceilDiv(int(e.RecordedLength), SectorLen)
}

// Info renders the entry the way `*INFO` does: "dir.name L load exec
// length start", with the name padded to 7 characters and the numeric
// fields in upper-case hex.
func (e *Entry) Info() string {
	lock := " "
	if e.Locked {
		lock = "L"
	}
	return fmt.Sprintf("%c.%-7s %s %06X %06X %06X %03X",
		e.Dir, e.Name, lock, e.LoadAddress, e.ExecAddress, e.Length, e.StartSector)
}

// highField packs a 24-bit address's top byte into the 2-bit field
// DFS catalogue entries use: 0xFF (the usual "no extra address bits"
// filler for a 16-bit BBC address) sign-extends to 0b11; any other
// top byte is stored verbatim in the low 2 bits.
func highField(addr uint32) byte {
	top := byte(addr >> 16)
	if top == 0xFF {
		return 0x3
	}
	return top & 0x3
}

// highFromField is the inverse of highField.
func highFromField(field byte) uint32 {
	if field&0x3 == 0x3 {
		return 0xFF
	}
	return uint32(field & 0x3)
}
