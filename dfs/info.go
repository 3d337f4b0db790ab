// Copyright © 2016 Zellyn Hunter <zellyn@gmail.com>

package dfs

import (
	"fmt"
	"sort"
	"strings"
)

// Info renders an ever more detailed catalogue listing as verbose
// climbs from 0 (a bare summary in the style of *CAT) to 3 (plus hex
// dumps of every preserved slack/unused/trailing region).
func (m *DiscModel) Info(verbose int) string {
	var b strings.Builder
	ssdSize := m.DeclaredSectors*SectorLen + len(m.Trailing)

	if verbose > 0 {
		fmt.Fprintf(&b, "Title: %s\nSerial no:%d\n", m.Title, m.Serial)
	} else {
		fmt.Fprintf(&b, "%s (%d)\n", m.Title, m.Serial)
	}

	if verbose > 0 {
		fmt.Fprintf(&b, "Total sectors:0x%03x (%dK)\n", m.DeclaredSectors, m.DeclaredSectors*SectorLen/1024)
	}
	if verbose > 1 && ssdSize != m.DeclaredSectors*SectorLen {
		extra := ""
		if ssdSize%SectorLen != 0 {
			extra = fmt.Sprintf(" with %d extra byte(s)", ssdSize%SectorLen)
		}
		fmt.Fprintf(&b, "INFO: Actual size 0x%03x sectors%s\n", ssdSize/SectorLen, extra)
	}

	fmt.Fprintf(&b, "Option %d (%s)\n", int(m.BootOption), m.BootOption)

	cat := append([]*Entry(nil), m.Entries...)
	if verbose == 0 {
		sort.SliceStable(cat, func(i, j int) bool {
			return string(cat[i].Dir)+cat[i].Name < string(cat[j].Dir)+cat[j].Name
		})
	}
	for i, e := range cat {
		if verbose > 0 {
			cropped := ""
			if e.StartSector*SectorLen+int(e.Length) > ssdSize {
				cropped = " cropped!"
			}
			fmt.Fprintf(&b, "File %d: %s%s\n", i+1, e.Info(), cropped)
			if verbose > 2 {
				fmt.Fprintf(&b, "%s\n", outputBin("Additional data: ", e.Slack))
			}
		} else {
			fmt.Fprintf(&b, "%s\n", e.Info())
		}
	}

	if verbose > 2 {
		fmt.Fprintf(&b, "%s\n", outputBin("Unused in sector 0x000: ", m.CatalogueTail0))
		fmt.Fprintf(&b, "%s\n", outputBin("Unused in sector 0x001: ", m.CatalogueTail1))
	}
	if verbose > 1 {
		unused := unusedSectors(m.Entries, m.DeclaredSectors)
		if len(unused) == 0 {
			b.WriteString("All sectors are in use")
		} else {
			b.WriteString("Unused sectors:")
			for _, s := range unused {
				cell := m.FreeSectors[s]
				if cell != nil && cell.Absent {
					break
				}
				if verbose > 2 {
					fmt.Fprintf(&b, "%s", outputBin(fmt.Sprintf("\n- Sector 0x%03x: ", s), cellBytes(cell)))
				} else {
					fmt.Fprintf(&b, "0x%03x ", s)
				}
			}
			if first, ok := firstAbsentSector(m); ok {
				if first+1 >= m.DeclaredSectors {
					fmt.Fprintf(&b, "\nSector 0x%03x cropped", first)
				} else {
					fmt.Fprintf(&b, "\nSectors 0x%03x-0x%03x cropped", first, m.DeclaredSectors-1)
				}
			}
			b.WriteString("\n")
		}
	}
	if verbose > 2 {
		if len(m.Trailing) > 0 {
			fmt.Fprintf(&b, "%s\n", outputBin("Data after disc image: ", m.Trailing))
		} else {
			b.WriteString("No data after disc image\n")
		}
	}

	return b.String()
}

func firstAbsentSector(m *DiscModel) (int, bool) {
	for s := FirstDataSector; s < m.DeclaredSectors; s++ {
		if cell, ok := m.FreeSectors[s]; ok && cell.Absent {
			return s, true
		}
	}
	return 0, false
}

func cellBytes(cell *SectorCell) []byte {
	if cell == nil {
		return make([]byte, SectorLen)
	}
	return cell.Bytes
}

// outputBin renders a byte slice as space-separated 16-bit hex groups
// after a heading, or "None" if empty.
func outputBin(heading string, data []byte) string {
	var b strings.Builder
	b.WriteString(heading)
	if len(data) == 0 {
		b.WriteString("None")
		return b.String()
	}
	for len(data) > 1 {
		fmt.Fprintf(&b, "%02x%02x ", data[0], data[1])
		data = data[2:]
	}
	if len(data) == 1 {
		fmt.Fprintf(&b, "%02x", data[0])
	}
	return b.String()
}
