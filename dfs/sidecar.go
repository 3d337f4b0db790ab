// Copyright © 2016 Zellyn Hunter <zellyn@gmail.com>

package dfs

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/bbcmicro/dfstool/dfserr"
	"github.com/bbcmicro/dfstool/types"
)

// This file is the SidecarCodec: tolerant readers and plain writers
// for the handful of ".inf"-family text files dfstool scatters
// alongside a file's raw bytes. The sidecar formats are loosely
// structured (mixed comma/space separation, a bare filename token at
// the start of the per-file .inf line) and are routinely hand-edited,
// so parsing is line- or field-oriented rather than a single strict
// grammar, and anything unrecognised becomes a warning rather than a
// parse failure.

func decodeHexTolerant(s string, warnings *dfserr.Warnings, context string) []byte {
	if len(s)%2 != 0 {
		warnings.Add("odd-length hex string in %s; zero-padding", context)
		s += "0"
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		warnings.Add("invalid hex string in %s: %v", context, err)
		return nil
	}
	return b
}

// ParseThisDiskInf reads ..THIS_DISK.inf's boot option and title/serial line.
func ParseThisDiskInf(data []byte) (title string, serial byte, boot types.BootOption, warnings *dfserr.Warnings, err error) {
	warnings = &dfserr.Warnings{}
	bootRe := regexp.MustCompile(`\*OPT4,\s*(\d+)`)
	titleRe := regexp.MustCompile(`T:\s*(.*?),\s*S:\s*(\d+)`)

	bootFound, titleFound := false, false
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if m := bootRe.FindStringSubmatch(line); m != nil {
			n, convErr := strconv.Atoi(m[1])
			if convErr != nil {
				warnings.Add("malformed *OPT4 line %q", line)
				continue
			}
			boot = types.BootOption(n)
			bootFound = true
			continue
		}
		if m := titleRe.FindStringSubmatch(line); m != nil {
			title = m[1]
			n, convErr := strconv.Atoi(m[2])
			if convErr != nil {
				warnings.Add("malformed title/serial line %q", line)
				continue
			}
			serial = byte(n)
			titleFound = true
			continue
		}
		warnings.Add("unrecognised line in ..THIS_DISK.inf: %q", line)
	}
	if !bootFound {
		warnings.Add("missing *OPT4 line in ..THIS_DISK.inf; assuming boot option 0")
	}
	if !titleFound {
		warnings.Add("missing title/serial line in ..THIS_DISK.inf")
	}
	return title, serial, boot, warnings, nil
}

// ParseThisDiskInf2 reads ..THIS_DISK.inf2's declared sector count,
// original SSD file size, and catalogue entry count.
func ParseThisDiskInf2(data []byte) (declaredSectors, ssdSize, catalogueLen int, warnings *dfserr.Warnings, err error) {
	warnings = &dfserr.Warnings{}
	text := string(data)

	if m := regexp.MustCompile(`Sectors:\s*([0-9A-Fa-f]+)`).FindStringSubmatch(text); m != nil {
		n, convErr := strconv.ParseInt(m[1], 16, 32)
		if convErr != nil {
			warnings.Add("malformed Sectors field %q", m[1])
		} else {
			declaredSectors = int(n)
		}
	} else {
		warnings.Add("missing Sectors field in ..THIS_DISK.inf2")
	}
	if m := regexp.MustCompile(`SSD file size:\s*(\d+)`).FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		ssdSize = n
	} else {
		warnings.Add("missing SSD file size field in ..THIS_DISK.inf2")
	}
	if m := regexp.MustCompile(`Catalogue len:\s*(\d+)`).FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		catalogueLen = n
	} else {
		warnings.Add("missing Catalogue len field in ..THIS_DISK.inf2")
	}
	return declaredSectors, ssdSize, catalogueLen, warnings, nil
}

// ParseEmptyInf reads ..Empty.inf's preserved free-sector bytes.
func ParseEmptyInf(data []byte) (tail0, tail1 []byte, sectors map[int][]byte, trailing []byte, warnings *dfserr.Warnings, err error) {
	warnings = &dfserr.Warnings{}
	sectors = map[int][]byte{}

	after0Re := regexp.MustCompile(`^After sector 000:\s*([0-9A-Fa-f]*)$`)
	after1Re := regexp.MustCompile(`^After sector 001:\s*([0-9A-Fa-f]*)$`)
	sectorRe := regexp.MustCompile(`^Sector ([0-9A-Fa-f]{3}):\s*([0-9A-Fa-f]*)$`)
	trailRe := regexp.MustCompile(`^After disc image:\s*([0-9A-Fa-f]*)$`)

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		switch {
		case after0Re.MatchString(line):
			tail0 = decodeHexTolerant(after0Re.FindStringSubmatch(line)[1], warnings, "After sector 000")
		case after1Re.MatchString(line):
			tail1 = decodeHexTolerant(after1Re.FindStringSubmatch(line)[1], warnings, "After sector 001")
		case trailRe.MatchString(line):
			trailing = decodeHexTolerant(trailRe.FindStringSubmatch(line)[1], warnings, "After disc image")
		case sectorRe.MatchString(line):
			m := sectorRe.FindStringSubmatch(line)
			n, convErr := strconv.ParseInt(m[1], 16, 32)
			if convErr != nil {
				warnings.Add("malformed sector number in ..Empty.inf line %q", line)
				continue
			}
			sectors[int(n)] = decodeHexTolerant(m[2], warnings, fmt.Sprintf("sector %s", m[1]))
		default:
			warnings.Add("unrecognised line in ..Empty.inf: %q", line)
		}
	}
	return tail0, tail1, sectors, trailing, warnings, nil
}

// ParseEntryInf reads a per-file .inf sidecar's load/exec address and
// lock flag. The leading "dir.name" token on the line is informational
// only; the caller already knows the filename from the directory
// listing, so it is not validated here.
func ParseEntryInf(data []byte) (load, exec uint32, locked bool, warnings *dfserr.Warnings, err error) {
	warnings = &dfserr.Warnings{}
	text := string(data)

	if m := regexp.MustCompile(`L:\s*([0-9A-Fa-f]+)`).FindStringSubmatch(text); m != nil {
		n, convErr := strconv.ParseUint(m[1], 16, 32)
		if convErr != nil {
			warnings.Add("malformed load address %q", m[1])
		} else {
			load = uint32(n)
		}
	} else {
		warnings.Add("missing load address in .inf file")
	}
	if m := regexp.MustCompile(`E:\s*([0-9A-Fa-f]+)`).FindStringSubmatch(text); m != nil {
		n, convErr := strconv.ParseUint(m[1], 16, 32)
		if convErr != nil {
			warnings.Add("malformed exec address %q", m[1])
		} else {
			exec = uint32(n)
		}
	} else {
		warnings.Add("missing exec address in .inf file")
	}
	if m := regexp.MustCompile(`F:\s*([A-Za-z]*)`).FindStringSubmatch(text); m != nil {
		locked = strings.Contains(strings.ToUpper(m[1]), "L")
	}
	return load, exec, locked, warnings, nil
}

// ParseEntryInf2 reads a per-file .inf2 sidecar's recorded position,
// length, catalogue index, and trailing slack bytes.
func ParseEntryInf2(data []byte) (startSector, length, catIndex int, after []byte, warnings *dfserr.Warnings, err error) {
	warnings = &dfserr.Warnings{}
	startRe := regexp.MustCompile(`^Start sector:\s*([0-9A-Fa-f]+)$`)
	lenRe := regexp.MustCompile(`^Length:\s*(\d+)$`)
	catRe := regexp.MustCompile(`^Catalogue index:\s*(\d+)$`)
	afterRe := regexp.MustCompile(`^After:\s*([0-9A-Fa-f]*)$`)

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		switch {
		case startRe.MatchString(line):
			n, convErr := strconv.ParseInt(startRe.FindStringSubmatch(line)[1], 16, 32)
			if convErr != nil {
				warnings.Add("malformed Start sector line %q", line)
			} else {
				startSector = int(n)
			}
		case lenRe.MatchString(line):
			n, _ := strconv.Atoi(lenRe.FindStringSubmatch(line)[1])
			length = n
		case catRe.MatchString(line):
			n, _ := strconv.Atoi(catRe.FindStringSubmatch(line)[1])
			catIndex = n
		case afterRe.MatchString(line):
			after = decodeHexTolerant(afterRe.FindStringSubmatch(line)[1], warnings, "After")
		default:
			warnings.Add("unrecognised line in .inf2 file: %q", line)
		}
	}
	return startSector, length, catIndex, after, warnings, nil
}

// WriteThisDiskInf renders ..THIS_DISK.inf.
func WriteThisDiskInf(title string, serial byte, boot types.BootOption) []byte {
	return []byte(fmt.Sprintf("*OPT4,%d\nT: %s, S: %d\n", int(boot), title, serial))
}

// WriteThisDiskInf2 renders ..THIS_DISK.inf2.
func WriteThisDiskInf2(declaredSectors, ssdSize, catalogueLen int) []byte {
	return []byte(fmt.Sprintf("Sectors:%03X, SSD file size:%d, Catalogue len:%d\n", declaredSectors, ssdSize, catalogueLen))
}

// WriteEmptyInf renders ..Empty.inf from the preserved catalogue
// tails, the free sectors, and any trailing bytes.
func WriteEmptyInf(tail0, tail1 []byte, sectors map[int][]byte, trailing []byte) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "After sector 000:%s\n", hex.EncodeToString(tail0))
	fmt.Fprintf(&b, "After sector 001:%s\n", hex.EncodeToString(tail1))

	keys := make([]int, 0, len(sectors))
	for k := range sectors {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "Sector %03X:%s\n", k, hex.EncodeToString(sectors[k]))
	}
	fmt.Fprintf(&b, "After disc image:%s\n", hex.EncodeToString(trailing))
	return []byte(b.String())
}

// WriteEntryInf renders a per-file .inf sidecar.
func WriteEntryInf(e *Entry) []byte {
	lock := ""
	if e.Locked {
		lock = "L"
	}
	return []byte(fmt.Sprintf("%c.%s, L:%06X, E:%06X F:%s\n", e.Dir, e.Name, e.LoadAddress, e.ExecAddress, lock))
}

// WriteEntryInf2 renders a per-file .inf2 sidecar.
func WriteEntryInf2(e *Entry) []byte {
	return []byte(fmt.Sprintf("Start sector:%03X\nLength:%d\nCatalogue index:%d\nAfter:%s\n",
		e.StartSector, e.Length, e.CatIndex, hex.EncodeToString(e.Slack)))
}
