// Copyright © 2016 Zellyn Hunter <zellyn@gmail.com>

package dfs

import (
	"testing"

	"github.com/bbcmicro/dfstool/types"
)

func TestParseThisDiskInfRoundtrip(t *testing.T) {
	data := WriteThisDiskInf("MYDISC", 17, types.BootExec)
	title, serial, boot, warnings, err := ParseThisDiskInf(data)
	if err != nil {
		t.Fatalf("ParseThisDiskInf: %v", err)
	}
	if warnings.Any() {
		t.Errorf("unexpected warnings: %v", warnings.Messages())
	}
	if title != "MYDISC" || serial != 17 || boot != types.BootExec {
		t.Errorf("got (%q, %d, %v), want (%q, %d, %v)", title, serial, boot, "MYDISC", 17, types.BootExec)
	}
}

func TestParseThisDiskInfWarnsOnUnrecognisedLine(t *testing.T) {
	data := []byte("*OPT4,3\nT: FOO, S: 1\nsomething unexpected\n")
	_, _, _, warnings, err := ParseThisDiskInf(data)
	if err != nil {
		t.Fatalf("ParseThisDiskInf: %v", err)
	}
	if !warnings.Any() {
		t.Fatal("expected a warning for the unrecognised line")
	}
}

func TestParseThisDiskInf2Roundtrip(t *testing.T) {
	data := WriteThisDiskInf2(0x190, 0x19000, 16)
	sectors, size, catLen, warnings, err := ParseThisDiskInf2(data)
	if err != nil {
		t.Fatalf("ParseThisDiskInf2: %v", err)
	}
	if warnings.Any() {
		t.Errorf("unexpected warnings: %v", warnings.Messages())
	}
	if sectors != 0x190 || size != 0x19000 || catLen != 16 {
		t.Errorf("got (%#x, %d, %d), want (0x190, %d, 16)", sectors, size, catLen, 0x19000)
	}
}

func TestParseEmptyInfRoundtrip(t *testing.T) {
	tail0 := []byte{0x01, 0x02, 0x03}
	tail1 := []byte{0x04, 0x05}
	sectors := map[int][]byte{
		5:  {0xAA, 0xBB},
		10: {},
	}
	trailing := []byte{0xFF}

	data := WriteEmptyInf(tail0, tail1, sectors, trailing)
	outTail0, outTail1, outSectors, outTrailing, warnings, err := ParseEmptyInf(data)
	if err != nil {
		t.Fatalf("ParseEmptyInf: %v", err)
	}
	if warnings.Any() {
		t.Errorf("unexpected warnings: %v", warnings.Messages())
	}
	if string(outTail0) != string(tail0) || string(outTail1) != string(tail1) {
		t.Errorf("tails = (%x, %x), want (%x, %x)", outTail0, outTail1, tail0, tail1)
	}
	if string(outTrailing) != string(trailing) {
		t.Errorf("trailing = %x, want %x", outTrailing, trailing)
	}
	if len(outSectors[5]) != 2 || outSectors[5][0] != 0xAA {
		t.Errorf("sector 5 = %x, want aabb", outSectors[5])
	}
	if len(outSectors[10]) != 0 {
		t.Errorf("sector 10 = %x, want empty (absent marker)", outSectors[10])
	}
}

func TestParseEntryInfRoundtrip(t *testing.T) {
	e := &Entry{Name: "FILE", Dir: '$', LoadAddress: 0x1900, ExecAddress: 0x1A00, Locked: true}
	data := WriteEntryInf(e)
	load, exec, locked, warnings, err := ParseEntryInf(data)
	if err != nil {
		t.Fatalf("ParseEntryInf: %v", err)
	}
	if warnings.Any() {
		t.Errorf("unexpected warnings: %v", warnings.Messages())
	}
	if load != 0x1900 || exec != 0x1A00 || !locked {
		t.Errorf("got (%#x, %#x, %v), want (0x1900, 0x1a00, true)", load, exec, locked)
	}
}

func TestParseEntryInf2Roundtrip(t *testing.T) {
	e := &Entry{StartSector: 0x40, Length: 0x1D0, CatIndex: 3, Slack: []byte{0x00, 0x11}}
	data := WriteEntryInf2(e)
	start, length, catIndex, after, warnings, err := ParseEntryInf2(data)
	if err != nil {
		t.Fatalf("ParseEntryInf2: %v", err)
	}
	if warnings.Any() {
		t.Errorf("unexpected warnings: %v", warnings.Messages())
	}
	if start != 0x40 || length != 0x1D0 || catIndex != 3 || string(after) != string(e.Slack) {
		t.Errorf("got (%#x, %d, %d, %x), want (0x40, 0x1d0, 3, %x)", start, length, catIndex, after, e.Slack)
	}
}

// TestParseEntryInf2OddHexWarns: an odd-length After: hex string is
// zero-padded with a warning rather than rejected.
func TestParseEntryInf2OddHexWarns(t *testing.T) {
	data := []byte("Start sector:002\nLength:1\nCatalogue index:0\nAfter:abc\n")
	_, _, _, after, warnings, err := ParseEntryInf2(data)
	if err != nil {
		t.Fatalf("ParseEntryInf2: %v", err)
	}
	if !warnings.Any() {
		t.Fatal("expected a warning for the odd-length hex string")
	}
	want := []byte{0xab, 0xc0}
	if string(after) != string(want) {
		t.Errorf("After = %x, want %x (zero-padded)", after, want)
	}
}
