// Copyright © 2016 Zellyn Hunter <zellyn@gmail.com>

package dfs

import "fmt"

// Sidecar and payload naming: a catalogue entry with directory char
// dir and name "name" is unpacked to a payload file "dir.name" and
// sidecars ".dir.name.inf" / ".dir.name.inf2". The disc-level and
// free-sector sidecars reuse the same rule with the synthetic
// directory-less names ".THIS_DISK" and ".Empty".
const (
	thisDiskPayload = ".THIS_DISK"
	emptyPayload    = ".Empty"
)

// PayloadName returns the on-disk filename for an entry's raw bytes.
func PayloadName(dir byte, name string) string {
	return fmt.Sprintf("%c.%s", dir, name)
}

func sidecarInfName(payload string) string  { return "." + payload + ".inf" }
func sidecarInf2Name(payload string) string { return "." + payload + ".inf2" }
