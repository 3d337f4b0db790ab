// Copyright © 2016 Zellyn Hunter <zellyn@gmail.com>

package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/bbcmicro/dfstool/types"
)

// askPolicy is the interactive types.ExpandPolicy: it prompts the
// user on stdin/stderr for whether to compact or expand, the
// CLI-only policy the dfs package's injected-strategy design (see
// types.ExpandPolicy) was built to keep out of the core. When stdin
// isn't a terminal it falls back to AlwaysCompact so batch/scripted
// runs never block on input.
type askPolicy struct {
	reader *bufio.Reader
}

func newAskPolicy() types.ExpandPolicy {
	if info, err := os.Stdin.Stat(); err != nil || info.Mode()&os.ModeCharDevice == 0 {
		return types.AlwaysCompact{}
	}
	return &askPolicy{reader: bufio.NewReader(os.Stdin)}
}

// Decide prompts once per call; answering "e" expands, anything else
// (including a read error) compacts, falling back to expand once
// compaction has already been tried and failed.
func (a *askPolicy) Decide(sectorsShort int, alreadyCompacted bool) types.FitOutcome {
	if alreadyCompacted {
		fmt.Fprintln(os.Stderr, "INFO: compaction alone wasn't enough; expanding the disc")
		return types.FitExpand
	}
	fmt.Fprintf(os.Stderr, "Disc is full by %d sector(s). (c)ompact or (e)xpand to 800 sectors? [c] ", sectorsShort)
	line, err := a.reader.ReadString('\n')
	if err != nil {
		return types.FitCompact
	}
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "e") {
		return types.FitExpand
	}
	return types.FitCompact
}
