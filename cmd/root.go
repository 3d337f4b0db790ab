// Copyright © 2016 Zellyn Hunter <zellyn@gmail.com>

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bbcmicro/dfstool/dfserr"
	"github.com/bbcmicro/dfstool/types"
)

// globals holds the flags shared across every subcommand: the
// verbosity count (0-3) driving both *CAT-style listing detail and
// dfs/cmd's debug tracing.
var globals types.Globals

// rootCat is the --cat/-c flag: list the input's contents without
// converting anything.
var rootCat bool

// RootCmd represents the base command. Called with bare positional
// arguments instead of a subcommand, it dispatches on what the input
// is: an SSD file is catalogued (no output) or unpacked (output
// given), a sidecar directory is catalogued or packed.
var RootCmd = &cobra.Command{
	Use:   "dfstool <input> [output]",
	Short: "Pack and unpack BBC Micro Acorn DFS disc images",
	Long: `dfstool is a round-trip tool for BBC Micro Acorn DFS disc
images (the "SSD" single-sided sector image format).

It catalogues an SSD, unpacks one into a directory of extracted files
plus sidecar metadata, and packs such a directory back into a valid
SSD image, preserving filesystem metadata, unused sector content,
slack padding, and data beyond the declared disc.

Given positional arguments rather than a subcommand, dfstool infers
the direction itself: an SSD input with no output (or with --cat) is
catalogued, an SSD input with an output directory is unpacked, and a
directory input with an output filename is packed.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRoot(args)
	},
	SilenceUsage: true,
}

func init() {
	RootCmd.PersistentFlags().CountVarP(&globals.Debug, "verbose", "v", "increase verbosity (0-3); repeatable")
	RootCmd.Flags().BoolVarP(&rootCat, "cat", "c", false, "list the input's contents without converting")
}

func runRoot(args []string) error {
	input := args[0]
	isDir := false
	if input != "-" {
		info, err := os.Stat(input)
		if err != nil {
			return dfserr.InputMissingf("input %q doesn't exist", input)
		}
		isDir = info.IsDir()
	}

	if rootCat || len(args) == 1 {
		return runCatAny(input, isDir)
	}
	if isDir {
		return runPack(input, args[1])
	}
	return runUnpack(input, args[1])
}

// Execute adds all child commands to the root command and runs it.
// This is called by main.main(). It only needs to happen once.
func Execute() {
	err := RootCmd.Execute()
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, err)
	if dfserr.IsInputMissing(err) {
		os.Exit(2)
	}
	os.Exit(1)
}
