// Copyright © 2016 Zellyn Hunter <zellyn@gmail.com>

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bbcmicro/dfstool/dfs"
	"github.com/bbcmicro/dfstool/dfserr"
	"github.com/bbcmicro/dfstool/helpers"
	"github.com/bbcmicro/dfstool/types"
)

var (
	packExpand  bool
	packCompact bool
	packForce   bool
)

// packCmd represents the pack command: SidecarCodec -> DirImage ->
// DiscModel -> Packer -> SsdWriter.
var packCmd = &cobra.Command{
	Use:   "pack <dir> <image>",
	Short: "Pack a directory back into an SSD disc image",
	Long: `Pack a directory previously produced by "dfstool unpack"
back into an SSD disc image, fitting any files that grew, shrank, or
were added back onto the disc.

By default, when files no longer fit, dfstool asks whether to compact
(relocate everything contiguously) or expand (400 -> 800 sectors);
--compact and --expand pick one without asking.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPack(args[0], args[1])
	},
}

func init() {
	packCmd.Flags().BoolVar(&packExpand, "expand", false, "always expand to 800 sectors rather than compacting")
	packCmd.Flags().BoolVar(&packCompact, "compact", false, "always compact before falling back to expansion")
	packCmd.Flags().BoolVarP(&packForce, "force", "f", false, "overwrite the output image if it already exists")
	RootCmd.AddCommand(packCmd)
}

func runPack(input, output string) error {
	if _, err := os.Stat(input); err != nil {
		return dfserr.InputMissingf("input directory %q doesn't exist", input)
	}

	model, warnings, err := dfs.FromDirectory(input)
	if err != nil {
		return err
	}
	if globals.Debug > 0 {
		for _, msg := range warnings.Messages() {
			fmt.Fprintf(os.Stderr, "WARNING: %s\n", msg)
		}
	}

	policy := expandPolicy()
	if err := dfs.NewPacker(model, policy, globals.Debug).Fit(); err != nil {
		return err
	}

	out, err := dfs.NewSsdWriter(model).Render()
	if err != nil {
		return err
	}
	if output != "-" && !packForce {
		if _, statErr := os.Stat(output); statErr == nil {
			return dfserr.OutputConflictf("output %q already exists; use --force (-f) to overwrite", output)
		}
	}
	if err := helpers.WriteOutput(output, out, true); err != nil {
		return err
	}
	if globals.Debug > 0 {
		fmt.Fprintf(os.Stderr, "INFO: %s packed to %s\n", input, output)
	}
	return nil
}

func expandPolicy() types.ExpandPolicy {
	switch {
	case packExpand:
		return types.AlwaysExpand{}
	case packCompact:
		return types.AlwaysCompact{}
	default:
		return newAskPolicy()
	}
}
