// Copyright © 2016 Zellyn Hunter <zellyn@gmail.com>

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bbcmicro/dfstool/dfs"
)

// unpackCmd represents the unpack command: SsdImage -> DiscModel ->
// Unpacker.
var unpackCmd = &cobra.Command{
	Use:   "unpack <image> <dir>",
	Short: "Unpack an SSD disc image into a directory",
	Long: `Unpack an SSD disc image into a directory of extracted
files and sidecar metadata, ready to be packed back into a disc image
with "dfstool pack".`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runUnpack(args[0], args[1])
	},
}

func init() {
	RootCmd.AddCommand(unpackCmd)
}

func runUnpack(input, output string) error {
	model, err := loadSsdModel(input)
	if err != nil {
		return err
	}
	if globals.Debug > 1 {
		fmt.Print(model.Info(globals.Debug - 2))
	}
	if err := dfs.NewUnpacker(model).Unpack(output); err != nil {
		return err
	}
	if globals.Debug > 0 {
		fmt.Fprintf(os.Stderr, "INFO: %s unpacked to %s\n", input, output)
	}
	return nil
}
