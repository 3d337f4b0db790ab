// Copyright © 2016 Zellyn Hunter <zellyn@gmail.com>

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bbcmicro/dfstool/dfs"
	"github.com/bbcmicro/dfstool/dfserr"
	"github.com/bbcmicro/dfstool/helpers"
)

// catalogCmd represents the cat command, used to catalogue an SSD
// image without converting it.
var catalogCmd = &cobra.Command{
	Use:     "cat <image>",
	Aliases: []string{"catalog", "ls"},
	Short:   "List the contents of an SSD disc image",
	Long: `Catalog an SSD disc image, printing its title, serial
number, boot option and file list. Repeat -v up to three times for
increasing detail, down to hex dumps of every preserved slack and
unused-sector region.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCat(args[0])
	},
}

func init() {
	RootCmd.AddCommand(catalogCmd)
}

func runCat(input string) error {
	model, err := loadSsdModel(input)
	if err != nil {
		return err
	}
	fmt.Print(model.Info(globals.Debug))
	return nil
}

// runCatAny catalogues either an SSD image or an unpacked sidecar
// directory, for the bare "dfstool <input>" and --cat invocations.
func runCatAny(input string, isDir bool) error {
	if !isDir {
		return runCat(input)
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
	fmt.Print(model.Info(globals.Debug))
	return nil
}

// loadSsdModel reads and parses an SSD image, translating a missing
// file into the tagged InputMissing error kind.
func loadSsdModel(input string) (*dfs.DiscModel, error) {
	if input != "-" {
		if _, err := os.Stat(input); err != nil {
			return nil, dfserr.InputMissingf("input %q doesn't exist", input)
		}
	}
	data, err := helpers.FileContentsOrStdIn(input)
	if err != nil {
		return nil, err
	}
	return dfs.FromSSDBytes(data)
}
