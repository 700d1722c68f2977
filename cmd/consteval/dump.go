package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"consteval/internal/mir"
)

func newDumpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump [flags] <file.cir> [item...]",
		Short: "Print the lowered bodies of a program file",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runDump,
	}
	cmd.Flags().Bool("validate", true, "check the program structure before printing")
	return cmd
}

func runDump(cmd *cobra.Command, args []string) error {
	validate, err := cmd.Flags().GetBool("validate")
	if err != nil {
		return fmt.Errorf("failed to get validate flag: %w", err)
	}
	prog, err := mir.ReadFile(args[0])
	if err != nil {
		return err
	}
	if validate {
		if err := mir.Validate(prog); err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
	}
	for _, name := range args[1:] {
		if _, ok := prog.Lookup(name); !ok {
			return fmt.Errorf("no item named %q in %s", name, args[0])
		}
	}
	return mir.Dump(cmd.OutOrStdout(), prog, mir.DumpOptions{Only: args[1:]})
}
