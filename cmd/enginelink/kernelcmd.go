package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/c360/enginelink/kernel"
)

var kernelModulePath string

var kernelCmd = &cobra.Command{
	Use:   "kernel <command-file>",
	Short: "Run a command through the embedded compute kernel",
	Long:  "Instantiates the configured wasm kernel module and hands it the serialized command from the given file. The kernel may call back out to the remote engine while computing; its serialized result is printed as extended JSON.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		command, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read command: %w", err)
		}

		rt, err := newRuntime()
		if err != nil {
			return err
		}
		defer rt.close()

		modulePath := kernelModulePath
		if modulePath == "" {
			modulePath = rt.cfg.Kernel.ModulePath
		}
		if modulePath == "" {
			return fmt.Errorf("no kernel module configured; set kernel.module_path or --module")
		}

		k, err := kernel.Load(cmd.Context(), modulePath, rt.client, kernel.Options{
			MemoryLimitPages: rt.cfg.Kernel.MemoryLimitPages,
			Logger:           rt.logger,
		})
		if err != nil {
			return err
		}
		defer func() { _ = k.Close(cmd.Context()) }()

		result, err := k.Invoke(cmd.Context(), command)
		if err != nil {
			return err
		}
		if len(result) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "(no result)")
			return nil
		}

		text, err := bson.MarshalExtJSONIndent(bson.Raw(result), false, false, "", "  ")
		if err != nil {
			return fmt.Errorf("render result: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(text))
		return nil
	},
}

func init() {
	kernelCmd.Flags().StringVar(&kernelModulePath, "module", "", "path to the wasm kernel module (overrides config)")
	rootCmd.AddCommand(kernelCmd)
}
