package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/c360/enginelink/protocol"
)

var execID string

var execCmd = &cobra.Command{
	Use:   "exec [file]",
	Short: "Execute one command against the engine",
	Long:  "Reads a JSON command body from the given file (or stdin when the argument is omitted or '-'), sends it to the engine, and prints the decoded response as extended JSON.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := readCommandBody(args)
		if err != nil {
			return err
		}

		rt, err := newRuntime()
		if err != nil {
			return err
		}
		defer rt.close()

		resp, err := rt.client.Execute(cmd.Context(), protocol.CommandRequest{
			ID:      execID,
			Command: body,
		})
		if err != nil {
			return err
		}
		return printResponse(cmd.OutOrStdout(), resp)
	},
}

var batchCmd = &cobra.Command{
	Use:   "batch <file>...",
	Short: "Execute several commands as one batch",
	Long:  "Reads one JSON command body per file, sends them as a single batch request, and prints each sub-command's outcome. Exits non-zero if any sub-command failed.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		commands := make([]protocol.CommandRequest, 0, len(args))
		for _, path := range args {
			body, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read command %s: %w", path, err)
			}
			if !json.Valid(body) {
				return fmt.Errorf("command %s is not valid JSON", path)
			}
			commands = append(commands, protocol.CommandRequest{Command: body})
		}

		rt, err := newRuntime()
		if err != nil {
			return err
		}
		defer rt.close()

		results, err := rt.client.ExecuteBatch(cmd.Context(), protocol.BatchRequest{Commands: commands})
		if err != nil {
			return err
		}

		var failed int
		out := cmd.OutOrStdout()
		for i, result := range results {
			if result.Err != nil {
				failed++
				fmt.Fprintf(out, "%s\t%s\tERROR\t%v\n", args[i], result.ID, result.Err)
				continue
			}
			fmt.Fprintf(out, "%s\t%s\tOK\n", args[i], result.ID)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d batch commands failed", failed, len(results))
		}
		return nil
	},
}

func readCommandBody(args []string) (json.RawMessage, error) {
	var data []byte
	var err error
	if len(args) == 0 || args[0] == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return nil, fmt.Errorf("read command body: %w", err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("command body is not valid JSON")
	}
	return data, nil
}

func printResponse(w io.Writer, resp *protocol.Response) error {
	text, err := bson.MarshalExtJSONIndent(resp.Raw, false, false, "", "  ")
	if err != nil {
		return fmt.Errorf("render response: %w", err)
	}
	_, err = fmt.Fprintln(w, string(text))
	return err
}

func init() {
	execCmd.Flags().StringVar(&execID, "id", "", "explicit correlation id (derived when empty)")
	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(batchCmd)
}
