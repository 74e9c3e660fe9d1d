package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/ordersync/internal/model"
)

var (
	processID   int64
	processFile string
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Process a single message by id or from a JSON file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if (processID == 0) == (processFile == "") {
			return eris.New("exactly one of --id or --file is required")
		}

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		var msg *model.Message
		if processID != 0 {
			msg, err = e.Store.GetMessage(ctx, processID)
			if err != nil {
				return eris.Wrap(err, "fetch message")
			}
		} else {
			data, err := os.ReadFile(processFile)
			if err != nil {
				return eris.Wrap(err, "read message file")
			}
			msg = &model.Message{}
			if err := json.Unmarshal(data, msg); err != nil {
				return eris.Wrap(err, "parse message file")
			}
			if msg.ID == 0 {
				// File-fed messages are not in the queue yet; ingest them
				// so re-runs and the category backfill have a row.
				id, err := e.Store.InsertMessage(ctx, msg)
				if err != nil {
					return eris.Wrap(err, "ingest message")
				}
				msg.ID = id
			}
		}

		return processMessage(ctx, e, msg)
	},
}

func init() {
	processCmd.Flags().Int64Var(&processID, "id", 0, "message id to process")
	processCmd.Flags().StringVar(&processFile, "file", "", "path to a JSON message file")
	rootCmd.AddCommand(processCmd)
}
