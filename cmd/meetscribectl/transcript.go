package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	transcriptCmd := &cobra.Command{Use: "transcript", Short: "Transcript operations"}

	var speakerName string
	appendCmd := &cobra.Command{
		Use:   "append MEETING_ID TEXT",
		Short: "Append a finalized segment",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]interface{}{"text": args[1]}
			if speakerName != "" {
				payload["speakerName"] = speakerName
			}
			data, err := doPostJSON(fmt.Sprintf("%s/api/meetings/%s/segments", apiFlag, args[0]), payload)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	appendCmd.Flags().StringVar(&speakerName, "speaker", "", "Speaker label (defaults to your display name)")
	transcriptCmd.AddCommand(appendCmd)

	listCmd := &cobra.Command{
		Use:   "list MEETING_ID",
		Short: "List transcript segments in order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doGet(fmt.Sprintf("%s/api/meetings/%s/segments", apiFlag, args[0]))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	transcriptCmd.AddCommand(listCmd)

	rootCmd.AddCommand(transcriptCmd)
}
