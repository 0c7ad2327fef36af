package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	participantsCmd := &cobra.Command{Use: "participants", Short: "Participant operations"}

	listCmd := &cobra.Command{
		Use:   "list MEETING_ID",
		Short: "List resolved participants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doGet(fmt.Sprintf("%s/api/meetings/%s/participants", apiFlag, args[0]))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	participantsCmd.AddCommand(listCmd)

	muteCmd := &cobra.Command{
		Use:   "mute MEETING_ID USER_ID",
		Short: "Mute a participant (host only)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := doPutJSON(fmt.Sprintf("%s/api/meetings/%s/participants/%s/mute", apiFlag, args[0], args[1]),
				map[string]bool{"muted": true})
			return err
		},
	}
	participantsCmd.AddCommand(muteCmd)

	unmuteCmd := &cobra.Command{
		Use:   "unmute MEETING_ID USER_ID",
		Short: "Unmute a participant (host only)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := doPutJSON(fmt.Sprintf("%s/api/meetings/%s/participants/%s/mute", apiFlag, args[0], args[1]),
				map[string]bool{"muted": false})
			return err
		},
	}
	participantsCmd.AddCommand(unmuteCmd)

	removeCmd := &cobra.Command{
		Use:   "remove MEETING_ID USER_ID",
		Short: "Remove a participant (host only; transcript history is kept)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := doDelete(fmt.Sprintf("%s/api/meetings/%s/participants/%s", apiFlag, args[0], args[1]))
			return err
		},
	}
	participantsCmd.AddCommand(removeCmd)

	rootCmd.AddCommand(participantsCmd)
}
