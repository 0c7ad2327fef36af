package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	meetingsCmd := &cobra.Command{Use: "meetings", Short: "Meeting operations"}

	// create
	var title, description, language, scheduledFor string
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a meeting (scheduled when --at is given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]interface{}{"title": title}
			if description != "" {
				payload["description"] = description
			}
			if language != "" {
				payload["language"] = language
			}
			if scheduledFor != "" {
				payload["scheduledFor"] = scheduledFor
			}
			data, err := doPostJSON(apiFlag+"/api/meetings", payload)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	createCmd.Flags().StringVar(&title, "title", "", "Meeting title (required)")
	createCmd.Flags().StringVar(&description, "description", "", "Meeting description")
	createCmd.Flags().StringVar(&language, "language", "", "Transcription language tag, e.g. en-US")
	createCmd.Flags().StringVar(&scheduledFor, "at", "", "Schedule for this RFC3339 time instead of starting now")
	_ = createCmd.MarkFlagRequired("title")
	meetingsCmd.AddCommand(createCmd)

	// get
	getCmd := &cobra.Command{
		Use:   "get MEETING_ID",
		Short: "Get a meeting by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doGet(fmt.Sprintf("%s/api/meetings/%s", apiFlag, args[0]))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	meetingsCmd.AddCommand(getCmd)

	// list
	var phase string
	var deleted bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List meetings",
		RunE: func(cmd *cobra.Command, args []string) error {
			url := apiFlag + "/api/meetings"
			sep := "?"
			if phase != "" {
				url += sep + "phase=" + phase
				sep = "&"
			}
			if deleted {
				url += sep + "deleted=true"
			}
			data, err := doGet(url)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	listCmd.Flags().StringVar(&phase, "phase", "", "Filter by phase: scheduled, active, ended")
	listCmd.Flags().BoolVar(&deleted, "deleted", false, "List archived meetings (admin)")
	meetingsCmd.AddCommand(listCmd)

	// join
	joinCmd := &cobra.Command{
		Use:   "join CODE",
		Short: "Join a meeting by share code or ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doPostJSON(apiFlag+"/api/meetings/join", map[string]string{"code": args[0]})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	meetingsCmd.AddCommand(joinCmd)

	// phase transitions and admin actions share a shape
	for _, action := range []struct {
		use, short, path string
	}{
		{"start MEETING_ID", "Start a scheduled meeting", "start"},
		{"end MEETING_ID", "End a meeting (host only)", "end"},
		{"archive MEETING_ID", "Archive an ended meeting (admin)", "archive"},
		{"restore MEETING_ID", "Restore an archived meeting (admin)", "restore"},
	} {
		action := action
		meetingsCmd.AddCommand(&cobra.Command{
			Use:   action.use,
			Short: action.short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				_, err := doPostJSON(fmt.Sprintf("%s/api/meetings/%s/%s", apiFlag, args[0], action.path), nil)
				return err
			},
		})
	}

	purgeCmd := &cobra.Command{
		Use:   "purge MEETING_ID",
		Short: "Permanently delete an archived meeting (admin, irreversible)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := doDelete(fmt.Sprintf("%s/api/meetings/%s", apiFlag, args[0]))
			return err
		},
	}
	meetingsCmd.AddCommand(purgeCmd)

	// summarize
	summarizeCmd := &cobra.Command{
		Use:   "summarize MEETING_ID",
		Short: "Generate a summary from the transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doPostJSON(fmt.Sprintf("%s/api/meetings/%s/summarize", apiFlag, args[0]), nil)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	meetingsCmd.AddCommand(summarizeCmd)

	// edit-summary
	var overview string
	editSummaryCmd := &cobra.Command{
		Use:   "edit-summary MEETING_ID",
		Short: "Replace the summary overview text (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := doPatchJSON(fmt.Sprintf("%s/api/meetings/%s/summary", apiFlag, args[0]),
				map[string]string{"overview": overview})
			return err
		},
	}
	editSummaryCmd.Flags().StringVar(&overview, "overview", "", "New overview text (required)")
	_ = editSummaryCmd.MarkFlagRequired("overview")
	meetingsCmd.AddCommand(editSummaryCmd)

	rootCmd.AddCommand(meetingsCmd)
}
