package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	profilesCmd := &cobra.Command{Use: "profiles", Short: "Directory profile operations"}

	var displayName, email string
	putCmd := &cobra.Command{
		Use:   "put USER_ID",
		Short: "Create or update a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]string{"userId": args[0], "displayName": displayName}
			if email != "" {
				payload["email"] = email
			}
			data, err := doPutJSON(apiFlag+"/api/profiles", payload)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	putCmd.Flags().StringVar(&displayName, "name", "", "Display name (required)")
	putCmd.Flags().StringVar(&email, "email", "", "Email address")
	_ = putCmd.MarkFlagRequired("name")
	profilesCmd.AddCommand(putCmd)

	getCmd := &cobra.Command{
		Use:   "get USER_ID",
		Short: "Get a profile by user ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doGet(fmt.Sprintf("%s/api/profiles/%s", apiFlag, args[0]))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	profilesCmd.AddCommand(getCmd)

	rootCmd.AddCommand(profilesCmd)
}
