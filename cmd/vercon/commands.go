package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"vercon/internal/repo"
)

func newCommitCmd() *cobra.Command {
	var comment string
	cmd := &cobra.Command{
		Use:   "commit [comment]",
		Short: "Store all working-tree changes as a new revision",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				comment = args[0]
			}
			r, err := openRepo()
			if err != nil {
				return err
			}
			rev, changed, err := r.Commit(comment)
			if err != nil {
				return err
			}
			if !changed {
				fmt.Println("Nothing to commit.")
				return nil
			}
			fmt.Printf("Committed revision %d.\n", rev)
			return nil
		},
	}
	cmd.Flags().StringVarP(&comment, "message", "m", "", "commit comment")
	return cmd
}

func newListCmd() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the commit log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			out, err := r.List(verbose)
			if err != nil {
				return err
			}
			fmt.Print(out)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "include changed paths per commit")
	return cmd
}

func newRestoreCmd() *cobra.Command {
	var filter string
	cmd := &cobra.Command{
		Use:   "restore [revision]",
		Short: "Rebuild the working tree as of a revision",
		Long: "Rebuild the working tree as of a revision. Without a revision the\n" +
			"current maximum is used, which discards uncommitted changes.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rev := repo.CurrentRevision
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("bad revision %q", args[0])
				}
				rev = n
			}
			if filter == "" {
				filter = viper.GetString("filter")
			}
			r, err := openRepo()
			if err != nil {
				return err
			}
			if err := r.RestoreTo(rev, filter); err != nil {
				return err
			}
			fmt.Println("Restore complete.")
			return nil
		},
	}
	cmd.Flags().StringVarP(&filter, "filter", "f", "", "regular expression selecting files to restore")
	return cmd
}
