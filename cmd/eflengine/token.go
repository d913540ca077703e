package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/watthive/eflengine/internal/auth"
)

func tokenCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "token",
		Short: "Manage API tokens",
	}

	var name, expires string
	create := &cobra.Command{
		Use:   "create <username>",
		Short: "Issue an API token; the raw value is printed once and never stored",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			u, err := rt.store.GetUserByUsername(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if u == nil {
				return fmt.Errorf("no such user: %s", args[0])
			}

			expiresAt, err := auth.ParseExpirationDuration(expires)
			if err != nil {
				return err
			}

			authSvc, err := auth.NewService(rt.store)
			if err != nil {
				return err
			}
			t, raw, err := authSvc.CreateToken(cmd.Context(), u.ID, name, u.Role, expiresAt)
			if err != nil {
				return err
			}

			exp := "never"
			if t.ExpiresAt != nil {
				exp = t.ExpiresAt.Format("2006-01-02 15:04")
			}
			fmt.Printf("token %q for %s (expires %s):\n%s\n", t.Name, u.Username, exp, raw)
			return nil
		},
	}
	create.Flags().StringVar(&name, "name", "cli", "label for the token")
	create.Flags().StringVar(&expires, "expires", "never", "30d, 12h, 2w, mm/dd/yyyy, or never")

	list := &cobra.Command{
		Use:   "list <username>",
		Short: "List a user's tokens",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			u, err := rt.store.GetUserByUsername(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if u == nil {
				return fmt.Errorf("no such user: %s", args[0])
			}
			tokens, err := rt.store.ListTokens(cmd.Context(), u.ID)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tROLE\tEXPIRES\tLAST USED")
			for _, t := range tokens {
				exp, last := "never", "never"
				if t.ExpiresAt != nil {
					exp = t.ExpiresAt.Format("2006-01-02")
				}
				if t.LastUsedAt != nil {
					last = t.LastUsedAt.Format("2006-01-02 15:04")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", t.ID, t.Name, t.Role, exp, last)
			}
			return w.Flush()
		},
	}

	revoke := &cobra.Command{
		Use:   "revoke <token-id>",
		Short: "Delete a token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.store.DeleteToken(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Println("revoked", args[0])
			return nil
		},
	}

	root.AddCommand(create, list, revoke)
	return root
}
