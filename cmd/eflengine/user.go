package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/watthive/eflengine/internal/auth"
)

func userCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}

	var role, password string
	create := &cobra.Command{
		Use:   "create <username>",
		Short: "Create a user; reads the password from stdin when --password is not set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				fmt.Fprint(os.Stderr, "Password: ")
				line, err := bufio.NewReader(os.Stdin).ReadString('\n')
				if err != nil {
					return err
				}
				password = strings.TrimSpace(line)
			}
			if password == "" {
				return errors.New("password must not be empty")
			}

			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			authSvc, err := auth.NewService(rt.store)
			if err != nil {
				return err
			}
			u, err := authSvc.Register(cmd.Context(), args[0], password, role)
			if err != nil {
				return err
			}
			fmt.Printf("created user %s (%s) with role %s\n", u.Username, u.ID, u.Role)
			return nil
		},
	}
	create.Flags().StringVar(&role, "role", "viewer", "admin, editor, or viewer")
	create.Flags().StringVar(&password, "password", "", "password for the new user")

	list := &cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			users, err := rt.store.ListUsers(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tUSERNAME\tROLE\tCREATED")
			for _, u := range users {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					u.ID, u.Username, u.Role, u.CreatedAt.Format("2006-01-02"))
			}
			return w.Flush()
		},
	}

	root.AddCommand(create, list)
	return root
}
