package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/contentrest/internal/auth"
	"github.com/kailas-cloud/contentrest/internal/domain/principal"
)

var typesCmd = &cobra.Command{
	Use:   "types",
	Short: "Validate the configured content types and list them",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		registry, err := cfg.Registry()
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TYPE\tFIELDS\tRELATIONS\tVIEWLESS")
		for _, ct := range registry.All() {
			fields := make([]string, 0, len(ct.Fields()))
			for _, f := range ct.Fields() {
				fields = append(fields, f.Name()+":"+string(f.FieldType()))
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%t\n",
				ct.Slug(), strings.Join(fields, ","), strings.Join(ct.Relations(), ","), ct.Viewless())
		}
		return tw.Flush()
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token <user>",
	Short: "Issue an access token for a configured user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		directory, tokens, err := buildAuth(cfg)
		if err != nil {
			return err
		}
		if tokens == nil {
			return errors.New("auth.jwt.secret is not set")
		}
		p, ok := directory.Lookup(args[0])
		if !ok {
			return fmt.Errorf("unknown user %q", args[0])
		}
		return issue(cmd.OutOrStdout(), tokens, p)
	},
}

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password [password]",
	Short: "Print the bcrypt hash of a password for auth.users",
	Long:  "Print the bcrypt hash of a password. Without an argument the password is read from stdin.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var password string
		if len(args) == 1 {
			password = args[0]
		} else {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && !errors.Is(err, io.EOF) {
				return fmt.Errorf("read password: %w", err)
			}
			password = strings.TrimRight(line, "\r\n")
		}
		if password == "" {
			return errors.New("empty password")
		}
		hash, err := auth.HashPassword(password)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(typesCmd, tokenCmd, hashPasswordCmd)
}

func issue(w io.Writer, tokens *auth.TokenService, p principal.Principal) error {
	token, exp, err := tokens.Issue(p)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}
	fmt.Fprintf(w, "%s\n# expires %s\n", token, exp.UTC().Format("2006-01-02T15:04:05Z"))
	return nil
}
