package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/eringen/panelengine/accounts"
	"github.com/eringen/panelengine/audit"
	"github.com/eringen/panelengine/catalog"
	"github.com/eringen/panelengine/scaffold"
)

var rootDomain string

var initCmd = &cobra.Command{
	Use:   "init <dir>",
	Short: "Create a starter site directory",
	Long: `Writes panelengine.yaml, .env.example with a fresh session secret and
the public assets the server expects into a new directory.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := scaffold.NewData(args[0], rootDomain)
		if err != nil {
			return err
		}
		created, err := scaffold.Write(args[0], data)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, p := range created {
			fmt.Fprintf(out, "  created %s\n", p)
		}
		fmt.Fprintf(out, "\nNext: cd %s, copy .env.example to .env and run panelengine serve.\n", args[0])
		return nil
	},
}

func init() {
	initCmd.Flags().StringVar(&rootDomain, "root-domain", "localhost", "Domain that wizard websites are created under")
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage stored settings",
}

var settingsInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Seed default settings that do not exist yet",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp()
		if err != nil {
			return err
		}
		defer app.Close()
		n, err := app.Settings.InitDefaults(cmd.Context(), audit.System)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d default settings created\n", n)
		return nil
	},
}

var blogCmd = &cobra.Command{
	Use:   "blog",
	Short: "Blog maintenance",
}

var blogPublishDueCmd = &cobra.Command{
	Use:   "publish-due",
	Short: "Publish scheduled posts whose time has come",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp()
		if err != nil {
			return err
		}
		defer app.Close()
		n, err := app.Blog.PublishDue(cmd.Context(), time.Now())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d posts published\n", n)
		return nil
	},
}

var maintenanceCmd = &cobra.Command{
	Use:   "maintenance",
	Short: "Run one maintenance pass",
	Long: `Marks overdue invoices, expires stale wizard sessions, purges old
security logs and publishes due posts, as the scheduler does every hour.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp()
		if err != nil {
			return err
		}
		defer app.Close()
		res, err := app.RunMaintenance(cmd.Context())
		logger.Info("maintenance",
			zap.Int("overdue", res.Overdue),
			zap.Int("expired_wizards", res.ExpiredWizards),
			zap.Int64("purged_logs", res.PurgedLogs),
			zap.Int("published", res.Published),
		)
		return err
	},
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect the template and freelancer catalog",
}

var catalogListCmd = &cobra.Command{
	Use:       "list templates|freelancers",
	Short:     "Print catalog items as a table",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"templates", "freelancers"},
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := catalog.Load()
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		switch args[0] {
		case "templates":
			fmt.Fprintln(tw, "SLUG\tNAME\tCATEGORY\tPRICE\tRATING\tDOWNLOADS")
			for _, t := range c.Templates() {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%.1f\t%d\n", t.Slug, t.Name, t.Category, t.Price, t.Rating, t.Downloads)
			}
		case "freelancers":
			fmt.Fprintln(tw, "SLUG\tNAME\tTITLE\tRATE\tRATING\tLOCATION")
			for _, f := range c.Freelancers() {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%.1f\t%s\n", f.Slug, f.Name, f.Title, f.HourlyRate, f.Rating, f.Location)
			}
		}
		return tw.Flush()
	},
}

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password [password]",
	Short: "Print a bcrypt hash for ADMIN_PASSWORD_HASH",
	Long:  `Hashes the argument, or the first line of stdin when no argument is given.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var pass string
		if len(args) == 1 {
			pass = args[0]
		}
		pass, err := readPassword(cmd, pass)
		if err != nil {
			return err
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(pass), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(hash))
		return nil
	},
}

// readPassword returns pass, or the first line of stdin when pass is empty.
func readPassword(cmd *cobra.Command, pass string) (string, error) {
	if pass == "" {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("read password: %w", err)
		}
		pass = strings.TrimRight(line, "\r\n")
	}
	if pass == "" {
		return "", errors.New("password is empty")
	}
	return pass, nil
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage platform accounts",
}

var newUser accounts.NewUser

var usersCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a platform account",
	Long:  `Creates an active account. Without --password the first line of stdin is used.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		in := newUser
		var err error
		if in.Password, err = readPassword(cmd, in.Password); err != nil {
			return err
		}
		app, err := openApp()
		if err != nil {
			return err
		}
		defer app.Close()
		u, err := app.Accounts.Create(cmd.Context(), in)
		if err != nil {
			return err
		}
		if err := app.Audit.Record(cmd.Context(), audit.System, audit.UserCreate, u.ID, map[string]any{"email": u.Email}); err != nil {
			logger.Warn("audit", zap.Error(err))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s)\n", u.Email, u.ID)
		return nil
	},
}

func init() {
	usersCreateCmd.Flags().StringVar(&newUser.Email, "email", "", "Account email")
	usersCreateCmd.Flags().StringVar(&newUser.Name, "name", "", "Display name")
	usersCreateCmd.Flags().StringVar(&newUser.Password, "password", "", "Password, at least 8 characters")
	_ = usersCreateCmd.MarkFlagRequired("email")
}
