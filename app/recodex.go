package app

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/recodex/sis-binding/internal/daemon"
	"github.com/recodex/sis-binding/internal/db/controller/events"
	"github.com/recodex/sis-binding/internal/db/controller/users"
	"github.com/recodex/sis-binding/internal/recodex"
	"github.com/recodex/sis-binding/internal/web/handler/groups"
)

func init() { //nolint: gochecknoinits
	recodexCmd.PersistentFlags().StringVar(&authToken, "token", "", "Delegated ReCodEx auth token")

	recodexCmd.AddCommand(recodexTokenCmd)
	recodexCmd.AddCommand(recodexRefreshCmd)
	recodexCmd.AddCommand(recodexGroupsCmd)
	recodexCmd.AddCommand(recodexCreateGroupCmd)
	recodexCmd.AddCommand(recodexAddAttributeCmd)
	recodexCmd.AddCommand(recodexRemoveAttributeCmd)
	recodexCmd.AddCommand(recodexAddStudentCmd)
	recodexCmd.AddCommand(recodexRemoveStudentCmd)
	recodexCmd.AddCommand(recodexAddAdminCmd)
	recodexCmd.AddCommand(recodexRemoveAdminCmd)
	rootCmd.AddCommand(recodexCmd)
}

var authToken string

// readToken returns the --token flag value or prompts for it on the console.
func readToken() (string, error) {
	if authToken != "" {
		return authToken, nil
	}

	fmt.Print("Auth token: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", err
	}

	token := strings.TrimSpace(line)
	if token == "" {
		return "", errors.New("no token given")
	}

	return token, nil
}

// openDB connects to the configured database for commands that need the
// local cache.
func openDB() (*gorm.DB, error) {
	db, err := gorm.Open(daemon.Dialector(&cfg), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	return db, daemon.Migrate(db)
}

var (
	recodexCmd = &cobra.Command{
		Use:   "recodex",
		Short: "Debug helpers exercising the ReCodEx API",
	}

	recodexTokenCmd = &cobra.Command{
		Use:   "token <tmp-token>",
		Short: "Translate a temporary token into a full token and get user info",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(); err != nil {
				return err
			}

			client := recodex.New(cfg.Recodex)
			if _, err := client.TempTokenInstance(args[0]); err != nil {
				return err
			}

			token, user, err := client.TokenAndUser(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Println(token)

			return printJSON(user)
		},
	}

	recodexRefreshCmd = &cobra.Command{
		Use:   "refresh",
		Short: "Refresh a delegated token and print the renewed one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadConfig(); err != nil {
				return err
			}

			token, err := readToken()
			if err != nil {
				return err
			}

			renewed, err := recodex.New(cfg.Recodex).RefreshToken(cmd.Context(), token)
			if err != nil {
				return err
			}

			fmt.Println(renewed)

			return nil
		},
	}

	recodexGroupsCmd = &cobra.Command{
		Use:   "groups <ukco>",
		Short: "List the ReCodEx groups visible to a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(); err != nil {
				return err
			}

			db, err := openDB()
			if err != nil {
				return err
			}
			user, err := users.GetBySisID(db, args[0])
			if err != nil {
				return err
			}
			if user == nil {
				return fmt.Errorf("no cached user references SIS ID %s", args[0])
			}

			token, err := readToken()
			if err != nil {
				return err
			}

			result, err := recodex.New(cfg.Recodex).Groups(cmd.Context(), token, user)
			if err != nil {
				return err
			}

			return printJSON(result)
		},
	}

	recodexCreateGroupCmd = &cobra.Command{
		Use:   "create-group <event-sis-id> <parent-group-id> <admin-user-id>",
		Short: "Create a ReCodEx group for a cached scheduling event",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(); err != nil {
				return err
			}

			db, err := openDB()
			if err != nil {
				return err
			}
			event, err := events.GetBySisID(db, args[0])
			if err != nil {
				return err
			}
			admin, err := users.Get(db, args[2])
			if err != nil {
				return err
			}

			token, err := readToken()
			if err != nil {
				return err
			}

			client := recodex.New(cfg.Recodex)
			names, descriptions := groups.LocalizedTexts(event)
			group, err := client.CreateGroup(cmd.Context(), token, recodex.CreateGroupRequest{
				InstanceID:    admin.InstanceID,
				ParentGroupID: args[1],
				Names:         names,
				Descriptions:  descriptions,
				Detaining:     true,
			})
			if err != nil {
				return err
			}

			if err := client.AddGroupAttribute(
				cmd.Context(), token, group.ID, recodex.AttrGroupKey, event.SisID,
			); err != nil {
				return err
			}
			if err := client.AddAdmin(cmd.Context(), token, group.ID, admin.ID); err != nil {
				return err
			}

			return printJSON(group)
		},
	}
)

// groupOpCommand builds a command that runs one token-authenticated group
// operation with the given positional arguments.
func groupOpCommand(
	use, short string, argCount int,
	op func(cmd *cobra.Command, client *recodex.Client, token string, args []string) error,
) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(argCount),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(); err != nil {
				return err
			}

			token, err := readToken()
			if err != nil {
				return err
			}

			if err := op(cmd, recodex.New(cfg.Recodex), token, args); err != nil {
				return err
			}
			fmt.Println("OK")

			return nil
		},
	}
}

var (
	recodexAddAttributeCmd = groupOpCommand(
		"add-attribute <group-id> <key> <value>", "Add an extension attribute to a group", 3,
		func(cmd *cobra.Command, client *recodex.Client, token string, args []string) error {
			return client.AddGroupAttribute(cmd.Context(), token, args[0], args[1], args[2])
		},
	)

	recodexRemoveAttributeCmd = groupOpCommand(
		"remove-attribute <group-id> <key> <value>", "Remove an extension attribute from a group", 3,
		func(cmd *cobra.Command, client *recodex.Client, token string, args []string) error {
			return client.RemoveGroupAttribute(cmd.Context(), token, args[0], args[1], args[2])
		},
	)

	recodexAddStudentCmd = groupOpCommand(
		"add-student <group-id> <user-id>", "Add a student to a group", 2,
		func(cmd *cobra.Command, client *recodex.Client, token string, args []string) error {
			return client.AddStudent(cmd.Context(), token, args[0], args[1])
		},
	)

	recodexRemoveStudentCmd = groupOpCommand(
		"remove-student <group-id> <user-id>", "Remove a student from a group", 2,
		func(cmd *cobra.Command, client *recodex.Client, token string, args []string) error {
			return client.RemoveStudent(cmd.Context(), token, args[0], args[1])
		},
	)

	recodexAddAdminCmd = groupOpCommand(
		"add-admin <group-id> <user-id>", "Add an admin to a group", 2,
		func(cmd *cobra.Command, client *recodex.Client, token string, args []string) error {
			return client.AddAdmin(cmd.Context(), token, args[0], args[1])
		},
	)

	recodexRemoveAdminCmd = groupOpCommand(
		"remove-admin <group-id> <user-id>", "Remove an admin from a group", 2,
		func(cmd *cobra.Command, client *recodex.Client, token string, args []string) error {
			return client.RemoveAdmin(cmd.Context(), token, args[0], args[1])
		},
	)
)
