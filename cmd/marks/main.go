package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"marks-go/internal/app"
	"marks-go/internal/config"
	"marks-go/internal/database"
	"marks-go/internal/database/migrations"
	"marks-go/internal/marks"
	"marks-go/internal/model"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		if marks.IsRetryable(err) {
			fmt.Fprintln(os.Stderr, "The database was busy and the operation had no effect; re-run the command.")
		}
		os.Exit(1)
	}
}

// asUser is the acting user's email, set by the persistent --as flag.
// Empty means anonymous (only public reads succeed).
var asUser string

// newApp reads the config and creates a MarksApp. The caller must defer
// app.Close(). operation identifies the CLI command being run
// (e.g. "MoveFolder", "ShareCollection").
func newApp(operation string) (*app.MarksApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewMarksApp(cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// actingUser resolves the --as email to a user ID.
func actingUser(ctx context.Context, a *app.MarksApp) (string, error) {
	return a.ResolveUser(ctx, asUser)
}

var rootCmd = &cobra.Command{
	Use:   "marks",
	Short: "Multi-user bookmark manager",
}

// config command

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:  %s\n", cfg.LogDir)
		fmt.Printf("Database: %s (%s)\n", cfg.Database.Type, cfg.Database.DataDir)
		return nil
	},
}

// db command

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database maintenance",
}

var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check whether the database schema is current",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return err
		}
		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("reading config: %w", err)
		}
		if cfg.Database.Type != "sqlite" {
			return fmt.Errorf("db status only applies to sqlite databases")
		}

		db, err := database.OpenConnection(filepath.Join(cfg.Database.DataDir, "marks.db"))
		if err != nil {
			return err
		}
		defer db.Close()

		if err := migrations.CheckDBMigrationStatus(db); err != nil {
			return err
		}
		fmt.Println("Database schema is up to date")
		return nil
	},
}

// user command

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var userAddCmd = &cobra.Command{
	Use:   "add EMAIL",
	Short: "Register a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("CreateUser")
		if err != nil {
			return err
		}
		defer a.Close()

		u, err := a.Service().CreateUser(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("User %s created: %s\n", u.Email, u.ID)
		return nil
	},
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ListUsers")
		if err != nil {
			return err
		}
		defer a.Close()

		users, err := a.Service().ListUsers(cmd.Context())
		if err != nil {
			return err
		}
		for _, u := range users {
			fmt.Printf("%s  %s\n", u.ID, u.Email)
		}
		return nil
	},
}

// folder command

var folderCmd = &cobra.Command{
	Use:   "folder",
	Short: "Manage folders",
}

var folderAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Create a folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		parent, _ := cmd.Flags().GetString("parent")

		a, err := newApp("CreateFolder")
		if err != nil {
			return err
		}
		defer a.Close()

		userID, err := actingUser(cmd.Context(), a)
		if err != nil {
			return err
		}

		var parentID *string
		if parent != "" {
			parentID = &parent
		}
		f, err := a.Service().CreateFolder(cmd.Context(), userID, args[0], parentID)
		if err != nil {
			return err
		}
		fmt.Printf("Folder %q created: %s\n", f.Name, f.ID)
		return nil
	},
}

var folderRenameCmd = &cobra.Command{
	Use:   "rename FOLDER_ID NAME",
	Short: "Rename a folder",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("RenameFolder")
		if err != nil {
			return err
		}
		defer a.Close()

		userID, err := actingUser(cmd.Context(), a)
		if err != nil {
			return err
		}
		return a.Service().RenameFolder(cmd.Context(), userID, args[0], args[1])
	},
}

var folderMoveCmd = &cobra.Command{
	Use:   "mv FOLDER_ID",
	Short: "Move a folder (to root unless --parent is given)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		parent, _ := cmd.Flags().GetString("parent")

		a, err := newApp("MoveFolder")
		if err != nil {
			return err
		}
		defer a.Close()

		userID, err := actingUser(cmd.Context(), a)
		if err != nil {
			return err
		}

		var parentID *string
		if parent != "" {
			parentID = &parent
		}
		return a.Service().MoveFolder(cmd.Context(), userID, args[0], parentID)
	},
}

var folderRmCmd = &cobra.Command{
	Use:   "rm FOLDER_ID",
	Short: "Soft-delete a folder and its subtree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("SoftDeleteFolder")
		if err != nil {
			return err
		}
		defer a.Close()

		userID, err := actingUser(cmd.Context(), a)
		if err != nil {
			return err
		}
		return a.Service().SoftDeleteFolder(cmd.Context(), userID, args[0])
	},
}

var folderRestoreCmd = &cobra.Command{
	Use:   "restore FOLDER_ID",
	Short: "Restore a soft-deleted folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cascade, _ := cmd.Flags().GetBool("cascade")

		a, err := newApp("RestoreFolder")
		if err != nil {
			return err
		}
		defer a.Close()

		userID, err := actingUser(cmd.Context(), a)
		if err != nil {
			return err
		}
		return a.Service().RestoreFolder(cmd.Context(), userID, args[0], cascade)
	},
}

// bookmark command

var bookmarkCmd = &cobra.Command{
	Use:   "bookmark",
	Short: "Manage bookmarks",
}

var bookmarkAddCmd = &cobra.Command{
	Use:   "add URL [TITLE]",
	Short: "Save a bookmark",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("CreateBookmark")
		if err != nil {
			return err
		}
		defer a.Close()

		userID, err := actingUser(cmd.Context(), a)
		if err != nil {
			return err
		}

		title := ""
		if len(args) > 1 {
			title = args[1]
		}
		b, err := a.Service().CreateBookmark(cmd.Context(), userID, title, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Bookmark created: %s\n", b.ID)
		return nil
	},
}

var bookmarkFileCmd = &cobra.Command{
	Use:   "file BOOKMARK_ID FOLDER_ID",
	Short: "File a bookmark into a folder",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("AddBookmarkToFolder")
		if err != nil {
			return err
		}
		defer a.Close()

		userID, err := actingUser(cmd.Context(), a)
		if err != nil {
			return err
		}
		return a.Service().AddBookmarkToFolder(cmd.Context(), userID, args[1], args[0])
	},
}

var bookmarkUnfileCmd = &cobra.Command{
	Use:   "unfile BOOKMARK_ID FOLDER_ID",
	Short: "Remove a bookmark from a folder",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("RemoveBookmarkFromFolder")
		if err != nil {
			return err
		}
		defer a.Close()

		userID, err := actingUser(cmd.Context(), a)
		if err != nil {
			return err
		}
		return a.Service().RemoveBookmarkFromFolder(cmd.Context(), userID, args[1], args[0])
	},
}

// collection command

var collectionCmd = &cobra.Command{
	Use:   "collection",
	Short: "Manage collections",
}

var collectionAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Create a collection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("CreateCollection")
		if err != nil {
			return err
		}
		defer a.Close()

		userID, err := actingUser(cmd.Context(), a)
		if err != nil {
			return err
		}
		c, err := a.Service().CreateCollection(cmd.Context(), userID, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Collection %q created: %s\n", c.Name, c.ID)
		return nil
	},
}

var collectionInsertCmd = &cobra.Command{
	Use:   "insert COLLECTION_ID BOOKMARK_ID",
	Short: "Insert a bookmark into a collection",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		after, _ := cmd.Flags().GetString("after")
		head, _ := cmd.Flags().GetBool("head")

		a, err := newApp("InsertIntoCollection")
		if err != nil {
			return err
		}
		defer a.Close()

		userID, err := actingUser(cmd.Context(), a)
		if err != nil {
			return err
		}

		var afterID *string
		switch {
		case head:
			empty := ""
			afterID = &empty
		case after != "":
			afterID = &after
		}
		key, err := a.Service().InsertIntoCollection(cmd.Context(), userID, args[0], args[1], afterID)
		if err != nil {
			return err
		}
		fmt.Printf("Inserted at order %g\n", key)
		return nil
	},
}

var collectionShowCmd = &cobra.Command{
	Use:   "show COLLECTION_ID",
	Short: "List a collection's bookmarks in order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ListCollection")
		if err != nil {
			return err
		}
		defer a.Close()

		userID, err := actingUser(cmd.Context(), a)
		if err != nil {
			return err
		}
		bookmarks, err := a.Service().ListCollection(cmd.Context(), userID, args[0])
		if err != nil {
			return err
		}
		for _, b := range bookmarks {
			fmt.Printf("%s  %s  %s\n", b.ID, b.URL, b.Title)
		}
		return nil
	},
}

var collectionShareCmd = &cobra.Command{
	Use:   "share COLLECTION_ID",
	Short: "Enable the public link for a collection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ShareCollection")
		if err != nil {
			return err
		}
		defer a.Close()

		userID, err := actingUser(cmd.Context(), a)
		if err != nil {
			return err
		}
		token, err := a.Service().ShareCollection(cmd.Context(), userID, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Public token: %s\n", token)
		return nil
	},
}

var collectionUnshareCmd = &cobra.Command{
	Use:   "unshare COLLECTION_ID",
	Short: "Revoke the public link for a collection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("RevokeSharing")
		if err != nil {
			return err
		}
		defer a.Close()

		userID, err := actingUser(cmd.Context(), a)
		if err != nil {
			return err
		}
		return a.Service().RevokeSharing(cmd.Context(), userID, args[0])
	},
}

var collectionResolveCmd = &cobra.Command{
	Use:   "resolve TOKEN",
	Short: "Look up a collection by its public token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ResolvePublicToken")
		if err != nil {
			return err
		}
		defer a.Close()

		c, err := a.Service().ResolvePublicToken(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s  %s\n", c.ID, c.Name)
		return nil
	},
}

// grant / revoke / check commands

var grantCmd = &cobra.Command{
	Use:   "grant TYPE RESOURCE_ID GRANTEE_EMAIL ROLE",
	Short: "Grant a role (view|edit|admin) on a folder or collection",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("GrantRole")
		if err != nil {
			return err
		}
		defer a.Close()

		userID, err := actingUser(cmd.Context(), a)
		if err != nil {
			return err
		}
		granteeID, err := a.ResolveUser(cmd.Context(), args[2])
		if err != nil {
			return err
		}
		role, err := model.ParseRole(args[3])
		if err != nil {
			return err
		}
		return a.Service().GrantRole(cmd.Context(), userID, model.ResourceType(args[0]), args[1], granteeID, role)
	},
}

var revokeCmd = &cobra.Command{
	Use:   "revoke TYPE RESOURCE_ID GRANTEE_EMAIL",
	Short: "Revoke a direct grant on a folder or collection",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("RevokeRole")
		if err != nil {
			return err
		}
		defer a.Close()

		userID, err := actingUser(cmd.Context(), a)
		if err != nil {
			return err
		}
		granteeID, err := a.ResolveUser(cmd.Context(), args[2])
		if err != nil {
			return err
		}
		return a.Service().RevokeRole(cmd.Context(), userID, model.ResourceType(args[0]), args[1], granteeID)
	},
}

var checkCmd = &cobra.Command{
	Use:   "check TYPE RESOURCE_ID",
	Short: "Show the acting user's effective role over a resource",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("CheckPermission")
		if err != nil {
			return err
		}
		defer a.Close()

		userID, err := actingUser(cmd.Context(), a)
		if err != nil {
			return err
		}
		role, err := a.Service().EffectiveRole(cmd.Context(), userID, model.ResourceType(args[0]), args[1])
		if err != nil {
			return err
		}
		fmt.Println(role)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&asUser, "as", "", "Acting user's email (empty = anonymous)")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// db subcommands
	dbCmd.AddCommand(dbStatusCmd)

	// user subcommands
	userCmd.AddCommand(userAddCmd)
	userCmd.AddCommand(userListCmd)

	// folder subcommands
	folderCmd.AddCommand(folderAddCmd)
	folderAddCmd.Flags().String("parent", "", "Parent folder ID")
	folderCmd.AddCommand(folderRenameCmd)
	folderCmd.AddCommand(folderMoveCmd)
	folderMoveCmd.Flags().String("parent", "", "New parent folder ID (empty = root)")
	folderCmd.AddCommand(folderRmCmd)
	folderCmd.AddCommand(folderRestoreCmd)
	folderRestoreCmd.Flags().Bool("cascade", false, "Also restore the folder's subtree")

	// bookmark subcommands
	bookmarkCmd.AddCommand(bookmarkAddCmd)
	bookmarkCmd.AddCommand(bookmarkFileCmd)
	bookmarkCmd.AddCommand(bookmarkUnfileCmd)

	// collection subcommands
	collectionCmd.AddCommand(collectionAddCmd)
	collectionCmd.AddCommand(collectionInsertCmd)
	collectionInsertCmd.Flags().String("after", "", "Insert after this bookmark ID")
	collectionInsertCmd.Flags().Bool("head", false, "Insert at the head of the collection")
	collectionCmd.AddCommand(collectionShowCmd)
	collectionCmd.AddCommand(collectionShareCmd)
	collectionCmd.AddCommand(collectionUnshareCmd)
	collectionCmd.AddCommand(collectionResolveCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(folderCmd)
	rootCmd.AddCommand(bookmarkCmd)
	rootCmd.AddCommand(collectionCmd)
	rootCmd.AddCommand(grantCmd)
	rootCmd.AddCommand(revokeCmd)
	rootCmd.AddCommand(checkCmd)
}
