// Package cli parses inspector command lines into a Parsed request.
package cli

import (
	"errors"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

type Command string

const (
	CommandAssetNew     Command = "asset new"
	CommandAssetEdit    Command = "asset edit"
	CommandFolders      Command = "folders"
	CommandTrail        Command = "trail"
	CommandFolderCreate Command = "folder create"
	CommandSearch       Command = "search"
	CommandDevices      Command = "devices"
	CommandDoctor       Command = "doctor"
	CommandVersion      Command = "version"
	CommandHelp         Command = "help"
)

// Parsed is one resolved invocation.
type Parsed struct {
	Command    Command
	ConfigPath string
	ShowHelp   bool
	// Help is the usage text of the command help was requested for.
	Help string

	ProjectID string
	FolderID  string
	AssetID   string
	CompanyID string
	Name      string
	Query     string
	At        string
}

// Parse maps args onto a Parsed request without running anything.
func Parse(args []string) (Parsed, error) {
	parsed := Parsed{}
	root := newRoot(&parsed, "inspector")
	root.SetArgs(args)
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)

	if err := root.Execute(); err != nil {
		return Parsed{}, err
	}
	if parsed.Command == "" {
		parsed.Command = CommandHelp
		parsed.ShowHelp = true
		parsed.Help = root.UsageString()
	}
	return parsed, nil
}

// HelpText returns the root usage text.
func HelpText(binaryName string) string {
	return newRoot(&Parsed{}, binaryName).UsageString()
}

func newRoot(parsed *Parsed, binaryName string) *cobra.Command {
	var showVersion bool
	root := &cobra.Command{
		Use:           binaryName,
		Short:         "Capture and browse field inspection assets",
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if showVersion {
				parsed.Command = CommandVersion
			}
			return nil
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.PersistentFlags().StringVar(&parsed.ConfigPath, "config", "", "config file path (default: $XDG_CONFIG_HOME/inspector/config.jsonc)")
	root.Flags().BoolVar(&showVersion, "version", false, "show version")
	root.SetHelpFunc(func(cmd *cobra.Command, _ []string) {
		parsed.Command = CommandHelp
		parsed.ShowHelp = true
		parsed.Help = cmd.UsageString()
	})

	set := func(command Command) func(*cobra.Command, []string) error {
		return func(*cobra.Command, []string) error {
			parsed.Command = command
			return nil
		}
	}

	asset := &cobra.Command{Use: "asset", Short: "Create or edit assets", Args: cobra.NoArgs}
	assetNew := &cobra.Command{
		Use:   "new",
		Short: "Run the photo, name and description wizard",
		Args:  cobra.NoArgs,
		RunE:  set(CommandAssetNew),
	}
	assetNew.Flags().StringVar(&parsed.ProjectID, "project", "", "destination project id")
	assetNew.Flags().StringVar(&parsed.FolderID, "folder", "", "destination folder id (default: project root)")
	_ = assetNew.MarkFlagRequired("project")

	assetEdit := &cobra.Command{
		Use:   "edit ASSET_ID",
		Short: "Edit an asset's name, descriptions and voice note",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			parsed.Command = CommandAssetEdit
			parsed.AssetID = args[0]
			return nil
		},
	}
	asset.AddCommand(assetNew, assetEdit)

	folders := &cobra.Command{
		Use:   "folders",
		Short: "List folders with breadcrumb and asset counts",
		Args:  cobra.NoArgs,
		RunE:  set(CommandFolders),
	}
	folders.Flags().StringVar(&parsed.ProjectID, "project", "", "project id")
	folders.Flags().StringVar(&parsed.FolderID, "folder", "", "selected folder id")
	_ = folders.MarkFlagRequired("project")

	trail := &cobra.Command{
		Use:   "trail FOLDER_ID",
		Short: "Print the breadcrumb from the root folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			parsed.Command = CommandTrail
			parsed.FolderID = args[0]
			return nil
		},
	}

	folder := &cobra.Command{Use: "folder", Short: "Manage folders", Args: cobra.NoArgs}
	folderCreate := &cobra.Command{
		Use:   "create",
		Short: "Create a folder",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			if strings.TrimSpace(parsed.Name) == "" {
				return errors.New("--name must not be empty")
			}
			parsed.Command = CommandFolderCreate
			return nil
		},
	}
	folderCreate.Flags().StringVar(&parsed.ProjectID, "project", "", "project id")
	folderCreate.Flags().StringVar(&parsed.FolderID, "parent", "", "parent folder id (default: project root)")
	folderCreate.Flags().StringVar(&parsed.Name, "name", "", "folder name")
	folderCreate.Flags().StringVar(&parsed.CompanyID, "company", "", "company id (default: api.company_id)")
	_ = folderCreate.MarkFlagRequired("project")
	_ = folderCreate.MarkFlagRequired("name")
	folder.AddCommand(folderCreate)

	search := &cobra.Command{
		Use:   "search QUERY...",
		Short: "Search from a location and print where the result leads",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			parsed.Command = CommandSearch
			parsed.Query = strings.Join(args, " ")
			if parsed.At == "" {
				parsed.At = "/dashboard"
			}
			return nil
		},
	}
	search.Flags().StringVar(&parsed.At, "at", "", "current location, e.g. /subproject/ID?folderId=F (default: /dashboard)")

	devices := &cobra.Command{Use: "devices", Short: "List audio input devices", Args: cobra.NoArgs, RunE: set(CommandDevices)}
	doctor := &cobra.Command{Use: "doctor", Short: "Run configuration and environment checks", Args: cobra.NoArgs, RunE: set(CommandDoctor)}
	version := &cobra.Command{Use: "version", Short: "Print version information", Args: cobra.NoArgs, RunE: set(CommandVersion)}

	root.AddCommand(asset, folders, trail, folder, search, devices, doctor, version)
	return root
}
