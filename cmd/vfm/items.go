package main

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path"
	"slices"
	"strings"

	"vfm-go/internal/app"
	"vfm-go/internal/model"
	"vfm-go/internal/vfm"

	"github.com/spf13/cobra"
)

func printFile(f *model.File) {
	fmt.Printf("%s  %-9s  %10s  %s  %s\n",
		f.ID,
		f.Type,
		vfm.FormatSize(f.Size),
		f.CreatedAt.Local().Format("2006-01-02 15:04"),
		f.Name,
	)
}

func printFolder(f *model.Folder) {
	fmt.Printf("%s  %-9s  %10s  %s  %s/\n", f.ID, "folder", "", f.CreatedAt.Local().Format("2006-01-02 15:04"), f.Name)
}

// reportDelete prints what a delete removed. A partial failure is still
// reported as an error after the counts.
func reportDelete(res *vfm.DeleteResult, err error) error {
	if res != nil {
		fmt.Printf("Deleted %d folder(s) and %d file(s)\n", res.DeletedFolders, res.DeletedFiles)
	}
	return err
}

// folder command
var folderCmd = &cobra.Command{
	Use:   "folder",
	Short: "Manage folders",
}

var folderMkCmd = &cobra.Command{
	Use:   "mk NAME",
	Short: "Create a folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		parentArg, _ := cmd.Flags().GetString("parent")
		return withUser(cmd, "FolderCreate", args, func(ctx context.Context, a *app.VFMApp, u *model.User) error {
			parent, err := a.ResolveFolder(ctx, u, parentArg)
			if err != nil {
				return err
			}
			f, err := a.Services().Folders.Create(ctx, args[0], parent, u.ID, u.AccountID)
			if err != nil {
				return err
			}
			fmt.Printf("Created folder %s (%s)\n", f.Name, f.ID)
			return nil
		})
	},
}

var folderCheckCmd = &cobra.Command{
	Use:   "check NAME",
	Short: "Check whether a folder name is free",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		parentArg, _ := cmd.Flags().GetString("parent")
		return withUser(cmd, "FolderValidateName", args, func(ctx context.Context, a *app.VFMApp, u *model.User) error {
			parent, err := a.ResolveFolder(ctx, u, parentArg)
			if err != nil {
				return err
			}
			ok, err := a.Services().Folders.ValidateName(ctx, args[0], parent, u.ID, "")
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("a folder named %q already exists here", args[0])
			}
			fmt.Println("Available")
			return nil
		})
	},
}

var folderLsCmd = &cobra.Command{
	Use:   "ls [FOLDER]",
	Short: "List a folder's contents",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sortKey, _ := cmd.Flags().GetString("sort")
		search, _ := cmd.Flags().GetString("search")
		limit, _ := cmd.Flags().GetInt("limit")
		types, _ := cmd.Flags().GetStringSlice("type")

		target := "/"
		if len(args) > 0 {
			target = args[0]
		}

		return withUser(cmd, "FolderList", args, func(ctx context.Context, a *app.VFMApp, u *model.User) error {
			folderID, err := a.ResolveFolder(ctx, u, target)
			if err != nil {
				return err
			}
			c, err := a.Services().Workspace.Contents(ctx, folderID, u.ID, u.AccountID, vfm.ContentsQuery{
				Types:     fileTypes(types),
				Search:    search,
				Sort:      sortKey,
				FileLimit: limit,
			})
			if err != nil {
				return err
			}

			if len(c.Folders) == 0 && len(c.Files) == 0 {
				fmt.Println("Empty.")
				return nil
			}
			for _, f := range c.Folders {
				printFolder(f)
			}
			for _, f := range c.Files {
				printFile(f)
			}
			return nil
		})
	},
}

var folderRenameCmd = &cobra.Command{
	Use:   "rename FOLDER NEW_NAME",
	Short: "Rename a folder",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUser(cmd, "FolderRename", args, func(ctx context.Context, a *app.VFMApp, u *model.User) error {
			id, err := ownedFolder(ctx, a, u, args[0])
			if err != nil {
				return err
			}
			it, err := a.Services().Workspace.Rename(ctx, vfm.ItemRef{Kind: vfm.KindFolder, ID: id}, args[1])
			if err != nil {
				return err
			}
			fmt.Printf("Renamed to %s\n", it.ItemName())
			return nil
		})
	},
}

var folderMvCmd = &cobra.Command{
	Use:   "mv FOLDER TARGET",
	Short: "Move a folder into another folder (\"/\" for the root)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUser(cmd, "FolderMove", args, func(ctx context.Context, a *app.VFMApp, u *model.User) error {
			id, err := ownedFolder(ctx, a, u, args[0])
			if err != nil {
				return err
			}
			target, err := a.ResolveFolder(ctx, u, args[1])
			if err != nil {
				return err
			}
			if _, err := a.Services().Workspace.Move(ctx, vfm.ItemRef{Kind: vfm.KindFolder, ID: id}, target); err != nil {
				return err
			}
			fmt.Println("Moved")
			return nil
		})
	},
}

var folderRmCmd = &cobra.Command{
	Use:   "rm FOLDER",
	Short: "Delete a folder with everything in it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUser(cmd, "FolderDelete", args, func(ctx context.Context, a *app.VFMApp, u *model.User) error {
			id, err := ownedFolder(ctx, a, u, args[0])
			if err != nil {
				return err
			}
			return reportDelete(a.Services().Workspace.Delete(ctx, vfm.ItemRef{Kind: vfm.KindFolder, ID: id}))
		})
	},
}

var folderStatsCmd = &cobra.Command{
	Use:   "stats FOLDER",
	Short: "Show the size of a folder's subtree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUser(cmd, "FolderStats", args, func(ctx context.Context, a *app.VFMApp, u *model.User) error {
			id, err := ownedFolder(ctx, a, u, args[0])
			if err != nil {
				return err
			}
			st, err := a.Services().Folders.Stats(ctx, id, u.ID)
			if err != nil {
				return err
			}
			fmt.Printf("Size:    %s\n", vfm.FormatSize(st.TotalSize))
			fmt.Printf("Files:   %d\n", st.FileCount)
			fmt.Printf("Folders: %d\n", st.FolderCount)
			return nil
		})
	},
}

var folderPathCmd = &cobra.Command{
	Use:   "path FOLDER",
	Short: "Show the breadcrumb trail to a folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUser(cmd, "FolderBreadcrumbs", args, func(ctx context.Context, a *app.VFMApp, u *model.User) error {
			id, err := a.ResolveFolder(ctx, u, args[0])
			if err != nil {
				return err
			}
			crumbs := a.Services().Folders.Breadcrumbs(ctx, id, u.ID)
			names := make([]string, len(crumbs))
			for i, b := range crumbs {
				names[i] = b.Name
			}
			fmt.Println(strings.Join(names, " > "))
			return nil
		})
	},
}

// ownedFolder resolves a folder argument that must not be the root.
func ownedFolder(ctx context.Context, a *app.VFMApp, u *model.User, arg string) (string, error) {
	id, err := a.ResolveFolder(ctx, u, arg)
	if err != nil {
		return "", err
	}
	if id == nil {
		return "", fmt.Errorf("the root folder cannot be changed: %w", vfm.ErrInvalidInput)
	}
	return *id, nil
}

func fileTypes(names []string) []model.FileType {
	out := make([]model.FileType, 0, len(names))
	for _, n := range names {
		out = append(out, model.FileType(n))
	}
	return out
}

// file command
var fileCmd = &cobra.Command{
	Use:   "file",
	Short: "Manage files",
}

var fileUploadCmd = &cobra.Command{
	Use:   "upload LOCAL_PATH...",
	Short: "Upload local files, or directories with --dir",
	Long: `Upload local files into a folder.

With --dir each argument must be a directory. It is mirrored into a folder
of the same name, reusing folders that already exist. Entries matching the
config's upload.ignore patterns or the directory's .vfmignore are skipped.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		parentArg, _ := cmd.Flags().GetString("parent")
		dirs, _ := cmd.Flags().GetBool("dir")
		recursive, _ := cmd.Flags().GetBool("recursive")
		return withUser(cmd, "FileUpload", args, func(ctx context.Context, a *app.VFMApp, u *model.User) error {
			parent, err := a.ResolveFolder(ctx, u, parentArg)
			if err != nil {
				return err
			}

			if !dirs {
				outs, err := a.UploadFiles(ctx, u, args, parent)
				if err != nil {
					return err
				}
				return reportUploads(outs)
			}

			var outs []vfm.UploadOutcome
			for _, d := range args {
				res, err := a.UploadDir(ctx, u, d, parent, recursive)
				if res != nil {
					fmt.Printf("%s: %d folder(s) created, %d skipped\n", d, res.FoldersCreated, res.Skipped)
					outs = append(outs, res.Outcomes...)
				}
				if err != nil {
					reportUploads(outs)
					return err
				}
			}
			return reportUploads(outs)
		})
	},
}

func reportUploads(outs []vfm.UploadOutcome) error {
	failed := 0
	for _, out := range outs {
		if out.Err != nil {
			failed++
			fmt.Printf("FAIL  %s: %s\n", out.Name, vfm.Message(out.Err, out.Err.Error()))
			continue
		}
		fmt.Printf("OK    %s (%s)\n", out.Name, out.Uploaded.File.ID)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d upload(s) failed", failed, len(outs))
	}
	return nil
}

var fileLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List files across all folders",
	RunE: func(cmd *cobra.Command, args []string) error {
		sortKey, _ := cmd.Flags().GetString("sort")
		search, _ := cmd.Flags().GetString("search")
		limit, _ := cmd.Flags().GetInt("limit")
		types, _ := cmd.Flags().GetStringSlice("type")
		parentArg, _ := cmd.Flags().GetString("parent")

		return withUser(cmd, "FileList", args, func(ctx context.Context, a *app.VFMApp, u *model.User) error {
			filter := vfm.FileFilter{Types: fileTypes(types), Search: search, Sort: sortKey, Limit: limit}
			if cmd.Flags().Changed("parent") {
				parent, err := a.ResolveFolder(ctx, u, parentArg)
				if err != nil {
					return err
				}
				filter.Parent = vfm.At(parent)
			}

			files := a.Services().Files.List(ctx, u.ID, filter)
			if len(files) == 0 {
				fmt.Println("No files.")
				return nil
			}
			for _, f := range files {
				printFile(f)
			}
			return nil
		})
	},
}

var fileRecentCmd = &cobra.Command{
	Use:   "recent",
	Short: "List the most recently uploaded files",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		return withUser(cmd, "FileRecent", args, func(ctx context.Context, a *app.VFMApp, u *model.User) error {
			for _, f := range a.Services().Workspace.Recent(ctx, u.ID, "", "", limit) {
				printFile(f)
			}
			return nil
		})
	},
}

var fileRenameCmd = &cobra.Command{
	Use:   "rename FILE NEW_BASE_NAME",
	Short: "Rename a file, keeping its extension",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUser(cmd, "FileRename", args, func(ctx context.Context, a *app.VFMApp, u *model.User) error {
			f, err := a.OwnedFile(ctx, u, args[0])
			if err != nil {
				return err
			}
			it, err := a.Services().Workspace.Rename(ctx, vfm.ItemRef{Kind: vfm.KindFile, ID: f.ID}, args[1])
			if err != nil {
				return err
			}
			fmt.Printf("Renamed to %s\n", it.ItemName())
			return nil
		})
	},
}

var fileMvCmd = &cobra.Command{
	Use:   "mv FILE TARGET",
	Short: "Move a file into a folder (\"/\" for the root)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUser(cmd, "FileMove", args, func(ctx context.Context, a *app.VFMApp, u *model.User) error {
			f, err := a.OwnedFile(ctx, u, args[0])
			if err != nil {
				return err
			}
			target, err := a.ResolveFolder(ctx, u, args[1])
			if err != nil {
				return err
			}
			if _, err := a.Services().Workspace.Move(ctx, vfm.ItemRef{Kind: vfm.KindFile, ID: f.ID}, target); err != nil {
				return err
			}
			fmt.Println("Moved")
			return nil
		})
	},
}

var fileRmCmd = &cobra.Command{
	Use:   "rm FILE",
	Short: "Delete a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUser(cmd, "FileDelete", args, func(ctx context.Context, a *app.VFMApp, u *model.User) error {
			f, err := a.OwnedFile(ctx, u, args[0])
			if err != nil {
				return err
			}
			return reportDelete(a.Services().Workspace.Delete(ctx, vfm.ItemRef{Kind: vfm.KindFile, ID: f.ID}))
		})
	},
}

var fileGetCmd = &cobra.Command{
	Use:   "get FILE",
	Short: "Download a file you own or that was shared with you",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		return withUser(cmd, "FileGet", args, func(ctx context.Context, a *app.VFMApp, u *model.User) error {
			if err := unlock(a); err != nil {
				return err
			}
			id, err := a.ResolveFile(ctx, u, args[0])
			if err != nil {
				return err
			}
			f, blob, err := a.Services().Files.Open(ctx, id, u.ID, u.Email)
			if err != nil {
				return err
			}

			dest := output
			if dest == "" {
				dest = path.Base(f.Name)
			}
			if dest == "-" {
				_, err := os.Stdout.Write(blob.Data)
				return err
			}
			if err := os.WriteFile(dest, blob.Data, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", dest, err)
			}
			fmt.Printf("Saved %s (%s)\n", dest, vfm.FormatSize(int64(len(blob.Data))))
			return nil
		})
	},
}

var fileURLCmd = &cobra.Command{
	Use:   "url FILE",
	Short: "Print a shareable URL for a file's content (S3 blob store only)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUser(cmd, "FileURL", args, func(ctx context.Context, a *app.VFMApp, u *model.User) error {
			if err := unlock(a); err != nil {
				return err
			}
			url, err := a.FileURL(ctx, u, args[0])
			if err != nil {
				return err
			}
			fmt.Println(url)
			return nil
		})
	},
}

var fileUsageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show storage used, overall and by file type",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUser(cmd, "FileUsage", args, func(ctx context.Context, a *app.VFMApp, u *model.User) error {
			usage := a.Services().Files.Usage(ctx, u.ID)
			fmt.Printf("Total: %s in %d file(s) (limit per file %s)\n",
				vfm.FormatSize(usage.TotalSize), usage.FileCount, vfm.FormatSize(a.Services().Files.MaxSize()))
			for _, t := range slices.Sorted(maps.Keys(usage.ByType)) {
				bt := usage.ByType[t]
				fmt.Printf("  %-9s  %5d  %10s  last modified %s\n",
					t, bt.Count, vfm.FormatSize(bt.Size), bt.LastModified.Local().Format("2006-01-02 15:04"))
			}
			return nil
		})
	},
}

// share command
var shareCmd = &cobra.Command{
	Use:   "share",
	Short: "Share files with other users",
}

func shareOutcome(res vfm.ShareResult) error {
	if !res.Success {
		return errors.New(res.Message)
	}
	fmt.Println(res.Message)
	return nil
}

var shareAddCmd = &cobra.Command{
	Use:   "add FILE EMAIL",
	Short: "Give another user view access to a file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUser(cmd, "ShareAdd", args, func(ctx context.Context, a *app.VFMApp, u *model.User) error {
			id, err := a.ResolveFile(ctx, u, args[0])
			if err != nil {
				return err
			}
			return shareOutcome(a.Services().Sharing.Share(ctx, id, args[1], u.ID, u.Email))
		})
	},
}

func printShare(s *model.Share) {
	fmt.Printf("%s  %s  %-6s  %s  %s\n", s.ID, s.FileID, s.Permission, s.CreatedAt.Local().Format("2006-01-02 15:04"), s.SharedWithEmail)
}

var shareLsCmd = &cobra.Command{
	Use:   "ls FILE",
	Short: "List who a file is shared with",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUser(cmd, "ShareListForFile", args, func(ctx context.Context, a *app.VFMApp, u *model.User) error {
			f, err := a.OwnedFile(ctx, u, args[0])
			if err != nil {
				return err
			}
			for _, s := range a.Services().Sharing.ListSharesForFile(ctx, f.ID, u.ID) {
				printShare(s)
			}
			return nil
		})
	},
}

var shareMineCmd = &cobra.Command{
	Use:   "mine",
	Short: "List every share you created",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUser(cmd, "ShareListMine", args, func(ctx context.Context, a *app.VFMApp, u *model.User) error {
			for _, s := range a.Services().Sharing.ListMyShares(ctx, u.ID) {
				printShare(s)
			}
			return nil
		})
	},
}

var shareInboxCmd = &cobra.Command{
	Use:   "inbox",
	Short: "List files shared with you",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUser(cmd, "ShareListInbox", args, func(ctx context.Context, a *app.VFMApp, u *model.User) error {
			shared := a.Services().Sharing.ListSharedWithMe(ctx, u.ID, u.Email)
			if len(shared) == 0 {
				fmt.Println("Nothing has been shared with you.")
				return nil
			}
			for _, s := range shared {
				fmt.Printf("%s  %10s  %s  from %s <%s>\n", s.ID, vfm.FormatSize(s.Size), s.Name, s.OwnerName, s.OwnerEmail)
			}
			return nil
		})
	},
}

var shareRevokeCmd = &cobra.Command{
	Use:   "revoke SHARE_ID",
	Short: "Revoke a share you created",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUser(cmd, "ShareRevoke", args, func(ctx context.Context, a *app.VFMApp, u *model.User) error {
			return shareOutcome(a.Services().Sharing.Revoke(ctx, args[0], u.ID))
		})
	},
}

var shareAccessCmd = &cobra.Command{
	Use:   "access FILE",
	Short: "Show your access to a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUser(cmd, "ShareAccess", args, func(ctx context.Context, a *app.VFMApp, u *model.User) error {
			id, err := a.ResolveFile(ctx, u, args[0])
			if err != nil {
				return err
			}
			access := a.Services().Sharing.CanAccess(ctx, id, u.ID, u.Email)
			if !access.CanAccess {
				fmt.Println("No access")
				return nil
			}
			fmt.Println(access.Permission)
			return nil
		})
	},
}

func addListFlags(cmd *cobra.Command) {
	cmd.Flags().String("sort", vfm.DefaultSort, "Sort key: name, size or createdAt, with -asc or -desc")
	cmd.Flags().String("search", "", "Only names containing this text (case-insensitive)")
	cmd.Flags().IntP("limit", "n", 0, "Maximum number of files to show (0 for all)")
	cmd.Flags().StringSlice("type", nil, "Only these file types: document, other")
}

func init() {
	folderCmd.AddCommand(folderMkCmd)
	folderMkCmd.Flags().StringP("parent", "p", "/", "Parent folder path or id")
	folderCmd.AddCommand(folderCheckCmd)
	folderCheckCmd.Flags().StringP("parent", "p", "/", "Parent folder path or id")
	folderCmd.AddCommand(folderLsCmd)
	addListFlags(folderLsCmd)
	folderCmd.AddCommand(folderRenameCmd)
	folderCmd.AddCommand(folderMvCmd)
	folderCmd.AddCommand(folderRmCmd)
	folderCmd.AddCommand(folderStatsCmd)
	folderCmd.AddCommand(folderPathCmd)

	fileCmd.AddCommand(fileUploadCmd)
	fileUploadCmd.Flags().StringP("parent", "p", "/", "Destination folder path or id")
	fileUploadCmd.Flags().BoolP("dir", "d", false, "Upload directories instead of files")
	fileUploadCmd.Flags().BoolP("recursive", "r", true, "With --dir, descend into subdirectories")
	fileCmd.AddCommand(fileLsCmd)
	addListFlags(fileLsCmd)
	fileLsCmd.Flags().StringP("parent", "p", "/", "Only files directly in this folder")
	fileCmd.AddCommand(fileRecentCmd)
	fileRecentCmd.Flags().IntP("limit", "n", 10, "Maximum number of files to show")
	fileCmd.AddCommand(fileRenameCmd)
	fileCmd.AddCommand(fileMvCmd)
	fileCmd.AddCommand(fileRmCmd)
	fileCmd.AddCommand(fileGetCmd)
	fileGetCmd.Flags().StringP("output", "o", "", "Write to this path (\"-\" for stdout)")
	fileCmd.AddCommand(fileURLCmd)
	fileCmd.AddCommand(fileUsageCmd)

	shareCmd.AddCommand(shareAddCmd)
	shareCmd.AddCommand(shareLsCmd)
	shareCmd.AddCommand(shareMineCmd)
	shareCmd.AddCommand(shareInboxCmd)
	shareCmd.AddCommand(shareRevokeCmd)
	shareCmd.AddCommand(shareAccessCmd)
}
