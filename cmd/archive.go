package cmd

import (
	"fmt"
	"os"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"coldfront-rental-sync/internal/backup"
)

var (
	archivePushSource  string
	archivePushKey     string
	archivePushEncrypt bool
	archivePullKey     string
	archivePullDest    string
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Pack exports and move them through archive storage",
	Long: `Archive packs an export directory into a compressed tar blob, optionally
encrypted with a passphrase, and stores it in the configured backend
(local directory, S3, Azure Blob Storage or Google Cloud Storage).

Examples:
  rental-sync archive push --source ./export-2026-08
  rental-sync archive push --source ./export-2026-08 --encrypt
  rental-sync archive list
  rental-sync archive pull --key export-20260823-1a2b3c4d.tar.gz --dest ./restored`,
}

var archivePushCmd = &cobra.Command{
	Use:   "push",
	Short: "Pack an export directory and upload it",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newAppContext()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		passphrase := ""
		if archivePushEncrypt {
			passphrase, err = promptPassphrase(true)
			if err != nil {
				return err
			}
		}

		ct := app.cfg.CompressionType()
		blob, meta, err := backup.PackArchive(archivePushSource, ct, passphrase)
		if err != nil {
			return err
		}

		key := archivePushKey
		if key == "" {
			if meta.ExportID == "" {
				return fmt.Errorf("export id not found in %s; pass --key explicitly", archivePushSource)
			}
			key = meta.ExportID + backup.ArchiveExtension(ct)
		}

		store, err := backup.NewArchiveStore(ctx, app.cfg.Archive.Storage)
		if err != nil {
			return err
		}
		if err := store.Put(ctx, key, blob, meta); err != nil {
			return err
		}
		app.log.LogArchive("push", string(app.cfg.Archive.Storage.Provider), key, meta.Size)
		fmt.Printf("Pushed %s (%d bytes, %s", key, meta.Size, meta.Compression)
		if meta.Encrypted {
			fmt.Printf(", encrypted")
		}
		fmt.Printf(")\n")
		return nil
	},
}

var archivePullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Download an archive and unpack it into a directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newAppContext()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		store, err := backup.NewArchiveStore(ctx, app.cfg.Archive.Storage)
		if err != nil {
			return err
		}
		blob, meta, err := store.Get(ctx, archivePullKey)
		if err != nil {
			return err
		}
		if meta == nil {
			// No sidecar; infer compression from the key.
			meta = &backup.ArchiveMetadata{Compression: backup.CompressionTypeForName(archivePullKey)}
		}

		passphrase := ""
		if meta.Encrypted {
			passphrase, err = promptPassphrase(false)
			if err != nil {
				return err
			}
		}
		if err := backup.UnpackArchive(blob, meta, archivePullDest, passphrase); err != nil {
			return err
		}
		app.log.LogArchive("pull", string(app.cfg.Archive.Storage.Provider), archivePullKey, int64(len(blob)))
		fmt.Printf("Unpacked %s into %s\n", archivePullKey, archivePullDest)
		return nil
	},
}

var archiveListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored archives",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newAppContext()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		store, err := backup.NewArchiveStore(ctx, app.cfg.Archive.Storage)
		if err != nil {
			return err
		}
		entries, err := store.List(ctx)
		if err != nil {
			return err
		}
		app.reporter.ArchiveList(entries)
		return nil
	},
}

// promptPassphrase reads a passphrase without echo. With confirm set the
// passphrase is read twice and must match.
func promptPassphrase(confirm bool) (string, error) {
	fmt.Fprint(os.Stderr, "Passphrase: ")
	first, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read passphrase: %w", err)
	}
	if len(first) == 0 {
		return "", fmt.Errorf("passphrase must not be empty")
	}
	if confirm {
		fmt.Fprint(os.Stderr, "Confirm passphrase: ")
		second, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("failed to read passphrase: %w", err)
		}
		if string(first) != string(second) {
			return "", fmt.Errorf("passphrases do not match")
		}
	}
	return string(first), nil
}

func init() {
	rootCmd.AddCommand(archiveCmd)
	archiveCmd.AddCommand(archivePushCmd, archivePullCmd, archiveListCmd)

	archivePushCmd.Flags().StringVarP(&archivePushSource, "source", "s", "", "export directory to pack (required)")
	archivePushCmd.Flags().StringVar(&archivePushKey, "key", "", "storage key (default derived from the export id)")
	archivePushCmd.Flags().BoolVar(&archivePushEncrypt, "encrypt", false, "encrypt the archive with a passphrase")
	archivePushCmd.MarkFlagRequired("source")

	archivePullCmd.Flags().StringVar(&archivePullKey, "key", "", "storage key of the archive (required)")
	archivePullCmd.Flags().StringVarP(&archivePullDest, "dest", "d", "", "directory to unpack into (required)")
	archivePullCmd.MarkFlagRequired("key")
	archivePullCmd.MarkFlagRequired("dest")
}
