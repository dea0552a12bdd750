package main

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/thinfilm/internal/store"
)

var (
	designsDataDir string
	keepLast       int
	olderThanDays  int
	designFilter   string
	forceClean     bool
)

var designsCmd = &cobra.Command{
	Use:   "designs",
	Short: "Manage saved designs",
	Long:  `Lists and cleans the optimised designs saved by optimize --store and serve.`,
}

var listDesignsCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved designs",
	Long:  `Displays every saved design with its ID, design name, method, merit, parameter count, timestamp and size.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return listDesigns(cmd.OutOrStdout())
	},
}

var cleanDesignsCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete old designs",
	Long: `Deletes saved designs by retention policy: keep the newest N per design name,
delete those older than N days, or both.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cleanDesigns(cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(designsCmd)
	designsCmd.AddCommand(listDesignsCmd)
	designsCmd.AddCommand(cleanDesignsCmd)

	designsCmd.PersistentFlags().StringVar(&designsDataDir, "data-dir", "./data", "Base directory of the design store")

	cleanDesignsCmd.Flags().IntVar(&keepLast, "keep-last", 0, "Keep only the newest N snapshots per design (0 = keep all)")
	cleanDesignsCmd.Flags().IntVar(&olderThanDays, "older-than", 0, "Delete snapshots older than N days (0 = no age limit)")
	cleanDesignsCmd.Flags().StringVar(&designFilter, "design", "", "Only clean snapshots of this design")
	cleanDesignsCmd.Flags().BoolVarP(&forceClean, "force", "f", false, "Skip confirmation prompt")
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12] + "..."
	}
	return id
}

func listDesigns(out io.Writer) error {
	st, err := store.NewFSStore(designsDataDir)
	if err != nil {
		return fmt.Errorf("failed to open design store: %w", err)
	}
	infos, err := st.ListDesigns()
	if err != nil {
		return fmt.Errorf("failed to list designs: %w", err)
	}
	if len(infos) == 0 {
		fmt.Fprintln(out, "No designs found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDESIGN\tMETHOD\tCHI2\tPARAMS\tTIMESTAMP\tSIZE")
	for _, info := range infos {
		size := "unknown"
		if n, err := getDirSize(filepath.Join(designsDataDir, "designs", info.ID)); err == nil {
			size = formatBytes(n)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%.6g\t%d\t%s\t%s\n",
			shortID(info.ID),
			info.Design,
			info.Method,
			info.Chi2,
			info.Params,
			info.Timestamp.Format("2006-01-02 15:04:05"),
			size,
		)
	}
	w.Flush()
	fmt.Fprintf(out, "\nTotal designs: %d\n", len(infos))
	return nil
}

func cleanDesigns(in io.Reader, out io.Writer) error {
	if keepLast == 0 && olderThanDays == 0 {
		return fmt.Errorf("must specify either --keep-last or --older-than")
	}
	st, err := store.NewFSStore(designsDataDir)
	if err != nil {
		return fmt.Errorf("failed to open design store: %w", err)
	}
	infos, err := st.ListDesigns()
	if err != nil {
		return fmt.Errorf("failed to list designs: %w", err)
	}
	if designFilter != "" {
		kept := infos[:0]
		for _, info := range infos {
			if info.Design == designFilter {
				kept = append(kept, info)
			}
		}
		infos = kept
	}

	toDelete := selectDesignsForDeletion(infos, keepLast, olderThanDays, time.Now())
	if len(toDelete) == 0 {
		fmt.Fprintln(out, "No designs match deletion criteria.")
		return nil
	}

	fmt.Fprintf(out, "Found %d design(s) to delete:\n", len(toDelete))
	for _, info := range toDelete {
		fmt.Fprintf(out, "  - %s (%s, chi2 %.6g, %s)\n",
			shortID(info.ID), info.Design, info.Chi2, info.Timestamp.Format("2006-01-02 15:04:05"))
	}

	if !forceClean {
		fmt.Fprint(out, "\nProceed with deletion? [y/N]: ")
		response, _ := bufio.NewReader(in).ReadString('\n')
		response = strings.TrimSpace(response)
		if response != "y" && response != "Y" {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	deleted, failed := 0, 0
	for _, info := range toDelete {
		if err := st.DeleteDesign(info.ID); err != nil {
			slog.Error("Failed to delete design", "id", info.ID, "error", err)
			failed++
			continue
		}
		slog.Info("Deleted design", "id", info.ID)
		deleted++
	}
	fmt.Fprintf(out, "\nDeleted %d design(s), %d failed.\n", deleted, failed)
	return nil
}

// selectDesignsForDeletion returns the snapshots older than olderThanDays
// together with all but the newest keepLast snapshots of each design name.
func selectDesignsForDeletion(infos []store.SnapshotInfo, keepLast, olderThanDays int, now time.Time) []store.SnapshotInfo {
	selected := make(map[string]bool)
	var toDelete []store.SnapshotInfo
	pick := func(info store.SnapshotInfo) {
		if !selected[info.ID] {
			selected[info.ID] = true
			toDelete = append(toDelete, info)
		}
	}

	if olderThanDays > 0 {
		cutoff := now.AddDate(0, 0, -olderThanDays)
		for _, info := range infos {
			if info.Timestamp.Before(cutoff) {
				pick(info)
			}
		}
	}

	if keepLast > 0 {
		byDesign := make(map[string][]store.SnapshotInfo)
		var names []string
		for _, info := range infos {
			if _, ok := byDesign[info.Design]; !ok {
				names = append(names, info.Design)
			}
			byDesign[info.Design] = append(byDesign[info.Design], info)
		}
		for _, name := range names {
			group := byDesign[name]
			sort.SliceStable(group, func(i, j int) bool { return group[i].Timestamp.After(group[j].Timestamp) })
			for i := keepLast; i < len(group); i++ {
				pick(group[i])
			}
		}
	}
	return toDelete
}

// getDirSize sums the sizes of the files under path.
func getDirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
