package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/efebarandurmaz/apistat/internal/analysis"
	"github.com/efebarandurmaz/apistat/internal/report"
	"github.com/efebarandurmaz/apistat/internal/snapshot"
)

const defaultStoreDir = ".apistat"

func newDiffCmd(a *app) *cobra.Command {
	var (
		f        analysisFlags
		format   string
		storeDir string
	)
	cmd := &cobra.Command{
		Use:   "diff OLD NEW",
		Short: "Compare two indexes or snapshots of the same crate",
		Long: `diff compares the statistics and items of two versions of a crate. OLD and
NEW may be rustdoc JSON indexes, snapshot files, or the id or tag of a snapshot
in the store.`,
		Args: exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fm := reportFormat(format)
			if !supportsDiff(fm) {
				return &report.UnsupportedPresentationError{Format: format}
			}
			l := &snapshotLoader{cmd: cmd, a: a, f: &f, storeDir: storeDir}
			old, err := l.load(args[0])
			if err != nil {
				return err
			}
			cur, err := l.load(args[1])
			if err != nil {
				return err
			}
			d, err := snapshot.Diff(old, cur)
			if err != nil {
				return err
			}
			return snapshot.WriteDiff(cmd.OutOrStdout(), d, fm)
		},
	}
	f.register(cmd)
	cmd.Flags().StringVarP(&format, "format", "f", "table", "table, csv or json")
	cmd.Flags().StringVar(&storeDir, "store", defaultStoreDir, "snapshot store directory")
	return cmd
}

func supportsDiff(fm report.Format) bool {
	for _, s := range snapshot.DiffFormats {
		if s == fm {
			return true
		}
	}
	return false
}

// snapshotLoader turns a command line argument into a snapshot.
type snapshotLoader struct {
	cmd      *cobra.Command
	a        *app
	f        *analysisFlags
	storeDir string
	store    *snapshot.Store
}

func (l *snapshotLoader) load(ref string) (*snapshot.Snapshot, error) {
	data, err := os.ReadFile(ref)
	switch {
	case err == nil:
		if snapshot.IsSnapshot(data) {
			return snapshot.Decode(data)
		}
		res, err := analysis.Run(l.cmd.Context(), data, l.f.options(l.cmd, l.a, ref))
		if err != nil {
			return nil, err
		}
		return snapshot.New(res, ref), nil
	case !errors.Is(err, fs.ErrNotExist):
		return nil, &analysis.StageError{Stage: analysis.StageLoad, Err: err}
	}

	if l.store == nil {
		if _, statErr := os.Stat(l.storeDir); statErr != nil {
			return nil, &analysis.StageError{Stage: analysis.StageLoad, Err: err}
		}
		if l.store, err = snapshot.NewStore(l.storeDir); err != nil {
			return nil, err
		}
	}
	return l.store.Find(ref)
}

func newSnapshotCmd(a *app) *cobra.Command {
	var storeDir string
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Save and list analysis snapshots",
	}
	cmd.PersistentFlags().StringVar(&storeDir, "store", defaultStoreDir, "snapshot store directory")

	var (
		f   analysisFlags
		tag string
	)
	save := &cobra.Command{
		Use:   "save FILE",
		Short: "Analyse an index and store the result",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := f.analyze(cmd, a, args[0])
			if err != nil {
				return err
			}
			store, err := snapshot.NewStore(storeDir)
			if err != nil {
				return err
			}
			snap := snapshot.New(res, args[0])
			snap.Tag = tag
			if err := store.Save(snap); err != nil {
				return err
			}
			a.logger.Info("snapshot saved", "id", snap.ID, "crate", snap.Crate, "items", len(snap.Items))
			fmt.Fprintln(cmd.OutOrStdout(), snap.ID)
			return nil
		},
	}
	f.register(save)
	save.Flags().StringVarP(&tag, "tag", "t", "", "tag to attach, such as a release version")

	list := &cobra.Command{
		Use:   "list",
		Short: "List stored snapshots, newest first",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := snapshot.NewStore(storeDir)
			if err != nil {
				return err
			}
			t := report.NewGrid([]string{"ID", "Tag", "Crate", "Version", "Created", "Items"}, 5)
			for _, s := range store.List() {
				t.Row(s.ID, s.Tag, s.Crate, s.CrateVersion, s.CreatedAt.Format("2006-01-02 15:04:05"), strconv.Itoa(s.Items))
			}
			fmt.Fprintln(cmd.OutOrStdout(), t.String())
			return nil
		},
	}

	tagCmd := &cobra.Command{
		Use:   "tag ID TAG",
		Short: "Attach a tag to a stored snapshot",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := snapshot.NewStore(storeDir)
			if err != nil {
				return err
			}
			return store.Tag(args[0], args[1])
		},
	}

	del := &cobra.Command{
		Use:   "delete REF...",
		Short: "Remove stored snapshots by id or tag",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return usageErrorf("delete needs at least one snapshot id or tag")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := snapshot.NewStore(storeDir)
			if err != nil {
				return err
			}
			var missing []string
			for _, ref := range args {
				snap, err := store.Find(ref)
				if err != nil {
					missing = append(missing, ref)
					continue
				}
				if err := store.Delete(snap.ID); err != nil {
					return err
				}
			}
			if len(missing) > 0 {
				return fmt.Errorf("no snapshot for %s", strings.Join(missing, ", "))
			}
			return nil
		},
	}

	cmd.AddCommand(save, list, tagCmd, del)
	return cmd
}
