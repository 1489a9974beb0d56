package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"slices"

	"github.com/mgramigna/cql-language-server/internal/config"
	"github.com/mgramigna/cql-language-server/internal/content"
	"github.com/mgramigna/cql-language-server/internal/manager"
	"github.com/mgramigna/cql-language-server/internal/resolver"
	"github.com/mgramigna/cql-language-server/internal/scanner"
	"github.com/mgramigna/cql-language-server/internal/scheduler"
	"github.com/mgramigna/cql-language-server/internal/translator"
	"github.com/mgramigna/cql-language-server/internal/workspace"
	"github.com/spf13/cobra"
)

func newTranslateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "translate <file or directory>...",
		Short: "Translate CQL sources and print the artifacts as JSON",
		Long: `Loads the given files, and every source below the given directories,
into a workspace and prints one translation artifact per file. Directories
become workspace folders, so includes resolve across their subtrees.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFile(opts.configPath)
			if err != nil {
				return err
			}
			artifacts, err := translatePaths(cmd.Context(), cfg, args)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(artifacts); err != nil {
				return err
			}

			failed := 0
			for _, a := range artifacts {
				if !a.Success() {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d libraries have errors", failed, len(artifacts))
			}
			return nil
		},
	}
}

func translatePaths(ctx context.Context, cfg config.Config, paths []string) ([]*translator.Artifact, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	store := content.NewStore()
	folders := workspace.NewFolders()

	load := func(path string, document []byte) {
		store.Put(fileURI(path), string(document), nil)
	}
	skip := func(path string, info fs.FileInfo) bool {
		return !cfg.Accepts(path)
	}

	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			document, err := os.ReadFile(abs)
			if err != nil {
				return nil, err
			}
			load(abs, document)
			continue
		}
		folders.Add(fileURI(abs))
		if err := scanner.Scan(ctx, abs, skip, load); err != nil {
			return nil, err
		}
	}

	schedule := scheduler.NewScheduler(cfg.FetchWorkers, cfg.FetchWorkers*4)
	schedule.RunScheduler()
	defer schedule.StopScheduler()

	m, err := manager.NewTranslationManager(manager.Config{
		Store:      store,
		Folders:    folders,
		Reader:     resolver.NewReader(store, resolver.NewFetcher(schedule, cfg.FetchTimeout())),
		Translator: translator.Structural{},
		CacheSize:  max(cfg.CacheSize, store.Len()),
	})
	if err != nil {
		return nil, err
	}

	uris := make([]string, 0, store.Len())
	for uri := range store.Entries() {
		uris = append(uris, uri)
	}
	slices.Sort(uris)

	artifacts := make([]*translator.Artifact, 0, len(uris))
	for _, uri := range uris {
		a, err := m.Translate(ctx, uri)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, nil
}

func fileURI(path string) string {
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
}
