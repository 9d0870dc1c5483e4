package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/clocktower/grimoire-server-go/internal/game/characters"
)

func newScriptCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "script",
		Short: "Inspect character scripts",
	}
	cmd.AddCommand(newScriptValidateCmd(a), newScriptOrderCmd(a), newScriptCharactersCmd())
	return cmd
}

func newScriptValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [script files...]",
		Short: "Check scripts for unknown or repeated characters and bad rules",
		Long: `Validates the given script files. Without arguments every script
in the configured scripts directory is checked.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := args
			if len(paths) == 0 {
				var err error
				paths, err = filepath.Glob(filepath.Join(a.cfg.Scripts.Dir, "*.yaml"))
				if err != nil {
					return err
				}
				if len(paths) == 0 {
					return fmt.Errorf("no scripts found in %s", a.cfg.Scripts.Dir)
				}
			}

			failed := 0
			for _, path := range paths {
				script, err := characters.LoadScriptFile(path)
				if err != nil {
					failed++
					a.logger.Error("invalid script", zap.String("path", path), zap.Error(err))
					fmt.Fprintf(cmd.OutOrStdout(), "FAIL %s: %v\n", path, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "ok   %s (%s, %d characters)\n", path, script.Name, len(script.Characters))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d scripts invalid", failed, len(paths))
			}
			return nil
		},
	}
}

func newScriptOrderCmd(a *app) *cobra.Command {
	var first bool
	cmd := &cobra.Command{
		Use:   "order <script>",
		Short: "Print the night order of a script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			script, err := loadScript(a, args[0])
			if err != nil {
				return err
			}
			a.cfg.Rules.Apply(script)
			registry, err := characters.NewRegistry(script)
			if err != nil {
				return err
			}

			night := "other nights"
			if first {
				night = "first night"
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s, %s:\n", script.Name, night)
			for i, id := range registry.NightOrder(first) {
				def, err := registry.Lookup(id)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%2d. %-16s %-10s %3d\n", i+1, def.Name, def.Type, def.NightOrder)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&first, "first", false, "show the first night instead of other nights")
	return cmd
}

func newScriptCharactersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "characters",
		Short: "List every character the engine knows",
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog := characters.Catalog()
			sort.Slice(catalog, func(i, j int) bool {
				if catalog[i].Type != catalog[j].Type {
					return catalog[i].Type < catalog[j].Type
				}
				return catalog[i].ID < catalog[j].ID
			})
			for _, def := range catalog {
				fmt.Fprintf(cmd.OutOrStdout(), "%-16s %-10s %-5s %s\n", def.ID, def.Type, def.Alignment, def.Hooks)
			}
			return nil
		},
	}
}

// loadScript accepts a path or the name of a script in the scripts directory.
func loadScript(a *app, nameOrPath string) (*characters.Script, error) {
	if _, err := os.Stat(nameOrPath); err == nil {
		return characters.LoadScriptFile(nameOrPath)
	}
	name := nameOrPath
	if filepath.Ext(name) == "" {
		name += ".yaml"
	}
	return characters.LoadScriptFile(filepath.Join(a.cfg.Scripts.Dir, name))
}
