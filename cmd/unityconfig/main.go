// Command `unityconfig` manages and resolves game configs from the terminal.
//
// It works on a project folder that keeps named config variants under
// Config/<name>/config.json and publishes the active and fallback variants
// into the bundled resources folder, the same layout the game reads at
// runtime.
//
// Usage:
//
//	unityconfig load [--values file] [--timeout d]   - Resolve the config the game would start with
//	unityconfig settings                             - Show the loading settings
//	unityconfig settings set [flags]                 - Change the loading settings and republish
//	unityconfig variants list|show|add|save|remove   - Manage local variants
//	unityconfig variants publish [--build]           - Republish bundled configs
//	unityconfig variants export <name> [--compress]  - Print a variant as remote parameters
//	unityconfig compress | decompress                - Pack or unpack a remote value (stdin to stdout)
//	unityconfig serve <variant> [--mode m]           - Serve a variant over a local fetch endpoint
//	unityconfig serve status [--addr a]              - Show a running emulator's status
//	unityconfig cache                                - Print the cache file path
//	unityconfig cache clear                          - Delete the cached remote config
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/build1/unityconfig/internal/app"
	"github.com/build1/unityconfig/internal/buildinfo"
	"github.com/build1/unityconfig/internal/config"
	"github.com/build1/unityconfig/internal/log"
	"github.com/build1/unityconfig/pkg/api"
	"github.com/build1/unityconfig/pkg/client"
	"github.com/build1/unityconfig/pkg/codec"
	"github.com/build1/unityconfig/pkg/configerr"
	"github.com/build1/unityconfig/pkg/firebase"
	"github.com/build1/unityconfig/pkg/node"
	"github.com/build1/unityconfig/pkg/settings"
)

func main() {
	var (
		configPath string
		debug      bool
		cfg        *config.Config
	)

	build := func(o app.Options) (*app.App, error) {
		if debug {
			o.Debug = &debug
		}
		return app.New(cfg, o)
	}

	root := &cobra.Command{
		Use:   "unityconfig",
		Short: "Game config variants, publishing and remote resolution",
		Long: `unityconfig manages local config variants of a game project, publishes the
active and fallback variants into the bundled resources, and resolves the
config the game would start with: remote, cached or bundled.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			log.SetDebug(debug)
			var err error
			cfg, err = config.New(configPath).Load()
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (default ~/.unityconfig/config.yaml)")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "debug logging; always refetch remote config")

	// ---- version command ----
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("version: %s\n", buildinfo.Version)
			fmt.Printf("commit: %s\n", buildinfo.Commit)
		},
	}

	// ---- load command ----
	var (
		valuesPath  string
		loadTimeout time.Duration
	)
	loadCmd := &cobra.Command{
		Use:   "load",
		Short: "Resolve the config the game would start with",
		Long: `Resolve the config exactly as the game does at startup: read the bundled
settings, then serve the local variant, the remote config, the cache or the
bundled fallback.

With --values the remote provider is replaced by a JSON object of parameter
names to string values, which is handy to try a remote change offline.`,
		Example: "unityconfig load --values params.json --timeout 5s",
		Args:    cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			var o app.Options
			if valuesPath != "" {
				values, err := readValues(valuesPath)
				if err != nil {
					return err
				}
				o.Client = firebase.NewMemory(values)
			}
			a, err := build(o)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
			defer cancel()
			doc, err := a.Loader.Load(ctx)
			if err != nil {
				color.New(color.FgHiRed, color.Bold).Print("✗ ")
				color.New(color.FgRed).Printf("%s\n", configerr.KindOf(err))
				return err
			}
			out, err := doc.JSON(true)
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
	loadCmd.Flags().StringVar(&valuesPath, "values", "", "JSON file of remote parameters to serve instead of Firebase")
	loadCmd.Flags().DurationVar(&loadTimeout, "timeout", 30*time.Second, "overall deadline for the load")

	// ---- settings commands ----
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Show the loading settings",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			a, err := build(app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()
			ed, err := a.Workspace.Settings()
			if err != nil {
				return err
			}
			renderSettings(ed.Settings())
			return nil
		},
	}

	var (
		setSource, setMode, setParameter, setFallbackSource string
		setFallback, setCache, setFastLoading, setReset     bool
		setTimeout                                          int
	)
	settingsSetCmd := &cobra.Command{
		Use:   "set",
		Short: "Change the loading settings and republish",
		Long: `Change the loading settings. Only the flags given are applied. Turning a
flag off also turns off the flags that depend on it: fallback, then cache,
then fast loading.`,
		Example: "unityconfig settings set --source remote --fallback --fallback-source prod --cache",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := build(app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()
			ed, err := a.Workspace.Settings()
			if err != nil {
				return err
			}

			f := cmd.Flags()
			if f.Changed("source") {
				ed.SetSource(setSource)
			}
			if f.Changed("reset-for-builds") {
				ed.SetResetSourceForBuilds(setReset)
			}
			if f.Changed("mode") {
				m, err := settings.ParseMode(setMode)
				if err != nil {
					return err
				}
				ed.SetMode(m)
			}
			if f.Changed("parameter") {
				ed.SetParameterName(setParameter)
			}
			if f.Changed("fallback") {
				ed.SetFallbackEnabled(setFallback)
			}
			if f.Changed("fallback-source") {
				ed.SetFallbackSource(setFallbackSource)
			}
			if f.Changed("timeout") {
				if err := ed.SetFallbackTimeout(setTimeout); err != nil {
					return err
				}
			}
			if f.Changed("cache") {
				if err := ed.SetCacheEnabled(setCache); err != nil {
					return err
				}
			}
			if f.Changed("fast-loading") {
				if err := ed.SetFastLoadingEnabled(setFastLoading); err != nil {
					return err
				}
			}
			if !ed.Dirty() {
				color.Yellow("Nothing changed.")
				return nil
			}
			if err := a.Workspace.SaveSettings(ed); err != nil {
				return err
			}
			color.New(color.FgGreen, color.Bold).Println("✓ Settings saved and published")
			renderSettings(ed.Settings())
			return nil
		},
	}
	sf := settingsSetCmd.Flags()
	sf.StringVar(&setSource, "source", "", `active variant, or "remote"`)
	sf.BoolVar(&setReset, "reset-for-builds", false, "switch the source to remote in release builds")
	sf.StringVar(&setMode, "mode", "", `remote decoding: "default" or "decomposed"`)
	sf.StringVar(&setParameter, "parameter", "", "remote parameter read in default mode")
	sf.BoolVar(&setFallback, "fallback", false, "serve a bundled fallback when remote fails")
	sf.StringVar(&setFallbackSource, "fallback-source", "", "variant bundled as the fallback")
	sf.IntVar(&setTimeout, "timeout", 0, "remote fetch timeout in milliseconds (fallback only)")
	sf.BoolVar(&setCache, "cache", false, "cache the last remote config on disk")
	sf.BoolVar(&setFastLoading, "fast-loading", false, "serve cache or fallback first, refresh remote in background")
	settingsCmd.AddCommand(settingsSetCmd)

	// ---- variants commands ----
	variantsCmd := &cobra.Command{
		Use:   "variants",
		Short: "Manage local config variants",
	}
	variantsListCmd := &cobra.Command{
		Use:   "list",
		Short: "List variants",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			a, err := build(app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()
			names, err := a.Workspace.List()
			if err != nil {
				return err
			}
			ed, err := a.Workspace.Settings()
			if err != nil {
				return err
			}
			s := ed.Settings()

			table := newTable("Variant", "Active", "Fallback", "Last change")
			for _, name := range names {
				active, fallback := "", ""
				if name == s.Source {
					active = "●"
				}
				if s.FallbackEnabled && name == s.FallbackSource {
					fallback = "●"
				}
				table.Append([]string{name, active, fallback, lastChange(a, name)})
			}
			color.New(color.Bold).Println("CONFIG VARIANTS:")
			table.Render()
			return nil
		},
	}
	variantsShowCmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Print a variant",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			a, err := build(app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()
			doc, err := readDocument(a, args[0])
			if err != nil {
				return err
			}
			out, err := doc.JSON(true)
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
	var note string
	stamp := func(content []byte) ([]byte, error) {
		doc, err := node.Parse(string(content))
		if err != nil {
			return nil, err
		}
		if err := doc.Touch(node.CurrentUser(), time.Now()); err != nil {
			return nil, err
		}
		if note != "" {
			m, _ := doc.Metadata()
			m.Note = note
		}
		return doc.JSON(true)
	}
	variantsAddCmd := &cobra.Command{
		Use:     "add <name> [file]",
		Short:   "Create a variant from a JSON file (or stdin)",
		Example: "unityconfig variants add qa ./qa.json",
		Args:    cobra.RangeArgs(1, 2),
		RunE: func(_ *cobra.Command, args []string) error {
			content, err := readInput(args[1:])
			if err != nil {
				return err
			}
			if content, err = stamp(content); err != nil {
				return err
			}
			a, err := build(app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.Workspace.Add(args[0], content); err != nil {
				return err
			}
			color.New(color.FgGreen, color.Bold).Printf("✓ Added ")
			color.New(color.FgHiGreen, color.Bold).Println(args[0])
			return nil
		},
	}
	variantsAddCmd.Flags().StringVar(&note, "note", "", "note stored in the variant metadata")
	variantsSaveCmd := &cobra.Command{
		Use:   "save <name> [file]",
		Short: "Replace a variant from a JSON file (or stdin) and refresh published copies",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(_ *cobra.Command, args []string) error {
			content, err := readInput(args[1:])
			if err != nil {
				return err
			}
			if content, err = stamp(content); err != nil {
				return err
			}
			a, err := build(app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.Workspace.Save(args[0], content); err != nil {
				return err
			}
			color.New(color.FgGreen, color.Bold).Printf("✓ Saved ")
			color.New(color.FgHiGreen, color.Bold).Println(args[0])
			return nil
		},
	}
	variantsSaveCmd.Flags().StringVar(&note, "note", "", "note stored in the variant metadata")
	var assumeYes bool
	variantsRemoveCmd := &cobra.Command{
		Use:   "remove <name>",
		Short: "Delete a variant",
		Long: `Delete a variant. Removing the active variant switches the source back to
remote; removing the fallback variant turns fallback off.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			name := args[0]
			if !assumeYes {
				color.New(color.FgHiRed, color.Bold).Print("WARNING: ")
				color.New(color.FgYellow).Printf("You are about to delete the variant ")
				color.New(color.FgHiYellow, color.Bold).Printf("%s\n", name)
				color.New(color.FgHiWhite).Print("Are you sure you want to proceed? (y/yes/n/no): ")

				var response string
				if _, err := fmt.Scanln(&response); err != nil {
					return fmt.Errorf("failed to read input: %w", err)
				}
				response = strings.ToLower(response)
				if response != "y" && response != "yes" {
					return fmt.Errorf("operation aborted")
				}
			}
			a, err := build(app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.Workspace.Remove(name); err != nil {
				return err
			}
			color.New(color.FgGreen, color.Bold).Printf("✓ Removed ")
			color.New(color.FgHiGreen, color.Bold).Println(name)
			return nil
		},
	}
	variantsRemoveCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "do not ask for confirmation")
	var publishBuild bool
	variantsPublishCmd := &cobra.Command{
		Use:   "publish",
		Short: "Republish the runtime settings and bundled configs",
		Long: `Republish the runtime settings and bundled configs. With --build the
release layout is published: when reset for builds is on, the source is
switched to remote for the build only and the editor keeps the selected
variant. Run publish without --build afterwards to restore the development
layout.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			a, err := build(app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.Workspace.Check(); err != nil {
				return err
			}
			ed, err := a.Workspace.Settings()
			if err != nil {
				return err
			}
			publish := a.Workspace.Publish
			if publishBuild {
				publish = a.Workspace.PublishForBuild
			}
			if err := publish(ed.Settings()); err != nil {
				return err
			}
			color.New(color.FgGreen, color.Bold).Printf("✓ Published to ")
			color.New(color.FgHiWhite).Println(a.Workspace.Resources())
			return nil
		},
	}
	variantsPublishCmd.Flags().BoolVar(&publishBuild, "build", false, "publish the release build layout")
	var exportCompress bool
	variantsExportCmd := &cobra.Command{
		Use:   "export <name>",
		Short: "Print a variant as remote parameters for decomposed mode",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			a, err := build(app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()
			doc, err := readDocument(a, args[0])
			if err != nil {
				return err
			}
			values, err := doc.Decompose(exportCompress)
			if err != nil {
				return err
			}
			table := newTable("Parameter", "Value")
			for _, k := range doc.Sections() {
				table.Append([]string{k, values[k]})
			}
			table.Render()
			return nil
		},
	}
	variantsExportCmd.Flags().BoolVar(&exportCompress, "compress", false, "compress object and array sections")
	variantsCmd.AddCommand(variantsListCmd, variantsShowCmd, variantsAddCmd, variantsSaveCmd,
		variantsRemoveCmd, variantsPublishCmd, variantsExportCmd)

	// ---- compress / decompress commands ----
	compressCmd := &cobra.Command{
		Use:   "compress",
		Short: "Compress stdin into a remote config value",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			in, err := io.ReadAll(os.Stdin)
			if err != nil {
				return err
			}
			out, err := codec.Compress(strings.TrimSpace(string(in)))
			if err != nil {
				return err
			}
			fmt.Println(out)
			return nil
		},
	}
	decompressCmd := &cobra.Command{
		Use:   "decompress",
		Short: "Decompress a remote config value from stdin",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			in, err := io.ReadAll(os.Stdin)
			if err != nil {
				return err
			}
			out, err := codec.Decompress(strings.TrimSpace(string(in)))
			if err != nil {
				return err
			}
			fmt.Println(out)
			return nil
		},
	}

	// ---- serve command ----
	var (
		serveAddr, serveMode, serveParameter string
		serveCompress                        bool
	)
	serveCmd := &cobra.Command{
		Use:   "serve <variant>",
		Short: "Serve a variant over a local remote config fetch endpoint",
		Long: `Serve a variant the way Firebase would deliver it, so a game or
"unityconfig load" pointed at this endpoint resolves it as remote config.
The variant is reread on every fetch. Fetches must carry the project id and
api key from config.yaml when those are set.`,
		Example: "unityconfig serve qa --addr 127.0.0.1:8087 --mode decomposed --compress",
		Args:    cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			mode, err := settings.ParseMode(serveMode)
			if err != nil {
				return err
			}
			a, err := build(app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()
			if _, err := a.Workspace.Read(args[0]); err != nil {
				return err
			}

			srv := api.New(
				api.VariantSource(a.Workspace, args[0], api.Layout{
					Mode:      mode,
					Parameter: serveParameter,
					Compress:  serveCompress,
				}),
				api.Options{ProjectID: cfg.Firebase.ProjectID, APIKey: cfg.Firebase.APIKey},
			)
			errc := make(chan error, 1)
			go func() { errc <- srv.ListenAndServe(serveAddr) }()

			// graceful shutdown
			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sig)

			select {
			case err := <-errc:
				return err
			case <-sig:
			}
			log.Info("shutting down…")

			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Errorf("api shutdown error: %v", err)
			}
			return <-errc
		},
	}
	serveCmd.Flags().StringVar(&serveAddr, "addr", "127.0.0.1:8087", "listen address")
	serveCmd.Flags().StringVar(&serveMode, "mode", "default", `parameter layout: "default" or "decomposed"`)
	serveCmd.Flags().StringVar(&serveParameter, "parameter", settings.DefaultParameterName, "parameter holding the variant in default mode")
	serveCmd.Flags().BoolVar(&serveCompress, "compress", false, "compress the served values")

	var statusAddr string
	serveStatusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the status of a running emulator",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			st, err := client.New(statusAddr).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get status: %w", err)
			}
			table := newTable("Fetches", "Uptime", "Version")
			table.Append([]string{
				strconv.FormatInt(st.Fetches, 10),
				st.Uptime.Round(time.Second).String(),
				st.Version,
			})
			table.Render()
			return nil
		},
	}
	serveStatusCmd.Flags().StringVar(&statusAddr, "addr", "127.0.0.1:8087", "emulator address")
	serveCmd.AddCommand(serveStatusCmd)

	// ---- cache commands ----
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the cached remote config",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			a, err := build(app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()
			fmt.Println(a.Cache.Path())
			return nil
		},
	}
	cacheClearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete the cached remote config",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			a, err := build(app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.Cache.Clear(); err != nil {
				return err
			}
			color.New(color.FgGreen, color.Bold).Printf("✓ Cleared ")
			color.New(color.FgHiWhite).Println(a.Cache.Path())
			return nil
		},
	}
	cacheCmd.AddCommand(cacheClearCmd)

	root.AddCommand(loadCmd, settingsCmd, variantsCmd, compressCmd, decompressCmd, serveCmd, cacheCmd, versionCmd)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newTable(header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(header)
	colors := make([]tablewriter.Colors, len(header))
	for i := range colors {
		colors[i] = tablewriter.Colors{tablewriter.Bold, tablewriter.FgHiCyanColor}
	}
	table.SetHeaderColor(colors...)
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	return table
}

func renderSettings(s settings.EditorSettings) {
	onOff := func(b bool) string {
		if b {
			return "on"
		}
		return "off"
	}
	runtime := s.Settings.Effective()
	table := newTable("Setting", "Value")
	table.SetColumnColor(
		tablewriter.Colors{tablewriter.FgHiWhiteColor},
		tablewriter.Colors{tablewriter.FgGreenColor},
	)
	table.Append([]string{"Source", runtime.Source})
	table.Append([]string{"Reset for builds", onOff(s.ResetSourceForBuilds)})
	table.Append([]string{"Mode", runtime.Mode.String()})
	table.Append([]string{"Parameter", runtime.ParameterName})
	table.Append([]string{"Fallback", onOff(runtime.FallbackEnabled)})
	table.Append([]string{"Fallback source", s.FallbackSource})
	table.Append([]string{"Fallback timeout (ms)", strconv.Itoa(runtime.FallbackTimeout)})
	table.Append([]string{"Cache", onOff(runtime.CacheEnabled)})
	table.Append([]string{"Fast loading", onOff(runtime.FastLoadingEnabled)})
	color.New(color.Bold).Println("LOADING SETTINGS:")
	table.Render()
}

func readDocument(a *app.App, name string) (node.Document, error) {
	data, err := a.Workspace.Read(name)
	if err != nil {
		return nil, err
	}
	return node.Parse(string(data))
}

func lastChange(a *app.App, name string) string {
	if name == settings.SourceRemote {
		return ""
	}
	doc, err := readDocument(a, name)
	if err != nil {
		return "?"
	}
	m, err := doc.Metadata()
	if err != nil || m == nil || m.Timestamp == 0 {
		return ""
	}
	return fmt.Sprintf("%s by %s", m.Changed().Format(time.RFC3339), m.Author)
}

func readInput(args []string) ([]byte, error) {
	if len(args) == 0 {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(args[0])
}

func readValues(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var values map[string]string
	if err := codec.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return values, nil
}
