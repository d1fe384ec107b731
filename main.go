// ABOUTME: Entry point for the castvox voice-casting studio
// ABOUTME: Builds the cobra command tree, logging, configuration and the studio wiring
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/castvox/castvox-go/internal/ambience"
	"github.com/castvox/castvox-go/internal/collab"
	"github.com/castvox/castvox-go/internal/config"
	"github.com/castvox/castvox-go/internal/store"
	"github.com/castvox/castvox-go/internal/studio"
	"github.com/castvox/castvox-go/internal/version"
	"github.com/castvox/castvox-go/pkg/audio/output"
	"github.com/castvox/castvox-go/pkg/engine"
)

var (
	configFile string
	debug      bool
	offline    bool
	logFile    *os.File

	rootCmd = &cobra.Command{
		Use:           "castvox",
		Short:         "Voice-casting studio: pick a voice, render a script, mix it with ambience",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.Init(viper.GetViper(), configFile); err != nil {
				return err
			}
			return setupLog(viper.GetString("log_file"), debug)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if logFile != nil {
				_ = logFile.Close()
			}
		},
	}
)

func init() {
	rootCmd.Version = version.Version
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default "+config.DefaultFile()+")")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&offline, "offline", false, "use the offline tone synthesizer and keyword recommender")
	rootCmd.PersistentFlags().String("api-key", "", "Gemini API key")
	_ = viper.BindPFlag("api_key", rootCmd.PersistentFlags().Lookup("api-key"))

	rootCmd.AddCommand(
		voicesCmd, recommendCmd, previewCmd, studioCmd, scriptCmd, cloneCmd,
		projectsCmd, clonesCmd, lipsyncCmd, serveCmd, monitorCmd, discoverCmd, configCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setupLog writes logs to stderr and, when path is set, the log file
func setupLog(path string, debug bool) error {
	log.SetReportTimestamp(true)
	log.SetTimeFormat(time.Kitchen)
	if debug {
		log.SetLevel(log.DebugLevel)
	}

	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("error creating log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("error opening log file: %w", err)
	}
	logFile = f
	log.SetOutput(io.MultiWriter(os.Stderr, f))
	log.Debug("logging initialized", "file", path)
	return nil
}

// logToFileOnly keeps log lines out of a full-screen console
func logToFileOnly() {
	if logFile != nil {
		log.SetOutput(logFile)
	} else {
		log.SetOutput(io.Discard)
	}
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// signalContext is cancelled on interrupt or termination
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func loadConfig() (config.Config, error) {
	return config.Load(viper.GetViper())
}

// collaborators bundles the generative services a command may need
type collaborators struct {
	synth   collab.Synthesizer
	rec     collab.Recommender
	writer  collab.ScriptWriter
	matcher collab.CloneMatcher
	lipsync collab.LipSyncer
}

func newCollaborators(ctx context.Context, cfg config.Config) (collaborators, error) {
	if offline || cfg.APIKey == "" {
		if !offline {
			log.Warn("no API key configured, using offline collaborators")
		}
		return collaborators{synth: collab.NewTone(), rec: collab.Offline{}, writer: collab.Offline{}}, nil
	}

	g, err := collab.NewGemini(ctx, cfg.Gemini())
	if err != nil {
		return collaborators{}, err
	}
	return collaborators{synth: g, rec: g, writer: g, matcher: g, lipsync: g}, nil
}

// studioOptions control how newStudio builds the engine
type studioOptions struct {
	headless bool
	events   chan<- engine.SessionEvent
}

// newStudio wires the store, ambience fetcher and collaborators into a studio
func newStudio(ctx context.Context, cfg config.Config, opts studioOptions) (*studio.Studio, *store.Store, error) {
	col, err := newCollaborators(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	st, err := store.Open(cfg.DataDir)
	if err != nil {
		return nil, nil, err
	}

	fetcher, err := ambience.NewFetcher(filepath.Join(cfg.CacheDir, "ambience"))
	if err != nil {
		st.Close()
		return nil, nil, err
	}

	engCfg := cfg.Engine()
	if opts.headless {
		engCfg.NewOutput = output.NewDiscard
	}
	if events := opts.events; events != nil {
		engCfg.OnSessionEvent = func(ev engine.SessionEvent) {
			select {
			case events <- ev:
			default:
				log.Debug("dropping session event", "state", ev.State)
			}
		}
	}

	s := studio.New(studio.Config{
		Engine:       engCfg,
		Synthesizer:  col.synth,
		Ambience:     fetcher,
		Recommender:  col.rec,
		ScriptWriter: col.writer,
		CloneMatcher: col.matcher,
		LipSyncer:    col.lipsync,
		Store:        st,
	})
	return s, st, nil
}

// openStore opens only the local store, for listing commands
func openStore() (*store.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return store.Open(cfg.DataDir)
}

// waitForEnd blocks until a session ends or stops, or ctx is done
func waitForEnd(ctx context.Context, events <-chan engine.SessionEvent, handle engine.SessionHandle) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-events:
			if ev.Handle != handle {
				continue
			}
			log.Debug("session event", "state", ev.State)
			if ev.State == engine.Ended || ev.State == engine.Stopped {
				return nil
			}
		}
	}
}
