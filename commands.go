// ABOUTME: Subcommands of the castvox CLI
// ABOUTME: Voice catalog, casting, preview, studio console, scripts, clones, projects, lip-sync and the monitor
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/muesli/reflow/wordwrap"
	"github.com/spf13/cobra"

	"github.com/castvox/castvox-go/internal/ambience"
	"github.com/castvox/castvox-go/internal/catalog"
	"github.com/castvox/castvox-go/internal/client"
	"github.com/castvox/castvox-go/internal/collab"
	"github.com/castvox/castvox-go/internal/discovery"
	"github.com/castvox/castvox-go/internal/protocol"
	"github.com/castvox/castvox-go/internal/server"
	"github.com/castvox/castvox-go/internal/store"
	"github.com/castvox/castvox-go/internal/studio"
	"github.com/castvox/castvox-go/internal/ui"
	"github.com/castvox/castvox-go/internal/version"
	"github.com/castvox/castvox-go/pkg/audio"
	"github.com/castvox/castvox-go/pkg/audio/decode"
	"github.com/castvox/castvox-go/pkg/engine"
)

const wrapWidth = 80

var voicesCmd = &cobra.Command{
	Use:   "voices [query]",
	Short: "List catalog voices, optionally filtered",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		gender, _ := cmd.Flags().GetString("gender")
		pitch, _ := cmd.Flags().GetString("pitch")

		voices := catalog.Filter{Gender: gender, Pitch: pitch}.Apply()
		if len(args) == 1 {
			voices = filterByName(voices, catalog.Suggest(args[0], 0))
		}
		return writeVoices(cmd.OutOrStdout(), voices)
	},
}

var recommendCmd = &cobra.Command{
	Use:   "recommend <description>",
	Short: "Ask the casting collaborator for voices that fit a brief",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		s, st, err := newStudio(ctx, cfg, studioOptions{headless: true})
		if err != nil {
			return err
		}
		defer st.Close()
		defer s.Close()

		rec, err := s.Recommend(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		return printMarkdown(recommendationMarkdown(rec))
	},
}

var previewCmd = &cobra.Command{
	Use:   "preview <text>",
	Short: "Play text in one voice with speed and pitch, no mixing",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		voice, _ := cmd.Flags().GetString("voice")
		speed, _ := cmd.Flags().GetFloat64("speed")
		pitch, _ := cmd.Flags().GetFloat64("pitch")
		if _, ok := catalog.Lookup(voice); !ok {
			return fmt.Errorf("unknown voice %q", voice)
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		col, err := newCollaborators(ctx, cfg)
		if err != nil {
			return err
		}

		events := make(chan engine.SessionEvent, 8)
		engCfg := cfg.Engine()
		engCfg.OnSessionEvent = func(ev engine.SessionEvent) {
			select {
			case events <- ev:
			default:
			}
		}
		p := studio.NewPreview(engCfg, col.synth)
		defer p.Close()
		p.SetSpeed(speed)
		p.SetPitch(pitch)

		if _, err := p.Toggle(ctx, strings.Join(args, " "), voice); err != nil {
			return userError(err)
		}
		h, _ := p.Engine().Current()
		log.Info("previewing", "voice", voice, "rate", p.Rate())
		return ignoreCancel(waitForEnd(ctx, events, h))
	},
}

var studioCmd = &cobra.Command{
	Use:   "studio [text]",
	Short: "Open the studio console, or render once with --no-tui",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		voice, _ := cmd.Flags().GetString("voice")
		amb, _ := cmd.Flags().GetString("ambience")
		persona, _ := cmd.Flags().GetString("persona")
		export, _ := cmd.Flags().GetString("export")
		noTUI, _ := cmd.Flags().GetBool("no-tui")
		projectID, _ := cmd.Flags().GetString("project")
		text := strings.Join(args, " ")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		events := make(chan engine.SessionEvent, 16)
		s, st, err := newStudio(ctx, cfg, studioOptions{events: events})
		if err != nil {
			return err
		}
		defer st.Close()
		defer s.Close()

		if projectID != "" {
			p, err := st.Project(projectID)
			if err != nil {
				return err
			}
			text, voice, persona = p.Text, p.VoiceName, p.SystemInstruction
		}

		if noTUI || !isTerminal() {
			return renderOnce(ctx, s, events, studio.RenderRequest{
				Text:              text,
				Voice:             voice,
				SystemInstruction: persona,
				AmbienceID:        amb,
			}, export)
		}

		logToFileOnly()
		return ui.Run(ctx, ui.Config{
			Options: ui.Options{
				Studio:     s,
				Text:       text,
				Voice:      voice,
				Ambience:   amb,
				Persona:    persona,
				ExportPath: export,
			},
			Spectrum: s.Engine(),
			Events:   events,
			FPS:      cfg.VisualizerFPS,
		})
	},
}

func renderOnce(ctx context.Context, s *studio.Studio, events <-chan engine.SessionEvent, req studio.RenderRequest, export string) error {
	h, err := s.Render(ctx, req)
	if err != nil {
		return userError(err)
	}
	log.Info("playing", "voice", req.Voice, "ambience", req.AmbienceID)

	if export != "" {
		if err := exportWAV(s, export); err != nil {
			return err
		}
		log.Info("exported render", "path", export)
	}
	return ignoreCancel(waitForEnd(ctx, events, h))
}

func exportWAV(s *studio.Studio, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := s.ExportWAV(f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

var scriptCmd = &cobra.Command{
	Use:   "script <idea>",
	Short: "Draft a short narration script for a platform",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		name, _ := cmd.Flags().GetString("platform")
		copyOut, _ := cmd.Flags().GetBool("copy")
		platform, err := collab.ParsePlatform(name)
		if err != nil {
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		s, st, err := newStudio(ctx, cfg, studioOptions{headless: true})
		if err != nil {
			return err
		}
		defer st.Close()
		defer s.Close()

		script, err := s.WriteScript(ctx, strings.Join(args, " "), platform)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), wordwrap.String(script, wrapWidth))
		if copyOut {
			if err := clipboard.WriteAll(script); err != nil {
				log.Warn("could not copy to clipboard", "err", err)
			}
		}
		return nil
	},
}

var cloneCmd = &cobra.Command{
	Use:   "clone <sample-file>",
	Short: "Match a recorded voice sample to the closest catalog voice and save it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		sample, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		s, st, err := newStudio(ctx, cfg, studioOptions{headless: true})
		if err != nil {
			return err
		}
		defer st.Close()
		defer s.Close()

		c, err := s.MatchClone(ctx, sample, sampleMIME(args[0], sample))
		if err != nil {
			return userError(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s matches %s (%s, %s)\n", c.Name, c.MatchedVoiceName, c.Analysis.Gender, c.Analysis.Pitch)
		if len(c.Analysis.Characteristics) > 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "  "+strings.Join(c.Analysis.Characteristics, ", "))
		}
		return nil
	},
}

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List saved projects, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		if id, _ := cmd.Flags().GetString("delete"); id != "" {
			return st.DeleteProject(id)
		}
		projects, err := st.Projects()
		if err != nil {
			return err
		}
		return writeProjects(cmd.OutOrStdout(), projects, time.Now())
	},
}

var clonesCmd = &cobra.Command{
	Use:   "clones",
	Short: "List saved voice clones",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		if id, _ := cmd.Flags().GetString("delete"); id != "" {
			return st.DeleteClone(id)
		}
		clones, err := st.Clones()
		if err != nil {
			return err
		}
		return writeClones(cmd.OutOrStdout(), clones, time.Now())
	},
}

var lipsyncCmd = &cobra.Command{
	Use:   "lipsync <image> <script>",
	Short: "Animate a still image speaking a script and save the video",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		out, _ := cmd.Flags().GetString("output")
		image, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		s, st, err := newStudio(ctx, cfg, studioOptions{headless: true})
		if err != nil {
			return err
		}
		defer st.Close()
		defer s.Close()

		video, err := s.LipSync(ctx, collab.LipSyncRequest{
			Image:     image,
			ImageMIME: imageMIME(args[0]),
			Script:    strings.Join(args[1:], " "),
		}, func(status string) {
			log.Info(status)
		})
		if err != nil {
			return err
		}
		if err := os.WriteFile(out, video, 0o644); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%s)\n", out, humanize.Bytes(uint64(len(video))))
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a studio with a WebSocket monitor for remote control",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		headless, _ := cmd.Flags().GetBool("headless")
		noTUI, _ := cmd.Flags().GetBool("no-tui")
		port, _ := cmd.Flags().GetInt("port")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if port != 0 {
			cfg.Server.Port = port
		}
		s, st, err := newStudio(ctx, cfg, studioOptions{headless: headless})
		if err != nil {
			return err
		}
		defer st.Close()
		defer s.Close()

		useTUI := !noTUI && isTerminal()
		if useTUI {
			logToFileOnly()
		}
		srv := server.New(server.Config{
			Port:       cfg.Server.Port,
			Name:       cfg.Server.Name,
			Version:    version.Version,
			EnableMDNS: cfg.Server.MDNS,
			UseTUI:     useTUI,
			FPS:        30,
			Studio:     s,
		})
		go func() {
			<-ctx.Done()
			srv.Stop()
		}()
		return srv.Start()
	},
}

var monitorCmd = &cobra.Command{
	Use:   "monitor [host:port]",
	Short: "Connect to a running studio and follow its sessions",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		render, _ := cmd.Flags().GetString("render")
		voice, _ := cmd.Flags().GetString("voice")
		amb, _ := cmd.Flags().GetString("ambience")

		addr := ""
		if len(args) == 1 {
			addr = args[0]
		} else {
			info, err := discoverOne(ctx, 5*time.Second)
			if err != nil {
				return err
			}
			addr = net.JoinHostPort(info.Host, strconv.Itoa(info.Port))
		}

		roles := []string{protocol.RoleMonitor}
		if render != "" {
			roles = append(roles, protocol.RoleControl)
		}
		hostname, _ := os.Hostname()
		c := client.NewClient(client.Config{
			ServerAddr: addr,
			ClientID:   uuid.NewString(),
			Name:       hostname + "-monitor",
			Roles:      roles,
		})
		if err := c.Connect(ctx); err != nil {
			return err
		}
		defer c.Close()

		if render != "" {
			if err := c.Render(protocol.SessionRender{Text: render, Voice: voice, Ambience: amb}); err != nil {
				return err
			}
		}
		return follow(ctx, c, cmd.OutOrStdout())
	},
}

func follow(ctx context.Context, c *client.Client, w io.Writer) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.Done():
			return errors.New("connection closed by server")
		case s := <-c.States:
			line := "session " + s.State
			if s.Session != "" {
				line += " " + s.Session
			}
			if s.Error != "" {
				line += ": " + s.Error
			}
			fmt.Fprintln(w, line)
		case m := <-c.Mixer:
			fmt.Fprintln(w, mixerLine(m))
		case e := <-c.Errors:
			fmt.Fprintf(w, "server error %s: %s\n", e.Error, e.Message)
		case v := <-c.Visuals:
			log.Debug("visualizer frame", "playing", v.Playing, "intensity", v.Intensity)
		case <-c.Spectra:
		}
	}
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find studios advertised on the local network",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		timeout, _ := cmd.Flags().GetDuration("timeout")
		ctx, cancelTimeout := context.WithTimeout(ctx, timeout)
		defer cancelTimeout()

		m := discovery.NewManager(discovery.Config{})
		defer m.Stop()
		if err := m.Browse(); err != nil {
			return err
		}

		seen := map[string]bool{}
		for {
			select {
			case <-ctx.Done():
				if len(seen) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "no studios found")
				}
				return nil
			case info := <-m.Servers():
				if seen[info.URL()] {
					continue
				}
				seen[info.URL()] = true
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", info.Name, info.URL())
			}
		}
	},
}

func discoverOne(ctx context.Context, timeout time.Duration) (*discovery.ServerInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	m := discovery.NewManager(discovery.Config{})
	defer m.Stop()
	if err := m.Browse(); err != nil {
		return nil, err
	}
	select {
	case <-ctx.Done():
		return nil, errors.New("no studio found on the local network")
	case info := <-m.Servers():
		log.Info("found studio", "name", info.Name, "url", info.URL())
		return info, nil
	}
}

func init() {
	voicesCmd.Flags().String("gender", "", "filter by gender")
	voicesCmd.Flags().String("pitch", "", "filter by pitch")

	previewCmd.Flags().String("voice", catalog.First().Name, "catalog voice")
	previewCmd.Flags().Float64("speed", 1, "speed multiplier (0.5 to 2)")
	previewCmd.Flags().Float64("pitch", 1, "pitch multiplier (0.5 to 2)")

	studioCmd.Flags().String("voice", catalog.First().Name, "catalog voice")
	studioCmd.Flags().String("ambience", ambience.None, "ambience bed: "+strings.Join(ambience.IDs(), ", "))
	studioCmd.Flags().String("persona", "", "style instruction passed to synthesis")
	studioCmd.Flags().String("export", "", "write the raw render to this WAV file")
	studioCmd.Flags().String("project", "", "load text, voice and persona from a saved project")
	studioCmd.Flags().Bool("no-tui", false, "render once and play without the console")

	scriptCmd.Flags().String("platform", string(collab.TikTok), "tiktok, youtube or podcast")
	scriptCmd.Flags().Bool("copy", false, "copy the script to the clipboard")

	projectsCmd.Flags().String("delete", "", "delete the project with this id")
	clonesCmd.Flags().String("delete", "", "delete the clone with this id")

	lipsyncCmd.Flags().StringP("output", "o", "lipsync.mp4", "video output file")

	serveCmd.Flags().Int("port", 0, "listen port (default from config)")
	serveCmd.Flags().Bool("headless", false, "render without an audio device")
	serveCmd.Flags().Bool("no-tui", false, "log to the terminal instead of the status console")

	monitorCmd.Flags().String("render", "", "ask the studio to render this text")
	monitorCmd.Flags().String("voice", catalog.First().Name, "voice for --render")
	monitorCmd.Flags().String("ambience", ambience.None, "ambience for --render")

	discoverCmd.Flags().Duration("timeout", 3*time.Second, "how long to browse")
}

// filterByName keeps voices that appear in matches, in match order
func filterByName(voices, matches []catalog.Voice) []catalog.Voice {
	var out []catalog.Voice
	for _, m := range matches {
		for _, v := range voices {
			if v.Name == m.Name {
				out = append(out, v)
				break
			}
		}
	}
	return out
}

func writeVoices(w io.Writer, voices []catalog.Voice) error {
	tw := tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tGENDER\tPITCH\tCHARACTER")
	for _, v := range voices {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", v.Name, v.Analysis.Gender, v.Pitch, strings.Join(v.Characteristics, ", "))
	}
	return tw.Flush()
}

func writeProjects(w io.Writer, projects []store.Project, now time.Time) error {
	if len(projects) == 0 {
		_, err := fmt.Fprintln(w, "no saved projects")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tVOICE\tSAVED")
	for _, p := range projects {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.Title, p.VoiceName, humanize.RelTime(p.Created(), now, "ago", "from now"))
	}
	return tw.Flush()
}

func writeClones(w io.Writer, clones []store.Clone, now time.Time) error {
	if len(clones) == 0 {
		_, err := fmt.Fprintln(w, "no saved clones")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tMATCH\tSAMPLE\tSAVED")
	for _, c := range clones {
		size := "?"
		if raw, err := audio.DecodePayload(c.OriginalSampleBase64); err == nil {
			size = humanize.Bytes(uint64(len(raw)))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", c.ID, c.Name, c.MatchedVoiceName, size, humanize.RelTime(c.Created(), now, "ago", "from now"))
	}
	return tw.Flush()
}

func recommendationMarkdown(rec collab.Recommendation) string {
	var b strings.Builder
	b.WriteString("# Recommended voices\n\n")
	if len(rec.VoiceNames) == 0 {
		b.WriteString("No catalog voice matched; browse them all with `castvox voices`.\n")
	}
	for _, name := range rec.VoiceNames {
		v, ok := catalog.Lookup(name)
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "- **%s**: %s, %s pitch. %s\n", v.Name, v.Analysis.Gender, v.Pitch, strings.Join(v.Characteristics, ", "))
	}
	if rec.SystemInstruction != "" {
		fmt.Fprintf(&b, "\n## Persona\n\n%s\n", rec.SystemInstruction)
	}
	if rec.SampleText != "" {
		fmt.Fprintf(&b, "\n## Sample\n\n> %s\n", rec.SampleText)
	}
	return b.String()
}

func printMarkdown(md string) error {
	style := glamour.WithAutoStyle()
	if !isTerminal() {
		style = glamour.WithStandardStyle("notty")
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(wrapWidth))
	if err != nil {
		return err
	}
	out, err := r.Render(md)
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}

func mixerLine(m protocol.MixerState) string {
	parts := make([]string, 0, len(m.Channels))
	for _, ch := range m.Channels {
		p := fmt.Sprintf("%s %.0f%%", ch.Channel, ch.Volume*100)
		if ch.Muted {
			p += " (muted)"
		}
		parts = append(parts, p)
	}
	return "mixer " + strings.Join(parts, ", ")
}

// sampleMIME names the container of a clone sample for the collaborator
func sampleMIME(path string, data []byte) string {
	switch decode.Sniff(data) {
	case "wav":
		return "audio/wav"
	case "mp3":
		return "audio/mpeg"
	case "flac":
		return "audio/flac"
	case "opus", "vorbis":
		return "audio/ogg"
	}
	if t := mime.TypeByExtension(filepath.Ext(path)); strings.HasPrefix(t, "audio/") {
		return t
	}
	return "audio/webm"
}

func imageMIME(path string) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); strings.HasPrefix(t, "image/") {
		return t
	}
	return "image/png"
}

// userError prefixes err with the message the console would show
func userError(err error) error {
	if msg := studio.UserMessage(err); msg != "" && msg != err.Error() {
		return fmt.Errorf("%s: %w", msg, err)
	}
	return err
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
