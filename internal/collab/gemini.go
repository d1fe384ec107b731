// ABOUTME: Gemini implementation of every collaborator
// ABOUTME: Speech, structured text, clone analysis and polled video generation
package collab

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/castvox/castvox-go/internal/catalog"
	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// DefaultRequestsPerMinute is the request budget when none is configured
const DefaultRequestsPerMinute = 10

// GeminiConfig holds Gemini client configuration
type GeminiConfig struct {
	APIKey            string
	TTSModel          string
	TextModel         string
	VideoModel        string
	RequestsPerMinute int
	PollInterval      time.Duration
	BaseURL           string // overrides the API endpoint, mainly for tests
	HTTPClient        *http.Client
}

// Gemini talks to the Gemini API
type Gemini struct {
	client     *genai.Client
	config     GeminiConfig
	limiter    *rate.Limiter
	httpClient *http.Client
}

// NewGemini creates a Gemini collaborator
func NewGemini(ctx context.Context, config GeminiConfig) (*Gemini, error) {
	if config.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if config.TTSModel == "" {
		config.TTSModel = "gemini-2.5-flash-preview-tts"
	}
	if config.TextModel == "" {
		config.TextModel = "gemini-3-flash-preview"
	}
	if config.VideoModel == "" {
		config.VideoModel = "veo-3.1-fast-generate-preview"
	}
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = DefaultRequestsPerMinute
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 5 * time.Second
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: 2 * time.Minute}
	}

	cc := &genai.ClientConfig{
		APIKey:     config.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: config.HTTPClient,
	}
	if config.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: config.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &Gemini{
		client:     client,
		config:     config,
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(config.RequestsPerMinute)), 1),
		httpClient: config.HTTPClient,
	}, nil
}

func (g *Gemini) wait(ctx context.Context) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

// Synthesize renders text with a prebuilt voice
func (g *Gemini) Synthesize(ctx context.Context, req SpeechRequest) ([]byte, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyText
	}
	if err := g.wait(ctx); err != nil {
		return nil, err
	}

	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: req.Voice},
			},
		},
	}
	if style := strings.TrimSpace(req.Style); style != "" {
		config.SystemInstruction = genai.NewContentFromText(style, genai.RoleUser)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.config.TTSModel, genai.Text(req.Text), config)
	if err != nil {
		return nil, fmt.Errorf("speech request failed: %w", err)
	}

	data := inlineData(resp)
	if len(data) == 0 {
		return nil, ErrNoAudio
	}
	log.Debug("speech synthesized", "voice", req.Voice, "bytes", len(data))
	return data, nil
}

func inlineData(resp *genai.GenerateContentResponse) []byte {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil
	}
	c := resp.Candidates[0].Content
	if c == nil || len(c.Parts) == 0 || c.Parts[0].InlineData == nil {
		return nil
	}
	return c.Parts[0].InlineData.Data
}

var recommendationSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"recommendedVoices": {
			Type:        genai.TypeArray,
			Items:       &genai.Schema{Type: genai.TypeString},
			Description: "Array berisi tepat 3 nama suara",
		},
		"systemInstruction": {
			Type:        genai.TypeString,
			Description: "Instruksi sistem dalam format Markdown.",
		},
		"sampleText": {
			Type:        genai.TypeString,
			Description: "Contoh teks bicara dalam bahasa Indonesia",
		},
	},
}

// Recommend asks the text model to cast a brief
func (g *Gemini) Recommend(ctx context.Context, brief string, voices []catalog.Metadata) (Recommendation, error) {
	if strings.TrimSpace(brief) == "" {
		return Recommendation{}, ErrEmptyText
	}
	if err := g.wait(ctx); err != nil {
		return Recommendation{}, err
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.config.TextModel, genai.Text(recommendPrompt(brief, voices)), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   recommendationSchema,
	})
	if err != nil {
		return Recommendation{}, fmt.Errorf("recommendation request failed: %w", err)
	}
	return parseRecommendation(resp.Text(), voices)
}

var cloneSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"matchedVoiceName": {Type: genai.TypeString},
		"analysis": {
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"gender":          {Type: genai.TypeString},
				"pitch":           {Type: genai.TypeString},
				"characteristics": {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
				"reasoning":       {Type: genai.TypeString},
			},
		},
	},
}

// MatchClone finds the catalog voice closest to a recorded sample
func (g *Gemini) MatchClone(ctx context.Context, sample []byte, mimeType string, voices []catalog.Metadata) (CloneMatch, error) {
	if len(sample) == 0 {
		return CloneMatch{}, ErrNoAudio
	}
	if len(sample) > MaxSampleBytes {
		return CloneMatch{}, ErrSampleTooLarge
	}
	if mimeType == "" {
		mimeType = "audio/mpeg"
	}
	if err := g.wait(ctx); err != nil {
		return CloneMatch{}, err
	}

	parts := []*genai.Part{
		genai.NewPartFromBytes(sample, mimeType),
		genai.NewPartFromText(clonePrompt(voices)),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	resp, err := g.client.Models.GenerateContent(ctx, g.config.TextModel, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   cloneSchema,
	})
	if err != nil {
		return CloneMatch{}, fmt.Errorf("clone analysis request failed: %w", err)
	}
	return parseCloneMatch(resp.Text(), voices)
}

// WriteScript drafts a short script for a platform
func (g *Gemini) WriteScript(ctx context.Context, idea string, platform Platform) (string, error) {
	if strings.TrimSpace(idea) == "" {
		return "", ErrEmptyText
	}
	if err := g.wait(ctx); err != nil {
		return "", err
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.config.TextModel, genai.Text(scriptPrompt(idea, platform)), nil)
	if err != nil {
		return "", fmt.Errorf("script request failed: %w", err)
	}
	script := cleanScript(resp.Text())
	if script == "" {
		return "", ErrEmptyResponse
	}
	return script, nil
}

// LipSync generates a talking video from a still frame, polling until done
func (g *Gemini) LipSync(ctx context.Context, req LipSyncRequest, progress func(string)) ([]byte, error) {
	if strings.TrimSpace(req.Script) == "" {
		return nil, ErrEmptyText
	}
	if progress == nil {
		progress = func(string) {}
	}
	if req.ImageMIME == "" {
		req.ImageMIME = "image/png"
	}
	if err := g.wait(ctx); err != nil {
		return nil, err
	}

	progress("connecting to video engine")
	op, err := g.client.Models.GenerateVideos(ctx, g.config.VideoModel, lipSyncPrompt(req.Script),
		&genai.Image{ImageBytes: req.Image, MIMEType: req.ImageMIME},
		&genai.GenerateVideosConfig{
			NumberOfVideos: 1,
			Resolution:     "720p",
			AspectRatio:    "16:9",
		})
	if err != nil {
		return nil, fmt.Errorf("video request failed: %w", err)
	}

	ticker := time.NewTicker(g.config.PollInterval)
	defer ticker.Stop()

	for !op.Done {
		progress("analysing phonemes and lip movement")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
		op, err = g.client.Operations.GetVideosOperation(ctx, op, nil)
		if err != nil {
			return nil, fmt.Errorf("video poll failed: %w", err)
		}
	}

	progress("finalising video")
	if op.Response == nil || len(op.Response.GeneratedVideos) == 0 || op.Response.GeneratedVideos[0].Video == nil {
		return nil, ErrNoVideo
	}
	video := op.Response.GeneratedVideos[0].Video
	if len(video.VideoBytes) > 0 {
		return video.VideoBytes, nil
	}
	if video.URI == "" {
		return nil, ErrNoVideo
	}
	return g.download(ctx, video.URI)
}

func (g *Gemini) download(ctx context.Context, uri string) ([]byte, error) {
	sep := "?"
	if strings.Contains(uri, "?") {
		sep = "&"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri+sep+"key="+g.config.APIKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download video: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("video download returned status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read video: %w", err)
	}
	return data, nil
}
