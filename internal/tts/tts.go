// Package tts provides the audio-synthesis collaborator client.
//
// The pipeline treats synthesis as a black box: text plus AudioParams in, an
// audio asset reference out. The production implementation speaks to Amazon
// Polly; tests use the in-package mock.
package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	pollytypes "github.com/aws/aws-sdk-go-v2/service/polly/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"

	"github.com/BTreeMap/MoodPipe/internal/models"
	"github.com/BTreeMap/MoodPipe/internal/util"
)

// Component is the name recorded in tool traces and error wrappers.
const Component = "audio_synthesizer"

// Synthesizer defines the synthesis capability the orchestrator consumes.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, params models.AudioParams) (models.AudioAsset, error)
}

// synthClient is the minimal interface over the Polly service.
type synthClient interface {
	SynthesizeSpeech(ctx context.Context, params *polly.SynthesizeSpeechInput, optFns ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error)
}

// Config holds Polly settings.
type Config struct {
	Region  string
	Engine  string
	Timeout time.Duration
}

// ConfigFromEnv builds a Config from the environment with sane defaults.
func ConfigFromEnv() Config {
	return Config{
		Region:  defaultString(os.Getenv("MOODPIPE_TTS_REGION"), defaultString(os.Getenv("AWS_REGION"), "us-east-1")),
		Engine:  defaultString(os.Getenv("MOODPIPE_TTS_ENGINE"), "neural"),
		Timeout: time.Duration(util.ParseIntEnv("MOODPIPE_TTS_TIMEOUT_SECONDS", 30)) * time.Second,
	}
}

// toneVoices maps meditation tones onto Polly voices. A cached voice profile
// of the form "polly:<VoiceId>" overrides the tone mapping.
var toneVoices = map[string]string{
	"calm":          "Joanna",
	"passionate":    "Amy",
	"energetic":     "Matthew",
	"compassionate": "Salli",
	"gentle":        "Ivy",
}

const defaultVoice = "Joanna"

// PollySynthesizer synthesizes meditation audio through Amazon Polly.
type PollySynthesizer struct {
	mu     sync.Mutex
	client synthClient
	cfg    Config
}

// NewPollySynthesizer creates a synthesizer with the given config. The AWS
// client is resolved lazily on first use.
func NewPollySynthesizer(cfg Config) *PollySynthesizer {
	return NewPollySynthesizerWithClient(cfg, nil)
}

// NewPollySynthesizerWithClient creates a synthesizer with an explicit Polly
// client; used by tests.
func NewPollySynthesizerWithClient(cfg Config, client synthClient) *PollySynthesizer {
	if strings.TrimSpace(cfg.Region) == "" {
		cfg.Region = "us-east-1"
	}
	if strings.TrimSpace(cfg.Engine) == "" {
		cfg.Engine = "neural"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &PollySynthesizer{client: client, cfg: cfg}
}

// Synthesize renders the script text as speech. Failures are surfaced as
// ExternalCallError and never retried here; the retry policy, if any, belongs
// to the caller of the whole pipeline.
func (s *PollySynthesizer) Synthesize(ctx context.Context, text string, params models.AudioParams) (models.AudioAsset, error) {
	if strings.TrimSpace(text) == "" {
		return models.AudioAsset{}, models.NewExternalCallError(Component, errors.New("empty script text"))
	}

	client, err := s.resolveClient()
	if err != nil {
		return models.AudioAsset{}, models.NewExternalCallError(Component, err)
	}

	engine := pollytypes.EngineStandard
	if strings.EqualFold(s.cfg.Engine, "neural") {
		engine = pollytypes.EngineNeural
	}
	voice := selectVoice(params)

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	output, err := client.SynthesizeSpeech(ctx, &polly.SynthesizeSpeechInput{
		Engine:       engine,
		OutputFormat: pollytypes.OutputFormatMp3,
		Text:         &text,
		TextType:     pollytypes.TextTypeText,
		VoiceId:      pollytypes.VoiceId(voice),
	})
	if err != nil {
		return models.AudioAsset{}, models.NewExternalCallError(Component, normalizeError(err))
	}
	if output == nil || output.AudioStream == nil {
		return models.AudioAsset{}, models.NewExternalCallError(Component, errors.New("provider returned empty audio stream"))
	}
	defer output.AudioStream.Close()
	// The asset store consumes the stream; the reference is what flows back
	// through the pipeline.
	if _, err := io.Copy(io.Discard, output.AudioStream); err != nil {
		return models.AudioAsset{}, models.NewExternalCallError(Component, fmt.Errorf("read audio stream: %w", err))
	}

	asset := models.AudioAsset{
		ID:              uuid.NewString(),
		Format:          "mp3",
		DurationSeconds: params.TargetMinutes * 60,
		VoiceProfile:    "polly:" + voice,
	}
	slog.Debug("PollySynthesizer.Synthesize: audio synthesized",
		"asset_id", asset.ID, "voice", voice, "duration_seconds", asset.DurationSeconds)
	return asset, nil
}

// selectVoice prefers a cached voice profile over the tone mapping.
func selectVoice(params models.AudioParams) string {
	if ref, ok := strings.CutPrefix(params.VoiceProfileRef, "polly:"); ok && ref != "" {
		return ref
	}
	if voice, ok := toneVoices[strings.ToLower(params.Tone)]; ok {
		return voice
	}
	return defaultVoice
}

func normalizeError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("synthesis timed out: %w", err)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("synthesis cancelled: %w", err)
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("provider error %s: %w", apiErr.ErrorCode(), err)
	}
	return err
}

func (s *PollySynthesizer) resolveClient() (synthClient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return s.client, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(s.cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	s.client = polly.NewFromConfig(awsCfg)
	return s.client, nil
}

func defaultString(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
