// Package google provides a Google Cloud Speech-to-Text engine and adapter.
package google

import (
	"context"
	"io"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "google.golang.org/genproto/googleapis/cloud/speech/v1"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"ai-speech-diarization-service/internal/config"
	"ai-speech-diarization-service/internal/models"
	"ai-speech-diarization-service/internal/service/stt"
)

// Engine holds the shared Google Speech client. One client serves the whole
// process; each stream gets its own Adapter.
type Engine struct {
	client *speech.Client
	cfg    config.STTConfig
}

// NewEngine creates the shared client.
// Requires GOOGLE_APPLICATION_CREDENTIALS environment variable to be set.
func NewEngine(ctx context.Context, cfg config.STTConfig) (*Engine, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &Engine{client: c, cfg: cfg}, nil
}

// NewSession hands out one adapter bound to a fresh recognition stream.
func (e *Engine) NewSession(ctx context.Context) (stt.Adapter, error) {
	return &Adapter{client: e.client, cfg: e.cfg}, nil
}

// Close releases the shared client.
func (e *Engine) Close() error {
	return e.client.Close()
}

// Adapter implements stt.Adapter using Google Cloud Speech-to-Text.
type Adapter struct {
	client *speech.Client
	cfg    config.STTConfig
	stream speechpb.Speech_StreamingRecognizeClient
	cb     stt.Callback
}

// Start begins a streaming recognition session, sends the initial config and
// spawns the receive loop. Word time offsets are requested so tokens carry
// per-word timestamps for speaker alignment.
func (a *Adapter) Start(ctx context.Context, cb stt.Callback) error {
	stream, err := a.client.StreamingRecognize(ctx)
	if err != nil {
		return err
	}
	a.stream = stream
	a.cb = cb

	// Send streaming config as the first message
	err = stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:              parseAudioEncoding(a.cfg.AudioEncoding),
					SampleRateHertz:       int32(a.cfg.SampleRateHz),
					LanguageCode:          a.cfg.LanguageCode,
					EnableWordTimeOffsets: true,
				},
				InterimResults: a.cfg.InterimResults,
			},
		},
	})
	if err != nil {
		return err
	}

	go a.listen()
	return nil
}

// SendAudio sends audio bytes to Google Speech-to-Text.
func (a *Adapter) SendAudio(ctx context.Context, audio []byte) error {
	return a.stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: audio,
		},
	})
}

// Close half-closes the send side. Remaining responses drain through the
// receive loop, which ends with OnStreamEnd.
func (a *Adapter) Close() error {
	if a.stream != nil {
		return a.stream.CloseSend()
	}
	return nil
}

// listen receives transcript responses and invokes callbacks until the stream
// terminates. A clean drain after Close surfaces as OnStreamEnd; anything else
// as OnError.
func (a *Adapter) listen() {
	for {
		resp, err := a.stream.Recv()
		if err != nil {
			if isStreamEnd(err) {
				a.cb.OnStreamEnd()
			} else {
				a.cb.OnError(err)
			}
			return
		}

		for _, r := range resp.Results {
			if len(r.Alternatives) == 0 {
				continue
			}
			alt := r.Alternatives[0]
			tokens := tokensFromWords(alt.Words)
			if r.IsFinal {
				a.cb.OnFinal(tokens, alt.Transcript, float64(alt.Confidence))
			} else {
				a.cb.OnPartial(tokens, alt.Transcript)
			}
		}
	}
}

func isStreamEnd(err error) bool {
	if err == io.EOF {
		return true
	}
	switch status.Code(err) {
	case codes.Canceled, codes.OutOfRange:
		return true
	}
	return false
}

func tokensFromWords(words []*speechpb.WordInfo) []models.Token {
	if len(words) == 0 {
		return nil
	}
	tokens := make([]models.Token, 0, len(words))
	for _, w := range words {
		tokens = append(tokens, models.Token{
			Start: w.StartTime.AsDuration().Seconds(),
			End:   w.EndTime.AsDuration().Seconds(),
			Text:  w.Word,
		})
	}
	return tokens
}

func parseAudioEncoding(name string) speechpb.RecognitionConfig_AudioEncoding {
	switch name {
	case "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC
	case "AMR":
		return speechpb.RecognitionConfig_AMR
	case "AMR_WB":
		return speechpb.RecognitionConfig_AMR_WB
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS
	default:
		return speechpb.RecognitionConfig_LINEAR16
	}
}
