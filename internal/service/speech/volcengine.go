package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lumate/voicecoach/internal/config"
	"github.com/lumate/voicecoach/internal/model/audio"
)

const (
	volcTTSEndpoint   = "wss://openspeech.bytedance.com/api/v3/tts/unidirectional/stream"
	volcTTSResourceID = "volc.service_type.10029"
)

// VolcengineSynthesizer renders speech through Volcengine's streaming TTS
// over its binary WebSocket protocol. Voice selection is by speaker name.
type VolcengineSynthesizer struct {
	appID   string
	token   string
	speaker string
	speed   float32
	volume  float32
	dialer  *websocket.Dialer
	logger  zerolog.Logger
}

// NewVolcengineSynthesizer builds the backend from configuration.
func NewVolcengineSynthesizer(cfg config.SpeechConfig, logger zerolog.Logger) *VolcengineSynthesizer {
	return &VolcengineSynthesizer{
		appID:   cfg.VolcAppID,
		token:   cfg.VolcAccessToken,
		speaker: cfg.VolcVoice,
		speed:   cfg.VolcSpeed,
		volume:  cfg.VolcVolume,
		dialer:  &websocket.Dialer{HandshakeTimeout: 30 * time.Second},
		logger:  logger.With().Str("component", "volcengine-tts").Logger(),
	}
}

func (s *VolcengineSynthesizer) Variant() Variant {
	return VariantVolcengine
}

// SetVoiceParam accepts the binding resolver's assignment for this variant.
func (s *VolcengineSynthesizer) SetVoiceParam(name, value string) error {
	if name != "speaker" {
		return fmt.Errorf("volcengine synthesizer has no parameter %q", name)
	}
	s.speaker = value
	return nil
}

type volcTTSRequest struct {
	User struct {
		UID string `json:"uid"`
	} `json:"user"`
	ReqParams struct {
		Speaker     string `json:"speaker"`
		Text        string `json:"text"`
		AudioParams struct {
			Format      string  `json:"format"`
			SampleRate  int     `json:"sample_rate"`
			SpeedRatio  float32 `json:"speed_ratio,omitempty"`
			VolumeRatio float32 `json:"volume_ratio,omitempty"`
		} `json:"audio_params"`
	} `json:"req_params"`
}

type volcTTSServerMessage struct {
	ReqID    string `json:"reqid"`
	Code     int    `json:"code"`
	Message  string `json:"message"`
	Sequence int    `json:"sequence"`
	Data     string `json:"data"`
}

// Synthesize converts text to an MP3 clip over a fresh WebSocket connection.
func (s *VolcengineSynthesizer) Synthesize(ctx context.Context, text string) (*audio.Clip, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("synthesis text is empty")
	}
	if s.appID == "" || s.token == "" {
		return nil, fmt.Errorf("volcengine credentials not configured")
	}

	header := http.Header{}
	header.Set("X-Api-App-Key", s.appID)
	header.Set("X-Api-Access-Key", s.token)
	header.Set("X-Api-Resource-Id", volcTTSResourceID)
	header.Set("X-Api-Connect-Id", uuid.NewString())

	conn, resp, err := s.dialer.DialContext(ctx, volcTTSEndpoint, header)
	if err != nil {
		return nil, fmt.Errorf("connect TTS websocket: %w", err)
	}
	defer conn.Close()

	if resp != nil {
		if logid := resp.Header.Get("X-Tt-Logid"); logid != "" {
			s.logger.Debug().Str("logid", logid).Msg("tts connected")
		}
	}

	payload, err := json.Marshal(s.buildRequest(text))
	if err != nil {
		return nil, fmt.Errorf("marshal TTS request: %w", err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, encodeClientRequest(payload)); err != nil {
		return nil, fmt.Errorf("send TTS request: %w", err)
	}

	var audioBuffer bytes.Buffer
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("read TTS response: %w", err)
		}

		f, err := decodeFrame(data)
		if err != nil {
			return nil, fmt.Errorf("decode TTS frame: %w", err)
		}

		body, err := f.decodedPayload()
		if err != nil {
			return nil, fmt.Errorf("decompress TTS payload: %w", err)
		}

		switch f.Type {
		case errorResponse:
			return nil, fmt.Errorf("TTS error %d: %s", f.ErrorCode, body)

		case audioOnlyServerResponse:
			audioBuffer.Write(body)

		case fullServerResponse:
			var msg volcTTSServerMessage
			if len(body) > 0 {
				if err := json.Unmarshal(body, &msg); err == nil {
					if msg.Code != 0 && msg.Code != 3000 {
						return nil, fmt.Errorf("TTS API error %d: %s", msg.Code, msg.Message)
					}
					if msg.Data != "" {
						chunk, err := base64.StdEncoding.DecodeString(msg.Data)
						if err != nil {
							return nil, fmt.Errorf("decode audio chunk: %w", err)
						}
						audioBuffer.Write(chunk)
					}
				}
			}
			if f.last() || msg.Sequence < 0 {
				if audioBuffer.Len() == 0 {
					return nil, fmt.Errorf("TTS produced no audio")
				}
				return &audio.Clip{Data: audioBuffer.Bytes(), Format: "mp3"}, nil
			}

		default:
			s.logger.Warn().Uint8("type", uint8(f.Type)).Msg("unexpected TTS message type")
		}

		if f.last() && audioBuffer.Len() > 0 {
			return &audio.Clip{Data: audioBuffer.Bytes(), Format: "mp3"}, nil
		}
	}
}

func (s *VolcengineSynthesizer) buildRequest(text string) *volcTTSRequest {
	req := &volcTTSRequest{}
	req.User.UID = uuid.NewString()
	req.ReqParams.Speaker = s.speaker
	req.ReqParams.Text = text
	req.ReqParams.AudioParams.Format = "mp3"
	req.ReqParams.AudioParams.SampleRate = 24000
	if s.speed > 0 && s.speed != 1.0 {
		req.ReqParams.AudioParams.SpeedRatio = s.speed
	}
	if s.volume > 0 && s.volume != 1.0 {
		req.ReqParams.AudioParams.VolumeRatio = s.volume
	}
	return req
}
