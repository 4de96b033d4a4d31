package clients

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"strconv"
)

// --- ElevenLabs-style speech-to-text (/v1/speech-to-text) ---
type ElevenWord struct {
	Text      string  `json:"text"`
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	Type      string  `json:"type"` // "word", "spacing", "audio_event"
	SpeakerID string  `json:"speaker_id"`
}

type ElevenLabsResp struct {
	LanguageCode string       `json:"language_code"`
	Text         string       `json:"text"`
	Words        []ElevenWord `json:"words"`
}

func (h *HTTP) ElevenLabs(ctx context.Context, o ProviderOpts, a Audio) (*ElevenLabsResp, error) {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)

	name := a.Filename
	if name == "" {
		name = a.FileName("recording")
	}
	fw, err := w.CreateFormFile("file", name)
	if err != nil {
		return nil, err
	}
	if _, err = fw.Write(a.Data); err != nil {
		return nil, err
	}
	fields := map[string]string{
		"model_id":               o.Model,
		"diarize":                "true",
		"timestamps_granularity": "word",
	}
	if o.Speakers > 0 {
		fields["num_speakers"] = strconv.Itoa(o.Speakers)
	}
	for k, v := range fields {
		if err = w.WriteField(k, v); err != nil {
			return nil, err
		}
	}
	if err = w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.URL+"/v1/speech-to-text", &b)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("xi-api-key", o.APIKey)

	var out ElevenLabsResp
	if err := h.do(req, "elevenlabs", &out); err != nil {
		return nil, err
	}
	return &out, nil
}
