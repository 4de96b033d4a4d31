package clients

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
)

// --- Deepgram-style prerecorded listen (/v1/listen) ---
type DeepgramUtterance struct {
	Speaker    int     `json:"speaker"`
	Transcript string  `json:"transcript"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
}

type DeepgramResp struct {
	Metadata struct {
		Duration float64 `json:"duration"`
	} `json:"metadata"`
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string `json:"transcript"`
			} `json:"alternatives"`
		} `json:"channels"`
		Utterances []DeepgramUtterance `json:"utterances"`
	} `json:"results"`
}

// Transcript returns the flat transcript of the first channel's best alternative.
func (r *DeepgramResp) Transcript() string {
	if len(r.Results.Channels) == 0 || len(r.Results.Channels[0].Alternatives) == 0 {
		return ""
	}
	return r.Results.Channels[0].Alternatives[0].Transcript
}

func (h *HTTP) Deepgram(ctx context.Context, o ProviderOpts, a Audio) (*DeepgramResp, error) {
	q := url.Values{}
	if o.Model != "" {
		q.Set("model", o.Model)
	}
	q.Set("diarize", "true")
	q.Set("punctuate", "true")
	q.Set("utterances", "true")
	q.Set("smart_format", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.URL+"/v1/listen?"+q.Encode(), bytes.NewReader(a.Data))
	if err != nil {
		return nil, err
	}
	ct := a.MIMEType
	if ct == "" {
		ct = octetStream
	}
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Authorization", "Token "+o.APIKey)

	var out DeepgramResp
	if err := h.do(req, "deepgram", &out); err != nil {
		return nil, err
	}
	return &out, nil
}
