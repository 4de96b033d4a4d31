package clients

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

// --- AssemblyAI-style upload + job + poll (/v2/upload, /v2/transcript) ---
type AssemblyUtterance struct {
	Speaker string  `json:"speaker"` // "A", "B", ...
	Text    string  `json:"text"`
	Start   float64 `json:"start"` // ms
	End     float64 `json:"end"`   // ms
}

type AssemblyJob struct {
	ID            string              `json:"id"`
	Status        string              `json:"status"` // queued, processing, completed, error
	Error         string              `json:"error,omitempty"`
	Text          string              `json:"text"`
	AudioDuration float64             `json:"audio_duration"`
	Utterances    []AssemblyUtterance `json:"utterances"`
}

type assemblyUploadResp struct {
	UploadURL string `json:"upload_url"`
}

type assemblySubmitReq struct {
	AudioURL         string `json:"audio_url"`
	SpeakerLabels    bool   `json:"speaker_labels"`
	SpeakersExpected int    `json:"speakers_expected,omitempty"`
}

// PollState tracks a submitted job: submitted -> polling -> succeeded | failed.
type PollState string

const (
	PollSubmitted PollState = "submitted"
	PollPolling   PollState = "polling"
	PollSucceeded PollState = "succeeded"
	PollFailed    PollState = "failed"
)

const (
	defaultPollInterval = 3 * time.Second
	defaultPollTimeout  = 5 * time.Minute
)

var ErrJobFailed = errors.New("transcription job failed")

func nextPollState(status string) PollState {
	switch status {
	case "completed":
		return PollSucceeded
	case "error":
		return PollFailed
	}
	return PollPolling
}

func (h *HTTP) assemblyRequest(ctx context.Context, o ProviderOpts, method, path string, body *bytes.Reader, ct string) (*http.Request, error) {
	var req *http.Request
	var err error
	if body == nil {
		req, err = http.NewRequestWithContext(ctx, method, o.URL+path, nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, o.URL+path, body)
	}
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", o.APIKey)
	if ct != "" {
		req.Header.Set("Content-Type", ct)
	}
	return req, nil
}

// AssemblyUpload sends the raw audio and returns the opaque upload handle.
func (h *HTTP) AssemblyUpload(ctx context.Context, o ProviderOpts, a Audio) (string, error) {
	req, err := h.assemblyRequest(ctx, o, http.MethodPost, "/v2/upload", bytes.NewReader(a.Data), "application/octet-stream")
	if err != nil {
		return "", err
	}
	var out assemblyUploadResp
	if err := h.do(req, "assemblyai upload", &out); err != nil {
		return "", err
	}
	if out.UploadURL == "" {
		return "", fmt.Errorf("assemblyai upload: empty upload_url")
	}
	return out.UploadURL, nil
}

func (h *HTTP) AssemblySubmit(ctx context.Context, o ProviderOpts, uploadURL string) (*AssemblyJob, error) {
	var out AssemblyJob
	err := h.postJSONAuth(ctx, o, "/v2/transcript", "assemblyai submit", assemblySubmitReq{
		AudioURL:         uploadURL,
		SpeakerLabels:    true,
		SpeakersExpected: o.Speakers,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (h *HTTP) AssemblyStatus(ctx context.Context, o ProviderOpts, id string) (*AssemblyJob, error) {
	req, err := h.assemblyRequest(ctx, o, http.MethodGet, "/v2/transcript/"+id, nil, "")
	if err != nil {
		return nil, err
	}
	var out AssemblyJob
	if err := h.do(req, "assemblyai status", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AssemblyAI runs upload, submit and poll. Polling is bounded by PollTimeout and
// stops as soon as ctx is cancelled.
func (h *HTTP) AssemblyAI(ctx context.Context, o ProviderOpts, a Audio) (*AssemblyJob, error) {
	handle, err := h.AssemblyUpload(ctx, o, a)
	if err != nil {
		return nil, err
	}
	job, err := h.AssemblySubmit(ctx, o, handle)
	if err != nil {
		return nil, err
	}
	return h.assemblyPoll(ctx, o, job)
}

func (h *HTTP) assemblyPoll(ctx context.Context, o ProviderOpts, job *AssemblyJob) (*AssemblyJob, error) {
	interval, timeout := o.PollInterval, o.PollTimeout
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if timeout <= 0 {
		timeout = defaultPollTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	state := PollSubmitted
	polls := 0
	for {
		switch next := nextPollState(job.Status); next {
		case PollSucceeded:
			return job, nil
		case PollFailed:
			return nil, fmt.Errorf("assemblyai job %s: %w: %s", job.ID, ErrJobFailed, job.Error)
		default:
			state = next
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("assemblyai job %s %s after %d polls: %w", job.ID, state, polls, ctx.Err())
		case <-ticker.C:
		}

		var err error
		job, err = h.AssemblyStatus(ctx, o, job.ID)
		if err != nil {
			return nil, err
		}
		polls++
		log.WithFields(log.Fields{"job": job.ID, "status": job.Status, "poll": polls}).Debug("assemblyai poll")
	}
}

func (h *HTTP) postJSONAuth(ctx context.Context, o ProviderOpts, path, service string, in, out any) error {
	b, err := jsonBody(in)
	if err != nil {
		return fmt.Errorf("%s encode: %w", service, err)
	}
	req, err := h.assemblyRequest(ctx, o, http.MethodPost, path, b, "application/json")
	if err != nil {
		return err
	}
	return h.do(req, service, out)
}
