package clients

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testAudio = Audio{Data: []byte("RIFF....WAVE"), MIMEType: "audio/wav", Filename: "s.wav"}

func TestElevenLabs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/speech-to-text", r.URL.Path)
		assert.Equal(t, "key-1", r.Header.Get("xi-api-key"))
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "scribe_v1", r.FormValue("model_id"))
		assert.Equal(t, "true", r.FormValue("diarize"))
		assert.Equal(t, "2", r.FormValue("num_speakers"))
		assert.Equal(t, "word", r.FormValue("timestamps_granularity"))
		f, hdr, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer f.Close()
		body, _ := io.ReadAll(f)
		assert.Equal(t, "s.wav", hdr.Filename)
		assert.Equal(t, testAudio.Data, body)

		json.NewEncoder(w).Encode(map[string]any{
			"text": "hi there",
			"words": []map[string]any{
				{"text": "hi", "start": 0.1, "end": 0.3, "type": "word", "speaker_id": "speaker_0"},
				{"text": " ", "start": 0.3, "end": 0.35, "type": "spacing", "speaker_id": "speaker_0"},
				{"text": "there", "start": 0.35, "end": 0.6, "type": "word", "speaker_id": "speaker_0"},
			},
		})
	}))
	defer server.Close()

	out, err := NewHTTP().ElevenLabs(context.Background(), ProviderOpts{URL: server.URL, APIKey: "key-1", Model: "scribe_v1", Speakers: 2}, testAudio)
	require.NoError(t, err)
	assert.Equal(t, "hi there", out.Text)
	require.Len(t, out.Words, 3)
	assert.Equal(t, "speaker_0", out.Words[2].SpeakerID)
	assert.Equal(t, "spacing", out.Words[1].Type)
}

func TestDeepgram(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/listen", r.URL.Path)
		assert.Equal(t, "Token dg", r.Header.Get("Authorization"))
		assert.Equal(t, "audio/wav", r.Header.Get("Content-Type"))
		q := r.URL.Query()
		assert.Equal(t, "true", q.Get("diarize"))
		assert.Equal(t, "true", q.Get("punctuate"))
		assert.Equal(t, "true", q.Get("utterances"))
		assert.Equal(t, "nova-2", q.Get("model"))

		w.Write([]byte(`{
			"metadata": {"duration": 4.5},
			"results": {
				"channels": [{"alternatives": [{"transcript": "look at you. I did it"}]}],
				"utterances": [
					{"speaker": 0, "transcript": "look at you.", "start": 0.2, "end": 1.1},
					{"speaker": 1, "transcript": "I did it", "start": 1.4, "end": 2.0}
				]
			}
		}`))
	}))
	defer server.Close()

	out, err := NewHTTP().Deepgram(context.Background(), ProviderOpts{URL: server.URL, APIKey: "dg", Model: "nova-2"}, testAudio)
	require.NoError(t, err)
	assert.Equal(t, 4.5, out.Metadata.Duration)
	assert.Equal(t, "look at you. I did it", out.Transcript())
	require.Len(t, out.Results.Utterances, 2)
	assert.Equal(t, 1, out.Results.Utterances[1].Speaker)
}

func TestDeepgramTranscriptWithoutChannels(t *testing.T) {
	var r DeepgramResp
	assert.Equal(t, "", r.Transcript())
}

func TestStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte("quota exceeded"))
	}))
	defer server.Close()

	_, err := NewHTTP().Deepgram(context.Background(), ProviderOpts{URL: server.URL, APIKey: "dg"}, testAudio)
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusTooManyRequests, se.Code)
	assert.Equal(t, "deepgram", se.Service)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>oops</html>"))
	}))
	defer server.Close()

	_, err := NewHTTP().ElevenLabs(context.Background(), ProviderOpts{URL: server.URL, APIKey: "k"}, testAudio)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "elevenlabs decode")
}

func assemblyServer(t *testing.T, statuses []string, polls *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "aai", r.Header.Get("Authorization"))
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v2/upload":
			json.NewEncoder(w).Encode(map[string]string{"upload_url": "https://cdn/upload/1"})
		case r.Method == http.MethodPost && r.URL.Path == "/v2/transcript":
			var body map[string]any
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "https://cdn/upload/1", body["audio_url"])
			assert.Equal(t, true, body["speaker_labels"])
			assert.Equal(t, 2.0, body["speakers_expected"])
			json.NewEncoder(w).Encode(AssemblyJob{ID: "job-1", Status: "queued"})
		case r.Method == http.MethodGet && r.URL.Path == "/v2/transcript/job-1":
			n := atomic.AddInt32(polls, 1)
			status := statuses[len(statuses)-1]
			if int(n) <= len(statuses) {
				status = statuses[n-1]
			}
			job := AssemblyJob{ID: "job-1", Status: status}
			switch status {
			case "completed":
				job.Text = "good job. thanks"
				job.Utterances = []AssemblyUtterance{
					{Speaker: "A", Text: "good job.", Start: 100, End: 900},
					{Speaker: "B", Text: "thanks", Start: 1000, End: 1500},
				}
			case "error":
				job.Error = "audio too short"
			}
			json.NewEncoder(w).Encode(job)
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestAssemblyAIPollsUntilCompleted(t *testing.T) {
	var polls int32
	server := assemblyServer(t, []string{"queued", "processing", "completed"}, &polls)
	defer server.Close()

	o := ProviderOpts{URL: server.URL, APIKey: "aai", Speakers: 2, PollInterval: 5 * time.Millisecond, PollTimeout: time.Second}
	job, err := NewHTTP().AssemblyAI(context.Background(), o, testAudio)
	require.NoError(t, err)
	assert.Equal(t, "completed", job.Status)
	assert.Len(t, job.Utterances, 2)
	assert.Equal(t, int32(3), atomic.LoadInt32(&polls))
}

func TestAssemblyAIJobError(t *testing.T) {
	var polls int32
	server := assemblyServer(t, []string{"processing", "error"}, &polls)
	defer server.Close()

	o := ProviderOpts{URL: server.URL, APIKey: "aai", Speakers: 2, PollInterval: 5 * time.Millisecond, PollTimeout: time.Second}
	_, err := NewHTTP().AssemblyAI(context.Background(), o, testAudio)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrJobFailed)
	assert.Contains(t, err.Error(), "audio too short")
}

func TestAssemblyAIPollTimeout(t *testing.T) {
	var polls int32
	server := assemblyServer(t, []string{"processing"}, &polls)
	defer server.Close()

	o := ProviderOpts{URL: server.URL, APIKey: "aai", Speakers: 2, PollInterval: 5 * time.Millisecond, PollTimeout: 40 * time.Millisecond}
	_, err := NewHTTP().AssemblyAI(context.Background(), o, testAudio)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAssemblyAIPollCancelled(t *testing.T) {
	var polls int32
	server := assemblyServer(t, []string{"processing"}, &polls)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)

	o := ProviderOpts{URL: server.URL, APIKey: "aai", Speakers: 2, PollInterval: 5 * time.Millisecond, PollTimeout: time.Minute}
	_, err := NewHTTP().AssemblyAI(ctx, o, testAudio)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNextPollState(t *testing.T) {
	assert.Equal(t, PollSucceeded, nextPollState("completed"))
	assert.Equal(t, PollFailed, nextPollState("error"))
	assert.Equal(t, PollPolling, nextPollState("queued"))
	assert.Equal(t, PollPolling, nextPollState("processing"))
}

func TestReasoning(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		switch r.URL.Path {
		case "/api/roles":
			var req RolesReq
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Len(t, req.Utterances, 2)
			w.Write([]byte(`{"parent_speaker": 1, "analysis": "Speaker 1 gives directions"}`))
		case "/api/code":
			var req CodeReq
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "discipline", req.Mode)
			w.Write([]byte(`{"coded_text": "[0] [DO: Praise] nice", "effectiveness_pct": 60}`))
		case "/api/summary":
			w.Write([]byte(`{"analysis": "Strong praise."}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	h := NewHTTP()
	ctx := context.Background()
	base := server.URL + "/api/"
	turns := []Turn{{Index: 0, Speaker: 0, Text: "hi"}, {Index: 1, Speaker: 1, Text: "nice"}}

	roles, err := h.Roles(ctx, base, RolesReq{Utterances: turns})
	require.NoError(t, err)
	require.NotNil(t, roles.ParentSpeaker)
	assert.Equal(t, 1, *roles.ParentSpeaker)

	code, err := h.Code(ctx, base, CodeReq{Mode: "discipline", Utterances: turns})
	require.NoError(t, err)
	assert.Equal(t, "[0] [DO: Praise] nice", code.CodedText)
	require.NotNil(t, code.EffectivenessPct)
	assert.Equal(t, 60.0, *code.EffectivenessPct)

	sum, err := h.Summary(ctx, base, SummaryReq{Mode: "relationship", Tally: map[string]int{"praise": 1}})
	require.NoError(t, err)
	assert.Equal(t, "Strong praise.", sum.Analysis)
}
