package clients

import (
	"context"
	"strings"
)

// --- Reasoning proxy (/roles, /code, /summary) ---
type Turn struct {
	Index   int     `json:"index"`
	Speaker int     `json:"speaker"`
	Text    string  `json:"text"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
}

type RolesReq struct {
	Utterances []Turn `json:"utterances"`
}

type RolesResp struct {
	ParentSpeaker *int   `json:"parent_speaker"`
	Analysis      string `json:"analysis"`
}

type CodeReq struct {
	Mode       string `json:"mode"`
	Utterances []Turn `json:"utterances"`
}

type CodeResp struct {
	CodedText        string   `json:"coded_text"`
	EffectivenessPct *float64 `json:"effectiveness_pct,omitempty"`
}

type SummaryReq struct {
	Mode     string `json:"mode"`
	Tally    any    `json:"tally"`
	Snapshot any    `json:"snapshot,omitempty"`
}

type SummaryResp struct {
	Analysis string `json:"analysis"`
}

func endpoint(base, path string) string {
	return strings.TrimRight(base, "/") + path
}

func (h *HTTP) Roles(ctx context.Context, url string, req RolesReq) (*RolesResp, error) {
	var out RolesResp
	if err := h.postJSON(ctx, endpoint(url, "/roles"), "roles", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (h *HTTP) Code(ctx context.Context, url string, req CodeReq) (*CodeResp, error) {
	var out CodeResp
	if err := h.postJSON(ctx, endpoint(url, "/code"), "code", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (h *HTTP) Summary(ctx context.Context, url string, req SummaryReq) (*SummaryResp, error) {
	var out SummaryResp
	if err := h.postJSON(ctx, endpoint(url, "/summary"), "summary", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
