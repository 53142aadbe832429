package api

import (
	"github.com/comedypulse/pulse-agent/internal/analysis"
	"github.com/comedypulse/pulse-agent/internal/media"
	"github.com/comedypulse/pulse-agent/internal/session"
)

type HealthResponse struct {
	Status           string `json:"status"`
	Version          string `json:"version"`
	UptimeS          int64  `json:"uptime_s"`
	Model            string `json:"model"`
	APIKeyConfigured bool   `json:"api_key_configured"`
	SessionStatus    string `json:"session_status"`
	LiveClients      int    `json:"live_clients"`
}

type MediaResponse struct {
	Kind      string `json:"kind"`
	Name      string `json:"name"`
	MediaType string `json:"media_type,omitempty"`
	Size      int64  `json:"size,omitempty"`
	SizeLabel string `json:"size_label,omitempty"`
	URL       string `json:"url,omitempty"`
	EmbedURL  string `json:"embed_url,omitempty"`
}

type SessionResponse struct {
	Version    uint64              `json:"version"`
	Generation uint64              `json:"generation"`
	Status     string              `json:"status"`
	Media      *MediaResponse      `json:"media,omitempty"`
	Result     *analysis.Result    `json:"result,omitempty"`
	Sources    []analysis.Source   `json:"sources"`
	Chat       []analysis.ChatTurn `json:"chat"`
	IsChatting bool                `json:"is_chatting"`
}

type URLRequest struct {
	URL string `json:"url"`
}

type ChatRequest struct {
	Message string `json:"message"`
}

type ChatResponse struct {
	Sent bool `json:"sent"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func SnapshotToResponse(s session.Snapshot) SessionResponse {
	resp := SessionResponse{
		Version:    s.Version,
		Generation: s.Generation,
		Status:     string(s.Status),
		Result:     s.Result,
		Sources:    s.Sources,
		Chat:       s.Chat,
		IsChatting: s.IsChatting,
	}
	if resp.Sources == nil {
		resp.Sources = []analysis.Source{}
	}
	if resp.Chat == nil {
		resp.Chat = []analysis.ChatTurn{}
	}

	switch m := s.Media.(type) {
	case *media.LocalFile:
		resp.Media = &MediaResponse{
			Kind:      "file",
			Name:      m.DisplayName(),
			MediaType: m.MediaType,
			Size:      m.Size,
			SizeLabel: media.FormatSizeMB(m.Size),
		}
	case *media.RemoteURL:
		resp.Media = &MediaResponse{
			Kind:     "url",
			Name:     m.DisplayName(),
			URL:      m.URL,
			EmbedURL: m.EmbedURL,
		}
	}
	return resp
}
