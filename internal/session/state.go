package session

import (
	"github.com/comedypulse/pulse-agent/internal/analysis"
	"github.com/comedypulse/pulse-agent/internal/media"
)

type Status string

const (
	StatusIdle       Status = "idle"
	StatusUploading  Status = "uploading"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// ChatApology replaces the assistant turn when a follow-up call fails.
const ChatApology = "I encountered an error analyzing that part of the set. Please try again."

// Snapshot is an immutable copy of the session taken under the controller
// lock. Version increases with every published change.
type Snapshot struct {
	Version    uint64
	Generation uint64
	Status     Status
	Media      media.Ref
	Result     *analysis.Result
	Sources    []analysis.Source
	Chat       []analysis.ChatTurn
	IsChatting bool
}

// LocalFile returns the local upload, or nil when the media is a URL or absent.
func (s Snapshot) LocalFile() *media.LocalFile {
	f, _ := s.Media.(*media.LocalFile)
	return f
}

// RemoteURL returns the remote link, or nil when the media is a file or absent.
func (s Snapshot) RemoteURL() *media.RemoteURL {
	u, _ := s.Media.(*media.RemoteURL)
	return u
}

func (s Snapshot) Busy() bool {
	return s.Status == StatusUploading || s.Status == StatusProcessing
}
