// Package media describes the video under analysis and turns local uploads
// into inline payloads for the model.
package media

// Ref is the media under analysis: either *LocalFile or *RemoteURL.
type Ref interface {
	// DisplayName is the label shown under the preview.
	DisplayName() string
	isRef()
}

// LocalFile is an uploaded video spooled to Path. Base64 stays empty until
// the encoder has run.
type LocalFile struct {
	Path      string
	MediaType string
	Base64    string
	Name      string
	Size      int64
}

func (f *LocalFile) DisplayName() string {
	if f.Name == "" {
		return "Comedy Set"
	}
	return f.Name
}

func (*LocalFile) isRef() {}

// RemoteURL is a public video link. URL is what the model receives;
// EmbedURL is only for the preview iframe.
type RemoteURL struct {
	URL      string
	EmbedURL string
}

// NewRemoteURL derives the embeddable URL from raw.
func NewRemoteURL(raw string) *RemoteURL {
	return &RemoteURL{URL: raw, EmbedURL: EmbedURL(raw)}
}

func (*RemoteURL) DisplayName() string {
	return "YouTube Performance"
}

func (*RemoteURL) isRef() {}
