package media

import "strings"

const (
	watchMarker = "youtube.com/watch?v="
	shortMarker = "youtu.be/"
	embedPrefix = "https://www.youtube.com/embed/"
)

// EmbedURL maps YouTube watch and short links onto the embed player URL.
// Any other URL, including one that is already an embed URL, is returned
// unchanged.
func EmbedURL(raw string) string {
	if i := strings.Index(raw, watchMarker); i >= 0 {
		id := raw[i+len(watchMarker):]
		if j := strings.IndexByte(id, '&'); j >= 0 {
			id = id[:j]
		}
		return embedPrefix + id
	}
	if i := strings.Index(raw, shortMarker); i >= 0 {
		id := raw[i+len(shortMarker):]
		if j := strings.IndexByte(id, '?'); j >= 0 {
			id = id[:j]
		}
		return embedPrefix + id
	}
	return raw
}
