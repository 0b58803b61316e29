package transcoder

import (
	"fmt"
	"os"
	"strings"
)

// WriteMasterPlaylist writes the playlist-of-playlists referencing every tier.
// BANDWIDTH is the combined video+audio bitrate in bits per second and
// RESOLUTION carries the planned encode dimensions. Entries appear in the
// order of results, which callers must keep equal to the tier-table order:
// simple clients pick their initial stream by list position.
func WriteMasterPlaylist(path string, results []TierResult) error {
	var sb strings.Builder
	sb.WriteString("#EXTM3U\n")
	sb.WriteString("#EXT-X-VERSION:3\n\n")

	for _, r := range results {
		bandwidth := (r.Plan.VideoBitrateKbps + r.Plan.AudioBitrateKbps) * 1000
		sb.WriteString(fmt.Sprintf(
			"#EXT-X-STREAM-INF:BANDWIDTH=%d,RESOLUTION=%dx%d\n",
			bandwidth, r.Plan.Width, r.Plan.Height,
		))
		sb.WriteString(fmt.Sprintf("%s/segments/playlist.m3u8\n\n", r.Plan.Name))
	}

	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("write master playlist: %w", err)
	}

	return nil
}
