package youtube

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	ytdl "github.com/kkdai/youtube/v2"
	"github.com/phrazzld/mediajobs/internal/fetch"
)

const watchURL = "https://www.youtube.com/watch?v="

// AudioExtension is the extension given to every downloaded stream.
const AudioExtension = ".mp3"

// videoClient is the part of ytdl.Client used here.
type videoClient interface {
	GetVideoContext(ctx context.Context, url string) (*ytdl.Video, error)
	GetStreamContext(ctx context.Context, video *ytdl.Video, format *ytdl.Format) (io.ReadCloser, int64, error)
	GetPlaylistContext(ctx context.Context, url string) (*ytdl.Playlist, error)
}

// Source opens the best audio stream of a video.
type Source struct {
	client videoClient
	logger *slog.Logger
}

var _ fetch.Source = (*Source)(nil)

// NewSource creates a Source backed by a default ytdl client.
func NewSource(logger *slog.Logger) *Source {
	return newSource(&ytdl.Client{}, logger)
}

func newSource(client videoClient, logger *slog.Logger) *Source {
	return &Source{client: client, logger: logger.With("component", "youtube_source")}
}

// Open implements fetch.Source. It picks the audio format with the highest
// bitrate and names the stream after the video title.
func (s *Source) Open(ctx context.Context, url string) (*fetch.Stream, error) {
	video, err := s.client.GetVideoContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to get video: %w", err)
	}

	format := bestAudioFormat(video.Formats)
	if format == nil {
		return nil, fetch.ErrNoStream
	}

	body, size, err := s.client.GetStreamContext(ctx, video, format)
	if err != nil {
		return nil, fmt.Errorf("failed to get stream: %w", err)
	}

	s.logger.DebugContext(ctx, "audio stream opened",
		"video_id", video.ID,
		"itag", format.ItagNo,
		"bitrate", format.Bitrate,
		"size", size)

	return &fetch.Stream{
		Title:     video.Title,
		Extension: AudioExtension,
		Body:      body,
	}, nil
}

// ExpandPlaylist returns the watch URLs of every entry in a playlist, in
// playlist order.
func (s *Source) ExpandPlaylist(ctx context.Context, url string) ([]string, error) {
	playlist, err := s.client.GetPlaylistContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to get playlist: %w", err)
	}
	if playlist == nil || len(playlist.Videos) == 0 {
		return nil, errors.New("playlist has no videos")
	}

	urls := make([]string, 0, len(playlist.Videos))
	for _, entry := range playlist.Videos {
		if entry == nil || entry.ID == "" {
			continue
		}
		urls = append(urls, watchURL+entry.ID)
	}

	s.logger.InfoContext(ctx, "playlist expanded",
		"playlist_id", playlist.ID,
		"title", playlist.Title,
		"videos", len(urls))
	return urls, nil
}

// bestAudioFormat returns the audio-only format with the highest bitrate,
// preferring the default audio track when tracks differ.
func bestAudioFormat(formats ytdl.FormatList) *ytdl.Format {
	var audio []*ytdl.Format
	for i := range formats {
		f := &formats[i]
		if strings.HasPrefix(f.MimeType, "audio/") {
			audio = append(audio, f)
		}
	}
	if len(audio) == 0 {
		return nil
	}

	sort.SliceStable(audio, func(i, j int) bool {
		di, dj := isDefaultTrack(audio[i]), isDefaultTrack(audio[j])
		if di != dj {
			return di
		}
		return audio[i].Bitrate > audio[j].Bitrate
	})
	return audio[0]
}

func isDefaultTrack(f *ytdl.Format) bool {
	return f.AudioTrack == nil || f.AudioTrack.AudioIsDefault
}
