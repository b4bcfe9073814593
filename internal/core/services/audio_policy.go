package services

import (
	"context"
	"log/slog"
	"strings"

	"github.com/framehook/captiond/internal/core/domain"
	"github.com/framehook/captiond/internal/core/ports"
)

// Audio sourcing modes.
const (
	AudioModeSeparate = "separate"
	AudioModeExtract  = "extract"
	AudioModeBoth     = "both"
)

// AudioPolicy decides where a job's audio comes from: a sibling artifact
// at the remote location, local extraction, or both in that order. A
// professionally authored remote track is preferred over a lossy
// extraction when both exist.
type AudioPolicy struct {
	logger     *slog.Logger
	retriever  ports.Retriever
	transcoder ports.Transcoder
	mode       string
	extensions []string
}

func NewAudioPolicy(logger *slog.Logger, retriever ports.Retriever, transcoder ports.Transcoder, mode string, extensions []string) *AudioPolicy {
	return &AudioPolicy{
		logger:     logger,
		retriever:  retriever,
		transcoder: transcoder,
		mode:       mode,
		extensions: extensions,
	}
}

// Resolve applies the configured mode. An empty Path is a valid outcome:
// the job continues without a transcript. Unknown modes yield none.
func (p *AudioPolicy) Resolve(ctx context.Context, localVideoPath, remoteRef string) domain.AudioResult {
	switch p.mode {
	case AudioModeSeparate:
		return p.findSibling(ctx, localVideoPath, remoteRef)
	case AudioModeExtract:
		return p.extract(ctx, localVideoPath)
	case AudioModeBoth:
		if res := p.findSibling(ctx, localVideoPath, remoteRef); res.Path != "" {
			return res
		}
		return p.extract(ctx, localVideoPath)
	default:
		p.logger.Warn("unknown audio source mode", "mode", p.mode)
		return domain.AudioResult{Source: domain.AudioNone}
	}
}

// findSibling tries each audio extension against the basename of the
// remote video reference until one download succeeds. The local copy is
// named after the job's own video path so concurrent jobs pulling
// same-named sources never collide.
func (p *AudioPolicy) findSibling(ctx context.Context, localVideoPath, remoteRef string) domain.AudioResult {
	base := remoteBase(remoteRef)

	for _, ext := range p.extensions {
		siblingRef := domain.StripExt(base) + ext
		localPath := domain.StripExt(localVideoPath) + ext
		if err := p.retriever.Fetch(ctx, siblingRef, localPath); err != nil {
			continue
		}
		p.logger.Info("found sibling audio", "ref", siblingRef)
		return domain.AudioResult{Path: localPath, Source: domain.AudioFromSibling}
	}
	return domain.AudioResult{Source: domain.AudioNone}
}

func (p *AudioPolicy) extract(ctx context.Context, localVideoPath string) domain.AudioResult {
	path, err := p.transcoder.ExtractAudio(ctx, localVideoPath)
	if err != nil {
		p.logger.Warn("audio extraction failed", "video", localVideoPath, "error", err)
		return domain.AudioResult{Source: domain.AudioNone}
	}
	return domain.AudioResult{Path: path, Source: domain.AudioFromExtraction}
}

// remoteBase strips any query string from a remote reference, leaving
// the path part whose extension can be swapped.
func remoteBase(ref string) string {
	if idx := strings.Index(ref, "?"); idx >= 0 {
		return ref[:idx]
	}
	return ref
}
