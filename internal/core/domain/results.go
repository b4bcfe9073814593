package domain

// NormalizeResult is the outcome of a best-effort video normalization.
// A transcoding failure never aborts a caption job: Degraded marks the
// fallback branch and Path then carries the original input unchanged.
type NormalizeResult struct {
	Path     string
	Degraded bool
	Warning  error
}

// AudioSource says where a job's audio artifact came from.
type AudioSource string

const (
	AudioFromSibling    AudioSource = "sibling"
	AudioFromExtraction AudioSource = "extraction"
	AudioNone           AudioSource = "none"
)

// AudioResult is the outcome of the audio sourcing policy. Path is empty
// when no audio could be obtained; that is a valid, non-error outcome.
type AudioResult struct {
	Path   string
	Source AudioSource
}
