package pipeline

import "github.com/On-Jun9/phockup/pkg/types"

// ProgressCallback receives progress updates. With concurrency above one it is called
// from several workers at once.
type ProgressCallback func(update ProgressUpdate)

const (
	ProgressStatus   = "status"
	ProgressFile     = "progress"
	ProgressComplete = "complete"
)

type ProgressUpdate struct {
	Type     string            `json:"type"`
	Message  string            `json:"message,omitempty"`
	Current  int               `json:"current,omitempty"`
	Filename string            `json:"filename,omitempty"`
	Outcome  types.Outcome     `json:"outcome,omitempty"`
	Summary  *types.RunSummary `json:"summary,omitempty"`
}

func (p *Pipeline) notify(update ProgressUpdate) {
	if p.progressCallback != nil {
		p.progressCallback(update)
	}
}
