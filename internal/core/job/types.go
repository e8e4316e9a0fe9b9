package job

import "time"

// Lane identifies which of the two execution pipelines owns a job.
type Lane string

const (
	// LaneBrowser executes actions in-process against a Playwright page.
	LaneBrowser Lane = "browser"
	// LaneRemote forwards actions to the crawl4ai extraction sidecar.
	LaneRemote Lane = "remote"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether no further transition may mutate the job.
// Failed is not terminal: an explicit retry moves it back to pending.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// ActionError is the stored failure shape for one action.
type ActionError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (e *ActionError) Error() string { return e.Code + ": " + e.Message }

func NewActionError(code, message string) *ActionError {
	return &ActionError{Code: code, Message: message}
}

// Error codes recorded on actions.
const (
	CodeBadParams     = "bad_params"
	CodeBrowserError  = "browser_error"
	CodeRemoteError   = "remote_error"
	CodeUnreachable   = "remote_unreachable"
	CodeTimeout       = "timeout"
	CodeEngineError   = "engine_error"
	CodeUnknownAction = "unknown_action"
)

// Action is one step of a job. The sequence is fixed at creation; only the
// execution fields (Result, Error, timestamps) are ever written afterwards.
type Action struct {
	Type   string                 `json:"type"`
	Params map[string]interface{} `json:"params,omitempty"`

	Result      interface{}  `json:"result,omitempty"`
	Error       *ActionError `json:"error,omitempty"`
	StartedAt   *time.Time   `json:"started_at,omitempty"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	DurationMs  int64        `json:"duration_ms,omitempty"`
}

// Asset is a file artifact produced by an action, referenced by URL.
type Asset struct {
	Type      string    `json:"type"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

// QueueToken locates a job's queue item so control operations can remove it
// while it is still waiting.
type QueueToken struct {
	Queue  string `json:"queue,omitempty"`
	TaskID string `json:"task_id,omitempty"`
}

type Job struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	Priority    int                    `json:"priority"`
	Status      Status                 `json:"status"`
	Lane        Lane                   `json:"lane"`
	Actions     []Action               `json:"actions"`

	Results  map[int]interface{} `json:"results,omitempty"`
	Assets   []Asset             `json:"assets,omitempty"`
	Progress int                 `json:"progress"`
	Error    string              `json:"error,omitempty"`
	Attempts int                 `json:"attempts"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	QueueToken QueueToken `json:"queue_token,omitempty"`
}

// ResetForRetry clears every per-action execution field and the job-level
// outcome so a failed job can re-enter its lane queue as if freshly created.
// Attempts carries over as the across-retry history.
func (j *Job) ResetForRetry() {
	j.Status = StatusPending
	j.Error = ""
	j.Progress = 0
	j.Results = nil
	j.Assets = nil
	j.StartedAt = nil
	j.CompletedAt = nil
	j.QueueToken = QueueToken{}
	for i := range j.Actions {
		a := &j.Actions[i]
		a.Result = nil
		a.Error = nil
		a.StartedAt = nil
		a.CompletedAt = nil
		a.DurationMs = 0
	}
}

// ResetExecution clears per-action bookkeeping without touching status.
// Used when a stalled queue item is redelivered and the run starts over.
func (j *Job) ResetExecution() {
	j.Error = ""
	j.Progress = 0
	j.Results = nil
	j.Assets = nil
	j.CompletedAt = nil
	for i := range j.Actions {
		a := &j.Actions[i]
		a.Result = nil
		a.Error = nil
		a.StartedAt = nil
		a.CompletedAt = nil
		a.DurationMs = 0
	}
}

// AssetKind maps asset-producing action types to the stored asset type.
// Types absent from the map produce no asset.
func AssetKind(actionType string) string {
	switch actionType {
	case "screenshot":
		return "image"
	case "pdf", "toPDF":
		return "pdf"
	default:
		return ""
	}
}
