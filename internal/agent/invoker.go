package agent

import (
	"context"
	"errors"
	"fmt"
)

// Payload bundles everything a stage's backing agent needs for one run:
// the forwarded text context, the repository handle when the stage depends
// on one, an optional uploaded requirements file (first stage only), and
// the apply-fix flag for the fix side-branch.
type Payload struct {
	Text     string `json:"text,omitempty"`
	RepoURL  string `json:"repoUrl,omitempty"`
	FileName string `json:"fileName,omitempty"`
	FileBlob []byte `json:"fileBlob,omitempty"`
	ApplyFix bool   `json:"applyFix,omitempty"`
}

// Outcome is the structured result of a successful agent run.
type Outcome struct {
	// Message is the agent's human-readable completion note.
	Message string `json:"message,omitempty"`

	// Output is the text payload forwarded to the next stage.
	Output string `json:"output,omitempty"`

	// ReportID is an opaque reference to a downloadable report artifact.
	ReportID string `json:"reportId,omitempty"`

	// RepoURL is set when the agent created or rewrote a repository.
	RepoURL string `json:"repoUrl,omitempty"`

	// FixAvailable indicates the agent's findings can be resubmitted
	// through the fix branch. Only the security-scan agent sets this.
	FixAvailable bool `json:"fixAvailable,omitempty"`
}

// Invoker performs one remote call to a named stage's backing agent.
// Implementations must be safe for concurrent use across stage ids and
// must not retry internally; retry policy belongs to the caller.
type Invoker interface {
	Invoke(ctx context.Context, stageID string, p Payload) (*Outcome, error)
}

// ErrorKind classifies an InvocationError.
type ErrorKind string

const (
	// ErrNetwork covers transport failures and non-200 HTTP responses.
	ErrNetwork ErrorKind = "network"

	// ErrRejected means the agent answered and refused the request.
	ErrRejected ErrorKind = "rejected"

	// ErrTimeout means the call exceeded its deadline.
	ErrTimeout ErrorKind = "timeout"
)

// InvocationError is a failed agent call. All kinds are handled identically
// for run-state purposes; Message is surfaced to the user verbatim.
type InvocationError struct {
	Kind    ErrorKind
	Stage   string
	Message string
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("agent: %s: %s: %s", e.Stage, e.Kind, e.Message)
}

// AsInvocationError unwraps err into an *InvocationError if it is one.
func AsInvocationError(err error) (*InvocationError, bool) {
	var ie *InvocationError
	if errors.As(err, &ie) {
		return ie, true
	}
	return nil, false
}

// Directory maps stage ids to agent endpoint URLs.
type Directory map[string]string

// Endpoint returns the URL registered for a stage id.
func (d Directory) Endpoint(stageID string) (string, error) {
	url, ok := d[stageID]
	if !ok || url == "" {
		return "", fmt.Errorf("agent: no endpoint registered for stage %q", stageID)
	}
	return url, nil
}
