package history

import (
	"encoding/json"
	"time"
)

// Decision records what the optimizer did with an iteration's candidate.
type Decision string

const (
	DecisionBaseline Decision = "baseline"
	DecisionAccepted Decision = "accepted"
	DecisionImproved Decision = "improved"
	DecisionRejected Decision = "rejected"
	DecisionSkipped  Decision = "skipped"
	DecisionDryRun   Decision = "dry_run"
)

// Backup is the prompt as it was before optimization started.
type Backup struct {
	Agent      string `json:"agent"`
	PromptName string `json:"prompt_name"`
	Prefix     string `json:"prefix"`
	Suffix     string `json:"suffix,omitempty"`
	// Raw is the resource as fetched; FileStore keeps it in its own file
	// so the bytes survive unchanged.
	Raw       json.RawMessage `json:"-"`
	CreatedAt time.Time       `json:"created_at"`
}

// Iteration is one line of iterations.jsonl.
type Iteration struct {
	SessionID  string    `json:"session_id"`
	Agent      string    `json:"agent"`
	PromptName string    `json:"prompt_name"`
	Suite      string    `json:"suite,omitempty"`
	Index      int       `json:"iteration"`
	Candidate  string    `json:"candidate"`
	PassRate   float64   `json:"pass_rate"`
	Passed     int       `json:"passed"`
	Total      int       `json:"total"`
	Decision   Decision  `json:"decision"`
	RunID      string    `json:"run_id,omitempty"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Summary is written once an optimization session ends.
type Summary struct {
	SessionID        string    `json:"session_id"`
	Agent            string    `json:"agent"`
	PromptName       string    `json:"prompt_name"`
	Suite            string    `json:"suite,omitempty"`
	Status           string    `json:"status"`
	BaselinePassRate float64   `json:"baseline_pass_rate"`
	BestPassRate     float64   `json:"best_pass_rate"`
	FinalPassRate    float64   `json:"final_pass_rate"`
	Iterations       int       `json:"iterations"`
	Error            string    `json:"error,omitempty"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
}

// Session is everything stored for one optimization session.
type Session struct {
	ID         string
	Agent      string
	Dir        string
	Backup     *Backup
	Iterations []Iteration
	Summary    *Summary
}

// SessionInfo identifies a stored session without loading its iterations.
type SessionInfo struct {
	ID      string
	Agent   string
	Dir     string
	Status  string
	ModTime time.Time
}
