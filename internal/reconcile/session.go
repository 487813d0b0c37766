package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"contentpulse/internal/archive"
	"contentpulse/internal/logging"
	"contentpulse/internal/model"
)

// ErrInvalidTransition is returned when a session step is called out of order.
var ErrInvalidTransition = errors.New("invalid import session transition")

// State is a step of an interactive import.
type State int

const (
	StateIdle State = iota
	StateValidating
	// StateInvalid is never held; a rejected file returns the session to StateIdle.
	StateInvalid
	StatePreviewing
	StateConfirmed
	StateReconciling
	StateDone
	StateFailed
)

var stateNames = [...]string{"idle", "validating", "invalid", "previewing", "confirmed", "reconciling", "done", "failed"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Preview summarises a validated file before the user picks a policy.
type Preview struct {
	Version    string      `json:"version"`
	ExportedAt time.Time   `json:"exportedAt"`
	User       model.Owner `json:"user"`
	Content    int         `json:"content"`
	Engagement int         `json:"engagement"`
	// Duplicates counts incoming items already tracked by normalized URL.
	Duplicates int `json:"duplicates"`
}

// ImportSession walks one import through
// idle -> validating -> previewing -> confirmed -> reconciling -> done|failed.
// A file that fails validation returns the session to idle.
type ImportSession struct {
	rec     *Reconciler
	state   State
	doc     archive.Document
	preview Preview
	policy  Policy
	result  ImportResult
	err     error
}

func (r *Reconciler) NewImportSession() *ImportSession {
	return &ImportSession{rec: r, state: StateIdle}
}

func (s *ImportSession) State() State         { return s.state }
func (s *ImportSession) Result() ImportResult { return s.result }

// Err returns the last validation or reconciliation error.
func (s *ImportSession) Err() error { return s.err }

func (s *ImportSession) transition(from []State, to State) error {
	for _, f := range from {
		if s.state == f {
			s.state = to
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.state, to)
}

// Validate decodes data. On success the session is previewing; on failure it
// passes through invalid back to idle and the error is returned.
func (s *ImportSession) Validate(data []byte) error {
	if err := s.transition([]State{StateIdle, StateDone, StateFailed}, StateValidating); err != nil {
		return err
	}
	s.result, s.err = ImportResult{}, nil
	doc, err := archive.Decode(data)
	if err != nil {
		s.err = err
		s.rec.log.Warn("import_invalid", logging.Err(err))
		s.state = StateIdle
		return err
	}
	s.doc = doc
	s.preview = s.buildPreview(doc)
	s.state = StatePreviewing
	return nil
}

func (s *ImportSession) buildPreview(doc archive.Document) Preview {
	p := Preview{
		Version:    doc.Version,
		ExportedAt: doc.ExportedAt(),
		User:       doc.Owner(),
		Content:    len(doc.Content),
		Engagement: len(doc.Engagement),
	}
	for _, c := range doc.Content {
		if _, ok := s.rec.lib.Lookup(c.URL); ok && c.URL != "" {
			p.Duplicates++
		}
	}
	return p
}

func (s *ImportSession) Preview() (Preview, error) {
	if s.state != StatePreviewing && s.state != StateConfirmed {
		return Preview{}, fmt.Errorf("%w: no preview in %s", ErrInvalidTransition, s.state)
	}
	return s.preview, nil
}

// Confirm records the user's policy choice. Choosing replace is the
// confirmation that existing content may be deleted.
func (s *ImportSession) Confirm(policy Policy) error {
	if policy != PolicyMerge && policy != PolicyReplace {
		return fmt.Errorf("%w: %q", ErrUnknownPolicy, policy)
	}
	if err := s.transition([]State{StatePreviewing}, StateConfirmed); err != nil {
		return err
	}
	s.policy = policy
	return nil
}

// Cancel abandons a validated file.
func (s *ImportSession) Cancel() error {
	if err := s.transition([]State{StatePreviewing, StateConfirmed}, StateIdle); err != nil {
		return err
	}
	s.doc, s.preview = archive.Document{}, Preview{}
	return nil
}

// Run reconciles the confirmed file. It is not resumable: on failure the
// session is failed and whatever was applied stays applied.
func (s *ImportSession) Run(ctx context.Context) (ImportResult, error) {
	if err := s.transition([]State{StateConfirmed}, StateReconciling); err != nil {
		return ImportResult{}, err
	}
	in := Incoming{
		Content:     s.doc.ContentItems(),
		Engagement:  s.doc.Snapshots(),
		Credentials: s.doc.Credentials(),
	}
	res, err := s.rec.ImportLibrary(ctx, in, s.policy)
	s.result, s.err = res, err
	if err != nil {
		s.state = StateFailed
		return res, err
	}
	s.state = StateDone
	return res, nil
}
