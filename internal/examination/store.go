package examination

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/examkit/session-runtime/internal/metrics"
)

var (
	// ErrNoAnswer reports a textual save on a question lacking its
	// answer container, a contract violation rather than a soft miss.
	ErrNoAnswer = errors.New("no answer object in question")
	// ErrUnknownQuestion reports an id that is not part of the session.
	ErrUnknownQuestion = errors.New("question not found in session")
	// ErrWrongType reports an operation applied to an unsupported
	// question type.
	ErrWrongType = errors.New("operation not applicable to question type")
)

// SaveOptions controls a single textual save.
type SaveOptions struct {
	// Autosave stamps AutosavedAt instead of notifying the user.
	Autosave bool
	// CanFail swallows the failure so a best-effort flush cannot block
	// whatever comes after it.
	CanFail bool
}

// FlushOptions controls a scope-wide textual flush.
type FlushOptions struct {
	Autosave   bool
	AllowEmpty bool
	CanFail    bool
}

// Store holds the per-question answer state of one session and runs the
// two save paths: immediate for discrete choices, deferred for free
// text. Save completions are keyed by question id, never by whatever
// question happens to be current when the response lands.
type Store struct {
	backend  Backend
	notifier Notifier
	logger   zerolog.Logger
	preview  bool
	now      func() time.Time

	mu      sync.Mutex
	session *Session
	byID    map[int64]*SectionQuestion
}

// NewStore indexes the session's questions and binds the save paths.
// In preview mode network calls are skipped but local state still
// updates, so the flow stays exercisable without a live session.
func NewStore(session *Session, backend Backend, notifier Notifier, preview bool, logger zerolog.Logger) *Store {
	byID := make(map[int64]*SectionQuestion)
	for _, sec := range session.Sections {
		for _, q := range sec.Questions {
			byID[q.ID] = q
		}
	}
	return &Store{
		backend:  backend,
		notifier: notifier,
		logger:   logger.With().Str("component", "answer_store").Logger(),
		preview:  preview,
		now:      time.Now,
		session:  session,
		byID:     byID,
	}
}

// Question returns the session question with the given id.
func (s *Store) Question(id int64) (*SectionQuestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownQuestion, id)
	}
	return q, nil
}

// RecordChoice saves the selected option id(s) of a choice question
// immediately. Single-select types accept exactly one id; weighted
// multiple choice accepts zero or more.
func (s *Store) RecordChoice(ctx context.Context, questionID int64, selectedIDs []int64) error {
	q, err := s.Question(questionID)
	if err != nil {
		return err
	}

	switch q.Type() {
	case TypeMultipleChoice, TypeClaimChoice:
		if len(selectedIDs) != 1 {
			return fmt.Errorf("%w: %s takes exactly one option", ErrWrongType, q.Type())
		}
	case TypeWeightedChoice:
	default:
		return fmt.Errorf("%w: %s", ErrWrongType, q.Type())
	}

	if !s.preview {
		if err := s.backend.SaveOptions(ctx, s.hash(), questionID, selectedIDs); err != nil {
			metrics.SavesTotal.WithLabelValues("option", "error").Inc()
			s.notifier.Error("saving answer failed")
			return fmt.Errorf("save options: %w", err)
		}
		metrics.SavesTotal.WithLabelValues("option", "ok").Inc()
		s.notifier.Info("answer saved")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	selected := make(map[int64]bool, len(selectedIDs))
	for _, id := range selectedIDs {
		selected[id] = true
	}
	for _, o := range q.Options {
		o.Answered = selected[o.ID]
	}
	if q.Type() != TypeWeightedChoice {
		q.SelectedOption = selectedIDs[0]
	}
	q.RecomputeScoreBounds()
	q.refreshAnswered()
	return nil
}

// RecordText updates an essay answer in memory only; persistence is left
// to the autosave timer or an explicit flush.
func (s *Store) RecordText(questionID int64, text string) error {
	q, err := s.Question(questionID)
	if err != nil {
		return err
	}
	if q.Type() != TypeEssay {
		return fmt.Errorf("%w: %s", ErrWrongType, q.Type())
	}
	if q.EssayAnswer == nil {
		return ErrNoAnswer
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	q.EssayAnswer.Answer = text
	q.dirty = true
	q.refreshAnswered()
	return nil
}

// RecordBlanks updates a cloze answer in memory only.
func (s *Store) RecordBlanks(questionID int64, blanks map[string]string) error {
	q, err := s.Question(questionID)
	if err != nil {
		return err
	}
	if q.Type() != TypeCloze {
		return fmt.Errorf("%w: %s", ErrWrongType, q.Type())
	}
	if q.ClozeAnswer == nil {
		return ErrNoAnswer
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	q.ClozeAnswer.Blanks = blanks
	q.dirty = true
	q.refreshAnswered()
	return nil
}

// SaveText posts the question's current textual payload. On success the
// version token from the response always replaces the local one.
func (s *Store) SaveText(ctx context.Context, questionID int64, opts SaveOptions) error {
	q, err := s.Question(questionID)
	if err != nil {
		return err
	}

	// Snapshot the payload; the request runs without the lock so edits
	// and navigation stay responsive while the save is in flight.
	s.mu.Lock()
	var (
		kind    string
		text    string
		blanks  map[string]string
		version int64
	)
	switch q.Type() {
	case TypeEssay:
		if q.EssayAnswer == nil {
			s.mu.Unlock()
			return ErrNoAnswer
		}
		kind = "essay"
		text = q.EssayAnswer.Answer
		version = q.EssayAnswer.ObjectVersion
	case TypeCloze:
		if q.ClozeAnswer == nil {
			s.mu.Unlock()
			return ErrNoAnswer
		}
		kind = "cloze"
		blanks = q.ClozeAnswer.Blanks
		version = q.ClozeAnswer.ObjectVersion
	default:
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrWrongType, q.Type())
	}
	hash := s.session.Hash
	s.mu.Unlock()

	if s.preview {
		s.mu.Lock()
		q.dirty = false
		q.refreshAnswered()
		s.mu.Unlock()
		return nil
	}

	var newVersion int64
	if kind == "essay" {
		newVersion, err = s.backend.SaveEssay(ctx, hash, questionID, text, version)
	} else {
		newVersion, err = s.backend.SaveCloze(ctx, hash, questionID, blanks, version)
	}
	if err != nil {
		metrics.SavesTotal.WithLabelValues(kind, "error").Inc()
		if opts.CanFail {
			// Best-effort path: the answer stays dirty and the next
			// autosave or user action retries.
			s.logger.Warn().Err(err).Int64("question_id", questionID).Msg("textual save failed")
			return nil
		}
		s.notifier.Error("saving answer failed")
		return fmt.Errorf("save %s answer: %w", kind, err)
	}
	metrics.SavesTotal.WithLabelValues(kind, "ok").Inc()

	// Re-resolve by id: the completion must land on this question's
	// state even if the user has since moved elsewhere.
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.byID[questionID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownQuestion, questionID)
	}
	switch {
	case q.EssayAnswer != nil && kind == "essay":
		q.EssayAnswer.ObjectVersion = newVersion
	case q.ClozeAnswer != nil && kind == "cloze":
		q.ClozeAnswer.ObjectVersion = newVersion
	}
	q.dirty = false
	q.refreshAnswered()
	if opts.Autosave {
		t := s.now()
		q.AutosavedAt = &t
	} else if !opts.CanFail {
		// Best-effort flushes stay silent on success too; the notice is
		// for saves the user asked for directly.
		s.notifier.Info("answer saved")
	}
	return nil
}

// SaveAllTextualOfSection flushes the section's textual answers strictly
// sequentially, in question order, so saves never race each other on the
// version token and at most one write per scope is in flight.
func (s *Store) SaveAllTextualOfSection(ctx context.Context, sectionID int64, opts FlushOptions) error {
	s.mu.Lock()
	sec := s.session.SectionByID(sectionID)
	if sec == nil {
		s.mu.Unlock()
		return fmt.Errorf("section not found: %d", sectionID)
	}
	ids := make([]int64, 0, len(sec.Questions))
	for _, q := range sec.Questions {
		if q.isTextual(opts.AllowEmpty) {
			ids = append(ids, q.ID)
		}
	}
	s.mu.Unlock()

	for _, id := range ids {
		err := s.SaveText(ctx, id, SaveOptions{Autosave: opts.Autosave, CanFail: opts.CanFail})
		if err != nil && !opts.CanFail {
			return err
		}
	}
	return nil
}

// SaveAllTextual flushes every section of the session, in order.
func (s *Store) SaveAllTextual(ctx context.Context, opts FlushOptions) error {
	s.mu.Lock()
	ids := make([]int64, 0, len(s.session.Sections))
	for _, sec := range s.session.Sections {
		ids = append(ids, sec.ID)
	}
	s.mu.Unlock()

	for _, id := range ids {
		if err := s.SaveAllTextualOfSection(ctx, id, opts); err != nil && !opts.CanFail {
			return err
		}
	}
	return nil
}

// SectionStatus is a read-only snapshot of one section's answer progress.
type SectionStatus struct {
	ID         int64
	Name       string
	Answered   int
	Unanswered int
}

// Status snapshots per-section answer progress under the store's lock,
// so observers never read answer state concurrently with a save.
func (s *Store) Status() []SectionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SectionStatus, 0, len(s.session.Sections))
	for _, sec := range s.session.Sections {
		answered := sec.AnsweredCount()
		out = append(out, SectionStatus{
			ID:         sec.ID,
			Name:       sec.Name,
			Answered:   answered,
			Unanswered: len(sec.Questions) - answered,
		})
	}
	return out
}

func (s *Store) hash() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.Hash
}
