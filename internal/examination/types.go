package examination

import (
	"context"
	"time"
)

// QuestionType tags mirror the backend's discriminator values.
type QuestionType string

const (
	TypeEssay          QuestionType = "EssayQuestion"
	TypeCloze          QuestionType = "ClozeTestQuestion"
	TypeMultipleChoice QuestionType = "MultipleChoiceQuestion"
	TypeWeightedChoice QuestionType = "WeightedMultipleChoiceQuestion"
	TypeClaimChoice    QuestionType = "ClaimChoiceQuestion"
)

// ClaimChoiceKind is the tri-state role of a claim-choice option.
type ClaimChoiceKind string

const (
	ClaimCorrect   ClaimChoiceKind = "CorrectOption"
	ClaimIncorrect ClaimChoiceKind = "IncorrectOption"
	ClaimSkip      ClaimChoiceKind = "SkipOption"
)

// Session is one in-progress attempt, fetched at start and owned by the
// lifecycle controller. The hash is the opaque handle every backend call
// is keyed on; it is not a database id.
type Session struct {
	ID             int64      `json:"id"`
	Hash           string     `json:"hash"`
	Name           string     `json:"name"`
	Cloned         bool       `json:"cloned"`
	External       bool       `json:"external"`
	Implementation string     `json:"implementation"`
	Sections       []*Section `json:"examSections"`
}

// QuitLinkEnabled reports whether the logout screen should offer a quit
// link (client-authenticated implementations only).
func (s *Session) QuitLinkEnabled() bool {
	return s.Implementation == "CLIENT_AUTH"
}

// SectionByID returns the section with the given id, or nil.
func (s *Session) SectionByID(id int64) *Section {
	for _, sec := range s.Sections {
		if sec.ID == id {
			return sec
		}
	}
	return nil
}

// Section is an ordered subset of questions. Immutable after load except
// for its questions' answer state. LotteryOn only records that the server
// picked a subset; the client renders what it received.
type Section struct {
	ID          int64              `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	LotteryOn   bool               `json:"lotteryOn"`
	Sequence    int                `json:"sequenceNumber"`
	Questions   []*SectionQuestion `json:"sectionQuestions"`
}

// SectionQuestion is one answer-bearing question inside a section.
type SectionQuestion struct {
	ID             int64        `json:"id"`
	Question       Question     `json:"question"`
	EvaluationType string       `json:"evaluationType,omitempty"`
	Options        []*Option    `json:"options,omitempty"`
	SelectedOption int64        `json:"selectedOption,omitempty"`
	EssayAnswer    *EssayAnswer `json:"essayAnswer,omitempty"`
	ClozeAnswer    *ClozeAnswer `json:"clozeTestAnswer,omitempty"`

	DerivedMaxScore float64    `json:"derivedMaxScore"`
	DerivedMinScore float64    `json:"derivedMinScore"`
	Answered        bool       `json:"answered"`
	AutosavedAt     *time.Time `json:"autosaved,omitempty"`

	// dirty marks an unsaved textual edit. Cleared only by a settled save.
	dirty bool
}

// Type is a shorthand for the wrapped question's type tag.
func (q *SectionQuestion) Type() QuestionType { return q.Question.Type }

// Dirty reports whether the question holds an unsaved textual edit.
func (q *SectionQuestion) Dirty() bool { return q.dirty }

// Question carries the shared question body.
type Question struct {
	ID   int64        `json:"id"`
	Type QuestionType `json:"type"`
	Text string       `json:"question,omitempty"`
}

// Option is a selectable answer option. Score contributes to the derived
// bounds of weighted and claim-choice questions.
type Option struct {
	ID        int64           `json:"id"`
	Score     float64         `json:"score"`
	Answered  bool            `json:"answered"`
	ClaimKind ClaimChoiceKind `json:"claimChoiceType,omitempty"`
}

// EssayAnswer is the free-text answer container with its
// optimistic-concurrency token.
type EssayAnswer struct {
	ID            int64  `json:"id,omitempty"`
	Answer        string `json:"answer"`
	ObjectVersion int64  `json:"objectVersion"`
}

// ClozeAnswer holds per-blank answers keyed by blank id.
type ClozeAnswer struct {
	ID            int64             `json:"id,omitempty"`
	Blanks        map[string]string `json:"answer"`
	ObjectVersion int64             `json:"objectVersion"`
}

// Backend is the slice of the examination REST API the runtime consumes.
// Implementations must apply the external/collaborative path prefix
// uniformly once it is selected at session start.
type Backend interface {
	// FetchSession loads the full session payload for a hash.
	FetchSession(ctx context.Context, hash string) (*Session, error)
	// FetchPreview loads an exam preview by id (no live session).
	FetchPreview(ctx context.Context, examID int64) (*Session, error)
	// RemainingTime returns the authoritative seconds left.
	RemainingTime(ctx context.Context, hash string) (int, error)
	// SaveEssay persists an essay answer; returns the new version token.
	SaveEssay(ctx context.Context, hash string, questionID int64, answer string, version int64) (int64, error)
	// SaveCloze persists a cloze answer; returns the new version token.
	SaveCloze(ctx context.Context, hash string, questionID int64, blanks map[string]string, version int64) (int64, error)
	// SaveOptions persists the selected option ids of a choice question.
	SaveOptions(ctx context.Context, hash string, questionID int64, optionIDs []int64) error
	// Abort discards the attempt server-side.
	Abort(ctx context.Context, hash string) error
	// Finish signals end-of-session.
	Finish(ctx context.Context, hash string) error
	// UseExternalPaths switches the client onto the interoperability
	// route prefix for the rest of the session.
	UseExternalPaths()
}

// TimeSource is the narrow backend slice the clock needs.
type TimeSource interface {
	RemainingTime(ctx context.Context, hash string) (int, error)
}

// Notifier surfaces user-visible notices; the embedding UI supplies one.
type Notifier interface {
	Info(msg string)
	Error(msg string)
}

// Router performs the post-session navigation (the logout screen in the
// reference UI).
type Router interface {
	Navigate(reason string, quitLinkEnabled bool)
}

// Termination reasons passed to the router.
const (
	ReasonFinished = "finished"
	ReasonAborted  = "aborted"
)
