package examination

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// fakeBackend records every call in order and lets tests script failures.
type fakeBackend struct {
	mu sync.Mutex

	sessions     map[string]*Session
	previews     map[int64]*Session
	remaining    int
	remainingErr error
	textErr      map[int64]error
	optionErr    error
	abortErr     error
	finishErr    error
	saveDelay    time.Duration
	nextVersion  int64

	calls          []string
	fetches        []string
	remainingCalls int
	inFlight       int
	maxInFlight    int
	external       bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		sessions:    map[string]*Session{},
		previews:    map[int64]*Session{},
		remaining:   3600,
		textErr:     map[int64]error{},
		nextVersion: 1,
	}
}

func (f *fakeBackend) record(ev string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, ev)
}

func (f *fakeBackend) events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeBackend) FetchSession(ctx context.Context, hash string) (*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches = append(f.fetches, hash)
	s, ok := f.sessions[hash]
	if !ok {
		return nil, fmt.Errorf("no session for hash %s", hash)
	}
	return s, nil
}

func (f *fakeBackend) FetchPreview(ctx context.Context, examID int64) (*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.previews[examID]
	if !ok {
		return nil, fmt.Errorf("no preview for exam %d", examID)
	}
	return s, nil
}

func (f *fakeBackend) RemainingTime(ctx context.Context, hash string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.remainingCalls++
	if f.remainingErr != nil {
		return 0, f.remainingErr
	}
	return f.remaining, nil
}

func (f *fakeBackend) timePolls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.remainingCalls
}

func (f *fakeBackend) saveTextual(kind string, questionID int64) (int64, error) {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	err := f.textErr[questionID]
	delay := f.saveDelay
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	f.mu.Lock()
	f.inFlight--
	if err != nil {
		f.mu.Unlock()
		return 0, err
	}
	f.nextVersion++
	version := f.nextVersion
	f.calls = append(f.calls, fmt.Sprintf("%s:%d", kind, questionID))
	f.mu.Unlock()
	return version, nil
}

func (f *fakeBackend) SaveEssay(ctx context.Context, hash string, questionID int64, answer string, version int64) (int64, error) {
	return f.saveTextual("essay", questionID)
}

func (f *fakeBackend) SaveCloze(ctx context.Context, hash string, questionID int64, blanks map[string]string, version int64) (int64, error) {
	return f.saveTextual("cloze", questionID)
}

func (f *fakeBackend) SaveOptions(ctx context.Context, hash string, questionID int64, optionIDs []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.optionErr != nil {
		return f.optionErr
	}
	f.calls = append(f.calls, fmt.Sprintf("options:%d", questionID))
	return nil
}

func (f *fakeBackend) Abort(ctx context.Context, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.abortErr != nil {
		return f.abortErr
	}
	f.calls = append(f.calls, "abort")
	return nil
}

func (f *fakeBackend) Finish(ctx context.Context, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "finish")
	return f.finishErr
}

func (f *fakeBackend) finishCount() int {
	n := 0
	for _, ev := range f.events() {
		if ev == "finish" {
			n++
		}
	}
	return n
}

func (f *fakeBackend) UseExternalPaths() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.external = true
}

// fakeNotifier collects notices.
type fakeNotifier struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (n *fakeNotifier) Info(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.infos = append(n.infos, msg)
}

func (n *fakeNotifier) Error(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, msg)
}

func (n *fakeNotifier) errorCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.errors)
}

// fakeRouter collects logout navigations.
type fakeRouter struct {
	mu      sync.Mutex
	reasons []string
}

func (r *fakeRouter) Navigate(reason string, quitLinkEnabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reasons = append(r.reasons, reason)
}

func (r *fakeRouter) navigations() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.reasons))
	copy(out, r.reasons)
	return out
}

func essayQ(id int64, answer string) *SectionQuestion {
	return &SectionQuestion{
		ID:          id,
		Question:    Question{ID: id, Type: TypeEssay},
		EssayAnswer: &EssayAnswer{Answer: answer, ObjectVersion: 1},
	}
}

func clozeQ(id int64, blanks map[string]string) *SectionQuestion {
	return &SectionQuestion{
		ID:          id,
		Question:    Question{ID: id, Type: TypeCloze},
		ClozeAnswer: &ClozeAnswer{Blanks: blanks, ObjectVersion: 1},
	}
}

func weightedQ(id int64, scores ...float64) *SectionQuestion {
	q := &SectionQuestion{
		ID:       id,
		Question: Question{ID: id, Type: TypeWeightedChoice},
	}
	for i, s := range scores {
		q.Options = append(q.Options, &Option{ID: id*10 + int64(i), Score: s})
	}
	return q
}

func multipleChoiceQ(id int64, optionCount int) *SectionQuestion {
	q := &SectionQuestion{
		ID:       id,
		Question: Question{ID: id, Type: TypeMultipleChoice},
	}
	for i := 0; i < optionCount; i++ {
		q.Options = append(q.Options, &Option{ID: id*10 + int64(i)})
	}
	return q
}

func claimChoiceQ(id int64) *SectionQuestion {
	return &SectionQuestion{
		ID:       id,
		Question: Question{ID: id, Type: TypeClaimChoice},
		Options: []*Option{
			{ID: id*10 + 0, Score: 2, ClaimKind: ClaimCorrect},
			{ID: id*10 + 1, Score: -2, ClaimKind: ClaimIncorrect},
			{ID: id*10 + 2, Score: 0, ClaimKind: ClaimSkip},
		},
	}
}

// testSession builds a two-section session with every question type.
func testSession() *Session {
	return &Session{
		ID:             1,
		Hash:           "abc123",
		Implementation: "AQUARIUM",
		Sections: []*Section{
			{
				ID:       10,
				Name:     "Section A",
				Sequence: 0,
				Questions: []*SectionQuestion{
					essayQ(101, "draft one"),
					clozeQ(102, map[string]string{"blank1": "x"}),
					weightedQ(103, 3, -1, 2),
				},
			},
			{
				ID:       20,
				Name:     "Section B",
				Sequence: 1,
				Questions: []*SectionQuestion{
					essayQ(201, "draft two"),
					multipleChoiceQ(202, 3),
					claimChoiceQ(203),
				},
			},
		},
	}
}
