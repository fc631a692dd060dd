package examination

import (
	"regexp"
	"strings"
)

var tagPattern = regexp.MustCompile(`<[^>]+>`)

// stripTags removes markup so that an essay consisting only of empty
// elements does not count as answered. Math markup is passed through
// untouched; the editor embeds the answer inside it.
func stripTags(text string) string {
	if text != "" && !strings.Contains(text, "math-tex") {
		return tagPattern.ReplaceAllString(text, "")
	}
	return text
}

// IsAnswered derives the answered predicate for the question's type.
func (q *SectionQuestion) IsAnswered() bool {
	switch q.Type() {
	case TypeEssay:
		return q.EssayAnswer != nil && strings.TrimSpace(stripTags(q.EssayAnswer.Answer)) != ""
	case TypeCloze:
		return q.ClozeAnswer != nil && len(q.ClozeAnswer.Blanks) > 0
	case TypeMultipleChoice, TypeClaimChoice:
		if q.SelectedOption != 0 {
			return true
		}
		return q.answeredOptionCount() > 0
	case TypeWeightedChoice:
		return q.answeredOptionCount() > 0
	default:
		return false
	}
}

func (q *SectionQuestion) answeredOptionCount() int {
	n := 0
	for _, o := range q.Options {
		if o.Answered {
			n++
		}
	}
	return n
}

// refreshAnswered recomputes the cached answered flag.
func (q *SectionQuestion) refreshAnswered() {
	q.Answered = q.IsAnswered()
}

// isTextual reports whether the question carries a savable textual
// answer. Empty answers are excluded unless allowEmpty.
func (q *SectionQuestion) isTextual(allowEmpty bool) bool {
	switch q.Type() {
	case TypeEssay:
		return q.EssayAnswer != nil && (allowEmpty || q.EssayAnswer.Answer != "")
	case TypeCloze:
		return q.ClozeAnswer != nil && (allowEmpty || len(q.ClozeAnswer.Blanks) > 0)
	default:
		return false
	}
}

// AnsweredCount returns how many questions of the section satisfy the
// answered predicate.
func (s *Section) AnsweredCount() int {
	n := 0
	for _, q := range s.Questions {
		if q.IsAnswered() {
			n++
		}
	}
	return n
}

// UnansweredCount is the complement of AnsweredCount.
func (s *Section) UnansweredCount() int {
	return len(s.Questions) - s.AnsweredCount()
}
