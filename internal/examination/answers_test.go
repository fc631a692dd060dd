package examination

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEssayAnsweredStripsMarkup(t *testing.T) {
	q := essayQ(1, "<p></p>")
	assert.False(t, q.IsAnswered())

	q.EssayAnswer.Answer = "<p>an answer</p>"
	assert.True(t, q.IsAnswered())

	// Math markup is not stripped; the content lives inside the tags.
	q.EssayAnswer.Answer = `<span class="math-tex">x</span>`
	assert.True(t, q.IsAnswered())

	q.EssayAnswer = nil
	assert.False(t, q.IsAnswered())
}

func TestClozeAnswered(t *testing.T) {
	q := clozeQ(2, nil)
	assert.False(t, q.IsAnswered())

	q.ClozeAnswer.Blanks = map[string]string{"blank1": "value"}
	assert.True(t, q.IsAnswered())
}

func TestWeightedChoiceAnswered(t *testing.T) {
	q := weightedQ(3, 1, 2, -1)
	assert.False(t, q.IsAnswered())

	q.Options[1].Answered = true
	assert.True(t, q.IsAnswered())
}

func TestSingleChoiceAnswered(t *testing.T) {
	q := multipleChoiceQ(4, 3)
	assert.False(t, q.IsAnswered())

	q.SelectedOption = q.Options[0].ID
	assert.True(t, q.IsAnswered())

	q.SelectedOption = 0
	q.Options[2].Answered = true
	assert.True(t, q.IsAnswered())
}

func TestSectionAnswerCounts(t *testing.T) {
	sec := testSession().Sections[0]
	// Fixture: essay and cloze carry answers, the weighted question does not.
	assert.Equal(t, 2, sec.AnsweredCount())
	assert.Equal(t, 1, sec.UnansweredCount())
}

func TestIsTextualFiltersEmpty(t *testing.T) {
	q := essayQ(5, "")
	assert.False(t, q.isTextual(false))
	assert.True(t, q.isTextual(true))

	q.EssayAnswer.Answer = "something"
	assert.True(t, q.isTextual(false))

	assert.False(t, weightedQ(6, 1).isTextual(true))
}
