package generation

import (
	"fmt"
	"strings"

	"github.com/abhisek/wordiz/internal/quiz"
)

const choiceZhToEnSystemPrompt = `You are an English vocabulary coach creating a quiz for Chinese-speaking learners.

Rules:
- Generate exactly one multiple-choice question per word in the list, in the same order.
- The prompt is a Chinese definition or gloss of the word. Do not include the English word in the prompt.
- Provide exactly 4 English options. Exactly one is the target word; the other 3 are real English words of similar register that a learner could plausibly confuse.
- Keep prompts short and unambiguous. One sense per word, matched to the given difficulty.
- Do not reuse an option across questions in this batch.`

const choiceEnToZhSystemPrompt = `You are an English vocabulary coach creating a quiz for Chinese-speaking learners.

Rules:
- Generate exactly one multiple-choice question per word in the list, in the same order.
- The prompt is the English word itself, optionally with its part of speech in parentheses.
- Provide exactly 4 Chinese options. Exactly one is a correct translation of the word; the other 3 are translations of different words that a learner could plausibly confuse.
- Keep options concise (a short phrase at most). One sense per word, matched to the given difficulty.
- Do not reuse an option across questions in this batch.`

const clozeSystemPrompt = `You are an English vocabulary coach creating fill-in-the-blank exercises for Chinese-speaking learners.

Rules:
- Generate exactly one sentence per word in the list, in the same order.
- Each sentence must use the word (or phrase) naturally. Inflected forms are fine: the sentence may contain "running" when the target is "run".
- Write the sentence in full, unmasked. The blank is applied later.
- correct_answer is the target word or phrase in dictionary form, exactly as given in the list.
- Provide a faithful Chinese translation of each full sentence.
- Sentence length and vocabulary outside the target word must match the given difficulty.`

func systemPromptFor(t quiz.QuestionType) string {
	switch t {
	case quiz.TypeChoiceZhToEn:
		return choiceZhToEnSystemPrompt
	case quiz.TypeChoiceEnToZh:
		return choiceEnToZhSystemPrompt
	default:
		return clozeSystemPrompt
	}
}

// buildSectionMessage constructs the user message for one section batch.
func buildSectionMessage(words []string, difficulty quiz.Difficulty) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Difficulty: %s\n", difficulty)
	fmt.Fprintf(&b, "Words (%d):\n", len(words))
	for i, w := range words {
		fmt.Fprintf(&b, "%d. %s\n", i+1, w)
	}
	return strings.TrimRight(b.String(), "\n")
}
