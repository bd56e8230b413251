package analysis

import (
	"fmt"
	"strings"

	"github.com/abhisek/wordiz/internal/quiz"
)

// RetryReport synthesizes the report for a finished retry round without
// calling the model. Retry rounds are ephemeral, so their summary is a
// fixed local message keyed on which words are still wrong.
func RetryReport(stillWrong []string) quiz.Analysis {
	if len(stillWrong) == 0 {
		return quiz.Analysis{
			Report: "Clean retry: every word you missed earlier is now correct. Nice recovery.",
		}
	}

	plural := "word still needs"
	if len(stillWrong) > 1 {
		plural = "words still need"
	}
	return quiz.Analysis{
		Report: fmt.Sprintf("%d %s work: %s. Run another retry round to clear them.",
			len(stillWrong), plural, strings.Join(stillWrong, ", ")),
		Recommendations: []string{
			fmt.Sprintf("Review %s before retrying again.", strings.Join(stillWrong, ", ")),
		},
	}
}
