// Package app wires the quiz components together and runs the
// interactive practice loop on a plain terminal.
package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/abhisek/wordiz/internal/analysis"
	"github.com/abhisek/wordiz/internal/cloze"
	"github.com/abhisek/wordiz/internal/engine"
	"github.com/abhisek/wordiz/internal/generation"
	"github.com/abhisek/wordiz/internal/progress"
	"github.com/abhisek/wordiz/internal/quiz"
)

// Options carries the app's dependencies.
type Options struct {
	Store    progress.Store
	Service  generation.Service
	Analyzer analysis.Analyzer

	// PollInterval is how often generation state is refreshed.
	PollInterval time.Duration

	In  io.Reader
	Out io.Writer
}

// App is the interactive session runner.
type App struct {
	store    progress.Store
	service  generation.Service
	analyzer analysis.Analyzer
	interval time.Duration

	in  *bufio.Reader
	out io.Writer
}

// New creates an App from options.
func New(opts Options) *App {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	return &App{
		store:    opts.Store,
		service:  opts.Service,
		analyzer: opts.Analyzer,
		interval: opts.PollInterval,
		in:       bufio.NewReader(opts.In),
		out:      opts.Out,
	}
}

// answerLog is the Sink for resumed sessions, seeded with the answers
// already on the snapshot.
type answerLog struct {
	mu   sync.Mutex
	recs []quiz.AnswerRecord
}

func (l *answerLog) Record(rec quiz.AnswerRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.recs = append(l.recs, rec)
}

func (l *answerLog) Answers() []quiz.AnswerRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]quiz.AnswerRecord(nil), l.recs...)
}

// fixedQueue is the Source for resumed sessions, whose questions are
// fully materialized on the snapshot.
type fixedQueue struct {
	questions []quiz.Question
}

func (f *fixedQueue) Queue() []quiz.Question { return f.questions }
func (f *fixedQueue) AllReady() bool         { return true }

// Play generates a fresh session for the word list and runs it.
func (a *App) Play(ctx context.Context, words []string, difficulty quiz.Difficulty) error {
	fmt.Fprintf(a.out, "Generating questions for %d word(s) at %s difficulty...\n", len(words), difficulty)

	sess, err := a.service.CreateSession(ctx, words, difficulty)
	if err != nil {
		return fmt.Errorf("create generation session: %w", err)
	}

	tracker := generation.NewTracker()
	tracker.Apply(sess)

	created, err := a.store.CreateInProgress(ctx, difficulty, words, tracker.QuestionSet(), nil)
	if err != nil {
		return fmt.Errorf("create progress snapshot: %w", err)
	}

	eng := engine.New(engine.Params{
		Source:     tracker,
		Sink:       tracker,
		Store:      a.store,
		Analyzer:   a.analyzer,
		SessionID:  created.ID,
		Words:      words,
		Difficulty: difficulty,
	})
	defer eng.Close()

	poller := generation.NewPoller(a.service, tracker, a.store, a.interval)
	poller.OnUpdate(func() {
		// Keep the snapshot's question set current while sections arrive,
		// then wake the engine if it was waiting on the queue.
		go a.syncQuestionSet(created.ID, tracker)
		if err := eng.OnTrackerUpdate(context.Background()); err != nil {
			fmt.Fprintf(a.out, "\n%v\n", err)
		}
	})
	poller.OnResume(func(snap *progress.SessionSnapshot) {
		// The generation session expired; the persisted snapshot already
		// has everything generated so far. Serve the rest from it.
		tracker.Apply(sessionFromSnapshot(tracker.SessionID(), snap))
		if err := eng.OnTrackerUpdate(context.Background()); err != nil {
			fmt.Fprintf(a.out, "\n%v\n", err)
		}
	})
	poller.Start(sess.ID, created.ID)
	defer poller.Stop()

	return a.runSession(ctx, eng, poller)
}

// Resume continues an in-progress snapshot from its saved cursor.
func (a *App) Resume(ctx context.Context, id string) error {
	snap, err := a.store.GetForResume(ctx, id)
	if err != nil {
		return fmt.Errorf("load session %s: %w", id, err)
	}
	if snap.Status != progress.StatusInProgress {
		return fmt.Errorf("session %s is %s, nothing to resume", id, snap.Status)
	}

	queue := snap.Questions.Flatten()
	sink := &answerLog{recs: append([]quiz.AnswerRecord(nil), snap.Answers...)}

	eng := engine.New(engine.Params{
		Source:     &fixedQueue{questions: queue},
		Sink:       sink,
		Store:      a.store,
		Analyzer:   a.analyzer,
		SessionID:  snap.ID,
		Words:      snap.Words,
		Difficulty: snap.Difficulty,
		StartIndex: snap.CurrentIndex,
	})
	defer eng.Close()

	fmt.Fprintf(a.out, "Resuming at question %d of %d.\n", snap.CurrentIndex+1, len(queue))
	return a.runSession(ctx, eng, nil)
}

// sessionFromSnapshot rebuilds a generation snapshot from persisted
// questions, every section ready. Keeping the original session id
// preserves the tracker's answer list.
func sessionFromSnapshot(sessionID string, snap *progress.SessionSnapshot) *quiz.GenerationSession {
	sections := make(map[quiz.QuestionType]quiz.SectionState, len(quiz.SectionOrder))
	for _, t := range quiz.SectionOrder {
		sections[t] = quiz.SectionState{
			Status:    quiz.SectionReady,
			Questions: snap.Questions.Sections[t],
			UpdatedAt: time.Now().UTC(),
		}
	}
	return &quiz.GenerationSession{
		ID: sessionID,
		Meta: quiz.SessionMeta{
			TotalQuestions: snap.Questions.Total(),
			Words:          snap.Words,
			Difficulty:     snap.Difficulty,
		},
		Sections: sections,
	}
}

func (a *App) syncQuestionSet(id string, tracker *generation.Tracker) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.store.UpdateQuestionSet(ctx, id, tracker.QuestionSet()); err != nil {
		fmt.Fprintf(a.out, "\nquestion set not saved: %v\n", err)
	}
}

// runSession drives one engine to completion, then offers retry rounds
// over the wrong answers.
func (a *App) runSession(ctx context.Context, eng *engine.Engine, poller *generation.Poller) error {
	res, err := a.runEngine(ctx, eng)
	if err != nil {
		return err
	}
	if poller != nil {
		poller.Stop()
	}

	a.printResult("Session result", res)

	queue := eng.Queue()

	ctrl := engine.NewRetryController()
	wrong := engine.WrongQuestions(queue, res.Answers)
	for len(wrong) > 0 {
		if !a.confirm(fmt.Sprintf("Retry the %d question(s) you missed?", len(wrong))) {
			break
		}
		re, err := ctrl.Enter(wrong, res)
		if err != nil {
			return err
		}
		retryRes, err := a.runEngine(ctx, re)
		if err != nil {
			return err
		}
		a.printResult("Retry round", retryRes)
		wrong = ctrl.Remaining()
	}

	if restored := ctrl.Exit(); restored != nil {
		a.printResult("Final result (retries don't change it)", restored)
	}
	return nil
}

// runEngine is the question loop for one engine, main run or retry.
func (a *App) runEngine(ctx context.Context, eng *engine.Engine) (*engine.Result, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if w := eng.Warning(); w != "" {
			fmt.Fprintf(a.out, "! %s\n", w)
		}

		switch eng.State() {
		case engine.StateDone:
			res, _ := eng.Result()
			return res, nil

		case engine.StatePendingAdvance:
			fmt.Fprintln(a.out, "Waiting for the next section to finish generating...")
			for eng.State() == engine.StatePendingAdvance {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-eng.Wake():
				}
			}

		case engine.StateFinalizing:
			fmt.Fprintf(a.out, "Could not finish the session: %v\n", eng.FinalizeError())
			if !a.confirm("Try finishing again?") {
				return nil, eng.FinalizeError()
			}
			if err := eng.RetryFinalize(ctx); err != nil {
				fmt.Fprintf(a.out, "%v\n", err)
			}

		case engine.StateAnswering:
			q, ok := eng.Current()
			if !ok {
				// Cursor points past the generated queue; block until a
				// tracker update grows it.
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-eng.Wake():
				}
				continue
			}
			if err := a.askQuestion(ctx, eng, q); err != nil {
				return nil, err
			}
		}
	}
}

func (a *App) askQuestion(ctx context.Context, eng *engine.Engine, q quiz.Question) error {
	a.renderQuestion(q)
	start := time.Now()

	for {
		fmt.Fprint(a.out, "> ")
		line, err := a.in.ReadString('\n')
		if err != nil {
			return fmt.Errorf("read answer: %w", err)
		}
		line = strings.TrimSpace(line)

		sub := engine.Submission{ElapsedMs: time.Since(start).Milliseconds()}
		if q.IsChoice() {
			sub.ChoiceID = strings.ToLower(line)
		} else {
			sub.Input = line
		}

		err = eng.SubmitAnswer(ctx, sub)
		var verr *engine.ValidationError
		switch {
		case err == nil:
			a.printVerdict(eng, q)
			return nil
		case errors.As(err, &verr):
			fmt.Fprintf(a.out, "%s\n", verr.Reason)
		default:
			// Finalization errors loop back through the state machine.
			return nil
		}
	}
}

func (a *App) printVerdict(eng *engine.Engine, q quiz.Question) {
	answers := eng.Answers()
	if len(answers) == 0 {
		return
	}
	last := answers[len(answers)-1]
	if last.Correct {
		fmt.Fprintln(a.out, "Correct!")
	} else if q.IsChoice() {
		fmt.Fprintf(a.out, "Wrong. The answer was %s.\n", choiceText(q, q.CorrectChoiceID))
	} else {
		fmt.Fprintf(a.out, "Wrong. The answer was %q.\n", q.CorrectAnswer)
	}
	if q.Translation != "" {
		fmt.Fprintf(a.out, "  %s\n", q.Translation)
	}
	fmt.Fprintln(a.out)
}

func (a *App) renderQuestion(q quiz.Question) {
	fmt.Fprintln(a.out)
	if q.IsChoice() {
		fmt.Fprintf(a.out, "%s\n", q.Prompt)
		for _, c := range q.Choices {
			fmt.Fprintf(a.out, "  %s) %s\n", c.ID, c.Text)
		}
		return
	}

	fmt.Fprintln(a.out, renderCloze(q))
	if q.Hint != "" {
		fmt.Fprintf(a.out, "Hint: %s\n", q.Hint)
	}
}

// renderCloze masks the target phrase in the sentence, falling back to
// the unmasked sentence when no variant matches.
func renderCloze(q quiz.Question) string {
	m := cloze.Build(q.Sentence, q.CorrectAnswer)
	if m == nil {
		return q.Sentence
	}
	var b strings.Builder
	for _, seg := range m.Segments {
		if seg.Blank {
			b.WriteString(strings.Repeat("_", seg.Width))
		} else {
			b.WriteString(seg.Text)
		}
	}
	return b.String()
}

func choiceText(q quiz.Question, id string) string {
	for _, c := range q.Choices {
		if c.ID == id {
			return fmt.Sprintf("%s) %s", c.ID, c.Text)
		}
	}
	return id
}

func (a *App) printResult(title string, res *engine.Result) {
	fmt.Fprintf(a.out, "\n== %s ==\n", title)
	fmt.Fprintf(a.out, "Score: %d/100\n", res.Score)
	if res.Analysis.Report != "" {
		fmt.Fprintf(a.out, "%s\n", res.Analysis.Report)
	}
	for _, r := range res.Analysis.Recommendations {
		fmt.Fprintf(a.out, "- %s\n", r)
	}
	fmt.Fprintln(a.out)
}

func (a *App) confirm(prompt string) bool {
	fmt.Fprintf(a.out, "%s [y/N] ", prompt)
	line, err := a.in.ReadString('\n')
	if err != nil {
		return false
	}
	line = strings.ToLower(strings.TrimSpace(line))
	return line == "y" || line == "yes"
}
