package grading

import (
	"regexp"
	"strings"

	"github.com/zacharias1219/gradeflow/internal/model"
)

// A line starting with an integer followed by '.' or ')' opens a new
// question or answer block; following lines append to the current block.
var (
	numberedLinePattern = regexp.MustCompile(`^\d+[.)]`)
	answerLinePattern   = regexp.MustCompile(`^Answer\s*\d+`)
)

const defaultQuestionMarks = 10

// ParseQuestions extracts an ordered question list from raw test text.
// Question numbers are assigned sequentially in order of appearance.
func ParseQuestions(text string) []model.Question {
	var questions []model.Question
	var current *model.Question

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if numberedLinePattern.MatchString(line) {
			if current != nil {
				questions = append(questions, *current)
			}
			current = &model.Question{
				Number: len(questions) + 1,
				Text:   line,
				Marks:  defaultQuestionMarks,
			}
		} else if current != nil {
			current.Text += " " + line
		}
	}
	if current != nil {
		questions = append(questions, *current)
	}
	return questions
}

// ParseAnswers extracts an ordered answer list from raw answer-sheet text.
// Both "Answer 1" and "1." / "1)" line prefixes open a new answer block.
func ParseAnswers(text string) []model.Answer {
	var answers []model.Answer
	var current *model.Answer

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if answerLinePattern.MatchString(line) || numberedLinePattern.MatchString(line) {
			if current != nil {
				answers = append(answers, *current)
			}
			current = &model.Answer{
				Number: len(answers) + 1,
				Text:   line,
			}
		} else if current != nil {
			current.Text += " " + line
		}
	}
	if current != nil {
		answers = append(answers, *current)
	}
	return answers
}
