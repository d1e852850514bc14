package model

import "time"

// Submission is a student's uploaded answer sheet as served by the
// submission store.
type Submission struct {
	ID            string    `json:"id"`
	StudentID     string    `json:"student_id"`
	TestID        string    `json:"test_id"`
	AnswerFile    []byte    `json:"answer_file,omitempty"`
	ContentType   string    `json:"content_type,omitempty"`
	ExtractedText string    `json:"extracted_text,omitempty"`
	Status        string    `json:"status,omitempty"`
	SubmittedAt   time.Time `json:"submitted_at"`
}

// Test is a test paper with its questions and rubric as served by the
// test store.
type Test struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Subject      string     `json:"subject,omitempty"`
	Questions    []Question `json:"questions,omitempty"`
	QuestionText string     `json:"question_text,omitempty"`
	Rubric       Rubric     `json:"rubric"`
	PaperFile    []byte     `json:"paper_file,omitempty"`
	ContentType  string     `json:"content_type,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// StudentInfo is the student metadata attached to generated reports
type StudentInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// TestInfo is the test metadata attached to generated reports
type TestInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Subject string `json:"subject,omitempty"`
}
