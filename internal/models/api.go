package models

import "time"

// ── Request Types ─────────────────────────────────────

type SelectStateRequest struct {
	State string `json:"state"`
}

type SubmitTestAnswerRequest struct {
	Index  int    `json:"index"`
	Answer string `json:"answer"`
}

type SubmitTrainingAnswerRequest struct {
	QuestionID string `json:"question_id"`
	Answer     string `json:"answer"`
}

// ── Response Types ────────────────────────────────────

type TestSessionResponse struct {
	SessionID      string           `json:"session_id"`
	TestNumber     int              `json:"test_number"`
	State          string           `json:"state"`
	Questions      []ServedQuestion `json:"questions"`
	Answers        []Answer         `json:"answers"`
	NextIndex      int              `json:"next_index"`
	Completed      bool             `json:"completed"`
	Resumed        bool             `json:"resumed"`
	StartedAt      time.Time        `json:"started_at"`
	TotalQuestions int              `json:"total_questions"`
}

type TestAnswerResponse struct {
	Recorded       bool   `json:"recorded"`
	Index          int    `json:"index"`
	Answer         string `json:"answer"`
	Correct        bool   `json:"correct"`
	CorrectAnswer  string `json:"correct_answer"`
	Explanation    string `json:"explanation"`
	AnsweredCount  int    `json:"answered_count"`
	RemainingCount int    `json:"remaining_count"`
}

type TestCompleteResponse struct {
	TestNumber   int              `json:"test_number"`
	Score        int              `json:"score"`
	Total        int              `json:"total"`
	Passed       bool             `json:"passed"`
	Stats        TestAttemptStats `json:"stats"`
	NewBestScore bool             `json:"new_best_score"`
}

type TrainingNextResponse struct {
	SetID     string          `json:"set_id"`
	Complete  bool            `json:"complete"`
	Question  *ServedQuestion `json:"question,omitempty"`
	Mastered  int             `json:"mastered"`
	Remaining int             `json:"remaining"`
	Total     int             `json:"total"`
}

type TrainingAnswerResponse struct {
	SetID         string `json:"set_id"`
	QuestionID    string `json:"question_id"`
	Correct       bool   `json:"correct"`
	CorrectAnswer string `json:"correct_answer"`
	Explanation   string `json:"explanation"`
	Mastered      int    `json:"mastered"`
	WrongQueue    int    `json:"wrong_queue"`
	Total         int    `json:"total"`
	SetComplete   bool   `json:"set_complete"`
}

type TrainingSetSummary struct {
	SetID      string `json:"set_id"`
	Index      int    `json:"index"`
	Total      int    `json:"total"`
	Mastered   int    `json:"mastered"`
	WrongQueue int    `json:"wrong_queue"`
	Complete   bool   `json:"complete"`
	Unlocked   bool   `json:"unlocked"`
}

type TestSlotSummary struct {
	TestNumber int               `json:"test_number"`
	Unlocked   bool              `json:"unlocked"`
	InProgress bool              `json:"in_progress"`
	Stats      *TestAttemptStats `json:"stats,omitempty"`
}

type StreakInfo struct {
	Current       int  `json:"current"`
	Longest       int  `json:"longest"`
	ActiveToday   bool `json:"active_today"`
	NextMilestone int  `json:"next_milestone,omitempty"`
}

type ProgressResponse struct {
	SelectedState string            `json:"selected_state"`
	Premium       bool              `json:"premium"`
	ReferralCount int               `json:"referral_count"`
	Tests         []TestSlotSummary `json:"tests"`
	ActiveDates   []string          `json:"active_dates"`
	Streak        StreakInfo        `json:"streak"`
	Persisted     bool              `json:"persisted"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
