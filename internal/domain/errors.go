package domain

import "errors"

var (
	// ErrInvalidConfiguration is returned when a competition cannot start with the given setup.
	ErrInvalidConfiguration = errors.New("invalid competition configuration")
	// ErrUnknownParticipant is returned when a student is not part of the current competition.
	ErrUnknownParticipant = errors.New("participant not found in competition")
	// ErrMalformedQuestionInput indicates pasted question JSON could not be used.
	ErrMalformedQuestionInput = errors.New("malformed question input")
	// ErrQuestionNotFound indicates a submitted question ID is invalid.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrSessionNotRunning is returned for commands that need a running competition.
	ErrSessionNotRunning = errors.New("competition is not running")
	// ErrIncompleteAnswers is returned when a student submits before answering every question.
	ErrIncompleteAnswers = errors.New("not all questions are answered")
	// ErrAlreadySubmitted is returned when a student edits answers after submitting.
	ErrAlreadySubmitted = errors.New("answers already submitted")
	// ErrClassroomNotFound indicates the classroom has no roster.
	ErrClassroomNotFound = errors.New("classroom not found")
	// ErrQuestionSetNotFound indicates the question set could not be loaded.
	ErrQuestionSetNotFound = errors.New("question set not found")
	// ErrForbidden is returned when a student issues a teacher command.
	ErrForbidden = errors.New("command not allowed for this role")
)
