package pipeline

import "errors"

// Failure kinds for a pipeline run. All abort the run without mutating
// session state, except ErrCorruptState which is recovered in-run (the
// stored memory is treated as empty) and ErrSynthesisFailed which still
// returns the generated reply text for a text-only fallback. None are
// process-fatal.
var (
	ErrTranscriptionFailed = errors.New("transcription failed")
	ErrGenerationFailed    = errors.New("reply generation failed")
	ErrSynthesisFailed     = errors.New("speech synthesis failed")
	ErrInvalidPersonaIndex = errors.New("invalid persona index")
	ErrSessionBusy         = errors.New("session busy")
)
