package rules

import "errors"

var (
	// ErrInvalidSetup is returned when a game cannot start with its roster or script.
	ErrInvalidSetup = errors.New("invalid setup")
	// ErrIllegalTransition is returned when an operation is not legal in the current phase.
	ErrIllegalTransition = errors.New("illegal transition")
	// ErrAlreadyNominated is returned when the nominee was already nominated today.
	ErrAlreadyNominated = errors.New("already nominated")
	// ErrNominationClosed is returned when acting on a resolved or unknown nomination.
	ErrNominationClosed = errors.New("nomination closed")
	// ErrUnknownCharacter is returned when a character id is not in the catalog or script.
	ErrUnknownCharacter = errors.New("unknown character")

	ErrUnknownPlayer      = errors.New("unknown player")
	ErrNotEligible        = errors.New("player not eligible")
	ErrNominatorExhausted = errors.New("nominator already nominated today")
	ErrAlreadyVoted       = errors.New("already voted")
	ErrNoGhostVote        = errors.New("no ghost vote remaining")
	ErrInvalidTarget      = errors.New("invalid target")
	ErrGameOver           = errors.New("game is over")
)

// Code is a machine-readable error code a driver can switch on.
type Code string

const (
	CodeUnknown            Code = "UNKNOWN"
	CodeInvalidSetup       Code = "INVALID_SETUP"
	CodeIllegalTransition  Code = "ILLEGAL_TRANSITION"
	CodeAlreadyNominated   Code = "ALREADY_NOMINATED"
	CodeNominationClosed   Code = "NOMINATION_CLOSED"
	CodeUnknownCharacter   Code = "UNKNOWN_CHARACTER"
	CodeUnknownPlayer      Code = "UNKNOWN_PLAYER"
	CodeNotEligible        Code = "NOT_ELIGIBLE"
	CodeNominatorExhausted Code = "NOMINATOR_EXHAUSTED"
	CodeAlreadyVoted       Code = "ALREADY_VOTED"
	CodeNoGhostVote        Code = "NO_GHOST_VOTE"
	CodeInvalidTarget      Code = "INVALID_TARGET"
	CodeGameOver           Code = "GAME_OVER"
)

var codes = []struct {
	err  error
	code Code
}{
	{ErrInvalidSetup, CodeInvalidSetup},
	{ErrIllegalTransition, CodeIllegalTransition},
	{ErrAlreadyNominated, CodeAlreadyNominated},
	{ErrNominationClosed, CodeNominationClosed},
	{ErrUnknownCharacter, CodeUnknownCharacter},
	{ErrUnknownPlayer, CodeUnknownPlayer},
	{ErrNotEligible, CodeNotEligible},
	{ErrNominatorExhausted, CodeNominatorExhausted},
	{ErrAlreadyVoted, CodeAlreadyVoted},
	{ErrNoGhostVote, CodeNoGhostVote},
	{ErrInvalidTarget, CodeInvalidTarget},
	{ErrGameOver, CodeGameOver},
}

// CodeOf maps a (possibly wrapped) error to its code.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeUnknown
}
