package voting

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clocktower/grimoire-server-go/internal/game/characters"
	"github.com/clocktower/grimoire-server-go/internal/game/rules"
)

func immediate() *Engine {
	return NewEngine(1, Options{OneNominationPerNominator: true})
}

func openAndBegin(t *testing.T, e *Engine, handle, nominator, nominee string) {
	t.Helper()
	_, err := e.Open(handle, nominator, nominee)
	require.NoError(t, err)
	require.NoError(t, e.Begin(handle))
}

func castInFavor(t *testing.T, e *Engine, handle string, voters ...string) {
	t.Helper()
	for _, v := range voters {
		require.NoError(t, e.Cast(handle, Ballot{Voter: v, InFavor: true, Weight: 1}))
	}
}

func TestThresholdIsStrictMajorityOfLiving(t *testing.T) {
	assert.Equal(t, 4, Threshold(7))
	assert.Equal(t, 4, Threshold(6), "a tie at half fails")
	assert.Equal(t, 3, Threshold(5))
	assert.Equal(t, 2, Threshold(3))
}

func TestSevenAliveFourVotesExecutes(t *testing.T) {
	e := immediate()
	openAndBegin(t, e, "n1", "p1", "p2")
	castInFavor(t, e, "n1", "p1", "p3", "p4", "p5")

	tally, err := e.Resolve("n1", 7)
	require.NoError(t, err)
	assert.Equal(t, 4, tally.For)
	assert.True(t, tally.Meets)
	assert.Equal(t, OutcomeExecutes, tally.Outcome)
}

func TestSevenAliveThreeVotesFails(t *testing.T) {
	e := immediate()
	openAndBegin(t, e, "n1", "p1", "p2")
	castInFavor(t, e, "n1", "p1", "p3", "p4")
	require.NoError(t, e.Cast("n1", Ballot{Voter: "p5", InFavor: false, Weight: 1}))

	tally, err := e.Resolve("n1", 7)
	require.NoError(t, err)
	assert.Equal(t, 3, tally.For)
	assert.Equal(t, 1, tally.Against)
	assert.False(t, tally.Meets)
	assert.Equal(t, OutcomeFails, tally.Outcome)
}

func TestWeightedBallots(t *testing.T) {
	e := immediate()
	openAndBegin(t, e, "n1", "p1", "p2")
	require.NoError(t, e.Cast("n1", Ballot{Voter: "p1", InFavor: true, Weight: 3}))
	require.NoError(t, e.Cast("n1", Ballot{Voter: "p3", InFavor: true, Weight: -1}))
	require.NoError(t, e.Cast("n1", Ballot{Voter: "p4", InFavor: true, Weight: 0}))
	require.NoError(t, e.Cast("n1", Ballot{Voter: "p5", InFavor: true, Weight: 1, Ghost: true}))

	tally, err := e.Tally("n1", 5)
	require.NoError(t, err)
	assert.Equal(t, 3, tally.For)
	assert.True(t, tally.Meets)
}

func TestNomineeOncePerDay(t *testing.T) {
	e := immediate()
	_, err := e.Open("n1", "p1", "p3")
	require.NoError(t, err)

	_, err = e.Open("n2", "p2", "p3")
	assert.True(t, errors.Is(err, rules.ErrAlreadyNominated))
	assert.Len(t, e.Nominations(), 1)
	assert.Equal(t, 1, e.TimesNominated("p3"))
}

func TestNominatorOncePerDay(t *testing.T) {
	e := immediate()
	_, err := e.Open("n1", "p1", "p3")
	require.NoError(t, err)
	_, err = e.Open("n2", "p1", "p4")
	assert.True(t, errors.Is(err, rules.ErrNominatorExhausted))

	relaxed := NewEngine(1, Options{})
	_, err = relaxed.Open("n1", "p1", "p3")
	require.NoError(t, err)
	_, err = relaxed.Open("n2", "p1", "p4")
	assert.NoError(t, err)
}

func TestVotesAfterResolveFail(t *testing.T) {
	e := immediate()
	openAndBegin(t, e, "n1", "p1", "p2")
	_, err := e.Resolve("n1", 5)
	require.NoError(t, err)

	err = e.Cast("n1", Ballot{Voter: "p3", InFavor: true, Weight: 1})
	assert.True(t, errors.Is(err, rules.ErrNominationClosed))

	_, err = e.Resolve("n1", 5)
	assert.True(t, errors.Is(err, rules.ErrNominationClosed))

	err = e.Cast("nope", Ballot{Voter: "p3"})
	assert.True(t, errors.Is(err, rules.ErrNominationClosed))
}

func TestOneBallotPerVoter(t *testing.T) {
	e := immediate()
	openAndBegin(t, e, "n1", "p1", "p2")
	castInFavor(t, e, "n1", "p3")
	err := e.Cast("n1", Ballot{Voter: "p3", InFavor: false, Weight: 1})
	assert.True(t, errors.Is(err, rules.ErrAlreadyVoted))
	assert.True(t, e.VotedInFavor("n1", "p3"))
	assert.False(t, e.VotedInFavor("n1", "p4"))
}

func TestPendingNominationsVoteInOrder(t *testing.T) {
	e := immediate()
	_, err := e.Open("n1", "p1", "p2")
	require.NoError(t, err)
	_, err = e.Open("n2", "p3", "p4")
	require.NoError(t, err)

	next, ok := e.NextPending()
	require.True(t, ok)
	assert.Equal(t, "n1", next.Handle)

	require.NoError(t, e.Begin("n1"))
	assert.Error(t, e.Begin("n2"), "only one vote at a time")
	err = e.Cast("n2", Ballot{Voter: "p5", InFavor: true, Weight: 1})
	assert.True(t, errors.Is(err, rules.ErrNominationClosed), "pending nominations take no votes")

	_, err = e.Resolve("n1", 5)
	require.NoError(t, err)
	next, ok = e.NextPending()
	require.True(t, ok)
	assert.Equal(t, "n2", next.Handle)
}

func TestBlockMode(t *testing.T) {
	e := NewEngine(2, Options{Mode: characters.ExecutionBlock})

	openAndBegin(t, e, "n1", "p1", "p2")
	castInFavor(t, e, "n1", "p1", "p3", "p4")
	tally, err := e.Resolve("n1", 5)
	require.NoError(t, err)
	assert.Equal(t, OutcomeOnBlock, tally.Outcome)
	nominee, ok := e.Block()
	require.True(t, ok)
	assert.Equal(t, "p2", nominee)

	openAndBegin(t, e, "n2", "p3", "p5")
	castInFavor(t, e, "n2", "p1", "p3", "p4")
	tally, err = e.Resolve("n2", 5)
	require.NoError(t, err)
	assert.Equal(t, OutcomeTied, tally.Outcome)
	_, ok = e.Block()
	assert.False(t, ok, "a tie clears the block")

	openAndBegin(t, e, "n3", "p4", "p1")
	castInFavor(t, e, "n3", "p2", "p3", "p4", "p5")
	tally, err = e.Resolve("n3", 5)
	require.NoError(t, err)
	assert.Equal(t, OutcomeOnBlock, tally.Outcome)
	nominee, _ = e.Block()
	assert.Equal(t, "p1", nominee)
}

func TestWithdrawAndReset(t *testing.T) {
	e := immediate()
	_, err := e.Open("n1", "p1", "p2")
	require.NoError(t, err)
	require.NoError(t, e.Withdraw("n1"))
	_, ok := e.NextPending()
	assert.False(t, ok)
	assert.Error(t, e.Withdraw("n1"))

	e.Reset(2)
	assert.True(t, e.Empty())
	_, err = e.Open("n2", "p1", "p2")
	assert.NoError(t, err, "a new day allows the same nomination again")
}

func TestExportRestore(t *testing.T) {
	e := NewEngine(3, Options{Mode: characters.ExecutionBlock})
	openAndBegin(t, e, "n1", "p1", "p2")
	castInFavor(t, e, "n1", "p1", "p3", "p4")
	_, err := e.Resolve("n1", 5)
	require.NoError(t, err)
	openAndBegin(t, e, "n2", "p3", "p4")
	castInFavor(t, e, "n2", "p5")

	restored := RestoreEngine(e.Export(), Options{Mode: characters.ExecutionBlock})
	assert.Equal(t, e.Export(), restored.Export())

	current, ok := restored.Current()
	require.True(t, ok)
	assert.Equal(t, "n2", current.Handle)
	assert.NoError(t, restored.Cast("n2", Ballot{Voter: "p1", InFavor: true, Weight: 1}))
	assert.Len(t, e.Nominations()[1].Ballots, 1, "restored engine does not share ballots")
}
