package game

import (
	"fmt"
	"strconv"

	"github.com/clocktower/grimoire-server-go/internal/game/characters"
	"github.com/clocktower/grimoire-server-go/internal/game/rules"
	"github.com/clocktower/grimoire-server-go/internal/game/status"
	"github.com/clocktower/grimoire-server-go/internal/game/voting"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MetaGhost marks a vote paid for with a ghost token.
const MetaGhost = "ghost"

// Nominate opens a nomination and returns its handle. Nomination hooks fire
// immediately; a nomination that causes an execution ends the day.
func (c *Controller) Nominate(nominatorID, nomineeID string) (string, []rules.Event, error) {
	defer c.publish()
	c.mu.Lock()
	defer c.mu.Unlock()

	var handle string
	events, err := c.transact("nominate", func() error {
		if err := c.requirePhase(rules.PhaseNomination); err != nil {
			return err
		}
		nominator, err := c.player(nominatorID)
		if err != nil {
			return err
		}
		nominee, err := c.player(nomineeID)
		if err != nil {
			return err
		}
		if !nominator.Alive {
			return fmt.Errorf("%w: %s is dead and cannot nominate", rules.ErrNotEligible, nominator.ID)
		}
		if !nominee.Alive && !c.state.Statuses.HasFlag(nominee.ID, status.FlagPosthumousNomination) {
			return fmt.Errorf("%w: %s is dead and cannot be nominated", rules.ErrNotEligible, nominee.ID)
		}

		handle = c.nominationHandle()
		if _, err := c.state.Voting.Open(handle, nominator.ID, nominee.ID); err != nil {
			return err
		}
		c.emit(rules.NewEvent(rules.EventNomination, nominee.ID, nominator.ID).
			With(rules.MetaNomination, handle))

		day := c.state.Day()
		if _, err := c.resolver.ResolveTrigger(characters.TriggerContext{
			Trigger:    rules.TriggerNomination,
			Nomination: handle,
			Nominator:  nominator.ID,
			Nominee:    nominee.ID,
		}); err != nil {
			return err
		}
		if c.state.GameOver() {
			return c.finish()
		}
		executed, ok := c.history.Executions.ExecutedOn(day)
		if !ok {
			return nil
		}
		if _, err := c.resolver.ResolveTrigger(characters.TriggerContext{
			Trigger:  rules.TriggerExecution,
			Executed: executed,
		}); err != nil {
			return err
		}
		if c.state.GameOver() {
			return c.finish()
		}
		if err := c.state.Voting.Withdraw(handle); err != nil {
			return err
		}
		return c.dusk()
	})
	if err != nil {
		handle = ""
	}
	return handle, events, err
}

// nominationHandle derives a stable handle from the game, day and order so
// replays produce the same handles.
func (c *Controller) nominationHandle() string {
	name := fmt.Sprintf("%s/%d/%d", c.state.GameID, c.state.Day(), len(c.state.Voting.Nominations())+1)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

// Vote records one ballot on the nomination being voted on. Dead players
// voting in favour spend their ghost vote.
func (c *Controller) Vote(handle, voterID string, inFavor bool) ([]rules.Event, error) {
	defer c.publish()
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.transact("vote", func() error {
		switch phase := c.state.Phase(); phase {
		case rules.PhaseGameOver:
			return rules.ErrGameOver
		case rules.PhaseVote:
		case rules.PhaseDay, rules.PhaseNomination, rules.PhaseExecution:
			return fmt.Errorf("%w: no vote is open during %s", rules.ErrNominationClosed, phase)
		default:
			return fmt.Errorf("%w: cannot vote during %s", rules.ErrIllegalTransition, phase)
		}
		current, ok := c.state.Voting.Current()
		if !ok || current.Handle != handle {
			return fmt.Errorf("%w: %q is not being voted on", rules.ErrNominationClosed, handle)
		}
		voter, err := c.player(voterID)
		if err != nil {
			return err
		}

		ballot := voting.Ballot{Voter: voter.ID, InFavor: inFavor, Weight: 1}
		if voter.Traveller {
			ballot.Weight = c.state.Script.Rules.TravellerVoteWeight
		}
		if !voter.Alive && inFavor {
			if voter.GhostVotes <= 0 {
				return fmt.Errorf("%w: %s", rules.ErrNoGhostVote, voter.ID)
			}
			voter.GhostVotes--
			ballot.Ghost = true
			ballot.Weight = c.state.Script.Rules.GhostVoteWeight
		}
		if st, ok := c.state.Statuses.Find(voter.ID, status.KindVoteWeight); ok {
			ballot.Weight = st.Weight
		}

		resolutions, err := c.resolver.ResolveTrigger(characters.TriggerContext{
			Trigger:    rules.TriggerVoteCast,
			Nomination: handle,
			Nominator:  current.Nominator,
			Nominee:    current.Nominee,
			Voter:      voter.ID,
			InFavor:    inFavor,
		})
		if err != nil {
			return err
		}
		constrainedBy := ""
		for _, res := range resolutions {
			if res.Effect.Ballot && res.Effect.Target == voter.ID {
				ballot.Weight = res.Effect.Status.Weight
				constrainedBy = res.PlayerID
			}
		}

		if err := c.state.Voting.Cast(handle, ballot); err != nil {
			return err
		}
		evt := rules.NewEvent(rules.EventVoteCast, voter.ID, "").
			With(rules.MetaNomination, handle).
			With(rules.MetaInFavor, strconv.FormatBool(inFavor)).
			With(MetaGhost, strconv.FormatBool(ballot.Ghost)).
			WithAudit(rules.MetaWeight, strconv.Itoa(ballot.Weight))
		if constrainedBy != "" {
			evt = evt.WithAudit(rules.MetaSource, constrainedBy)
		}
		c.emit(evt)
		return nil
	})
}

// AdvancePhase moves the game forward one step and returns what happened.
func (c *Controller) AdvancePhase() ([]rules.Event, error) {
	defer c.publish()
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.transact("advance", c.advance)
}

func (c *Controller) advance() error {
	switch phase := c.state.Phase(); phase {
	case rules.PhaseSetup:
		return fmt.Errorf("%w: the game has not started", rules.ErrIllegalTransition)
	case rules.PhaseFirstNight, rules.PhaseNight:
		return c.dawn(phase == rules.PhaseFirstNight)
	case rules.PhaseDay:
		return c.transition(rules.PhaseNomination)
	case rules.PhaseNomination:
		return c.nextVote()
	case rules.PhaseVote:
		return c.closeVote()
	case rules.PhaseExecution:
		return c.execute()
	default:
		return rules.ErrGameOver
	}
}

// dawn resolves the night, expires night effects and starts the next day.
func (c *Controller) dawn(first bool) error {
	resolutions, err := c.resolver.ResolveNight(first)
	if err != nil {
		return err
	}
	c.state.NightActions = make(map[string]NightAction)
	c.logger.Debug("night resolved",
		zap.String("game_id", c.state.GameID),
		zap.Int("day", c.state.Day()),
		zap.Int("abilities", len(resolutions)),
	)
	if c.state.GameOver() {
		return c.finish()
	}

	for _, expired := range c.state.Statuses.ExpireAtDawn() {
		c.emit(expiredEvent(expired))
	}
	if err := c.transition(rules.PhaseDay); err != nil {
		return err
	}
	c.state.Voting.Reset(c.state.Day())
	c.watchers.ResetScope(rules.WatcherScopeDay)

	if _, err := c.resolver.ResolveTrigger(characters.TriggerContext{Trigger: rules.TriggerDayStart}); err != nil {
		return err
	}
	c.resolver.CheckWin()
	if c.state.GameOver() {
		return c.finish()
	}
	return nil
}

func expiredEvent(expired status.Expired) rules.Event {
	evt := rules.NewStorytellerEvent(rules.EventStatusExpired, expired.PlayerID, expired.Effect.Source).
		With(rules.MetaStatus, string(expired.Effect.Kind)).
		With(rules.MetaExpiry, string(expired.Effect.Expiry))
	if expired.Effect.Subject != "" {
		evt = evt.With(rules.MetaSubject, expired.Effect.Subject)
	}
	return evt
}

// nextVote opens the earliest pending nomination, or ends the day when none
// is waiting.
func (c *Controller) nextVote() error {
	next, ok := c.state.Voting.NextPending()
	if !ok {
		return c.endOfDay()
	}
	if err := c.state.Voting.Begin(next.Handle); err != nil {
		return err
	}
	return c.transition(rules.PhaseVote)
}

// closeVote tallies the current vote and decides where the day goes next.
func (c *Controller) closeVote() error {
	current, ok := c.state.Voting.Current()
	if !ok {
		return fmt.Errorf("%w: no vote in progress", rules.ErrIllegalTransition)
	}
	tally, err := c.state.Voting.Resolve(current.Handle, c.state.AliveCount())
	if err != nil {
		return err
	}
	c.emit(rules.NewEvent(rules.EventVoteTallied, current.Nominee, current.Nominator).
		With(rules.MetaNomination, current.Handle).
		With(rules.MetaVotes, strconv.Itoa(tally.For)).
		With(rules.MetaThreshold, strconv.Itoa(tally.Threshold)).
		With(rules.MetaAlive, strconv.Itoa(tally.Alive)).
		With(rules.MetaOutcome, string(tally.Outcome)))

	switch {
	case tally.Outcome == voting.OutcomeExecutes:
		c.state.PendingExecution = current.Nominee
		return c.transition(rules.PhaseExecution)
	case c.state.Script.Rules.ExecutionMode == characters.ExecutionBlock:
		return c.transition(rules.PhaseNomination)
	case c.nominationsRemain():
		return c.transition(rules.PhaseNomination)
	default:
		return c.dusk()
	}
}

// nominationsRemain reports whether another nomination could still happen
// today: one is pending, or a living player has not yet nominated.
func (c *Controller) nominationsRemain() bool {
	if _, ok := c.state.Voting.NextPending(); ok {
		return true
	}
	if !c.state.Script.Rules.OneNominationPerNominator {
		return true
	}
	nominated := make(map[string]bool)
	for _, n := range c.state.Voting.Nominations() {
		nominated[n.Nominator] = true
	}
	for _, p := range c.state.Players {
		if p.Alive && !nominated[p.ID] {
			return true
		}
	}
	return false
}

// endOfDay executes whoever is on the block, or goes straight to night.
func (c *Controller) endOfDay() error {
	if nominee, ok := c.state.Voting.Block(); ok {
		c.state.PendingExecution = nominee
		return c.transition(rules.PhaseExecution)
	}
	return c.dusk()
}

func (c *Controller) execute() error {
	nominee := c.state.PendingExecution
	c.state.PendingExecution = ""
	if nominee == "" {
		return c.dusk()
	}
	nominator := ""
	for _, n := range c.state.Voting.Nominations() {
		if n.Nominee == nominee {
			nominator = n.Nominator
		}
	}
	if _, err := c.resolver.Execute(nominee, nominator); err != nil {
		return err
	}
	if c.state.GameOver() {
		return c.finish()
	}
	return c.dusk()
}

// dusk ends the day: the mayor may win, then night falls, today's
// nominations are cleared and effects that last until dusk expire.
func (c *Controller) dusk() error {
	if c.mayorWins() {
		c.resolver.declare(characters.Good, "mayor")
		return c.finish()
	}
	if err := c.transition(rules.PhaseNight); err != nil {
		return err
	}
	c.state.Voting.Reset(c.state.Day())
	for _, expired := range c.state.Statuses.ExpireAtDusk() {
		c.emit(expiredEvent(expired))
	}
	c.state.NightActions = make(map[string]NightAction)
	return nil
}

// mayorWins is true when three players remain, nobody was executed today and
// a sober mayor is alive.
func (c *Controller) mayorWins() bool {
	if _, executed := c.history.Executions.ExecutedOn(c.state.Day()); executed {
		return false
	}
	if c.state.AliveResidents() != 3 {
		return false
	}
	for _, mayor := range c.state.LivingWith(characters.Mayor) {
		if !c.state.Statuses.IsImpaired(mayor.ID) {
			return true
		}
	}
	return false
}

// finish moves the game into its terminal phase.
func (c *Controller) finish() error {
	if c.state.Phase() == rules.PhaseGameOver {
		return nil
	}
	return c.transition(rules.PhaseGameOver)
}
