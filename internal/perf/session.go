package perf

import (
	"errors"
	"fmt"
)

type State int

const (
	StateIdle State = iota
	StateArmed
	StateRunning
	StateStopped
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateArmed:
		return "armed"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session drives one counter group through
// Idle -> Armed -> Running -> Stopped -> Closed. Each transition happens
// once; a session is never rearmed. Close is valid from any state and
// releases the group exactly once.
//
// When the source cannot open a group, Arm falls back to a zero group and
// the session reports Available() == false. The caller still walks the same
// transitions.
type Session struct {
	src       Source
	events    []Event
	group     Group
	state     State
	available bool
	openErr   error
}

// NewSession prepares a session over the given events, or AllEvents when
// none are given. No OS resources are taken until Arm.
func NewSession(src Source, events ...Event) *Session {
	if src == nil {
		src = Unavailable{}
	}
	if len(events) == 0 {
		events = AllEvents
	}
	return &Session{src: src, events: events}
}

func (s *Session) State() State { return s.state }

// Available reports whether the armed group counts real hardware events.
func (s *Session) Available() bool { return s.available }

// partialGroup is implemented by groups that opened only some events.
type partialGroup interface {
	PartialErr() error
}

// OpenErr describes events that read zero because they could not be
// opened, or nil.
func (s *Session) OpenErr() error { return s.openErr }

func (s *Session) transition(from, to State) error {
	if s.state != from {
		return fmt.Errorf("%w: %s -> %s from %s", ErrInvalidTransition, from, to, s.state)
	}
	return nil
}

// Arm opens the group and resets every counter.
func (s *Session) Arm() error {
	if err := s.transition(StateIdle, StateArmed); err != nil {
		return err
	}
	g, err := s.src.Open(s.events)
	if err != nil {
		s.openErr = err
		g = zeroGroup{}
	} else if p, ok := g.(partialGroup); ok {
		s.openErr = p.PartialErr()
	}
	s.group = g
	s.available = err == nil && s.src.Available()
	s.state = StateArmed
	if err := s.group.Reset(); err != nil {
		return fmt.Errorf("reset counters: %w", err)
	}
	return nil
}

// Start enables counting.
func (s *Session) Start() error {
	if err := s.transition(StateArmed, StateRunning); err != nil {
		return err
	}
	s.state = StateRunning
	if err := s.group.Enable(); err != nil {
		return fmt.Errorf("enable counters: %w", err)
	}
	return nil
}

// Stop disables counting and reads every event. The session moves to
// Stopped even when a read fails; the failed events read as zero.
func (s *Session) Stop() (Counts, error) {
	var counts Counts
	if err := s.transition(StateRunning, StateStopped); err != nil {
		return counts, err
	}
	s.state = StateStopped

	var errs []error
	if err := s.group.Disable(); err != nil {
		errs = append(errs, fmt.Errorf("disable counters: %w", err))
	}
	for _, e := range s.events {
		v, err := s.group.Read(e)
		if err != nil {
			errs = append(errs, fmt.Errorf("read %s: %w", e, err))
			continue
		}
		counts[e] = v
	}
	return counts, errors.Join(errs...)
}

// Close releases the group. Calling it again is a no-op.
func (s *Session) Close() error {
	if s.state == StateClosed {
		return nil
	}
	s.state = StateClosed
	if s.group == nil {
		return nil
	}
	err := s.group.Close()
	s.group = nil
	return err
}
