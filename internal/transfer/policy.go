package transfer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/frahmantamala/kitchen-ops/internal/staff"
)

// Directory resolves employees. Resolve must return staff.ErrNotFound for
// missing or inactive people.
type Directory interface {
	Resolve(ctx context.Context, id int64) (*staff.Person, error)
	ListActive(ctx context.Context) ([]*staff.Person, error)
}

type ProfileStore interface {
	Get(ctx context.Context, employeeID int64) (*PermissionProfile, error)
	Upsert(ctx context.Context, profile *PermissionProfile) error
	InsertMissing(ctx context.Context, profiles []PermissionProfile) (int64, error)
}

type DailyCounter interface {
	CountSentBetween(ctx context.Context, fromUserID int64, start, end time.Time) (int64, error)
}

// Evaluation is the outcome of an allowed proposal.
type Evaluation struct {
	InitialStatus Status
	Sender        *staff.Person
	Recipient     *staff.Person
	Profile       PermissionProfile
}

// PolicyEvaluator decides whether a proposal may be created. It never writes.
type PolicyEvaluator struct {
	directory Directory
	profiles  ProfileStore
	counter   DailyCounter
	location  *time.Location
}

// NewPolicyEvaluator builds an evaluator. loc is the calendar used for
// senders without a timezone of their own.
func NewPolicyEvaluator(directory Directory, profiles ProfileStore, counter DailyCounter, loc *time.Location) *PolicyEvaluator {
	if loc == nil {
		loc = time.UTC
	}
	return &PolicyEvaluator{
		directory: directory,
		profiles:  profiles,
		counter:   counter,
		location:  loc,
	}
}

func (p *PolicyEvaluator) Evaluate(ctx context.Context, from, to int64, at time.Time) (*Evaluation, error) {
	if from == to {
		return nil, ErrSameParty
	}

	sender, recipient, err := p.resolveParties(ctx, from, to)
	if err != nil {
		return nil, err
	}

	profile, err := p.ProfileFor(ctx, from)
	if err != nil {
		return nil, err
	}

	start, end := p.DayBounds(sender, at)
	count, err := p.counter.CountSentBetween(ctx, from, start, end)
	if err != nil {
		return nil, fmt.Errorf("count daily transfers: %w", err)
	}
	if count >= int64(profile.MaxTransfersPerDay) {
		return nil, NewDailyLimitExceeded(profile.MaxTransfersPerDay)
	}

	if !profile.AllowsDepartment(recipient.Department) {
		return nil, NewDepartmentNotAllowed(recipient.Department)
	}

	status := StatusPending
	if profile.RequiresApproval {
		status = StatusPendingApproval
	}

	return &Evaluation{
		InitialStatus: status,
		Sender:        sender,
		Recipient:     recipient,
		Profile:       profile,
	}, nil
}

// ProfileFor returns the stored profile or DefaultProfile when none exists.
func (p *PolicyEvaluator) ProfileFor(ctx context.Context, employeeID int64) (PermissionProfile, error) {
	stored, err := p.profiles.Get(ctx, employeeID)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			return DefaultProfile(employeeID), nil
		}
		return PermissionProfile{}, fmt.Errorf("load permission profile: %w", err)
	}
	return *stored, nil
}

// DayBounds returns the UTC bounds of the sender's local calendar day containing at.
func (p *PolicyEvaluator) DayBounds(sender *staff.Person, at time.Time) (time.Time, time.Time) {
	loc := p.location
	if sender != nil {
		if own := sender.Location(); own != nil {
			loc = own
		}
	}
	local := at.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1)
	return start.UTC(), end.UTC()
}

func (p *PolicyEvaluator) resolveParties(ctx context.Context, from, to int64) (*staff.Person, *staff.Person, error) {
	var sender, recipient *staff.Person

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		person, err := p.resolve(gctx, from)
		sender = person
		return err
	})
	g.Go(func() error {
		person, err := p.resolve(gctx, to)
		recipient = person
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return sender, recipient, nil
}

func (p *PolicyEvaluator) resolve(ctx context.Context, id int64) (*staff.Person, error) {
	person, err := p.directory.Resolve(ctx, id)
	if err != nil {
		if errors.Is(err, staff.ErrNotFound) {
			return nil, NewUnknownParty(id)
		}
		return nil, fmt.Errorf("resolve employee %d: %w", id, err)
	}
	if person == nil || !person.IsActive {
		return nil, NewUnknownParty(id)
	}
	return person, nil
}
