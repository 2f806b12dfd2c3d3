package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/language"

	"github.com/iliyamo/studio-pos/internal/model"
	"github.com/iliyamo/studio-pos/internal/repository"
)

// maxDecrementAttempts bounds how often a rejected entry decrement is
// re-derived from a fresh counter before giving up.
const maxDecrementAttempts = 3

// ErrMissingOrganization is returned when a check-in arrives without a
// resolved tenant.
var ErrMissingOrganization = errors.New("organization id is required")

// ErrCheckinContention is returned when the entry counter kept changing
// under concurrent check-ins.
var ErrCheckinContention = errors.New("entry counter changed concurrently, try again")

// CheckinInput is one scan or typed lookup at the desk.
type CheckinInput struct {
	OrganizationID string
	Identifier     string
	Location       string
	ProcessedBy    string       // staff user id, empty when unknown
	Lang           language.Tag // message language, German when unset
}

// CheckinResult is what the desk shows.  Business refusals are results with
// Success false, never errors.
type CheckinResult struct {
	Success          bool           `json:"success"`
	Message          string         `json:"message"`
	User             *model.Profile `json:"user,omitempty"`
	TariffName       string         `json:"tariffName,omitempty"`
	RemainingEntries *int           `json:"remainingEntries,omitempty"`
	ExpiresAt        *time.Time     `json:"expiresAt,omitempty"`
}

// CheckinService validates a member's subscription at the door, consumes
// an entry from entry-based subscriptions and writes exactly one audit row
// for every attempt that resolved a member.
type CheckinService struct {
	store    CheckinStore
	logger   *log.Logger
	location *time.Location
	now      func() time.Time
}

// NewCheckinService returns a CheckinService.  loc is used to render
// expiry dates; nil means UTC.
func NewCheckinService(logger *log.Logger, store CheckinStore, loc *time.Location) *CheckinService {
	if logger == nil {
		logger = log.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &CheckinService{store: store, logger: logger, location: loc, now: time.Now}
}

// CheckIn runs one check-in attempt.  Errors are only returned for store
// failures and for a missing organization.
func (s *CheckinService) CheckIn(ctx context.Context, in CheckinInput) (CheckinResult, error) {
	if in.OrganizationID == "" {
		return CheckinResult{}, ErrMissingOrganization
	}
	p := printer(in.Lang)
	identifier := strings.TrimSpace(in.Identifier)
	if identifier == "" {
		return CheckinResult{Message: p.Sprintf(msgMemberNotFound)}, nil
	}

	profile, err := s.store.FindProfile(ctx, in.OrganizationID, identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return CheckinResult{Message: p.Sprintf(msgMemberNotFound)}, nil
		}
		return CheckinResult{}, fmt.Errorf("find member: %w", err)
	}

	sub, err := s.store.FindActiveSubscription(ctx, in.OrganizationID, profile.ID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return CheckinResult{}, fmt.Errorf("find subscription: %w", err)
		}
		if err := s.audit(ctx, in, profile.ID, model.CheckinInvalid); err != nil {
			return CheckinResult{}, err
		}
		return CheckinResult{Message: p.Sprintf(msgNoSubscription), User: profile}, nil
	}

	name := displayName(profile)
	res := CheckinResult{User: profile, TariffName: sub.TariffName}

	if sub.RemainingEntries != nil {
		left, ok, err := s.consumeEntry(ctx, in, profile.ID, sub)
		if err != nil {
			return CheckinResult{}, err
		}
		if !ok {
			zero := 0
			res.RemainingEntries = &zero
			res.Message = p.Sprintf(msgCardEmpty)
			return res, nil
		}
		res.Success = true
		res.RemainingEntries = &left
		res.Message = p.Sprintf(msgWelcomeRemaining, name, left)
		return res, nil
	}

	if sub.EndDate != nil {
		end := sub.EndDate.In(s.location)
		res.ExpiresAt = &end
		if s.now().After(*sub.EndDate) {
			if err := s.audit(ctx, in, profile.ID, model.CheckinInvalid); err != nil {
				return CheckinResult{}, err
			}
			res.Message = p.Sprintf(msgExpired, end.Format(expiryDateLayout))
			return res, nil
		}
	}

	if err := s.audit(ctx, in, profile.ID, model.CheckinValid); err != nil {
		return CheckinResult{}, err
	}
	res.Success = true
	res.Message = p.Sprintf(msgWelcome, name)
	return res, nil
}

// consumeEntry takes one entry with a conditional decrement.  When the
// counter changed since it was read the decrement is rejected and the
// outcome is derived again from a fresh read.  ok is false when the card is
// empty; an invalid audit row has then been written.  Giving up under
// contention also writes an invalid row before ErrCheckinContention is
// returned.
func (s *CheckinService) consumeEntry(ctx context.Context, in CheckinInput, userID string, sub *model.Subscription) (int, bool, error) {
	expected := *sub.RemainingEntries
	for attempt := 0; attempt < maxDecrementAttempts; attempt++ {
		if expected <= 0 {
			if err := s.audit(ctx, in, userID, model.CheckinInvalid); err != nil {
				return 0, false, err
			}
			return 0, false, nil
		}
		left, err := s.store.ConsumeEntry(ctx, in.OrganizationID, sub.ID, expected, s.newCheckin(in, userID, model.CheckinValid))
		if err == nil {
			return left, true, nil
		}
		if !errors.Is(err, repository.ErrConflict) {
			return 0, false, fmt.Errorf("consume entry: %w", err)
		}
		current, err := s.store.GetRemainingEntries(ctx, in.OrganizationID, sub.ID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return 0, false, fmt.Errorf("re-read entries: %w", err)
		}
		if current == nil {
			// deleted or converted to a non-entry subscription meanwhile
			return 0, false, s.giveUp(ctx, in, userID, fmt.Errorf("subscription %s: %w", sub.ID, ErrCheckinContention))
		}
		s.logger.Printf("checkin: entry counter of subscription %s moved from %d to %d, retrying", sub.ID, expected, *current)
		expected = *current
	}
	return 0, false, s.giveUp(ctx, in, userID, ErrCheckinContention)
}

// giveUp records the abandoned attempt as invalid and returns cause.
func (s *CheckinService) giveUp(ctx context.Context, in CheckinInput, userID string, cause error) error {
	if err := s.audit(ctx, in, userID, model.CheckinInvalid); err != nil {
		return err
	}
	return cause
}

// Recent returns the newest audit rows of the organization.
func (s *CheckinService) Recent(ctx context.Context, orgID string, limit int) ([]model.Checkin, error) {
	if orgID == "" {
		return nil, ErrMissingOrganization
	}
	return s.store.ListCheckins(ctx, orgID, limit)
}

func (s *CheckinService) audit(ctx context.Context, in CheckinInput, userID, status string) error {
	if err := s.store.InsertCheckin(ctx, s.newCheckin(in, userID, status)); err != nil {
		return fmt.Errorf("write checkin: %w", err)
	}
	return nil
}

func (s *CheckinService) newCheckin(in CheckinInput, userID, status string) *model.Checkin {
	rec := &model.Checkin{
		ID:             uuid.NewString(),
		UserID:         userID,
		OrganizationID: in.OrganizationID,
		Location:       in.Location,
		CheckedInAt:    s.now().UTC(),
		Status:         status,
	}
	if in.ProcessedBy != "" {
		pb := in.ProcessedBy
		rec.ProcessedBy = &pb
	}
	return rec
}

func displayName(p *model.Profile) string {
	name := strings.TrimSpace(p.FirstName + " " + p.LastName)
	if name == "" {
		return p.MemberNumber
	}
	return name
}
