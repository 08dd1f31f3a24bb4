package service

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/yakoovad/hackathon-registration/internal/model"
	"github.com/yakoovad/hackathon-registration/internal/pubsub"
	"github.com/yakoovad/hackathon-registration/internal/repository"
	"github.com/yakoovad/hackathon-registration/pkg/logger"
	"go.uber.org/zap"
)

var teamIDPattern = regexp.MustCompile(`^[A-Z0-9]+-\d{3,}$`)

type CheckInService struct {
	teams repository.TeamRepository
	bus   *pubsub.Bus

	now func() time.Time
}

func NewCheckInService(bus *pubsub.Bus) *CheckInService {
	return &CheckInService{
		bus: bus,
		now: time.Now,
	}
}

func (s *CheckInService) WithTeamRepo(r repository.TeamRepository) *CheckInService {
	s.teams = r
	return s
}

func (s *CheckInService) WithClock(now func() time.Time) *CheckInService {
	s.now = now
	return s
}

// Scan handles a decoded QR payload. The scanned member's details are
// returned alongside the team so the volunteer can eyeball the match.
func (s *CheckInService) Scan(ctx context.Context, rawPayload string) (*model.CheckInResult, *Error) {
	l := logger.FromContext(ctx)

	var payload model.QRPayload
	if err := json.Unmarshal([]byte(rawPayload), &payload); err != nil {
		l.Warn("scan payload unparseable", zap.Error(err))
		return nil, NewError(ErrorCodeInvalidPayload, "scan payload is not valid JSON")
	}
	if payload.TeamCode == "" || payload.ParticipantID == "" {
		l.Warn("scan payload missing keys",
			zap.String("team_code", payload.TeamCode),
			zap.String("participant_id", payload.ParticipantID))
		return nil, NewError(ErrorCodeInvalidPayload, "scan payload must contain team_code and participant_id")
	}

	team, err := s.teams.GetByCode(ctx, payload.TeamCode)
	if errors.Is(err, repository.ErrNotFound) {
		l.Warn("scanned team not found", zap.String("team_code", payload.TeamCode))
		return nil, NewError(ErrorCodeNotFound, "no team with this code")
	}
	if err != nil {
		l.Error("team lookup failed", zap.Error(err))
		return nil, NewError(ErrorCodeInternal, "failed to resolve team")
	}

	members, err := s.teams.GetMembers(ctx, team.TeamID)
	if err != nil {
		l.Error("member lookup failed", zap.Error(err))
		return nil, NewError(ErrorCodeInternal, "failed to resolve team members")
	}

	var participant *model.Member
	for _, m := range members {
		if m.ParticipantID == payload.ParticipantID {
			participant = memberView(m)
			break
		}
	}
	if participant == nil {
		l.Warn("participant not in team",
			zap.String("team_code", payload.TeamCode),
			zap.String("participant_id", payload.ParticipantID))
		return nil, NewError(ErrorCodeNotFound, "participant does not belong to this team")
	}

	return s.markPresent(ctx, team, participant)
}

// Manual handles a typed team id, crediting the check-in to the leader.
func (s *CheckInService) Manual(ctx context.Context, teamID string) (*model.CheckInResult, *Error) {
	l := logger.FromContext(ctx)

	teamID = strings.ToUpper(strings.TrimSpace(teamID))
	if !teamIDPattern.MatchString(teamID) {
		l.Warn("manual check-in id malformed", zap.String("team_id", teamID))
		return nil, NewError(ErrorCodeValidation, "team id does not look like a valid identifier").
			WithDetail("field", "team_id")
	}

	team, err := s.teams.GetByTeamID(ctx, teamID)
	if errors.Is(err, repository.ErrNotFound) {
		l.Warn("manual check-in team not found", zap.String("team_id", teamID))
		return nil, NewError(ErrorCodeNotFound, "no team with this id")
	}
	if err != nil {
		l.Error("team lookup failed", zap.Error(err))
		return nil, NewError(ErrorCodeInternal, "failed to resolve team")
	}

	members, err := s.teams.GetMembers(ctx, team.TeamID)
	if err != nil {
		l.Error("member lookup failed", zap.Error(err))
		return nil, NewError(ErrorCodeInternal, "failed to resolve team members")
	}

	var leader *model.Member
	for _, m := range members {
		if m.IsTeamLeader {
			leader = memberView(m)
			break
		}
	}

	return s.markPresent(ctx, team, leader)
}

// markPresent runs the conditional update. Exactly one concurrent caller
// wins; everyone else gets the winner's check-in time back.
func (s *CheckInService) markPresent(ctx context.Context, team *repository.Team, participant *model.Member) (*model.CheckInResult, *Error) {
	l := logger.FromContext(ctx)

	when, err := s.teams.MarkCheckedIn(ctx, team.TeamCode, s.now())
	if errors.Is(err, repository.ErrAlreadyCheckedIn) {
		l.Info("team already checked in",
			zap.String("team_id", team.TeamID),
			zap.Time("check_in_time", when))
		return nil, NewError(ErrorCodeAlreadyCheckedIn, "team is already checked in").
			WithDetail("check_in_time", when.UTC().Format(time.RFC3339))
	}
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NewError(ErrorCodeNotFound, "no team with this code")
	}
	if err != nil {
		l.Error("check-in update failed", zap.String("team_id", team.TeamID), zap.Error(err))
		return nil, NewError(ErrorCodeInternal, "failed to record check-in")
	}

	l.Info("team checked in",
		zap.String("team_id", team.TeamID),
		zap.String("team_code", team.TeamCode))

	evt := pubsub.CheckInEvent{
		TeamID:      team.TeamID,
		TeamCode:    team.TeamCode,
		TeamName:    team.TeamName,
		CheckInTime: when,
	}
	if participant != nil {
		evt.ParticipantID = participant.ParticipantID
		evt.ParticipantName = participant.Name
	}
	s.bus.Publish(evt)

	return &model.CheckInResult{
		Status:      "checked_in",
		TeamID:      team.TeamID,
		TeamCode:    team.TeamCode,
		TeamName:    team.TeamName,
		Attendance:  true,
		CheckInTime: when,
		Participant: participant,
	}, nil
}

func memberView(m *repository.Member) *model.Member {
	return &model.Member{
		Index:         m.Index,
		Name:          m.Name,
		Email:         m.Email,
		Phone:         m.Phone,
		ParticipantID: m.ParticipantID,
		IsTeamLeader:  m.IsTeamLeader,
	}
}
