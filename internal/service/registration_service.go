package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/yakoovad/hackathon-registration/internal/card"
	"github.com/yakoovad/hackathon-registration/internal/db"
	"github.com/yakoovad/hackathon-registration/internal/mailer"
	"github.com/yakoovad/hackathon-registration/internal/mint"
	"github.com/yakoovad/hackathon-registration/internal/model"
	"github.com/yakoovad/hackathon-registration/internal/otp"
	"github.com/yakoovad/hackathon-registration/internal/pending"
	"github.com/yakoovad/hackathon-registration/internal/repository"
	"github.com/yakoovad/hackathon-registration/pkg/logger"
	"go.uber.org/zap"
)

// Mailer is the delivery surface the orchestrators depend on.
type Mailer interface {
	Configured() bool
	SendOTP(ctx context.Context, to, code string) error
	SendConfirmation(ctx context.Context, team *model.Team, attachmentPath string) error
}

// MailDispatcher hands a send to the background retry loop and reports the
// first attempt's outcome.
type MailDispatcher interface {
	Dispatch(label string, send func(ctx context.Context) error) <-chan error
}

// CardGenerator produces the team's ID card document and returns its
// temporary path.
type CardGenerator interface {
	Generate(team *model.Team) (string, error)
}

// IdentityMinter issues the identifier hierarchy. Satisfied by *mint.Mint;
// tests inject fixed sequences.
type IdentityMinter interface {
	TeamID(seq int) string
	TeamCode() (string, error)
	ParticipantID(teamCode string, index int) string
	AccessKey() (string, error)
}

// otpSendBudget is how long the register response may block on the first
// delivery attempt before reporting provisional success.
const otpSendBudget = 2 * time.Second

// VerifiedTeam is the verify-otp success view. Warning is set when the team
// committed but artifact or mail delivery is still outstanding.
type VerifiedTeam struct {
	Team    *model.Team `json:"team"`
	Warning string      `json:"warning,omitempty"`
}

type RegistrationService struct {
	tx    db.Transactor
	teams repository.TeamRepository

	otps    *otp.Store
	pending *pending.Store
	mint    IdentityMinter

	mailer     Mailer
	dispatcher MailDispatcher
	cards      CardGenerator

	assetsDir   string
	devMode     bool
	maxTeamSize int

	now func() time.Time
}

func NewRegistrationService(tx db.Transactor, otps *otp.Store, pendingStore *pending.Store) *RegistrationService {
	return &RegistrationService{
		tx:          tx,
		otps:        otps,
		pending:     pendingStore,
		maxTeamSize: 50,
		now:         time.Now,
	}
}

func (s *RegistrationService) WithTeamRepo(r repository.TeamRepository) *RegistrationService {
	s.teams = r
	return s
}

func (s *RegistrationService) WithMint(m IdentityMinter) *RegistrationService {
	s.mint = m
	return s
}

func (s *RegistrationService) WithMailer(m Mailer, d MailDispatcher) *RegistrationService {
	s.mailer = m
	s.dispatcher = d
	return s
}

func (s *RegistrationService) WithCards(c CardGenerator, assetsDir string) *RegistrationService {
	s.cards = c
	s.assetsDir = assetsDir
	return s
}

func (s *RegistrationService) WithPolicy(devMode bool, maxTeamSize int) *RegistrationService {
	s.devMode = devMode
	s.maxTeamSize = maxTeamSize
	return s
}

func (s *RegistrationService) WithClock(now func() time.Time) *RegistrationService {
	s.now = now
	return s
}

// Register validates the payload, parks it in the pending store, and issues
// the OTP challenge. The durable team record is not touched here.
func (s *RegistrationService) Register(ctx context.Context, req *model.Registration) (*model.RegisterResult, *Error) {
	l := logger.FromContext(ctx)

	if err := s.normalize(req); err != nil {
		l.Warn("registration payload rejected", zap.String("reason", err.Message))
		return nil, err
	}
	email := req.LeaderEmail

	l.Info("starting registration",
		zap.String("team_name", req.TeamName),
		zap.String("leader_email", email),
		zap.Int("members", len(req.TeamMembers)))

	exists, err := s.teams.LeaderEmailExists(ctx, email)
	if err != nil {
		l.Error("duplicate-email check failed", zap.Error(err))
		return nil, NewError(ErrorCodeInternal, "failed to check existing registrations")
	}
	if exists {
		l.Warn("leader email already registered", zap.String("leader_email", email))
		return nil, NewError(ErrorCodeEmailRegistered, "this email has already registered a team")
	}

	// Replaces any earlier pending payload for the same email.
	s.pending.Put(email, req)

	code, retryAfter, err := s.otps.Issue(email)
	if errors.Is(err, otp.ErrRateLimited) {
		l.Warn("otp issue rate limited", zap.String("leader_email", email), zap.Duration("retry_after", retryAfter))
		return nil, NewError(ErrorCodeRateLimited, "too many verification codes requested, try again shortly").
			WithDetail("retry_after_sec", int(retryAfter.Seconds())+1)
	}
	if err != nil {
		l.Error("otp issue failed", zap.Error(err))
		return nil, NewError(ErrorCodeInternal, "failed to issue verification code")
	}

	result := &model.RegisterResult{
		Status:       "success",
		Message:      fmt.Sprintf("verification code sent to %s, valid for 5 minutes", email),
		ExpiresInSec: int(otp.TTL.Seconds()),
	}

	if !s.mailer.Configured() {
		if s.devMode {
			l.Warn("mailer unconfigured, echoing otp (dev mode)", zap.String("leader_email", email))
			result.Status = "warning"
			result.Message = "mail transport not configured; code included in this response for development only"
			result.OTP = code
			return result, nil
		}
		l.Error("mailer unconfigured, cannot deliver otp")
		return nil, NewError(ErrorCodeUnconfigured, "mail delivery is not configured")
	}

	// Wait briefly for the first attempt; slow delivery keeps retrying in
	// the background and the caller gets a provisional success.
	firstAttempt := s.dispatcher.Dispatch("otp:"+email, func(sendCtx context.Context) error {
		return s.mailer.SendOTP(sendCtx, email, code)
	})
	select {
	case err := <-firstAttempt:
		if err != nil && !errors.Is(err, mailer.ErrTransport) {
			l.Error("otp mail rejected", zap.String("leader_email", email), zap.Error(err))
			return nil, NewError(ErrorCodeInternal, "could not deliver the verification code to this address")
		}
		if err != nil {
			l.Warn("otp mail first attempt failed, retrying in background", zap.Error(err))
			result.Status = "warning"
			result.Message = "verification code delivery is delayed, it should arrive shortly"
		}
	case <-time.After(otpSendBudget):
		l.Info("otp mail slow, responding provisionally", zap.String("leader_email", email))
	}

	return result, nil
}

// VerifyOTP finishes the two-phase protocol: check the code, take the
// pending payload, commit the team, and run the artifact pipeline.
func (s *RegistrationService) VerifyOTP(ctx context.Context, email, code string) (*VerifiedTeam, *Error) {
	l := logger.FromContext(ctx)
	email = strings.ToLower(strings.TrimSpace(email))

	if err := s.otps.Verify(email, code); err != nil {
		switch {
		case errors.Is(err, otp.ErrRateLimited):
			l.Warn("otp verify rate limited", zap.String("leader_email", email))
			return nil, NewError(ErrorCodeRateLimited, "too many verification attempts, try again later").
				WithDetail("retry_after_sec", int(s.otps.RetryAfter(email).Seconds())+1)
		case errors.Is(err, otp.ErrExpired):
			l.Warn("otp expired or absent", zap.String("leader_email", email))
			return nil, NewError(ErrorCodeOTPExpired, "verification code expired, request a new one")
		default:
			l.Warn("otp mismatch", zap.String("leader_email", email))
			return nil, NewError(ErrorCodeOTPInvalid, "verification code does not match")
		}
	}

	payload, ok := s.pending.Take(email)
	if !ok {
		l.Warn("pending registration missing", zap.String("leader_email", email))
		return nil, NewError(ErrorCodeRegistrationExpired, "registration expired, please register again")
	}

	team, commitErr := s.commit(ctx, payload)
	if commitErr != nil {
		return nil, commitErr
	}

	l.Info("team committed",
		zap.String("team_id", team.TeamID),
		zap.String("team_code", team.TeamCode))

	view := &VerifiedTeam{Team: team}
	s.runArtifactPipeline(ctx, team, view)

	// Belt and braces: verify consumed the OTP and take removed the
	// payload, but clear both in case of re-issues in flight.
	s.otps.Clear(email)
	s.pending.Delete(email)

	return view, nil
}

// commit inserts the team and its members in one transaction, re-minting the
// team code (and re-reading the sequence) when a unique index rejects the
// attempt.
func (s *RegistrationService) commit(ctx context.Context, payload *model.Registration) (*model.Team, *Error) {
	l := logger.FromContext(ctx)

	for attempt := 1; attempt <= mint.CodeRetryBudget; attempt++ {
		var team *model.Team

		err := s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
			count, err := s.teams.CountTeams(txCtx)
			if err != nil {
				return err
			}

			teamCode, err := s.mint.TeamCode()
			if err != nil {
				return err
			}
			accessKey, err := s.mint.AccessKey()
			if err != nil {
				return err
			}

			built := s.buildTeam(payload, s.mint.TeamID(count+1), teamCode, accessKey)

			repoTeam, repoMembers := toRepo(built)
			if err := s.teams.Insert(txCtx, repoTeam, repoMembers); err != nil {
				return err
			}
			team = built
			return nil
		})
		if err == nil {
			return team, nil
		}

		switch {
		case errors.Is(err, repository.ErrDuplicateEmail):
			l.Warn("leader email already registered at commit", zap.String("leader_email", payload.LeaderEmail))
			return nil, NewError(ErrorCodeEmailRegistered, "this email has already registered a team")
		case errors.Is(err, repository.ErrDuplicateCode), errors.Is(err, repository.ErrDuplicateTeamID):
			l.Info("identifier collision, re-minting", zap.Int("attempt", attempt), zap.Error(err))
			continue
		default:
			l.Error("team commit failed", zap.Error(err))
			return nil, NewError(ErrorCodeInternal, "failed to commit registration")
		}
	}

	l.Error("identifier retry budget exhausted")
	return nil, NewError(ErrorCodeInternal, "could not assign a unique team code")
}

// runArtifactPipeline generates the document and mails it. Failures here
// never undo the commit: the team stays registered and the recoverable
// marker schedules redelivery.
func (s *RegistrationService) runArtifactPipeline(ctx context.Context, team *model.Team, view *VerifiedTeam) {
	l := logger.FromContext(ctx)

	tmpPath, err := s.cards.Generate(team)
	if err != nil {
		l.Error("card generation failed", zap.String("team_id", team.TeamID), zap.Error(err))
		s.markArtifactsPending(ctx, team.TeamID, "")
		view.Warning = "registered, but ID card generation failed; cards will be delivered later"
		return
	}

	sendErr := s.mailer.SendConfirmation(ctx, team, tmpPath)

	path, promoteErr := s.promote(tmpPath, team.TeamID)
	if promoteErr != nil {
		l.Error("document promotion failed", zap.String("team_id", team.TeamID), zap.Error(promoteErr))
	}

	if sendErr == nil && promoteErr == nil {
		if err := s.teams.SetArtifacts(ctx, team.TeamID, path, false); err != nil {
			l.Error("failed to record document path", zap.Error(err))
		}
		l.Info("confirmation delivered", zap.String("team_id", team.TeamID))
		return
	}

	s.markArtifactsPending(ctx, team.TeamID, path)
	view.Warning = "registered, but confirmation delivery is delayed; ID cards will be re-sent"

	if sendErr != nil {
		l.Error("confirmation mail failed", zap.String("team_id", team.TeamID), zap.Error(sendErr))
		if errors.Is(sendErr, mailer.ErrTransport) && path != "" {
			teamCopy := *team
			s.dispatcher.Dispatch("confirmation:"+team.TeamID, func(sendCtx context.Context) error {
				return s.mailer.SendConfirmation(sendCtx, &teamCopy, path)
			})
		}
	}
}

func (s *RegistrationService) promote(tmpPath, teamID string) (string, error) {
	return promoteDocument(tmpPath, s.assetsDir, teamID)
}

// promoteDocument moves a finished temp document to its durable path,
// removing the temp file when the move fails so nothing leaks.
func promoteDocument(tmpPath, assetsDir, teamID string) (string, error) {
	dst, err := card.Promote(tmpPath, assetsDir, teamID)
	if err != nil {
		_ = os.Remove(tmpPath)
		return "", err
	}
	return dst, nil
}

func (s *RegistrationService) markArtifactsPending(ctx context.Context, teamID, path string) {
	if err := s.teams.SetArtifacts(ctx, teamID, path, true); err != nil {
		logger.FromContext(ctx).Error("failed to set recoverable-failure marker",
			zap.String("team_id", teamID), zap.Error(err))
	}
}

func (s *RegistrationService) buildTeam(payload *model.Registration, teamID, teamCode, accessKey string) *model.Team {
	now := s.now()
	team := &model.Team{
		TeamID:      teamID,
		TeamCode:    teamCode,
		TeamName:    payload.TeamName,
		LeaderName:  payload.LeaderName,
		LeaderEmail: payload.LeaderEmail,
		LeaderPhone: payload.LeaderPhone,
		CollegeName: payload.CollegeName,
		Year:        payload.Year,
		Domain:      payload.Domain,
		AccessKey:   accessKey,
		CreatedAt:   &now,
	}
	for i, entry := range payload.TeamMembers {
		team.Members = append(team.Members, &model.Member{
			Index:         i,
			Name:          entry.Name,
			Email:         entry.Email,
			Phone:         entry.Phone,
			ParticipantID: s.mint.ParticipantID(teamCode, i),
			IsTeamLeader:  i == 0,
		})
	}
	return team
}

// normalize lowercases emails and enforces the cross-field rules the tag
// validator cannot express.
func (s *RegistrationService) normalize(req *model.Registration) *Error {
	req.LeaderEmail = strings.ToLower(strings.TrimSpace(req.LeaderEmail))

	if len(req.TeamMembers) == 0 {
		return NewError(ErrorCodeValidation, "a team needs at least one member").
			WithDetail("field", "team_members")
	}
	if len(req.TeamMembers) > s.maxTeamSize {
		return NewError(ErrorCodeValidation, fmt.Sprintf("a team may have at most %d members", s.maxTeamSize)).
			WithDetail("field", "team_members")
	}

	for i := range req.TeamMembers {
		m := &req.TeamMembers[i]
		m.Email = strings.ToLower(strings.TrimSpace(m.Email))
		if (i == 0) != m.IsTeamLeader {
			return NewError(ErrorCodeValidation, "is_team_leader must be true for the first member and false elsewhere").
				WithDetail("field", fmt.Sprintf("team_members[%d].is_team_leader", i))
		}
	}

	if req.TeamMembers[0].Email != req.LeaderEmail {
		return NewError(ErrorCodeValidation, "the first team member's email must match leader_email").
			WithDetail("field", "team_members[0].email")
	}

	return nil
}

func toRepo(team *model.Team) (*repository.Team, []*repository.Member) {
	repoTeam := &repository.Team{
		TeamID:      team.TeamID,
		TeamCode:    team.TeamCode,
		TeamName:    team.TeamName,
		LeaderName:  team.LeaderName,
		LeaderEmail: team.LeaderEmail,
		LeaderPhone: team.LeaderPhone,
		CollegeName: team.CollegeName,
		Year:        team.Year,
		Domain:      team.Domain,
		AccessKey:   team.AccessKey,
	}

	members := make([]*repository.Member, 0, len(team.Members))
	for _, m := range team.Members {
		members = append(members, &repository.Member{
			TeamID:        team.TeamID,
			Index:         m.Index,
			Name:          m.Name,
			Email:         m.Email,
			Phone:         m.Phone,
			ParticipantID: m.ParticipantID,
			IsTeamLeader:  m.IsTeamLeader,
		})
	}
	return repoTeam, members
}
