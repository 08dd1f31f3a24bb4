package service

import (
	"context"
	"os"

	"github.com/pkg/errors"
	"github.com/yakoovad/hackathon-registration/internal/model"
	"github.com/yakoovad/hackathon-registration/internal/repository"
	"github.com/yakoovad/hackathon-registration/pkg/logger"
	"go.uber.org/zap"
)

// TeamService serves the read side: lookups, stats, the admin listing, and
// card re-downloads.
type TeamService struct {
	teams repository.TeamRepository
	cards CardGenerator

	assetsDir string
}

func NewTeamService() *TeamService {
	return &TeamService{}
}

func (s *TeamService) WithTeamRepo(r repository.TeamRepository) *TeamService {
	s.teams = r
	return s
}

func (s *TeamService) WithCards(c CardGenerator, assetsDir string) *TeamService {
	s.cards = c
	s.assetsDir = assetsDir
	return s
}

// GetByCode returns the team view for a team code, members included.
func (s *TeamService) GetByCode(ctx context.Context, teamCode string) (*model.Team, *Error) {
	team, err := s.teams.GetByCode(ctx, teamCode)
	return s.view(ctx, team, err)
}

// GetByTeamID returns the identical view resolved by team id.
func (s *TeamService) GetByTeamID(ctx context.Context, teamID string) (*model.Team, *Error) {
	team, err := s.teams.GetByTeamID(ctx, teamID)
	return s.view(ctx, team, err)
}

func (s *TeamService) view(ctx context.Context, team *repository.Team, err error) (*model.Team, *Error) {
	l := logger.FromContext(ctx)

	if errors.Is(err, repository.ErrNotFound) {
		return nil, NewError(ErrorCodeNotFound, "team not found")
	}
	if err != nil {
		l.Error("team lookup failed", zap.Error(err))
		return nil, NewError(ErrorCodeInternal, "failed to get team")
	}

	members, err := s.teams.GetMembers(ctx, team.TeamID)
	if err != nil {
		l.Error("member lookup failed", zap.String("team_id", team.TeamID), zap.Error(err))
		return nil, NewError(ErrorCodeInternal, "failed to get team members")
	}

	view := &model.Team{
		TeamID:           team.TeamID,
		TeamCode:         team.TeamCode,
		TeamName:         team.TeamName,
		LeaderName:       team.LeaderName,
		LeaderEmail:      team.LeaderEmail,
		LeaderPhone:      team.LeaderPhone,
		CollegeName:      team.CollegeName,
		Year:             team.Year,
		Domain:           team.Domain,
		AccessKey:        team.AccessKey,
		AttendanceStatus: team.AttendanceStatus,
		CheckInTime:      team.CheckInTime,
		CreatedAt:        team.CreatedAt,
	}
	for _, m := range members {
		view.Members = append(view.Members, memberView(m))
	}
	return view, nil
}

// Download authorises by team id + access key and returns the document
// path, regenerating it when the stored file is gone.
func (s *TeamService) Download(ctx context.Context, teamID, accessKey string) (string, *Error) {
	l := logger.FromContext(ctx)

	team, err := s.teams.GetByTeamIDAndKey(ctx, teamID, accessKey)
	if errors.Is(err, repository.ErrNotFound) {
		// Distinguish a bad key from a missing team.
		if _, idErr := s.teams.GetByTeamID(ctx, teamID); idErr == nil {
			l.Warn("download with wrong access key", zap.String("team_id", teamID))
			return "", NewError(ErrorCodeUnauthorized, "invalid access key")
		}
		return "", NewError(ErrorCodeNotFound, "team not found")
	}
	if err != nil {
		l.Error("download lookup failed", zap.Error(err))
		return "", NewError(ErrorCodeInternal, "failed to resolve team")
	}

	if team.IDCardsPath != nil {
		if _, statErr := os.Stat(*team.IDCardsPath); statErr == nil {
			return *team.IDCardsPath, nil
		}
	}

	// The document was never produced or has been cleaned up; rebuild it.
	view, verr := s.view(ctx, team, nil)
	if verr != nil {
		return "", verr
	}

	tmpPath, err := s.cards.Generate(view)
	if err != nil {
		l.Error("on-demand card generation failed", zap.String("team_id", teamID), zap.Error(err))
		return "", NewError(ErrorCodeInternal, "failed to generate ID cards")
	}

	path, err := promoteDocument(tmpPath, s.assetsDir, teamID)
	if err != nil {
		l.Error("on-demand document promotion failed", zap.String("team_id", teamID), zap.Error(err))
		return "", NewError(ErrorCodeInternal, "failed to store ID cards")
	}

	if err := s.teams.SetArtifacts(ctx, teamID, path, false); err != nil {
		l.Error("failed to record regenerated document", zap.Error(err))
	}

	l.Info("document regenerated on demand", zap.String("team_id", teamID))
	return path, nil
}

// Stats returns the aggregate counters for the dashboard.
func (s *TeamService) Stats(ctx context.Context) (*model.Stats, *Error) {
	stats, err := s.teams.Stats(ctx)
	if err != nil {
		logger.FromContext(ctx).Error("stats query failed", zap.Error(err))
		return nil, NewError(ErrorCodeInternal, "failed to compute stats")
	}
	return &model.Stats{
		TotalTeams:         stats.TotalTeams,
		TotalMembers:       stats.TotalMembers,
		CheckedInTeams:     stats.CheckedInTeams,
		DomainDistribution: stats.DomainDistribution,
	}, nil
}

// List serves the admin dashboard listing.
func (s *TeamService) List(ctx context.Context, params repository.ListParams) (*model.TeamList, *Error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 || params.PageSize > 200 {
		params.PageSize = 50
	}

	rows, total, err := s.teams.List(ctx, params)
	if err != nil {
		logger.FromContext(ctx).Error("team listing failed", zap.Error(err))
		return nil, NewError(ErrorCodeInternal, "failed to list teams")
	}

	out := &model.TeamList{
		Total:    total,
		Page:     params.Page,
		PageSize: params.PageSize,
		Items:    make([]*model.TeamSummary, 0, len(rows)),
	}
	for _, r := range rows {
		out.Items = append(out.Items, &model.TeamSummary{
			TeamID:       r.TeamID,
			TeamName:     r.TeamName,
			LeaderName:   r.LeaderName,
			LeaderEmail:  r.LeaderEmail,
			Domain:       r.Domain,
			TotalMembers: r.TotalMembers,
			CheckedIn:    r.AttendanceStatus,
		})
	}
	return out, nil
}
