package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/yakoovad/hackathon-registration/internal/repository"
)

func TestTeamService_GetByCode(t *testing.T) {
	repo := new(MockTeamRepository)
	svc := NewTeamService().WithTeamRepo(repo)

	repo.On("GetByCode", mock.Anything, "TEAM-AB12CD").Return(committedTeam(), nil)
	repo.On("GetMembers", mock.Anything, "HACK2026-001").Return(committedMembers(), nil)

	team, svcErr := svc.GetByCode(context.Background(), "TEAM-AB12CD")
	require.Nil(t, svcErr)

	assert.Equal(t, "HACK2026-001", team.TeamID)
	require.Len(t, team.Members, 2)
	assert.Equal(t, "TEAM-AB12CD-000", team.Members[0].ParticipantID)
}

func TestTeamService_LookupsReturnSameView(t *testing.T) {
	repo := new(MockTeamRepository)
	svc := NewTeamService().WithTeamRepo(repo)

	repo.On("GetByCode", mock.Anything, "TEAM-AB12CD").Return(committedTeam(), nil)
	repo.On("GetByTeamID", mock.Anything, "HACK2026-001").Return(committedTeam(), nil)
	repo.On("GetMembers", mock.Anything, "HACK2026-001").Return(committedMembers(), nil)

	byCode, svcErr := svc.GetByCode(context.Background(), "TEAM-AB12CD")
	require.Nil(t, svcErr)
	byID, svcErr := svc.GetByTeamID(context.Background(), "HACK2026-001")
	require.Nil(t, svcErr)

	assert.Equal(t, byCode, byID)
}

func TestTeamService_GetByCodeNotFound(t *testing.T) {
	repo := new(MockTeamRepository)
	svc := NewTeamService().WithTeamRepo(repo)

	repo.On("GetByCode", mock.Anything, "TEAM-ZZZZZZ").Return(nil, repository.ErrNotFound)

	_, svcErr := svc.GetByCode(context.Background(), "TEAM-ZZZZZZ")
	require.NotNil(t, svcErr)
	assert.Equal(t, ErrorCodeNotFound, svcErr.Code)
}

func TestTeamService_DownloadWrongKey(t *testing.T) {
	repo := new(MockTeamRepository)
	svc := NewTeamService().WithTeamRepo(repo)

	repo.On("GetByTeamIDAndKey", mock.Anything, "HACK2026-001", "badkey").Return(nil, repository.ErrNotFound)
	repo.On("GetByTeamID", mock.Anything, "HACK2026-001").Return(committedTeam(), nil)

	_, svcErr := svc.Download(context.Background(), "HACK2026-001", "badkey")
	require.NotNil(t, svcErr)
	assert.Equal(t, ErrorCodeUnauthorized, svcErr.Code)
}

func TestTeamService_DownloadUnknownTeam(t *testing.T) {
	repo := new(MockTeamRepository)
	svc := NewTeamService().WithTeamRepo(repo)

	repo.On("GetByTeamIDAndKey", mock.Anything, "HACK2026-404", "key").Return(nil, repository.ErrNotFound)
	repo.On("GetByTeamID", mock.Anything, "HACK2026-404").Return(nil, repository.ErrNotFound)

	_, svcErr := svc.Download(context.Background(), "HACK2026-404", "key")
	require.NotNil(t, svcErr)
	assert.Equal(t, ErrorCodeNotFound, svcErr.Code)
}

func TestTeamService_DownloadExistingDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "HACK2026-001_id_cards.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o644))

	team := committedTeam()
	team.IDCardsPath = &path

	repo := new(MockTeamRepository)
	svc := NewTeamService().WithTeamRepo(repo)

	repo.On("GetByTeamIDAndKey", mock.Anything, "HACK2026-001", "key").Return(team, nil)

	got, svcErr := svc.Download(context.Background(), "HACK2026-001", "key")
	require.Nil(t, svcErr)
	assert.Equal(t, path, got)
}

func TestTeamService_DownloadRegenerates(t *testing.T) {
	dir := t.TempDir()

	repo := new(MockTeamRepository)
	cards := new(MockCardGenerator)
	svc := NewTeamService().WithTeamRepo(repo).WithCards(cards, dir)

	tmp := filepath.Join(dir, "tmp-doc.pdf")
	require.NoError(t, os.WriteFile(tmp, []byte("%PDF-1.4"), 0o644))

	repo.On("GetByTeamIDAndKey", mock.Anything, "HACK2026-001", "key").Return(committedTeam(), nil)
	repo.On("GetMembers", mock.Anything, "HACK2026-001").Return(committedMembers(), nil)
	cards.On("Generate", mock.Anything).Return(tmp, nil)
	repo.On("SetArtifacts", mock.Anything, "HACK2026-001", mock.Anything, false).Return(nil)

	got, svcErr := svc.Download(context.Background(), "HACK2026-001", "key")
	require.Nil(t, svcErr)
	assert.Equal(t, filepath.Join(dir, "HACK2026-001_id_cards.pdf"), got)

	_, statErr := os.Stat(got)
	assert.NoError(t, statErr)
}

func TestTeamService_Stats(t *testing.T) {
	repo := new(MockTeamRepository)
	svc := NewTeamService().WithTeamRepo(repo)

	repo.On("Stats", mock.Anything).Return(&repository.Stats{
		TotalTeams:         3,
		TotalMembers:       7,
		CheckedInTeams:     1,
		DomainDistribution: map[string]int{"AI": 2, "Web": 1},
	}, nil)

	stats, svcErr := svc.Stats(context.Background())
	require.Nil(t, svcErr)

	assert.Equal(t, 3, stats.TotalTeams)
	assert.Equal(t, 7, stats.TotalMembers)
	assert.Equal(t, 1, stats.CheckedInTeams)
	assert.Equal(t, 2, stats.DomainDistribution["AI"])
}

func TestTeamService_List(t *testing.T) {
	repo := new(MockTeamRepository)
	svc := NewTeamService().WithTeamRepo(repo)

	repo.On("List", mock.Anything, repository.ListParams{Page: 1, PageSize: 50}).Return([]*repository.TeamListRow{
		{TeamID: "HACK2026-001", TeamName: "Solo", LeaderName: "Ada", LeaderEmail: "a@x.io", Domain: "AI", TotalMembers: 1, AttendanceStatus: true},
	}, 1, nil)

	list, svcErr := svc.List(context.Background(), repository.ListParams{})
	require.Nil(t, svcErr)

	assert.Equal(t, 1, list.Total)
	require.Len(t, list.Items, 1)
	assert.True(t, list.Items[0].CheckedIn)
}
