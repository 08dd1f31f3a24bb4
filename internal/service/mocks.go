package service

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/yakoovad/hackathon-registration/internal/model"
	"github.com/yakoovad/hackathon-registration/internal/repository"
)

type MockTransactor struct {
	mock.Mock
}

func (m *MockTransactor) WithinTransaction(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

type MockTeamRepository struct {
	mock.Mock
}

func (m *MockTeamRepository) Insert(ctx context.Context, team *repository.Team, members []*repository.Member) error {
	args := m.Called(ctx, team, members)
	return args.Error(0)
}

func (m *MockTeamRepository) CountTeams(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockTeamRepository) LeaderEmailExists(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *MockTeamRepository) GetByCode(ctx context.Context, teamCode string) (*repository.Team, error) {
	args := m.Called(ctx, teamCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.Team), args.Error(1)
}

func (m *MockTeamRepository) GetByTeamID(ctx context.Context, teamID string) (*repository.Team, error) {
	args := m.Called(ctx, teamID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.Team), args.Error(1)
}

func (m *MockTeamRepository) GetByTeamIDAndKey(ctx context.Context, teamID, accessKey string) (*repository.Team, error) {
	args := m.Called(ctx, teamID, accessKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.Team), args.Error(1)
}

func (m *MockTeamRepository) GetMembers(ctx context.Context, teamID string) ([]*repository.Member, error) {
	args := m.Called(ctx, teamID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.Member), args.Error(1)
}

func (m *MockTeamRepository) MarkCheckedIn(ctx context.Context, teamCode string, when time.Time) (time.Time, error) {
	args := m.Called(ctx, teamCode, when)
	return args.Get(0).(time.Time), args.Error(1)
}

func (m *MockTeamRepository) SetArtifacts(ctx context.Context, teamID, path string, pending bool) error {
	args := m.Called(ctx, teamID, path, pending)
	return args.Error(0)
}

func (m *MockTeamRepository) List(ctx context.Context, params repository.ListParams) ([]*repository.TeamListRow, int, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*repository.TeamListRow), args.Int(1), args.Error(2)
}

func (m *MockTeamRepository) Stats(ctx context.Context) (*repository.Stats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.Stats), args.Error(1)
}

type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Configured() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockMailer) SendOTP(ctx context.Context, to, code string) error {
	args := m.Called(ctx, to, code)
	return args.Error(0)
}

func (m *MockMailer) SendConfirmation(ctx context.Context, team *model.Team, attachmentPath string) error {
	args := m.Called(ctx, team, attachmentPath)
	return args.Error(0)
}

type MockCardGenerator struct {
	mock.Mock
}

func (m *MockCardGenerator) Generate(team *model.Team) (string, error) {
	args := m.Called(team)
	return args.String(0), args.Error(1)
}

// inlineDispatcher runs the send synchronously so tests stay deterministic.
type inlineDispatcher struct {
	labels []string
}

func (d *inlineDispatcher) Dispatch(label string, send func(ctx context.Context) error) <-chan error {
	d.labels = append(d.labels, label)
	ch := make(chan error, 1)
	ch <- send(context.Background())
	return ch
}

// scriptedMint hands out team codes from a fixed queue.
type scriptedMint struct {
	prefix    string
	codes     []string
	codeCalls int
}

func (m *scriptedMint) TeamID(seq int) string {
	return m.prefix + "-" + pad3(seq)
}

func (m *scriptedMint) TeamCode() (string, error) {
	code := m.codes[m.codeCalls%len(m.codes)]
	m.codeCalls++
	return code, nil
}

func (m *scriptedMint) ParticipantID(teamCode string, index int) string {
	return teamCode + "-" + pad3(index)
}

func (m *scriptedMint) AccessKey() (string, error) {
	return "k3YxP9aQz1", nil
}

func pad3(n int) string {
	digits := []byte{'0', '0', '0'}
	for i := 2; i >= 0 && n > 0; i-- {
		digits[i] = byte('0' + n%10)
		n /= 10
	}
	return string(digits)
}
