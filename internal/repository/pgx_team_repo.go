package repository

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/stephenafamo/bob"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/dialect"
	"github.com/stephenafamo/bob/dialect/psql/im"
	"github.com/stephenafamo/bob/dialect/psql/sm"
	"github.com/stephenafamo/bob/dialect/psql/um"
	"github.com/yakoovad/hackathon-registration/internal/db"
)

type Team struct {
	TeamID           string     `db:"team_id"`
	TeamCode         string     `db:"team_code"`
	TeamName         string     `db:"team_name"`
	LeaderName       string     `db:"leader_name"`
	LeaderEmail      string     `db:"leader_email"`
	LeaderPhone      string     `db:"leader_phone"`
	CollegeName      string     `db:"college_name"`
	Year             string     `db:"year"`
	Domain           string     `db:"domain"`
	AccessKey        string     `db:"access_key"`
	AttendanceStatus bool       `db:"attendance_status"`
	CheckInTime      *time.Time `db:"check_in_time"`
	ArtifactsPending bool       `db:"artifacts_pending"`
	IDCardsPath      *string    `db:"id_cards_path"`
	CreatedAt        *time.Time `db:"created_at"`
}

type Member struct {
	TeamID        string `db:"team_id"`
	Index         int    `db:"member_index"`
	Name          string `db:"name"`
	Email         string `db:"email"`
	Phone         string `db:"phone"`
	ParticipantID string `db:"participant_id"`
	IsTeamLeader  bool   `db:"is_team_leader"`
}

type TeamListRow struct {
	TeamID           string `db:"team_id"`
	TeamName         string `db:"team_name"`
	LeaderName       string `db:"leader_name"`
	LeaderEmail      string `db:"leader_email"`
	Domain           string `db:"domain"`
	AttendanceStatus bool   `db:"attendance_status"`
	TotalMembers     int    `db:"total_members"`
}

type ListParams struct {
	Page     int
	PageSize int
	Search   string
	Domain   string
}

type Stats struct {
	TotalTeams         int
	TotalMembers       int
	CheckedInTeams     int
	DomainDistribution map[string]int
}

type TeamRepository interface {
	Insert(ctx context.Context, team *Team, members []*Member) error
	CountTeams(ctx context.Context) (int, error)
	LeaderEmailExists(ctx context.Context, email string) (bool, error)
	GetByCode(ctx context.Context, teamCode string) (*Team, error)
	GetByTeamID(ctx context.Context, teamID string) (*Team, error)
	GetByTeamIDAndKey(ctx context.Context, teamID, accessKey string) (*Team, error)
	GetMembers(ctx context.Context, teamID string) ([]*Member, error)
	MarkCheckedIn(ctx context.Context, teamCode string, when time.Time) (time.Time, error)
	SetArtifacts(ctx context.Context, teamID, path string, pending bool) error
	List(ctx context.Context, params ListParams) ([]*TeamListRow, int, error)
	Stats(ctx context.Context) (*Stats, error)
}

type pgxTeamRepository struct {
	pool *pgxpool.Pool
}

func NewPgxTeamRepository(pool *pgxpool.Pool) TeamRepository {
	return &pgxTeamRepository{pool: pool}
}

var teamColumns = []any{
	"team_id", "team_code", "team_name", "leader_name", "leader_email",
	"leader_phone", "college_name", "year", "domain", "access_key",
	"attendance_status", "check_in_time", "artifacts_pending",
	"id_cards_path", "created_at",
}

// Insert writes the team row and its members. Callers run it inside a
// transaction; unique-index violations are translated by constraint name so
// the orchestrator can tell an email conflict from a code collision.
func (p *pgxTeamRepository) Insert(ctx context.Context, team *Team, members []*Member) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Insert(
		im.Into("teams",
			"team_id", "team_code", "team_name", "leader_name", "leader_email",
			"leader_phone", "college_name", "year", "domain", "access_key",
		),
		im.Values(psql.Arg(
			team.TeamID, team.TeamCode, team.TeamName, team.LeaderName, team.LeaderEmail,
			team.LeaderPhone, team.CollegeName, team.Year, team.Domain, team.AccessKey,
		)),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	if _, err = e.Exec(ctx, sql, args...); err != nil {
		return translateUniqueViolation(err)
	}

	for _, m := range members {
		mq := psql.Insert(
			im.Into("team_members",
				"team_id", "member_index", "name", "email", "phone",
				"participant_id", "is_team_leader",
			),
			im.Values(psql.Arg(
				m.TeamID, m.Index, m.Name, m.Email, m.Phone,
				m.ParticipantID, m.IsTeamLeader,
			)),
		)

		sql, args, err = mq.Build(ctx)
		if err != nil {
			return err
		}
		if _, err = e.Exec(ctx, sql, args...); err != nil {
			return translateUniqueViolation(err)
		}
	}

	return nil
}

func (p *pgxTeamRepository) CountTeams(ctx context.Context) (int, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns(psql.Raw("count(*)")),
		sm.From("teams"),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return 0, err
	}

	var count int
	if err = e.QueryRow(ctx, sql, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (p *pgxTeamRepository) LeaderEmailExists(ctx context.Context, email string) (bool, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns(psql.Raw("count(*)")),
		sm.From("teams"),
		sm.Where(psql.Quote("leader_email").EQ(psql.Arg(email))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return false, err
	}

	var count int
	if err = e.QueryRow(ctx, sql, args...).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (p *pgxTeamRepository) GetByCode(ctx context.Context, teamCode string) (*Team, error) {
	return p.getOne(ctx, sm.Where(psql.Quote("team_code").EQ(psql.Arg(teamCode))))
}

func (p *pgxTeamRepository) GetByTeamID(ctx context.Context, teamID string) (*Team, error) {
	return p.getOne(ctx, sm.Where(psql.Quote("team_id").EQ(psql.Arg(teamID))))
}

func (p *pgxTeamRepository) GetByTeamIDAndKey(ctx context.Context, teamID, accessKey string) (*Team, error) {
	return p.getOne(ctx,
		sm.Where(psql.Quote("team_id").EQ(psql.Arg(teamID))),
		sm.Where(psql.Quote("access_key").EQ(psql.Arg(accessKey))),
	)
}

func (p *pgxTeamRepository) getOne(ctx context.Context, conditions ...bob.Mod[*dialect.SelectQuery]) (*Team, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	mods := append([]bob.Mod[*dialect.SelectQuery]{
		sm.Columns(teamColumns...),
		sm.From("teams"),
	}, conditions...)

	sql, args, err := psql.Select(mods...).Build(ctx)
	if err != nil {
		return nil, err
	}

	team := &Team{}
	err = e.QueryRow(ctx, sql, args...).Scan(
		&team.TeamID, &team.TeamCode, &team.TeamName, &team.LeaderName, &team.LeaderEmail,
		&team.LeaderPhone, &team.CollegeName, &team.Year, &team.Domain, &team.AccessKey,
		&team.AttendanceStatus, &team.CheckInTime, &team.ArtifactsPending,
		&team.IDCardsPath, &team.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return team, nil
}

func (p *pgxTeamRepository) GetMembers(ctx context.Context, teamID string) ([]*Member, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns("team_id", "member_index", "name", "email", "phone", "participant_id", "is_team_leader"),
		sm.From("team_members"),
		sm.Where(psql.Quote("team_id").EQ(psql.Arg(teamID))),
		sm.OrderBy("member_index"),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := e.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Member, error) {
		m := &Member{}
		if err := row.Scan(&m.TeamID, &m.Index, &m.Name, &m.Email, &m.Phone, &m.ParticipantID, &m.IsTeamLeader); err != nil {
			return nil, err
		}
		return m, nil
	})
	if err != nil {
		return nil, err
	}

	return members, nil
}

// MarkCheckedIn flips the attendance flag with a conditional update so
// concurrent scans serialise on the database: exactly one caller gets a nil
// error, the rest get ErrAlreadyCheckedIn with the winner's check-in time.
func (p *pgxTeamRepository) MarkCheckedIn(ctx context.Context, teamCode string, when time.Time) (time.Time, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Update(
		um.Table("teams"),
		um.SetCol("attendance_status").ToArg(true),
		um.SetCol("check_in_time").ToArg(when),
		um.Where(psql.Quote("team_code").EQ(psql.Arg(teamCode))),
		um.Where(psql.Quote("attendance_status").EQ(psql.Arg(false))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return time.Time{}, err
	}

	tag, err := e.Exec(ctx, sql, args...)
	if err != nil {
		return time.Time{}, err
	}
	if tag.RowsAffected() > 0 {
		return when, nil
	}

	team, err := p.GetByCode(ctx, teamCode)
	if err != nil {
		return time.Time{}, err
	}
	if team.CheckInTime == nil {
		// Row exists and was not checked in, yet our update matched nothing.
		return time.Time{}, errors.New("check-in state changed underneath conditional update")
	}
	return *team.CheckInTime, ErrAlreadyCheckedIn
}

func (p *pgxTeamRepository) SetArtifacts(ctx context.Context, teamID, path string, pending bool) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	mods := []bob.Mod[*dialect.UpdateQuery]{
		um.Table("teams"),
		um.SetCol("artifacts_pending").ToArg(pending),
		um.Where(psql.Quote("team_id").EQ(psql.Arg(teamID))),
	}
	if path != "" {
		mods = append(mods, um.SetCol("id_cards_path").ToArg(path))
	}

	sql, args, err := psql.Update(mods...).Build(ctx)
	if err != nil {
		return err
	}

	tag, err := e.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *pgxTeamRepository) List(ctx context.Context, params ListParams) ([]*TeamListRow, int, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	filters := make([]bob.Mod[*dialect.SelectQuery], 0, 2)
	if params.Search != "" {
		pattern := "%" + strings.TrimSpace(params.Search) + "%"
		filters = append(filters, sm.Where(
			psql.Raw("(team_id ILIKE ? OR team_name ILIKE ?)", pattern, pattern),
		))
	}
	if params.Domain != "" {
		filters = append(filters, sm.Where(psql.Quote("domain").EQ(psql.Arg(params.Domain))))
	}

	countMods := append([]bob.Mod[*dialect.SelectQuery]{
		sm.Columns(psql.Raw("count(*)")),
		sm.From("teams"),
	}, filters...)

	sql, args, err := psql.Select(countMods...).Build(ctx)
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err = e.QueryRow(ctx, sql, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listMods := append([]bob.Mod[*dialect.SelectQuery]{
		sm.Columns(
			"team_id", "team_name", "leader_name", "leader_email", "domain", "attendance_status",
			psql.Raw("(SELECT count(*) FROM team_members m WHERE m.team_id = teams.team_id) AS total_members"),
		),
		sm.From("teams"),
		sm.OrderBy("team_id"),
		sm.Limit(int64(params.PageSize)),
		sm.Offset(int64((params.Page - 1) * params.PageSize)),
	}, filters...)

	sql, args, err = psql.Select(listMods...).Build(ctx)
	if err != nil {
		return nil, 0, err
	}

	rows, err := e.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*TeamListRow, error) {
		r := &TeamListRow{}
		if err := row.Scan(&r.TeamID, &r.TeamName, &r.LeaderName, &r.LeaderEmail, &r.Domain, &r.AttendanceStatus, &r.TotalMembers); err != nil {
			return nil, err
		}
		return r, nil
	})
	if err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

func (p *pgxTeamRepository) Stats(ctx context.Context) (*Stats, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	stats := &Stats{DomainDistribution: map[string]int{}}

	sql, args, err := psql.Select(
		sm.Columns(
			psql.Raw("count(*)"),
			psql.Raw("count(*) FILTER (WHERE attendance_status)"),
			psql.Raw("(SELECT count(*) FROM team_members)"),
		),
		sm.From("teams"),
	).Build(ctx)
	if err != nil {
		return nil, err
	}
	if err = e.QueryRow(ctx, sql, args...).Scan(&stats.TotalTeams, &stats.CheckedInTeams, &stats.TotalMembers); err != nil {
		return nil, err
	}

	sql, args, err = psql.Select(
		sm.Columns("domain", psql.Raw("count(*)")),
		sm.From("teams"),
		sm.GroupBy("domain"),
	).Build(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := e.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var domain string
		var count int
		if err = rows.Scan(&domain, &count); err != nil {
			return nil, err
		}
		stats.DomainDistribution[domain] = count
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return stats, nil
}

func translateUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return err
	}
	switch pgErr.ConstraintName {
	case "teams_leader_email_key":
		return ErrDuplicateEmail
	case "teams_team_code_key", "team_members_participant_id_key":
		return ErrDuplicateCode
	case "teams_team_id_key":
		return ErrDuplicateTeamID
	default:
		return err
	}
}
