package card

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yakoovad/hackathon-registration/internal/model"
)

func testClock() time.Time {
	return time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
}

func testTeam() *model.Team {
	return &model.Team{
		TeamID:      "HACK2026-001",
		TeamCode:    "TEAM-AB12CD",
		TeamName:    "Solo",
		LeaderName:  "Ada",
		LeaderEmail: "a@x.io",
		CollegeName: "LBRCE",
		Year:        "3rd Year",
		Domain:      "AI",
		Members: []*model.Member{
			{Index: 0, Name: "Ada", Email: "a@x.io", Phone: "9876543210", ParticipantID: "TEAM-AB12CD-000", IsTeamLeader: true},
			{Index: 1, Name: "Bob", Email: "b@x.io", Phone: "9876543211", ParticipantID: "TEAM-AB12CD-001"},
		},
	}
}

func testRenderer() *Renderer {
	return NewRenderer("CSE (AI & ML) — LBRCE", "TechXelarate 2026", "6-HOUR HACKATHON", testClock)
}

func TestRenderer_Render(t *testing.T) {
	team := testTeam()

	img, err := testRenderer().Render(team, team.Members[0])
	require.NoError(t, err)

	bounds := img.Bounds()
	assert.Equal(t, cardWidth, bounds.Dx())
	assert.Equal(t, cardHeight, bounds.Dy())
}

func TestGenerator_Generate(t *testing.T) {
	dir := t.TempDir()
	g := NewGenerator(testRenderer(), dir)

	path, err := g.Generate(testTeam())
	require.NoError(t, err)
	defer os.Remove(path)

	assert.True(t, strings.HasPrefix(filepath.Base(path), "HACK2026-001-"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "%PDF"))
}

func TestGenerator_GenerateEmptyTeam(t *testing.T) {
	g := NewGenerator(testRenderer(), t.TempDir())

	team := testTeam()
	team.Members = nil

	_, err := g.Generate(team)
	assert.Error(t, err)
}

func TestPromote(t *testing.T) {
	tmpDir := t.TempDir()
	assetsDir := filepath.Join(tmpDir, "assets")

	tmp := filepath.Join(tmpDir, "doc.pdf")
	require.NoError(t, os.WriteFile(tmp, []byte("%PDF-1.4"), 0o644))

	dst, err := Promote(tmp, assetsDir, "HACK2026-001")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(assetsDir, "HACK2026-001_id_cards.pdf"), dst)

	_, statErr := os.Stat(tmp)
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(dst)
	assert.NoError(t, statErr)
}

func TestCaptionForIndex(t *testing.T) {
	// Stable per index so reprints match.
	assert.Equal(t, captionForIndex(1), captionForIndex(1))
	assert.Equal(t, captionForIndex(0), captionForIndex(len(captions)))
	assert.NotEmpty(t, captionForIndex(-3))
}
