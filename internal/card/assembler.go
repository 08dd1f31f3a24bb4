package card

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/pkg/errors"
	"github.com/yakoovad/hackathon-registration/internal/model"
)

// Card page size in points: 3.5"x5.5".
const (
	pageWidthPt  = 252.0
	pageHeightPt = 396.0
)

// Generator renders every member's card and assembles the multi-page
// document. It writes to a temporary file and hands the path back; the
// orchestrator owns deletion or promotion into the assets directory.
type Generator struct {
	renderer *Renderer
	tmpDir   string
}

func NewGenerator(renderer *Renderer, tmpDir string) *Generator {
	return &Generator{renderer: renderer, tmpDir: tmpDir}
}

// Generate produces the team's document, one page per member in index order.
func (g *Generator) Generate(team *model.Team) (string, error) {
	if len(team.Members) == 0 {
		return "", errors.New("team has no members to render")
	}

	images := make([]image.Image, 0, len(team.Members))
	for _, m := range team.Members {
		img, err := g.renderer.Render(team, m)
		if err != nil {
			return "", errors.Wrapf(err, "render card for %s", m.ParticipantID)
		}
		images = append(images, img)
	}

	if err := os.MkdirAll(g.tmpDir, 0o755); err != nil {
		return "", errors.Wrap(err, "create temp dir")
	}

	f, err := os.CreateTemp(g.tmpDir, team.TeamID+"-*.pdf")
	if err != nil {
		return "", errors.Wrap(err, "create temp file")
	}
	path := f.Name()
	_ = f.Close()

	if err := writePDF(images, path); err != nil {
		_ = os.Remove(path)
		return "", err
	}
	return path, nil
}

// DocumentPath is where a team's assembled document lives once promoted out
// of the temp area.
func DocumentPath(assetsDir, teamID string) string {
	return filepath.Join(assetsDir, teamID+"_id_cards.pdf")
}

// Promote moves the finished temp document to its durable path.
func Promote(tmpPath, assetsDir, teamID string) (string, error) {
	if err := os.MkdirAll(assetsDir, 0o755); err != nil {
		return "", errors.Wrap(err, "create assets dir")
	}
	dst := DocumentPath(assetsDir, teamID)
	if err := os.Rename(tmpPath, dst); err != nil {
		return "", errors.Wrap(err, "promote document")
	}
	return dst, nil
}

func writePDF(images []image.Image, path string) error {
	pdf := fpdf.NewCustom(&fpdf.InitType{
		UnitStr: "pt",
		Size:    fpdf.SizeType{Wd: pageWidthPt, Ht: pageHeightPt},
	})

	for i, img := range images {
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return errors.Wrapf(err, "encode page %d", i)
		}

		name := fmt.Sprintf("card-%d-%d", i, time.Now().UnixNano())
		pdf.AddPage()
		pdf.RegisterImageOptionsReader(name, fpdf.ImageOptions{ImageType: "PNG"}, &buf)
		pdf.ImageOptions(name, 0, 0, pageWidthPt, pageHeightPt, false, fpdf.ImageOptions{ImageType: "PNG"}, 0, "")
	}

	if err := pdf.OutputFileAndClose(path); err != nil {
		return errors.Wrap(err, "write pdf")
	}
	return nil
}
