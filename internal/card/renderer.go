// Package card renders per-member ID cards and assembles them into the
// multi-page document mailed to the team leader.
package card

import (
	"image"
	"image/color"
	"time"

	"github.com/fogleman/gg"
	"github.com/pkg/errors"
	qrcode "github.com/skip2/go-qrcode"
	"github.com/yakoovad/hackathon-registration/internal/model"
	"golang.org/x/image/font/basicfont"
)

// Vertical badge, 3.5"x5.5" at 300 dpi.
const (
	cardWidth  = 1050
	cardHeight = 1650

	photoSize = 280
	qrSize    = 300
)

var (
	colorBackground = color.RGBA{R: 10, G: 14, B: 39, A: 255}
	colorGreen      = color.RGBA{R: 0, G: 255, B: 136, A: 255}
	colorCyan       = color.RGBA{R: 0, G: 232, B: 255, A: 255}
	colorMagenta    = color.RGBA{R: 200, G: 0, B: 255, A: 255}
	colorOrange     = color.RGBA{R: 255, G: 170, B: 0, A: 255}
	colorYellow     = color.RGBA{R: 255, G: 255, B: 0, A: 255}
	colorWhite      = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	colorGrey       = color.RGBA{R: 200, G: 200, B: 200, A: 255}
)

var fontPaths = map[bool]string{
	true:  "/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf",
	false: "/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
}

type Renderer struct {
	Banner   string
	Title    string
	Subtitle string

	now func() time.Time
}

func NewRenderer(banner, title, subtitle string, now func() time.Time) *Renderer {
	return &Renderer{
		Banner:   banner,
		Title:    title,
		Subtitle: subtitle,
		now:      now,
	}
}

// Render draws one member's card. The QR encodes the attendance payload at
// error-correction level H so print wear still decodes.
func (r *Renderer) Render(team *model.Team, m *model.Member) (image.Image, error) {
	dc := gg.NewContext(cardWidth, cardHeight)
	dc.SetColor(colorBackground)
	dc.Clear()

	cx := float64(cardWidth) / 2

	y := 60.0
	setFont(dc, 44, true)
	dc.SetColor(colorGreen)
	dc.DrawStringAnchored(r.Banner, cx, y, 0.5, 0.5)

	y += 55
	setFont(dc, 30, false)
	dc.SetColor(colorCyan)
	dc.DrawStringAnchored(r.Title, cx, y, 0.5, 0.5)

	// Photo uploads were dropped with the multipart endpoint; every card
	// gets the monogram placeholder.
	y += 70
	r.drawMonogram(dc, cx, y, m.Name)

	y += photoSize + 60
	setFont(dc, 56, true)
	dc.SetColor(colorMagenta)
	dc.DrawStringAnchored(r.Title, cx, y, 0.5, 0.5)

	y += 60
	setFont(dc, 28, false)
	dc.SetColor(colorOrange)
	dc.DrawStringAnchored(r.Subtitle, cx, y, 0.5, 0.5)

	y += 80
	setFont(dc, 46, true)
	dc.SetColor(colorGreen)
	dc.DrawStringAnchored(m.Name, cx, y, 0.5, 0.5)

	y += 50
	setFont(dc, 26, false)
	dc.SetColor(colorGrey)
	dc.DrawStringAnchored(m.Email+"  ·  "+m.Phone, cx, y, 0.5, 0.5)

	y += 40
	dc.DrawStringAnchored(team.CollegeName+"  ·  "+team.Year, cx, y, 0.5, 0.5)

	y += 50
	setFont(dc, 30, false)
	dc.SetColor(colorCyan)
	dc.DrawStringAnchored("Team: "+team.TeamName, cx, y, 0.5, 0.5)

	y += 42
	setFont(dc, 26, false)
	dc.SetColor(colorYellow)
	dc.DrawStringAnchored("Team ID: "+team.TeamID+"  ·  "+team.Domain, cx, y, 0.5, 0.5)

	y += 56
	setFont(dc, 40, true)
	dc.SetColor(colorWhite)
	dc.SetLineWidth(2)
	dc.DrawRectangle(cx-360, y-34, 720, 68)
	dc.SetColor(colorMagenta)
	dc.Stroke()
	dc.SetColor(colorWhite)
	dc.DrawStringAnchored(team.TeamCode, cx, y, 0.5, 0.5)

	y += 70
	qrImg, err := r.qrImage(team.TeamCode, m)
	if err != nil {
		return nil, err
	}
	// White backing panel: the QR itself is black on transparent.
	pad := 16.0
	dc.SetColor(colorWhite)
	dc.DrawRectangle(cx-float64(qrSize)/2-pad, y-pad, float64(qrSize)+2*pad, float64(qrSize)+2*pad)
	dc.Fill()
	dc.DrawImageAnchored(qrImg, int(cx), int(y)+qrSize/2, 0.5, 0.5)

	y += float64(qrSize) + 50
	setFont(dc, 26, false)
	dc.SetColor(colorWhite)
	dc.DrawStringAnchored(m.ParticipantID, cx, y, 0.5, 0.5)

	y += 55
	setFont(dc, 22, false)
	dc.SetColor(colorGrey)
	dc.DrawStringAnchored("\""+captionForIndex(m.Index)+"\"", cx, y, 0.5, 0.5)

	return dc.Image(), nil
}

func (r *Renderer) qrImage(teamCode string, m *model.Member) (image.Image, error) {
	payload := model.NewQRPayload(teamCode, m, r.now())

	q, err := qrcode.New(payload.Encode(), qrcode.High)
	if err != nil {
		return nil, errors.Wrap(err, "encode attendance qr")
	}
	q.ForegroundColor = color.Black
	q.BackgroundColor = color.Transparent

	return q.Image(qrSize), nil
}

// drawMonogram draws the circular placeholder with the member's initial.
func (r *Renderer) drawMonogram(dc *gg.Context, cx, top float64, name string) {
	radius := float64(photoSize) / 2
	cy := top + radius

	dc.SetColor(colorCyan)
	dc.SetLineWidth(4)
	dc.DrawCircle(cx, cy, radius)
	dc.Stroke()

	initial := "?"
	for _, first := range name {
		initial = string(first)
		break
	}
	setFont(dc, 120, true)
	dc.SetColor(colorCyan)
	dc.DrawStringAnchored(initial, cx, cy, 0.5, 0.5)
}

// setFont loads the requested face, falling back to the built-in bitmap face
// when the system font is missing so rendering never hard-fails on fonts.
func setFont(dc *gg.Context, size float64, bold bool) {
	if err := dc.LoadFontFace(fontPaths[bold], size); err != nil {
		dc.SetFontFace(basicfont.Face7x13)
	}
}
