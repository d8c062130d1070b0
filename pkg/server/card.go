package server

import (
	"image"
	"image/color"
	"image/png"
	"io"
	"strconv"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/synrais/ROLL-GO/pkg/table"
)

const (
	cardWidth  = 640
	cardHeight = 360
)

var (
	cardBackground = color.RGBA{0x14, 0x1d, 0x2b, 0xff}
	cardNumber     = color.RGBA{0x8b, 0xc3, 0x4a, 0xff}
	cardText       = color.RGBA{0xf2, 0xf2, 0xf2, 0xff}
	cardInvalid    = color.RGBA{0xe5, 0x39, 0x35, 0xff}
)

// RenderCard draws the number large and the message below it, as a PNG.
func RenderCard(w io.Writer, sel table.Selection) error {
	img := image.NewRGBA(image.Rect(0, 0, cardWidth, cardHeight))
	draw.Draw(img, img.Bounds(), image.NewUniform(cardBackground), image.Point{}, draw.Src)

	msgColor := cardText
	if !sel.HasVideo() {
		msgColor = cardInvalid
	}

	drawScaled(img, strconv.Itoa(sel.Number), cardNumber, 8, cardHeight/2-40)
	drawScaled(img, sel.Message, msgColor, 3, cardHeight/2+80)

	return png.Encode(w, img)
}

// drawScaled renders s with the 7x13 bitmap face, scales it by factor and
// centres it horizontally with its baseline near y.
func drawScaled(dst draw.Image, s string, c color.Color, factor, y int) {
	face := basicfont.Face7x13
	width := font.MeasureString(face, s).Ceil()
	if width == 0 {
		return
	}
	// shrink long messages to fit
	for factor > 1 && width*factor > cardWidth-20 {
		factor--
	}

	height := face.Metrics().Height.Ceil()
	src := image.NewRGBA(image.Rect(0, 0, width, height))
	d := font.Drawer{
		Dst:  src,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(0, face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(s)

	sw, sh := width*factor, height*factor
	x0 := (cardWidth - sw) / 2
	y0 := y - sh
	draw.NearestNeighbor.Scale(dst, image.Rect(x0, y0, x0+sw, y0+sh), src, src.Bounds(), draw.Over, nil)
}
