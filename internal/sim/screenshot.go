package sim

import (
	"github.com/fogleman/gg"
	"github.com/pkg/errors"
)

const (
	screenMargin     = 8.0
	screenLineHeight = 16.0
	minScreenWidth   = 160
)

// Screenshot renders console lines as light text on a black background and
// saves the image as a PNG at path.
func Screenshot(lines []string, path string, width int) error {
	if width < minScreenWidth {
		width = minScreenWidth
	}

	height := int(2*screenMargin + screenLineHeight*float64(len(lines)+1))

	dc := gg.NewContext(width, height)
	dc.SetRGB(0, 0, 0)
	dc.Clear()

	dc.SetRGB(0.85, 0.85, 0.85)
	for i, line := range lines {
		y := screenMargin + screenLineHeight*float64(i+1)
		dc.DrawString(line, screenMargin, y)
	}

	if err := dc.SavePNG(path); err != nil {
		return errors.Wrapf(err, "saving screenshot to %s", path)
	}

	return nil
}
