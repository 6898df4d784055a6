package report

import (
	"fmt"
	"strings"

	"github.com/tdewolff/canvas"
)

// loadFontFamily finds a usable system sans font. The exact face does not
// matter for the report; the first one available wins.
func loadFontFamily() (*canvas.FontFamily, error) {
	fam := canvas.NewFontFamily("report")

	var lastErr error
	for _, name := range []string{"DejaVu Sans", "Liberation Sans", "Arial", "Helvetica"} {
		if err := fam.LoadLocalFont(name, canvas.FontRegular); err != nil {
			lastErr = err
			continue
		}
		return fam, nil
	}

	return nil, fmt.Errorf("no usable system font found: %w", lastErr)
}

func drawPageTitle(ctx *canvas.Context, fam *canvas.FontFamily, title string) {
	face := fam.Face(14, canvas.Black, canvas.FontRegular, canvas.FontNormal)
	box := canvas.NewTextBox(face, title, pageWidthMM-2*sideMarginMM, 0, canvas.Center, canvas.Top, 0, 0)
	ctx.DrawText(sideMarginMM, 8, box)
}

// textPage lays out a title and a sequence of paragraphs. Empty strings in
// the body become paragraph breaks.
func textPage(title string, body []string) Page {
	return Page{
		Title: title,
		draw: func(ctx *canvas.Context, fam *canvas.FontFamily) error {
			drawPageTitle(ctx, fam, title)

			face := fam.Face(9, canvas.Black, canvas.FontRegular, canvas.FontNormal)
			text := strings.Join(body, "\n")
			box := canvas.NewTextBox(face, text,
				pageWidthMM-2*sideMarginMM, pageHeightMM-topMarginMM-sideMarginMM,
				canvas.Left, canvas.Top, 0, 1.2)
			ctx.DrawText(sideMarginMM, topMarginMM, box)
			return nil
		},
	}
}
