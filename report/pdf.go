package report

import (
	"io"
	"log"
	"os"

	"github.com/carbocation/pfx"
	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/pdf"
)

// WritePDF renders the planned pages into a single PDF at path. The output
// file is created once and closed on completion or error.
func (r *Report) WritePDF(path string, pages []Page) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return pfx.Err(err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = pfx.Err(cerr)
		}
	}()

	err = r.Render(f, pages)
	return err
}

// Render draws every page into w as a multi-page PDF.
func (r *Report) Render(w io.Writer, pages []Page) error {
	fam, err := loadFontFamily()
	if err != nil {
		return pfx.Err(err)
	}

	doc := pdf.New(w, pageWidthMM, pageHeightMM, nil)

	for i, page := range pages {
		if i > 0 {
			doc.NewPage(pageWidthMM, pageHeightMM)
		}

		c := canvas.New(pageWidthMM, pageHeightMM)
		ctx := canvas.NewContext(c)
		ctx.SetCoordSystem(canvas.CartesianIV)

		if err := page.draw(ctx, fam); err != nil {
			return pfx.Err(err)
		}

		c.Render(doc)
		log.Printf("Rendered page %d/%d: %s", i+1, len(pages), page.Title)
	}

	if err := doc.Close(); err != nil {
		return pfx.Err(err)
	}

	return nil
}
