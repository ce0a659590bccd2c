package ui

import (
	"fmt"
	"image"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/image/draw"

	"github.com/five82/perch/internal/imagecache"
)

const textureColumns = 32

// textures maps artifacts handed out to the image cache onto pre-rendered
// terminal art. It is only touched from the Bubble Tea event loop.
type textures struct {
	next    imagecache.Artifact
	items   map[imagecache.Artifact]string
	columns int
}

func newTextures(columns int) *textures {
	if columns <= 0 {
		columns = textureColumns
	}
	return &textures{items: make(map[imagecache.Artifact]string), columns: columns}
}

func (t *textures) add(img image.Image) imagecache.Artifact {
	t.next++
	t.items[t.next] = renderHalfBlocks(img, t.columns)
	return t.next
}

func (t *textures) get(a imagecache.Artifact) (string, bool) {
	s, ok := t.items[a]
	return s, ok
}

func (t *textures) release(a imagecache.Artifact) {
	delete(t.items, a)
}

func (t *textures) len() int { return len(t.items) }

// renderHalfBlocks draws img with one "▀" per cell: the foreground colour is
// the upper pixel and the background the lower one, so cells map to square
// pixels on a typical 1:2 terminal font.
func renderHalfBlocks(img image.Image, columns int) string {
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return ""
	}
	w := min(columns, b.Dx())
	h := max(2, b.Dy()*w/b.Dx())
	if h%2 == 1 {
		h++
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)

	var out strings.Builder
	for y := 0; y < h; y += 2 {
		if y > 0 {
			out.WriteByte('\n')
		}
		for x := 0; x < w; x++ {
			top := hexColor(dst, x, y)
			bottom := hexColor(dst, x, y+1)
			out.WriteString(lipgloss.NewStyle().
				Foreground(lipgloss.Color(top)).
				Background(lipgloss.Color(bottom)).
				Render("▀"))
		}
	}
	return out.String()
}

func hexColor(img *image.RGBA, x, y int) string {
	c := img.RGBAAt(x, y)
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
