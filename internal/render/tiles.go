package render

import (
	"fmt"
	"image"
)

// Tiers computes the high and low tile resolutions for a display of
// width×height split into rows×cols. The high tier is width/cols wide and
// (width/cols)/aspect tall; the low tier is a quarter of it in each dimension.
func Tiers(width, height, rows, cols int) (high, low Resolution, err error) {
	if width <= 0 || height <= 0 {
		return high, low, fmt.Errorf("invalid display size %dx%d", width, height)
	}
	if rows <= 0 || cols <= 0 {
		return high, low, fmt.Errorf("invalid tile grid %dx%d", rows, cols)
	}
	if cols > width || rows > height {
		return high, low, fmt.Errorf("tile grid %dx%d exceeds display %dx%d", rows, cols, width, height)
	}

	tileWidth := width / cols
	high = Resolution{Width: tileWidth, Height: max(1, tileWidth*height/width)}
	low = Resolution{Width: max(1, high.Width/4), Height: max(1, high.Height/4)}
	return high, low, nil
}

// Partition returns the rows×cols grid of descriptors in row-major order.
func Partition(rows, cols int, res Resolution) []TileDescriptor {
	tiles := make([]TileDescriptor, 0, rows*cols)
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			tiles = append(tiles, TileDescriptor{
				Row:         row,
				Col:         col,
				Rows:        rows,
				Cols:        cols,
				PixelWidth:  res.Width,
				PixelHeight: res.Height,
			})
		}
	}
	return tiles
}

// cellRect is the region of a width×height surface covered by t.
func cellRect(t TileDescriptor, width, height int) image.Rectangle {
	return image.Rect(
		t.Col*width/t.Cols,
		t.Row*height/t.Rows,
		(t.Col+1)*width/t.Cols,
		(t.Row+1)*height/t.Rows,
	)
}
