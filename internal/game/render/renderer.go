// Package render rasterizes board positions to PNG for the board endpoint.
package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"

	nchess "github.com/corentings/chess/v2"
	xdraw "golang.org/x/image/draw"
)

const (
	squareSize   = 64
	boardSquares = 8
	boardSize    = squareSize * boardSquares
)

// MoveHighlight marks the from and to squares of the last move.
type MoveHighlight struct {
	From nchess.Square
	To   nchess.Square
}

// Options controls one render call.
type Options struct {
	// Highlight tints the squares of the last move when set.
	Highlight *MoveHighlight
	// Flip draws the board from Black's perspective.
	Flip bool
	// Size is the output edge length in pixels; 0 keeps the native size.
	Size int
}

// BoardRenderer turns a board into a PNG image.
type BoardRenderer interface {
	RenderPNG(ctx context.Context, board *nchess.Board, opts Options) ([]byte, error)
}

type svgBoardRenderer struct{}

// NewSVGBoardRenderer builds the embedded-SVG based renderer.
func NewSVGBoardRenderer() BoardRenderer {
	return &svgBoardRenderer{}
}

var (
	lightSquare    = color.RGBA{233, 207, 163, 255}
	darkSquare     = color.RGBA{187, 136, 96, 255}
	highlightColor = color.NRGBA{R: 255, G: 228, B: 120, A: 140}
)

func (r *svgBoardRenderer) RenderPNG(ctx context.Context, board *nchess.Board, opts Options) ([]byte, error) {
	if board == nil {
		return nil, fmt.Errorf("board is nil")
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	img := image.NewRGBA(image.Rect(0, 0, boardSize, boardSize))

	drawSquares(img, opts.Flip)
	if opts.Highlight != nil {
		drawSquareOverlay(img, opts.Highlight.From, opts.Flip, highlightColor)
		drawSquareOverlay(img, opts.Highlight.To, opts.Flip, highlightColor)
	}
	if err := drawPieces(img, board, opts.Flip); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	out := scaleIfNeeded(img, opts.Size)

	var pngBuf bytes.Buffer
	if err := png.Encode(&pngBuf, out); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return pngBuf.Bytes(), nil
}

func drawSquares(dst imagedraw.Image, flip bool) {
	for rank := 0; rank < boardSquares; rank++ {
		for file := 0; file < boardSquares; file++ {
			sq := nchess.NewSquare(nchess.File(file), nchess.Rank(rank))
			rect := squareRect(sq, flip)
			imagedraw.Draw(dst, rect, image.NewUniform(squareColor(sq)), image.Point{}, imagedraw.Src)
		}
	}
}

func drawPieces(dst imagedraw.Image, board *nchess.Board, flip bool) error {
	boardMap := board.SquareMap()
	for sq, piece := range boardMap {
		if piece == nchess.NoPiece {
			continue
		}
		img, err := renderPieceImage(piece, squareSize)
		if err != nil {
			return err
		}
		imagedraw.Draw(dst, squareRect(sq, flip), img, image.Point{}, imagedraw.Over)
	}
	return nil
}

func drawSquareOverlay(dst imagedraw.Image, sq nchess.Square, flip bool, clr color.Color) {
	imagedraw.Draw(dst, squareRect(sq, flip), image.NewUniform(clr), image.Point{}, imagedraw.Over)
}

// squareRect maps a square to its pixel rectangle. White's perspective puts
// rank 8 at the top; flipping mirrors both axes.
func squareRect(sq nchess.Square, flip bool) image.Rectangle {
	col := int(sq.File())
	row := 7 - int(sq.Rank())
	if flip {
		col = 7 - col
		row = 7 - row
	}
	x := col * squareSize
	y := row * squareSize
	return image.Rect(x, y, x+squareSize, y+squareSize)
}

func squareColor(sq nchess.Square) color.Color {
	if (int(sq.File())+int(sq.Rank()))%2 == 0 {
		return darkSquare
	}
	return lightSquare
}

func scaleIfNeeded(img *image.RGBA, size int) image.Image {
	if size <= 0 || size == boardSize {
		return img
	}
	scaled := image.NewRGBA(image.Rect(0, 0, size, size))
	xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	return scaled
}
