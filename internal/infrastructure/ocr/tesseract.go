// Package ocr recognizes on-screen text with the Tesseract command line tool.
package ocr

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/doeshing/deskgate/internal/domain"
	"github.com/doeshing/deskgate/internal/ports"
)

// DefaultCommand is used when no OCR command is configured.
const DefaultCommand = "tesseract"

const wordLevel = 5

// Tesseract runs the tesseract binary in TSV mode.
type Tesseract struct {
	runner ports.ProcessRunner
	binary string
	extra  []string
}

// NewTesseract parses command as a binary followed by optional flags such as
// "-l eng --psm 11".
func NewTesseract(runner ports.ProcessRunner, command string) *Tesseract {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		fields = []string{DefaultCommand}
	}
	return &Tesseract{runner: runner, binary: fields[0], extra: fields[1:]}
}

// Binary returns the executable name.
func (t *Tesseract) Binary() string { return t.binary }

// Recognize implements ports.TextRecognizer. Boxes are in image coordinates.
func (t *Tesseract) Recognize(ctx context.Context, img image.Image) ([]domain.TextBox, error) {
	dir, err := os.MkdirTemp("", "deskgate-ocr-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "region.png")
	f, err := os.Create(in)
	if err != nil {
		return nil, err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return nil, fmt.Errorf("encode ocr input: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, err
	}

	args := append([]string{in, "stdout"}, t.extra...)
	args = append(args, "tsv")
	res, err := t.runner.Run(ctx, domain.Command{Name: t.binary, Args: args})
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", t.binary, err)
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("%s exited %d: %s", t.binary, res.ExitCode, strings.TrimSpace(res.Stderr))
	}

	boxes, err := ParseTSV(res.Stdout)
	if err != nil {
		return nil, err
	}
	offset := img.Bounds().Min
	for i := range boxes {
		boxes[i].Bounds.X += offset.X
		boxes[i].Bounds.Y += offset.Y
	}
	return boxes, nil
}

type lineKey struct{ page, block, par, line int }

// ParseTSV reads tesseract TSV output. Every confident word becomes a box and
// each text line with more than one word also yields a merged box, so that
// multi-word labels can match.
func ParseTSV(out string) ([]domain.TextBox, error) {
	var (
		words []domain.TextBox
		order []lineKey
		lines = map[lineKey][]domain.TextBox{}
	)
	sc := bufio.NewScanner(strings.NewReader(out))
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	header := true
	for sc.Scan() {
		row := strings.TrimRight(sc.Text(), "\r")
		if header {
			header = false
			if strings.HasPrefix(row, "level") {
				continue
			}
		}
		cols := strings.Split(row, "\t")
		if len(cols) < 12 {
			continue
		}
		nums := make([]int, 10)
		for i := range nums {
			n, err := strconv.Atoi(cols[i])
			if err != nil {
				return nil, fmt.Errorf("tsv column %d %q: %w", i+1, cols[i], err)
			}
			nums[i] = n
		}
		conf, err := strconv.ParseFloat(cols[10], 64)
		if err != nil {
			return nil, fmt.Errorf("tsv confidence %q: %w", cols[10], err)
		}
		text := strings.TrimSpace(strings.Join(cols[11:], "\t"))
		if nums[0] != wordLevel || conf <= 0 || text == "" {
			continue
		}
		box := domain.TextBox{
			Text:       text,
			Confidence: conf,
			Bounds:     domain.Rect{X: nums[6], Y: nums[7], Width: nums[8], Height: nums[9]},
		}
		words = append(words, box)
		key := lineKey{nums[1], nums[2], nums[3], nums[4]}
		if _, seen := lines[key]; !seen {
			order = append(order, key)
		}
		lines[key] = append(lines[key], box)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	boxes := words
	for _, key := range order {
		if ws := lines[key]; len(ws) > 1 {
			boxes = append(boxes, mergeLine(ws))
		}
	}
	return boxes, nil
}

func mergeLine(words []domain.TextBox) domain.TextBox {
	texts := make([]string, len(words))
	minX, minY := words[0].Bounds.X, words[0].Bounds.Y
	maxX, maxY := minX, minY
	var conf float64
	for i, w := range words {
		texts[i] = w.Text
		conf += w.Confidence
		minX = min(minX, w.Bounds.X)
		minY = min(minY, w.Bounds.Y)
		maxX = max(maxX, w.Bounds.X+w.Bounds.Width)
		maxY = max(maxY, w.Bounds.Y+w.Bounds.Height)
	}
	return domain.TextBox{
		Text:       strings.Join(texts, " "),
		Confidence: conf / float64(len(words)),
		Bounds:     domain.Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY},
	}
}
