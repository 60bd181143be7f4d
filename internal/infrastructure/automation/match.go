package automation

import (
	"context"
	"errors"
	"image"
	"math"
	"sort"
)

// Match is the best template position within a screenshot, in the
// screenshot's coordinate space.
type Match struct {
	At    image.Point
	Score float64
}

// grayImage is a luminance plane with summed-area tables for O(1) window
// sums.
type grayImage struct {
	w, h  int
	pix   []float64
	sum   []float64
	sumSq []float64
}

func toGray(img image.Image) *grayImage {
	b := img.Bounds()
	g := &grayImage{w: b.Dx(), h: b.Dy(), pix: make([]float64, b.Dx()*b.Dy())}
	for y := 0; y < g.h; y++ {
		for x := 0; x < g.w; x++ {
			r, gr, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			g.pix[y*g.w+x] = (0.299*float64(r) + 0.587*float64(gr) + 0.114*float64(bl)) / 257
		}
	}
	return g
}

// downsample averages f×f blocks.
func (g *grayImage) downsample(f int) *grayImage {
	out := &grayImage{w: g.w / f, h: g.h / f}
	out.pix = make([]float64, out.w*out.h)
	area := float64(f * f)
	for y := 0; y < out.h; y++ {
		for x := 0; x < out.w; x++ {
			var s float64
			for dy := 0; dy < f; dy++ {
				row := (y*f + dy) * g.w
				for dx := 0; dx < f; dx++ {
					s += g.pix[row+x*f+dx]
				}
			}
			out.pix[y*out.w+x] = s / area
		}
	}
	return out
}

func (g *grayImage) integrate() {
	stride := g.w + 1
	g.sum = make([]float64, stride*(g.h+1))
	g.sumSq = make([]float64, stride*(g.h+1))
	for y := 0; y < g.h; y++ {
		var rowSum, rowSq float64
		for x := 0; x < g.w; x++ {
			v := g.pix[y*g.w+x]
			rowSum += v
			rowSq += v * v
			g.sum[(y+1)*stride+x+1] = g.sum[y*stride+x+1] + rowSum
			g.sumSq[(y+1)*stride+x+1] = g.sumSq[y*stride+x+1] + rowSq
		}
	}
}

func (g *grayImage) windowSums(x, y, w, h int) (float64, float64) {
	stride := g.w + 1
	a, b := y*stride+x, y*stride+x+w
	c, d := (y+h)*stride+x, (y+h)*stride+x+w
	return g.sum[d] - g.sum[b] - g.sum[c] + g.sum[a], g.sumSq[d] - g.sumSq[b] - g.sumSq[c] + g.sumSq[a]
}

// template is a zero-mean template with its norm precomputed.
type template struct {
	*grayImage
	centered []float64
	norm     float64
}

func newTemplate(g *grayImage) (*template, error) {
	n := float64(len(g.pix))
	var mean float64
	for _, v := range g.pix {
		mean += v
	}
	mean /= n
	t := &template{grayImage: g, centered: make([]float64, len(g.pix))}
	var ss float64
	for i, v := range g.pix {
		c := v - mean
		t.centered[i] = c
		ss += c * c
	}
	t.norm = math.Sqrt(ss)
	if t.norm < 1e-6 {
		return nil, errors.New("template has no contrast")
	}
	return t, nil
}

// ncc is the normalized cross-correlation of t placed at (x, y) in g.
func ncc(g *grayImage, t *template, x, y int) float64 {
	n := float64(t.w * t.h)
	s, sq := g.windowSums(x, y, t.w, t.h)
	variance := sq - s*s/n
	if variance < 1e-6 {
		return 0
	}
	var cross float64
	for ty := 0; ty < t.h; ty++ {
		row := (y+ty)*g.w + x
		trow := ty * t.w
		for tx := 0; tx < t.w; tx++ {
			cross += g.pix[row+tx] * t.centered[trow+tx]
		}
	}
	return cross / (t.norm * math.Sqrt(variance))
}

// search scores every position inside the given region and returns the best
// k candidates.
func search(ctx context.Context, g *grayImage, t *template, region image.Rectangle, k int) ([]Match, error) {
	var best []Match
	for y := region.Min.Y; y < region.Max.Y; y++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for x := region.Min.X; x < region.Max.X; x++ {
			score := ncc(g, t, x, y)
			if len(best) < k || score > best[len(best)-1].Score {
				best = append(best, Match{At: image.Pt(x, y), Score: score})
				sort.Slice(best, func(i, j int) bool { return best[i].Score > best[j].Score })
				if len(best) > k {
					best = best[:k]
				}
			}
		}
	}
	return best, nil
}

const (
	minCoarseSide = 8
	maxPyramid    = 8
	coarseKeep    = 4
)

// MatchTemplate finds tpl inside img using normalized cross-correlation. Large
// templates are located on a downsampled pair first and refined at full
// resolution around the strongest coarse candidates.
func MatchTemplate(ctx context.Context, img, tpl image.Image) (Match, error) {
	g := toGray(img)
	tg := toGray(tpl)
	if tg.w == 0 || tg.h == 0 {
		return Match{}, errors.New("empty template")
	}
	if tg.w > g.w || tg.h > g.h {
		return Match{}, nil
	}
	t, err := newTemplate(tg)
	if err != nil {
		return Match{}, err
	}
	g.integrate()
	full := image.Rect(0, 0, g.w-t.w+1, g.h-t.h+1)

	f := 1
	for f < maxPyramid && tg.w/(f*2) >= minCoarseSide && tg.h/(f*2) >= minCoarseSide {
		f *= 2
	}
	if f == 1 {
		best, err := search(ctx, g, t, full, 1)
		if err != nil || len(best) == 0 {
			return Match{}, err
		}
		return offset(best[0], img), nil
	}

	cg := g.downsample(f)
	cg.integrate()
	ct, err := newTemplate(tg.downsample(f))
	if err != nil {
		return Match{}, err
	}
	coarse, err := search(ctx, cg, ct, image.Rect(0, 0, cg.w-ct.w+1, cg.h-ct.h+1), coarseKeep)
	if err != nil {
		return Match{}, err
	}

	var result Match
	result.Score = math.Inf(-1)
	for _, c := range coarse {
		region := image.Rect(c.At.X*f-2*f, c.At.Y*f-2*f, c.At.X*f+2*f+1, c.At.Y*f+2*f+1).Intersect(full)
		fine, err := search(ctx, g, t, region, 1)
		if err != nil {
			return Match{}, err
		}
		if len(fine) > 0 && fine[0].Score > result.Score {
			result = fine[0]
		}
	}
	if math.IsInf(result.Score, -1) {
		return Match{}, nil
	}
	return offset(result, img), nil
}

func offset(m Match, img image.Image) Match {
	m.At = m.At.Add(img.Bounds().Min)
	return m
}
