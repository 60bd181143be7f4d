package automation

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/deskgate/internal/domain"
)

type fakeDesktop struct {
	tree    *domain.Control
	shot    image.Image
	clicks  []domain.Point
	typed   []string
	invoked []domain.Target
	invoke  error
}

func (f *fakeDesktop) Windows(context.Context) ([]domain.Window, error) { return nil, nil }

func (f *fakeDesktop) Invoke(_ context.Context, _ domain.Window, target domain.Target) (string, error) {
	f.invoked = append(f.invoked, target)
	if f.invoke != nil {
		return "", f.invoke
	}
	return "invoked", nil
}

func (f *fakeDesktop) ControlTree(context.Context, domain.Window, int) (*domain.Control, error) {
	return f.tree, nil
}

func (f *fakeDesktop) Capture(context.Context, domain.Rect) (image.Image, error) { return f.shot, nil }

func (f *fakeDesktop) Click(_ context.Context, at domain.Point) error {
	f.clicks = append(f.clicks, at)
	return nil
}

func (f *fakeDesktop) Type(_ context.Context, text string) error {
	f.typed = append(f.typed, text)
	return nil
}

func boolPtr(b bool) *bool { return &b }

func settingsTree() *domain.Control {
	return &domain.Control{
		Name: "Settings", Role: "Window", Bounds: domain.Rect{Width: 800, Height: 600},
		Children: []*domain.Control{
			{Name: "Bluetooth", Role: "Text", Bounds: domain.Rect{X: 10, Y: 10, Width: 100, Height: 20}},
			{Name: "Devices", Role: "Group", Children: []*domain.Control{
				{Name: "Bluetooth", Role: "ToggleButton", Toggled: boolPtr(true), Bounds: domain.Rect{X: 700, Y: 40, Width: 40, Height: 20}},
			}},
		},
	}
}

func TestFindControlMatchesRoleAndName(t *testing.T) {
	root := settingsTree()

	c := FindControl(root, "bluetooth", "ControlType.ToggleButton")
	require.NotNil(t, c)
	assert.Equal(t, 700, c.Bounds.X)

	c = FindControl(root, "Bluetooth", "")
	require.NotNil(t, c)
	assert.Equal(t, "Text", c.Role)

	assert.Nil(t, FindControl(root, "Blue", ""))
}

func TestTreeStrategyToggle(t *testing.T) {
	desk := &fakeDesktop{tree: settingsTree()}
	s := TreeStrategy{Tree: desk, Input: desk, Depth: 5}
	ctx := context.Background()

	detail, err := s.Attempt(ctx, settingsFrame, domain.Target{Element: "Bluetooth", Role: "ToggleButton", Operation: domain.OpToggle, State: boolPtr(true)})
	require.NoError(t, err)
	assert.Contains(t, detail, "already on")
	assert.Empty(t, desk.clicks)

	_, err = s.Attempt(ctx, settingsFrame, domain.Target{Element: "Bluetooth", Role: "ToggleButton", Operation: domain.OpToggle, State: boolPtr(false)})
	require.NoError(t, err)
	require.Len(t, desk.clicks, 1)
	assert.Equal(t, domain.Point{X: 720, Y: 50}, desk.clicks[0])

	_, err = s.Attempt(ctx, settingsFrame, domain.Target{Element: "Wi-Fi", Operation: domain.OpClick})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestNativeStrategyNeedsElement(t *testing.T) {
	desk := &fakeDesktop{invoke: domain.ErrNotFound}
	s := NativeStrategy{API: desk}

	_, err := s.Attempt(context.Background(), notepad, domain.Target{Template: "/tmp/x.png"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Empty(t, desk.invoked)

	_, err = s.Attempt(context.Background(), notepad, domain.Target{Element: "File"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Len(t, desk.invoked, 1)
}

// texture builds a deterministic image of 3x3 pixel random blocks so that
// downsampled copies keep enough structure to correlate.
func texture(w, h int, seed int64) *image.Gray {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewGray(image.Rect(0, 0, w, h))
	for by := 0; by < h; by += 3 {
		for bx := 0; bx < w; bx += 3 {
			v := uint8(rng.Intn(256))
			for y := by; y < by+3 && y < h; y++ {
				for x := bx; x < bx+3 && x < w; x++ {
					img.SetGray(x, y, color.Gray{Y: v})
				}
			}
		}
	}
	return img
}

func TestMatchTemplateFindsCrop(t *testing.T) {
	shot := texture(160, 120, 7)
	for _, tc := range []struct {
		at   image.Point
		size int
	}{
		{image.Pt(37, 21), 24},
		{image.Pt(88, 60), 40},
		{image.Pt(5, 80), 10},
	} {
		crop := shot.SubImage(image.Rect(tc.at.X, tc.at.Y, tc.at.X+tc.size, tc.at.Y+tc.size))
		m, err := MatchTemplate(context.Background(), shot, crop)
		require.NoError(t, err)
		assert.Equal(t, tc.at, m.At, "template of size %d", tc.size)
		assert.InDelta(t, 1.0, m.Score, 1e-6)
	}
}

func TestMatchTemplateRejectsFlatTemplate(t *testing.T) {
	flat := image.NewGray(image.Rect(0, 0, 10, 10))
	_, err := MatchTemplate(context.Background(), texture(50, 50, 1), flat)
	require.Error(t, err)
}

func TestImageStrategyClicksMatchCenter(t *testing.T) {
	shot := texture(200, 150, 11)
	crop := shot.SubImage(image.Rect(60, 32, 92, 64))
	desk := &fakeDesktop{shot: shot}
	s := ImageStrategy{Screen: desk, Input: desk, Confidence: 0.9, Load: func(string) (image.Image, error) { return crop, nil }}

	window := domain.Window{Title: "App", Bounds: domain.Rect{X: 1000, Y: 500, Width: 200, Height: 150}}
	_, err := s.Attempt(context.Background(), window, domain.Target{Template: "button.png", Operation: domain.OpClick})
	require.NoError(t, err)
	require.Len(t, desk.clicks, 1)
	assert.Equal(t, domain.Point{X: 1000 + 60 + 16, Y: 500 + 32 + 16}, desk.clicks[0])

	other := texture(32, 32, 99)
	s.Load = func(string) (image.Image, error) { return other, nil }
	_, err = s.Attempt(context.Background(), window, domain.Target{Template: "other.png"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

type fixedRecognizer []domain.TextBox

func (f fixedRecognizer) Recognize(context.Context, image.Image) ([]domain.TextBox, error) { return f, nil }

func TestOCRStrategyPrefersExactText(t *testing.T) {
	boxes := fixedRecognizer{
		{Text: "Bluetooth & devices", Confidence: 96, Bounds: domain.Rect{X: 10, Y: 10, Width: 120, Height: 20}},
		{Text: "Bluetooth", Confidence: 80, Bounds: domain.Rect{X: 300, Y: 200, Width: 60, Height: 20}},
	}
	desk := &fakeDesktop{shot: image.NewGray(image.Rect(0, 0, 400, 300))}
	s := OCRStrategy{Screen: desk, Input: desk, Recognizer: boxes}
	window := domain.Window{Title: "Settings", Bounds: domain.Rect{X: 50, Y: 60, Width: 400, Height: 300}}

	detail, err := s.Attempt(context.Background(), window, domain.Target{Element: "bluetooth", Operation: domain.OpType, Text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, domain.Point{X: 50 + 330, Y: 60 + 210}, desk.clicks[0])
	assert.Equal(t, []string{"hi"}, desk.typed)
	assert.Contains(t, detail, "typed 2 characters")

	_, err = s.Attempt(context.Background(), window, domain.Target{Element: "Bluetooth", Operation: domain.OpToggle, State: boolPtr(true)})
	assert.True(t, errors.Is(err, errUnsupportedToggle))

	_, err = OCRStrategy{Screen: desk, Input: desk}.Attempt(context.Background(), window, domain.Target{Element: "x"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrNotFound))
}

func TestBestTextMatch(t *testing.T) {
	boxes := []domain.TextBox{
		{Text: "Save as", Confidence: 90},
		{Text: "Save", Confidence: 60},
		{Text: "SAVE", Confidence: 70},
	}
	best, ok := BestTextMatch(boxes, "save")
	require.True(t, ok)
	assert.Equal(t, "SAVE", best.Text)

	_, ok = BestTextMatch(boxes, "Open")
	assert.False(t, ok)
}
