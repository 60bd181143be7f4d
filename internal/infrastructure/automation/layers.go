package automation

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strings"

	"github.com/doeshing/deskgate/internal/domain"
	"github.com/doeshing/deskgate/internal/ports"
)

var errUnsupportedToggle = errors.New("cannot read toggle state from pixels")

// Backend is a desktop automation implementation that provides every
// primitive the standard strategies need.
type Backend interface {
	ports.WindowSource
	ports.AccessibilityAPI
	ports.ControlTreeSource
	ports.ScreenCapturer
	ports.InputDriver
}

// DefaultStrategies builds the four standard layers. recognizer may be nil,
// in which case the OCR layer reports an error on every attempt.
func DefaultStrategies(backend Backend, recognizer ports.TextRecognizer, settings domain.AutomationSettings) []Strategy {
	depth := settings.ControlTreeDepth
	if depth <= 0 {
		depth = domain.DefaultControlTreeDepth
	}
	confidence := settings.ImageConfidence
	if confidence <= 0 {
		confidence = domain.DefaultImageConfidence
	}
	return []Strategy{
		NativeStrategy{API: backend},
		TreeStrategy{Tree: backend, Input: backend, Depth: depth},
		ImageStrategy{Screen: backend, Input: backend, Confidence: confidence, Load: LoadTemplate},
		OCRStrategy{Screen: backend, Input: backend, Recognizer: recognizer},
	}
}

// NativeStrategy operates the element through accessibility patterns such as
// Invoke, Toggle and Value.
type NativeStrategy struct {
	API ports.AccessibilityAPI
}

func (s NativeStrategy) Layer() domain.Layer { return domain.LayerNativeAPI }

func (s NativeStrategy) Attempt(ctx context.Context, window domain.Window, target domain.Target) (string, error) {
	if target.Element == "" {
		return "", fmt.Errorf("no element name to query: %w", domain.ErrNotFound)
	}
	return s.API.Invoke(ctx, window, target)
}

// TreeStrategy walks the control tree for a control matching name and role,
// then drives it with synthesized input at its center.
type TreeStrategy struct {
	Tree  ports.ControlTreeSource
	Input ports.InputDriver
	Depth int
}

func (s TreeStrategy) Layer() domain.Layer { return domain.LayerUITree }

func (s TreeStrategy) Attempt(ctx context.Context, window domain.Window, target domain.Target) (string, error) {
	if target.Element == "" {
		return "", fmt.Errorf("no element name to match: %w", domain.ErrNotFound)
	}
	root, err := s.Tree.ControlTree(ctx, window, s.Depth)
	if err != nil {
		return "", err
	}
	control := FindControl(root, target.Element, target.Role)
	if control == nil {
		return "", fmt.Errorf("no %s control named %q: %w", roleLabel(target.Role), target.Element, domain.ErrNotFound)
	}
	if control.Bounds.Empty() {
		return "", fmt.Errorf("control %q is off screen: %w", control.Name, domain.ErrNotFound)
	}
	if target.Operation == domain.OpToggle && target.State != nil && control.Toggled != nil && *control.Toggled == *target.State {
		return fmt.Sprintf("%q already %s", control.Name, onOff(*target.State)), nil
	}
	if err := operate(ctx, s.Input, control.Bounds.Center(), target); err != nil {
		return "", err
	}
	return describeOperation(target, control.Name), nil
}

// FindControl returns the first control, breadth first, whose name or
// automation id equals name and whose role matches role when role is set.
func FindControl(root *domain.Control, name, role string) *domain.Control {
	if root == nil {
		return nil
	}
	wantName := normalize(name)
	wantRole := normalizeRole(role)
	queue := []*domain.Control{root}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		if (normalize(c.Name) == wantName || (c.AutomationID != "" && normalize(c.AutomationID) == wantName)) &&
			(wantRole == "" || normalizeRole(c.Role) == wantRole) {
			return c
		}
		queue = append(queue, c.Children...)
	}
	return nil
}

func normalizeRole(role string) string {
	role = strings.TrimPrefix(strings.TrimSpace(role), "ControlType.")
	return strings.ReplaceAll(normalize(role), " ", "")
}

// ImageStrategy looks for a template image inside a capture of the window.
type ImageStrategy struct {
	Screen     ports.ScreenCapturer
	Input      ports.InputDriver
	Confidence float64
	Load       func(path string) (image.Image, error)
}

func (s ImageStrategy) Layer() domain.Layer { return domain.LayerImageMatch }

func (s ImageStrategy) Attempt(ctx context.Context, window domain.Window, target domain.Target) (string, error) {
	if target.Template == "" {
		return "", fmt.Errorf("no template image: %w", domain.ErrNotFound)
	}
	if target.Operation == domain.OpToggle && target.State != nil {
		return "", errUnsupportedToggle
	}
	if window.Bounds.Empty() {
		return "", fmt.Errorf("window %q has no visible area: %w", window.Title, domain.ErrNotFound)
	}
	tpl, err := s.Load(target.Template)
	if err != nil {
		return "", err
	}
	shot, err := s.Screen.Capture(ctx, window.Bounds)
	if err != nil {
		return "", err
	}
	match, err := MatchTemplate(ctx, shot, tpl)
	if err != nil {
		return "", err
	}
	if match.Score < s.Confidence {
		return "", fmt.Errorf("best template match %.2f below %.2f: %w", match.Score, s.Confidence, domain.ErrNotFound)
	}
	origin := shot.Bounds().Min
	tb := tpl.Bounds()
	at := domain.Point{
		X: window.Bounds.X + match.At.X - origin.X + tb.Dx()/2,
		Y: window.Bounds.Y + match.At.Y - origin.Y + tb.Dy()/2,
	}
	if err := operate(ctx, s.Input, at, target); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s (match %.2f)", describeOperation(target, target.Template), match.Score), nil
}

// LoadTemplate decodes a PNG or JPEG template from disk.
func LoadTemplate(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open template: %w", err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode template %s: %w", path, err)
	}
	return img, nil
}

// OCRStrategy recognizes text in a capture of the window and acts on the
// centroid of the best matching text box.
type OCRStrategy struct {
	Screen     ports.ScreenCapturer
	Input      ports.InputDriver
	Recognizer ports.TextRecognizer
}

func (s OCRStrategy) Layer() domain.Layer { return domain.LayerOCR }

func (s OCRStrategy) Attempt(ctx context.Context, window domain.Window, target domain.Target) (string, error) {
	if s.Recognizer == nil {
		return "", errors.New("no OCR engine configured")
	}
	if target.Element == "" {
		return "", fmt.Errorf("no element text to read: %w", domain.ErrNotFound)
	}
	if target.Operation == domain.OpToggle && target.State != nil {
		return "", errUnsupportedToggle
	}
	if window.Bounds.Empty() {
		return "", fmt.Errorf("window %q has no visible area: %w", window.Title, domain.ErrNotFound)
	}
	shot, err := s.Screen.Capture(ctx, window.Bounds)
	if err != nil {
		return "", err
	}
	boxes, err := s.Recognizer.Recognize(ctx, shot)
	if err != nil {
		return "", err
	}
	box, ok := BestTextMatch(boxes, target.Element)
	if !ok {
		return "", fmt.Errorf("text %q not on screen: %w", target.Element, domain.ErrNotFound)
	}
	origin := shot.Bounds().Min
	center := box.Bounds.Center()
	at := domain.Point{X: window.Bounds.X + center.X - origin.X, Y: window.Bounds.Y + center.Y - origin.Y}
	if err := operate(ctx, s.Input, at, target); err != nil {
		return "", err
	}
	return describeOperation(target, box.Text), nil
}

// BestTextMatch prefers an exact match over a substring match and breaks
// ties by recognition confidence.
func BestTextMatch(boxes []domain.TextBox, text string) (domain.TextBox, bool) {
	want := normalize(text)
	if want == "" {
		return domain.TextBox{}, false
	}
	bestRank := 0
	var best domain.TextBox
	for _, box := range boxes {
		got := normalize(box.Text)
		rank := 0
		switch {
		case got == want:
			rank = 2
		case strings.Contains(got, want):
			rank = 1
		}
		if rank == 0 {
			continue
		}
		if rank > bestRank || (rank == bestRank && box.Confidence > best.Confidence) {
			bestRank, best = rank, box
		}
	}
	return best, bestRank > 0
}

func operate(ctx context.Context, input ports.InputDriver, at domain.Point, target domain.Target) error {
	if err := input.Click(ctx, at); err != nil {
		return fmt.Errorf("click at %d,%d: %w", at.X, at.Y, err)
	}
	if target.Operation == domain.OpType {
		if err := input.Type(ctx, target.Text); err != nil {
			return fmt.Errorf("type text: %w", err)
		}
	}
	return nil
}

func describeOperation(target domain.Target, label string) string {
	switch target.Operation {
	case domain.OpType:
		return fmt.Sprintf("typed %d characters into %q", len([]rune(target.Text)), label)
	case domain.OpToggle:
		if target.State != nil {
			return fmt.Sprintf("switched %q %s", label, onOff(*target.State))
		}
		return fmt.Sprintf("toggled %q", label)
	default:
		return fmt.Sprintf("clicked %q", label)
	}
}

func onOff(state bool) string {
	if state {
		return "on"
	}
	return "off"
}

func roleLabel(role string) string {
	if role == "" {
		return "any"
	}
	return role
}
