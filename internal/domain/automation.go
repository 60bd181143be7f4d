package domain

import (
	"strings"
	"time"
)

// Layer names one automation strategy.
type Layer string

const (
	LayerNativeAPI  Layer = "native_api"
	LayerUITree     Layer = "ui_tree"
	LayerImageMatch Layer = "image_match"
	LayerOCR        Layer = "ocr"
	LayerFailed     Layer = "failed"
)

// LayerOrder is the fixed fallback sequence.
var LayerOrder = []Layer{LayerNativeAPI, LayerUITree, LayerImageMatch, LayerOCR}

// AttemptOutcome describes how a single layer attempt ended.
type AttemptOutcome string

const (
	AttemptSuccess  AttemptOutcome = "success"
	AttemptNotFound AttemptOutcome = "not_found"
	AttemptTimeout  AttemptOutcome = "timeout"
	AttemptError    AttemptOutcome = "error"
)

// LayerAttempt is the record of one layer's try at a target.
type LayerAttempt struct {
	Layer    Layer          `json:"layer"`
	Outcome  AttemptOutcome `json:"outcome"`
	Reason   string         `json:"reason,omitempty"`
	Duration time.Duration  `json:"duration"`
}

// Operation is what to do with a resolved element.
type Operation string

const (
	OpClick  Operation = "click"
	OpToggle Operation = "toggle"
	OpType   Operation = "type"
)

// Target identifies a UI element inside an owning application window.
type Target struct {
	Window    string
	Process   string
	Element   string
	Role      string
	Template  string
	Operation Operation
	Text      string
	State     *bool
}

// Describe renders a compact human label.
func (t Target) Describe() string {
	var parts []string
	if t.Process != "" {
		parts = append(parts, "process="+t.Process)
	}
	if t.Window != "" {
		parts = append(parts, "window="+t.Window)
	}
	if t.Element != "" {
		parts = append(parts, "element="+t.Element)
	}
	if t.Role != "" {
		parts = append(parts, "role="+t.Role)
	}
	return strings.Join(parts, " ")
}

// Locates reports whether the target names something to find on screen.
func (t Target) Locates() bool {
	return t.Element != "" || t.Template != ""
}

// Rect is a screen rectangle in pixels.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Center returns the midpoint of the rectangle.
func (r Rect) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Point is a screen coordinate.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Window is a top-level desktop window.
type Window struct {
	Handle    int64  `json:"handle"`
	PID       int    `json:"pid"`
	Process   string `json:"process"`
	Title     string `json:"title"`
	ClassName string `json:"class"`
	Bounds    Rect   `json:"bounds"`
}

// Control is a node of an accessibility control tree.
type Control struct {
	Name         string     `json:"name"`
	Role         string     `json:"role"`
	AutomationID string     `json:"automation_id,omitempty"`
	Bounds       Rect       `json:"bounds"`
	Toggled      *bool      `json:"toggled,omitempty"`
	Children     []*Control `json:"children,omitempty"`
}

// TextBox is a recognized text fragment with its bounding box.
type TextBox struct {
	Text       string
	Confidence float64
	Bounds     Rect
}

// Resolution reports where and how an interactive target was handled.
type Resolution struct {
	Layer    Layer
	Window   Window
	Detail   string
	Attempts []LayerAttempt
}
