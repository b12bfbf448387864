package coords

import "fmt"

// Layout is the full table resolved for one display size.
type Layout struct {
	Width  int
	Height int

	named        map[string]ScreenPoint
	cameraReady  [Slots]ScreenPoint
	cameraToggle [Slots]ScreenPoint
	videoBox     [Slots]ScreenPoint
}

// NewLayout validates w x h and scales every entry once.
func NewLayout(w, h int) (*Layout, error) {
	if err := ValidateResolution(w, h); err != nil {
		return nil, err
	}

	l := &Layout{
		Width:  w,
		Height: h,
		named:  make(map[string]ScreenPoint, len(named)),
	}
	for name, bp := range named {
		l.named[name] = Scale(bp.x, bp.y, w, h)
	}
	for i := 0; i < Slots; i++ {
		l.cameraReady[i] = Scale(cameraReady[i].x, cameraReady[i].y, w, h)
		l.cameraToggle[i] = Scale(cameraToggle[i].x, cameraToggle[i].y, w, h)
		l.videoBox[i] = Scale(videoBox[i].x, videoBox[i].y, w, h)
	}
	return l, nil
}

// Point returns a named entry. It panics on an unknown name since names are compile-time constants.
func (l *Layout) Point(name string) ScreenPoint {
	p, ok := l.named[name]
	if !ok {
		panic(fmt.Sprintf("coords: unknown target %q", name))
	}
	return p
}

// LoginReady is the pixel that turns white once the login form is usable.
func (l *Layout) LoginReady() ColoredTarget {
	return ColoredTarget{Point: l.named[LoginReady], Color: ColorLoginReady}
}

// CameraReady is slot i's online indicator in the camera list.
func (l *Layout) CameraReady(i int) (ColoredTarget, error) {
	if err := checkSlot(i); err != nil {
		return ColoredTarget{}, err
	}
	return ColoredTarget{Point: l.cameraReady[i], Color: ColorCameraReady}, nil
}

// CameraToggle is slot i's enable button in the camera list.
func (l *Layout) CameraToggle(i int) (ScreenPoint, error) {
	if err := checkSlot(i); err != nil {
		return ScreenPoint{}, err
	}
	return l.cameraToggle[i], nil
}

// VideoBox is the center of video tile i.
func (l *Layout) VideoBox(i int) (ScreenPoint, error) {
	if err := checkSlot(i); err != nil {
		return ScreenPoint{}, err
	}
	return l.videoBox[i], nil
}

// VideoNotOn is tile i's "no picture yet" color.
func (l *Layout) VideoNotOn(i int) (ColoredTarget, error) {
	p, err := l.VideoBox(i)
	if err != nil {
		return ColoredTarget{}, err
	}
	return ColoredTarget{Point: p, Color: ColorVideoNotOn}, nil
}

// VideoNotOnAlt is the second "no picture yet" color of tile i.
func (l *Layout) VideoNotOnAlt(i int) (ColoredTarget, error) {
	p, err := l.VideoBox(i)
	if err != nil {
		return ColoredTarget{}, err
	}
	return ColoredTarget{Point: p, Color: ColorVideoBlank}, nil
}

func checkSlot(i int) error {
	if i < 0 || i >= Slots {
		return fmt.Errorf("%w: slot %d", ErrUnknownTarget, i)
	}
	return nil
}
