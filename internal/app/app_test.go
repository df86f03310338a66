package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/signify/internal/calibration"
	"github.com/ayusman/signify/internal/capture"
	"github.com/ayusman/signify/internal/gesture"
	"github.com/ayusman/signify/internal/glove"
	"github.com/ayusman/signify/internal/log"
	"github.com/ayusman/signify/internal/store"
)

func TestMain(m *testing.M) {
	log.Set(zap.NewNop())
	os.Exit(m.Run())
}

var fullCal = glove.Calibration{System: 3, Gyro: 3, Accel: 3, Mag: 3}

func handA() glove.HandReading {
	return glove.HandReading{
		Roll:        82.0,
		Pitch:       -78.5,
		Yaw:         97.5,
		Flex:        [glove.NumFingers]int{54, 16, 28, 106, 160},
		Calibration: fullCal,
	}
}

func handRest() glove.HandReading {
	return glove.HandReading{
		Roll:        344.44,
		Pitch:       -10.88,
		Yaw:         70.25,
		Flex:        [glove.NumFingers]int{891, 893, 890, 893, 159},
		Calibration: fullCal,
	}
}

func frameA() glove.Frame {
	return glove.Frame{Left: handRest(), Right: handA(), At: time.Now()}
}

// eventLog collects published events.
type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) Publish(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) ofType(t EventType) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Event
	for _, e := range l.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func newTestApp(t *testing.T, cfg Config) (*App, *recordingAnnouncer, *eventLog) {
	t.Helper()

	ann := newRecordingAnnouncer()
	cfg.Announcer = ann
	if cfg.Dominant == nil {
		right := glove.Right
		cfg.Dominant = &right
	}
	if cfg.CalibrationResample == 0 {
		cfg.CalibrationResample = time.Millisecond
	}

	a := New(cfg)
	events := &eventLog{}
	a.AddSink(events)

	lib, err := gesture.NewLibrary([]gesture.Exemplar{
		gesture.SingleHandExemplar("A", gesture.KindStatic, glove.Right, gesture.StaticHandFeature(handA())),
	})
	if err != nil {
		t.Fatalf("NewLibrary() error = %v", err)
	}
	a.SetLibrary(lib)

	return a, ann, events
}

func TestApp_CalibratedFrameIsClassified(t *testing.T) {
	a, ann, events := newTestApp(t, Config{})

	if err := a.process(context.Background(), frameA()); err != nil {
		t.Fatalf("process() error = %v", err)
	}

	said := ann.Said()
	if len(said) != 1 || said[0].gesture != "A" {
		t.Fatalf("announced %+v, want [A]", said)
	}
	if a.Gate().State() != calibration.Calibrated {
		t.Errorf("gate state = %v, want calibrated", a.Gate().State())
	}

	got := events.ofType(EventGesture)
	if len(got) != 1 || got[0].Gesture.Name != "A" || got[0].Gesture.BothHands {
		t.Errorf("gesture events = %+v", got)
	}
}

func TestApp_RepeatWithinCooldownAnnouncedOnce(t *testing.T) {
	a, ann, _ := newTestApp(t, Config{Cooldown: 2 * time.Second})

	for i := 0; i < 2; i++ {
		if err := a.process(context.Background(), frameA()); err != nil {
			t.Fatalf("process() error = %v", err)
		}
	}

	if got := len(ann.Said()); got != 1 {
		t.Errorf("announced %d times, want 1", got)
	}
	if _, suppressed := a.Dispatcher().Counts(); suppressed != 1 {
		t.Errorf("suppressed = %d, want 1", suppressed)
	}
}

func TestApp_UncalibratedFrameGoesToGate(t *testing.T) {
	a, ann, events := newTestApp(t, Config{})

	f := frameA()
	f.Left.Calibration = glove.Calibration{System: 1, Gyro: 1, Accel: 1, Mag: 1}
	f.Right.Calibration = glove.Calibration{System: 1, Gyro: 1, Accel: 1, Mag: 1}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := a.process(ctx, f)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("process() error = %v, want deadline exceeded", err)
	}

	if got := len(ann.Said()); got != 0 {
		t.Errorf("announced %d times during calibration, want 0", got)
	}
	if a.Gate().State() != calibration.NotCalibrated {
		t.Errorf("gate state = %v, want not calibrated", a.Gate().State())
	}

	progress := events.ofType(EventCalibration)
	if len(progress) == 0 {
		t.Fatal("no calibration progress published")
	}
	p := progress[0].Calibration
	if p.State != calibration.CalibratingLeft || p.Hint == "" {
		t.Errorf("first progress = %+v", p)
	}
}

func TestApp_CalibrationCompletesFromQueue(t *testing.T) {
	a, ann, events := newTestApp(t, Config{})

	f := frameA()
	f.Left.Calibration = glove.Calibration{System: 3, Gyro: 1, Accel: 3, Mag: 3}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(2 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				a.Queue().TryPush(frameA())
			}
		}
	}()

	err := a.process(ctx, f)
	close(done)
	if err != nil {
		t.Fatalf("process() error = %v", err)
	}

	if a.Gate().State() != calibration.Calibrated {
		t.Errorf("gate state = %v, want calibrated", a.Gate().State())
	}
	if got := len(ann.Said()); got != 0 {
		t.Errorf("calibration step announced %d gestures, want 0", got)
	}

	var sawLeft, sawRight bool
	for _, e := range events.ofType(EventCalibration) {
		switch e.Calibration.State {
		case calibration.CalibratingLeft:
			sawLeft = true
		case calibration.CalibratingRight:
			sawRight = true
		}
	}
	if !sawLeft || !sawRight {
		t.Errorf("progress for left=%v right=%v, want both", sawLeft, sawRight)
	}
}

func TestApp_DisabledSkipsClassification(t *testing.T) {
	a, ann, events := newTestApp(t, Config{})

	a.SetEnabled(false)
	if a.IsEnabled() {
		t.Fatal("IsEnabled() = true after SetEnabled(false)")
	}

	if err := a.process(context.Background(), frameA()); err != nil {
		t.Fatalf("process() error = %v", err)
	}
	if got := len(ann.Said()); got != 0 {
		t.Errorf("announced %d times while disabled, want 0", got)
	}

	a.SetEnabled(true)
	if err := a.process(context.Background(), frameA()); err != nil {
		t.Fatalf("process() error = %v", err)
	}
	if got := len(ann.Said()); got != 1 {
		t.Errorf("announced %d times after resume, want 1", got)
	}

	toggles := events.ofType(EventEnabled)
	if len(toggles) != 2 || *toggles[0].Enabled || !*toggles[1].Enabled {
		t.Errorf("enabled events = %+v", toggles)
	}
}

func TestApp_UnknownPoseNotAnnounced(t *testing.T) {
	a, ann, _ := newTestApp(t, Config{})

	f := frameA()
	f.Right = handRest()
	if err := a.process(context.Background(), f); err != nil {
		t.Fatalf("process() error = %v", err)
	}
	if got := len(ann.Said()); got != 0 {
		t.Errorf("announced %d times, want 0", got)
	}
}

func TestApp_LoadGestures(t *testing.T) {
	s, err := store.New(filepath.Join(t.TempDir(), "gestures.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	r := handA()
	right := &store.Hand{Roll: r.Roll, Pitch: r.Pitch, Yaw: r.Yaw, Fingers: r.Flex}
	l := handRest()
	left := &store.Hand{Roll: l.Roll, Pitch: l.Pitch, Yaw: l.Yaw, Fingers: l.Flex}

	for _, g := range []*store.Gesture{
		{Name: "A", Kind: store.GestureKindStatic, Right: right},
		{Name: "BUENOS", Kind: store.GestureKindStatic, Left: left, Right: right},
	} {
		if err := s.Gestures().Create(g); err != nil {
			t.Fatalf("Create(%s) error = %v", g.Name, err)
		}
	}

	a := New(Config{Store: s, Announcer: newRecordingAnnouncer()})
	n, err := a.LoadGestures()
	if err != nil {
		t.Fatalf("LoadGestures() error = %v", err)
	}
	if n != 2 {
		t.Errorf("LoadGestures() = %d, want 2", n)
	}

	st := a.Status()
	if st.Exemplars.SingleHand != 1 || st.Exemplars.BothHands != 1 {
		t.Errorf("exemplars = %+v, want 1 single, 1 both", st.Exemplars)
	}

	if err := s.Gestures().Create(&store.Gesture{Name: "R", Kind: store.GestureKindStatic, Left: left}); err != nil {
		t.Fatalf("Create(R) error = %v", err)
	}
	if n, err := a.ReloadIndex(); err != nil || n != 3 {
		t.Errorf("ReloadIndex() = %d, %v, want 3, nil", n, err)
	}
}

func TestApp_LoadGesturesWithoutStore(t *testing.T) {
	a := New(Config{Announcer: newRecordingAnnouncer()})
	if _, err := a.LoadGestures(); err == nil {
		t.Error("LoadGestures() without store should fail")
	}
}

func TestApp_Status(t *testing.T) {
	a, _, _ := newTestApp(t, Config{})

	if err := a.process(context.Background(), frameA()); err != nil {
		t.Fatalf("process() error = %v", err)
	}

	st := a.Status()
	if !st.Enabled || st.Running {
		t.Errorf("enabled=%v running=%v, want true false", st.Enabled, st.Running)
	}
	if st.Calibration != calibration.Calibrated || st.Left != fullCal {
		t.Errorf("calibration = %v %+v", st.Calibration, st.Left)
	}
	if st.Processed != 1 || st.Dispatched != 1 {
		t.Errorf("processed=%d dispatched=%d, want 1 1", st.Processed, st.Dispatched)
	}
	if st.LastGesture == nil || st.LastGesture.Name != "A" {
		t.Errorf("last gesture = %+v", st.LastGesture)
	}
	if st.Threshold != calibration.DefaultThreshold {
		t.Errorf("threshold = %d", st.Threshold)
	}
}

func TestApp_RunRecognizesFromPorts(t *testing.T) {
	left := capture.NewMockPort("left", []string{glove.FormatFrame(handRest())}, true)
	right := capture.NewMockPort("right", []string{glove.FormatFrame(handA())}, true)

	a, ann, _ := newTestApp(t, Config{Left: left, Right: right})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- a.Run(ctx) }()

	select {
	case g := <-ann.heard:
		if g != "A" {
			t.Errorf("announced %q, want A", g)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no gesture announced")
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Run() after cancel = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return")
	}

	if left.IsOpen() || right.IsOpen() {
		t.Error("ports left open after Run returned")
	}
	if a.IsRunning() {
		t.Error("IsRunning() = true after Run returned")
	}
}

func TestApp_RunFailsWhenPortCannotOpen(t *testing.T) {
	left := capture.NewMockPort("left", nil, false)
	right := capture.NewMockPort("right", nil, false)
	left.SetOpenErrors(os.ErrPermission)

	a, _, _ := newTestApp(t, Config{Left: left, Right: right})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := a.Run(ctx)
	if !errors.Is(err, capture.ErrPortOpen) {
		t.Errorf("Run() error = %v, want ErrPortOpen", err)
	}
}

func TestApp_RunFailsWhenGloveIsUnplugged(t *testing.T) {
	left := capture.NewMockPort("left", []string{glove.FormatFrame(handRest())}, true)
	right := capture.NewMockPort("right", []string{glove.FormatFrame(handA())}, true)

	a, ann, _ := newTestApp(t, Config{Left: left, Right: right})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- a.Run(ctx) }()

	select {
	case <-ann.heard:
	case <-time.After(2 * time.Second):
		t.Fatal("no gesture announced")
	}

	// Closing the port underneath the reader makes every read fail.
	left.Close()

	select {
	case err := <-errCh:
		if !errors.Is(err, capture.ErrPortLost) {
			t.Errorf("Run() error = %v, want ErrPortLost", err)
		}
	case <-ctx.Done():
		t.Fatal("Run() kept running after the glove was unplugged")
	}
	if right.IsOpen() {
		t.Error("right port left open after the link was lost")
	}
}

// swipeHand is a pose far from every static exemplar, accelerating along X.
func swipeHand(accelX float64) glove.HandReading {
	return glove.HandReading{
		Roll:        300,
		Yaw:         300,
		Flex:        [glove.NumFingers]int{900, 900, 900, 900, 900},
		Accel:       glove.Vector3{X: accelX},
		Calibration: fullCal,
	}
}

func TestApp_DynamicWindowIsDispatched(t *testing.T) {
	a, ann, events := newTestApp(t, Config{})

	swipe := gesture.HandFeature{MeanAccel: 2, StdAccel: 1, AccelAxis: gesture.AxisX}
	lib, err := gesture.NewLibrary([]gesture.Exemplar{
		gesture.BothHandsExemplar("SWIPE", gesture.KindDynamic, swipe, swipe),
	})
	if err != nil {
		t.Fatalf("NewLibrary() error = %v", err)
	}
	a.SetLibrary(lib)

	accel := []float64{3.0, 3.5, 4.0, 4.5, 5.0}
	for i, x := range accel {
		f := glove.Frame{Left: swipeHand(x), Right: swipeHand(x), At: time.Now()}
		if err := a.process(context.Background(), f); err != nil {
			t.Fatalf("process() frame %d error = %v", i, err)
		}
		if i < len(accel)-1 {
			if said := ann.Said(); len(said) != 0 {
				t.Fatalf("announced %+v after frame %d, want nothing before the window fills", said, i)
			}
			if got := a.aggregator.Len(); got != i+1 {
				t.Errorf("aggregator holds %d samples after frame %d, want %d", got, i, i+1)
			}
		}
	}

	said := ann.Said()
	if len(said) != 1 || said[0].gesture != "SWIPE" {
		t.Fatalf("announced %+v, want [SWIPE]", said)
	}
	if got := a.aggregator.Len(); got != 0 {
		t.Errorf("aggregator holds %d samples after a full window, want 0", got)
	}

	got := events.ofType(EventGesture)
	if len(got) != 1 {
		t.Fatalf("gesture events = %+v, want one", got)
	}
	if g := got[0].Gesture; g.Kind != gesture.KindDynamic || !g.Heuristic || !g.BothHands {
		t.Errorf("gesture event = %+v, want a two-hand dynamic heuristic match", g)
	}
}

func TestApp_StaticMatchStillFeedsAggregator(t *testing.T) {
	a, ann, _ := newTestApp(t, Config{Window: 5})

	for i := 0; i < 3; i++ {
		if err := a.process(context.Background(), frameA()); err != nil {
			t.Fatalf("process() error = %v", err)
		}
	}

	if got := len(ann.Said()); got != 1 {
		t.Errorf("announced %d times, want 1", got)
	}
	if got := a.aggregator.Len(); got != 3 {
		t.Errorf("aggregator holds %d samples, want 3", got)
	}
}
