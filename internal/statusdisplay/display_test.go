package statusdisplay

import (
	"errors"
	"testing"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// busEvent is one level change on one of the display pins.
type busEvent struct {
	pin   string
	level gpio.Level
}

// bus records the pin activity of all three display pins in order.
type bus struct {
	events []busEvent
	failOn string
}

type busPin struct {
	name string
	bus  *bus
}

func (p *busPin) String() string   { return p.name }
func (p *busPin) Halt() error      { return nil }
func (p *busPin) Name() string     { return p.name }
func (p *busPin) Number() int      { return -1 }
func (p *busPin) Function() string { return "Out" }

func (p *busPin) Out(l gpio.Level) error {
	if p.bus.failOn == p.name {
		return errors.New("pin write failed")
	}
	p.bus.events = append(p.bus.events, busEvent{p.name, l})
	return nil
}

func (p *busPin) PWM(gpio.Duty, physic.Frequency) error {
	return errors.New("not supported")
}

// latched decodes the words made visible by latch pulses: a bit is sampled
// on every rising clock edge, the shift register holds the last eight.
func (b *bus) latched() []uint8 {
	var words []uint8
	var data gpio.Level
	var shift []gpio.Level
	for _, ev := range b.events {
		switch {
		case ev.pin == "data":
			data = ev.level
		case ev.pin == "clock" && ev.level == gpio.High:
			shift = append(shift, data)
		case ev.pin == "latch" && ev.level == gpio.High:
			var word uint8
			// Bits were sent least significant first.
			start := len(shift) - MaxWidth
			if start < 0 {
				start = 0
			}
			for i, l := range shift[start:] {
				if l {
					word |= 1 << i
				}
			}
			words = append(words, word)
		}
	}
	return words
}

func newTestDisplay(t *testing.T, opts ...Option) (*Display, *bus) {
	t.Helper()
	b := &bus{}
	var slept []time.Duration
	opts = append(opts, withSleep(func(d time.Duration) { slept = append(slept, d) }))
	d, err := New(&busPin{"data", b}, &busPin{"clock", b}, &busPin{"latch", b}, opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	b.events = nil
	return d, b
}

func TestNewDrivesPinsLow(t *testing.T) {
	b := &bus{}
	if _, err := New(&busPin{"data", b}, &busPin{"clock", b}, &busPin{"latch", b}); err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if len(b.events) != 3 {
		t.Fatalf("Expected 3 pin writes, got %v", b.events)
	}
	for _, ev := range b.events {
		if ev.level != gpio.Low {
			t.Errorf("Expected pin %s low, got %v", ev.pin, ev.level)
		}
	}
}

func TestNewRejectsInvalidWidth(t *testing.T) {
	b := &bus{}
	for _, width := range []int{0, 9, -1} {
		if _, err := New(&busPin{"data", b}, &busPin{"clock", b}, &busPin{"latch", b}, WithWidth(width)); err == nil {
			t.Errorf("Expected error for width %d", width)
		}
	}
}

func TestWriteLineScenario(t *testing.T) {
	d, b := newTestDisplay(t, WithWidth(4))

	steps := []struct {
		line int
		on   bool
		want uint8
	}{
		{1, true, 0b00000001},
		{3, true, 0b00000101},
		{1, false, 0b00000100},
	}
	for _, s := range steps {
		if err := d.WriteLine(s.line, s.on); err != nil {
			t.Fatalf("WriteLine(%d, %v) failed: %v", s.line, s.on, err)
		}
		if d.Word() != s.want {
			t.Errorf("After WriteLine(%d, %v) expected word %08b, got %08b", s.line, s.on, s.want, d.Word())
		}
	}

	words := b.latched()
	if len(words) != 3 {
		t.Fatalf("Expected 3 latched words, got %d", len(words))
	}
	if words[2] != 0b00000100 {
		t.Errorf("Expected transmitted byte 00000100, got %08b", words[2])
	}
}

func TestWriteLineLastWriteWins(t *testing.T) {
	d, _ := newTestDisplay(t)

	writes := []struct {
		line int
		on   bool
	}{
		{8, true}, {2, true}, {5, true}, {2, false}, {8, false}, {8, true}, {7, true},
	}
	var want uint8
	for _, w := range writes {
		if err := d.WriteLine(w.line, w.on); err != nil {
			t.Fatalf("WriteLine failed: %v", err)
		}
		mask := uint8(1) << (w.line - 1)
		want &^= mask
		if w.on {
			want |= mask
		}
	}
	if d.Word() != want {
		t.Errorf("Expected word %08b, got %08b", want, d.Word())
	}
}

func TestWriteLineTransmitsLSBFirst(t *testing.T) {
	d, b := newTestDisplay(t)

	if err := d.WriteLine(1, true); err != nil {
		t.Fatalf("WriteLine failed: %v", err)
	}

	// First data level written must be bit 0.
	if len(b.events) == 0 || b.events[0].pin != "data" || b.events[0].level != gpio.High {
		t.Fatalf("Expected first event to be data high, got %v", b.events)
	}
	clocks := 0
	for _, ev := range b.events {
		if ev.pin == "clock" && ev.level == gpio.High {
			clocks++
		}
	}
	if clocks != MaxWidth {
		t.Errorf("Expected %d clock pulses, got %d", MaxWidth, clocks)
	}
	last := b.events[len(b.events)-1]
	if last.pin != "latch" || last.level != gpio.Low {
		t.Errorf("Expected transmission to end with latch low, got %v", last)
	}
}

func TestWriteLineOutOfRange(t *testing.T) {
	d, b := newTestDisplay(t, WithWidth(4))

	for _, line := range []int{0, 5, -3, 9} {
		err := d.WriteLine(line, true)
		if !errors.Is(err, ErrInvalidLine) {
			t.Errorf("WriteLine(%d) expected ErrInvalidLine, got %v", line, err)
		}
	}
	if len(b.events) != 0 {
		t.Errorf("Expected nothing transmitted, got %d events", len(b.events))
	}
	if d.Word() != 0 {
		t.Errorf("Expected word unchanged, got %08b", d.Word())
	}
}

func TestWriteMasksToWidth(t *testing.T) {
	d, b := newTestDisplay(t, WithWidth(4))

	if err := d.Write(0xFF); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if d.Word() != 0x0F {
		t.Errorf("Expected word 00001111, got %08b", d.Word())
	}
	if words := b.latched(); len(words) != 1 || words[0] != 0x0F {
		t.Errorf("Expected latched 00001111, got %v", words)
	}

	on, err := d.Line(3)
	if err != nil || !on {
		t.Errorf("Expected line 3 on, got %v (%v)", on, err)
	}

	if err := d.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if d.Word() != 0 {
		t.Errorf("Expected cleared word, got %08b", d.Word())
	}
}

func TestLatchPulseWidth(t *testing.T) {
	b := &bus{}
	var slept []time.Duration
	d, err := New(&busPin{"data", b}, &busPin{"clock", b}, &busPin{"latch", b},
		WithLatchPulse(25*time.Microsecond),
		withSleep(func(d time.Duration) { slept = append(slept, d) }))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := d.WriteLine(2, true); err != nil {
		t.Fatalf("WriteLine failed: %v", err)
	}
	if len(slept) != 1 || slept[0] != 25*time.Microsecond {
		t.Errorf("Expected one 25µs latch delay, got %v", slept)
	}
}

func TestFailedTransmissionKeepsCache(t *testing.T) {
	d, b := newTestDisplay(t)

	if err := d.WriteLine(1, true); err != nil {
		t.Fatalf("WriteLine failed: %v", err)
	}

	b.failOn = "latch"
	if err := d.WriteLine(2, true); err == nil {
		t.Fatal("Expected error when latch fails")
	}
	if d.Word() != 0b00000001 {
		t.Errorf("Expected cached word 00000001, got %08b", d.Word())
	}
}
