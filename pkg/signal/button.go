package signal

import (
	"time"

	"github.com/golang/glog"
	"periph.io/x/conn/v3/gpio"

	fx "github.com/embassist/esp32s3-remote-mic/pkg/framework"
)

// Pressed is the payload published on a button press.
const Pressed = "PRESSED"

// DefaultPollInterval is how often the button level is sampled.
const DefaultPollInterval = 10 * time.Millisecond

// Button polls a GPIO input and publishes Payload into Slot on every
// released to pressed transition.
type Button struct {
	Pin     gpio.PinIn
	Slot    *Slot
	Payload string
	// ActiveLow buttons pull the line up and read Low when pressed.
	ActiveLow bool

	pressed bool
}

// NewButton creates an active low Button publishing Pressed.
func NewButton(pin gpio.PinIn, slot *Slot) *Button {
	return &Button{Pin: pin, Slot: slot, Payload: Pressed, ActiveLow: true}
}

// Setup configures the pin as input with the pull matching ActiveLow.
func (b *Button) Setup() error {
	pull := gpio.PullDown
	if b.ActiveLow {
		pull = gpio.PullUp
	}
	return b.Pin.In(pull, gpio.NoEdge)
}

// AddToLoop implements LoopAdder.
func (b *Button) AddToLoop(loop *fx.Loop) {
	loop.AddController(fx.PrLvSense, b)
}

// Control implements Controller.
func (b *Button) Control(cc fx.ControlContext) error {
	pressed := b.Pin.Read() == gpio.High
	if b.ActiveLow {
		pressed = !pressed
	}
	if pressed && !b.pressed {
		glog.V(2).Infof("button %s pressed at tick %d", b.Pin, cc.Tick())
		if err := b.Slot.Publish(b.Payload); err != nil {
			return err
		}
	}
	b.pressed = pressed
	return nil
}
