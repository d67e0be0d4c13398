package bus

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// Kind discriminates the event types carried by the bus.
type Kind int

const (
	KindRegistration Kind = iota + 1
	KindReading
)

func (k Kind) String() string {
	switch k {
	case KindRegistration:
		return "registration"
	case KindReading:
		return "reading"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Event is implemented by Registration and Reading only.
type Event interface {
	Kind() Kind
	Identity() uuid.UUID
	sealed()
}

// NewIdentity returns a fresh reading identity. A producer creates one at
// start and keeps it for its lifetime.
func NewIdentity() uuid.UUID {
	return uuid.New()
}

// MetricKind is the shape a producer registers.
type MetricKind int

const (
	Gauge MetricKind = iota + 1
	Counter
)

func (m MetricKind) String() string {
	switch m {
	case Gauge:
		return "gauge"
	case Counter:
		return "counter"
	default:
		return "metric(" + strconv.Itoa(int(m)) + ")"
	}
}

// Registration defines the shape of an identity's readings. Registering an
// identity again replaces the earlier definition.
type Registration struct {
	ID     uuid.UUID
	Metric MetricKind
	Name   string

	// Labels are the ordered label names. Readings carry values in the same order.
	Labels []string

	// Category is a free-form tag used by the notification forwarder.
	Category string
}

func (Registration) Kind() Kind            { return KindRegistration }
func (r Registration) Identity() uuid.UUID { return r.ID }
func (Registration) sealed()               {}

// Reading is one sample for a registered identity.
type Reading struct {
	ID     uuid.UUID
	Value  Value
	Labels []string

	// Category overrides the registration's category when set.
	Category string
}

func (Reading) Kind() Kind            { return KindReading }
func (r Reading) Identity() uuid.UUID { return r.ID }
func (Reading) sealed()               {}

// Op is the operation a Value applies.
type Op int

const (
	OpScalar Op = iota + 1
	OpIncrement
	OpDecrement
)

// Value is a reading payload: a scalar, or a unit increment or decrement.
type Value struct {
	op Op
	f  float64
}

// Scalar sets the current value.
func Scalar(f float64) Value { return Value{op: OpScalar, f: f} }

// Increment adds one.
func Increment() Value { return Value{op: OpIncrement} }

// Decrement subtracts one. Counters ignore it.
func Decrement() Value { return Value{op: OpDecrement} }

// Op reports the operation.
func (v Value) Op() Op { return v.op }

// Float returns the scalar and true, or 0 and false for increments and decrements.
func (v Value) Float() (float64, bool) {
	if v.op != OpScalar {
		return 0, false
	}
	return v.f, true
}

func (v Value) String() string {
	switch v.op {
	case OpScalar:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case OpIncrement:
		return "inc"
	case OpDecrement:
		return "dec"
	default:
		return fmt.Sprintf("value(%d)", int(v.op))
	}
}
