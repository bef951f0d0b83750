package scale

import (
	"strconv"
	"strings"

	"github.com/sugawarayuuta/sonnet"
)

// TotalChannel is the channel a block uses to report the sum of all other
// channels. The comparison is case-sensitive.
const TotalChannel = "TOTAL"

// ValidField is the key Serialize appends after the channels. A channel of
// the same name would collide with it, so the parser refuses one.
const ValidField = "VALID"

// Mass is a channel mass as reported by the scale. A mass that could not be
// parsed is carried as an explicit invalid value rather than a magic number,
// so negative readings stay meaningful.
type Mass struct {
	Value int32
	Valid bool
}

// Kilograms returns a valid mass.
func Kilograms(v int32) Mass {
	return Mass{Value: v, Valid: true}
}

// InvalidMass returns the value recorded for a malformed mass field.
func InvalidMass() Mass {
	return Mass{}
}

func (m Mass) String() string {
	if !m.Valid {
		return "invalid"
	}
	return strconv.FormatInt(int64(m.Value), 10) + "kg"
}

// ParseMass parses a field such as "1200kg" or "-15 KG". The unit is
// mandatory and the number in front of it must be an integer; anything
// else yields InvalidMass.
func ParseMass(field string) Mass {
	num, _, found := strings.Cut(strings.ToLower(field), "kg")
	if !found {
		return InvalidMass()
	}
	v, err := strconv.ParseInt(strings.TrimSpace(num), 10, 32)
	if err != nil {
		return InvalidMass()
	}
	return Kilograms(int32(v))
}

// Reading maps channel names to masses, keeping the order in which the
// channels first appeared in the block.
type Reading struct {
	names  []string
	masses map[string]Mass
}

// AddChannel sets the mass of a channel. Setting a channel twice keeps its
// original position and the last mass.
func (r *Reading) AddChannel(name string, m Mass) {
	if r.masses == nil {
		r.masses = make(map[string]Mass)
	}
	if _, ok := r.masses[name]; !ok {
		r.names = append(r.names, name)
	}
	r.masses[name] = m
}

// Mass returns the mass recorded for a channel.
func (r Reading) Mass(name string) (Mass, bool) {
	m, ok := r.masses[name]
	return m, ok
}

// Channels returns the channel names in insertion order.
func (r Reading) Channels() []string {
	return append([]string(nil), r.names...)
}

// Len returns the number of channels.
func (r Reading) Len() int {
	return len(r.names)
}

// IsValid reports whether the reading carries a TOTAL channel equal to the
// sum of every other channel. Readings without TOTAL, or with any invalid
// mass, are not valid.
func (r Reading) IsValid() bool {
	total, ok := r.masses[TotalChannel]
	if !ok || !total.Valid {
		return false
	}
	var sum int64
	for name, m := range r.masses {
		if name == TotalChannel {
			continue
		}
		if !m.Valid {
			return false
		}
		sum += int64(m.Value)
	}
	return sum == int64(total.Value)
}

// Clone returns a deep copy.
func (r Reading) Clone() Reading {
	if r.masses == nil {
		return Reading{}
	}
	c := Reading{
		names:  append([]string(nil), r.names...),
		masses: make(map[string]Mass, len(r.masses)),
	}
	for k, v := range r.masses {
		c.masses[k] = v
	}
	return c
}

// Serialize renders the reading as a compact JSON object: every channel in
// insertion order (invalid masses as null) followed by a "VALID" field. A
// channel named ValidField added directly with AddChannel produces a
// duplicate key.
func (r Reading) Serialize() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for _, name := range r.names {
		sb.Write(quote(name))
		sb.WriteByte(':')
		if m := r.masses[name]; m.Valid {
			sb.WriteString(strconv.FormatInt(int64(m.Value), 10))
		} else {
			sb.WriteString("null")
		}
		sb.WriteByte(',')
	}
	sb.Write(quote(ValidField))
	sb.WriteByte(':')
	sb.WriteString(strconv.FormatBool(r.IsValid()))
	sb.WriteByte('}')
	return sb.String()
}

func quote(s string) []byte {
	b, err := sonnet.Marshal(s)
	if err != nil {
		// strings always marshal; keep the output well-formed regardless
		return []byte(strconv.Quote(s))
	}
	return b
}

// MarshalJSON implements json.Marshaler with the Serialize layout.
func (r Reading) MarshalJSON() ([]byte, error) {
	return []byte(r.Serialize()), nil
}

func (r Reading) String() string {
	return r.Serialize()
}
