package grid

// Mask is a boolean per-gate grid. Valid marks gates that may be considered
// at all; a gate with Valid false is never reported as flagged.
type Mask struct {
	Rays  int
	Gates int
	Flags []bool
	Valid []bool
}

// NewMask returns an unflagged mask with every gate valid.
func NewMask(s Shape) *Mask {
	m := &Mask{
		Rays:  s.Rays,
		Gates: s.Gates,
		Flags: make([]bool, s.Len()),
		Valid: make([]bool, s.Len()),
	}
	for i := range m.Valid {
		m.Valid[i] = true
	}
	return m
}

// Shape returns the mask's extent.
func (m *Mask) Shape() Shape { return Shape{Rays: m.Rays, Gates: m.Gates} }

// Idx maps (ray, gate) to the flat index.
func (m *Mask) Idx(ray, gate int) int { return ray*m.Gates + gate }

// Flagged reports whether (ray, gate) is both valid and flagged.
func (m *Mask) Flagged(ray, gate int) bool {
	i := m.Idx(ray, gate)
	return m.Valid[i] && m.Flags[i]
}

// Count returns the number of valid flagged gates.
func (m *Mask) Count() int {
	n := 0
	for i, f := range m.Flags {
		if f && m.Valid[i] {
			n++
		}
	}
	return n
}

// ValidCount returns the number of valid gates.
func (m *Mask) ValidCount() int {
	n := 0
	for _, v := range m.Valid {
		if v {
			n++
		}
	}
	return n
}

// Clone returns a deep copy.
func (m *Mask) Clone() *Mask {
	out := &Mask{
		Rays:  m.Rays,
		Gates: m.Gates,
		Flags: append([]bool(nil), m.Flags...),
		Valid: append([]bool(nil), m.Valid...),
	}
	return out
}

// Equal reports whether two masks have the same shape, flags and validity.
func (m *Mask) Equal(o *Mask) bool {
	if m.Rays != o.Rays || m.Gates != o.Gates || len(m.Flags) != len(o.Flags) {
		return false
	}
	for i := range m.Flags {
		if m.Flagged(i/m.Gates, i%m.Gates) != o.Flagged(i/o.Gates, i%o.Gates) || m.Valid[i] != o.Valid[i] {
			return false
		}
	}
	return true
}

// Subset reports whether every gate flagged in m is also flagged in o.
func (m *Mask) Subset(o *Mask) bool {
	for i := range m.Flags {
		if m.Flags[i] && m.Valid[i] && !(o.Flags[i] && o.Valid[i]) {
			return false
		}
	}
	return true
}

// BoolRows returns flagged state as row slices, mainly for tests.
func (m *Mask) BoolRows() [][]bool {
	rows := make([][]bool, m.Rays)
	for r := range rows {
		rows[r] = make([]bool, m.Gates)
		for g := range rows[r] {
			rows[r][g] = m.Flagged(r, g)
		}
	}
	return rows
}
