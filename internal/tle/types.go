package tle

import "time"

// TLEEntry is a single satellite's two-line element set.
type TLEEntry struct {
	NORADID int
	Name    string
	Epoch   time.Time
	Line1   string
	Line2   string
}

// Age returns how old the element set is at t.
func (e TLEEntry) Age(t time.Time) time.Duration {
	return t.Sub(e.Epoch)
}

// Format renders e back to 3-line form.
func (e TLEEntry) Format() string {
	return e.Name + "\n" + e.Line1 + "\n" + e.Line2 + "\n"
}
