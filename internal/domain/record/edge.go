package record

// Edge is one relation between two records. The same edge is reachable
// from both endpoints.
type Edge struct {
	FromType string
	FromID   string
	ToType   string
	ToID     string
}

// Touches reports whether (typ, id) is one of the edge endpoints.
func (e Edge) Touches(typ, id string) bool {
	return (e.FromType == typ && e.FromID == id) || (e.ToType == typ && e.ToID == id)
}

// Far returns the endpoint opposite to (typ, id).
func (e Edge) Far(typ, id string) (string, string, bool) {
	switch {
	case e.FromType == typ && e.FromID == id:
		return e.ToType, e.ToID, true
	case e.ToType == typ && e.ToID == id:
		return e.FromType, e.FromID, true
	}
	return "", "", false
}
