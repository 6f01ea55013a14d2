package types

// Column describes one dataset column.
type Column struct {
	Name string
	Type Type
	// CategoryNames lists the distinct categories in significance order.
	// Only set for category columns.
	CategoryNames []string
	Min           float64
	Max           float64
	Avg           float64
}

// Metadata describes a dataset. It is owned by the data source and supplied
// to every expression compile. Category IDs are stable for the lifetime of a
// Metadata value.
type Metadata struct {
	Columns       []Column
	CategoryIDs   map[string]int
	CategoryNames map[int]string
}

// NewMetadata builds metadata from columns, assigning category IDs in column
// order and, within a column, in significance order. A category name shared by
// two columns keeps its first ID.
func NewMetadata(columns ...Column) *Metadata {
	m := &Metadata{
		Columns:       columns,
		CategoryIDs:   make(map[string]int),
		CategoryNames: make(map[int]string),
	}
	for _, c := range columns {
		if c.Type != TypeCategory {
			continue
		}
		for _, name := range c.CategoryNames {
			if _, ok := m.CategoryIDs[name]; ok {
				continue
			}
			id := len(m.CategoryIDs)
			m.CategoryIDs[name] = id
			m.CategoryNames[id] = name
		}
	}
	return m
}

// Column returns the column with the given name.
func (m *Metadata) Column(name string) (*Column, bool) {
	if m == nil {
		return nil, false
	}
	for i := range m.Columns {
		if m.Columns[i].Name == name {
			return &m.Columns[i], true
		}
	}
	return nil, false
}

// CategoryID returns the ID of a category name.
func (m *Metadata) CategoryID(name string) (int, bool) {
	if m == nil {
		return 0, false
	}
	id, ok := m.CategoryIDs[name]
	return id, ok
}
