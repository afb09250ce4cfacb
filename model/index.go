package model

// Index is an ordered set of columns of one table. Unique distinguishes a
// uniqueness constraint from a plain index.
type Index struct {
	Name    string
	Unique  bool
	Columns []IndexColumn
}

// IndexColumn is one column position of an index.
type IndexColumn struct {
	Name string
}

// NewIndex returns an index over the named columns, in order.
func NewIndex(name string, unique bool, columns ...string) *Index {
	idx := &Index{Name: name, Unique: unique}
	for _, c := range columns {
		idx.Columns = append(idx.Columns, IndexColumn{Name: c})
	}
	return idx
}

// ColumnNames returns the indexed column names in index order.
func (i *Index) ColumnNames() []string {
	names := make([]string, len(i.Columns))
	for n, c := range i.Columns {
		names[n] = c.Name
	}
	return names
}
