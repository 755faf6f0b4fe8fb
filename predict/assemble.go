package predict

// Assemble lays out encoded columns in the model's training order. A column
// the model needs but the encoding did not produce fails with
// ErrSchemaMismatch; columns the model does not use are dropped.
func Assemble(columns map[string]float64, order []string) ([]float64, error) {
	row := make([]float64, len(order))
	for i, name := range order {
		value, ok := columns[name]
		if !ok {
			return nil, schemaMismatch(name)
		}
		row[i] = value
	}
	return row, nil
}
