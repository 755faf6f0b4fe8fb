package ml

import (
	"fmt"

	"github.com/pkg/errors"
)

var ErrUnknownCategory = errors.New("previously unseen label")

// LabelEncoder maps category strings to their position in the fitted class
// list. It is never modified after construction.
type LabelEncoder struct {
	classes []string
	index   map[string]int
}

func NewLabelEncoder(classes []string) (*LabelEncoder, error) {
	if len(classes) == 0 {
		return nil, errors.New("label encoder has no classes")
	}
	index := make(map[string]int, len(classes))
	for i, class := range classes {
		if _, dup := index[class]; dup {
			return nil, fmt.Errorf("duplicate class %q", class)
		}
		index[class] = i
	}
	return &LabelEncoder{
		classes: append([]string(nil), classes...),
		index:   index,
	}, nil
}

func (e *LabelEncoder) Classes() []string {
	return append([]string(nil), e.classes...)
}

func (e *LabelEncoder) Knows(value string) bool {
	_, ok := e.index[value]
	return ok
}

func (e *LabelEncoder) Transform(value string) (int, error) {
	code, ok := e.index[value]
	if !ok {
		return 0, errors.Wrapf(ErrUnknownCategory, "%q", value)
	}
	return code, nil
}

// WithClass returns an encoder that also knows class, appended after the
// fitted ones. The receiver is returned unchanged when class is already known.
func (e *LabelEncoder) WithClass(class string) *LabelEncoder {
	if e.Knows(class) {
		return e
	}
	next, _ := NewLabelEncoder(append(e.Classes(), class))
	return next
}

type categoricalTable struct {
	columns    []string
	categories [][]string
	index      []map[string]int
}

func newCategoricalTable(columns []string, categories [][]string) (categoricalTable, error) {
	if len(columns) == 0 {
		return categoricalTable{}, errors.New("encoder has no columns")
	}
	if len(columns) != len(categories) {
		return categoricalTable{}, fmt.Errorf("encoder has %d columns but %d category lists", len(columns), len(categories))
	}
	t := categoricalTable{
		columns:    append([]string(nil), columns...),
		categories: make([][]string, len(categories)),
		index:      make([]map[string]int, len(categories)),
	}
	for i, cats := range categories {
		t.categories[i] = append([]string(nil), cats...)
		t.index[i] = make(map[string]int, len(cats))
		for j, cat := range cats {
			t.index[i][cat] = j
		}
	}
	return t, nil
}

func (t categoricalTable) Columns() []string {
	return append([]string(nil), t.columns...)
}

func (t categoricalTable) Knows(column int, value string) bool {
	if column < 0 || column >= len(t.index) {
		return false
	}
	_, ok := t.index[column][value]
	return ok
}

func (t categoricalTable) lookup(values []string) ([]int, error) {
	if len(values) != len(t.columns) {
		return nil, fmt.Errorf("expected %d categorical values, got %d", len(t.columns), len(values))
	}
	codes := make([]int, len(values))
	for i, value := range values {
		code, ok := t.index[i][value]
		if !ok {
			return nil, errors.Wrapf(ErrUnknownCategory, "%q in column %s", value, t.columns[i])
		}
		codes[i] = code
	}
	return codes, nil
}

func (t categoricalTable) withCategory(category string) categoricalTable {
	categories := make([][]string, len(t.categories))
	for i, cats := range t.categories {
		categories[i] = cats
		if _, ok := t.index[i][category]; !ok {
			categories[i] = append(append([]string(nil), cats...), category)
		}
	}
	next, _ := newCategoricalTable(t.columns, categories)
	return next
}

// OrdinalEncoder emits one integer code per input column, named after the column.
type OrdinalEncoder struct {
	categoricalTable
}

func NewOrdinalEncoder(columns []string, categories [][]string) (*OrdinalEncoder, error) {
	t, err := newCategoricalTable(columns, categories)
	if err != nil {
		return nil, err
	}
	return &OrdinalEncoder{t}, nil
}

func (e *OrdinalEncoder) Transform(values []string) (map[string]float64, error) {
	codes, err := e.lookup(values)
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(codes))
	for i, code := range codes {
		out[e.columns[i]] = float64(code)
	}
	return out, nil
}

func (e *OrdinalEncoder) WithCategory(category string) TableEncoder {
	return &OrdinalEncoder{e.withCategory(category)}
}

// OneHotEncoder emits one indicator column per known category, named
// "<column>_<category>".
type OneHotEncoder struct {
	categoricalTable
}

func NewOneHotEncoder(columns []string, categories [][]string) (*OneHotEncoder, error) {
	t, err := newCategoricalTable(columns, categories)
	if err != nil {
		return nil, err
	}
	return &OneHotEncoder{t}, nil
}

func (e *OneHotEncoder) Transform(values []string) (map[string]float64, error) {
	codes, err := e.lookup(values)
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64)
	for i, code := range codes {
		for j, cat := range e.categories[i] {
			value := 0.0
			if j == code {
				value = 1
			}
			out[OneHotName(e.columns[i], cat)] = value
		}
	}
	return out, nil
}

func (e *OneHotEncoder) WithCategory(category string) TableEncoder {
	return &OneHotEncoder{e.withCategory(category)}
}

func OneHotName(column, category string) string {
	return column + "_" + category
}
