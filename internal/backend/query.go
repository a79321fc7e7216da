package backend

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"
)

// Filter is an equality condition on one field.
type Filter struct {
	Field string
	Value any
}

// Query selects records from a collection. Only equality filters and a
// single ordering are supported.
type Query struct {
	Filters []Filter
	OrderBy string
	Desc    bool
}

// Where returns a copy of q with an added equality filter.
func (q Query) Where(field string, value any) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), Filter{Field: field, Value: value})
	return q
}

// Order returns a copy of q ordered by field.
func (q Query) Order(field string, desc bool) Query {
	q.OrderBy = field
	q.Desc = desc
	return q
}

// NeedsIndex reports whether q combines a filter with an ordering.
func (q Query) NeedsIndex() bool {
	return len(q.Filters) > 0 && q.OrderBy != ""
}

// Matches reports whether r satisfies every filter of q.
func (q Query) Matches(r Record) bool {
	for _, f := range q.Filters {
		if compare(r.Field(f.Field), normalize(f.Value)) != 0 {
			return false
		}
	}
	return true
}

func (q Query) String() string {
	var b strings.Builder
	for i, f := range q.Filters {
		if i > 0 {
			b.WriteString(" and ")
		}
		fmt.Fprintf(&b, "%s == %v", f.Field, f.Value)
	}
	if q.OrderBy != "" {
		dir := "asc"
		if q.Desc {
			dir = "desc"
		}
		fmt.Fprintf(&b, " order by %s %s", q.OrderBy, dir)
	}
	return strings.TrimSpace(b.String())
}

// Index declares a composite index serving a filtered, ordered query.
type Index struct {
	Collection string
	Field      string
	OrderBy    string
}

// Serves reports whether the index covers q on collection.
func (ix Index) Serves(collection string, q Query) bool {
	if ix.Collection != collection || ix.OrderBy != q.OrderBy {
		return false
	}
	for _, f := range q.Filters {
		if f.Field != ix.Field {
			return false
		}
	}
	return true
}

// SortRecords orders records in place according to q. Records without the
// ordering field keep their relative order.
func SortRecords[T Record](records []T, q Query) {
	if q.OrderBy == "" {
		return
	}
	sort.SliceStable(records, func(i, j int) bool {
		c := compare(records[i].Field(q.OrderBy), records[j].Field(q.OrderBy))
		if q.Desc {
			return c > 0
		}
		return c < 0
	})
}

func normalize(v any) any {
	switch x := v.(type) {
	case nil, string, float64, bool, time.Time:
		return v
	case *int:
		if x == nil {
			return nil
		}
		return float64(*x)
	case *float64:
		if x == nil {
			return nil
		}
		return *x
	case *time.Time:
		if x == nil {
			return nil
		}
		return *x
	}
	// named types such as models.TicketStatus
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	}
	return v
}

func compare(a, b any) int {
	a, b = normalize(a), normalize(b)
	switch x := a.(type) {
	case string:
		y, _ := b.(string)
		return strings.Compare(x, y)
	case float64:
		y, _ := b.(float64)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	case bool:
		y, _ := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		}
		return 1
	case time.Time:
		y, _ := b.(time.Time)
		return x.Compare(y)
	case nil:
		if b == nil {
			return 0
		}
		return -1
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}
