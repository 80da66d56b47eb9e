package models

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
)

// Vector bildet eine pgvector-Spalte ab (Textformat "[0.1,0.2,...]").
type Vector []float32

// Value implementiert driver.Valuer.
func (v Vector) Value() (driver.Value, error) {
	if len(v) == 0 {
		return nil, nil
	}
	return v.String(), nil
}

// Scan implementiert sql.Scanner.
func (v *Vector) Scan(src any) error {
	var lit string
	switch s := src.(type) {
	case nil:
		*v = nil
		return nil
	case string:
		lit = s
	case []byte:
		lit = string(s)
	default:
		return fmt.Errorf("unsupported vector source %T", src)
	}
	parsed, err := ParseVector(lit)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// String liefert das pgvector-Literal.
func (v Vector) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

// ParseVector liest ein pgvector-Literal.
func ParseVector(lit string) (Vector, error) {
	lit = strings.TrimSpace(lit)
	if len(lit) < 2 || lit[0] != '[' || lit[len(lit)-1] != ']' {
		return nil, fmt.Errorf("invalid vector literal %q", lit)
	}
	body := strings.TrimSpace(lit[1 : len(lit)-1])
	if body == "" {
		return Vector{}, nil
	}
	parts := strings.Split(body, ",")
	out := make(Vector, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("invalid vector component %q: %w", p, err)
		}
		out[i] = float32(f)
	}
	return out, nil
}
