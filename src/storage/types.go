package storage

import (
	"database/sql/driver"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
)

// FunctionCall is the optional function invocation attached to a message,
// stored as JSON text.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Scan implements the sql.Scanner interface for FunctionCall
func (f *FunctionCall) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*f = FunctionCall{}
		return nil
	case string:
		if v == "" {
			*f = FunctionCall{}
			return nil
		}
		return json.Unmarshal([]byte(v), f)
	case []byte:
		if len(v) == 0 {
			*f = FunctionCall{}
			return nil
		}
		return json.Unmarshal(v, f)
	default:
		return fmt.Errorf("cannot scan type %T into FunctionCall", value)
	}
}

// Value implements the driver.Valuer interface for FunctionCall
func (f FunctionCall) Value() (driver.Value, error) {
	b, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Embedding is a float32 vector stored as a little-endian blob.
type Embedding []float32

// Scan implements the sql.Scanner interface for Embedding
func (e *Embedding) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*e = nil
		return nil
	case []byte:
		vec, err := DecodeEmbedding(v)
		if err != nil {
			return err
		}
		*e = vec
		return nil
	default:
		return fmt.Errorf("cannot scan type %T into Embedding", value)
	}
}

// Value implements the driver.Valuer interface for Embedding
func (e Embedding) Value() (driver.Value, error) {
	return EncodeEmbedding(e), nil
}

// EncodeEmbedding packs a vector as consecutive little-endian float32s.
func EncodeEmbedding(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// DecodeEmbedding is the inverse of EncodeEmbedding.
func DecodeEmbedding(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding blob length %d", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
