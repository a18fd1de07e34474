package mqttstream

import "encoding/json"

// Codec encodes and decodes structured payloads. The client and message
// constructors take a Codec explicitly so the encoding can be swapped out
// per client instead of living in ambient global state.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// JSONCodec is the default Codec, backed by encoding/json.
type JSONCodec struct{}

func (JSONCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (JSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
